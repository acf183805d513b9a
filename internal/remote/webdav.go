package remote

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/studio-b12/gowebdav"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/config"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// WebDAVStore is a Store on a WebDAV server.
type WebDAVStore struct {
	client *gowebdav.Client
	url    string
}

// NewWebDAVStore validates opts and builds the client. No request is made.
func NewWebDAVStore(opts config.RemoteOptions) (*WebDAVStore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	url := strings.TrimRight(opts.Hostname, "/")
	if root := strings.Trim(opts.Root, "/"); root != "" {
		url += "/" + root
	}

	c := gowebdav.NewClient(url, opts.Login, opts.Password)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	return &WebDAVStore{client: c, url: url}, nil
}

// URL returns the base URL of the store.
func (s *WebDAVStore) URL() string { return s.url }

func (s *WebDAVStore) Exists(p string) (bool, error) {
	_, err := s.client.Stat(cleanRemote(p))
	if err == nil {
		return true, nil
	}
	if gowebdav.IsErrNotFound(err) {
		return false, nil
	}
	return false, transportErr("stat", p, err)
}

func (s *WebDAVStore) IsDir(p string) (bool, error) {
	fi, err := s.client.Stat(cleanRemote(p))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return false, failure.NotFound("remote path", p)
		}
		return false, transportErr("stat", p, err)
	}
	return fi.IsDir(), nil
}

func (s *WebDAVStore) List(dir string) ([]string, error) {
	infos, err := s.client.ReadDir(cleanRemote(dir))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, failure.NotFound("remote directory", dir)
		}
		return nil, transportErr("list", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return sortedNames(names), nil
}

func (s *WebDAVStore) Mkdir(dir string) error {
	if err := s.client.Mkdir(cleanRemote(dir), 0755); err != nil {
		return transportErr("mkdir", dir, err)
	}
	return nil
}

func (s *WebDAVStore) Upload(localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := s.client.WriteStream(cleanRemote(remotePath), f, 0644); err != nil {
		return transportErr("upload", remotePath, err)
	}
	return nil
}

func (s *WebDAVStore) Download(remotePath, localPath string) error {
	rc, err := s.client.ReadStream(cleanRemote(remotePath))
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return failure.NotFound("remote file", remotePath)
		}
		return transportErr("download", remotePath, err)
	}
	defer rc.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return transportErr("download", remotePath, err)
	}
	return out.Close()
}

func (s *WebDAVStore) Delete(p string) error {
	if err := s.client.Remove(cleanRemote(p)); err != nil {
		return transportErr("delete", p, err)
	}
	return nil
}

func transportErr(op, p string, err error) error {
	return fmt.Errorf("%w: webdav %s %s: %w", failure.ErrTransport, op, p, err)
}
