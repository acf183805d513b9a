package remote

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// LocalStore is a Store backed by a directory, such as a mounted archive.
type LocalStore struct {
	Root string
}

// NewLocalStore returns a store rooted at root, which must be a directory.
func NewLocalStore(root string) (*LocalStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFound("store root", root)
		}
		return nil, fmt.Errorf("stat store root: %w", err)
	}
	if !fi.IsDir() {
		return nil, failure.Configf("store root %s is not a directory", root)
	}
	return &LocalStore{Root: root}, nil
}

func (s *LocalStore) abs(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(cleanRemote(p)))
}

func (s *LocalStore) Exists(p string) (bool, error) {
	_, err := os.Stat(s.abs(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *LocalStore) IsDir(p string) (bool, error) {
	fi, err := os.Stat(s.abs(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, failure.NotFound("remote path", p)
		}
		return false, err
	}
	return fi.IsDir(), nil
}

func (s *LocalStore) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(s.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFound("remote directory", dir)
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return sortedNames(names), nil
}

func (s *LocalStore) Mkdir(dir string) error {
	return os.Mkdir(s.abs(dir), 0755)
}

func (s *LocalStore) Upload(localPath, remotePath string) error {
	return copyFile(localPath, s.abs(remotePath))
}

func (s *LocalStore) Download(remotePath, localPath string) error {
	return copyFile(s.abs(remotePath), localPath)
}

func (s *LocalStore) Delete(p string) error {
	return os.RemoveAll(s.abs(p))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
