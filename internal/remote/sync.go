package remote

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// PushFile uploads localDir/name to remoteDir/name. remoteDir must exist.
func PushFile(ctx context.Context, s Store, localDir, remoteDir, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ok, err := s.Exists(remoteDir)
	if err != nil {
		log.Printf("[sync] failed to check remote directory %s: %v", remoteDir, err)
		return err
	}
	if !ok {
		log.Printf("[sync] remote parent directory %s does not exist", remoteDir)
		return failure.NotFound("remote parent directory", remoteDir)
	}

	if err := s.Upload(filepath.Join(localDir, name), path.Join(remoteDir, name)); err != nil {
		log.Printf("[sync] failed to upload %s to %s: %v", name, remoteDir, err)
		return err
	}
	return nil
}

// PullFile downloads remoteDir/name to localDir/name.
func PullFile(ctx context.Context, s Store, localDir, remoteDir, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.Download(path.Join(remoteDir, name), filepath.Join(localDir, name)); err != nil {
		log.Printf("[sync] failed to download %s from %s: %v", name, remoteDir, err)
		return err
	}
	return nil
}

// dirFrame is one directory being walked: its entries and the next one to
// visit.
type dirFrame struct {
	local, remote string
	entries       []string
	next          int
}

// PushDirectory uploads the tree under localDir to remoteDir, depth first,
// entries in lexical order. Missing remote directories are created. A
// remote file in the way of a directory is a conflict, reported before
// anything is uploaded into that directory. Remote files that already
// exist are deleted and uploaded again; the two steps are not atomic, so a
// failed upload leaves the remote file missing.
func PushDirectory(ctx context.Context, s Store, localDir, remoteDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	top, err := openPushFrame(s, localDir, remoteDir)
	if err != nil {
		return err
	}

	stack := []*dirFrame{top}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		f := stack[len(stack)-1]
		if f.next == len(f.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		name := f.entries[f.next]
		f.next++

		lpath := filepath.Join(f.local, name)
		rpath := path.Join(f.remote, name)

		fi, err := os.Stat(lpath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", lpath, err)
		}
		if fi.IsDir() {
			child, err := openPushFrame(s, lpath, rpath)
			if err != nil {
				return err
			}
			stack = append(stack, child)
			continue
		}

		exists, err := s.Exists(rpath)
		if err != nil {
			log.Printf("[sync] failed to check %s: %v", rpath, err)
			return err
		}
		if exists {
			if err := s.Delete(rpath); err != nil {
				log.Printf("[sync] failed to remove remote %s: %v", rpath, err)
				return err
			}
		}
		if err := PushFile(ctx, s, f.local, f.remote, name); err != nil {
			return err
		}
	}
	return nil
}

// openPushFrame makes sure remoteDir is a directory and lists localDir.
func openPushFrame(s Store, localDir, remoteDir string) (*dirFrame, error) {
	entries, err := listLocal(localDir)
	if err != nil {
		return nil, err
	}

	exists, err := s.Exists(remoteDir)
	if err != nil {
		log.Printf("[sync] failed to check remote directory %s: %v", remoteDir, err)
		return nil, err
	}
	if !exists {
		if err := s.Mkdir(remoteDir); err != nil {
			log.Printf("[sync] failed to create remote directory %s: %v", remoteDir, err)
			return nil, err
		}
	} else {
		isDir, err := s.IsDir(remoteDir)
		if err != nil {
			return nil, err
		}
		if !isDir {
			log.Printf("[sync] a record exists at %s on the remote which is not a directory", remoteDir)
			return nil, failure.Conflict(remoteDir, "remote record is not a directory")
		}
	}

	return &dirFrame{local: localDir, remote: remoteDir, entries: entries}, nil
}

func listLocal(dir string) ([]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFound("local directory", dir)
		}
		return nil, err
	}
	if !fi.IsDir() {
		return nil, failure.Conflict(dir, "not a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// PullDirectory downloads the tree under remoteDir into localDir, which must
// not exist yet. Entries are visited depth first.
func PullDirectory(ctx context.Context, s Store, localDir, remoteDir string) error {
	if _, err := os.Lstat(localDir); err == nil {
		log.Printf("[sync] a file or directory already exists at %s", localDir)
		return failure.Conflict(localDir, "local target already exists")
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	top, err := openPullFrame(s, localDir, remoteDir)
	if err != nil {
		return err
	}

	stack := []*dirFrame{top}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		f := stack[len(stack)-1]
		if f.next == len(f.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		name := f.entries[f.next]
		f.next++

		rpath := path.Join(f.remote, name)
		isDir, err := s.IsDir(rpath)
		if err != nil {
			log.Printf("[sync] failed to check %s: %v", rpath, err)
			return err
		}
		if isDir {
			child, err := openPullFrame(s, filepath.Join(f.local, name), rpath)
			if err != nil {
				log.Printf("[sync] failed to recursively pull %s", name)
				return err
			}
			stack = append(stack, child)
			continue
		}

		if err := PullFile(ctx, s, f.local, f.remote, name); err != nil {
			return err
		}
	}
	return nil
}

// openPullFrame lists remoteDir and creates localDir.
func openPullFrame(s Store, localDir, remoteDir string) (*dirFrame, error) {
	exists, err := s.Exists(remoteDir)
	if err != nil {
		log.Printf("[sync] failed to ascertain existence of remote directory %s: %v", remoteDir, err)
		return nil, err
	}
	if !exists {
		return nil, failure.NotFound("remote directory", remoteDir)
	}

	entries, err := s.List(remoteDir)
	if err != nil {
		log.Printf("[sync] failed to list %s: %v", remoteDir, err)
		return nil, err
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", localDir, err)
	}
	return &dirFrame{local: localDir, remote: remoteDir, entries: entries}, nil
}

// PurgeLocal removes p and everything under it. p must exist.
func PurgeLocal(p string) error {
	if _, err := os.Lstat(p); err != nil {
		if os.IsNotExist(err) {
			return failure.NotFound("local path", p)
		}
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("purge %s: %w", p, err)
	}
	return nil
}
