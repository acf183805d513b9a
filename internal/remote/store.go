// Package remote moves files and directory trees between the local file
// system and remote storage.
//
// Remote paths always use forward slashes. All operations are blocking and
// sequential; the context is checked between entries.
package remote

import (
	"path"
	"sort"
)

// Store is the remote storage collaborator.
type Store interface {
	// Exists reports whether anything is stored at p.
	Exists(p string) (bool, error)
	// IsDir reports whether p is a directory. A missing p is an error.
	IsDir(p string) (bool, error)
	// List returns the names of the entries directly under dir, sorted.
	List(dir string) ([]string, error)
	// Mkdir creates the directory dir. Its parent must exist.
	Mkdir(dir string) error
	// Upload copies the local file localPath to remotePath.
	Upload(localPath, remotePath string) error
	// Download copies remotePath to the local file localPath.
	Download(remotePath, localPath string) error
	// Delete removes p.
	Delete(p string) error
}

// cleanRemote normalises a remote path to an absolute, slash-separated form.
func cleanRemote(p string) string {
	return path.Clean("/" + p)
}

func sortedNames(names []string) []string {
	sort.Strings(names)
	return names
}
