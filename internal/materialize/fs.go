package materialize

import (
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// FS is the destination filesystem: billy file and directory operations
// plus the metadata stamping the pipeline applies per node. Paths are
// slash-separated and relative to the output root.
type FS interface {
	billy.Filesystem

	Chmod(name string, mode os.FileMode) error
	Chown(name string, uid, gid int) error
	Chtimes(name string, atime, mtime time.Time) error
}

// osFS backs FS with the real filesystem rooted at a directory. File IO
// goes through a chrooted billy filesystem; metadata stamping resolves
// against the root directly since billy does not expose it.
type osFS struct {
	billy.Filesystem
	root string
}

// NewOSFS returns an FS rooted at root.
func NewOSFS(root string) FS {
	return &osFS{Filesystem: osfs.New(root), root: root}
}

func (f *osFS) abs(name string) string {
	return filepath.Join(f.root, filepath.FromSlash(name))
}

func (f *osFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(f.abs(name), mode)
}

func (f *osFS) Chown(name string, uid, gid int) error {
	return os.Chown(f.abs(name), uid, gid)
}

func (f *osFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(f.abs(name), atime, mtime)
}
