package fsops

import "os"

// Deleter abstracts the filesystem calls a sweep makes
// Enables tests to prove dry-run never deletes and to inject failures
type Deleter interface {
	Remove(path string) error
	ReadDir(path string) ([]os.DirEntry, error)
}
