package fsops

import "os"

// OSDeleter implements Deleter using real os package calls
type OSDeleter struct{}

func (OSDeleter) Remove(path string) error {
	return os.Remove(path)
}

func (OSDeleter) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}
