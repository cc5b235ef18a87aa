package fsops

import "os"

// FakeDeleter implements Deleter for testing
// Records every Remove call without touching the filesystem; ReadDir is served
// from the real filesystem so walks see the actual tree.
type FakeDeleter struct {
	Calls []string

	// Fail maps a path to the error Remove returns for it
	Fail map[string]error
}

func (f *FakeDeleter) Remove(path string) error {
	f.Calls = append(f.Calls, "rm:"+path)
	if err, ok := f.Fail[path]; ok {
		return err
	}
	return nil
}

func (f *FakeDeleter) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}
