package capture

import "os"

// OSFileStore is the FileStore backed by the local filesystem.
type OSFileStore struct{}

func (OSFileStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileStore) Remove(path string) error {
	return os.Remove(path)
}
