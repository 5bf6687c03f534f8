package bill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for receipt image storage
type Storage interface {
	// Save saves an image and returns the stored path
	Save(filename string, data []byte) (string, error)

	// Get retrieves an image by path
	Get(path string) ([]byte, error)

	// Delete removes an image
	Delete(path string) error
}

// LocalStorage keeps receipt images in a single flat directory. Stored
// paths are always bare filenames; any directory components in a name
// are stripped so a bill's image path can never escape the base
// directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// flatten reduces a name to a bare filename inside the base directory.
func (l *LocalStorage) flatten(name string) (string, error) {
	base := filepath.Base(filepath.Clean(strings.ReplaceAll(name, "\\", "/")))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("invalid image name: %q", name)
	}
	return base, nil
}

// Save writes a receipt image and returns the stored path
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	name, err := l.flatten(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(l.basePath, name), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get retrieves a receipt image by its stored path
func (l *LocalStorage) Get(path string) ([]byte, error) {
	name, err := l.flatten(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a receipt image
func (l *LocalStorage) Delete(path string) error {
	name, err := l.flatten(path)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.basePath, name)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
