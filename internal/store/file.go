package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type fileBlob struct {
	path string
}

// NewFile returns a store backed by <dir>/<Key>.json.
func NewFile(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &jobList{b: &fileBlob{path: filepath.Join(dir, Key+".json")}}, nil
}

func (f *fileBlob) read(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// write replaces the file through a rename so readers never see a partial
// array.
func (f *fileBlob) write(_ context.Context, data []byte) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *fileBlob) close() error { return nil }
