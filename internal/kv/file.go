package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// File keeps one <key>.json file per slot inside a directory.
type File struct {
	dir string
}

// NewFile creates dir if needed and returns a file-backed Slots.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("kv: empty directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("kv: create dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("kv: invalid key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

// Get reads the slot file.
func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotNotFound
	}
	return b, err
}

// Put writes to a temp file and renames it over the slot.
func (f *File) Put(_ context.Context, key string, value []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("kv: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("kv: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("kv: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("kv: rename: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *File) Close() error { return nil }
