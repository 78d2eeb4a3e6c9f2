// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// validKey restricts keys to names that are safe as file names.
var validKey = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

// FileStore is a [Store] that keeps each key in its own file under a directory.
//
// Writes go through a temporary file and a rename, so a crash mid-write leaves
// either the old or the new document, never a truncated one.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("kv_file_store_init_failed: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (store *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("kv: invalid key %q", key)
	}
	return filepath.Join(store.dir, key+".json"), nil
}

func (store *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := store.path(key)
	if err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	value, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv_file_read_failed: %w", err)
	}
	return value, nil
}

func (store *FileStore) Set(_ context.Context, key string, value []byte) error {
	path, err := store.path(key)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	tmp, err := os.CreateTemp(store.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("kv_file_write_failed: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("kv_file_write_failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kv_file_write_failed: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("kv_file_write_failed: %w", err)
	}
	return nil
}

func (store *FileStore) Delete(_ context.Context, key string) error {
	path, err := store.path(key)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("kv_file_delete_failed: %w", err)
	}
	return nil
}
