package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileFlags persists the auto-reconnect flag in a small JSON file.
type FileFlags struct {
	path string
	mu   sync.Mutex
}

type flagFile struct {
	AutoConnect bool `json:"linera_auto_connect"`
}

// NewFileFlags stores flags at path. The file is created on first write.
func NewFileFlags(path string) *FileFlags {
	return &FileFlags{path: path}
}

// AutoConnect reports the stored flag. A missing file reads as false.
func (f *FileFlags) AutoConnect(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session/flags: read: %w", err)
	}
	var ff flagFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return false, fmt.Errorf("session/flags: decode %s: %w", f.path, err)
	}
	return ff.AutoConnect, nil
}

// SetAutoConnect writes the flag. Clearing removes the file.
func (f *FileFlags) SetAutoConnect(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !on {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("session/flags: remove: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("session/flags: mkdir: %w", err)
	}
	data, _ := json.Marshal(flagFile{AutoConnect: true})
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session/flags: write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("session/flags: rename: %w", err)
	}
	return nil
}

// MemoryFlags keeps the flag in memory. State is lost on restart.
type MemoryFlags struct {
	mu sync.Mutex
	on bool
}

func (f *MemoryFlags) AutoConnect(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on, nil
}

func (f *MemoryFlags) SetAutoConnect(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = on
	return nil
}
