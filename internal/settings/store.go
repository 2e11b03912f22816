package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotSaved is returned by Store.Load when no selection has ever been
// saved. A saved selection with nothing enabled is not an error.
var ErrNotSaved = errors.New("no saved selection")

// Store persists a Selection.
type Store interface {
	// Load returns the stored selection, or ErrNotSaved if nothing has
	// been saved yet.
	Load(ctx context.Context) (Selection, error)

	// Save replaces the stored selection.
	Save(ctx context.Context, sel Selection) error
}

// MemoryStore keeps the selection in memory.
type MemoryStore struct {
	mu    sync.Mutex
	sel   Selection
	saved bool
}

// NewMemoryStore returns a MemoryStore holding a copy of initial. A nil
// initial selection means nothing has been saved yet.
func NewMemoryStore(initial Selection) *MemoryStore {
	return &MemoryStore{sel: initial.Clone(), saved: initial != nil}
}

// Load returns a copy of the stored selection.
func (m *MemoryStore) Load(ctx context.Context) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return nil, ErrNotSaved
	}
	return m.sel.Clone(), nil
}

// Save stores a copy of sel.
func (m *MemoryStore) Save(ctx context.Context, sel Selection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sel = sel.Clone()
	m.saved = true
	return nil
}

// FileStore keeps the selection in a YAML file mapping site IDs to lists
// of feature IDs:
//
//	instagram:
//	  - reels
//	  - stories
//	youtube:
//	  - shorts
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore backed by path. The file and its
// directory are created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the selection from disk. A missing file returns ErrNotSaved;
// an empty file is a saved empty selection.
func (f *FileStore) Load(ctx context.Context) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotSaved
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	sel := Selection{}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", f.path, err)
	}
	return sel, nil
}

// Save writes the selection to a temporary file and renames it over the
// target, so readers never observe a partial file.
func (f *FileStore) Save(ctx context.Context, sel Selection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(sel)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary settings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
