package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Spill keeps evicted stories' vectors so re-indexing unchanged text skips
// embedding. Keys are content-derived.
type Spill interface {
	// Put stores idx under key. Existing keys are left untouched.
	Put(ctx context.Context, key string, idx *MemoryIndex) error
	// Get returns the index stored under key, or nil when absent.
	Get(ctx context.Context, key string, dimensions int) (*MemoryIndex, error)
}

// DiskSpill stores snapshots as files under a directory.
type DiskSpill struct {
	dir string
}

// NewDiskSpill returns a spill rooted at dir, creating it if needed.
func NewDiskSpill(dir string) (*DiskSpill, error) {
	if dir == "" {
		return nil, fmt.Errorf("spill directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}
	return &DiskSpill{dir: dir}, nil
}

func (d *DiskSpill) path(key string) string {
	return filepath.Join(d.dir, key+".lvx")
}

// Put writes the snapshot through a temp file so readers never see a partial one.
func (d *DiskSpill) Put(_ context.Context, key string, idx *MemoryIndex) error {
	path := d.path(key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp, err := os.CreateTemp(d.dir, "spill-*.tmp")
	if err != nil {
		return fmt.Errorf("create spill file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := idx.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write spill %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close spill file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit spill %s: %w", key, err)
	}
	return nil
}

// Get reads the snapshot for key.
func (d *DiskSpill) Get(_ context.Context, key string, dimensions int) (*MemoryIndex, error) {
	f, err := os.Open(d.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open spill %s: %w", key, err)
	}
	defer f.Close()
	idx, err := NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(f); err != nil {
		return nil, fmt.Errorf("load spill %s: %w", key, err)
	}
	return idx, nil
}
