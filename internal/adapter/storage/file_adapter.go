package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// FileAdapter stores the snapshot as one pretty-printed JSON document, the
// format of the original data/database.json. Revisions are tracked per process.
type FileAdapter struct {
	path string

	mu       sync.Mutex
	revision int64
}

func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

func (f *FileAdapter) Load(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		empty := domain.NewSnapshot()
		if err := f.write(empty); err != nil {
			return nil, err
		}
		empty.Revision = f.revision
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	snap.Revision = f.revision
	return snap, nil
}

func (f *FileAdapter) Save(ctx context.Context, snap *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if snap.Revision != f.revision {
		return ErrOptimisticLock
	}
	if err := f.write(snap); err != nil {
		return err
	}
	f.revision++
	snap.Revision = f.revision
	return nil
}

// write replaces the document through a temp file and rename so readers never
// see a partially written file.
func (f *FileAdapter) write(snap *domain.Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
