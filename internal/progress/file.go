package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/chronicle/internal/storage"
)

// FileName is the progress record's file name inside the data directory.
const FileName = "progress.yaml"

// File reads and writes a Record at a fixed path.
type File struct {
	path string
}

// NewFile returns a File for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// Load reads the record. A missing file yields a fresh record at version 0.
func (f *File) Load() (*Record, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress: read %s: %w", f.path, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("progress: parse %s: %w", f.path, err)
	}
	return &rec, nil
}

// Save writes rec if its Version matches the one on disk, then bumps
// rec.Version. A mismatch returns storage.ErrConflict and leaves the file
// untouched. The write goes through a temp file and rename.
func (f *File) Save(rec *Record) error {
	onDisk, err := f.Load()
	if err != nil {
		return err
	}
	if onDisk.Version != rec.Version {
		return fmt.Errorf("%w: progress record version %d is stale (on disk: %d)",
			storage.ErrConflict, rec.Version, onDisk.Version)
	}

	next := *rec
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(&next)
	if err != nil {
		return fmt.Errorf("progress: encode: %w", err)
	}
	if err := writeAtomic(f.path, data); err != nil {
		return err
	}
	*rec = next
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("progress: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".progress-*.yaml")
	if err != nil {
		return fmt.Errorf("progress: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("progress: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("progress: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("progress: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("progress: replace %s: %w", path, err)
	}
	return nil
}
