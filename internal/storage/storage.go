// Package storage persists finished scans. Persistence is optional and
// sits outside the image core.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("storage: object not found")

// Metadata describes a stored scan.
type Metadata struct {
	Key         string    `json:"key"`
	Format      string    `json:"format"`
	ContentType string    `json:"content_type"`
	Extension   string    `json:"extension"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Size        int       `json:"size"`
	Operation   string    `json:"operation,omitempty"`
	Filters     string    `json:"filters,omitempty"`
	Text        string    `json:"text,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the binary storage collaborator.
type Store interface {
	Put(ctx context.Context, key string, data []byte, meta Metadata) error
	Get(ctx context.Context, key string) ([]byte, Metadata, error)
}

// NewKey returns a fresh random object key.
func NewKey() string { return uuid.NewString() }

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidKey reports whether key can be used as an object name.
func ValidKey(key string) bool { return keyPattern.MatchString(key) }

// FSStore keeps each object as <key><ext> next to a <key>.json sidecar.
type FSStore struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// NewFSStore returns a store rooted at dir on fs.
func NewFSStore(fs afero.Fs, dir string) *FSStore {
	if dir == "" {
		dir = "."
	}
	return &FSStore{fs: fs, dir: dir, now: time.Now}
}

// NewOSStore returns a store on the local filesystem.
func NewOSStore(dir string) *FSStore {
	return NewFSStore(afero.NewOsFs(), dir)
}

// Dir returns the root directory of the store.
func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) metaPath(key string) string { return filepath.Join(s.dir, key+".json") }

// Put writes data and its metadata. The data file is written first so a
// readable sidecar always points at a complete object.
func (s *FSStore) Put(ctx context.Context, key string, data []byte, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidKey(key) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("storage: create %s: %w", s.dir, err)
	}

	meta.Key = key
	meta.Size = len(data)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now().UTC()
	}

	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, key+meta.Extension), data, 0o644); err != nil {
		return fmt.Errorf("storage: write object %s: %w", key, err)
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode metadata: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.metaPath(key), raw, 0o644); err != nil {
		return fmt.Errorf("storage: write metadata %s: %w", key, err)
	}
	return nil
}

// Get reads an object and its metadata.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, Metadata, error) {
	var meta Metadata
	if err := ctx.Err(); err != nil {
		return nil, meta, err
	}
	if !ValidKey(key) {
		return nil, meta, fmt.Errorf("storage: invalid key %q", key)
	}

	raw, err := afero.ReadFile(s.fs, s.metaPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, meta, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, meta, fmt.Errorf("storage: read metadata %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, meta, fmt.Errorf("storage: decode metadata %s: %w", key, err)
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, key+meta.Extension))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, meta, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, meta, fmt.Errorf("storage: read object %s: %w", key, err)
	}
	return data, meta, nil
}

// Keys lists the stored object keys.
func (s *FSStore) Keys() ([]string, error) {
	matches, err := afero.Glob(s.fs, filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		keys = append(keys, base[:len(base)-len(".json")])
	}
	return keys, nil
}
