// Package cache persists provider-side context cache descriptors on local
// disk. A descriptor records the remote cache handle, its creation time
// and TTL, and the handles of the reference documents backing it, so a
// later process can reattach instead of re-uploading. Descriptors are
// keyed by (role, module): generator and verifier caches for the same
// module never collide.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCacheMiss signals that no usable cache descriptor exists for the
// requested (role, module). Callers treat a miss as "upload fresh".
var ErrCacheMiss = errors.New("no usable cache descriptor")

const (
	infoFile  = "cache_info.json"
	filesFile = "uploaded_files.json"
)

// Document is a remote reference-document handle.
type Document struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// Descriptor describes a remote context cache.
type Descriptor struct {
	Handle     string        `json:"cache_name"`
	CreatedAt  time.Time     `json:"created_at"`
	TTL        time.Duration `json:"-"`
	TTLSeconds int64         `json:"ttl_seconds"`

	Documents []Document `json:"-"`
}

// Expired reports whether the descriptor's TTL has elapsed at now.
func (d *Descriptor) Expired(now time.Time) bool {
	return now.After(d.CreatedAt.Add(d.TTL))
}

// Store reads and writes descriptors under a root directory.
type Store struct {
	root string
}

func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Dir returns the directory holding the (role, module) descriptor pair.
func (s *Store) Dir(role, module string) string {
	return filepath.Join(s.root, role, module)
}

// Resolve loads a live descriptor. Missing, corrupt, empty, or expired
// descriptors all report ErrCacheMiss.
func (s *Store) Resolve(role, module string) (*Descriptor, error) {
	desc, err := s.read(role, module)
	if err != nil {
		return nil, err
	}
	if desc.Expired(time.Now()) {
		return nil, fmt.Errorf("cache for %s/%s expired: %w", role, module, ErrCacheMiss)
	}
	return desc, nil
}

// Peek loads a descriptor without checking its TTL. Teardown uses it so
// remote state behind an expired descriptor is still cleaned up.
func (s *Store) Peek(role, module string) (*Descriptor, error) {
	return s.read(role, module)
}

func (s *Store) read(role, module string) (*Descriptor, error) {
	dir := s.Dir(role, module)

	data, err := os.ReadFile(filepath.Join(dir, infoFile))
	if err != nil {
		return nil, fmt.Errorf("no cache for %s/%s: %w", role, module, ErrCacheMiss)
	}
	var desc Descriptor
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("corrupt cache descriptor for %s/%s: %w", role, module, ErrCacheMiss)
	}
	desc.TTL = time.Duration(desc.TTLSeconds) * time.Second
	if desc.Handle == "" {
		return nil, fmt.Errorf("empty cache handle for %s/%s: %w", role, module, ErrCacheMiss)
	}

	// The document list is best effort. A missing or corrupt file list
	// still lets callers reattach to the cache itself.
	if data, err := os.ReadFile(filepath.Join(dir, filesFile)); err == nil {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err == nil {
			desc.Documents = docs
		}
	}
	return &desc, nil
}

// Persist writes the descriptor pair atomically.
func (s *Store) Persist(role, module string, desc *Descriptor) error {
	dir := s.Dir(role, module)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir for %s/%s: %w", role, module, err)
	}

	stored := *desc
	stored.TTLSeconds = int64(desc.TTL / time.Second)

	info, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache descriptor: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, infoFile), info); err != nil {
		return fmt.Errorf("writing cache descriptor for %s/%s: %w", role, module, err)
	}

	docs := desc.Documents
	if docs == nil {
		docs = []Document{}
	}
	files, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document list: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, filesFile), files); err != nil {
		return fmt.Errorf("writing document list for %s/%s: %w", role, module, err)
	}
	return nil
}

// Remove deletes the descriptor pair. Removing a descriptor that does
// not exist is not an error.
func (s *Store) Remove(role, module string) error {
	dir := s.Dir(role, module)
	for _, name := range []string{infoFile, filesFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s for %s/%s: %w", name, role, module, err)
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
