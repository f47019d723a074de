// Package cache implements the local package cache. Entries are whole
// package directories addressed by (name, version, arch, abi).
package cache

import (
	"os"
	"path/filepath"

	"github.com/dchest/uniuri"
)

// Key identifies one cached build of one package version for one
// platform/ABI combination.
type Key struct {
	Name    string
	Version string
	Arch    string
	ABI     string
}

// Cache is a store for built packages on the local filesystem
type Cache struct {
	root string
}

// New returns a Cache rooted at location
func New(location string) *Cache {
	return &Cache{root: location}
}

// Root returns the cache root directory
func (c *Cache) Root() string {
	return c.root
}

// PathFor maps a key to its entry directory. Pure and deterministic:
// the same key always maps to the same path.
func (c *Cache) PathFor(key Key) string {
	return filepath.Join(c.root, key.Name, key.Version, key.Arch, key.ABI)
}

// Has checks whether an entry for key exists on disk
func (c *Cache) Has(key Key) bool {
	_, err := os.Stat(c.PathFor(key))
	return err == nil
}

// Prepare creates the parent directory for a key's entry so the entry
// itself can be moved into place. Returns the entry path.
func (c *Cache) Prepare(key Key) (string, error) {
	target := c.PathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}
	return target, nil
}

// ScratchDir allocates a fresh directory for fetch output. Scratch
// dirs live next to the cache so a later move into the cache stays on
// the same volume.
func (c *Cache) ScratchDir(name string) (string, error) {
	base := filepath.Join(c.root, ".scratch")
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", err
	}
	dir := filepath.Join(base, filepath.Base(name)+"-"+uniuri.NewLen(8))
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Clear removes the whole cache, scratch space included
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.root); err != nil {
		return err
	}
	return os.MkdirAll(c.root, 0755)
}
