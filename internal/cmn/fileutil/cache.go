// Package fileutil holds helpers for files the application reads repeatedly.
package fileutil

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// stamp identifies one version of a file on disk.
type stamp struct {
	size    int64
	modTime int64
}

type entry[T any] struct {
	data  T
	stamp stamp
}

// Cache keeps decoded file contents keyed by path. An entry is reused only
// while the file's size and modification time are unchanged, and expires
// after the TTL regardless.
type Cache[T any] struct {
	name string
	lru  *expirable.LRU[string, entry[T]]
}

// NewCache creates a cache holding at most capacity entries. A capacity of
// 0 means unlimited size.
func NewCache[T any](name string, capacity int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		name: name,
		lru:  expirable.NewLRU[string, entry[T]](capacity, nil, ttl),
	}
}

// Name returns the cache name.
func (c *Cache[T]) Name() string {
	return c.name
}

// Size returns the current number of entries.
func (c *Cache[T]) Size() int {
	return c.lru.Len()
}

// LoadLatest returns the cached value for path, calling loader when the
// file changed since it was cached or was never cached.
func (c *Cache[T]) LoadLatest(path string, loader func() (T, error)) (T, error) {
	var zero T

	fi, err := os.Stat(path)
	if err != nil {
		c.lru.Remove(path)
		return zero, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	cur := stamp{size: fi.Size(), modTime: fi.ModTime().UnixNano()}

	if e, ok := c.lru.Get(path); ok && e.stamp == cur {
		return e.data, nil
	}

	data, err := loader()
	if err != nil {
		return zero, err
	}
	c.lru.Add(path, entry[T]{data: data, stamp: cur})
	return data, nil
}

// Invalidate drops the entry for path.
func (c *Cache[T]) Invalidate(path string) {
	c.lru.Remove(path)
}

// Purge drops every entry.
func (c *Cache[T]) Purge() {
	c.lru.Purge()
}
