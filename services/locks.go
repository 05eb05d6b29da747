package services

import (
	"fmt"
	"sort"
	"sync"
)

// columnLocks serializes mutations per (project, status) column so that
// reading the current positions and writing new ones cannot interleave
// with another writer of the same column.
type columnLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newColumnLocks() *columnLocks {
	return &columnLocks{locks: make(map[string]*sync.Mutex)}
}

func columnKey(projectID uint, status string) string {
	return fmt.Sprintf("%d:%s", projectID, status)
}

func (c *columnLocks) get(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	return m
}

// lock acquires the mutexes for the given column keys in sorted order,
// so two cross-column moves in opposite directions cannot deadlock.
// The returned func releases them.
func (c *columnLocks) lock(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		m := c.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
