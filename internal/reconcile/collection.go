// Package reconcile holds a screen's in-memory copy of one entity collection
// and applies the effect of successful mutations to it without a re-fetch.
package reconcile

import (
	"sync"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

// Collection is an ordered, id-addressed cache of records. All operations
// are synchronous and idempotent per id; untouched entries keep their
// relative order.
type Collection struct {
	mu      sync.RWMutex
	records []record.Record
	loaded  bool
}

// NewCollection returns an empty, not-yet-loaded collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Replace swaps in a freshly fetched list. Records without an id are kept
// for display but cannot be addressed by the reconciler.
func (c *Collection) Replace(recs []record.Record) {
	cp := make([]record.Record, len(recs))
	copy(cp, recs)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = cp
	c.loaded = true
}

// Reset drops all records and marks the collection not loaded.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.loaded = false
}

// Loaded reports whether Replace has been called since the last Reset.
func (c *Collection) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// OnCreated appends rec. If a record with the same id is already present
// it is replaced in place, so a repeated notification does not duplicate.
func (c *Collection) OnCreated(rec record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(rec.ID()); i >= 0 {
		c.records[i] = rec
		return
	}
	c.records = append(c.records, rec)
}

// OnUpdated replaces the record with rec's id. An absent id is a no-op.
func (c *Collection) OnUpdated(rec record.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(rec.ID()); i >= 0 {
		c.records[i] = rec
	}
}

// OnDeleted removes the record with id. An absent id is a no-op.
func (c *Collection) OnDeleted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return
	}
	out := make([]record.Record, 0, len(c.records)-1)
	out = append(out, c.records[:i]...)
	c.records = append(out, c.records[i+1:]...)
}

// Records returns a snapshot of the collection in order.
func (c *Collection) Records() []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]record.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Get returns the record with id, or nil.
func (c *Collection) Get(id string) record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.records[i]
	}
	return nil
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *Collection) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, r := range c.records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}
