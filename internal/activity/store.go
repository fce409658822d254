// Package activity records the mutation history of college records. One
// mutation becomes several entries: one indexed on the changed record and
// one on every record it references, so a department's feed also shows
// the students and courses that were attached to it.
package activity

import (
	"context"
	"time"
)

// Op is the kind of mutation an entry records.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Role is how the indexed record relates to the mutation.
type Role string

const (
	RoleSubject Role = "subject" // the record that changed
	RoleRelated Role = "related" // a record the changed record references
)

// Entry is one line of a record's activity feed.
type Entry struct {
	EventID       string    `json:"event_id"`
	Op            Op        `json:"op"`
	Entity        string    `json:"entity"`
	RecordID      string    `json:"record_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	IndexedEntity string    `json:"indexed_entity"`
	IndexedID     string    `json:"indexed_id"`
	Role          Role      `json:"role"`
	Actor         string    `json:"actor,omitempty"`
	Summary       string    `json:"summary"`
}

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes the entries produced by one mutation.
	WriteEntries(ctx context.Context, entries []Entry) error

	// QueryByRecord returns the feed of one record, newest first.
	QueryByRecord(ctx context.Context, entity, id string, opts QueryOptions) (entries []Entry, nextCursor string, totalCount int, err error)

	// Search matches summaries case-insensitively, newest first.
	Search(ctx context.Context, query string, opts SearchOptions) (entries []Entry, totalCount int, err error)
}

// QueryOptions controls filtering and pagination for a record's feed.
type QueryOptions struct {
	Since  *time.Time
	Until  *time.Time
	Ops    []Op // empty means all
	Limit  int  // default 100, max 500
	Cursor string
}

// SearchOptions controls filtering for summary search.
type SearchOptions struct {
	Entity string // only entries indexed on this entity
	Since  *time.Time
	Limit  int // default 20
}
