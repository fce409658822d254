// Package repository persists records for the reference Remote Store
// backend. Records are stored whole, keyed by (entity, id), and listed in
// insertion order. Business rules live in the server, not here.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicate is returned when inserting an id that already exists.
	ErrDuplicate = errors.New("repository: duplicate id")
)

// Store is the persistence interface used by the server.
type Store interface {
	// List returns every record of entity in insertion order.
	List(ctx context.Context, entity string) ([]record.Record, error)
	// Get returns one record.
	Get(ctx context.Context, entity, id string) (record.Record, error)
	// Insert stores rec, assigning an id if it has none, and returns the
	// stored copy.
	Insert(ctx context.Context, entity string, rec record.Record) (record.Record, error)
	// Replace overwrites the record with id, keeping its position.
	Replace(ctx context.Context, entity, id string, rec record.Record) (record.Record, error)
	// Delete removes the record with id.
	Delete(ctx context.Context, entity, id string) error
	// Close releases resources.
	Close() error
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.New().String()
}

// prepare copies rec and stamps id on it.
func prepare(rec record.Record, id string) record.Record {
	out := rec.Clone()
	if out == nil {
		out = record.Record{}
	}
	out[record.IDField] = id
	return out
}
