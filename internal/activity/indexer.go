package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// Mutation is one successful write reported by the server.
type Mutation struct {
	Op     Op
	Entity string
	Record record.Record // the stored record; for deletes, the record as it was
	Actor  string
}

// Indexer turns mutations into activity entries.
type Indexer struct {
	reg   *schema.Registry
	store Store
	now   func() time.Time
}

// NewIndexer creates an indexer writing to store.
func NewIndexer(reg *schema.Registry, store Store) *Indexer {
	return &Indexer{reg: reg, store: store, now: time.Now}
}

// Store returns the underlying entry store.
func (idx *Indexer) Store() Store { return idx.store }

// Index writes one entry for the mutated record and one for each distinct
// record it references.
func (idx *Indexer) Index(ctx context.Context, m Mutation) error {
	es := idx.reg.Entity(m.Entity)
	if es == nil {
		return fmt.Errorf("activity: unknown entity %q", m.Entity)
	}
	id := m.Record.ID()
	if id == "" {
		return fmt.Errorf("activity: %s record without id", m.Entity)
	}

	base := Entry{
		EventID:    uuid.NewString(),
		Op:         m.Op,
		Entity:     m.Entity,
		RecordID:   id,
		OccurredAt: idx.now().UTC(),
		Actor:      m.Actor,
		Summary:    summarize(es, m),
	}

	subject := base
	subject.IndexedEntity, subject.IndexedID, subject.Role = m.Entity, id, RoleSubject
	entries := []Entry{subject}

	seen := map[string]bool{m.Entity + ":" + id: true}
	for _, name := range es.FieldOrder {
		f := es.Fields[name]
		if !f.IsRef() {
			continue
		}
		for _, ref := range record.IDsOf(m.Record[name]) {
			key := f.Target + ":" + ref
			if seen[key] {
				continue
			}
			seen[key] = true
			related := base
			related.IndexedEntity, related.IndexedID, related.Role = f.Target, ref, RoleRelated
			entries = append(entries, related)
		}
	}

	return idx.store.WriteEntries(ctx, entries)
}

// summarize renders e.g. "Student Ada Lovelace updated".
func summarize(es *schema.EntitySchema, m Mutation) string {
	label := record.Stringify(m.Record[es.DisplayField])
	if label == "" {
		label = m.Record.ID()
	}
	s := fmt.Sprintf("%s %s %s", es.Title, label, m.Op)
	if m.Actor != "" {
		s += " by " + m.Actor
	}
	return s
}
