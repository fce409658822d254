// Package resolve joins the foreign-key ids in one entity's records to the
// already-loaded collections they reference, producing display-ready rows.
//
// Resolution never mutates its inputs and never fails: an id that is absent
// from its target collection (or whose collection has not loaded) resolves
// to nothing, shown as NotAvailable for single refs and dropped for multi
// refs.
package resolve

import (
	"strings"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// NotAvailable is displayed for a single reference that cannot be resolved.
const NotAvailable = "N/A"

// Collections maps entity name to its loaded records. A missing key means
// the collection has not loaded (or failed to).
type Collections map[string][]record.Record

// Ref is a resolved single reference.
type Ref struct {
	ID     string
	Target record.Record // nil when unresolved
}

// Resolved reports whether the referenced record was found.
func (r Ref) Resolved() bool {
	return r.Target != nil
}

// Row is a record plus its resolved references.
type Row struct {
	Entity string
	Record record.Record
	Single map[string]Ref
	Many   map[string][]record.Record

	res *Resolver
}

// ID returns the record's store id.
func (r Row) ID() string {
	return r.Record.ID()
}

// Display renders a display path for this row. A plain field renders its
// value; "ref" renders the target's display field; "ref.field" renders that
// field of the target. Multi refs render their resolved targets joined by
// ", " in id order.
func (r Row) Display(path string) string {
	es := r.res.reg.Entity(r.Entity)
	if es == nil {
		return record.Stringify(r.Record[path])
	}
	head, tail := schema.SplitPath(path)
	f := es.Field(head)
	if f == nil {
		return record.Stringify(r.Record[head])
	}

	switch f.Type {
	case schema.FieldRef:
		ref := r.Single[head]
		if !ref.Resolved() {
			return NotAvailable
		}
		return r.res.display(f.Target, ref.Target, tail)
	case schema.FieldRefList:
		targets := r.Many[head]
		parts := make([]string, 0, len(targets))
		for _, t := range targets {
			if s := r.res.display(f.Target, t, tail); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case schema.FieldDate:
		return record.NormalizeDate(r.Record[head])
	case schema.FieldSecret:
		return ""
	default:
		return record.Stringify(r.Record[head])
	}
}

// Columns renders every readable field of the row in declaration order.
func (r Row) Columns() map[string]string {
	es := r.res.reg.Entity(r.Entity)
	if es == nil {
		return nil
	}
	out := make(map[string]string, len(es.FieldOrder))
	for _, name := range es.FieldOrder {
		if es.Fields[name].WriteOnly {
			continue
		}
		out[name] = r.Display(name)
	}
	return out
}

// Resolver holds an id index over a set of loaded collections.
type Resolver struct {
	reg   *schema.Registry
	index map[string]map[string]record.Record
}

// New indexes the given collections by id. The collections are not copied
// or modified; callers must not mutate them while the resolver is in use.
func New(reg *schema.Registry, collections Collections) *Resolver {
	idx := make(map[string]map[string]record.Record, len(collections))
	for entity, recs := range collections {
		byID := make(map[string]record.Record, len(recs))
		for _, rec := range recs {
			if id := rec.ID(); id != "" {
				byID[id] = rec
			}
		}
		idx[entity] = byID
	}
	return &Resolver{reg: reg, index: idx}
}

// Lookup returns the record of entity with the given id, or nil.
func (r *Resolver) Lookup(entity, id string) record.Record {
	if id == "" {
		return nil
	}
	return r.index[entity][id]
}

// Loaded reports whether a collection for entity was supplied.
func (r *Resolver) Loaded(entity string) bool {
	_, ok := r.index[entity]
	return ok
}

// Resolve builds the row for one record of entity.
func (r *Resolver) Resolve(entity string, rec record.Record) Row {
	row := Row{
		Entity: entity,
		Record: rec,
		Single: make(map[string]Ref),
		Many:   make(map[string][]record.Record),
		res:    r,
	}
	es := r.reg.Entity(entity)
	if es == nil {
		return row
	}
	for _, name := range es.EdgeOrder {
		edge := es.Edges[name]
		if edge.Unique {
			id := record.IDOf(rec[name])
			row.Single[name] = Ref{ID: id, Target: r.Lookup(edge.Target, id)}
			continue
		}
		ids := record.IDsOf(rec[name])
		targets := make([]record.Record, 0, len(ids))
		for _, id := range ids {
			if t := r.Lookup(edge.Target, id); t != nil {
				targets = append(targets, t)
			}
		}
		row.Many[name] = targets
	}
	return row
}

// ResolveAll resolves every record, preserving order.
func (r *Resolver) ResolveAll(entity string, recs []record.Record) []Row {
	rows := make([]Row, len(recs))
	for i, rec := range recs {
		rows[i] = r.Resolve(entity, rec)
	}
	return rows
}

// display renders path on a target record; an empty path means the target
// entity's display field.
func (r *Resolver) display(entity string, target record.Record, path string) string {
	if path == "" {
		es := r.reg.Entity(entity)
		if es == nil || es.DisplayField == "" {
			return target.ID()
		}
		path = es.DisplayField
	}
	return r.Resolve(entity, target).Display(path)
}
