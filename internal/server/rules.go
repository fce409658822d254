package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthewbaird/collegeadmin/internal/form"
	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/repository"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

const (
	createdAtField = "createdAt"
	updatedAtField = "updatedAt"
)

// normalize keeps only declared fields of payload and coerces them to their
// stored form: refs to bare ids, numbers to float64, dates to YYYY-MM-DD.
func normalize(es *schema.EntitySchema, payload record.Record) record.Record {
	out := make(record.Record, len(payload))
	for _, name := range es.FieldOrder {
		v, ok := payload[name]
		if !ok {
			continue
		}
		f := es.Fields[name]
		switch {
		case v == nil:
			out[name] = nil
		case f.Type == schema.FieldRef:
			out[name] = record.IDOf(v)
		case f.Type == schema.FieldRefList:
			out[name] = record.IDsOf(v)
		case f.Type.Numeric():
			if n, ok := form.ToNumber(v); ok {
				out[name] = n
			} else {
				out[name] = v
			}
		case f.Type == schema.FieldDate:
			out[name] = record.NormalizeDate(v)
		default:
			out[name] = v
		}
	}
	return out
}

// build merges payload onto existing (nil when creating) and enforces every
// record rule. The returned record is ready to store.
func (s *Server) build(ctx context.Context, es *schema.EntitySchema, id string, existing, payload record.Record) (record.Record, error) {
	creating := existing == nil
	in := normalize(es, payload)

	merged := record.Record{}
	if !creating {
		merged = existing.Clone()
		for _, name := range es.FieldOrder {
			f := es.Fields[name]
			v, ok := in[name]
			if !ok {
				continue
			}
			if f.Immutable && record.Stringify(v) != record.Stringify(existing[name]) {
				return nil, badRequest(f.Label + " cannot be changed")
			}
			// An empty write-only value on update keeps the stored secret.
			if f.WriteOnly && record.Stringify(v) == "" {
				continue
			}
			merged[name] = v
		}
	} else {
		for k, v := range in {
			merged[k] = v
		}
	}

	if problems := form.Validate(es, merged, creating); len(problems) > 0 {
		return nil, badRequest(problemMessage(es, problems))
	}
	if err := s.checkRefs(ctx, es, merged); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, es, id, merged); err != nil {
		return nil, err
	}

	for _, name := range es.FieldOrder {
		f := es.Fields[name]
		if f.Type != schema.FieldSecret {
			continue
		}
		plain, ok := in[name]
		if !ok || record.Stringify(plain) == "" {
			continue
		}
		hash, err := hashPassword(record.Stringify(plain))
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", name, err)
		}
		merged[name] = hash
	}

	now := s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	if creating {
		merged[createdAtField] = now
	}
	merged[updatedAtField] = now
	return merged, nil
}

func problemMessage(es *schema.EntitySchema, problems map[string]string) string {
	msgs := make([]string, 0, len(problems))
	for _, name := range es.FieldOrder {
		if msg, ok := problems[name]; ok {
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// checkRefs verifies that every referenced id exists in its target entity.
func (s *Server) checkRefs(ctx context.Context, es *schema.EntitySchema, rec record.Record) error {
	for _, name := range es.FieldOrder {
		f := es.Fields[name]
		if !f.IsRef() {
			continue
		}
		var ids []string
		if f.Type == schema.FieldRef {
			if id := record.IDOf(rec[name]); id != "" {
				ids = []string{id}
			}
		} else {
			ids = record.IDsOf(rec[name])
		}
		target := s.reg.Entity(f.Target)
		for _, id := range ids {
			if _, err := s.store.Get(ctx, f.Target, id); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return badRequest(fmt.Sprintf("%s refers to an unknown %s", f.Label, target.Singular()))
				}
				return err
			}
		}
	}
	return nil
}

// checkUnique rejects a record whose unique fields collide with another
// record of the same entity.
func (s *Server) checkUnique(ctx context.Context, es *schema.EntitySchema, id string, rec record.Record) error {
	var unique []*schema.FieldMeta
	for _, name := range es.FieldOrder {
		if f := es.Fields[name]; f.Unique {
			unique = append(unique, f)
		}
	}
	if len(unique) == 0 {
		return nil
	}
	others, err := s.store.List(ctx, es.Name)
	if err != nil {
		return err
	}
	for _, f := range unique {
		v := strings.TrimSpace(record.Stringify(rec[f.Name]))
		if v == "" {
			continue
		}
		for _, o := range others {
			if o.ID() == id {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(record.Stringify(o[f.Name])), v) {
				return conflict(f.Label + " already exists")
			}
		}
	}
	return nil
}

// checkReferrers refuses to delete a record that other records still point at.
func (s *Server) checkReferrers(ctx context.Context, es *schema.EntitySchema, id string) error {
	for _, ref := range s.reg.Referrers(es.Name) {
		referrer := s.reg.Entity(ref.Entity)
		f := referrer.Field(ref.Field)
		recs, err := s.store.List(ctx, ref.Entity)
		if err != nil {
			return err
		}
		for _, r := range recs {
			var ids []string
			if f.Type == schema.FieldRefList {
				ids = record.IDsOf(r[ref.Field])
			} else {
				ids = []string{record.IDOf(r[ref.Field])}
			}
			for _, rid := range ids {
				if rid == id {
					return conflict(fmt.Sprintf("Cannot delete %s: it is still referenced by %s", es.Singular(), referrer.Plural))
				}
			}
		}
	}
	return nil
}
