// Package schema provides the entity metadata registry for the console.
//
// The registry is declared in college.cue, decoded at startup by Load, and
// consumed by the form controller (validation), the resolver (join plan),
// the filter index (search paths), the store client (endpoint paths) and
// the reference backend (server-side enforcement).
package schema

import (
	"fmt"
	"sort"
)

// FieldType classifies how a field is edited, validated and serialised.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
	FieldDate
	FieldEnum
	FieldRef
	FieldRefList
	FieldSecret
)

// String returns the registry-visible type name.
func (ft FieldType) String() string {
	switch ft {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldDate:
		return "date"
	case FieldEnum:
		return "enum"
	case FieldRef:
		return "ref"
	case FieldRefList:
		return "ref_list"
	case FieldSecret:
		return "secret"
	default:
		return "unknown"
	}
}

// Numeric returns true if drafts must parse the field to a finite number.
func (ft FieldType) Numeric() bool {
	return ft == FieldInt || ft == FieldFloat
}

func parseFieldType(s string) (FieldType, error) {
	for ft := FieldString; ft <= FieldSecret; ft++ {
		if ft.String() == s {
			return ft, nil
		}
	}
	return 0, fmt.Errorf("unknown field type %q", s)
}

// FieldMeta describes a single field on an entity.
type FieldMeta struct {
	Name         string    // JSON key (snake_case, e.g. "department_id")
	Label        string    // Human label used in validation messages
	Type         FieldType // Logical type for validation and serialisation
	Required     bool      // Must be non-empty on every submission
	CreateOnly   bool      // Required on create, optional on update
	Immutable    bool      // Business key: disabled in edit mode
	WriteOnly    bool      // Never returned by the store (passwords)
	Unique       bool      // Store enforces uniqueness across the collection
	Target       string    // Target entity for FieldRef / FieldRefList
	EnumValues   []string  // Non-nil for enum fields
	Min          *float64  // Lower numeric bound
	Max          *float64  // Upper numeric bound (inclusive)
	MinExclusive bool      // Min is a strict bound (value > Min)
	Default      any       // Add-mode default
	DefaultToday bool      // Add-mode default is today's date
}

// IsRef reports whether the field holds a foreign key.
func (f *FieldMeta) IsRef() bool {
	return f.Type == FieldRef || f.Type == FieldRefList
}

// RequiredFor reports whether the field must be non-empty for the given
// operation (create when creating is true, update otherwise).
func (f *FieldMeta) RequiredFor(creating bool) bool {
	if f.Required {
		return true
	}
	return creating && f.CreateOnly
}

// EdgeMeta describes a foreign-key relationship on an entity.
type EdgeMeta struct {
	Name        string // Field holding the foreign key(s), e.g. "course_ids"
	Target      string // Target entity name, e.g. "course"
	Cardinality string // "M2O" for single refs, "M2M" for multi refs
	Unique      bool   // True for M2O (single result)
}

// EntitySchema holds the complete metadata for one entity.
type EntitySchema struct {
	Name         string                // registry name (snake_case, e.g. "attendance")
	Title        string                // display title, e.g. "Attendance"
	Plural       string                // lower-case plural for messages, e.g. "students"
	Path         string                // endpoint segment under the API root
	DisplayField string                // field shown when another entity references this one
	StatusField  string                // categorical filter field, "" if none
	SearchFields []string              // display paths matched by free-text search
	Fields       map[string]*FieldMeta // field name -> metadata
	Edges        map[string]*EdgeMeta  // edge name -> metadata
	FieldOrder   []string              // fields in declaration order
	EdgeOrder    []string              // edges in declaration order
}

// Field returns the named field, or nil.
func (es *EntitySchema) Field(name string) *FieldMeta {
	return es.Fields[name]
}

// Singular returns the lower-case singular noun used in messages.
func (es *EntitySchema) Singular() string {
	return lower(es.Title)
}

// Contract is the per-entity lookup consumed by validation and resolution.
type Contract struct {
	RequiredFields []string          `json:"required_fields"`
	SingleRefs     map[string]string `json:"single_refs"`
	MultiRefs      map[string]string `json:"multi_refs"`
}

// Contract derives the required-field set and reference plan for the entity.
func (es *EntitySchema) Contract() Contract {
	c := Contract{
		SingleRefs: make(map[string]string),
		MultiRefs:  make(map[string]string),
	}
	for _, name := range es.FieldOrder {
		if es.Fields[name].Required {
			c.RequiredFields = append(c.RequiredFields, name)
		}
	}
	for _, name := range es.EdgeOrder {
		e := es.Edges[name]
		if e.Unique {
			c.SingleRefs[name] = e.Target
		} else {
			c.MultiRefs[name] = e.Target
		}
	}
	return c
}

// Registry holds schema metadata for all entities. It is populated once at
// startup and is safe for concurrent read access afterwards.
type Registry struct {
	entities    map[string]*EntitySchema // name -> schema
	entityOrder []string                 // registration order
	byPath      map[string]*EntitySchema // endpoint segment -> schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*EntitySchema),
		byPath:   make(map[string]*EntitySchema),
	}
}

// Register adds an entity schema to the registry, deriving its edges from
// the reference fields.
func (r *Registry) Register(es *EntitySchema) {
	if es.Edges == nil {
		es.Edges = make(map[string]*EdgeMeta)
	}
	if es.Path == "" {
		es.Path = es.Name
	}
	for _, name := range es.FieldOrder {
		f := es.Fields[name]
		if !f.IsRef() {
			continue
		}
		if _, ok := es.Edges[name]; ok {
			continue
		}
		edge := &EdgeMeta{Name: name, Target: f.Target, Cardinality: "M2M"}
		if f.Type == FieldRef {
			edge.Cardinality = "M2O"
			edge.Unique = true
		}
		es.Edges[name] = edge
		es.EdgeOrder = append(es.EdgeOrder, name)
	}
	if _, exists := r.entities[es.Name]; !exists {
		r.entityOrder = append(r.entityOrder, es.Name)
	}
	r.entities[es.Name] = es
	r.byPath[es.Path] = es
}

// Entity returns the schema for a named entity, or nil if not found.
func (r *Registry) Entity(name string) *EntitySchema {
	return r.entities[name]
}

// ByPath returns the schema whose endpoint segment is path, or nil.
func (r *Registry) ByPath(path string) *EntitySchema {
	return r.byPath[path]
}

// Contract returns the validation/join contract for a named entity.
func (r *Registry) Contract(name string) (Contract, error) {
	es := r.entities[name]
	if es == nil {
		return Contract{}, fmt.Errorf("unknown entity %q", name)
	}
	return es.Contract(), nil
}

// EntityNames returns all registered entity names in registration order.
func (r *Registry) EntityNames() []string {
	return append([]string(nil), r.entityOrder...)
}

// Dependencies returns the distinct target entities referenced by name, in
// edge order. These are the supporting collections a screen must load.
func (r *Registry) Dependencies(name string) []string {
	es := r.entities[name]
	if es == nil {
		return nil
	}
	var deps []string
	seen := map[string]bool{name: true}
	for _, edge := range es.EdgeOrder {
		t := es.Edges[edge].Target
		if seen[t] {
			continue
		}
		seen[t] = true
		deps = append(deps, t)
	}
	return deps
}

// Referrers lists (entity, field) pairs whose references point at target.
func (r *Registry) Referrers(target string) []EdgeRef {
	var out []EdgeRef
	for _, name := range r.entityOrder {
		es := r.entities[name]
		for _, edge := range es.EdgeOrder {
			if es.Edges[edge].Target == target {
				out = append(out, EdgeRef{Entity: name, Field: edge})
			}
		}
	}
	return out
}

// EdgeRef names one reference field on one entity.
type EdgeRef struct {
	Entity string
	Field  string
}

// Validate checks internal consistency: every edge target is registered,
// every search/display/status path names a real field, and every
// immutable or unique field exists.
func (r *Registry) Validate() error {
	var problems []string
	for _, name := range r.entityOrder {
		es := r.entities[name]
		for _, edge := range es.EdgeOrder {
			if r.entities[es.Edges[edge].Target] == nil {
				problems = append(problems, fmt.Sprintf("%s.%s: unknown target %q", name, edge, es.Edges[edge].Target))
			}
		}
		if es.DisplayField != "" {
			switch f := es.Fields[es.DisplayField]; {
			case f == nil:
				problems = append(problems, fmt.Sprintf("%s: display field %q is not declared", name, es.DisplayField))
			case f.IsRef():
				problems = append(problems, fmt.Sprintf("%s: display field %q must not be a reference", name, es.DisplayField))
			}
		}
		if es.StatusField != "" {
			f := es.Fields[es.StatusField]
			if f == nil || f.Type != FieldEnum {
				problems = append(problems, fmt.Sprintf("%s: status field %q must be an enum", name, es.StatusField))
			}
		}
		for _, path := range es.SearchFields {
			if err := r.checkPath(es, path); err != nil {
				problems = append(problems, fmt.Sprintf("%s: search path %q: %v", name, path, err))
			}
		}
		for _, fname := range es.FieldOrder {
			f := es.Fields[fname]
			if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
				problems = append(problems, fmt.Sprintf("%s.%s: min %v exceeds max %v", name, fname, *f.Min, *f.Max))
			}
			if f.Type == FieldEnum && len(f.EnumValues) == 0 {
				problems = append(problems, fmt.Sprintf("%s.%s: enum without values", name, fname))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &ValidationError{Problems: problems}
}

func (r *Registry) checkPath(es *EntitySchema, path string) error {
	head, tail := SplitPath(path)
	f := es.Fields[head]
	if f == nil {
		return fmt.Errorf("no field %q", head)
	}
	if tail == "" {
		return nil
	}
	if !f.IsRef() {
		return fmt.Errorf("%q is not a reference", head)
	}
	target := r.entities[f.Target]
	if target == nil {
		return fmt.Errorf("unknown target %q", f.Target)
	}
	return r.checkPath(target, tail)
}

// ValidationError lists registry consistency problems.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "schema: " + e.Problems[0]
	}
	return fmt.Sprintf("schema: %d problems, first: %s", len(e.Problems), e.Problems[0])
}
