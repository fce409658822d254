package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed college.cue
var collegeCUE []byte

// Source returns the embedded CUE declaration of the college registry.
func Source() []byte {
	return append([]byte(nil), collegeCUE...)
}

// Load builds the college registry from the embedded CUE declaration.
func Load() (*Registry, error) {
	return LoadBytes("college.cue", collegeCUE)
}

// MustLoad is Load for program startup and tests; it panics on error.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

type entityDoc struct {
	Title       string   `json:"title"`
	Plural      string   `json:"plural"`
	Path        string   `json:"path"`
	Display     string   `json:"display"`
	StatusField string   `json:"status_field"`
	Search      []string `json:"search"`
}

type fieldDoc struct {
	Type         string   `json:"type"`
	Label        string   `json:"label"`
	Required     bool     `json:"required"`
	CreateOnly   bool     `json:"create_only"`
	Immutable    bool     `json:"immutable"`
	WriteOnly    bool     `json:"write_only"`
	Unique       bool     `json:"unique"`
	Target       string   `json:"target"`
	Enum         []string `json:"enum"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	MinExclusive bool     `json:"min_exclusive"`
	DefaultToday bool     `json:"default_today"`
}

// LoadBytes compiles a CUE registry declaration, checks it against the
// #Entity/#Field definitions it carries, and decodes it into a Registry.
// Entities and fields keep their declaration order.
func LoadBytes(filename string, src []byte) (*Registry, error) {
	ctx := cuecontext.New()
	val := ctx.CompileBytes(src, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %w", filename, err)
	}

	entities := val.LookupPath(cue.ParsePath("entities"))
	if !entities.Exists() {
		return nil, fmt.Errorf("%s: no entities declared", filename)
	}
	if err := entities.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating %s: %w", filename, err)
	}

	reg := NewRegistry()
	iter, err := entities.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	for iter.Next() {
		es, err := decodeEntity(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		reg.Register(es)
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func decodeEntity(name string, val cue.Value) (*EntitySchema, error) {
	var doc entityDoc
	if err := val.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding entity %s: %w", name, err)
	}

	es := &EntitySchema{
		Name:         name,
		Title:        doc.Title,
		Plural:       doc.Plural,
		Path:         doc.Path,
		DisplayField: doc.Display,
		StatusField:  doc.StatusField,
		SearchFields: doc.Search,
		Fields:       make(map[string]*FieldMeta),
	}

	iter, err := val.LookupPath(cue.ParsePath("fields")).Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating fields of %s: %w", name, err)
	}
	for iter.Next() {
		fname := iter.Selector().String()
		fm, err := decodeField(fname, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", name, err)
		}
		es.Fields[fname] = fm
		es.FieldOrder = append(es.FieldOrder, fname)
	}
	return es, nil
}

func decodeField(name string, val cue.Value) (*FieldMeta, error) {
	var doc fieldDoc
	if err := val.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding field %s: %w", name, err)
	}
	ft, err := parseFieldType(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}

	fm := &FieldMeta{
		Name:         name,
		Label:        doc.Label,
		Type:         ft,
		Required:     doc.Required,
		CreateOnly:   doc.CreateOnly,
		Immutable:    doc.Immutable,
		WriteOnly:    doc.WriteOnly,
		Unique:       doc.Unique,
		Target:       doc.Target,
		EnumValues:   doc.Enum,
		Min:          doc.Min,
		Max:          doc.Max,
		MinExclusive: doc.MinExclusive,
		DefaultToday: doc.DefaultToday,
	}

	// Defaults may be any JSON scalar; round-trip through JSON so numbers
	// arrive as float64 exactly like values decoded from the store.
	if def := val.LookupPath(cue.ParsePath("default")); def.Exists() && def.IsConcrete() {
		raw, err := def.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %s default: %w", name, err)
		}
		if err := json.Unmarshal(raw, &fm.Default); err != nil {
			return nil, fmt.Errorf("field %s default: %w", name, err)
		}
	}
	if fm.Label == "" {
		fm.Label = name
	}
	return fm, nil
}
