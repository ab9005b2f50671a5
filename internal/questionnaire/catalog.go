package questionnaire

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"
)

// Catalog is the versioned, read-mostly set of questionnaire fields.
// A catalog is immutable once built; catalog changes produce a new
// catalog with a new version.
type Catalog struct {
	version int64
	fields  map[string]*Field
	ordered []*Field
}

// NewCatalog validates the field set and builds a catalog.
// Validation failures here are load-time errors, never runtime ones.
func NewCatalog(version int64, fields []*Field) (*Catalog, error) {
	byID := make(map[string]*Field, len(fields))
	ordered := make([]*Field, 0, len(fields))

	for _, f := range fields {
		if f.ID == "" {
			return nil, fmt.Errorf("catalog: field with empty id")
		}
		if _, dup := byID[f.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate field %q", f.ID)
		}
		if err := validateField(f); err != nil {
			return nil, fmt.Errorf("catalog: field %q: %w", f.ID, err)
		}
		byID[f.ID] = f
		ordered = append(ordered, f)
	}

	// Sorted by id so every walk over the catalog is deterministic
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &Catalog{version: version, fields: byID, ordered: ordered}, nil
}

func validateField(f *Field) error {
	if f.Weight <= 0 {
		return fmt.Errorf("weight must be positive, got %v", f.Weight)
	}
	if f.Category == "" {
		return fmt.Errorf("category is required")
	}

	switch f.Kind {
	case KindScale:
		if f.Rule != RuleSimilarity {
			return fmt.Errorf("scale fields must use the similarity rule")
		}
		if f.MaxValue <= f.MinValue {
			return fmt.Errorf("scale range [%v, %v] is empty", f.MinValue, f.MaxValue)
		}
	case KindSingleChoice:
		if len(f.Options) < 2 {
			return fmt.Errorf("single_choice fields need at least 2 options")
		}
		if f.Rule == RuleSimilarity && f.CompatTable != nil {
			if err := validateCompatTable(f.CompatTable, f.Options); err != nil {
				return err
			}
		}
	case KindBoolean:
		// Boolean similarity degenerates to equality, both rules accepted
	default:
		return fmt.Errorf("unknown answer kind %q", f.Kind)
	}

	if f.Kind != KindSingleChoice && f.CompatTable != nil {
		return fmt.Errorf("compat table only applies to single_choice fields")
	}

	return nil
}

// validateCompatTable checks keys against the declared options, bounds
// every entry to [0,1] and requires symmetry
func validateCompatTable(t CompatTable, options Options) error {
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}

	for a, row := range t {
		if !allowed[a] {
			return fmt.Errorf("compat table key %q is not a declared option", a)
		}
		for b, v := range row {
			if !allowed[b] {
				return fmt.Errorf("compat table key %q is not a declared option", b)
			}
			if v < 0 || v > 1 || math.IsNaN(v) {
				return fmt.Errorf("compat table entry (%q, %q) = %v outside [0,1]", a, b, v)
			}
			mirror, ok := t.Lookup(b, a)
			if !ok || mirror != v {
				return fmt.Errorf("compat table is not symmetric for (%q, %q)", a, b)
			}
		}
	}

	return nil
}

// Version returns the catalog version
func (c *Catalog) Version() int64 { return c.version }

// Field returns the field with the given id
func (c *Catalog) Field(id string) (*Field, bool) {
	f, ok := c.fields[id]
	return f, ok
}

// Fields returns all fields sorted by id
func (c *Catalog) Fields() []*Field { return c.ordered }

// FieldsByCategory returns the fields of one category sorted by position
func (c *Catalog) FieldsByCategory(category string) []*Field {
	var out []*Field
	for _, f := range c.ordered {
		if f.Category == category {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Categories returns the distinct categories sorted alphabetically
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range c.ordered {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of fields
func (c *Catalog) Len() int { return len(c.ordered) }

// Holder keeps the current catalog available process-wide. Reads are
// lock-free; Replace swaps in a freshly loaded catalog.
type Holder struct {
	current atomic.Pointer[Catalog]
}

func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Current returns the catalog in use
func (h *Holder) Current() *Catalog { return h.current.Load() }

// Replace swaps the active catalog
func (h *Holder) Replace(c *Catalog) { h.current.Store(c) }
