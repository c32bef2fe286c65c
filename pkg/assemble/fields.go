package assemble

import (
	"fmt"

	"github.com/japaniel/ankify/pkg/fields"
	"github.com/japaniel/ankify/pkg/source"
)

// Fields is an ordered field -> value set bound to one schema. Keys are
// always schema fields and iterate in schema order.
type Fields struct {
	schema []string
	values map[string]string
}

// NewFields returns an empty set for the given schema field list.
func NewFields(schema []string) *Fields {
	return &Fields{schema: append([]string(nil), schema...), values: make(map[string]string)}
}

// FromMapping copies the mapped columns of rec. A column missing from the
// record leaves its field unset; an explicitly empty cell sets "".
func FromMapping(schema []string, m fields.Mapping, rec source.Record) *Fields {
	f := NewFields(schema)
	for _, b := range m.Bindings() {
		if v, ok := rec.Values[b.Column]; ok {
			f.values[b.Field] = v
		}
	}
	return f
}

// Set assigns value to field. Fields outside the schema are rejected.
func (f *Fields) Set(field, value string) error {
	if !f.known(field) {
		return fmt.Errorf("field %q is not part of the note type", field)
	}
	f.values[field] = value
	return nil
}

// Value returns the value of field, "" when unset or field is "".
func (f *Fields) Value(field string) string {
	if field == "" {
		return ""
	}
	return f.values[field]
}

// Delete unsets field.
func (f *Fields) Delete(field string) { delete(f.values, field) }

// Keys returns the set fields in schema order.
func (f *Fields) Keys() []string {
	var out []string
	for _, name := range f.schema {
		if _, ok := f.values[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Map returns a copy of the values for the note sink.
func (f *Fields) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy.
func (f *Fields) Clone() *Fields {
	c := NewFields(f.schema)
	for k, v := range f.values {
		c.values[k] = v
	}
	return c
}

func (f *Fields) known(field string) bool {
	for _, s := range f.schema {
		if s == field {
			return true
		}
	}
	return false
}

// fill sets field only when it is known and currently empty.
func (f *Fields) fill(field, value string) bool {
	if field == "" || value == "" || !f.known(field) || f.values[field] != "" {
		return false
	}
	f.values[field] = value
	return true
}
