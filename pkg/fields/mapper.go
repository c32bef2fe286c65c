package fields

import "strings"

// Schema is a note type: a named, ordered field list with an optional sort field.
type Schema struct {
	Name    string
	Fields  []string
	Primary string
}

// Mandatory returns the field that must always receive a value: the sort
// field when known, else the first declared field. ok is false when neither exists.
func (s Schema) Mandatory() (string, bool) {
	if s.Primary != "" && s.Has(s.Primary) {
		return s.Primary, true
	}
	if len(s.Fields) > 0 {
		return s.Fields[0], true
	}
	return "", false
}

// Has reports whether field is declared by the schema (exact name).
func (s Schema) Has(field string) bool {
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Binding ties one schema field to the input column that feeds it.
type Binding struct {
	Field  string
	Column string
}

// Mapping is an ordered field -> column mapping. Every key is a field of the
// list it was built from; build one with MapHeaders.
type Mapping struct {
	bindings []Binding
	index    map[string]int
}

func newMapping() Mapping {
	return Mapping{index: make(map[string]int)}
}

func (m *Mapping) bind(field, column string) {
	if _, ok := m.index[field]; ok {
		return
	}
	m.index[field] = len(m.bindings)
	m.bindings = append(m.bindings, Binding{Field: field, Column: column})
}

// Column returns the column bound to field.
func (m Mapping) Column(field string) (string, bool) {
	i, ok := m.index[field]
	if !ok {
		return "", false
	}
	return m.bindings[i].Column, true
}

// Has reports whether field is a key of the mapping.
func (m Mapping) Has(field string) bool {
	_, ok := m.index[field]
	return ok
}

// Bindings returns the bindings in the order they were made.
func (m Mapping) Bindings() []Binding {
	return append([]Binding(nil), m.bindings...)
}

// Len returns the number of mapped fields.
func (m Mapping) Len() int { return len(m.bindings) }

// Unmapped returns the fields of list that have no binding, in list order.
func (m Mapping) Unmapped(list []string) []string {
	var out []string
	for _, f := range list {
		if !m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// textRoles is the order the synonym pass visits roles in.
var textRoles = []Role{RoleHanzi, RolePinyin, RoleSentence}

// MapHeaders binds input headers to schema fields. Passes run in a fixed
// order and a field, once bound, is never rebound:
//
//  1. exact case-insensitive names;
//  2. synonyms for hanzi, pinyin and english, skipped for a role that an
//     already bound field satisfies;
//  3. unbound "sound" fields take the first header naming sound or audio.
//
// The result may be partial.
func MapHeaders(headers, fields []string) Mapping {
	m := newMapping()

	for _, h := range headers {
		for _, f := range fields {
			if strings.EqualFold(h, f) && !m.Has(f) {
				m.bind(f, h)
				break
			}
		}
	}

	for _, role := range textRoles {
		if m.satisfies(role) {
			continue
		}
		header, ok := firstMatching(headers, role)
		if !ok {
			continue
		}
		for _, f := range fields {
			if !m.Has(f) && Matches(f, role) {
				m.bind(f, header)
				break
			}
		}
	}

	for _, f := range fields {
		if m.Has(f) || !strings.Contains(strings.ToLower(f), "sound") {
			continue
		}
		for _, h := range headers {
			lh := strings.ToLower(h)
			if strings.Contains(lh, "sound") || strings.Contains(lh, "audio") {
				m.bind(f, h)
				break
			}
		}
	}

	return m
}

func (m Mapping) satisfies(role Role) bool {
	for _, b := range m.bindings {
		if Matches(b.Field, role) {
			return true
		}
	}
	return false
}

func firstMatching(headers []string, role Role) (string, bool) {
	for _, h := range headers {
		if Matches(h, role) {
			return h, true
		}
	}
	return "", false
}
