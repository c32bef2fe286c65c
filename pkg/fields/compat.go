package fields

import (
	"strings"

	"github.com/japaniel/ankify/pkg/domain"
)

// alternates lists short forms people use for language columns.
var alternates = []struct {
	full    string
	abbrevs []string
}{
	{"english", []string{"en", "eng"}},
	{"chinese", []string{"zh", "cn", "mandarin"}},
	{"japanese", []string{"jp", "ja"}},
	{"spanish", []string{"es", "sp"}},
	{"french", []string{"fr"}},
	{"german", []string{"de", "gr"}},
}

// FilterCompatible returns the names of schemas that share at least one
// field name with headers and whose mandatory field gets a column from
// MapHeaders. A candidate without a determinable mandatory field is kept.
func FilterCompatible(schemas []Schema, headers []string) []string {
	var out []string
	for _, s := range schemas {
		if !overlaps(s.Fields, headers) {
			continue
		}
		mandatory, ok := s.Mandatory()
		if !ok || MapHeaders(headers, s.Fields).Has(mandatory) {
			out = append(out, s.Name)
		}
	}
	return out
}

// CheckCompatible reports whether headers can fill the mandatory field of s.
// The error is a *domain.IncompatibleSchemaError naming the field and any
// headers that look like an abbreviation (or the full name) of it.
func CheckCompatible(s Schema, headers []string) (bool, error) {
	mandatory, ok := s.Mandatory()
	if !ok {
		return true, nil
	}
	if MapHeaders(headers, s.Fields).Has(mandatory) {
		return true, nil
	}
	return false, &domain.IncompatibleSchemaError{
		Schema:      s.Name,
		Field:       mandatory,
		Suggestions: suggest(mandatory, headers),
	}
}

func suggest(field string, headers []string) []string {
	lf := strings.ToLower(field)
	var out []string
	for _, alt := range alternates {
		switch {
		case lf == alt.full:
			for _, a := range alt.abbrevs {
				if h, ok := findFold(headers, a); ok {
					out = append(out, h)
				}
			}
		case contains(alt.abbrevs, lf):
			if h, ok := findFold(headers, alt.full); ok {
				out = append(out, h)
			}
		}
	}
	return out
}

func overlaps(fields, headers []string) bool {
	for _, f := range fields {
		if _, ok := findFold(headers, f); ok {
			return true
		}
	}
	return false
}

func findFold(list []string, s string) (string, bool) {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return v, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Roles names the schema fields that carry each semantic role. Empty means absent.
type Roles struct {
	Hanzi    string
	Pinyin   string
	Sentence string
	Audio    string
}

// Get returns the field assigned to role.
func (r Roles) Get(role Role) string {
	switch role {
	case RoleHanzi:
		return r.Hanzi
	case RolePinyin:
		return r.Pinyin
	case RoleSentence:
		return r.Sentence
	case RoleAudio:
		return r.Audio
	}
	return ""
}

// DetectRoles walks fields in order and gives each one the first role it
// matches that is still unassigned. m may be nil.
func DetectRoles(fields []string, m *Matcher) Roles {
	var r Roles
	for _, f := range fields {
		switch {
		case r.Hanzi == "" && m.Matches(f, RoleHanzi):
			r.Hanzi = f
		case r.Pinyin == "" && m.Matches(f, RolePinyin):
			r.Pinyin = f
		case r.Sentence == "" && m.Matches(f, RoleSentence):
			r.Sentence = f
		case r.Audio == "" && m.Matches(f, RoleAudio):
			r.Audio = f
		}
	}
	return r
}

// Suitable returns the schemas that can hold generated cards: they need
// hanzi, pinyin and english fields. A sound field is optional.
func Suitable(schemas []Schema) []Schema {
	var out []Schema
	for _, s := range schemas {
		r := DetectRoles(s.Fields, nil)
		if r.Hanzi != "" && r.Pinyin != "" && r.Sentence != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsChineseTable reports whether headers look like a Chinese vocabulary list.
func IsChineseTable(headers []string) bool {
	for _, h := range headers {
		lh := strings.ToLower(h)
		for _, ind := range []string{"chinese", "mandarin", "hanzi"} {
			if strings.Contains(lh, ind) {
				return true
			}
		}
	}
	return false
}
