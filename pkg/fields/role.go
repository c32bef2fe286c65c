package fields

import "strings"

// Role is the semantic meaning inferred for a field or column name.
type Role int

const (
	RoleHanzi Role = iota
	RolePinyin
	RoleSentence
	RoleAudio
)

func (r Role) String() string {
	switch r {
	case RoleHanzi:
		return "hanzi"
	case RolePinyin:
		return "pinyin"
	case RoleSentence:
		return "english"
	case RoleAudio:
		return "audio"
	}
	return "unknown"
}

var synonyms = map[Role][]string{
	RoleHanzi:    {"chinese", "characters", "character", "hanzi"},
	RolePinyin:   {"pronunciation", "reading", "pinyin"},
	RoleSentence: {"translation", "meaning", "english"},
	RoleAudio:    {"sound", "audio"},
}

// Synonyms returns the fixed lowercase synonym list of r.
func (r Role) Synonyms() []string {
	return append([]string(nil), synonyms[r]...)
}

// Matches reports whether name contains any synonym of role, ignoring case.
func Matches(name string, role Role) bool {
	return containsAny(strings.ToLower(name), synonyms[role])
}

// Matcher extends the fixed synonym table with session synonyms, such as the
// detected source language code for the sentence role. The zero value and a
// nil *Matcher behave like Matches.
type Matcher struct {
	extra map[Role][]string
}

// With returns a copy of m that also accepts syn for role. Empty synonyms are ignored.
func (m *Matcher) With(role Role, syn string) *Matcher {
	out := &Matcher{extra: make(map[Role][]string)}
	if m != nil {
		for r, s := range m.extra {
			out.extra[r] = append([]string(nil), s...)
		}
	}
	syn = strings.ToLower(strings.TrimSpace(syn))
	if syn != "" {
		out.extra[role] = append(out.extra[role], syn)
	}
	return out
}

// Matches is like the package-level Matches plus the session synonyms.
func (m *Matcher) Matches(name string, role Role) bool {
	if Matches(name, role) {
		return true
	}
	if m == nil {
		return false
	}
	return containsAny(strings.ToLower(name), m.extra[role])
}

func containsAny(folded string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(folded, s) {
			return true
		}
	}
	return false
}
