package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/ankify/pkg/domain"
)

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role Role
		want bool
	}{
		{"Hanzi", RoleHanzi, true},
		{"hanzisomething", RoleHanzi, true},
		{"Simplified Chinese", RoleHanzi, true},
		{"Characters", RoleHanzi, true},
		{"Reading", RolePinyin, true},
		{"PINYIN", RolePinyin, true},
		{"Meaning", RoleSentence, true},
		{"English Translation", RoleSentence, true},
		{"Sound", RoleAudio, true},
		{"audio_file", RoleAudio, true},
		{"Front", RoleHanzi, false},
		{"Back", RoleSentence, false},
		{"Notes", RolePinyin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.name, tt.role))
		})
	}
}

func TestMatches_SurroundingTextKeepsMatch(t *testing.T) {
	t.Parallel()

	for _, role := range []Role{RoleHanzi, RolePinyin, RoleSentence, RoleAudio} {
		for _, syn := range role.Synonyms() {
			for _, wrapped := range []string{syn, "x" + syn, syn + "_1", "My " + syn + " Field"} {
				assert.True(t, Matches(wrapped, role), "%q should match %s", wrapped, role)
			}
		}
	}
}

func TestMatcher_SessionSynonym(t *testing.T) {
	t.Parallel()

	var base *Matcher
	assert.False(t, base.Matches("French", RoleSentence))

	m := base.With(RoleSentence, "French")
	assert.True(t, m.Matches("French sentence", RoleSentence))
	assert.True(t, m.Matches("Meaning", RoleSentence))
	assert.True(t, m.Matches("Hanzi", RoleHanzi))

	m2 := m.With(RoleHanzi, "ja")
	assert.True(t, m2.Matches("JA", RoleHanzi))
	assert.False(t, m.Matches("JA", RoleHanzi), "With must not mutate the receiver")
}

func TestMapHeaders_ExactIdentity(t *testing.T) {
	t.Parallel()

	cols := []string{"Chinese", "Pinyin", "English", "Sound"}
	m := MapHeaders(cols, cols)

	require.Equal(t, 4, m.Len())
	for _, c := range cols {
		got, ok := m.Column(c)
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
}

func TestMapHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		fields  []string
		want    []Binding
	}{
		{
			name:    "case insensitive exact",
			headers: []string{"hanzi", "PINYIN"},
			fields:  []string{"Hanzi", "Pinyin", "English"},
			want:    []Binding{{"Hanzi", "hanzi"}, {"Pinyin", "PINYIN"}},
		},
		{
			name:    "synonym pass",
			headers: []string{"chinese_word", "reading", "meaning"},
			fields:  []string{"Hanzi", "Pinyin", "English"},
			want:    []Binding{{"Hanzi", "chinese_word"}, {"Pinyin", "reading"}, {"English", "meaning"}},
		},
		{
			name:    "role satisfied by exact match is not remapped",
			headers: []string{"English", "Translation"},
			fields:  []string{"English", "Translation Notes"},
			want:    []Binding{{"English", "English"}},
		},
		{
			name:    "first header wins for a role",
			headers: []string{"pinyin_a", "pinyin_b"},
			fields:  []string{"Pinyin"},
			want:    []Binding{{"Pinyin", "pinyin_a"}},
		},
		{
			name:    "audio pass",
			headers: []string{"Hanzi", "audio_path"},
			fields:  []string{"Hanzi", "Sound"},
			want:    []Binding{{"Hanzi", "Hanzi"}, {"Sound", "audio_path"}},
		},
		{
			name:    "nothing in common",
			headers: []string{"a", "b"},
			fields:  []string{"Front", "Back"},
			want:    nil,
		},
		{
			name:    "duplicate headers keep first",
			headers: []string{"Hanzi", "hanzi"},
			fields:  []string{"Hanzi"},
			want:    []Binding{{"Hanzi", "Hanzi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapHeaders(tt.headers, tt.fields)
			assert.Equal(t, tt.want, got.Bindings())
			for _, b := range got.Bindings() {
				assert.Contains(t, tt.fields, b.Field)
			}
		})
	}
}

func TestMapHeaders_Deterministic(t *testing.T) {
	t.Parallel()

	headers := []string{"Character", "Reading", "Meaning", "Audio", "Notes"}
	fields := []string{"Hanzi", "Pinyin", "English", "Sound", "Extra"}

	first := MapHeaders(headers, fields)
	second := MapHeaders(headers, fields)
	assert.Equal(t, first.Bindings(), second.Bindings())
	assert.Equal(t, []string{"Extra"}, first.Unmapped(fields))
}

func TestCheckCompatible(t *testing.T) {
	t.Parallel()

	headers := []string{"chinese_word", "meaning"}

	ok, err := CheckCompatible(Schema{Name: "Chinese", Fields: []string{"Chinese", "Pinyin", "English"}}, headers)
	assert.True(t, ok)
	assert.NoError(t, err)

	ok, err = CheckCompatible(Schema{Name: "Lang", Fields: []string{"French", "English"}}, headers)
	assert.False(t, ok)
	var incompatible *domain.IncompatibleSchemaError
	require.ErrorAs(t, err, &incompatible)
	assert.Equal(t, "French", incompatible.Field)
	assert.Contains(t, err.Error(), "French")
}

func TestCheckCompatible_UsesPrimaryField(t *testing.T) {
	t.Parallel()

	s := Schema{Name: "Rev", Fields: []string{"Front", "Back"}, Primary: "Back"}
	ok, err := CheckCompatible(s, []string{"front"})
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrIncompatibleSchema)

	ok, err = CheckCompatible(s, []string{"back"})
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestCheckCompatible_Suggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		field   string
		headers []string
		want    []string
	}{
		{"abbreviation header", "English", []string{"EN", "zh"}, []string{"EN"}},
		{"full name header", "zh", []string{"Chinese", "Back"}, []string{"Chinese"}},
		{"no suggestion", "German", []string{"Front"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CheckCompatible(Schema{Name: "S", Fields: []string{tt.field}}, tt.headers)
			var incompatible *domain.IncompatibleSchemaError
			require.ErrorAs(t, err, &incompatible)
			assert.Equal(t, tt.want, incompatible.Suggestions)
		})
	}
}

func TestCheckCompatible_NoFields(t *testing.T) {
	t.Parallel()

	ok, err := CheckCompatible(Schema{Name: "Empty"}, []string{"x"})
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestFilterCompatible(t *testing.T) {
	t.Parallel()

	schemas := []Schema{
		{Name: "Basic", Fields: []string{"Front", "Back"}},
		{Name: "Chinese", Fields: []string{"Chinese", "Pinyin", "English", "Sound"}},
		{Name: "Reverse", Fields: []string{"English", "Chinese"}, Primary: "English"},
		{Name: "French", Fields: []string{"French", "Chinese"}},
	}
	headers := []string{"Chinese", "Pinyin"}

	got := FilterCompatible(schemas, headers)
	assert.Equal(t, []string{"Chinese"}, got)

	for _, name := range got {
		for _, s := range schemas {
			if s.Name != name {
				continue
			}
			mandatory, _ := s.Mandatory()
			assert.True(t, MapHeaders(headers, s.Fields).Has(mandatory))
		}
	}
}

func TestDetectRoles(t *testing.T) {
	t.Parallel()

	r := DetectRoles([]string{"Hanzi", "Pinyin", "English", "Sound", "Notes"}, nil)
	assert.Equal(t, Roles{Hanzi: "Hanzi", Pinyin: "Pinyin", Sentence: "English", Audio: "Sound"}, r)

	r = DetectRoles([]string{"Chinese", "Chinese Character", "Reading"}, nil)
	assert.Equal(t, "Chinese", r.Hanzi)
	assert.Equal(t, "Reading", r.Pinyin)
	assert.Empty(t, r.Sentence)

	m := (*Matcher)(nil).With(RoleSentence, "fr")
	r = DetectRoles([]string{"Hanzi", "fr"}, m)
	assert.Equal(t, "fr", r.Sentence)
	assert.Equal(t, "fr", r.Get(RoleSentence))
}

func TestSuitable(t *testing.T) {
	t.Parallel()

	schemas := []Schema{
		{Name: "Basic", Fields: []string{"Front", "Back"}},
		{Name: "Chinese", Fields: []string{"Hanzi", "Pinyin", "English", "Sound"}},
		{Name: "NoSound", Fields: []string{"Characters", "Reading", "Meaning"}},
	}
	got := Suitable(schemas)
	require.Len(t, got, 2)
	assert.Equal(t, "Chinese", got[0].Name)
	assert.Equal(t, "NoSound", got[1].Name)
}

func TestIsChineseTable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsChineseTable([]string{"Mandarin", "English"}))
	assert.True(t, IsChineseTable([]string{"hanzi_simplified"}))
	assert.False(t, IsChineseTable([]string{"Front", "Back"}))
}
