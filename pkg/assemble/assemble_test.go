package assemble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/ankify/pkg/domain"
	"github.com/japaniel/ankify/pkg/fields"
	"github.com/japaniel/ankify/pkg/source"
)

var chineseSchema = fields.Schema{
	Name:   "Chinese",
	Fields: []string{"Hanzi", "Pinyin", "English", "Sound"},
}

func mapped(t *testing.T, schema fields.Schema, values map[string]string) *Fields {
	t.Helper()
	headers := make([]string, 0, len(values))
	for _, f := range schema.Fields {
		if _, ok := values[f]; ok {
			headers = append(headers, f)
		}
	}
	m := fields.MapHeaders(headers, schema.Fields)
	return FromMapping(schema.Fields, m, source.Record{Row: 1, Values: values})
}

func build(t *testing.T, in Input) (Output, error) {
	t.Helper()
	if in.Schema.Name == "" {
		in.Schema = chineseSchema
	}
	in.Roles = fields.DetectRoles(in.Schema.Fields, nil)
	in.Decision = Plan(PlanInput{
		Roles:         in.Roles,
		Values:        in.Values,
		Mode:          in.Mode,
		Source:        in.Source,
		ExplicitAudio: in.ExplicitAudio != "",
	})
	return Assemble(in)
}

func TestFields_RejectsUnknown(t *testing.T) {
	t.Parallel()

	f := NewFields([]string{"Front", "Back"})
	require.NoError(t, f.Set("Back", "b"))
	require.NoError(t, f.Set("Front", ""))
	assert.Error(t, f.Set("Extra", "x"))
	assert.Equal(t, []string{"Front", "Back"}, f.Keys())
	assert.Equal(t, map[string]string{"Front": "", "Back": "b"}, f.Map())
}

func TestFromMapping_OmitsUnmapped(t *testing.T) {
	t.Parallel()

	schema := []string{"Hanzi", "Pinyin", "Notes"}
	m := fields.MapHeaders([]string{"Chinese", "Pinyin"}, schema)
	f := FromMapping(schema, m, source.Record{Row: 1, Values: map[string]string{"Chinese": "好", "Pinyin": ""}})

	assert.Equal(t, []string{"Hanzi", "Pinyin"}, f.Keys())
	v, ok := f.Map()["Pinyin"]
	assert.True(t, ok, "explicit empty cell is kept")
	assert.Equal(t, "", v)
}

func TestPlan(t *testing.T) {
	t.Parallel()

	roles := fields.DetectRoles(chineseSchema.Fields, nil)
	noEnglish := fields.DetectRoles([]string{"Hanzi", "Pinyin"}, nil)

	tests := []struct {
		name          string
		roles         fields.Roles
		values        map[string]string
		explicitAudio bool
		want          Decision
	}{
		{
			name:   "needs everything",
			roles:  roles,
			values: map[string]string{"Hanzi": "你好"},
			want:   Decision{Text: "你好", Translate: true, Synthesize: true},
		},
		{
			name:   "english supplied",
			roles:  roles,
			values: map[string]string{"Hanzi": "你好", "English": "hello"},
			want:   Decision{Text: "你好", Synthesize: true},
		},
		{
			name:   "no english field",
			roles:  noEnglish,
			values: map[string]string{"Hanzi": "你好"},
			want:   Decision{Text: "你好"},
		},
		{
			name:   "sound supplied",
			roles:  roles,
			values: map[string]string{"Hanzi": "你好", "Sound": "[sound:x.mp3]"},
			want:   Decision{Text: "你好", Translate: true},
		},
		{
			name:          "audio column supplied",
			roles:         roles,
			values:        map[string]string{"Hanzi": "你好"},
			explicitAudio: true,
			want:          Decision{Text: "你好", Translate: true},
		},
		{
			name:   "no hanzi",
			roles:  roles,
			values: map[string]string{"English": "hello"},
			want:   Decision{Warnings: []string{"no Chinese text found for this row"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(PlanInput{
				Roles:         tt.roles,
				Values:        mapped(t, chineseSchema, tt.values),
				ExplicitAudio: tt.explicitAudio,
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_Forward(t *testing.T) {
	t.Parallel()

	roles := fields.DetectRoles(chineseSchema.Fields, nil)
	d := Plan(PlanInput{Roles: roles, Mode: Forward, Source: " Hello "})
	assert.Equal(t, Decision{Text: "Hello", Translate: true, Synthesize: true}, d)
	assert.Equal(t, "你好", d.SpeechText(Forward, &Translation{Hanzi: "你好"}))
	assert.Empty(t, d.SpeechText(Forward, nil))

	d = Plan(PlanInput{Roles: fields.Roles{Sentence: "English"}, Mode: Forward, Source: "Hello"})
	assert.False(t, d.Translate)
	assert.NotEmpty(t, d.Warnings)
}

func TestAssemble_PlaceholderWhenTranslationUnavailable(t *testing.T) {
	t.Parallel()

	out, err := build(t, Input{Row: 1, Values: mapped(t, chineseSchema, map[string]string{"Hanzi": "你好"})})
	require.NoError(t, err)
	assert.True(t, out.Placeholder)
	assert.Equal(t, Placeholder, out.Fields.Value("English"))
	assert.NotEmpty(t, out.Warnings)
	_, hasPinyin := out.Fields.Map()["Pinyin"]
	assert.False(t, hasPinyin, "fields without content are omitted")
}

func TestAssemble_NoPlaceholderWithoutEnglishRole(t *testing.T) {
	t.Parallel()

	schema := fields.Schema{Name: "Mini", Fields: []string{"Hanzi", "Pinyin"}}
	out, err := build(t, Input{Row: 1, Schema: schema, Values: mapped(t, schema, map[string]string{"Hanzi": "你好"})})
	require.NoError(t, err)
	assert.False(t, out.Placeholder)
	assert.Equal(t, []string{"Hanzi"}, out.Fields.Keys())
}

func TestAssemble_InlineSoundKeptVerbatim(t *testing.T) {
	t.Parallel()

	values := mapped(t, chineseSchema, map[string]string{"Hanzi": "你好", "Sound": "[sound:x.mp3]"})
	out, err := build(t, Input{Row: 1, Values: values, AudioPath: "/tmp/generated.mp3"})
	require.NoError(t, err)
	assert.Equal(t, "[sound:x.mp3]", out.Fields.Value("Sound"))
	assert.Nil(t, out.Audio)

	values = mapped(t, chineseSchema, map[string]string{"Hanzi": "你好", "Sound": " [sound:x.mp3] "})
	out, err = build(t, Input{Row: 1, Values: values})
	require.NoError(t, err)
	assert.Equal(t, " [sound:x.mp3] ", out.Fields.Value("Sound"), "whitespace is kept")
}

func TestAssemble_GeneratedAudioBecomesAttachment(t *testing.T) {
	t.Parallel()

	values := mapped(t, chineseSchema, map[string]string{"Hanzi": "你好", "English": "hello"})
	out, err := build(t, Input{
		Row:         1,
		Values:      values,
		Translation: &Translation{Hanzi: "你好", Pinyin: "nǐ hǎo", English: "hi"},
		AudioPath:   "/tmp/ankify/abc.mp3",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Audio)
	assert.Equal(t, AudioAttachment{Path: "/tmp/ankify/abc.mp3", Filename: "abc.mp3", Fields: []string{"Sound"}}, *out.Audio)
	_, hasSound := out.Fields.Map()["Sound"]
	assert.False(t, hasSound)
	assert.Equal(t, "hello", out.Fields.Value("English"), "supplied values are not overwritten")
	assert.Equal(t, "nǐ hǎo", out.Fields.Value("Pinyin"))
}

func TestAssemble_ExplicitAudioColumn(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp3"), []byte("x"), 0o644))
	values := mapped(t, chineseSchema, map[string]string{"Hanzi": "你好", "English": "hi"})

	out, err := build(t, Input{Row: 1, Values: values, ExplicitAudio: "clip.mp3", AudioDir: dir})
	require.NoError(t, err)
	require.NotNil(t, out.Audio)
	assert.Equal(t, filepath.Join(dir, "clip.mp3"), out.Audio.Path)

	out, err = build(t, Input{Row: 1, Values: values, ExplicitAudio: "[sound:clip.mp3]", AudioDir: dir})
	require.NoError(t, err)
	assert.Nil(t, out.Audio)
	assert.Equal(t, "[sound:clip.mp3]", out.Fields.Value("Sound"))
}

func TestAssemble_DropsDuplicateReferences(t *testing.T) {
	t.Parallel()

	schema := fields.Schema{Name: "Two", Fields: []string{"Hanzi", "Sound", "Notes"}}
	values := NewFields(schema.Fields)
	require.NoError(t, values.Set("Hanzi", "好"))
	require.NoError(t, values.Set("Notes", "[sound:gen.mp3]"))

	out, err := build(t, Input{Row: 1, Schema: schema, Values: values, AudioPath: "/x/gen.mp3"})
	require.NoError(t, err)
	require.NotNil(t, out.Audio)
	_, hasNotes := out.Fields.Map()["Notes"]
	assert.False(t, hasNotes, "reference duplicating the attachment is removed")

	values = NewFields(schema.Fields)
	require.NoError(t, values.Set("Hanzi", "好"))
	require.NoError(t, values.Set("Sound", "[sound:a.mp3]"))
	require.NoError(t, values.Set("Notes", "[sound:b.mp3]"))
	out, err = build(t, Input{Row: 1, Schema: schema, Values: values})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hanzi", "Sound"}, out.Fields.Keys())
}

func TestAssemble_Forward(t *testing.T) {
	t.Parallel()

	out, err := build(t, Input{
		Row:         1,
		Mode:        Forward,
		Source:      "Hello",
		Translation: &Translation{Hanzi: "你好", Pinyin: "nǐ hǎo"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Hanzi": "你好", "Pinyin": "nǐ hǎo", "English": "Hello"}, out.Fields.Map())
}

func TestAssemble_MandatoryEmpty(t *testing.T) {
	t.Parallel()

	values := mapped(t, chineseSchema, map[string]string{"Hanzi": "", "English": "hello"})
	_, err := build(t, Input{Row: 7, Values: values})

	var rowErr *domain.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 7, rowErr.Row)
	assert.Equal(t, "Chinese", rowErr.Schema)
	assert.ErrorIs(t, err, domain.ErrMalformedRow)
	assert.True(t, domain.IsRowRecoverable(err))
}

func TestAssemble_OnlySchemaKeys(t *testing.T) {
	t.Parallel()

	values := mapped(t, chineseSchema, map[string]string{"Hanzi": "你好"})
	out, err := build(t, Input{Row: 1, Values: values, Translation: &Translation{Pinyin: "nǐ hǎo", English: "hello"}})
	require.NoError(t, err)
	for k := range out.Fields.Map() {
		assert.Contains(t, chineseSchema.Fields, k)
	}
	assert.False(t, out.Placeholder)
}
