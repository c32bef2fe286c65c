package assemble

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/japaniel/ankify/pkg/domain"
	"github.com/japaniel/ankify/pkg/fields"
	"github.com/japaniel/ankify/pkg/source"
)

// Placeholder marks a field that needed a translation nobody could provide.
const Placeholder = "TRANSLATION NEEDED"

// Mode says which side of the card the input supplies.
type Mode int

const (
	// Reverse input already holds the hanzi; generation fills the rest.
	Reverse Mode = iota
	// Forward input is a source-language sentence; generation fills the hanzi side.
	Forward
)

// Translation is the generated content for one record.
type Translation struct {
	Hanzi   string
	Pinyin  string
	English string
}

// AudioAttachment asks the sink to store Path as Filename and reference it
// from Fields.
type AudioAttachment struct {
	Path     string
	Filename string
	Fields   []string
}

// PlanInput is what Plan looks at before any generator is called.
type PlanInput struct {
	Roles  fields.Roles
	Values *Fields
	Mode   Mode
	// Source is the sentence in Forward mode.
	Source string
	// ExplicitAudio is true when an audio column of the record has a value.
	ExplicitAudio bool
}

// Decision lists the generation work a record needs.
type Decision struct {
	Text       string
	Translate  bool
	Synthesize bool
	Warnings   []string
}

// SpeechText is the text to synthesize: the hanzi the record supplied, or
// in Forward mode the generated hanzi.
func (d Decision) SpeechText(mode Mode, tr *Translation) string {
	if mode == Forward {
		if tr == nil {
			return ""
		}
		return tr.Hanzi
	}
	return d.Text
}

// Plan applies the skip rules. Translation is skipped when the schema has
// no english field or the record already fills it. Audio is skipped when
// there is no audio field, it is already filled, or an audio column
// supplies one. A record without hanzi text gets no generation at all.
func Plan(in PlanInput) Decision {
	var d Decision
	values := in.Values
	if values == nil {
		values = NewFields(nil)
	}

	switch in.Mode {
	case Forward:
		d.Text = strings.TrimSpace(in.Source)
		if d.Text == "" {
			d.Warnings = append(d.Warnings, "empty sentence")
			return d
		}
		if in.Roles.Hanzi == "" {
			d.Warnings = append(d.Warnings, "note type has no field for the translated text")
			return d
		}
		d.Translate = values.Value(in.Roles.Hanzi) == ""
	default:
		d.Text = strings.TrimSpace(values.Value(in.Roles.Hanzi))
		if d.Text == "" {
			d.Warnings = append(d.Warnings, "no Chinese text found for this row")
			return d
		}
		d.Translate = in.Roles.Sentence != "" && values.Value(in.Roles.Sentence) == ""
	}

	d.Synthesize = in.Roles.Audio != "" &&
		values.Value(in.Roles.Audio) == "" &&
		!in.ExplicitAudio
	return d
}

// Input is everything Assemble merges for one record.
type Input struct {
	Row      int
	Schema   fields.Schema
	Roles    fields.Roles
	Mode     Mode
	Decision Decision
	// Values are the mapped record values; Assemble does not modify them.
	Values *Fields
	Source string
	// Translation is nil when none was generated.
	Translation *Translation
	// AudioPath is a freshly generated audio file, "" when none.
	AudioPath string
	// ExplicitAudio is the value of an unmapped audio column, resolved
	// against AudioDir.
	ExplicitAudio string
	AudioDir      string
}

// Output is the final note content.
type Output struct {
	Fields      *Fields
	Audio       *AudioAttachment
	Warnings    []string
	Placeholder bool
}

// Assemble merges mapped values with generated content. Supplied values are
// never overwritten. It fails with a *domain.RowError when the mandatory
// field ends up empty.
func Assemble(in Input) (Output, error) {
	out := Output{Warnings: append([]string(nil), in.Decision.Warnings...)}
	if in.Values != nil {
		out.Fields = in.Values.Clone()
	} else {
		out.Fields = NewFields(in.Schema.Fields)
	}
	f := out.Fields
	r := in.Roles

	if tr := in.Translation; tr != nil {
		if in.Mode == Forward {
			f.fill(r.Hanzi, tr.Hanzi)
			f.fill(r.Pinyin, tr.Pinyin)
			f.fill(r.Sentence, in.Source)
		} else {
			f.fill(r.Pinyin, tr.Pinyin)
			f.fill(r.Sentence, tr.English)
		}
	} else if in.Decision.Translate && in.Mode == Reverse && r.Sentence != "" && f.Value(r.Sentence) == "" {
		f.values[r.Sentence] = Placeholder
		out.Placeholder = true
		out.Warnings = append(out.Warnings, fmt.Sprintf("translation unavailable: %q set to %q", r.Sentence, Placeholder))
	}
	if in.Mode == Forward && in.Translation == nil && r.Sentence != "" {
		f.fill(r.Sentence, in.Source)
	}

	placeAudio(&out, in)
	dedupeSoundRefs(&out)

	mandatory, ok := in.Schema.Mandatory()
	if ok && strings.TrimSpace(f.Value(mandatory)) == "" && !attached(out.Audio, mandatory) {
		return out, domain.NewMalformedRow(in.Row, in.Schema.Name, fmt.Sprintf("required field %q is empty", mandatory))
	}
	return out, nil
}

// placeAudio decides between an inline reference and an attachment.
func placeAudio(out *Output, in Input) {
	field := in.Roles.Audio
	if field == "" {
		return
	}
	f := out.Fields

	value := f.Value(field)
	if strings.TrimSpace(value) == "" {
		value = in.ExplicitAudio
	}
	if strings.TrimSpace(value) != "" {
		if _, ok := source.SoundRef(value); ok {
			f.values[field] = value
			return
		}
		if p, ok := source.ResolveAudio(in.AudioDir, value); ok {
			f.Delete(field)
			out.Audio = &AudioAttachment{Path: p, Filename: filepath.Base(p), Fields: []string{field}}
			return
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf("audio file %q not found; kept as text", value))
		return
	}

	if in.AudioPath != "" {
		f.Delete(field)
		out.Audio = &AudioAttachment{
			Path:     in.AudioPath,
			Filename: filepath.Base(in.AudioPath),
			Fields:   []string{field},
		}
	}
}

// dedupeSoundRefs keeps at most one inline reference and drops any that
// repeat the attachment.
func dedupeSoundRefs(out *Output) {
	f := out.Fields
	seen := false
	for _, k := range f.Keys() {
		name, ok := source.SoundRef(f.values[k])
		if !ok {
			continue
		}
		if out.Audio != nil && name == out.Audio.Filename {
			f.Delete(k)
			continue
		}
		if seen {
			out.Warnings = append(out.Warnings, fmt.Sprintf("dropped second audio reference in %q", k))
			f.Delete(k)
			continue
		}
		seen = true
	}
}

func attached(a *AudioAttachment, field string) bool {
	if a == nil {
		return false
	}
	for _, f := range a.Fields {
		if f == field {
			return true
		}
	}
	return false
}
