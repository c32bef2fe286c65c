package langdetect

import (
	"fmt"

	"github.com/japaniel/ankify/pkg/domain"
)

// Threshold is the confidence below which a detection is ambiguous.
const Threshold = 0.70

const (
	previewRunes = 30
	maxPreviews  = 3
)

// Detection is a detector verdict for one text.
type Detection struct {
	Lang       string
	Confidence float64
}

// Ambiguous reports whether the confidence is under Threshold.
func (d Detection) Ambiguous() bool { return d.Confidence < Threshold }

// Detector identifies the language of a text.
type Detector interface {
	Detect(text string) (Detection, error)
}

// Resolution is the language decision for one sentence. Skip means the
// sentence is already in the target language. Err holds a row-level failure.
type Resolution struct {
	Text string
	Lang string
	Skip bool
	Err  error
}

// Resolver applies the source/target language policy to sentences.
type Resolver struct {
	Detector Detector
	// Source is the declared source language, empty to auto-detect.
	Source string
	// Target sentences are skipped; empty disables the check.
	Target string
}

// ResolveOne decides the language of a single sentence. An ambiguous
// detection falls back to the dominant language of state; without one it
// fails with a *domain.LanguageAmbiguityError. Confident detections are
// recorded in state, which may be nil.
func (r *Resolver) ResolveOne(text string, state *State) (Resolution, error) {
	res := Resolution{Text: text}
	d, err := r.detect(text)
	if err != nil {
		return res, err
	}

	if r.Target != "" && d.Lang == r.Target {
		res.Lang, res.Skip = d.Lang, true
		return res, nil
	}

	if r.Source != "" {
		if d.Lang != r.Source {
			return res, &domain.LanguageMismatchError{Declared: r.Source, Detected: d.Lang}
		}
		res.Lang = r.Source
		return res, nil
	}

	if d.Ambiguous() {
		lang, ok := state.Dominant()
		if !ok {
			return res, &domain.LanguageAmbiguityError{
				Count:      1,
				Previews:   []string{text},
				Confidence: d.Confidence,
			}
		}
		res.Lang = lang
		return res, nil
	}

	if state != nil {
		state.Record(d.Lang)
	}
	res.Lang = d.Lang
	return res, nil
}

// ResolveBatch decides languages for a batch in two passes: confident
// detections vote, then ambiguous sentences take the plurality language.
// Per-sentence failures are stored in Resolution.Err. When no confident
// sentence exists to settle the ambiguous ones, each of them carries an
// error and the returned *domain.LanguageAmbiguityError previews up to three.
func (r *Resolver) ResolveBatch(texts []string) ([]Resolution, error) {
	out := make([]Resolution, len(texts))
	votes := NewState()
	var ambiguous []int
	var confidence []float64

	for i, text := range texts {
		out[i] = Resolution{Text: text}
		d, err := r.detect(text)
		if err != nil {
			out[i].Err = err
			continue
		}
		if r.Target != "" && d.Lang == r.Target {
			out[i].Lang, out[i].Skip = d.Lang, true
			continue
		}
		if r.Source != "" {
			if d.Lang != r.Source {
				out[i].Err = &domain.LanguageMismatchError{Declared: r.Source, Detected: d.Lang}
				continue
			}
			out[i].Lang = r.Source
			continue
		}
		if d.Ambiguous() {
			ambiguous = append(ambiguous, i)
			confidence = append(confidence, d.Confidence)
			continue
		}
		votes.Record(d.Lang)
		out[i].Lang = d.Lang
	}

	if len(ambiguous) == 0 {
		return out, nil
	}

	if lang, ok := votes.Dominant(); ok {
		for _, i := range ambiguous {
			out[i].Lang = lang
		}
		return out, nil
	}

	previews := make([]string, 0, maxPreviews)
	for n, i := range ambiguous {
		if n < maxPreviews {
			previews = append(previews, Preview(texts[i]))
		}
		out[i].Err = &domain.LanguageAmbiguityError{
			Count:      1,
			Previews:   []string{texts[i]},
			Confidence: confidence[n],
		}
	}
	return out, &domain.LanguageAmbiguityError{Count: len(ambiguous), Previews: previews}
}

func (r *Resolver) detect(text string) (Detection, error) {
	if r.Detector == nil {
		return Detection{}, &domain.GenerationError{Stage: "detect language", Err: fmt.Errorf("no detector configured")}
	}
	d, err := r.Detector.Detect(text)
	if err != nil {
		return Detection{}, &domain.GenerationError{Stage: "detect language", Err: err}
	}
	if d.Lang == "" {
		return Detection{}, &domain.GenerationError{Stage: "detect language", Err: fmt.Errorf("no language detected")}
	}
	return d, nil
}

// Preview shortens text to its first 30 runes followed by "...".
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) > previewRunes {
		runes = runes[:previewRunes]
	}
	return string(runes) + "..."
}

// TargetFor picks the language to translate into. An explicit target wins;
// otherwise English goes to Chinese, the other supported languages go to
// English and everything else defaults to Chinese.
func TargetFor(source, target string) string {
	if target != "" {
		return target
	}
	switch source {
	case "en", "":
		return "zh"
	case "zh", "ja", "es", "fr", "de":
		return "en"
	}
	return "zh"
}
