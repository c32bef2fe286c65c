package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Batch-fatal kinds abort a whole run, row-recoverable
// kinds are counted and the run moves on to the next record.
var (
	ErrAmbiguousInput     = errors.New("ambiguous input")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrMissingHeader      = errors.New("missing header")
	ErrEmptyData          = errors.New("empty data")
	ErrIncompatibleSchema = errors.New("incompatible note type")
	ErrLanguageAmbiguity  = errors.New("ambiguous language")
	ErrLanguageMismatch   = errors.New("language mismatch")
	ErrGeneration         = errors.New("generation failed")
	ErrMalformedRow       = errors.New("malformed row")
)

// IncompatibleSchemaError reports a note type whose mandatory field cannot be
// filled from the input columns.
type IncompatibleSchemaError struct {
	Schema      string
	Field       string
	Suggestions []string
}

func (e *IncompatibleSchemaError) Error() string {
	msg := fmt.Sprintf("note type %q: required field %q is not mapped to any column", e.Schema, e.Field)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(". Found similar columns: %s. Consider renaming one of them to %q",
			strings.Join(e.Suggestions, ", "), e.Field)
	}
	return msg
}

func (e *IncompatibleSchemaError) Unwrap() error { return ErrIncompatibleSchema }

// LanguageMismatchError reports a declared source language that contradicts detection.
type LanguageMismatchError struct {
	Declared string
	Detected string
}

func (e *LanguageMismatchError) Error() string {
	return fmt.Sprintf("language mismatch: declared %q but detected %q", e.Declared, e.Detected)
}

func (e *LanguageMismatchError) Unwrap() error { return ErrLanguageMismatch }

// LanguageAmbiguityError reports sentences whose language could not be settled.
type LanguageAmbiguityError struct {
	Count      int
	Previews   []string
	Confidence float64
}

func (e *LanguageAmbiguityError) Error() string {
	if e.Count <= 1 && len(e.Previews) <= 1 {
		preview := ""
		if len(e.Previews) == 1 {
			preview = e.Previews[0]
		}
		return fmt.Sprintf("ambiguous language (confidence %.2f) for %q: specify the source language", e.Confidence, preview)
	}
	return fmt.Sprintf("ambiguous language for %d sentences (e.g. %s): specify the source language",
		e.Count, strings.Join(quoteAll(e.Previews), ", "))
}

func (e *LanguageAmbiguityError) Unwrap() error { return ErrLanguageAmbiguity }

// GenerationError wraps a translation, audio or detection backend failure.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

// RowError ties a failure to a 1-based record position and a note type.
type RowError struct {
	Row    int
	Schema string
	Err    error
}

func (e *RowError) Error() string {
	if e.Schema == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Schema, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// NewMalformedRow builds a RowError for a record that cannot form a valid note.
func NewMalformedRow(row int, schema, reason string) *RowError {
	return &RowError{Row: row, Schema: schema, Err: fmt.Errorf("%w: %s", ErrMalformedRow, reason)}
}

// IsRowRecoverable reports whether err should only skip the current record.
func IsRowRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrGeneration) ||
		errors.Is(err, ErrMalformedRow) ||
		errors.Is(err, ErrLanguageMismatch) ||
		errors.Is(err, ErrLanguageAmbiguity)
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
