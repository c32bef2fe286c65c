// Package ingest turns classified input into notes: it picks the deck and
// note type, maps columns, calls the generators and hands finished notes
// to the sink, one record at a time.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/japaniel/ankify/pkg/anki"
	"github.com/japaniel/ankify/pkg/audio"
	"github.com/japaniel/ankify/pkg/config"
	"github.com/japaniel/ankify/pkg/fields"
	"github.com/japaniel/ankify/pkg/langdetect"
	"github.com/japaniel/ankify/pkg/reading"
	"github.com/japaniel/ankify/pkg/source"
	"github.com/japaniel/ankify/pkg/translate"
)

// DefaultTag is applied when no tags are configured.
const DefaultTag = "ankify"

// Sink stores notes.
type Sink interface {
	AddNote(ctx context.Context, n anki.Note) (int64, error)
}

// Catalog lists what the sink can store into.
type Catalog interface {
	DeckNames(ctx context.Context) ([]string, error)
	Schemas(ctx context.Context) ([]fields.Schema, error)
}

// ArticleFetcher downloads a web page as sentences.
type ArticleFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*source.Article, error)
}

// Options are the per-run choices.
type Options struct {
	// Deck and NoteType select the destination; "" prompts and "default"
	// uses the saved preference.
	Deck     string
	NoteType string
	// Tags replaces the default tag when TagsSet is true; an empty list
	// means no tags.
	Tags    []string
	TagsSet bool
	Style   translate.Style
	// SourceLang is the declared source language, "" to detect.
	SourceLang string
	// TargetLang overrides the translation target.
	TargetLang string
	DryRun     bool
	// Resume skips file rows already handled by an earlier run.
	Resume bool
}

// Session carries everything one invocation needs. Generators may be nil:
// without a Translator the placeholder is written, without Audio no clips
// are made.
type Session struct {
	Sink       Sink
	Catalog    Catalog
	Translator translate.Translator
	Audio      audio.Synthesizer
	Detector   langdetect.Detector
	Reader     *reading.Annotator
	Fetcher    ArticleFetcher
	Prompt     Chooser

	// DB and History are optional; History needs DB.
	DB        *sql.DB
	History   *HistoryWriter
	PrefsPath string

	Out  io.Writer
	Log  *slog.Logger
	Opts Options

	// state is the interactive dominant-language history.
	state   *langdetect.State
	batchID string
	prefs   config.Prefs
	// sentences caches the destination picked for free text.
	sentences *destination
}

// NewSession returns a session with a fresh batch id and language state.
func NewSession(sink Sink, catalog Catalog, opts Options, out io.Writer, logger *slog.Logger) *Session {
	if out == nil {
		out = io.Discard
	}
	return &Session{
		Sink:    sink,
		Catalog: catalog,
		Opts:    opts,
		Out:     out,
		Log:     logger.With("component", "ingest"),
		state:   langdetect.NewState(),
		batchID: uuid.NewString(),
	}
}

// BatchID identifies the notes added by this session in the history store.
func (s *Session) BatchID() string { return s.batchID }

// LoadPrefs reads saved deck and note type choices.
func (s *Session) LoadPrefs() error {
	if s.PrefsPath == "" {
		return nil
	}
	p, err := config.LoadPrefs(s.PrefsPath)
	if err != nil {
		return err
	}
	s.prefs = p
	return nil
}

// savePrefs remembers the current choices; dry runs write nothing.
func (s *Session) savePrefs(deck, noteType string) {
	if s.Opts.DryRun || s.PrefsPath == "" {
		return
	}
	p := s.prefs
	if deck != "" {
		p.Deck = deck
	}
	if noteType != "" {
		p.NoteType = noteType
	}
	if p == s.prefs {
		return
	}
	if err := config.SavePrefs(s.PrefsPath, p); err != nil {
		s.Log.Warn("saving preferences failed", slog.String("error", err.Error()))
		return
	}
	s.prefs = p
}

// tags returns the tags for notes from a source of the given kind.
func (s *Session) tags(subtitle bool) []string {
	if s.Opts.TagsSet {
		return append([]string{}, s.Opts.Tags...)
	}
	out := []string{DefaultTag}
	if subtitle {
		out = append(out, "srt")
	}
	return out
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}

// Report counts the outcome of one batch.
type Report struct {
	Total   int
	Added   int
	Skipped int
	Failed  int
	// Placeholders counts notes that carry the translation placeholder.
	Placeholders int
	Failures     []string
}

func (r *Report) add(o Report) {
	r.Total += o.Total
	r.Added += o.Added
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Placeholders += o.Placeholders
	r.Failures = append(r.Failures, o.Failures...)
}

// Summary renders the closing line of a batch.
func (r Report) Summary(dryRun bool) string {
	verb := "added"
	if dryRun {
		verb = "would add"
	}
	msg := fmt.Sprintf("%d records: %s %d, skipped %d, failed %d",
		r.Total, verb, r.Added, r.Skipped, r.Failed)
	if r.Placeholders > 0 {
		msg += fmt.Sprintf(" (%d with placeholder text)", r.Placeholders)
	}
	return msg
}
