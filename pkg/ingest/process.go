package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/japaniel/ankify/pkg/anki"
	"github.com/japaniel/ankify/pkg/assemble"
	"github.com/japaniel/ankify/pkg/db"
	"github.com/japaniel/ankify/pkg/domain"
	"github.com/japaniel/ankify/pkg/fields"
	"github.com/japaniel/ankify/pkg/langdetect"
	"github.com/japaniel/ankify/pkg/translate"
)

// destination is where a batch writes its notes.
type destination struct {
	deck   string
	schema fields.Schema
}

// record is one unit of work for process.
type record struct {
	row    int
	dest   destination
	roles  fields.Roles
	mode   assemble.Mode
	values *assemble.Fields
	// text is the input sentence in Forward mode.
	text string
	// lang is the language of the supplied side.
	lang string
	// generate is false for tables that are not Chinese vocabulary lists.
	generate      bool
	explicitAudio string
	audioDir      string
	tags          []string
	sourceID      int64
}

// process turns one record into a note. Row-level failures are counted in
// rep; the returned error aborts the batch.
func (s *Session) process(ctx context.Context, rec record, rep *Report) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Every row that does not abort the batch counts as handled for resume.
	var stored *db.Note
	defer func() {
		if err == nil {
			s.remember(rec.sourceID, rec.row, stored)
		}
	}()

	decision := assemble.Plan(assemble.PlanInput{
		Roles:         rec.roles,
		Values:        rec.values,
		Mode:          rec.mode,
		Source:        rec.text,
		ExplicitAudio: rec.explicitAudio != "",
	})
	if !rec.generate {
		decision = assemble.Decision{Text: decision.Text}
	}

	var tr *assemble.Translation
	if decision.Translate && s.Translator != nil {
		tr, err = s.translate(ctx, rec, decision.Text)
		if err != nil {
			return s.rowFailed(ctx, rep, rec, err)
		}
	}

	var audioPath string
	if decision.Synthesize && s.Audio != nil {
		if speech := decision.SpeechText(rec.mode, tr); speech != "" {
			audioPath, err = s.Audio.Synthesize(ctx, speech)
			if err != nil {
				return s.rowFailed(ctx, rep, rec, err)
			}
		}
	}

	out, err := assemble.Assemble(assemble.Input{
		Row:           rec.row,
		Schema:        rec.dest.schema,
		Roles:         rec.roles,
		Mode:          rec.mode,
		Decision:      decision,
		Values:        rec.values,
		Source:        rec.text,
		Translation:   tr,
		AudioPath:     audioPath,
		ExplicitAudio: rec.explicitAudio,
		AudioDir:      rec.audioDir,
	})
	for _, w := range out.Warnings {
		s.printf("  ! row %d: %s\n", rec.row, w)
	}
	if err != nil {
		return s.rowFailed(ctx, rep, rec, err)
	}
	if out.Placeholder {
		rep.Placeholders++
	}

	note := anki.Note{
		Deck:   rec.dest.deck,
		Model:  rec.dest.schema.Name,
		Fields: out.Fields.Map(),
		Tags:   rec.tags,
	}
	if a := out.Audio; a != nil {
		note.Audio = &anki.Audio{Path: a.Path, Filename: a.Filename, Fields: a.Fields}
	}

	if s.Opts.DryRun {
		s.preview(rec.row, note, out.Fields.Keys())
		rep.Added++
		return nil
	}

	id, err := s.Sink.AddNote(ctx, note)
	if err != nil {
		var rejected *anki.NoteRejectedError
		if errors.As(err, &rejected) {
			rep.Failed++
			msg := fmt.Sprintf("row %d: %s", rec.row, rejected.Reason)
			rep.Failures = append(rep.Failures, msg)
			s.printf("  x %s\n", msg)
			return nil
		}
		return fmt.Errorf("row %d: %w", rec.row, err)
	}

	rep.Added++
	s.printf("  + row %d: note %d\n", rec.row, id)
	stored = &db.Note{
		BatchID:  s.batchID,
		SourceID: rec.sourceID,
		Row:      rec.row,
		NoteID:   id,
		Deck:     note.Deck,
		Model:    note.Model,
		Fields:   note.Fields,
	}
	return nil
}

// translate asks the translator for the missing side of rec.
func (s *Session) translate(ctx context.Context, rec record, text string) (*assemble.Translation, error) {
	src := rec.lang
	if rec.mode == assemble.Reverse && src == "" {
		src = "zh"
	}
	target := langdetect.TargetFor(src, s.Opts.TargetLang)

	res, err := s.Translator.Translate(ctx, translate.Request{
		Text:   text,
		Source: src,
		Target: target,
		Style:  s.Opts.Style,
	})
	if err != nil {
		return nil, err
	}

	pron := strings.TrimSpace(res.Pronunciation)
	if pron == "" && s.Reader != nil {
		switch {
		case target == "ja":
			pron = s.Reader.Reading(res.Translation)
		case src == "ja":
			pron = s.Reader.Reading(text)
		}
	}

	if rec.mode == assemble.Forward {
		return &assemble.Translation{Hanzi: res.Translation, Pinyin: pron}, nil
	}
	return &assemble.Translation{Hanzi: text, Pinyin: pron, English: res.Translation}, nil
}

// rowFailed counts a recoverable failure and reports whether the batch can
// go on.
func (s *Session) rowFailed(ctx context.Context, rep *Report, rec record, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !domain.IsRowRecoverable(err) {
		return fmt.Errorf("row %d: %w", rec.row, err)
	}
	var rowErr *domain.RowError
	if !errors.As(err, &rowErr) {
		err = &domain.RowError{Row: rec.row, Schema: rec.dest.schema.Name, Err: err}
	}
	rep.Failed++
	rep.Failures = append(rep.Failures, err.Error())
	s.printf("  x %v\n", err)
	s.Log.Debug("row failed", slog.Int("row", rec.row), slog.String("error", err.Error()))
	return nil
}

// remember hands a handled row to the history writer.
func (s *Session) remember(sourceID int64, row int, note *db.Note) {
	if s.History == nil || s.Opts.DryRun {
		return
	}
	if sourceID == 0 && note == nil {
		return
	}
	if err := s.History.Record(Entry{SourceID: sourceID, Row: row, Note: note}); err != nil {
		s.Log.Warn("history write failed", slog.Int("row", row), slog.String("error", err.Error()))
	}
}

// preview prints what a dry run would send.
func (s *Session) preview(row int, note anki.Note, keys []string) {
	s.printf("[dry run] row %d -> deck %q, note type %q\n", row, note.Deck, note.Model)
	for _, k := range keys {
		s.printf("    %s: %s\n", k, note.Fields[k])
	}
	if note.Audio != nil {
		s.printf("    %s: <audio %s>\n", strings.Join(note.Audio.Fields, ", "), note.Audio.Filename)
	}
	if len(note.Tags) > 0 {
		s.printf("    tags: %s\n", strings.Join(note.Tags, " "))
	}
}
