package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/japaniel/ankify/pkg/assemble"
	"github.com/japaniel/ankify/pkg/db"
	"github.com/japaniel/ankify/pkg/domain"
	"github.com/japaniel/ankify/pkg/fields"
	"github.com/japaniel/ankify/pkg/langdetect"
	"github.com/japaniel/ankify/pkg/source"
)

// Run dispatches classified input to the matching runner.
func (s *Session) Run(ctx context.Context, in source.Input) (Report, error) {
	switch in.Mode {
	case source.ModeInteractive:
		return s.RunInteractive(ctx)
	case source.ModeSentences:
		return s.RunSentences(ctx, in.Values)
	case source.ModePaths:
		return s.RunPaths(ctx, in.Values)
	}
	return Report{}, fmt.Errorf("unknown input mode %v", in.Mode)
}

// RunPaths processes each file as its own batch. A fatal error in one file
// does not stop the others; all of them are returned joined.
func (s *Session) RunPaths(ctx context.Context, paths []string) (Report, error) {
	var total Report
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		s.printf("Processing %s\n", p)
		rep, err := s.RunFile(ctx, p)
		total.add(rep)
		if err != nil {
			s.printf("  %s: %v\n", p, err)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		s.printf("  %s\n", rep.Summary(s.Opts.DryRun))
	}
	return total, errors.Join(errs...)
}

// RunFile processes one subtitle, table or text file.
func (s *Session) RunFile(ctx context.Context, path string) (Report, error) {
	f, err := source.Open(path)
	if err != nil {
		return Report{}, err
	}
	switch f.Kind {
	case source.KindSubtitle:
		return s.runSubtitles(ctx, f)
	case source.KindTable:
		return s.runTable(ctx, f)
	}
	id, start := s.trackSource("text", f.Path, filepath.Base(f.Path), "")
	return s.runSentences(ctx, f.Lines, id, start)
}

// RunSentences processes free text sentences.
func (s *Session) RunSentences(ctx context.Context, texts []string) (Report, error) {
	return s.runSentences(ctx, texts, 0, 0)
}

// RunArticle fetches a web page and processes its sentences.
func (s *Session) RunArticle(ctx context.Context, rawURL string) (Report, error) {
	if s.Fetcher == nil {
		return Report{}, errors.New("no article fetcher configured")
	}
	art, err := s.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Report{}, err
	}
	if art.Title != "" {
		s.printf("Article: %s\n", art.Title)
	}
	if art.Byline != "" || art.SiteName != "" {
		s.printf("  %s\n", strings.Trim(art.Byline+" / "+art.SiteName, " /"))
	}
	s.Log.Debug("article fetched",
		slog.String("url", art.URL),
		slog.String("site", art.SiteName),
		slog.Int("sentences", len(art.Sentences)))
	if len(art.Sentences) == 0 {
		return Report{}, fmt.Errorf("%w: no sentences found at %s", domain.ErrEmptyData, rawURL)
	}
	id, start := s.trackSource("article", "", art.Title, art.URL)
	return s.runSentences(ctx, art.Sentences, id, start)
}

func (s *Session) resolver() *langdetect.Resolver {
	return &langdetect.Resolver{
		Detector: s.Detector,
		Source:   s.Opts.SourceLang,
		Target:   s.Opts.TargetLang,
	}
}

func (s *Session) runSentences(ctx context.Context, texts []string, sourceID int64, start int) (Report, error) {
	var clean []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return Report{}, fmt.Errorf("%w: no sentences", domain.ErrEmptyData)
	}

	r := s.resolver()
	var resolved []langdetect.Resolution
	if len(clean) == 1 {
		res, err := r.ResolveOne(clean[0], s.state)
		if err != nil {
			res.Err = err
		}
		resolved = []langdetect.Resolution{res}
	} else {
		var err error
		resolved, err = r.ResolveBatch(clean)
		if err != nil {
			if !errors.Is(err, domain.ErrLanguageAmbiguity) {
				return Report{}, err
			}
			s.printf("warning: %v\n", err)
		}
	}

	dest, err := s.sentenceDestination(ctx)
	if err != nil {
		return Report{}, err
	}
	rep, err := s.processResolved(ctx, dest, resolved, sourceID, start)
	if err == nil && len(clean) == 1 && rep.Total == 1 && rep.Failed == 1 {
		// A lone sentence that could not be added fails the request.
		if res := resolved[0]; res.Err != nil {
			err = res.Err
		} else {
			err = errors.New(rep.Failures[0])
		}
	}
	return rep, err
}

// processResolved runs sentences whose language is settled. Row numbers
// are 1-based positions in resolved.
func (s *Session) processResolved(ctx context.Context, dest destination, resolved []langdetect.Resolution, sourceID int64, start int) (Report, error) {
	var rep Report
	tags := s.tags(false)
	for i, res := range resolved {
		row := i + 1
		rep.Total++
		rec := record{row: row, dest: dest, tags: tags, sourceID: sourceID, generate: true}

		switch {
		case row <= start:
			rep.Skipped++
			continue
		case res.Err != nil:
			if err := s.rowFailed(ctx, &rep, rec, res.Err); err != nil {
				return rep, err
			}
			s.remember(sourceID, row, nil)
			continue
		case res.Skip:
			rep.Skipped++
			s.printf("  - row %d: already in %s, skipped\n", row, res.Lang)
			s.remember(sourceID, row, nil)
			continue
		}

		rec.lang = res.Lang
		rec.values = assemble.NewFields(dest.schema.Fields)
		if res.Lang == "zh" {
			rec.mode = assemble.Reverse
			rec.roles = fields.DetectRoles(dest.schema.Fields, nil)
			if err := rec.values.Set(rec.roles.Hanzi, res.Text); err != nil {
				reason := fmt.Sprintf("note type has no field for Chinese text: %v", err)
				if err := s.rowFailed(ctx, &rep, rec, domain.NewMalformedRow(row, dest.schema.Name, reason)); err != nil {
					return rep, err
				}
				s.remember(sourceID, row, nil)
				continue
			}
		} else {
			rec.mode = assemble.Forward
			rec.text = res.Text
			m := (&fields.Matcher{}).
				With(fields.RoleSentence, res.Lang).
				With(fields.RoleHanzi, langdetect.TargetFor(res.Lang, s.Opts.TargetLang))
			rec.roles = fields.DetectRoles(dest.schema.Fields, m)
		}

		if err := s.process(ctx, rec, &rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// sentenceDestination picks deck and note type for free text once per session.
func (s *Session) sentenceDestination(ctx context.Context) (destination, error) {
	if s.sentences != nil {
		return *s.sentences, nil
	}
	all, err := s.Catalog.Schemas(ctx)
	if err != nil {
		return destination{}, fmt.Errorf("list note types: %w", err)
	}
	schema, err := s.selectSchema(fields.Suitable(all), all)
	if err != nil {
		return destination{}, err
	}
	deck, err := s.selectDeck(ctx)
	if err != nil {
		return destination{}, err
	}
	s.savePrefs(deck, schema.Name)
	s.sentences = &destination{deck: deck, schema: schema}
	return *s.sentences, nil
}

func (s *Session) runSubtitles(ctx context.Context, f *source.File) (Report, error) {
	if !source.LooksMandarin(f.Subtitles) {
		return Report{}, fmt.Errorf("%w: subtitles do not look like Mandarin", domain.ErrUnsupportedFormat)
	}
	subs := f.Subtitles
	s.printf("  %d subtitle lines\n", len(subs))

	all, err := s.Catalog.Schemas(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list note types: %w", err)
	}
	schema, err := s.selectSchema(fields.Suitable(all), all)
	if err != nil {
		return Report{}, err
	}
	deck, err := s.selectDeck(ctx)
	if err != nil {
		return Report{}, err
	}
	s.savePrefs(deck, schema.Name)

	dest := destination{deck: deck, schema: schema}
	roles := fields.DetectRoles(schema.Fields, nil)
	if roles.Hanzi == "" {
		return Report{}, fmt.Errorf("%w: note type %q has no field for the subtitle text", domain.ErrIncompatibleSchema, schema.Name)
	}
	tags := s.tags(true)
	id, start := s.trackSource("file", f.Path, filepath.Base(f.Path), "")

	var rep Report
	for i, sub := range subs {
		row := i + 1
		rep.Total++
		if row <= start {
			rep.Skipped++
			continue
		}
		values := assemble.NewFields(schema.Fields)
		if err := values.Set(roles.Hanzi, sub.Text); err != nil {
			return rep, err
		}
		rec := record{
			row:      row,
			dest:     dest,
			roles:    roles,
			mode:     assemble.Reverse,
			values:   values,
			lang:     "zh",
			generate: true,
			tags:     tags,
			sourceID: id,
		}
		if err := s.process(ctx, rec, &rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

func (s *Session) runTable(ctx context.Context, f *source.File) (Report, error) {
	all, err := s.Catalog.Schemas(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list note types: %w", err)
	}

	candidates := compatibleSchemas(all, f.Headers)
	if want := strings.TrimSpace(s.Opts.NoteType); want != "" && !strings.EqualFold(want, "default") {
		for _, sc := range all {
			if sc.Name != want {
				continue
			}
			if ok, err := fields.CheckCompatible(sc, f.Headers); !ok {
				return Report{}, err
			}
			candidates = []fields.Schema{sc}
		}
	}
	schema, err := s.selectSchema(candidates, all)
	if err != nil {
		return Report{}, err
	}
	deck, err := s.selectDeck(ctx)
	if err != nil {
		return Report{}, err
	}
	s.savePrefs(deck, schema.Name)

	mapping := fields.MapHeaders(f.Headers, schema.Fields)
	s.printf("  Field mapping for %q:\n", schema.Name)
	for _, b := range mapping.Bindings() {
		s.printf("    %s <- %s\n", b.Field, b.Column)
	}
	if unmapped := mapping.Unmapped(schema.Fields); len(unmapped) > 0 {
		s.printf("  ! fields without a column: %s\n", strings.Join(unmapped, ", "))
	}

	audioCols := source.AudioColumns(f.Headers)
	if missing := source.MissingAudio(f.Dir(), f.Records, audioCols); len(missing) > 0 {
		for _, m := range missing {
			s.printf("  ! missing audio %s\n", m)
		}
		return Report{}, fmt.Errorf("%d audio files not found", len(missing))
	}
	explicit := unboundColumns(mapping, audioCols)

	generate := fields.IsChineseTable(f.Headers)
	if !generate {
		s.Log.Info("table is not a Chinese vocabulary list, generation disabled",
			slog.String("path", f.Path))
	}

	dest := destination{deck: deck, schema: schema}
	roles := fields.DetectRoles(schema.Fields, nil)
	tags := s.tags(false)
	id, start := s.trackSource("file", f.Path, filepath.Base(f.Path), "")

	var rep Report
	for _, r := range f.Records {
		rep.Total++
		if r.Row <= start {
			rep.Skipped++
			continue
		}
		rec := record{
			row:           r.Row,
			dest:          dest,
			roles:         roles,
			mode:          assemble.Reverse,
			values:        assemble.FromMapping(schema.Fields, mapping, r),
			lang:          "zh",
			generate:      generate,
			explicitAudio: firstValue(r, explicit),
			audioDir:      f.Dir(),
			tags:          tags,
			sourceID:      id,
		}
		if err := s.process(ctx, rec, &rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// unboundColumns returns the columns no field of m reads from.
func unboundColumns(m fields.Mapping, columns []string) []string {
	bound := make(map[string]bool)
	for _, b := range m.Bindings() {
		bound[b.Column] = true
	}
	var out []string
	for _, c := range columns {
		if !bound[c] {
			out = append(out, c)
		}
	}
	return out
}

func firstValue(r source.Record, columns []string) string {
	for _, c := range columns {
		if v := strings.TrimSpace(r.Get(c)); v != "" {
			return v
		}
	}
	return ""
}

// trackSource registers a source in the history store and returns its id
// with the row to resume after. Without a store, or in a dry run, it
// returns zeros.
func (s *Session) trackSource(kind, path, title, url string) (int64, int) {
	if s.DB == nil || s.Opts.DryRun {
		return 0, 0
	}
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	id, err := db.CreateOrGetSource(s.DB, kind, path, title, url)
	if err != nil {
		s.Log.Warn("history: register source failed", slog.String("error", err.Error()))
		return 0, 0
	}
	if !s.Opts.Resume {
		if err := db.ResetSourceProgress(s.DB, id); err != nil {
			s.Log.Warn("history: reset progress failed", slog.String("error", err.Error()))
		}
		return id, 0
	}
	start, err := db.GetSourceProgress(s.DB, id)
	if err != nil {
		s.Log.Warn("history: read progress failed", slog.String("error", err.Error()))
		return id, 0
	}
	if start > 0 {
		s.printf("  resuming after row %d\n", start)
	}
	return id, start
}

// RunInteractive reads sentences until an empty line or end of input.
// When a sentence's language is unclear the user is asked for it, and the
// answer feeds the session language state.
func (s *Session) RunInteractive(ctx context.Context) (Report, error) {
	if s.Prompt == nil {
		return Report{}, errors.New("interactive mode needs a terminal")
	}
	s.printf("Enter sentences, one per line. An empty line ends the session.\n")

	r := s.resolver()
	var total Report
	for ctx.Err() == nil {
		line, err := s.Prompt.Ask("> ")
		if errors.Is(err, io.EOF) || (err == nil && line == "") {
			break
		}
		if err != nil {
			return total, err
		}

		res, err := r.ResolveOne(line, s.state)
		var amb *domain.LanguageAmbiguityError
		if errors.As(err, &amb) {
			code, aerr := s.Prompt.Ask(fmt.Sprintf("Language of %q is unclear; enter its code (e.g. en, zh), empty to skip: ", langdetect.Preview(line)))
			if aerr != nil && !errors.Is(aerr, io.EOF) {
				return total, aerr
			}
			code = strings.ToLower(strings.TrimSpace(code))
			if code == "" {
				total.Total++
				total.Skipped++
				continue
			}
			s.state.Record(code)
			res, err = langdetect.Resolution{Text: line, Lang: code}, nil
			if s.Opts.TargetLang != "" && code == s.Opts.TargetLang {
				res.Skip = true
			}
		}
		if err != nil {
			res.Err = err
		}

		dest, err := s.sentenceDestination(ctx)
		if err != nil {
			return total, err
		}
		rep, err := s.processResolved(ctx, dest, []langdetect.Resolution{res}, 0, 0)
		total.add(rep)
		if err != nil {
			return total, err
		}
	}
	s.Log.Debug("interactive session ended", slog.Any("languages", s.state.Counts()))
	return total, nil
}
