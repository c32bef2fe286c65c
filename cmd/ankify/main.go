package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/japaniel/ankify/pkg/anki"
	"github.com/japaniel/ankify/pkg/audio"
	"github.com/japaniel/ankify/pkg/config"
	"github.com/japaniel/ankify/pkg/db"
	"github.com/japaniel/ankify/pkg/ingest"
	"github.com/japaniel/ankify/pkg/langdetect"
	"github.com/japaniel/ankify/pkg/reading"
	"github.com/japaniel/ankify/pkg/source"
	"github.com/japaniel/ankify/pkg/translate"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("ankify: %v", err)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ankify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	deckFlag := fs.String("deck", "", `Deck to add notes to ("default" = last used)`)
	noteTypeFlag := fs.String("note-type", "", `Note type to use ("default" = last used)`)
	tagsFlag := fs.String("tags", "", "Comma separated tags; empty for none")
	styleFlag := fs.String("style", "", "Translation style: written, formal or conversational")
	sourceLangFlag := fs.String("source-lang", "", "Source language code, detected when empty")
	targetLangFlag := fs.String("target-lang", "", "Translation target language code")
	dryRunFlag := fs.Bool("dry-run", false, "Show the notes without adding them")
	urlFlag := fs.String("url", "", "Web article to take sentences from")
	resumeFlag := fs.Bool("resume", false, "Skip file rows handled by an earlier run")
	checkFlag := fs.Bool("check", false, "Check the AnkiConnect connection and exit")
	configFlag := fs.String("config", "", "Path to YAML config file")
	dbFlag := fs.String("db", "", "Path to SQLite history database")
	noHistoryFlag := fs.Bool("no-history", false, "Do not record history or cache audio")
	debugFlag := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tagsSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "tags" {
			tagsSet = true
		}
	})

	cfg, err := config.Load(*configFlag)
	if err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	if *debugFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	client := anki.NewClientWithURL(cfg.Anki.URL, logger)
	version, err := client.Version(ctx)
	if err != nil {
		return fmt.Errorf("cannot reach AnkiConnect at %s (is Anki running?): %w", cfg.Anki.URL, err)
	}
	if *checkFlag {
		fmt.Fprintf(stdout, "AnkiConnect version %d at %s\n", version, cfg.Anki.URL)
		if err := cfg.CheckCredentials(); err != nil {
			fmt.Fprintf(stdout, "warning: %v\n", err)
		}
		return nil
	}

	var input source.Input
	if *urlFlag == "" {
		input, err = source.Classify(fs.Args())
		if err != nil {
			return err
		}
	} else if fs.NArg() > 0 {
		return fmt.Errorf("-url cannot be combined with other input")
	}

	style, err := translate.ParseStyle(firstNonEmpty(*styleFlag, cfg.Translate.Style))
	if err != nil {
		return err
	}
	opts := ingest.Options{
		Deck:       firstNonEmpty(*deckFlag, cfg.Anki.Deck),
		NoteType:   *noteTypeFlag,
		Style:      style,
		SourceLang: strings.ToLower(*sourceLangFlag),
		TargetLang: strings.ToLower(*targetLangFlag),
		DryRun:     *dryRunFlag,
		Resume:     *resumeFlag,
	}
	switch {
	case tagsSet:
		opts.Tags, opts.TagsSet = parseTags(*tagsFlag), true
	case cfg.Anki.Tags != "":
		opts.Tags, opts.TagsSet = parseTags(cfg.Anki.Tags), true
	}

	sess := ingest.NewSession(client, client, opts, stdout, logger)
	sess.Detector = langdetect.Whatlang{}
	sess.Fetcher = source.NewArticleFetcher()
	sess.Prompt = ingest.NewPrompter(stdin, stdout)
	sess.Translator = newTranslator(cfg, logger)

	var conn *sql.DB
	if !cfg.History.Disabled && !*noHistoryFlag {
		path := firstNonEmpty(*dbFlag, cfg.History.Path)
		conn, err = openHistory(path)
		if err != nil {
			logger.Warn("history disabled", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			defer conn.Close()
			sess.DB = conn
			sess.History = ingest.NewHistoryWriter(conn, 10, time.Second)
			sess.History.OnError = func(err error) {
				logger.Warn("history write failed", slog.String("error", err.Error()))
			}
		}
	}
	sess.Audio = newSynthesizer(cfg, conn, logger)

	if opts.SourceLang == "ja" || opts.TargetLang == "ja" {
		reader, err := reading.NewAnnotator()
		if err != nil {
			logger.Warn("japanese readings unavailable", slog.String("error", err.Error()))
		} else {
			sess.Reader = reader
		}
	}

	if p, err := config.PrefsPath(); err == nil {
		sess.PrefsPath = p
		if err := sess.LoadPrefs(); err != nil {
			logger.Warn("ignoring saved preferences", slog.String("error", err.Error()))
		}
	}

	var rep ingest.Report
	if *urlFlag != "" {
		fmt.Fprintf(stdout, "Fetching %s...\n", *urlFlag)
		rep, err = sess.RunArticle(ctx, *urlFlag)
	} else {
		rep, err = sess.Run(ctx, input)
	}
	fmt.Fprintln(stdout, rep.Summary(opts.DryRun))

	if sess.History != nil {
		if cerr := sess.History.Close(); cerr != nil {
			logger.Warn("history flush failed", slog.String("error", cerr.Error()))
		}
	}
	return err
}

func newTranslator(cfg *config.Config, logger *slog.Logger) translate.Translator {
	t := cfg.Translate
	switch t.Provider {
	case "openai":
		if t.OpenAIAPIKey == "" {
			logger.Warn("OPENAI_API_KEY not set, translations will be left as placeholders")
			return nil
		}
		return translate.NewOpenAI(translate.OpenAIConfig{
			APIKey:  t.OpenAIAPIKey,
			BaseURL: t.OpenAIBaseURL,
			Model:   t.OpenAIModel,
		}, logger)
	case "anthropic":
		if t.AnthropicKey == "" {
			logger.Warn("ANTHROPIC_API_KEY not set, translations will be left as placeholders")
			return nil
		}
		return translate.NewAnthropic(translate.AnthropicConfig{
			APIKey: t.AnthropicKey,
			Model:  t.AnthropicModel,
		}, logger)
	}
	return nil
}

func newSynthesizer(cfg *config.Config, conn *sql.DB, logger *slog.Logger) audio.Synthesizer {
	a := cfg.Audio
	dir := firstNonEmpty(a.Dir, audio.DefaultDir())

	var s audio.Synthesizer
	switch a.Provider {
	case "google":
		s = audio.NewGoogleTranslate(dir, logger)
	case "elevenlabs":
		if a.ElevenLabsKey == "" {
			logger.Warn("ELEVENLABS_API_KEY not set, audio disabled")
			return nil
		}
		if a.ElevenLabsVoice == "" {
			logger.Warn("ELEVENLABS_VOICE_ID not set, audio disabled")
			return nil
		}
		s = audio.NewElevenLabs(audio.ElevenLabsConfig{
			APIKey:  a.ElevenLabsKey,
			VoiceID: a.ElevenLabsVoice,
			Dir:     dir,
		}, logger)
	default:
		return nil
	}
	if conn != nil {
		return audio.NewCached(s, conn, logger)
	}
	return s
}

func openHistory(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	return db.Open(path)
}

func parseTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
