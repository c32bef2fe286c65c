package audio

import (
	"context"
	"log/slog"
	"os"

	"github.com/japaniel/ankify/pkg/db"
)

// Cached reuses clips recorded in the history database. Entries whose file
// has disappeared are regenerated.
type Cached struct {
	next  Synthesizer
	store db.DBExecutor
	log   *slog.Logger
}

// NewCached wraps next with a cache backed by store.
func NewCached(next Synthesizer, store db.DBExecutor, logger *slog.Logger) *Cached {
	return &Cached{next: next, store: store, log: logger.With("adapter", "audio_cache")}
}

// Name implements Synthesizer.
func (c *Cached) Name() string { return c.next.Name() }

// Synthesize implements Synthesizer.
func (c *Cached) Synthesize(ctx context.Context, text string) (string, error) {
	provider := c.next.Name()
	path, ok, err := db.LookupAudio(c.store, text, provider)
	if err != nil {
		c.log.WarnContext(ctx, "audio cache lookup failed", slog.String("error", err.Error()))
	}
	if ok {
		if _, statErr := os.Stat(path); statErr == nil {
			c.log.DebugContext(ctx, "audio cache hit", slog.String("path", path))
			return path, nil
		}
		if err := db.ForgetAudio(c.store, text, provider); err != nil {
			c.log.WarnContext(ctx, "audio cache cleanup failed", slog.String("error", err.Error()))
		}
	}

	path, err = c.next.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	if err := db.StoreAudio(c.store, db.AudioEntry{Text: text, Provider: provider, Path: path}); err != nil {
		c.log.WarnContext(ctx, "audio cache store failed", slog.String("error", err.Error()))
	}
	return path, nil
}
