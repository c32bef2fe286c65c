package audio

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleURL = "https://translate.google.com/translate_tts"

// GoogleTranslate uses the unauthenticated Google Translate speech endpoint.
type GoogleTranslate struct {
	baseURL    string
	dir        string
	lang       string
	httpClient *http.Client
	log        *slog.Logger
}

// NewGoogleTranslate writes Mandarin clips into dir.
func NewGoogleTranslate(dir string, logger *slog.Logger) *GoogleTranslate {
	return NewGoogleTranslateWithURL(defaultGoogleURL, dir, logger)
}

// NewGoogleTranslateWithURL creates a GoogleTranslate with a custom endpoint (for testing).
func NewGoogleTranslateWithURL(baseURL, dir string, logger *slog.Logger) *GoogleTranslate {
	if dir == "" {
		dir = DefaultDir()
	}
	return &GoogleTranslate{
		baseURL:    baseURL,
		dir:        dir,
		lang:       "zh-CN",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With("adapter", "google_tts"),
	}
}

// Name implements Synthesizer.
func (g *GoogleTranslate) Name() string { return "google" }

// Synthesize implements Synthesizer.
func (g *GoogleTranslate) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", generationErr(fmt.Errorf("no text to synthesize"))
	}

	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", text)
	q.Set("tl", g.lang)
	q.Set("client", "tw-ob")
	q.Set("ttsspeed", "1.0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", generationErr(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Referer", "https://translate.google.com/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	g.log.DebugContext(ctx, "tts request", slog.String("text", text))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.ErrorContext(ctx, "tts request failed", slog.String("error", err.Error()))
		return "", generationErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", generationErr(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	path, err := save(g.dir, fileName(g.Name(), text), resp.Body)
	if err != nil {
		return "", generationErr(err)
	}
	return path, nil
}
