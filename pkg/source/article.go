package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/japaniel/ankify/pkg/domain"
)

// maxBodySize caps downloaded HTML.
const maxBodySize = 10 * 1024 * 1024

// Article is a web page reduced to its readable sentences.
type Article struct {
	URL       string
	Title     string
	Byline    string
	SiteName  string
	Sentences []string
}

// ArticleFetcher downloads pages and extracts their main text.
type ArticleFetcher struct {
	Client *http.Client
}

// NewArticleFetcher returns a fetcher with a 30 second timeout.
func NewArticleFetcher() *ArticleFetcher {
	return &ArticleFetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads rawURL and returns its sentences.
func (f *ArticleFetcher) Fetch(ctx context.Context, rawURL string) (*Article, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrUnsupportedFormat, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Some news sites refuse clients that do not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh;q=0.8,ja;q=0.7")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("fetch %s: content length %d exceeds %d bytes", rawURL, resp.ContentLength, maxBodySize)
	}

	// Read one byte past the cap to tell a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", rawURL, maxBodySize)
	}

	return ParseArticle(body, parsed)
}

// ParseArticle extracts the readable text of an HTML page.
func ParseArticle(html []byte, pageURL *url.URL) (*Article, error) {
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(html)), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}
	sentences := SplitSentences(article.TextContent)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("%w: no text in article", domain.ErrEmptyData)
	}
	return &Article{
		URL:       pageURL.String(),
		Title:     article.Title,
		Byline:    article.Byline,
		SiteName:  article.SiteName,
		Sentences: sentences,
	}, nil
}

// SplitSentences breaks text after CJK and Latin sentence terminators and
// newlines. Whitespace-only pieces are dropped.
func SplitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i, r := range runes {
		cur.WriteRune(r)
		switch r {
		case '。', '！', '？', '\n':
			flush()
		case '.', '!', '?':
			// Latin terminators only end a sentence before whitespace or the end.
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				flush()
			}
		}
	}
	flush()
	return out
}

var (
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes <rt> and <rp> ruby annotations so readability does
// not append readings to the annotated text.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, nil)
	return reRP.ReplaceAll(cleaned, nil)
}
