package source

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/japaniel/ankify/pkg/domain"
)

// Subtitle is one timed entry of an SRT file.
type Subtitle struct {
	Index int
	Start string
	End   string
	Text  string
}

var (
	reBlockSep  = regexp.MustCompile(`\n\s*\n`)
	reTimestamp = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2},\d{3})`)
	reHan       = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
	reWord      = regexp.MustCompile(`[\x{4e00}-\x{9fff}]|[^\s\x{4e00}-\x{9fff}]+`)
)

// ReadSubtitles parses and filters an SRT file. Files that are not valid
// UTF-8 are decoded as ISO-8859-1.
func ReadSubtitles(path string) ([]Subtitle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode subtitles: %w", err)
		}
	}
	subs := FilterSubtitles(ParseSubtitles(string(data)))
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: no valid subtitles in %s", domain.ErrEmptyData, path)
	}
	return subs, nil
}

// ParseSubtitles splits SRT content into entries. Blocks without a numeric
// index, a timestamp line or any text are skipped.
func ParseSubtitles(content string) []Subtitle {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var out []Subtitle
	for _, block := range reBlockSep.Split(strings.TrimSpace(content), -1) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		m := reTimestamp.FindStringSubmatch(strings.TrimSpace(lines[1]))
		if m == nil {
			continue
		}
		for i := range lines[2:] {
			lines[2+i] = strings.TrimSpace(lines[2+i])
		}
		out = append(out, Subtitle{
			Index: idx,
			Start: m[1],
			End:   m[2],
			Text:  strings.TrimSpace(strings.Join(lines[2:], " ")),
		})
	}
	return out
}

// FilterSubtitles drops entries of a single word (each Han character counts
// as one word) and repeated texts.
func FilterSubtitles(in []Subtitle) []Subtitle {
	seen := make(map[string]bool)
	var out []Subtitle
	for _, s := range in {
		if len(reWord.FindAllString(s.Text, -1)) <= 1 {
			continue
		}
		key := strings.TrimSpace(s.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// IsMandarin reports whether text contains a CJK unified ideograph.
func IsMandarin(text string) bool {
	return reHan.MatchString(text)
}

// LooksMandarin samples the first five entries and requires half of them to be Mandarin.
func LooksMandarin(subs []Subtitle) bool {
	n := len(subs)
	if n > 5 {
		n = 5
	}
	if n == 0 {
		return false
	}
	hits := 0
	for _, s := range subs[:n] {
		if IsMandarin(s.Text) {
			hits++
		}
	}
	return float64(hits)/float64(n) >= 0.5
}
