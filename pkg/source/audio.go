package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var audioIndicators = []string{"audio", "sound", "mp3", "wav", "ogg"}

// AudioColumns returns the headers that look like they hold audio files.
func AudioColumns(headers []string) []string {
	var out []string
	for _, h := range headers {
		lh := strings.ToLower(h)
		for _, ind := range audioIndicators {
			if strings.Contains(lh, ind) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// SoundRef extracts the filename from an inline "[sound:name]" reference.
func SoundRef(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "[sound:") && strings.HasSuffix(v, "]") {
		return v[len("[sound:") : len(v)-1], true
	}
	return "", false
}

// ResolveAudio finds the file an audio cell points at. Inline references
// are looked up in dir, then dir/media; other values are paths relative to dir.
func ResolveAudio(dir, value string) (string, bool) {
	if name, ok := SoundRef(value); ok {
		for _, p := range []string{filepath.Join(dir, name), filepath.Join(dir, "media", name)} {
			if fileExists(p) {
				return p, true
			}
		}
		return "", false
	}
	p := strings.TrimSpace(value)
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	return p, fileExists(p)
}

// MissingAudio lists every non-empty audio cell whose file cannot be found.
func MissingAudio(dir string, records []Record, columns []string) []string {
	var missing []string
	for _, r := range records {
		for _, col := range columns {
			v := r.Get(col)
			if strings.TrimSpace(v) == "" {
				continue
			}
			if _, ok := ResolveAudio(dir, v); ok {
				continue
			}
			if name, isRef := SoundRef(v); isRef {
				missing = append(missing, fmt.Sprintf("row %d, %q: %s (not found in %s or %s)",
					r.Row, col, name, dir, filepath.Join(dir, "media")))
				continue
			}
			missing = append(missing, fmt.Sprintf("row %d, %q: %s", r.Row, col, v))
		}
	}
	return missing
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
