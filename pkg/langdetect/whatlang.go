package langdetect

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Whatlang detects languages offline with whatlanggo trigram models.
type Whatlang struct{}

// Detect returns the ISO 639-1 code and the model confidence for text.
func (Whatlang) Detect(text string) (Detection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{}, fmt.Errorf("empty text")
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return Detection{}, fmt.Errorf("unknown language")
	}
	return Detection{Lang: code, Confidence: info.Confidence}, nil
}
