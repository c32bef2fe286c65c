// Package reading produces hiragana readings for Japanese text.
package reading

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is a single analyzed unit of text.
type Token struct {
	Surface string // The text as it appears (e.g. "行っ")
	Reading string // Hiragana reading, "" when the dictionary has none
}

// Annotator wraps a kagome tokenizer with the IPA dictionary.
type Annotator struct {
	t *tokenizer.Tokenizer
}

// NewAnnotator loads the dictionary. It is expensive; build one per run.
func NewAnnotator() (*Annotator, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Annotator{t: t}, nil
}

// Tokens breaks text into tokens with readings. Whitespace
// tokens are dropped.
func (a *Annotator) Tokens(text string) []Token {
	var result []Token
	for _, token := range a.t.Tokenize(text) {
		if token.Class == tokenizer.DUMMY || strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA feature 7 is the katakana reading.
		features := token.Features()
		tok := Token{Surface: token.Surface}
		if len(features) > 7 && features[7] != "*" {
			tok.Reading = ToHiragana(features[7])
		}
		result = append(result, tok)
	}
	return result
}

// Reading returns the hiragana reading of text. Tokens without a reading
// (latin words, numbers, unknown names) are kept as written.
func (a *Annotator) Reading(text string) string {
	var b strings.Builder
	for _, tok := range a.Tokens(text) {
		if tok.Reading != "" {
			b.WriteString(tok.Reading)
		} else {
			b.WriteString(tok.Surface)
		}
	}
	return b.String()
}

// ToHiragana converts Katakana to Hiragana.
func ToHiragana(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if r >= 0x30A1 && r <= 0x30F6 {
			runes[i] = r - 0x60
		}
	}
	return string(runes)
}
