// Package translate turns one sentence into its translation and reading
// through an LLM backend.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/japaniel/ankify/pkg/domain"
)

// Style is the register the translation should be written in.
type Style string

const (
	StyleWritten        Style = "written"
	StyleFormal         Style = "formal"
	StyleConversational Style = "conversational"
)

// ParseStyle validates a style name; "" means conversational.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleConversational:
		return StyleConversational, nil
	case StyleWritten:
		return StyleWritten, nil
	case StyleFormal:
		return StyleFormal, nil
	}
	return "", fmt.Errorf("unknown style %q (want written, formal or conversational)", s)
}

// Request is one sentence to translate.
type Request struct {
	Text   string
	Source string
	Target string
	Style  Style
}

// Result is a translation plus the reading of whichever side is Chinese
// (pinyin) or Japanese (kana).
type Result struct {
	Translation   string `json:"translation"`
	Pronunciation string `json:"pronunciation"`
}

// Translator is implemented by every backend.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
	Name() string
}

var languageNames = map[string]string{
	"en": "English",
	"zh": "Mandarin Chinese (simplified characters)",
	"ja": "Japanese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
}

func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	if code == "" {
		return "the detected language"
	}
	return code
}

var styleHints = map[Style]string{
	StyleWritten:        "Use a neutral written register, as in a newspaper or textbook.",
	StyleFormal:         "Use a formal, polite register.",
	StyleConversational: "Use a natural conversational register, the way a native speaker would say it.",
}

// buildPrompt renders the instruction sent to every backend.
func buildPrompt(req Request) string {
	hint := styleHints[req.Style]
	if hint == "" {
		hint = styleHints[StyleConversational]
	}
	return fmt.Sprintf(`Translate the following %s text into %s.
%s

Text:
%s

Output ONLY a valid JSON object matching this exact schema:
{
  "translation": "<the translated text>",
  "pronunciation": "<reading>"
}

Rules:
- If either the source or the translation is Chinese, "pronunciation" is the pinyin with tone marks of the Chinese text
- If either side is Japanese, "pronunciation" is the hiragana reading of the Japanese text
- Otherwise "pronunciation" is an empty string
- Output ONLY the JSON, no markdown, no explanations`,
		languageName(req.Source), languageName(req.Target), hint, req.Text)
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}

// parseReply decodes a model reply into a Result.
func parseReply(reply string) (Result, error) {
	jsonStr, err := extractJSON(reply)
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
		return Result{}, fmt.Errorf("decode reply: %w", err)
	}
	r.Translation = strings.TrimSpace(r.Translation)
	r.Pronunciation = strings.TrimSpace(r.Pronunciation)
	if r.Translation == "" {
		return Result{}, fmt.Errorf("reply has no translation")
	}
	return r, nil
}

func generationErr(err error) error {
	return &domain.GenerationError{Stage: "translate", Err: err}
}
