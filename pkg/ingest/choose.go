package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/japaniel/ankify/pkg/domain"
	"github.com/japaniel/ankify/pkg/fields"
)

// Chooser asks the user to pick between options or type a value.
type Chooser interface {
	// Choose returns the index of the picked option; def is preselected.
	Choose(title string, options []string, def int) (int, error)
	// Ask returns one trimmed line of input, io.EOF when input ended.
	Ask(prompt string) (string, error)
}

// Prompter is a line-based Chooser over a reader and writer.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and prints prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask implements Chooser.
func (p *Prompter) Ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Choose implements Chooser. Invalid answers are asked again.
func (p *Prompter) Choose(title string, options []string, def int) (int, error) {
	if len(options) == 0 {
		return 0, fmt.Errorf("no %s to choose from", title)
	}
	if def < 0 || def >= len(options) {
		def = 0
	}
	fmt.Fprintf(p.out, "Available %ss:\n", title)
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d. %s\n", i+1, o)
	}
	for {
		answer, err := p.Ask(fmt.Sprintf("Select %s [%d]: ", title, def+1))
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return def, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(options))
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// selectDeck resolves the destination deck.
func (s *Session) selectDeck(ctx context.Context) (string, error) {
	want := strings.TrimSpace(s.Opts.Deck)
	if strings.EqualFold(want, "default") {
		want = s.prefs.Deck
	}
	if want != "" {
		return want, nil
	}

	decks, err := s.Catalog.DeckNames(ctx)
	if err != nil {
		return "", fmt.Errorf("list decks: %w", err)
	}
	switch {
	case len(decks) == 0:
		return "Default", nil
	case len(decks) == 1:
		return decks[0], nil
	}

	def := indexOf(decks, s.prefs.Deck)
	if s.Prompt == nil {
		if def >= 0 {
			return decks[def], nil
		}
		return "", fmt.Errorf("no deck selected: pass -deck (available: %s)", strings.Join(decks, ", "))
	}
	i, err := s.Prompt.Choose("deck", decks, def)
	if err != nil {
		return "", fmt.Errorf("select deck: %w", err)
	}
	return decks[i], nil
}

// selectSchema picks a note type among candidates. all is used to tell an
// unknown note type from an unsuitable one.
func (s *Session) selectSchema(candidates, all []fields.Schema) (fields.Schema, error) {
	want := strings.TrimSpace(s.Opts.NoteType)
	fromPrefs := strings.EqualFold(want, "default")
	if fromPrefs {
		want = s.prefs.NoteType
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	if want != "" {
		if i := indexOf(names, want); i >= 0 {
			return candidates[i], nil
		}
		if !fromPrefs {
			for _, sc := range all {
				if sc.Name == want {
					return fields.Schema{}, fmt.Errorf("%w: %q cannot hold this input", domain.ErrIncompatibleSchema, want)
				}
			}
			return fields.Schema{}, fmt.Errorf("note type %q not found", want)
		}
	}

	switch len(candidates) {
	case 0:
		return fields.Schema{}, fmt.Errorf("%w: no note type fits this input", domain.ErrIncompatibleSchema)
	case 1:
		return candidates[0], nil
	}

	def := indexOf(names, s.prefs.NoteType)
	if s.Prompt == nil {
		if def >= 0 {
			return candidates[def], nil
		}
		return fields.Schema{}, fmt.Errorf("no note type selected: pass -note-type (candidates: %s)", strings.Join(names, ", "))
	}

	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = fmt.Sprintf("%s (%s)", c.Name, strings.Join(c.Fields, ", "))
	}
	i, err := s.Prompt.Choose("note type", labels, def)
	if err != nil {
		return fields.Schema{}, fmt.Errorf("select note type: %w", err)
	}
	return candidates[i], nil
}

// compatibleSchemas keeps the schemas FilterCompatible accepts, in order.
func compatibleSchemas(all []fields.Schema, headers []string) []fields.Schema {
	names := fields.FilterCompatible(all, headers)
	out := make([]fields.Schema, 0, len(names))
	for _, sc := range all {
		if indexOf(names, sc.Name) >= 0 {
			out = append(out, sc)
		}
	}
	return out
}
