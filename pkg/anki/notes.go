package anki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/japaniel/ankify/pkg/fields"
)

// schemaConcurrency bounds parallel introspection requests.
const schemaConcurrency = 4

// Audio is a media file AnkiConnect copies into the collection and
// references from Fields.
type Audio struct {
	Path     string   `json:"path"`
	Filename string   `json:"filename"`
	Fields   []string `json:"fields"`
}

// Note is one note to add.
type Note struct {
	Deck   string
	Model  string
	Fields map[string]string
	Tags   []string
	Audio  *Audio
}

type noteOptions struct {
	AllowDuplicate bool `json:"allowDuplicate"`
}

type notePayload struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Options   noteOptions       `json:"options"`
	Tags      []string          `json:"tags"`
	Audio     []Audio           `json:"audio,omitempty"`
}

// NoteRejectedError is returned when Anki refuses a single note, for example
// as a duplicate. Other notes of the batch can still be added.
type NoteRejectedError struct {
	Reason string
}

func (e *NoteRejectedError) Error() string { return "anki rejected note: " + e.Reason }

// EnsureDeck creates deck unless it already exists.
func (c *Client) EnsureDeck(ctx context.Context, deck string) error {
	decks, err := c.DeckNames(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(decks, deck) {
		return nil
	}
	c.log.InfoContext(ctx, "creating deck", slog.String("deck", deck))
	_, err = c.CreateDeck(ctx, deck)
	return err
}

// AddNote adds n, creating its deck first when needed, and returns the note id.
func (c *Client) AddNote(ctx context.Context, n Note) (int64, error) {
	if err := c.EnsureDeck(ctx, n.Deck); err != nil {
		return 0, err
	}

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	p := notePayload{
		DeckName:  n.Deck,
		ModelName: n.Model,
		Fields:    n.Fields,
		Options:   noteOptions{AllowDuplicate: false},
		Tags:      tags,
	}
	if n.Audio != nil {
		p.Audio = []Audio{*n.Audio}
	}

	var id int64
	err := c.invoke(ctx, "addNote", map[string]any{"note": p}, &id)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return 0, &NoteRejectedError{Reason: apiErr.Message}
	}
	if err != nil {
		return 0, err
	}
	c.log.DebugContext(ctx, "note added", slog.Int64("note_id", id), slog.String("deck", n.Deck))
	return id, nil
}

// Schema loads the fields and primary field of one note type. A collection
// that cannot report sort fields falls back to the first field.
func (c *Client) Schema(ctx context.Context, model string) (fields.Schema, error) {
	names, err := c.ModelFieldNames(ctx, model)
	if err != nil {
		return fields.Schema{}, fmt.Errorf("fields of %q: %w", model, err)
	}
	s := fields.Schema{Name: model, Fields: names}

	primary, err := c.PrimaryField(ctx, model)
	if err != nil {
		if ctx.Err() != nil {
			return fields.Schema{}, ctx.Err()
		}
		c.log.DebugContext(ctx, "sort field unavailable", slog.String("model", model), slog.String("error", err.Error()))
		return s, nil
	}
	s.Primary = primary
	return s, nil
}

// Schemas loads every note type, in ModelNames order.
func (c *Client) Schemas(ctx context.Context) ([]fields.Schema, error) {
	models, err := c.ModelNames(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]fields.Schema, len(models))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(schemaConcurrency)
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			s, err := c.Schema(gctx, model)
			if err != nil {
				return err
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
