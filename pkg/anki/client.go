package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultURL = "http://localhost:8765"
	apiVersion = 6
)

// ErrUnavailable means AnkiConnect could not be reached at all.
var ErrUnavailable = errors.New("could not connect to Anki; make sure Anki is running with the AnkiConnect add-on installed")

// APIError is an error string returned by AnkiConnect itself.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anki: %s: %s", e.Action, e.Message)
}

// Client talks to the AnkiConnect add-on.
type Client struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a Client for the default AnkiConnect address.
func NewClient(logger *slog.Logger) *Client {
	return NewClientWithURL(defaultURL, logger)
}

// NewClientWithURL creates a Client for a custom AnkiConnect address.
func NewClientWithURL(url string, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With("adapter", "anki"),
	}
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one AnkiConnect action and decodes its result into out.
func (c *Client) invoke(ctx context.Context, action string, params, out any) error {
	payload, err := json.Marshal(request{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return fmt.Errorf("anki: encode %s: %w", action, err)
	}

	c.log.DebugContext(ctx, "anki request", slog.String("action", action))

	resp, err := c.doWithRetry(ctx, action, payload)
	if err != nil {
		c.log.ErrorContext(ctx, "anki request failed", slog.String("action", action), slog.String("error", err.Error()))
		if ctx.Err() != nil {
			return fmt.Errorf("anki: %s: %w", action, ctx.Err())
		}
		return fmt.Errorf("anki: %s: %w", action, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("anki: %s: unexpected status %d", action, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("anki: read body: %w", err)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("anki: %s: invalid response: %w", action, err)
	}
	if r.Error != nil && *r.Error != "" {
		return &APIError{Action: action, Message: *r.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("anki: %s: decode result: %w", action, err)
	}
	return nil
}

// doWithRetry posts payload with a single retry on 5xx or network errors.
func (c *Client) doWithRetry(ctx context.Context, action string, payload []byte) (*http.Response, error) {
	post := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	}

	resp, err := post()

	shouldRetry := err != nil || (resp != nil && resp.StatusCode >= 500)
	if !shouldRetry {
		return resp, err
	}

	// Don't retry if context is already cancelled.
	if ctx.Err() != nil {
		return resp, err
	}

	reason := "network error"
	if err == nil && resp != nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	c.log.WarnContext(ctx, "anki retry", slog.String("action", action), slog.String("reason", reason))

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	time.Sleep(500 * time.Millisecond)

	return post()
}

// Version returns the AnkiConnect API version.
func (c *Client) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.invoke(ctx, "version", nil, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DeckNames lists all decks.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// CreateDeck creates a deck and returns its id. Existing decks are left alone.
func (c *Client) CreateDeck(ctx context.Context, deck string) (int64, error) {
	var id int64
	if err := c.invoke(ctx, "createDeck", map[string]string{"deck": deck}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// ModelNames lists all note types.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelFieldNames lists the fields of a note type in order.
func (c *Client) ModelFieldNames(ctx context.Context, model string) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "modelFieldNames", map[string]string{"modelName": model}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ModelTemplates lists the card template names of a note type.
func (c *Client) ModelTemplates(ctx context.Context, model string) ([]string, error) {
	var templates map[string]json.RawMessage
	if err := c.invoke(ctx, "modelTemplates", map[string]string{"modelName": model}, &templates); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	return names, nil
}

type modelInfo struct {
	Name   string `json:"name"`
	SortF  int    `json:"sortf"`
	Fields []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
}

// PrimaryField returns the sort field of a note type, which Anki requires to
// be non-empty.
func (c *Client) PrimaryField(ctx context.Context, model string) (string, error) {
	var models []modelInfo
	if err := c.invoke(ctx, "findModelsByName", map[string][]string{"modelNames": {model}}, &models); err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("anki: note type %q not found", model)
	}
	for _, f := range models[0].Fields {
		if f.Ord == models[0].SortF {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("anki: note type %q: sort field %d missing", model, models[0].SortF)
}
