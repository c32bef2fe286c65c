package translate

import (
	"context"
	"fmt"
	"log/slog"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures the Claude backend.
type AnthropicConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
}

// Anthropic translates through the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
	log    *slog.Logger
}

// NewAnthropic creates the backend.
func NewAnthropic(cfg AnthropicConfig, logger *slog.Logger) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
		log:    logger.With("adapter", "anthropic"),
	}
}

// Name implements Translator.
func (a *Anthropic) Name() string { return "anthropic/" + a.model }

// Translate implements Translator.
func (a *Anthropic) Translate(ctx context.Context, req Request) (Result, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		a.log.ErrorContext(ctx, "anthropic request failed", slog.String("error", err.Error()))
		return Result{}, generationErr(fmt.Errorf("llm api call: %w", err))
	}
	if len(msg.Content) == 0 {
		return Result{}, generationErr(fmt.Errorf("empty response"))
	}

	r, err := parseReply(msg.Content[0].Text)
	if err != nil {
		return Result{}, generationErr(err)
	}
	a.log.DebugContext(ctx, "translated", slog.String("text", req.Text), slog.String("translation", r.Translation))
	return r, nil
}
