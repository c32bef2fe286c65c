package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultElevenLabsURL = "https://api.elevenlabs.io/v1"
	elevenLabsModel      = "eleven_multilingual_v2"
	elevenLabsFormat     = "mp3_44100_128"
)

// ElevenLabsConfig configures the ElevenLabs backend.
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	BaseURL string
	Dir     string
}

// ElevenLabs synthesizes speech with the ElevenLabs API using the
// configured voice.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
	log        *slog.Logger
}

// NewElevenLabs creates the backend.
func NewElevenLabs(cfg ElevenLabsConfig, logger *slog.Logger) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir()
	}
	return &ElevenLabs{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger.With("adapter", "elevenlabs"),
	}
}

// Name implements Synthesizer.
func (e *ElevenLabs) Name() string { return "elevenlabs" }

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", generationErr(fmt.Errorf("no text to synthesize"))
	}
	voiceID := e.cfg.VoiceID
	if voiceID == "" {
		return "", generationErr(fmt.Errorf("no voice id configured"))
	}

	payload, err := json.Marshal(map[string]string{"text": text, "model_id": elevenLabsModel})
	if err != nil {
		return "", generationErr(err)
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.cfg.BaseURL, url.PathEscape(voiceID), elevenLabsFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", generationErr(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.log.ErrorContext(ctx, "tts request failed", slog.String("error", err.Error()))
		return "", generationErr(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", generationErr(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	path, err := save(e.cfg.Dir, fileName(e.Name(), voiceID+"\x00"+text), resp.Body)
	if err != nil {
		return "", generationErr(err)
	}
	return path, nil
}
