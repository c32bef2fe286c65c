package translate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/ankify/pkg/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseStyle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Style
		wantErr bool
	}{
		{in: "", want: StyleConversational},
		{in: "Formal", want: StyleFormal},
		{in: " written ", want: StyleWritten},
		{in: "conversational", want: StyleConversational},
		{in: "poetic", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStyle(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   string
		want    Result
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"translation": "Hello", "pronunciation": "nǐ hǎo"}`,
			want:  Result{Translation: "Hello", Pronunciation: "nǐ hǎo"},
		},
		{
			name:  "fenced with prose",
			reply: "Sure!\n```json\n{\"translation\": \" 你好 \", \"pronunciation\": \"nǐ hǎo\"}\n```",
			want:  Result{Translation: "你好", Pronunciation: "nǐ hǎo"},
		},
		{name: "no json", reply: "I cannot help with that", wantErr: true},
		{name: "empty translation", reply: `{"translation": "", "pronunciation": ""}`, wantErr: true},
		{name: "broken json", reply: `{"translation": }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReply(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := buildPrompt(Request{Text: "你好", Source: "zh", Target: "en", Style: StyleFormal})
	assert.Contains(t, p, "Mandarin Chinese")
	assert.Contains(t, p, "into English")
	assert.Contains(t, p, "formal")
	assert.Contains(t, p, "你好")

	p = buildPrompt(Request{Text: "x", Source: "ko", Target: "zh"})
	assert.Contains(t, p, "ko text")
	assert.Contains(t, p, "conversational")
}

func TestOpenAI_Translate(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{
					"role":    "assistant",
					"content": `{"translation": "你好", "pronunciation": "nǐ hǎo"}`,
				},
			}},
		})
	}))
	defer srv.Close()

	tr := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"}, testLogger())
	res, err := tr.Translate(context.Background(), Request{Text: "Hello", Source: "en", Target: "zh"})
	require.NoError(t, err)
	assert.Equal(t, Result{Translation: "你好", Pronunciation: "nǐ hǎo"}, res)
	assert.Equal(t, defaultOpenAIModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "Hello")
	assert.Equal(t, "openai/"+defaultOpenAIModel, tr.Name())
}

func TestOpenAI_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error": "bad key"}`, want: "401"},
		{name: "no choices", status: http.StatusOK, body: `{"choices": []}`, want: "empty choices"},
		{name: "not json reply", status: http.StatusOK, body: `{"choices": [{"message": {"content": "no"}}]}`, want: "no JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, testLogger()).
				Translate(context.Background(), Request{Text: "Hello"})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGeneration)
			assert.True(t, domain.IsRowRecoverable(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnthropic_Translate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content": []map[string]any{{
				"type": "text",
				"text": "Here you go: {\"translation\": \"Thank you\", \"pronunciation\": \"xiè xie\"}",
			}},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	defer srv.Close()

	tr := NewAnthropic(AnthropicConfig{APIKey: "ak-test", Model: "claude-test", BaseURL: srv.URL}, testLogger())
	res, err := tr.Translate(context.Background(), Request{Text: "谢谢", Source: "zh", Target: "en"})
	require.NoError(t, err)
	assert.Equal(t, Result{Translation: "Thank you", Pronunciation: "xiè xie"}, res)
	assert.Equal(t, "anthropic/claude-test", tr.Name())
}

func TestAnthropic_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "invalid_request_error", "message": "bad"}}`)
	}))
	defer srv.Close()

	_, err := NewAnthropic(AnthropicConfig{APIKey: "k", BaseURL: srv.URL}, testLogger()).
		Translate(context.Background(), Request{Text: "谢谢"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
}
