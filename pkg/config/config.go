package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds ankify settings.
type Config struct {
	Anki      AnkiConfig      `yaml:"anki"`
	Translate TranslateConfig `yaml:"translate"`
	Audio     AudioConfig     `yaml:"audio"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

type AnkiConfig struct {
	URL  string `yaml:"url"  env:"ANKI_URL"  env-default:"http://localhost:8765"`
	Deck string `yaml:"deck" env:"ANKI_DECK"`
	Tags string `yaml:"tags" env:"ANKI_TAGS"`
}

type TranslateConfig struct {
	Provider       string `yaml:"provider"        env:"TRANSLATE_PROVIDER" env-default:"openai"`
	Style          string `yaml:"style"           env:"TRANSLATE_STYLE"    env-default:"conversational"`
	OpenAIAPIKey   string `yaml:"openai_api_key"  env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"    env-default:"https://api.openai.com/v1"`
	OpenAIModel    string `yaml:"openai_model"    env:"OPENAI_MODEL"       env-default:"gpt-4o-mini"`
	AnthropicKey   string `yaml:"anthropic_api_key" env:"ANTHROPIC_API_KEY"`
	AnthropicModel string `yaml:"anthropic_model"   env:"ANTHROPIC_MODEL"  env-default:"claude-3-5-haiku-latest"`
}

type AudioConfig struct {
	Provider        string `yaml:"provider"          env:"AUDIO_PROVIDER"      env-default:"google"`
	Dir             string `yaml:"dir"               env:"AUDIO_DIR"`
	ElevenLabsKey   string `yaml:"elevenlabs_api_key" env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoice string `yaml:"elevenlabs_voice"   env:"ELEVENLABS_VOICE_ID"`
}

type HistoryConfig struct {
	// Path of the sqlite history database; "" uses the user data directory.
	Path     string `yaml:"path"     env:"ANKIFY_HISTORY"`
	Disabled bool   `yaml:"disabled" env:"ANKIFY_NO_HISTORY"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"warn"`
}

// Load reads configuration from a YAML file or environment variables.
// The file is path, else $ANKIFY_CONFIG; without either only ENV and
// defaults apply. The result is validated.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		path = os.Getenv("ANKIFY_CONFIG")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks provider names and fills derived defaults.
func (c *Config) Validate() error {
	c.Translate.Provider = strings.ToLower(strings.TrimSpace(c.Translate.Provider))
	switch c.Translate.Provider {
	case "openai", "anthropic", "none":
	default:
		return fmt.Errorf("translate.provider must be openai, anthropic or none (got %q)", c.Translate.Provider)
	}

	switch strings.ToLower(strings.TrimSpace(c.Translate.Style)) {
	case "", "written", "formal", "conversational":
	default:
		return fmt.Errorf("translate.style must be written, formal or conversational (got %q)", c.Translate.Style)
	}

	c.Audio.Provider = strings.ToLower(strings.TrimSpace(c.Audio.Provider))
	switch c.Audio.Provider {
	case "google", "elevenlabs", "none":
	default:
		return fmt.Errorf("audio.provider must be google, elevenlabs or none (got %q)", c.Audio.Provider)
	}

	if !strings.HasPrefix(c.Anki.URL, "http://") && !strings.HasPrefix(c.Anki.URL, "https://") {
		return fmt.Errorf("anki.url must be an http(s) URL (got %q)", c.Anki.URL)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if !c.History.Disabled && c.History.Path == "" {
		dir, err := DataDir()
		if err != nil {
			return fmt.Errorf("history.path: %w", err)
		}
		c.History.Path = filepath.Join(dir, "history.db")
	}
	return nil
}

// CheckCredentials reports missing API keys for the selected providers.
// Missing keys only matter when a generator is actually needed, so Load
// does not call it.
func (c *Config) CheckCredentials() error {
	switch c.Translate.Provider {
	case "openai":
		if c.Translate.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is not set")
		}
	case "anthropic":
		if c.Translate.AnthropicKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
	}
	if c.Audio.Provider == "elevenlabs" {
		if c.Audio.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is not set")
		}
		if c.Audio.ElevenLabsVoice == "" {
			return fmt.Errorf("ELEVENLABS_VOICE_ID is not set")
		}
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// DataDir is where ankify keeps its history database.
func DataDir() (string, error) {
	if d := os.Getenv("XDG_DATA_HOME"); d != "" {
		return filepath.Join(d, "ankify"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "ankify"), nil
}
