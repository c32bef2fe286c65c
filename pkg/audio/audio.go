// Package audio synthesizes Mandarin speech into mp3 files.
package audio

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/japaniel/ankify/pkg/domain"
)

// maxAudioSize caps a downloaded clip.
const maxAudioSize = 20 * 1024 * 1024

// Synthesizer turns text into an audio file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
	Name() string
}

// DefaultDir is where generated clips are written when no directory is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "ankify")
}

// fileName is stable per provider and text so reruns reuse clips.
func fileName(provider, text string) string {
	sum := sha1.Sum([]byte(provider + "\x00" + text))
	return provider + "-" + hex.EncodeToString(sum[:])[:16] + ".mp3"
}

// save streams r into dir/name through a temp file so readers never see a
// partial clip.
func save(dir, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, maxAudioSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	if n == 0 {
		return "", fmt.Errorf("empty audio response")
	}
	if n > maxAudioSize {
		return "", fmt.Errorf("audio exceeds %d bytes", maxAudioSize)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}
	return path, nil
}

func generationErr(err error) error {
	return &domain.GenerationError{Stage: "audio", Err: err}
}
