// Package transcribe turns speech segments into text with word timings.
//
// Supported backends:
//   - http: a CTC inference server returning token IDs (default)
package transcribe

import (
	"context"
	"fmt"

	"github.com/chaz8081/gostt-stream/internal/config"
)

// Inference is the raw output of a recognizer for one segment.
type Inference struct {
	TokenIDs []int  `json:"token_ids"`
	Text     string `json:"text"`
}

// Recognizer converts normalized mono samples to CTC tokens and text.
// Implementations must be safe to construct once and reuse across segments.
type Recognizer interface {
	Infer(ctx context.Context, samples []float32) (Inference, error)
}

// New creates a Recognizer based on the config backend setting.
func New(cfg *config.RecognizerConfig, sampleRate int, vocab *Vocabulary) (Recognizer, error) {
	switch cfg.Backend {
	case "http", "":
		if cfg.URL == "" {
			return nil, fmt.Errorf("transcribe: http backend requires recognizer.url")
		}
		return NewHTTPRecognizer(cfg.URL, sampleRate, cfg.Timeout, vocab), nil
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: http)", cfg.Backend)
	}
}
