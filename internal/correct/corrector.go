// Package correct runs recognized text through a grammar and style
// correction model.
//
// Supported backends:
//   - http: a text2text-generation endpoint (default)
//   - none: returns text unchanged
package correct

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-stream/internal/config"
)

// Corrector rewrites text. maxLength bounds the generated output in tokens.
type Corrector interface {
	Correct(ctx context.Context, text string, maxLength int) (string, error)
}

// Passthrough returns text unchanged.
type Passthrough struct{}

// Correct returns text.
func (Passthrough) Correct(_ context.Context, text string, _ int) (string, error) {
	return text, nil
}

// New creates a Corrector based on the config backend setting. When Chunked
// is set the backend is wrapped to correct sentences concurrently.
func New(cfg *config.CorrectorConfig) (Corrector, error) {
	var c Corrector
	switch cfg.Backend {
	case "http", "":
		if cfg.URL == "" {
			return nil, fmt.Errorf("correct: http backend requires corrector.url")
		}
		c = NewHTTPCorrector(cfg.URL, cfg.Timeout)
	case "none":
		return Passthrough{}, nil
	default:
		return nil, fmt.Errorf("correct: unknown backend %q (supported: http, none)", cfg.Backend)
	}
	if cfg.Chunked {
		c = &Chunked{Corrector: c, Limit: cfg.Concurrency}
	}
	return c, nil
}

// Stage adapts a Corrector to the pipeline.
type Stage struct {
	corrector Corrector
	maxLength int
	log       zerolog.Logger
}

// NewStage returns a correction stage bounded by maxLength.
func NewStage(c Corrector, maxLength int, log zerolog.Logger) *Stage {
	return &Stage{corrector: c, maxLength: maxLength, log: log}
}

// Correct returns the corrected text. Empty input is returned without
// calling the corrector.
func (s *Stage) Correct(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	out, err := s.corrector.Correct(ctx, text, s.maxLength)
	if err != nil {
		return "", fmt.Errorf("correct: %w", err)
	}
	s.log.Debug().Int("in_len", len(text)).Int("out_len", len(out)).Msg("text corrected")
	return out, nil
}
