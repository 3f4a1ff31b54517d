package transcribe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-stream/internal/audio"
	"github.com/chaz8081/gostt-stream/internal/segment"
)

// Recognition is the text of one segment with its word timings.
type Recognition struct {
	Text  string
	Words []WordTiming
}

// Empty reports whether no speech was recognized.
func (r Recognition) Empty() bool { return r.Text == "" }

// Stage adapts a Recognizer to segments.
type Stage struct {
	rec        Recognizer
	vocab      *Vocabulary
	sampleRate int
	log        zerolog.Logger
}

// NewStage returns a recognition stage for segments sampled at sampleRate.
func NewStage(rec Recognizer, vocab *Vocabulary, sampleRate int, log zerolog.Logger) *Stage {
	return &Stage{rec: rec, vocab: vocab, sampleRate: sampleRate, log: log}
}

// Recognize normalizes the segment, runs the recognizer and aligns the
// result to word timings. Whitespace-only output yields an empty
// Recognition and no error. An alignment mismatch is returned as
// *AlignmentError.
func (s *Stage) Recognize(ctx context.Context, seg *segment.Segment) (Recognition, error) {
	inf, err := s.rec.Infer(ctx, audio.ToFloat32(seg.Samples))
	if err != nil {
		return Recognition{}, fmt.Errorf("transcribe: segment %s: %w", seg.ID, err)
	}

	text := strings.ToLower(strings.TrimSpace(inf.Text))
	if text == "" {
		s.log.Debug().Str("segment", seg.ID).Msg("no speech recognized")
		return Recognition{}, nil
	}

	duration := audio.Mono16(s.sampleRate).Duration(len(seg.Samples)).Seconds()
	words, err := Align(inf.TokenIDs, text, duration, s.vocab)
	if err != nil {
		return Recognition{}, fmt.Errorf("transcribe: segment %s: %w", seg.ID, err)
	}

	s.log.Debug().
		Str("segment", seg.ID).
		Int("words", len(words)).
		Float64("duration_s", duration).
		Msg("segment recognized")
	return Recognition{Text: strings.Join(strings.Fields(text), " "), Words: words}, nil
}
