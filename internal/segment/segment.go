// Package segment groups voice-activity decisions into utterance segments
// and records the pauses that occur inside them.
package segment

import (
	"time"

	"github.com/rs/xid"

	"github.com/chaz8081/gostt-stream/internal/audio"
)

// DefaultMinPauseOffset is the smallest buffer offset, in frames, at which
// a pause is kept. Earlier gaps are treated as micro-pauses.
const DefaultMinPauseOffset = 10

// PauseMarker is a silence gap inside an utterance.
type PauseMarker struct {
	// Offset is the number of speech frames buffered when speech resumed.
	Offset int
	// Frames is the length of the silence run.
	Frames int
}

// Duration returns the pause length for frames of duration frameDur.
func (p PauseMarker) Duration(frameDur time.Duration) time.Duration {
	return time.Duration(p.Frames) * frameDur
}

// Segment is one contiguous speech utterance. It is not modified after
// the Segmenter emits it.
type Segment struct {
	ID         string
	StartFrame int
	Frames     int
	Samples    []int16
	Pauses     []PauseMarker
}

// Duration returns the speech length of the segment.
func (s *Segment) Duration(frameDur time.Duration) time.Duration {
	return time.Duration(s.Frames) * frameDur
}

// PauseDurations returns the segment's pauses keyed by offset.
func (s *Segment) PauseDurations(frameDur time.Duration) map[int]time.Duration {
	out := make(map[int]time.Duration, len(s.Pauses))
	for _, p := range s.Pauses {
		out[p.Offset] = p.Duration(frameDur)
	}
	return out
}

// Config controls how silence splits utterances.
type Config struct {
	// MaxPauseFrames is the longest silence run kept inside an utterance.
	// A longer run ends the segment. Zero ends the segment on any silence.
	MaxPauseFrames int
	// MinPauseOffset drops pauses observed before this many speech frames.
	MinPauseOffset int
}

// Segmenter is a frame-at-a-time state machine. It is not safe for
// concurrent use.
type Segmenter struct {
	cfg Config

	samples []int16
	frames  int
	start   int
	silence int
	pauses  []PauseMarker
}

// New returns a Segmenter with an empty buffer.
func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg}
}

// Push feeds one frame with its voice-activity decision. It returns a
// completed segment when the frame ends an utterance.
func (s *Segmenter) Push(f audio.Frame, speech bool) (*Segment, bool) {
	if !speech {
		if s.frames == 0 {
			return nil, false
		}
		s.silence++
		if s.silence > s.cfg.MaxPauseFrames {
			return s.Flush()
		}
		return nil, false
	}

	if s.frames == 0 {
		s.start = f.Index
	} else if s.silence > 0 {
		if s.frames >= s.cfg.MinPauseOffset {
			s.pauses = append(s.pauses, PauseMarker{Offset: s.frames, Frames: s.silence})
		}
	}
	s.silence = 0
	s.samples = append(s.samples, f.Samples...)
	s.frames++
	return nil, false
}

// Flush emits any buffered speech as a segment and resets the buffer.
func (s *Segmenter) Flush() (*Segment, bool) {
	if s.frames == 0 {
		return nil, false
	}
	seg := &Segment{
		ID:         xid.New().String(),
		StartFrame: s.start,
		Frames:     s.frames,
		Samples:    s.samples,
		Pauses:     s.pauses,
	}
	s.samples = nil
	s.frames = 0
	s.silence = 0
	s.pauses = nil
	return seg, true
}

// Collect runs frames through a fresh Segmenter and returns every segment,
// including a trailing one. speech[i] is the decision for frames[i].
func Collect(cfg Config, frames []audio.Frame, speech []bool) []*Segment {
	s := New(cfg)
	var out []*Segment
	for i, f := range frames {
		if seg, ok := s.Push(f, speech[i]); ok {
			out = append(out, seg)
		}
	}
	if seg, ok := s.Flush(); ok {
		out = append(out, seg)
	}
	return out
}
