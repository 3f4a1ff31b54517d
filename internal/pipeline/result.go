package pipeline

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/chaz8081/gostt-stream/internal/transcribe"
)

// Transcript is the ordered, append-only list of sentences of one run.
type Transcript struct {
	mu        sync.Mutex
	sentences []string
}

// Append adds a sentence. Empty sentences are ignored.
func (t *Transcript) Append(s string) {
	if s = strings.TrimSpace(s); s == "" {
		return
	}
	t.mu.Lock()
	t.sentences = append(t.sentences, s)
	t.mu.Unlock()
}

// Sentences returns a copy of the sentences in order.
func (t *Transcript) Sentences() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sentences...)
}

// Len returns the number of sentences.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sentences)
}

// String joins the sentences with single spaces.
func (t *Transcript) String() string {
	return strings.Join(t.Sentences(), " ")
}

// PauseResult is one classified pause of a segment.
type PauseResult struct {
	Offset   int           `cbor:"offset"`
	Duration time.Duration `cbor:"duration"`
	Class    string        `cbor:"class"`
}

// SegmentResult records every stage's output for one segment.
type SegmentResult struct {
	Index      int                     `cbor:"index"`
	ID         string                  `cbor:"id"`
	StartFrame int                     `cbor:"start_frame"`
	Frames     int                     `cbor:"frames"`
	Raw        string                  `cbor:"raw"`
	Punctuated string                  `cbor:"punctuated"`
	Corrected  string                  `cbor:"corrected"`
	Words      []transcribe.WordTiming `cbor:"words,omitempty"`
	Pauses     []PauseResult           `cbor:"pauses,omitempty"`
}

// Result is the outcome of one run.
type Result struct {
	ID         string          `cbor:"id"`
	Source     string          `cbor:"source"`
	Transcript string          `cbor:"transcript"`
	Sentences  []string        `cbor:"sentences"`
	Segments   []SegmentResult `cbor:"segments"`
	StartedAt  time.Time       `cbor:"started_at"`
	Elapsed    time.Duration   `cbor:"elapsed"`
	// TimedOut is set when the silence limit ended the run.
	TimedOut bool `cbor:"timed_out"`
	// Score is set when the transcript was compared against a reference.
	Score *transcribe.Score `cbor:"score,omitempty"`
}

var resultEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Save writes r to path as CBOR.
func (r *Result) Save(path string) error {
	data, err := resultEncMode.Marshal(r)
	if err != nil {
		return fmt.Errorf("pipeline: encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("pipeline: write result: %w", err)
	}
	return nil
}

// LoadResult reads a result written by Save.
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read result: %w", err)
	}
	var r Result
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("pipeline: decode result: %w", err)
	}
	return &r, nil
}
