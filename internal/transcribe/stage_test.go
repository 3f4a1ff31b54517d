package transcribe

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-stream/internal/segment"
)

// fakeRecognizer returns a fixed inference and records the samples it saw.
type fakeRecognizer struct {
	inf     Inference
	err     error
	samples []float32
}

func (f *fakeRecognizer) Infer(_ context.Context, samples []float32) (Inference, error) {
	f.samples = samples
	return f.inf, f.err
}

func testSegment(n int) *segment.Segment {
	samples := make([]int16, n)
	samples[0] = 16384
	samples[1] = -32768
	return &segment.Segment{ID: "seg", Frames: 1, Samples: samples}
}

func TestStageRecognize(t *testing.T) {
	rec := &fakeRecognizer{inf: Inference{TokenIDs: helloWorld, Text: "  Hello World "}}
	stage := NewStage(rec, testVocab(t), 16000, zerolog.Nop())

	got, err := stage.Recognize(context.Background(), testSegment(19200))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want %q", got.Text, "hello world")
	}
	if len(got.Words) != 2 || got.Words[1].Word != "world" {
		t.Errorf("Words = %+v, want hello/world", got.Words)
	}
	// 19200 samples at 16kHz = 1.2s, so word two starts at token 7 * 0.1s
	if w := got.Words[1]; w.Start < 0.69 || w.Start > 0.71 {
		t.Errorf("Words[1].Start = %v, want 0.7", w.Start)
	}

	if rec.samples[0] != 0.5 || rec.samples[1] != -1 {
		t.Errorf("normalized samples = %v, want [0.5 -1 ...]", rec.samples[:2])
	}
}

func TestStageWhitespaceIsEmpty(t *testing.T) {
	rec := &fakeRecognizer{inf: Inference{TokenIDs: []int{0, 0}, Text: " \t "}}
	stage := NewStage(rec, testVocab(t), 16000, zerolog.Nop())

	got, err := stage.Recognize(context.Background(), testSegment(480))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !got.Empty() || got.Words != nil {
		t.Errorf("Recognize() = %+v, want empty", got)
	}
}

func TestStageAlignmentError(t *testing.T) {
	rec := &fakeRecognizer{inf: Inference{TokenIDs: helloWorld, Text: "hello"}}
	stage := NewStage(rec, testVocab(t), 16000, zerolog.Nop())

	_, err := stage.Recognize(context.Background(), testSegment(480))
	if !errors.Is(err, ErrAlignment) {
		t.Errorf("Recognize() error = %v, want ErrAlignment", err)
	}
}

func TestStageRecognizerError(t *testing.T) {
	boom := errors.New("boom")
	stage := NewStage(&fakeRecognizer{err: boom}, testVocab(t), 16000, zerolog.Nop())

	_, err := stage.Recognize(context.Background(), testSegment(480))
	if !errors.Is(err, boom) {
		t.Errorf("Recognize() error = %v, want wrapped boom", err)
	}
}
