package transcribe

import (
	"errors"
	"math"
	"testing"
)

func TestAlign(t *testing.T) {
	vocab := testVocab(t)

	// 12 tokens over 1.2s: token i at i*0.1s
	words, err := Align(helloWorld, "hello world", 1.2, vocab)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("Align() returned %d words, want 2", len(words))
	}

	want := []WordTiming{
		{Index: 0, Word: "hello", Start: 0, End: 0.5},
		{Index: 1, Word: "world", Start: 0.7, End: 1.1},
	}
	for i, w := range want {
		got := words[i]
		if got.Index != w.Index || got.Word != w.Word ||
			math.Abs(got.Start-w.Start) > 1e-9 || math.Abs(got.End-w.End) > 1e-9 {
			t.Errorf("words[%d] = %+v, want %+v", i, got, w)
		}
	}
}

func TestAlignSingleTokenWord(t *testing.T) {
	vocab := testVocab(t)
	words, err := Align([]int{0, 6, 0, 0}, "h", 0.4, vocab)
	if err != nil {
		t.Fatalf("Align() error = %v", err)
	}
	if len(words) != 1 || words[0].Start != words[0].End {
		t.Errorf("Align() = %+v, want one zero-width word", words)
	}
}

func TestAlignMismatch(t *testing.T) {
	vocab := testVocab(t)

	_, err := Align(helloWorld, "hello there world", 1.2, vocab)
	if !errors.Is(err, ErrAlignment) {
		t.Fatalf("Align() error = %v, want ErrAlignment", err)
	}
	var ae *AlignmentError
	if !errors.As(err, &ae) {
		t.Fatalf("Align() error = %T, want *AlignmentError", err)
	}
	if ae.Words != 3 || ae.Groups != 2 {
		t.Errorf("AlignmentError = %+v, want 3 words / 2 groups", ae)
	}
}

func TestAlignEmpty(t *testing.T) {
	vocab := testVocab(t)
	words, err := Align(nil, "", 1, vocab)
	if err != nil {
		t.Fatalf("Align(empty) error = %v", err)
	}
	if len(words) != 0 {
		t.Errorf("Align(empty) = %v, want none", words)
	}
}
