package transcribe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlignment is the sentinel wrapped by every *AlignmentError.
var ErrAlignment = errors.New("transcribe: alignment failed")

// AlignmentError reports a mismatch between the word groups found in the
// token sequence and the words of the decoded text.
type AlignmentError struct {
	Text   string
	Words  int
	Groups int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("transcribe: alignment found %d word groups for %d words in %q", e.Groups, e.Words, e.Text)
}

func (e *AlignmentError) Unwrap() error { return ErrAlignment }

// WordTiming is one recognized word with its interval in seconds from the
// start of the segment.
type WordTiming struct {
	Index int     `json:"index" cbor:"index"`
	Word  string  `json:"word" cbor:"word"`
	Start float64 `json:"start" cbor:"start"`
	End   float64 `json:"end" cbor:"end"`
}

// Align derives word timings from a CTC token sequence covering duration
// seconds. Token i is stamped at i*duration/len(tokenIDs). Pad and special
// tokens are ignored, delimiters separate words, and each word spans the
// first to last stamp of its tokens.
func Align(tokenIDs []int, text string, duration float64, vocab *Vocabulary) ([]WordTiming, error) {
	words := strings.Fields(text)

	type group struct{ start, end float64 }
	var groups []group
	open := false
	for i, id := range tokenIDs {
		switch {
		case vocab.IsDelimiter(id):
			open = false
			continue
		case vocab.IsSkipped(id):
			continue
		}

		ts := float64(i) * duration / float64(len(tokenIDs))
		if !open {
			groups = append(groups, group{start: ts, end: ts})
			open = true
			continue
		}
		groups[len(groups)-1].end = ts
	}

	if len(groups) != len(words) {
		return nil, &AlignmentError{Text: text, Words: len(words), Groups: len(groups)}
	}

	timings := make([]WordTiming, len(words))
	for i, w := range words {
		timings[i] = WordTiming{Index: i, Word: w, Start: groups[i].start, End: groups[i].end}
	}
	return timings, nil
}
