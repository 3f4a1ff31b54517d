package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Token names used by wav2vec2-style CTC vocabularies.
const (
	PadToken       = "<pad>"
	DelimiterToken = "|"
)

var specialTokens = []string{"<s>", "</s>", "<unk>"}

// Vocabulary maps CTC token IDs to their strings.
type Vocabulary struct {
	tokens    []string
	pad       int
	delimiter int
	special   map[int]bool
}

// LoadVocabulary reads a vocab.json file and returns its Vocabulary.
// The JSON format is {"<pad>": 0, "|": 4, "E": 5, ...}.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing vocabulary JSON: %w", err)
	}
	return NewVocabulary(raw)
}

// NewVocabulary builds a Vocabulary from a token -> ID mapping. The mapping
// must contain the pad and delimiter tokens.
func NewVocabulary(ids map[string]int) (*Vocabulary, error) {
	maxID := -1
	for tok, id := range ids {
		if id < 0 {
			return nil, fmt.Errorf("invalid token ID %d for %q", id, tok)
		}
		if id > maxID {
			maxID = id
		}
	}

	v := &Vocabulary{tokens: make([]string, maxID+1), special: make(map[int]bool)}
	for tok, id := range ids {
		v.tokens[id] = tok
	}

	var ok bool
	if v.pad, ok = ids[PadToken]; !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", PadToken)
	}
	if v.delimiter, ok = ids[DelimiterToken]; !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", DelimiterToken)
	}
	for _, tok := range specialTokens {
		if id, ok := ids[tok]; ok {
			v.special[id] = true
		}
	}
	return v, nil
}

// Len returns the number of token IDs.
func (v *Vocabulary) Len() int { return len(v.tokens) }

// IsDelimiter reports whether id separates words.
func (v *Vocabulary) IsDelimiter(id int) bool { return id == v.delimiter }

// IsSkipped reports whether id carries no text: pad, special or unknown IDs.
func (v *Vocabulary) IsSkipped(id int) bool {
	return id == v.pad || v.special[id] || id < 0 || id >= len(v.tokens) || v.tokens[id] == ""
}

// Decode performs greedy CTC decoding: repeated IDs collapse, pad and special
// tokens drop out and delimiters become spaces. The result is lowercase with
// single spaces between words.
func (v *Vocabulary) Decode(ids []int) string {
	var b strings.Builder
	prev := -1
	for _, id := range ids {
		if id == prev {
			continue
		}
		prev = id
		switch {
		case v.IsDelimiter(id):
			b.WriteByte(' ')
		case v.IsSkipped(id):
		default:
			b.WriteString(v.tokens[id])
		}
	}
	return strings.ToLower(strings.Join(strings.Fields(b.String()), " "))
}
