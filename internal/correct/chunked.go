package correct

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// Chunked splits text into sentences and corrects them concurrently.
type Chunked struct {
	Corrector Corrector
	// Limit caps concurrent requests. Zero or less means no limit.
	Limit int
}

// Correct corrects each sentence of text and rejoins them in order with
// single spaces.
func (c *Chunked) Correct(ctx context.Context, text string, maxLength int) (string, error) {
	chunks := SplitSentences(text)
	if len(chunks) <= 1 {
		return c.Corrector.Correct(ctx, text, maxLength)
	}

	out := make([]string, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	if c.Limit > 0 {
		g.SetLimit(c.Limit)
	}
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			corrected, err := c.Corrector.Correct(ctx, chunk, maxLength)
			if err != nil {
				return err
			}
			out[i] = corrected
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(out, " "), nil
}

// SplitSentences splits text after '.', '!' or '?' followed by whitespace.
// Chunks are trimmed and empty chunks are dropped.
func SplitSentences(text string) []string {
	var chunks []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					chunks = append(chunks, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
