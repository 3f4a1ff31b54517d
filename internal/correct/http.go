package correct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPCorrector calls a text2text-generation endpoint in the Hugging Face
// inference format.
type HTTPCorrector struct {
	url    string
	client *http.Client
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	MaxLength int `json:"max_length,omitempty"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// NewHTTPCorrector creates a corrector for url.
func NewHTTPCorrector(url string, timeout time.Duration) *HTTPCorrector {
	return &HTTPCorrector{url: url, client: &http.Client{Timeout: timeout}}
}

// Correct posts text to the endpoint and returns the first generation.
func (c *HTTPCorrector) Correct(ctx context.Context, text string, maxLength int) (string, error) {
	body, err := json.Marshal(generateRequest{Inputs: text, Parameters: generateParameters{MaxLength: maxLength}})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("corrector request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("corrector API error (status %d): %s", resp.StatusCode, string(data))
	}

	var gens []generation
	if err := json.Unmarshal(data, &gens); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(gens) == 0 {
		return "", fmt.Errorf("corrector returned no generations")
	}
	return strings.TrimSpace(gens[0].GeneratedText), nil
}
