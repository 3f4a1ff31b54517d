package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRecognizer calls a CTC inference endpoint that accepts raw samples and
// returns token IDs.
type HTTPRecognizer struct {
	url        string
	sampleRate int
	vocab      *Vocabulary
	client     *http.Client
}

type inferRequest struct {
	InputValues  []float32 `json:"input_values"`
	SamplingRate int       `json:"sampling_rate"`
}

// NewHTTPRecognizer creates a recognizer for url. When the server omits the
// decoded text, it is decoded locally from the token IDs with vocab.
func NewHTTPRecognizer(url string, sampleRate int, timeout time.Duration, vocab *Vocabulary) *HTTPRecognizer {
	return &HTTPRecognizer{
		url:        url,
		sampleRate: sampleRate,
		vocab:      vocab,
		client:     &http.Client{Timeout: timeout},
	}
}

// Infer posts samples to the endpoint and returns its inference.
func (r *HTTPRecognizer) Infer(ctx context.Context, samples []float32) (Inference, error) {
	body, err := json.Marshal(inferRequest{InputValues: samples, SamplingRate: r.sampleRate})
	if err != nil {
		return Inference{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Inference{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Inference{}, fmt.Errorf("recognizer request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Inference{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Inference{}, fmt.Errorf("recognizer API error (status %d): %s", resp.StatusCode, string(data))
	}

	var inf Inference
	if err := json.Unmarshal(data, &inf); err != nil {
		return Inference{}, fmt.Errorf("decode response: %w", err)
	}
	if inf.Text == "" && r.vocab != nil {
		inf.Text = r.vocab.Decode(inf.TokenIDs)
	}
	return inf, nil
}
