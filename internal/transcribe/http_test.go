package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chaz8081/gostt-stream/internal/config"
)

func TestHTTPRecognizerInfer(t *testing.T) {
	var got inferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"token_ids": helloWorld, "text": "HELLO WORLD"})
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 16000, 5*time.Second, testVocab(t))
	inf, err := rec.Infer(context.Background(), []float32{0.5, -0.25})
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	if got.SamplingRate != 16000 {
		t.Errorf("sampling_rate = %d, want 16000", got.SamplingRate)
	}
	if diff := cmp.Diff([]float32{0.5, -0.25}, got.InputValues); diff != "" {
		t.Errorf("input_values mismatch (-want +got):\n%s", diff)
	}
	if inf.Text != "HELLO WORLD" {
		t.Errorf("Text = %q, want server text", inf.Text)
	}
	if diff := cmp.Diff(helloWorld, inf.TokenIDs); diff != "" {
		t.Errorf("TokenIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPRecognizerDecodesMissingText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token_ids": helloWorld})
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 16000, time.Second, testVocab(t))
	inf, err := rec.Infer(context.Background(), nil)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if inf.Text != "hello world" {
		t.Errorf("Text = %q, want %q", inf.Text, "hello world")
	}
}

func TestHTTPRecognizerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 16000, time.Second, nil)
	if _, err := rec.Infer(context.Background(), nil); err == nil {
		t.Error("Infer() should fail on a 503 response")
	}
}

func TestHTTPRecognizerCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewHTTPRecognizer(srv.URL, 16000, 5*time.Second, nil)
	if _, err := rec.Infer(ctx, nil); err == nil {
		t.Error("Infer() should fail with a canceled context")
	}
}

func TestNewBackends(t *testing.T) {
	if _, err := New(&config.RecognizerConfig{Backend: "http", URL: "http://localhost:9000/infer"}, 16000, nil); err != nil {
		t.Errorf("New(http) error = %v", err)
	}
	if _, err := New(&config.RecognizerConfig{Backend: "http"}, 16000, nil); err == nil {
		t.Error("New(http) without URL should fail")
	}
	if _, err := New(&config.RecognizerConfig{Backend: "whisper"}, 16000, nil); err == nil {
		t.Error("New(unknown) should fail")
	}
}
