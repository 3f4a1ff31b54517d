package correct

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-stream/internal/config"
)

// upper is a Corrector that uppercases and records its inputs.
type upper struct {
	mu     sync.Mutex
	inputs []string
	calls  atomic.Int32
	err    error
}

func (u *upper) Correct(_ context.Context, text string, _ int) (string, error) {
	u.calls.Add(1)
	u.mu.Lock()
	u.inputs = append(u.inputs, text)
	u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	return strings.ToUpper(text), nil
}

func TestStageEmptyPassthrough(t *testing.T) {
	u := &upper{}
	stage := NewStage(u, 64, zerolog.Nop())

	got, err := stage.Correct(context.Background(), "")
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if got != "" || u.calls.Load() != 0 {
		t.Errorf("Correct(\"\") = %q after %d calls, want empty and no calls", got, u.calls.Load())
	}
}

func TestStageCorrect(t *testing.T) {
	stage := NewStage(&upper{}, 64, zerolog.Nop())
	got, err := stage.Correct(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if got != "HELLO THERE" {
		t.Errorf("Correct() = %q, want %q", got, "HELLO THERE")
	}
}

func TestStageError(t *testing.T) {
	boom := errors.New("boom")
	stage := NewStage(&upper{err: boom}, 64, zerolog.Nop())
	if _, err := stage.Correct(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("Correct() error = %v, want wrapped boom", err)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"hello. World.", []string{"hello.", "World."}},
		{"one! two? three", []string{"one!", "two?", "three"}},
		{"version 1.2 is out.", []string{"version 1.2 is out."}},
		{"  spaced.   out.  ", []string{"spaced.", "out."}},
		{"", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, SplitSentences(tt.in)); diff != "" {
			t.Errorf("SplitSentences(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestChunkedPreservesOrder(t *testing.T) {
	u := &upper{}
	c := &Chunked{Corrector: u, Limit: 2}

	got, err := c.Correct(context.Background(), "first one. second one! third?", 32)
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if got != "FIRST ONE. SECOND ONE! THIRD?" {
		t.Errorf("Correct() = %q", got)
	}
	if u.calls.Load() != 3 {
		t.Errorf("corrector called %d times, want 3", u.calls.Load())
	}
}

func TestChunkedSingleSentence(t *testing.T) {
	u := &upper{}
	c := &Chunked{Corrector: u}
	if _, err := c.Correct(context.Background(), "no split here", 32); err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if diff := cmp.Diff([]string{"no split here"}, u.inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkedError(t *testing.T) {
	boom := errors.New("boom")
	c := &Chunked{Corrector: &upper{err: boom}}
	if _, err := c.Correct(context.Background(), "a. b.", 32); !errors.Is(err, boom) {
		t.Errorf("Correct() error = %v, want boom", err)
	}
}

func TestHTTPCorrector(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode([]map[string]string{{"generated_text": " Hello, world. "}})
	}))
	defer srv.Close()

	c := NewHTTPCorrector(srv.URL, 5*time.Second)
	out, err := c.Correct(context.Background(), "hello world", 128)
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if out != "Hello, world." {
		t.Errorf("Correct() = %q, want %q", out, "Hello, world.")
	}
	if got.Inputs != "hello world" || got.Parameters.MaxLength != 128 {
		t.Errorf("request = %+v", got)
	}
}

func TestHTTPCorrectorErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusTooManyRequests)
		}},
		{"no generations", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[]"))
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewHTTPCorrector(srv.URL, time.Second)
			if _, err := c.Correct(context.Background(), "x", 8); err == nil {
				t.Error("Correct() should fail")
			}
		})
	}
}

func TestNewBackends(t *testing.T) {
	c, err := New(&config.CorrectorConfig{Backend: "none"})
	if err != nil {
		t.Fatalf("New(none) error = %v", err)
	}
	if _, ok := c.(Passthrough); !ok {
		t.Errorf("New(none) = %T, want Passthrough", c)
	}

	c, err = New(&config.CorrectorConfig{Backend: "http", URL: "http://localhost:9001", Chunked: true})
	if err != nil {
		t.Fatalf("New(http) error = %v", err)
	}
	if _, ok := c.(*Chunked); !ok {
		t.Errorf("New(http, chunked) = %T, want *Chunked", c)
	}

	if _, err := New(&config.CorrectorConfig{Backend: "http"}); err == nil {
		t.Error("New(http) without URL should fail")
	}
	if _, err := New(&config.CorrectorConfig{Backend: "t5"}); err == nil {
		t.Error("New(unknown) should fail")
	}
}
