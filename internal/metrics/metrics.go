// Package metrics exposes Prometheus collectors for the transcription pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "gostt"

// Stage labels for StageDuration.
const (
	StageRecognize = "recognize"
	StagePunctuate = "punctuate"
	StageCorrect   = "correct"
)

// Segmentation counters (incremented by the segmenter worker).
var (
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_total",
		Help:      "Audio frames read, by voice-activity decision.",
	}, []string{"speech"})

	SegmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "segments_total",
		Help:      "Utterance segments emitted by the segmenter.",
	})

	PausesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pauses_total",
		Help:      "Classified pauses, by punctuation class.",
	}, []string{"class"})
)

// Stage metrics.
var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time spent processing one item per pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms → ~10s
	}, []string{"stage"})

	AlignmentErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alignment_errors_total",
		Help:      "Segments whose word alignment did not match the recognized text.",
	})

	EmptySegmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "empty_segments_total",
		Help:      "Segments that produced no recognized text.",
	})

	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Completed pipeline runs, by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		FramesTotal,
		SegmentsTotal,
		PausesTotal,
		StageDuration,
		AlignmentErrorsTotal,
		EmptySegmentsTotal,
		RunsTotal,
	)
}

// ObserveStage records the time since start for stage.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
