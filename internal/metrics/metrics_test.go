package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, stage string) uint64 {
	t.Helper()
	var m dto.Metric
	if err := StageDuration.WithLabelValues(stage).(prometheus.Histogram).Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestObserveStage(t *testing.T) {
	before := histogramCount(t, StageCorrect)
	ObserveStage(StageCorrect, time.Now().Add(-20*time.Millisecond))
	if got := histogramCount(t, StageCorrect); got != before+1 {
		t.Errorf("sample count = %d, want %d", got, before+1)
	}
}

func TestCollectorsRegistered(t *testing.T) {
	SegmentsTotal.Inc()
	PausesTotal.WithLabelValues("comma").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"gostt_segments_total", "gostt_pauses_total", "gostt_stage_duration_seconds"} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}
