package punctuate

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const frame30 = 30 * time.Millisecond

func TestClassifyEmpty(t *testing.T) {
	c := NewClassifier(frame30, DefaultMultiplier)
	got := c.Classify(map[int]time.Duration{3: time.Second, 9: time.Second})
	if len(got) != 0 {
		t.Errorf("Classify(offsets < 10) = %v, want empty", got)
	}
}

func TestClassifySingleMarkerIsFullStop(t *testing.T) {
	c := NewClassifier(frame30, DefaultMultiplier)
	for _, d := range []time.Duration{10 * time.Millisecond, 90 * time.Millisecond, 2 * time.Second} {
		got := c.Classify(map[int]time.Duration{4: d, 15: d})
		want := map[int]Class{15: FullStop}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Classify(%s) mismatch (-want +got):\n%s", d, diff)
		}
	}
}

func TestClassifyTwoMarkers(t *testing.T) {
	c := NewClassifier(frame30, DefaultMultiplier)
	got := c.Classify(map[int]time.Duration{
		12: 10 * time.Millisecond,
		40: 500 * time.Millisecond,
	})
	want := map[int]Class{12: Comma, 40: FullStop}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyUniformDurationsUseDistance(t *testing.T) {
	c := NewClassifier(frame30, DefaultMultiplier)
	d := 100 * time.Millisecond
	// gaps 300, 300, 900 ms: threshold = 500 + 1.2*282.8 ~ 839 ms
	got := c.Classify(map[int]time.Duration{10: d, 20: d, 30: d, 60: d})
	want := map[int]Class{10: Comma, 20: Comma, 30: FullStop, 60: FullStop}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyDistanceEqualToThresholdIsComma(t *testing.T) {
	c := NewClassifier(frame30, DefaultMultiplier)
	d := 100 * time.Millisecond
	// gaps 300, 300 ms: threshold is exactly 300 ms
	got := c.Classify(map[int]time.Duration{10: d, 20: d, 30: d})
	want := map[int]Class{10: Comma, 20: FullStop, 30: Comma}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyMixed(t *testing.T) {
	c := NewClassifier(frame30, DefaultMultiplier)
	got := c.Classify(map[int]time.Duration{
		10: 50 * time.Millisecond,
		25: 100 * time.Millisecond,
		40: 100 * time.Millisecond,
		55: 100 * time.Millisecond,
		90: 400 * time.Millisecond,
	})
	want := map[int]Class{10: Comma, 25: Comma, 40: FullStop, 55: Comma, 90: FullStop}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		values []float64
		q      float64
		want   float64
	}{
		{[]float64{4, 1, 3, 2}, 0.25, 1.75},
		{[]float64{4, 1, 3, 2}, 0.75, 3.25},
		{[]float64{10, 500}, 0.25, 132.5},
		{[]float64{10, 500}, 0.75, 377.5},
		{[]float64{7}, 0.5, 7},
		{[]float64{1, 2, 3}, 1, 3},
	}
	for _, tt := range tests {
		if got := Quantile(tt.values, tt.q); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Quantile(%v, %v) = %v, want %v", tt.values, tt.q, got, tt.want)
		}
	}
	if got := Quantile(nil, 0.5); !math.IsNaN(got) {
		t.Errorf("Quantile(nil) = %v, want NaN", got)
	}
}

func TestDynamicThreshold(t *testing.T) {
	if got := DynamicThreshold(nil, 1.2); got != 0 {
		t.Errorf("DynamicThreshold(nil) = %v, want 0", got)
	}
	// mean 5, population stddev 2
	got := DynamicThreshold([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 1.2)
	if math.Abs(got-7.4) > 1e-9 {
		t.Errorf("DynamicThreshold() = %v, want 7.4", got)
	}
}

func TestClassString(t *testing.T) {
	if Comma.String() != "comma" || FullStop.String() != "full_stop" {
		t.Errorf("String() = %q, %q", Comma.String(), FullStop.String())
	}
	if Class(0).Mark() != "" {
		t.Errorf("Class(0).Mark() = %q, want empty", Class(0).Mark())
	}
}
