// Package punctuate reconstructs commas, full stops and capitalization
// from the timing of pauses inside an utterance.
package punctuate

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// Class is the punctuation assigned to a pause.
type Class int

const (
	Comma Class = iota + 1
	FullStop
)

func (c Class) String() string {
	switch c {
	case Comma:
		return "comma"
	case FullStop:
		return "full_stop"
	default:
		return "none"
	}
}

// Mark returns the punctuation character for c.
func (c Class) Mark() string {
	switch c {
	case Comma:
		return ","
	case FullStop:
		return "."
	default:
		return ""
	}
}

const (
	// DefaultMultiplier scales the standard deviation in the distance threshold.
	DefaultMultiplier = 1.2
	// DefaultMinOffset matches the segmenter's micro-pause cutoff.
	DefaultMinOffset = 10
)

// Classifier assigns a Class to each pause of one utterance.
type Classifier struct {
	FrameDuration time.Duration
	MinOffset     int
	Multiplier    float64
	Log           zerolog.Logger
}

// NewClassifier returns a Classifier with the default offset cutoff and a
// no-op logger.
func NewClassifier(frameDur time.Duration, multiplier float64) Classifier {
	return Classifier{
		FrameDuration: frameDur,
		MinOffset:     DefaultMinOffset,
		Multiplier:    multiplier,
		Log:           zerolog.Nop(),
	}
}

// Classify maps pause offsets (in frames) with their durations to classes.
//
// Pauses shorter than the 25th percentile are commas and pauses longer than
// the 75th are full stops. The rest are decided by their distance from the
// previous full stop (or the start of the utterance) against a threshold of
// mean + Multiplier*stddev over the gaps between consecutive pauses. A
// distance equal to the threshold is a comma.
func (c Classifier) Classify(markers map[int]time.Duration) map[int]Class {
	offsets := make([]int, 0, len(markers))
	for off := range markers {
		if off >= c.MinOffset {
			offsets = append(offsets, off)
		}
	}
	sort.Ints(offsets)

	out := make(map[int]Class, len(offsets))
	switch len(offsets) {
	case 0:
		return out
	case 1:
		out[offsets[0]] = FullStop
		return out
	}

	durations := make([]float64, len(offsets))
	for i, off := range offsets {
		durations[i] = float64(markers[off])
	}
	q25 := Quantile(durations, 0.25)
	q75 := Quantile(durations, 0.75)

	var pending []int
	for i, off := range offsets {
		switch d := durations[i]; {
		case d < q25:
			out[off] = Comma
		case d > q75:
			out[off] = FullStop
		default:
			pending = append(pending, off)
		}
	}
	if len(pending) == 0 {
		return out
	}

	frameMs := float64(c.FrameDuration) / float64(time.Millisecond)
	gaps := make([]float64, len(offsets)-1)
	for i := 1; i < len(offsets); i++ {
		gaps[i-1] = float64(offsets[i]-offsets[i-1]) * frameMs
	}
	threshold := DynamicThreshold(gaps, c.Multiplier)
	c.Log.Debug().
		Float64("threshold_ms", threshold).
		Int("pending", len(pending)).
		Msg("resolving pauses by distance")

	for _, off := range pending {
		since := off
		if prev, ok := previousFullStop(out, off); ok {
			since = off - prev
		}
		if float64(since)*frameMs <= threshold {
			out[off] = Comma
		} else {
			out[off] = FullStop
		}
	}
	return out
}

// previousFullStop returns the largest FullStop offset below off.
func previousFullStop(classes map[int]Class, off int) (int, bool) {
	best, found := 0, false
	for k, cls := range classes {
		if cls == FullStop && k < off && (!found || k > best) {
			best, found = k, true
		}
	}
	return best, found
}

// DynamicThreshold returns mean + k*stddev of values, using the population
// standard deviation. It returns 0 for no values.
func DynamicThreshold(values []float64, k float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean + k*math.Sqrt(sq/float64(len(values)))
}

// Quantile returns the q-th quantile (0 <= q <= 1) of values by linear
// interpolation between the closest ranks. values need not be sorted and is
// not modified.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
