// Package audio supplies fixed-duration PCM frames from WAV files and live
// capture devices, and the small amount of sample math the pipeline needs.
package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gopxl/beep"
)

// ErrFormatMismatch is returned when a source does not deliver the audio
// format the pipeline was configured for. It is never retried.
var ErrFormatMismatch = errors.New("audio: format mismatch")

// Frame is one fixed-size block of mono 16-bit PCM samples.
type Frame struct {
	// Index counts frames from the start of the source, starting at 0.
	Index   int
	Samples []int16
}

// Format describes the PCM layout of a source.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// FrameSize returns the number of samples in a frame of duration d.
func (f Format) FrameSize(d time.Duration) int {
	return beep.SampleRate(f.SampleRate).N(d)
}

// Duration returns the playback duration of n samples.
func (f Format) Duration(n int) time.Duration {
	return beep.SampleRate(f.SampleRate).D(n)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// Source produces frames. Next returns io.EOF once a finite source is
// exhausted; live sources only return io.EOF after Close.
type Source interface {
	Format() Format
	Next() (Frame, error)
}

// FormatError reports the expected and actual formats of a mismatched source.
type FormatError struct {
	Want Format
	Got  Format
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("audio: format mismatch: expected %s, got %s", e.Want, e.Got)
}

func (e *FormatError) Unwrap() error { return ErrFormatMismatch }

// CheckFormat returns a *FormatError when got differs from want.
func CheckFormat(want, got Format) error {
	if want != got {
		return &FormatError{Want: want, Got: got}
	}
	return nil
}

// Mono16 is the layout every source must deliver: mono, 16-bit.
func Mono16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 1, BitDepth: 16}
}

// ToFloat32 converts 16-bit PCM to float32 samples in [-1.0, 1.0).
func ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}
