// Package vad decides whether a frame of PCM audio contains speech.
package vad

import (
	"fmt"
	"math"
)

// Detector is a binary speech/silence classifier for one frame.
type Detector interface {
	IsSpeech(frame []int16, sampleRate int) (bool, error)
}

// Base thresholds for mode 1, applied to samples normalized to [-1, 1).
const (
	baseEnergyThresh  = 0.0005
	baseSilenceThresh = 0.015
)

// modeScale maps a sensitivity mode to a threshold multiplier. Higher modes
// are more aggressive about classifying quiet frames as silence.
var modeScale = [...]float64{0.5, 1, 1.5, 2}

var supportedRates = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}

// EnergyDetector classifies frames by mean energy and mean absolute amplitude.
// Both must clear their threshold for a frame to count as speech.
type EnergyDetector struct {
	mode          int
	energyThresh  float64
	silenceThresh float64
}

// NewEnergyDetector returns a detector for sensitivity mode 0 (least
// aggressive) through 3 (most aggressive).
func NewEnergyDetector(mode int) (*EnergyDetector, error) {
	if mode < 0 || mode >= len(modeScale) {
		return nil, fmt.Errorf("vad: mode %d out of range 0-%d", mode, len(modeScale)-1)
	}
	scale := modeScale[mode]
	return &EnergyDetector{
		mode:          mode,
		energyThresh:  baseEnergyThresh * scale,
		silenceThresh: baseSilenceThresh * scale,
	}, nil
}

// Mode returns the configured sensitivity mode.
func (d *EnergyDetector) Mode() int { return d.mode }

// IsSpeech reports whether frame holds speech. The frame must be 10, 20 or
// 30 ms long at one of 8, 16, 32 or 48 kHz.
func (d *EnergyDetector) IsSpeech(frame []int16, sampleRate int) (bool, error) {
	if err := ValidFrame(len(frame), sampleRate); err != nil {
		return false, err
	}
	energy, level := measure(frame)
	return energy >= d.energyThresh && level >= d.silenceThresh, nil
}

// ValidFrame checks a frame length and sample rate against what detectors accept.
func ValidFrame(samples, sampleRate int) error {
	if !supportedRates[sampleRate] {
		return fmt.Errorf("vad: unsupported sample rate %d", sampleRate)
	}
	for _, ms := range []int{10, 20, 30} {
		if samples == sampleRate*ms/1000 {
			return nil
		}
	}
	return fmt.Errorf("vad: frame of %d samples is not 10, 20 or 30 ms at %d Hz", samples, sampleRate)
}

// measure returns the mean energy and mean absolute amplitude of frame.
func measure(frame []int16) (energy, level float64) {
	for _, s := range frame {
		v := float64(s) / 32768.0
		energy += v * v
		level += math.Abs(v)
	}
	n := float64(len(frame))
	return energy / n, level / n
}
