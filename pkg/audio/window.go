// Package audio holds the fixed capture format, the analysis window and a few
// sample-level helpers shared by the capture loop and the analyzers.
package audio

import (
	"math"
	"time"
)

// Fixed capture format.
const (
	SampleRate     = 44100
	Channels       = 1
	WindowDuration = 800 * time.Millisecond
)

const (
	// MinDB is the level reported for silence.
	MinDB = -60.0
	// MaxSampleValue is the full-scale reference for 16-bit audio.
	MaxSampleValue = 32768.0
)

// WindowSamples returns the number of samples one window of duration d holds
// at the given rate.
func WindowSamples(rate int, d time.Duration) int {
	return int(float64(rate) * d.Seconds())
}

// A Window is one contiguous capture of mono 16-bit samples. It is never
// modified after construction.
type Window struct {
	Samples    []int16
	SampleRate int
}

// NewWindow copies samples into a new Window.
func NewWindow(samples []int16, rate int) Window {
	s := make([]int16, len(samples))
	copy(s, samples)
	return Window{Samples: s, SampleRate: rate}
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return len(w.Samples)
}

// Duration returns the time span covered by the window.
func (w Window) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Level returns the RMS level of samples in dBFS, floored at MinDB.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return MinDB
	}

	var sumSquares float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)))
	if rms == 0 {
		return MinDB
	}

	db := 20 * math.Log10(rms/MaxSampleValue)
	return max(db, MinDB)
}
