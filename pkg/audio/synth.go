package audio

import (
	"encoding/binary"
	"io"
	"math"
)

// Chord renders n samples of equally weighted sine waves at freqs. The peak
// of the mix is scaled to amplitude (0..1 of full scale).
func Chord(freqs []float64, amplitude float64, rate, n int) []int16 {
	out := make([]int16, n)
	if len(freqs) == 0 || rate <= 0 {
		return out
	}

	gain := amplitude * (MaxSampleValue - 1) / float64(len(freqs))
	for i := range out {
		t := float64(i) / float64(rate)
		var v float64
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * t)
		}
		out[i] = int16(v * gain)
	}
	return out
}

// Tone renders a single sine with a short linear fade at both ends to avoid
// clicks when played back.
func Tone(freq, amplitude float64, rate, n int) []int16 {
	out := Chord([]float64{freq}, amplitude, rate, n)
	fade := min(rate/200, n/2)
	for i := 0; i < fade; i++ {
		g := float64(i) / float64(fade)
		out[i] = int16(float64(out[i]) * g)
		out[n-1-i] = int16(float64(out[n-1-i]) * g)
	}
	return out
}

// NoteFrequency returns the equal-tempered frequency of a MIDI note number.
func NoteFrequency(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// PCMReader streams samples as signed 16-bit little-endian bytes.
type PCMReader struct {
	samples []int16
	pos     int
}

// NewPCMReader returns a reader over samples.
func NewPCMReader(samples []int16) *PCMReader {
	return &PCMReader{samples: samples}
}

func (r *PCMReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.samples) {
		return 0, io.EOF
	}
	n := 0
	for n+1 < len(p) && r.pos < len(r.samples) {
		binary.LittleEndian.PutUint16(p[n:], uint16(r.samples[r.pos]))
		r.pos++
		n += 2
	}
	return n, nil
}
