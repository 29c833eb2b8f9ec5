package chroma

import (
	"errors"
	"math"
	"testing"

	"github.com/metalblueberry/chordsnake/pkg/audio"
)

func window(freqs ...float64) audio.Window {
	n := audio.WindowSamples(audio.SampleRate, audio.WindowDuration)
	return audio.Window{
		Samples:    audio.Chord(freqs, 0.5, audio.SampleRate, n),
		SampleRate: audio.SampleRate,
	}
}

func TestPitchClass(t *testing.T) {
	tests := []struct {
		freq float64
		want int
	}{
		{440.0, 9},
		{261.63, 0},
		{293.66, 2},
		{27.5, 9},
		{4186.0, 0},
		{452.0, 9},  // +47 cents still folds to A
		{455.0, 10}, // +58 cents folds to Bb
	}
	for _, tt := range tests {
		if got := PitchClass(tt.freq); got != tt.want {
			t.Errorf("PitchClass(%f) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestAnalyzeSilence(t *testing.T) {
	a := Create()
	w := audio.Window{Samples: make([]int16, 35280), SampleRate: audio.SampleRate}

	s, err := a.Analyze(w)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for i, v := range s.Classes {
		if v != 0 {
			t.Errorf("Classes[%d] = %f, want 0", i, v)
		}
	}
	if s.Energy != 0 {
		t.Errorf("Energy = %f, want 0", s.Energy)
	}
	if !s.Degenerate() {
		t.Error("Degenerate() = false for silence")
	}
	if s.Dominant() != -1 {
		t.Errorf("Dominant() = %d, want -1", s.Dominant())
	}
	if s.Level != audio.MinDB {
		t.Errorf("Level = %f, want %f", s.Level, audio.MinDB)
	}
}

func TestAnalyzeEmptyWindow(t *testing.T) {
	_, err := Create().Analyze(audio.Window{SampleRate: audio.SampleRate})
	if !errors.Is(err, ErrEmptyWindow) {
		t.Errorf("err = %v, want ErrEmptyWindow", err)
	}
}

func TestAnalyzeSingleTone(t *testing.T) {
	s, err := Create().Analyze(window(440.0))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if s.Dominant() != 9 {
		t.Errorf("Dominant() = %d (%s), want A", s.Dominant(), ClassNames[max(s.Dominant(), 0)])
	}
	if s.Classes[9] < 0.8 {
		t.Errorf("A carries %f of the energy, want > 0.8", s.Classes[9])
	}
}

func TestAnalyzeChordClasses(t *testing.T) {
	s, err := Create().Analyze(window(293.66, 369.99, 440.0))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	sum := 0.0
	for i, v := range s.Classes {
		if v < 0 {
			t.Errorf("Classes[%d] = %f, want non-negative", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("class sum = %f, want 1", sum)
	}
	if s.Energy <= 0 {
		t.Errorf("Energy = %f, want > 0", s.Energy)
	}

	triad := s.Classes[2] + s.Classes[6] + s.Classes[9]
	if triad < 0.8 {
		t.Errorf("D, F#, A carry %f of the energy, want > 0.8", triad)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := Create()
	w := window(329.63, 415.30, 493.88)

	first, err := a.Analyze(w)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := a.Analyze(w)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if *first != *second {
		t.Errorf("analysis differs between runs:\n%+v\n%+v", first, second)
	}
}

func TestAnalyzeReusesAcrossSizes(t *testing.T) {
	a := Create()
	short := audio.Window{Samples: audio.Chord([]float64{440}, 0.5, audio.SampleRate, 4096), SampleRate: audio.SampleRate}

	if _, err := a.Analyze(window(440)); err != nil {
		t.Fatalf("Analyze long: %v", err)
	}
	s, err := a.Analyze(short)
	if err != nil {
		t.Fatalf("Analyze short: %v", err)
	}
	if s.Dominant() != 9 {
		t.Errorf("Dominant() = %d, want 9", s.Dominant())
	}
}

func TestFoldRange(t *testing.T) {
	const size = 65536
	fold := generateFold(size, audio.SampleRate)
	if len(fold) != size/2+1 {
		t.Fatalf("len(fold) = %d, want %d", len(fold), size/2+1)
	}
	binWidth := float64(audio.SampleRate) / size

	for k, class := range fold {
		freq := float64(k) * binWidth
		inRange := freq >= MIN_FREQUENCY && freq <= MAX_FREQUENCY
		if !inRange && class != noFold {
			t.Fatalf("bin %d (%.1f Hz) folded to %d, want excluded", k, freq, class)
		}
		if inRange && class != PitchClass(freq) {
			t.Fatalf("bin %d (%.1f Hz) folded to %d, want %d", k, freq, class, PitchClass(freq))
		}
	}
	if fold[0] != noFold {
		t.Errorf("DC bin folded to %d", fold[0])
	}
}
