package chroma

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/andrepxx/go-dsp-guitar/fft"
	"github.com/metalblueberry/chordsnake/pkg/audio"
)

/*
 * Global constants.
 */
const (
	NUM_CLASSES    = 12
	MIN_FREQUENCY  = 27.5
	MAX_FREQUENCY  = 5000.0
	REFERENCE_A4   = 440.0
	REFERENCE_MIDI = 69
)

// Fold table marker for bins outside the analyzed range.
const noFold = -1

var ErrEmptyWindow = errors.New("empty audio window")

/*
 * Names of the pitch classes, index 0 is C.
 */
var ClassNames = [NUM_CLASSES]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "G#", "A", "Bb", "B"}

/*
 * Data structure representing the octave-folded energy of one window.
 */
type Spectrum struct {
	Classes [NUM_CLASSES]float64
	Energy  float64
	Level   float64
}

/*
 * Reports whether no energy could be attributed to any pitch class, which
 * is the case for all-silence windows.
 */
func (this *Spectrum) Degenerate() bool {
	sum := 0.0

	for _, value := range this.Classes {
		sum += value
	}

	return sum == 0.0
}

/*
 * Returns the pitch class carrying the most energy, or -1 for a degenerate
 * spectrum.
 */
func (this *Spectrum) Dominant() int {

	if this.Degenerate() {
		return -1
	}

	_, idx := findMaximum(this.Classes[:])
	return idx
}

/*
 * Data structure representing a chroma analyzer.
 */
type Analyzer struct {
	mutexAnalyze     sync.Mutex
	fourierTransform fft.FourierTransform
	bufSignal        []float64
	bufFFT           []complex128
	window           []float64
	fold             []int
	foldRate         int
}

/*
 * Find the maximum value in a buffer.
 */
func findMaximum(buf []float64) (float64, int) {
	maxVal := math.Inf(-1)
	maxIdx := int(-1)

	for idx, value := range buf {

		if value > maxVal {
			maxVal = value
			maxIdx = idx
		}

	}

	return maxVal, maxIdx
}

/*
 * Maps a frequency to its pitch class via the nearest equal-tempered
 * semitone.
 *
 * m(f) = round(12 * log2(f / 440)) + 69
 */
func PitchClass(frequency float64) int {
	semitones := 12.0 * math.Log2(frequency/REFERENCE_A4)
	midi := int(math.Round(semitones)) + REFERENCE_MIDI
	return ((midi % NUM_CLASSES) + NUM_CLASSES) % NUM_CLASSES
}

/*
 * Generates the bin to pitch class table for an FFT of a given size.
 */
func generateFold(fftSize int, sampleRate int) []int {
	half := fftSize / 2
	fold := make([]int, half+1)
	binWidth := float64(sampleRate) / float64(fftSize)

	for k := range fold {
		freq := float64(k) * binWidth

		if freq < MIN_FREQUENCY || freq > MAX_FREQUENCY {
			fold[k] = noFold
		} else {
			fold[k] = PitchClass(freq)
		}

	}

	return fold
}

/*
 * Generates a Hann window of a given length.
 */
func generateWindow(n int) []float64 {
	w := make([]float64, n)

	if n == 1 {
		w[0] = 1.0
		return w
	}

	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2.0*math.Pi*float64(i)/float64(n-1))
	}

	return w
}

/*
 * Analyze a window for its pitch class content.
 */
func (this *Analyzer) Analyze(w audio.Window) (*Spectrum, error) {
	n := len(w.Samples)

	if n == 0 {
		return nil, ErrEmptyWindow
	}

	this.mutexAnalyze.Lock()
	defer this.mutexAnalyze.Unlock()
	fftSize64, _ := fft.NextPowerOfTwo(uint64(n))
	fftSize := int(fftSize64)

	/*
	 * Ensure that scratch buffers are of correct length.
	 */
	if len(this.bufSignal) != fftSize {
		this.bufSignal = make([]float64, fftSize)
		this.bufFFT = make([]complex128, fftSize)
		this.fold = nil
	}

	if len(this.window) != n {
		this.window = generateWindow(n)
	}

	if this.fold == nil || this.foldRate != w.SampleRate {
		this.fold = generateFold(fftSize, w.SampleRate)
		this.foldRate = w.SampleRate
	}

	bufSignal := this.bufSignal
	window := this.window

	for i, sample := range w.Samples {
		bufSignal[i] = (float64(sample) / audio.MaxSampleValue) * window[i]
	}

	fft.ZeroFloat(bufSignal[n:fftSize])
	err := this.fourierTransform.RealFourier(bufSignal, this.bufFFT, fft.SCALING_DEFAULT)

	/*
	 * Verify that the forward FFT was calculated successfully.
	 */
	if err != nil {
		return nil, fmt.Errorf("failed to calculate forward FFT: %w", err)
	}

	result := Spectrum{
		Level: audio.Level(w.Samples),
	}

	folded := 0.0

	/*
	 * Sum magnitudes per pitch class over the non-negative frequencies.
	 */
	for k, class := range this.fold {
		magnitude := cmplx.Abs(this.bufFFT[k])
		result.Energy += magnitude

		if class != noFold {
			result.Classes[class] += magnitude
			folded += magnitude
		}

	}

	/*
	 * Normalize to unit sum unless the window carried no tonal energy.
	 */
	if folded > 0.0 {

		for i := range result.Classes {
			result.Classes[i] /= folded
		}

	}

	return &result, nil
}

/*
 * Creates a chroma analyzer.
 */
func Create() *Analyzer {
	ft := fft.CreateFourierTransform()

	a := Analyzer{
		fourierTransform: ft,
	}

	return &a
}
