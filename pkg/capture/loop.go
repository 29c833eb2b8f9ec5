// Package capture runs the capture, analyze, classify and dispatch cycle
// against an audio input device.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/metalblueberry/chordsnake/pkg/audio"
	"github.com/metalblueberry/chordsnake/pkg/chord"
	"github.com/metalblueberry/chordsnake/pkg/chroma"
	"github.com/metalblueberry/chordsnake/pkg/circular"
	"github.com/metalblueberry/chordsnake/pkg/command"
)

// Cycle failures. Each ends the current cycle only; the loop starts a new
// one.
var (
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	ErrCapture           = errors.New("audio capture failed")
	ErrShortWindow       = errors.New("short audio window")
)

// Defaults.
const (
	DefaultChunkSize      = 1024
	DefaultBackoffInitial = 100 * time.Millisecond
	DefaultBackoffMax     = 5 * time.Second

	// MinWindowFill is the share of a full window that must have arrived
	// for it to be analyzed. Input latency keeps real devices slightly
	// short of a full ring.
	MinWindowFill = 0.9
)

// State is the position of the loop in the cycle.
type State int32

const (
	Idle State = iota
	Acquire
	Capture
	Analyze
	Dispatch
	Release
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquire:
		return "acquire"
	case Capture:
		return "capture"
	case Analyze:
		return "analyze"
	case Dispatch:
		return "dispatch"
	case Release:
		return "release"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Sink receives the command produced by each completed cycle. Dispatch must
// not block.
type Sink interface {
	Dispatch(command.Direction)
}

// Detection is the outcome of one analyzed window.
type Detection struct {
	Cycle     uint64
	Chord     chord.Result
	Direction command.Direction
	Spectrum  *chroma.Spectrum
}

// Config parameterizes a Loop. Zero values select the defaults.
type Config struct {
	SampleRate     int
	WindowDuration time.Duration
	ChunkSize      int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	Mapper *command.Mapper
	Logger *slog.Logger

	// Observer is called from the loop goroutine with every detection
	// before the command is dispatched. It must not block.
	Observer func(Detection)

	// Clock returns the current time; tests substitute a fake clock.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.SampleRate
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = audio.WindowDuration
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.Mapper == nil {
		c.Mapper = command.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Stats counts loop activity.
type Stats struct {
	Cycles         uint64
	Windows        uint64
	Commands       uint64
	DeviceFailures uint64
	CaptureErrors  uint64
	ShortWindows   uint64
}

// Loop owns the device and runs one cycle after another until cancelled:
// Acquire, Capture, Analyze, Dispatch, Release. Any failure ends the cycle
// and the next one starts at Acquire.
type Loop struct {
	device   Device
	sink     Sink
	cfg      Config
	analyzer *chroma.Analyzer
	ring     *circular.Buffer[int16]
	chunk    []int16
	backoff  *Backoff
	logger   *slog.Logger

	state          atomic.Int32
	cycles         atomic.Uint64
	windows        atomic.Uint64
	commands       atomic.Uint64
	deviceFailures atomic.Uint64
	captureErrors  atomic.Uint64
	shortWindows   atomic.Uint64
}

// NewLoop returns a loop reading from device and handing commands to sink.
func NewLoop(device Device, sink Sink, cfg Config) *Loop {
	cfg = cfg.withDefaults()
	return &Loop{
		device:   device,
		sink:     sink,
		cfg:      cfg,
		analyzer: chroma.Create(),
		ring:     circular.CreateBuffer[int16](audio.WindowSamples(cfg.SampleRate, cfg.WindowDuration)),
		chunk:    make([]int16, cfg.ChunkSize),
		backoff:  NewBackoff(cfg.BackoffInitial, cfg.BackoffMax),
		logger:   cfg.Logger,
	}
}

// State returns the current cycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:         l.cycles.Load(),
		Windows:        l.windows.Load(),
		Commands:       l.commands.Load(),
		DeviceFailures: l.deviceFailures.Load(),
		CaptureErrors:  l.captureErrors.Load(),
		ShortWindows:   l.shortWindows.Load(),
	}
}

// Run executes cycles until ctx is cancelled and returns ctx.Err(). No
// single failed cycle stops the loop. Failed cycles are retried after the
// backoff delay, which only resets once a window has been analyzed.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(Stopped)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := l.cycle(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			continue
		}

		delay := l.backoff.Next()
		switch {
		case errors.Is(err, ErrDeviceUnavailable):
			l.deviceFailures.Add(1)
			l.logger.Warn("audio device unavailable", "error", err, "retry_in", delay)
		case errors.Is(err, ErrShortWindow):
			l.shortWindows.Add(1)
			l.logger.Debug("discarded short window", "error", err, "retry_in", delay)
		case errors.Is(err, ErrCapture):
			l.captureErrors.Add(1)
			l.logger.Warn("capture cycle failed", "error", err, "retry_in", delay)
		default:
			l.logger.Error("cycle failed", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (l *Loop) cycle(ctx context.Context) error {
	n := l.cycles.Add(1)

	l.setState(Acquire)
	if err := l.device.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	defer func() {
		l.setState(Release)
		if err := l.device.Close(); err != nil {
			l.logger.Warn("failed to release audio device", "error", err)
		}
	}()

	l.setState(Capture)
	w, err := l.capture(ctx)
	if err != nil {
		return err
	}

	l.setState(Analyze)
	spectrum, err := l.analyzer.Analyze(w)
	if err != nil {
		return fmt.Errorf("failed to analyze window: %w", err)
	}
	l.windows.Add(1)
	l.backoff.Reset()
	if spectrum.Degenerate() {
		l.logger.Debug("silent window", "cycle", n)
	}

	result := chord.Classify(spectrum)
	det := Detection{
		Cycle:     n,
		Chord:     result,
		Direction: l.cfg.Mapper.Map(result),
		Spectrum:  spectrum,
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	l.setState(Dispatch)
	if l.cfg.Observer != nil {
		l.cfg.Observer(det)
	}
	if det.Direction != command.None {
		l.commands.Add(1)
		l.logger.Debug("chord command", "chord", result.Entry().Name(), "direction", det.Direction.String(), "level", spectrum.Level)
	}
	l.sink.Dispatch(det.Direction)
	return nil
}

// capture fills the ring until the window duration has elapsed on the
// clock, counted from the moment the first read returns. A window holding
// less than MinWindowFill of the ring is short; a partial one is analyzed
// as is.
func (l *Loop) capture(ctx context.Context) (audio.Window, error) {
	l.ring.Reset()
	var start time.Time

	for first := true; ; first = false {
		if err := ctx.Err(); err != nil {
			return audio.Window{}, err
		}

		n, err := l.device.Read(l.chunk)
		if err != nil {
			return audio.Window{}, fmt.Errorf("%w: %w", ErrCapture, err)
		}
		if n > 0 {
			l.ring.Enqueue(l.chunk[:n]...)
		}

		now := l.cfg.Clock()
		if first {
			start = now
		}
		if now.Sub(start) >= l.cfg.WindowDuration {
			break
		}
	}

	size := l.ring.Length()
	written := l.ring.Written()
	if float64(written) < MinWindowFill*float64(size) {
		return audio.Window{}, fmt.Errorf("%w: %d of %d samples", ErrShortWindow, written, size)
	}

	samples := make([]int16, size)
	if err := l.ring.Retrieve(samples); err != nil {
		return audio.Window{}, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	// the ring was reset, so unwritten slots come first
	if written < uint64(size) {
		samples = samples[uint64(size)-written:]
	}
	return audio.Window{Samples: samples, SampleRate: l.cfg.SampleRate}, nil
}
