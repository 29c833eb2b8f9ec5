// Package dispatch hands commands from the capture loop to the game surface
// without letting either side block the other.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/metalblueberry/chordsnake/pkg/command"
)

// Mode is the state of the game surface.
type Mode int

const (
	Ready Mode = iota
	Running
	Pause
	Lose
)

func (m Mode) String() string {
	switch m {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Pause:
		return "pause"
	case Lose:
		return "lose"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Surface is the game control surface fed by the dispatcher. SetMode is part
// of the surface but never called by the pipeline.
type Surface interface {
	SetMode(Mode)
	SubmitMove(command.Direction)
}

// Stats counts commands through the dispatcher.
type Stats struct {
	Submitted uint64
	Delivered uint64
	Dropped   uint64
}

// Dispatcher forwards non-None commands to a Surface from its own goroutine.
// Only the latest undelivered command is kept: if the surface is slower than
// the capture loop, older commands are dropped.
type Dispatcher struct {
	slot      *Slot[command.Direction]
	submitted atomic.Uint64
	delivered atomic.Uint64
	logger    *slog.Logger
}

// New returns a dispatcher. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		slot:   NewSlot[command.Direction](),
		logger: logger,
	}
}

// Dispatch queues d for delivery. None is ignored. It never blocks.
func (d *Dispatcher) Dispatch(dir command.Direction) {
	if dir == command.None {
		return
	}
	d.submitted.Add(1)
	if d.slot.Put(dir) {
		d.logger.Debug("dropped stale command", "replaced_by", dir.String())
	}
}

// Run delivers commands to s until ctx is done. Each command is delivered at
// most once; nothing is delivered after ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, s Surface) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.slot.Ready():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dir, ok := d.slot.Take()
			if !ok {
				continue
			}
			s.SubmitMove(dir)
			d.delivered.Add(1)
		}
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Delivered: d.delivered.Load(),
		Dropped:   d.slot.Dropped(),
	}
}

// SurfaceFunc adapts a function to a Surface that ignores mode changes.
type SurfaceFunc func(command.Direction)

func (f SurfaceFunc) SetMode(Mode) {}

func (f SurfaceFunc) SubmitMove(d command.Direction) { f(d) }

// LogSurface logs every move and mode change.
type LogSurface struct {
	Logger *slog.Logger
}

func (l LogSurface) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l LogSurface) SetMode(m Mode) {
	l.logger().Info("mode changed", "mode", m.String())
}

func (l LogSurface) SubmitMove(d command.Direction) {
	l.logger().Info("move", "direction", d.String())
}

// Fanout forwards to several surfaces in order.
type Fanout []Surface

func (f Fanout) SetMode(m Mode) {
	for _, s := range f {
		s.SetMode(m)
	}
}

func (f Fanout) SubmitMove(d command.Direction) {
	for _, s := range f {
		s.SubmitMove(d)
	}
}
