// Package command maps classified chords to directional commands.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/metalblueberry/chordsnake/pkg/audio"
	"github.com/metalblueberry/chordsnake/pkg/chord"
)

// Direction is a move command for the game surface.
type Direction int

const (
	None Direction = iota
	Left
	Up
	Down
	Right
)

func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case Left:
		return "left"
	case Up:
		return "up"
	case Down:
		return "down"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection parses the lower-case name produced by String.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, nil
	case "left":
		return Left, nil
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "right":
		return Right, nil
	}
	return None, fmt.Errorf("unknown direction %q", s)
}

// ErrInvalidBindings is returned when bindings do not cover each direction
// exactly once.
var ErrInvalidBindings = errors.New("invalid chord bindings")

// DefaultMinLevel is the level in dBFS below which windows never produce a
// command.
const DefaultMinLevel = -50.0

// DefaultBindings binds D to left, E to up, Dm to right and Em to down.
func DefaultBindings() map[int]Direction {
	return map[int]Direction{
		36: Left,
		44: Up,
		37: Right,
		45: Down,
	}
}

// Mapper turns classification results into directions. The lookup table is
// fixed at construction.
type Mapper struct {
	table    [chord.Size]Direction
	minLevel float64
}

// NewMapper validates bindings and builds the lookup table. A minLevel at or
// below audio.MinDB disables the silence gate.
func NewMapper(bindings map[int]Direction, minLevel float64) (*Mapper, error) {
	if len(bindings) != 4 {
		return nil, fmt.Errorf("%w: got %d bindings, want 4", ErrInvalidBindings, len(bindings))
	}

	m := &Mapper{minLevel: minLevel}
	used := map[Direction]int{}
	for idx, d := range bindings {
		if idx < 0 || idx >= chord.Size {
			return nil, fmt.Errorf("%w: chord index %d out of range", ErrInvalidBindings, idx)
		}
		if d == None || d > Right || d < None {
			return nil, fmt.Errorf("%w: chord %d bound to %v", ErrInvalidBindings, idx, d)
		}
		if prev, ok := used[d]; ok {
			return nil, fmt.Errorf("%w: %v bound to both %d and %d", ErrInvalidBindings, d, prev, idx)
		}
		used[d] = idx
		m.table[idx] = d
	}
	return m, nil
}

// Default returns the mapper with DefaultBindings and DefaultMinLevel.
func Default() *Mapper {
	m, err := NewMapper(DefaultBindings(), DefaultMinLevel)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the direction bound to a chord index, ignoring the silence
// gate. Unknown indices map to None.
func (m *Mapper) Lookup(index int) Direction {
	if index < 0 || index >= chord.Size {
		return None
	}
	return m.table[index]
}

// Map returns the command for a classification result.
func (m *Mapper) Map(r chord.Result) Direction {
	if s := r.Spectrum; s != nil {
		if s.Degenerate() {
			return None
		}
		if m.minLevel > audio.MinDB && s.Level < m.minLevel {
			return None
		}
	}
	return m.Lookup(r.Index)
}
