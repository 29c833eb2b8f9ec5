package dispatch

import "sync"

// Slot is a single-value mailbox. Put never blocks: a value that has not
// been taken yet is replaced by the newer one.
type Slot[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool
	dropped uint64
	ready   chan struct{}
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{}, 1)}
}

// Put stores v, overwriting any value that has not been taken. It reports
// whether an older value was dropped.
func (s *Slot[T]) Put(v T) bool {
	s.mu.Lock()
	overwrote := s.pending
	if overwrote {
		s.dropped++
	}
	s.value = v
	s.pending = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return overwrote
}

// Take returns the pending value, if any, and empties the slot.
func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	if !s.pending {
		return zero, false
	}
	v := s.value
	s.value = zero
	s.pending = false
	return v, true
}

// Ready is signalled after a Put. A signal may be stale, so receivers must
// call Take and handle an empty slot.
func (s *Slot[T]) Ready() <-chan struct{} {
	return s.ready
}

// Dropped returns how many values were overwritten before being taken.
func (s *Slot[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
