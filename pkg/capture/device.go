package capture

// Device is an audio input acquired for the duration of one capture cycle.
// Read blocks until samples are available and returns how many were written
// to buf.
type Device interface {
	Open() error
	Read(buf []int16) (int, error)
	Close() error
}
