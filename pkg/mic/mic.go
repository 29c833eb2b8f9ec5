// Package mic implements capture.Device on top of PortAudio.
package mic

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"github.com/metalblueberry/chordsnake/pkg/audio"
	"github.com/metalblueberry/chordsnake/pkg/capture"
)

var _ capture.Device = (*Device)(nil)

// DeviceInfo describes an input device reported by PortAudio.
type DeviceInfo struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// ListInputDevices returns all devices with at least one input channel.
// portaudio.Initialize must have been called.
func ListInputDevices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var out []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}

// Device captures mono 16-bit PCM through a blocking PortAudio
// stream. portaudio.Initialize must have been called before Open.
type Device struct {
	// Name selects the first input device whose name contains it. Empty
	// selects the default input device.
	Name            string
	FramesPerBuffer int
	Logger          *slog.Logger

	stream    *portaudio.Stream
	buf       []int16
	overflows atomic.Uint64
}

// New returns a device for the named input.
func New(name string, framesPerBuffer int, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{Name: name, FramesPerBuffer: framesPerBuffer, Logger: logger}
}

func (d *Device) findInput() (*portaudio.DeviceInfo, error) {
	if d.Name == "" {
		return portaudio.DefaultInputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(dev.Name, d.Name) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("couldn't find input device matching %q", d.Name)
}

// Open acquires the input and starts the stream.
func (d *Device) Open() error {
	if d.stream != nil {
		return errors.New("device already open")
	}

	input, err := d.findInput()
	if err != nil {
		return err
	}

	p := portaudio.HighLatencyParameters(input, nil)
	p.Input.Channels = audio.Channels
	p.SampleRate = audio.SampleRate
	p.FramesPerBuffer = d.FramesPerBuffer

	buf := make([]int16, d.FramesPerBuffer)
	stream, err := portaudio.OpenStream(p, buf)
	if err != nil {
		return fmt.Errorf("failed to open stream on %q: %w", input.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("failed to start stream on %q: %w", input.Name, err)
	}

	d.stream = stream
	d.buf = buf
	d.Logger.Debug("device opened", "device", input.Name, "frames_per_buffer", d.FramesPerBuffer)
	return nil
}

// Read blocks until one buffer of samples is available. Input overflows
// are counted and otherwise ignored.
func (d *Device) Read(buf []int16) (int, error) {
	if d.stream == nil {
		return 0, errors.New("device not open")
	}

	if err := d.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return 0, err
		}
		d.overflows.Add(1)
	}
	return copy(buf, d.buf), nil
}

// Overflows returns how many reads reported an input overflow.
func (d *Device) Overflows() uint64 {
	return d.overflows.Load()
}

// Close stops and releases the stream. Closing a closed device is a no-op.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	stream := d.stream
	d.stream = nil

	stopErr := stream.Stop()
	closeErr := stream.Close()
	return errors.Join(stopErr, closeErr)
}
