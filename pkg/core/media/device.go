// Package media owns the capture and playback side of a live interview:
// exclusive device acquisition, chunked microphone capture, and the
// flushable playback queue. Hardware access sits behind small interfaces
// so the orchestrator and tests never touch a real device.
package media

import (
	"context"
	"sync"

	"github.com/hirelane/interview-client/pkg/core"
)

// Constraints describes the capture format requested from the device layer.
type Constraints struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int
	// Channels: 1 for mono, 2 for stereo. Default: 1.
	Channels int
}

// DefaultConstraints returns the capture format used for interview audio.
func DefaultConstraints() Constraints {
	return Constraints{SampleRate: 16000, Channels: 1}
}

func (c Constraints) withDefaults() Constraints {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	return c
}

// InputDevice is a started/stopped microphone source. Implementations push
// raw PCM to the data callback from their own capture thread. Stop must be
// synchronous: after it returns, the callback fires no more.
type InputDevice interface {
	Start(onData func(pcm []byte)) error
	Stop() error
}

// InputOpener opens input devices for a set of constraints. The real
// implementation wraps a malgo context; tests substitute fakes.
type InputOpener interface {
	Open(c Constraints) (InputDevice, error)
	Close() error
}

// DeviceGuard hands out the capture device as a single exclusively owned
// resource. At most one acquisition is live at a time; Release is idempotent
// and must run on every exit path before the device can be re-acquired.
type DeviceGuard struct {
	opener InputOpener

	mu   sync.Mutex
	held *Device
}

// NewDeviceGuard creates a guard over the given opener.
func NewDeviceGuard(opener InputOpener) *DeviceGuard {
	return &DeviceGuard{opener: opener}
}

// Acquire opens the capture device. It fails with ErrDeviceUnavailable if a
// previous acquisition has not been released, and propagates the opener's
// typed error (permission denied, device unavailable) otherwise.
func (g *DeviceGuard) Acquire(ctx context.Context, c Constraints) (*Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held != nil {
		return nil, core.NewDeviceUnavailableError("capture device is already acquired")
	}

	input, err := g.opener.Open(c.withDefaults())
	if err != nil {
		return nil, err
	}

	d := &Device{input: input, guard: g, constraints: c.withDefaults()}
	g.held = d
	return d, nil
}

// Device is one exclusively owned acquisition of the capture device.
type Device struct {
	input       InputDevice
	guard       *DeviceGuard
	constraints Constraints
	releaseOnce sync.Once
}

// Input returns the underlying input device.
func (d *Device) Input() InputDevice {
	return d.input
}

// Constraints returns the format the device was opened with.
func (d *Device) Constraints() Constraints {
	return d.constraints
}

// Release stops and returns the device to the guard. Safe to call multiple
// times; only the first call has any effect.
func (d *Device) Release() {
	d.releaseOnce.Do(func() {
		_ = d.input.Stop()
		d.guard.mu.Lock()
		if d.guard.held == d {
			d.guard.held = nil
		}
		d.guard.mu.Unlock()
	})
}
