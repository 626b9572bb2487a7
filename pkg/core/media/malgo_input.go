package media

import (
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/hirelane/interview-client/pkg/core"
)

// MalgoOpener opens real microphone devices through a shared malgo context.
type MalgoOpener struct {
	ctx *malgo.AllocatedContext

	mu     sync.Mutex
	closed bool
}

// NewMalgoOpener initializes the audio backend context.
func NewMalgoOpener() (*MalgoOpener, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, core.NewDeviceUnavailableError("init audio context: " + err.Error())
	}
	return &MalgoOpener{ctx: ctx}, nil
}

// Open prepares a capture device for the given constraints. The device is
// initialized lazily on Start so the data callback can be bound there.
func (o *MalgoOpener) Open(c Constraints) (InputDevice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, core.NewDeviceUnavailableError("audio context is closed")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(c.Channels)
	cfg.SampleRate = uint32(c.SampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	return &malgoInput{ctx: o.ctx.Context, config: cfg}, nil
}

// Close uninitializes the audio context. Devices opened through this opener
// must be stopped first.
func (o *MalgoOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.ctx.Uninit(); err != nil {
		return err
	}
	o.ctx.Free()
	return nil
}

type malgoInput struct {
	ctx    malgo.Context
	config malgo.DeviceConfig

	mu     sync.Mutex
	device *malgo.Device
}

func (m *malgoInput) Start(onData func(pcm []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return core.NewInvalidRequestError("capture device already started")
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// malgo reuses its buffer between callbacks.
			pcm := make([]byte, len(input))
			copy(pcm, input)
			onData(pcm)
		},
	}

	device, err := malgo.InitDevice(m.ctx, m.config, callbacks)
	if err != nil {
		return core.NewDeviceUnavailableError("init capture device: " + err.Error())
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return core.NewDeviceUnavailableError("start capture device: " + err.Error())
	}

	m.device = device
	return nil
}

func (m *malgoInput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return nil
	}
	err := m.device.Stop()
	m.device.Uninit()
	m.device = nil
	return err
}
