package media

import (
	"sync"
	"time"

	"github.com/hirelane/interview-client/pkg/core"
)

const pcmBytesPerSample = 2

// Chunk is one fixed-cadence block of captured audio. Chunks carry a
// monotonically increasing sequence number; the send path must preserve
// this order.
type Chunk struct {
	Seq       int64
	Timestamp time.Time
	PCM       []byte
}

// CaptureConfig configures chunking of the raw device stream.
type CaptureConfig struct {
	Constraints Constraints
	// ChunkInterval is the audio duration per emitted chunk. Default: 100ms.
	ChunkInterval time.Duration
}

// DefaultCaptureConfig returns the capture defaults.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Constraints:   DefaultConstraints(),
		ChunkInterval: 100 * time.Millisecond,
	}
}

// CapturePipeline reads from an input device and emits fixed-size encoded
// chunks in capture order. Stop guarantees that no chunk callback fires
// after it returns.
type CapturePipeline struct {
	input      InputDevice
	chunkBytes int

	mu      sync.Mutex
	started bool
	stopped bool
	onChunk func(Chunk)
	buf     []byte
	seq     int64
}

// NewCapturePipeline creates a pipeline over the given input device.
func NewCapturePipeline(input InputDevice, cfg CaptureConfig) *CapturePipeline {
	c := cfg.Constraints.withDefaults()
	interval := cfg.ChunkInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	chunkBytes := c.SampleRate * c.Channels * pcmBytesPerSample * int(interval.Milliseconds()) / 1000
	if chunkBytes <= 0 {
		chunkBytes = pcmBytesPerSample
	}
	return &CapturePipeline{
		input:      input,
		chunkBytes: chunkBytes,
		buf:        make([]byte, 0, chunkBytes*2),
	}
}

// Start begins capture. onChunk is invoked in capture order and must not
// call back into the pipeline.
func (p *CapturePipeline) Start(onChunk func(Chunk)) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return core.NewInvalidRequestError("capture already started")
	}
	if p.stopped {
		p.mu.Unlock()
		return core.NewInvalidRequestError("capture already stopped")
	}
	p.started = true
	p.onChunk = onChunk
	p.mu.Unlock()

	if err := p.input.Start(p.onData); err != nil {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		return core.NewDeviceUnavailableError("start capture: " + err.Error())
	}
	return nil
}

// onData accumulates device data and cuts full chunks. Emission happens
// under the same mutex Stop takes, so a chunk is either delivered before
// Stop returns or not at all.
func (p *CapturePipeline) onData(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	p.buf = append(p.buf, pcm...)
	for len(p.buf) >= p.chunkBytes {
		frame := make([]byte, p.chunkBytes)
		copy(frame, p.buf[:p.chunkBytes])
		p.buf = p.buf[p.chunkBytes:]

		p.seq++
		p.onChunk(Chunk{
			Seq:       p.seq,
			Timestamp: time.Now(),
			PCM:       frame,
		})
	}
}

// Stop halts capture. Idempotent. After Stop returns, no further chunk
// callback fires; any partial buffer is discarded.
func (p *CapturePipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.buf = nil
	p.mu.Unlock()

	if started {
		_ = p.input.Stop()
	}
}
