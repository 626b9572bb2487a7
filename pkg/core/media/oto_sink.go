package media

import (
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hirelane/interview-client/pkg/core"
)

// OtoSink plays PCM through the speaker using an oto context. Playback is
// pull-based: oto drains the internal buffer through Read. The player is
// created on first write and torn down on Reset so a flush genuinely halts
// output rather than letting the device drain.
type OtoSink struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  *oto.Player
	playing bool
	closed  bool
}

// NewOtoSink initializes the speaker for the given output format.
func NewOtoSink(sampleRate, channels int) (*OtoSink, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		// Small buffer for low playback latency.
		BufferSize: 100 * time.Millisecond,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, core.NewDeviceUnavailableError("init speaker: " + err.Error())
	}
	<-ready

	s := &OtoSink{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, sampleRate*pcmBytesPerSample),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write appends PCM to the playback buffer, starting the player on first data.
func (s *OtoSink) Write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buf = append(s.buf, pcm...)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for the oto player.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.closed && len(s.buf) == 0 {
		// Silence lets oto drain gracefully on close.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Reset discards buffered audio and halts the current player. The next Write
// starts a fresh player, so stale audio never overlaps new audio.
func (s *OtoSink) Reset() {
	s.mu.Lock()
	s.buf = s.buf[:0]

	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		// Pause stops output immediately; Reset clears oto's internal buffer.
		player.Pause()
		player.Reset()
		player.Close()
		return
	}
	s.mu.Unlock()
}

// Close halts playback and releases the player.
func (s *OtoSink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Close()
	}
}
