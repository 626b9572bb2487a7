package media

import "sync"

// OutputSink is the audio output device behind the playback queue.
// Implementations buffer writes and play them in order; Reset discards
// everything buffered and halts current output.
type OutputSink interface {
	Write(pcm []byte)
	Reset()
	Close()
}

// PlaybackQueue buffers synthesized-audio fragments and plays them in order
// through its sink. It is the only component that produces audible output.
//
// FlushAndStop implements barge-in: it atomically drops all pending
// fragments and halts the one currently playing. A fragment enqueued
// concurrently with a flush either lands entirely before the reset (and is
// discarded) or entirely after (and starts a fresh stream); it can never
// play across the flush.
type PlaybackQueue struct {
	sink OutputSink

	mu      sync.Mutex
	playing bool
	closed  bool
}

// NewPlaybackQueue creates a queue over the given sink.
func NewPlaybackQueue(sink OutputSink) *PlaybackQueue {
	return &PlaybackQueue{sink: sink}
}

// Enqueue appends a decoded audio fragment for ordered playback.
func (q *PlaybackQueue) Enqueue(fragment []byte) {
	if len(fragment) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.playing = true
	q.sink.Write(fragment)
}

// FlushAndStop drops all pending fragments and halts current output.
func (q *PlaybackQueue) FlushAndStop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.playing = false
	q.sink.Reset()
}

// Playing reports whether audio has been enqueued since the last flush.
// The queue does not observe the sink draining, so this stays true until a
// flush or close even if the sink has gone silent.
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// Close flushes and releases the sink. Idempotent.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.playing = false
	q.sink.Reset()
	q.sink.Close()
}
