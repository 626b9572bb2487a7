package media

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func captureTestConfig() CaptureConfig {
	// 100ms at 16kHz mono 16-bit = 3200 bytes per chunk.
	return CaptureConfig{
		Constraints:   Constraints{SampleRate: 16000, Channels: 1},
		ChunkInterval: 100 * time.Millisecond,
	}
}

func TestCapturePipeline_ChunkFramingAndOrder(t *testing.T) {
	input := &fakeInput{}
	pipeline := NewCapturePipeline(input, captureTestConfig())

	var mu sync.Mutex
	var chunks []Chunk
	err := pipeline.Start(func(c Chunk) {
		mu.Lock()
		chunks = append(chunks, c)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}

	// Feed 2.5 chunks worth of audio: expect exactly 2 chunks.
	data := make([]byte, 8000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	input.feed(data)

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Seq != 1 || chunks[1].Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", chunks[0].Seq, chunks[1].Seq)
	}
	if !bytes.Equal(chunks[0].PCM, data[:3200]) {
		t.Fatal("first chunk does not match first 3200 captured bytes")
	}
	if !bytes.Equal(chunks[1].PCM, data[3200:6400]) {
		t.Fatal("second chunk does not match next 3200 captured bytes")
	}
}

func TestCapturePipeline_NoCallbackAfterStop(t *testing.T) {
	input := &fakeInput{}
	pipeline := NewCapturePipeline(input, captureTestConfig())

	var mu sync.Mutex
	count := 0
	if err := pipeline.Start(func(Chunk) {
		mu.Lock()
		count++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	input.feed(make([]byte, 3200))
	pipeline.Stop()

	mu.Lock()
	before := count
	mu.Unlock()

	// The device layer may still push data after Stop (e.g. a racing
	// callback); the pipeline must drop it.
	input.mu.Lock()
	onData := input.onData
	input.mu.Unlock()
	onData(make([]byte, 6400))

	mu.Lock()
	after := count
	mu.Unlock()
	if after != before {
		t.Fatalf("chunk callback fired after Stop: before=%d after=%d", before, after)
	}
}

func TestCapturePipeline_StopIdempotent(t *testing.T) {
	input := &fakeInput{}
	pipeline := NewCapturePipeline(input, captureTestConfig())

	if err := pipeline.Start(func(Chunk) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	pipeline.Stop()
	pipeline.Stop()

	input.mu.Lock()
	stops := input.stops
	input.mu.Unlock()
	if stops != 1 {
		t.Fatalf("expected exactly 1 device stop, got %d", stops)
	}
}

func TestCapturePipeline_StartTwiceRejected(t *testing.T) {
	input := &fakeInput{}
	pipeline := NewCapturePipeline(input, captureTestConfig())

	if err := pipeline.Start(func(Chunk) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := pipeline.Start(func(Chunk) {}); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
