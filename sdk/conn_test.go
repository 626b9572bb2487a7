package hirelane

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelane/interview-client/pkg/core/interview"
	"github.com/hirelane/interview-client/pkg/core/media"
)

func newLiveWebsocketTestServer(t *testing.T, handler func(conn *websocket.Conn)) (string, func()) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/live/") {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))

	return server.URL, server.Close
}

func newTestDialer(baseURL string, heartbeat interview.HeartbeatConfig, reconnect interview.ReconnectConfig) *liveDialer {
	cfg := interview.DefaultSessionConfig()
	if heartbeat.Interval > 0 {
		cfg.Heartbeat = heartbeat
	}
	if reconnect.MaxAttempts > 0 {
		cfg.Reconnect = reconnect
	}
	client := NewClient(WithBaseURL(baseURL), WithAPIKey("test-key"), WithSessionConfig(cfg))
	return &liveDialer{client: client, cfg: cfg}
}

func dialTestConn(t *testing.T, baseURL string) interview.Conn {
	t.Helper()
	dialer := newTestDialer(baseURL, interview.HeartbeatConfig{}, interview.ReconnectConfig{})
	conn, err := dialer.Dial(context.Background(), "sess_1")
	require.NoError(t, err)
	return conn
}

func TestLiveConn_DecodesInboundEvents(t *testing.T) {
	t.Parallel()

	audio := []byte{1, 2, 3, 4}
	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "response.audio.delta", "delta": base64.StdEncoding.EncodeToString(audio)})
		_ = conn.WriteJSON(map[string]any{"type": "input_audio_buffer.speech_started"})
		_ = conn.WriteJSON(map[string]any{"type": "pong"})
		_ = conn.WriteJSON(map[string]any{
			"type":       "conversation.item.input_audio_transcription.completed",
			"role":       "candidate",
			"transcript": "hello there",
		})
		_ = conn.WriteJSON(map[string]any{"type": "interview_ended_by_ai", "reason": "complete"})
		time.Sleep(100 * time.Millisecond)
	})
	defer closeServer()

	conn := dialTestConn(t, serverURL)
	defer conn.Close(interview.CloseUserEnded)

	var got []interview.Event
	timeout := time.After(2 * time.Second)
	for len(got) < 4 {
		select {
		case ev := <-conn.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out with %d events", len(got))
		}
	}

	delta, ok := got[0].(*interview.AudioDeltaEvent)
	require.True(t, ok, "first event should be audio delta, got %T", got[0])
	assert.Equal(t, audio, delta.Audio)

	_, ok = got[1].(*interview.SpeechStartedEvent)
	assert.True(t, ok, "second event should be speech started, got %T", got[1])

	// The pong is consumed by the heartbeat clock, never forwarded.
	transcript, ok := got[2].(*interview.TranscriptCompletedEvent)
	require.True(t, ok, "third event should be transcript, got %T", got[2])
	assert.Equal(t, "candidate", transcript.Role)
	assert.Equal(t, "hello there", transcript.Transcript)

	ended, ok := got[3].(*interview.AIEndedEvent)
	require.True(t, ok, "fourth event should be ai end, got %T", got[3])
	assert.Equal(t, "complete", ended.Reason)
}

func TestLiveConn_SendsFramesInOrder(t *testing.T) {
	t.Parallel()

	frames := make(chan map[string]any, 16)
	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	})
	defer closeServer()

	conn := dialTestConn(t, serverURL)
	defer conn.Close(interview.CloseUserEnded)

	for seq := int64(1); seq <= 3; seq++ {
		require.NoError(t, conn.Send(media.Chunk{Seq: seq, PCM: []byte{byte(seq)}}))
	}
	require.NoError(t, conn.ToggleAudio(false))
	require.NoError(t, conn.EndInterview())

	read := func() map[string]any {
		select {
		case f := <-frames:
			return f
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
			return nil
		}
	}

	for seq := 1; seq <= 3; seq++ {
		frame := read()
		assert.Equal(t, "audio_chunk", frame["type"])
		assert.Equal(t, float64(seq), frame["seq"])
		decoded, err := base64.StdEncoding.DecodeString(frame["audio"].(string))
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(seq)}, decoded)
	}

	toggle := read()
	assert.Equal(t, "toggle_audio", toggle["type"])
	assert.Equal(t, false, toggle["enabled"])

	end := read()
	assert.Equal(t, "end_interview", end["type"])
}

func TestLiveConn_CleanRemoteCloseNotifiesOnce(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		time.Sleep(50 * time.Millisecond)
	})
	defer closeServer()

	conn := dialTestConn(t, serverURL)

	select {
	case info := <-conn.Closed():
		assert.Equal(t, interview.CloseRemoteEnded, info.Reason)
		assert.NoError(t, info.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no close notification")
	}

	select {
	case info := <-conn.Closed():
		t.Fatalf("second close notification: %+v", info)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLiveConn_HeartbeatTimeoutReconnects(t *testing.T) {
	t.Parallel()

	var dials atomic.Int64
	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if dials.Add(1) == 1 {
			// First connection goes silent: no pongs, no events. The
			// client watchdog must declare it stale and redial.
			time.Sleep(500 * time.Millisecond)
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "response.done"})
		time.Sleep(500 * time.Millisecond)
	})
	defer closeServer()

	dialer := newTestDialer(serverURL,
		interview.HeartbeatConfig{Interval: 20 * time.Millisecond, Timeout: 60 * time.Millisecond},
		interview.ReconnectConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond},
	)
	conn, err := dialer.Dial(context.Background(), "sess_1")
	require.NoError(t, err)
	defer conn.Close(interview.CloseUserEnded)

	// A successful reconnect is invisible: the event arrives on the same
	// channel and no close notification fires.
	select {
	case ev := <-conn.Events():
		_, ok := ev.(*interview.ResponseDoneEvent)
		assert.True(t, ok, "expected response.done after reconnect, got %T", ev)
	case <-time.After(3 * time.Second):
		t.Fatal("no event after reconnect")
	}
	assert.GreaterOrEqual(t, dials.Load(), int64(2))

	select {
	case info := <-conn.Closed():
		t.Fatalf("unexpected close notification: %+v", info)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLiveConn_RemoteHeartbeatTimeoutCloseReconnects(t *testing.T) {
	t.Parallel()

	var dials atomic.Int64
	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if dials.Add(1) == 1 {
			// The backend judged us stale and closed with the
			// heartbeat-timeout code. The client must redial, not
			// give up.
			deadline := time.Now().Add(time.Second)
			msg := websocket.FormatCloseMessage(closeHeartbeatTimeout, "stale connection")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "response.done"})
		time.Sleep(500 * time.Millisecond)
	})
	defer closeServer()

	dialer := newTestDialer(serverURL,
		interview.HeartbeatConfig{Interval: 20 * time.Millisecond, Timeout: 60 * time.Millisecond},
		interview.ReconnectConfig{MaxAttempts: 3, Backoff: 10 * time.Millisecond},
	)
	conn, err := dialer.Dial(context.Background(), "sess_1")
	require.NoError(t, err)
	defer conn.Close(interview.CloseUserEnded)

	select {
	case ev := <-conn.Events():
		_, ok := ev.(*interview.ResponseDoneEvent)
		assert.True(t, ok, "expected response.done after reconnect, got %T", ev)
	case <-time.After(3 * time.Second):
		t.Fatal("no event after backend-initiated reconnect")
	}
	assert.GreaterOrEqual(t, dials.Load(), int64(2))

	select {
	case info := <-conn.Closed():
		t.Fatalf("unexpected close notification: %+v", info)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLiveConn_ReconnectExhaustionSurfacesHeartbeatTimeout(t *testing.T) {
	t.Parallel()

	var dials atomic.Int64
	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		dials.Add(1)
		time.Sleep(500 * time.Millisecond)
	})

	dialer := newTestDialer(serverURL,
		interview.HeartbeatConfig{Interval: 20 * time.Millisecond, Timeout: 60 * time.Millisecond},
		interview.ReconnectConfig{MaxAttempts: 2, Backoff: 10 * time.Millisecond},
	)
	conn, err := dialer.Dial(context.Background(), "sess_1")
	require.NoError(t, err)

	// Kill the server so every redial attempt fails.
	closeServer()

	select {
	case info := <-conn.Closed():
		assert.Equal(t, interview.CloseHeartbeatTimeout, info.Reason)
		require.Error(t, info.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no close notification after reconnect exhaustion")
	}
}

func TestLiveConn_SendsHeartbeatPings(t *testing.T) {
	t.Parallel()

	pings := make(chan struct{}, 8)
	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame["type"] == "ping" {
				pings <- struct{}{}
				_ = conn.WriteJSON(map[string]any{"type": "pong"})
			}
		}
	})
	defer closeServer()

	dialer := newTestDialer(serverURL,
		interview.HeartbeatConfig{Interval: 15 * time.Millisecond, Timeout: 200 * time.Millisecond},
		interview.ReconnectConfig{},
	)
	conn, err := dialer.Dial(context.Background(), "sess_1")
	require.NoError(t, err)
	defer conn.Close(interview.CloseUserEnded)

	for i := 0; i < 2; i++ {
		select {
		case <-pings:
		case <-time.After(2 * time.Second):
			t.Fatal("no heartbeat ping observed")
		}
	}
}

func TestLiveConn_DialFailureIsTransportError(t *testing.T) {
	t.Parallel()

	dialer := newTestDialer("http://127.0.0.1:1", interview.HeartbeatConfig{}, interview.ReconnectConfig{})
	_, err := dialer.Dial(context.Background(), "sess_1")
	require.Error(t, err)

	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestLiveConn_SendAfterCloseRejected(t *testing.T) {
	t.Parallel()

	serverURL, closeServer := newLiveWebsocketTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		time.Sleep(100 * time.Millisecond)
	})
	defer closeServer()

	conn := dialTestConn(t, serverURL)
	require.NoError(t, conn.Close(interview.CloseUserEnded))

	err := conn.Send(media.Chunk{Seq: 1, PCM: []byte{1}})
	assert.Error(t, err)
}
