package hirelane

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/hirelane/interview-client/pkg/core"
	"github.com/hirelane/interview-client/pkg/core/interview"
	"github.com/hirelane/interview-client/pkg/core/media"
)

const (
	defaultDialTimeout = 15 * time.Second

	// closeHeartbeatTimeout is the application close code for a connection
	// dropped because it went stale.
	closeHeartbeatTimeout = 4008
)

// liveDialer opens realtime connections for allocated sessions. It implements
// interview.Dialer.
type liveDialer struct {
	client *Client
	cfg    interview.SessionConfig
}

func (d *liveDialer) Dial(ctx context.Context, sessionID string) (interview.Conn, error) {
	if sessionID == "" {
		return nil, core.NewInvalidRequestError("session id must not be empty")
	}

	wsURL, err := d.client.webSocketEndpoint("/v1/live/" + sessionID)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	if d.client.apiKey != "" {
		header.Set("Authorization", "Bearer "+d.client.apiKey)
	}

	lc := &liveConn{
		wsURL:  wsURL,
		header: header,
		hb:     d.cfg.Heartbeat,
		rc:     d.cfg.Reconnect,
		log:    logrus.NewEntry(d.client.logger).WithField("component", "conn"),
		events: make(chan interview.Event, 256),
		closed: make(chan interview.CloseInfo, 1),
		done:   make(chan struct{}),
	}

	conn, err := lc.dial(ctx)
	if err != nil {
		return nil, err
	}
	lc.swapConn(conn)

	go lc.readLoop(conn)
	go lc.heartbeatLoop()
	return lc, nil
}

// liveConn is the realtime duplex channel. It owns heartbeating and bounded
// reconnection; a redial that succeeds within the budget is invisible to the
// consumer, and the single Closed notification fires only when the
// connection is genuinely over.
type liveConn struct {
	wsURL  string
	header http.Header
	hb     interview.HeartbeatConfig
	rc     interview.ReconnectConfig
	log    *logrus.Entry

	connMu sync.Mutex
	conn   *websocket.Conn

	writeMu  sync.Mutex
	lastRecv atomic.Int64

	redialing  atomic.Bool
	shutdown   atomic.Bool
	notifyOnce sync.Once
	closeOnce  sync.Once

	events chan interview.Event
	closed chan interview.CloseInfo
	done   chan struct{}
}

func (c *liveConn) Events() <-chan interview.Event { return c.events }

func (c *liveConn) Closed() <-chan interview.CloseInfo { return c.closed }

// Send forwards one captured chunk as an audio_chunk frame.
func (c *liveConn) Send(chunk media.Chunk) error {
	return c.sendJSON(outboundAudioChunk{
		Type:  "audio_chunk",
		Seq:   chunk.Seq,
		Audio: base64.StdEncoding.EncodeToString(chunk.PCM),
	})
}

// EndInterview notifies the backend of a candidate-initiated end.
func (c *liveConn) EndInterview() error {
	return c.sendJSON(outboundControl{Type: "end_interview"})
}

// ToggleAudio tells the backend whether candidate audio is flowing.
func (c *liveConn) ToggleAudio(enabled bool) error {
	return c.sendJSON(outboundToggleAudio{Type: "toggle_audio", Enabled: enabled})
}

// Close tears the connection down. Idempotent; goodbye close frame is best
// effort.
func (c *liveConn) Close(reason interview.CloseReason) error {
	c.closeOnce.Do(func() {
		c.shutdown.Store(true)

		code := websocket.CloseNormalClosure
		if reason == interview.CloseHeartbeatTimeout {
			code = closeHeartbeatTimeout
		}

		conn := c.currentConn()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(2*time.Second))
			c.writeMu.Unlock()
			_ = conn.Close()
		}

		close(c.done)
		c.notifyClosed(interview.CloseInfo{Reason: reason})
	})
	return nil
}

func (c *liveConn) sendJSON(v any) error {
	if c.shutdown.Load() {
		return core.NewInvalidRequestError("connection is closed")
	}
	if c.redialing.Load() {
		return core.NewConnectionLostError(core.CodeHeartbeatTimeout, "connection is reconnecting")
	}
	conn := c.currentConn()
	if conn == nil {
		return core.NewInvalidRequestError("connection is closed")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (c *liveConn) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *liveConn) swapConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.lastRecv.Store(time.Now().UnixNano())
}

func (c *liveConn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, c.wsURL, c.header)
	if err != nil {
		if resp != nil {
			return nil, &TransportError{Op: "GET", URL: c.wsURL, Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &TransportError{Op: "GET", URL: c.wsURL, Err: err}
	}
	return conn, nil
}

// readLoop decodes inbound frames from one connection handle. It exits when
// the handle dies; whether that ends the liveConn depends on who killed it.
func (c *liveConn) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.lastRecv.Store(time.Now().UnixNano())

		event, decodeErr := decodeLiveEvent(data)
		if decodeErr != nil {
			c.log.WithError(decodeErr).Warn("undecodable frame, skipping")
			continue
		}
		if _, isPong := event.(*interview.HeartbeatAckEvent); isPong {
			// Heartbeat acks only feed the staleness clock.
			continue
		}

		// Delivery blocks rather than drops: the consumer relies on
		// arrival order for transcript reconstruction.
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}

func (c *liveConn) handleReadError(err error) {
	if c.shutdown.Load() || c.redialing.Load() {
		// Local close or a watchdog-initiated redial killed the handle.
		return
	}

	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.finish(interview.CloseInfo{Reason: interview.CloseRemoteEnded})
	case websocket.IsCloseError(err, closeHeartbeatTimeout):
		// The backend declared us stale. Same recovery as the local
		// watchdog: redial within the attempt bound, and only
		// exhaustion surfaces as a heartbeat-timeout close.
		c.log.Warn("backend reported heartbeat timeout, reconnecting")
		c.beginReconnect()
	case websocket.IsCloseError(err, websocket.CloseProtocolError):
		c.finish(interview.CloseInfo{
			Reason: interview.CloseProtocolError,
			Err:    core.NewConnectionLostError(core.CodeProtocolError, err.Error()),
		})
	default:
		c.finish(interview.CloseInfo{
			Reason: interview.CloseAbnormal,
			Err:    core.NewConnectionLostError(core.CodeAbnormalClosure, err.Error()),
		})
	}
}

// finish ends the liveConn for good and delivers the close notification.
func (c *liveConn) finish(info interview.CloseInfo) {
	c.closeOnce.Do(func() {
		c.shutdown.Store(true)
		if conn := c.currentConn(); conn != nil {
			_ = conn.Close()
		}
		close(c.done)
		c.notifyClosed(info)
	})
}

func (c *liveConn) notifyClosed(info interview.CloseInfo) {
	c.notifyOnce.Do(func() {
		c.closed <- info
	})
}

// heartbeatLoop sends application-level pings and watches for staleness.
// A connection that has received nothing within the timeout is considered
// dead and goes through bounded reconnection; only exhaustion surfaces to
// the consumer.
func (c *liveConn) heartbeatLoop() {
	ticker := time.NewTicker(c.hb.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if c.redialing.Load() {
				continue
			}

			stale := time.Since(time.Unix(0, c.lastRecv.Load())) > c.hb.Timeout
			if !stale {
				if err := c.sendJSON(outboundControl{Type: "ping"}); err != nil && !c.shutdown.Load() {
					c.log.WithError(err).Debug("ping failed")
				}
				continue
			}

			c.log.Warn("connection stale, reconnecting")
			c.beginReconnect()
		}
	}
}

// beginReconnect replaces the connection handle wholesale. The old handle is
// closed first so its read loop exits; sends fail with a typed error until
// the new handle is in place.
func (c *liveConn) beginReconnect() {
	if c.redialing.Swap(true) {
		return
	}

	if old := c.currentConn(); old != nil {
		_ = old.Close()
	}

	attempts := c.rc.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var conn *websocket.Conn
	backoff := retry.WithMaxRetries(attempts-1, retry.NewConstant(c.rc.Backoff))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		if c.shutdown.Load() {
			return core.NewInvalidRequestError("connection is closed")
		}
		dialed, dialErr := c.dial(ctx)
		if dialErr != nil {
			return retry.RetryableError(dialErr)
		}
		conn = dialed
		return nil
	})
	if err != nil {
		c.redialing.Store(false)
		c.finish(interview.CloseInfo{
			Reason: interview.CloseHeartbeatTimeout,
			Err:    core.NewConnectionLostError(core.CodeHeartbeatTimeout, "reconnect budget exhausted: "+err.Error()),
		})
		return
	}

	c.swapConn(conn)
	c.redialing.Store(false)
	c.log.Info("reconnected")
	go c.readLoop(conn)
}

// Outbound frames.

type outboundControl struct {
	Type string `json:"type"`
}

type outboundAudioChunk struct {
	Type  string `json:"type"`
	Seq   int64  `json:"seq"`
	Audio string `json:"audio"`
}

type outboundToggleAudio struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// decodeLiveEvent decodes one inbound text frame into its typed event. The
// envelope tag picks the payload shape.
func decodeLiveEvent(data []byte) (interview.Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode frame envelope: %w", err)
	}

	switch envelope.Type {
	case "response.audio.delta":
		var frame struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode response.audio.delta: %w", err)
		}
		audio, err := base64.StdEncoding.DecodeString(frame.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta payload: %w", err)
		}
		return &interview.AudioDeltaEvent{Audio: audio}, nil

	case "response.done":
		return &interview.ResponseDoneEvent{}, nil

	case "input_audio_buffer.speech_started":
		return &interview.SpeechStartedEvent{}, nil

	case "input_audio_buffer.speech_stopped":
		return &interview.SpeechStoppedEvent{}, nil

	case "conversation.item.input_audio_transcription.completed":
		var frame struct {
			Role       string `json:"role"`
			Transcript string `json:"transcript"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode transcription.completed: %w", err)
		}
		return &interview.TranscriptCompletedEvent{Role: frame.Role, Transcript: frame.Transcript}, nil

	case "interview_ended_by_ai":
		var frame struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode interview_ended_by_ai: %w", err)
		}
		return &interview.AIEndedEvent{Reason: frame.Reason}, nil

	case "error":
		var frame struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Fatal   bool   `json:"fatal"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return &interview.BackendErrorEvent{Code: frame.Code, Message: frame.Message, Fatal: frame.Fatal}, nil

	case "pong":
		return &interview.HeartbeatAckEvent{At: time.Now()}, nil

	default:
		return nil, fmt.Errorf("unknown frame type %q", envelope.Type)
	}
}
