package interview

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hirelane/interview-client/pkg/core"
	"github.com/hirelane/interview-client/pkg/core/media"
)

// Result summarizes how a session ended. Available from Result() once Done()
// is closed.
type Result struct {
	// Trigger is what caused finalization.
	Trigger Trigger
	// Err is the fatal cause, nil for user- and interviewer-initiated ends.
	Err error
	// PersistErr is set when transcript persistence failed. Non-fatal.
	PersistErr error
}

// Session is the orchestrator for one live interview. It coordinates the
// capture device, the playback queue, the realtime connection, and the
// backend, and owns the session state machine.
//
// Collaborators arrive as interfaces; the session itself touches neither
// network nor hardware.
type Session struct {
	interviewID string
	cfg         SessionConfig

	backend  Backend
	dialer   Dialer
	guard    *media.DeviceGuard
	playback *media.PlaybackQueue
	log      *logrus.Entry

	mu           sync.RWMutex
	state        State
	sessionID    string
	speaking     bool
	audioEnabled bool
	draining     bool
	result       *Result

	device  *media.Device
	capture *media.CapturePipeline
	conn    Conn

	eventLog *EventLog

	chunks  chan media.Chunk
	events  chan Event
	endCh   chan struct{}
	endOnce sync.Once
	done    chan struct{}
}

// NewSession creates a session for the given interview. Zero config fields
// take defaults. A nil logger disables logging.
func NewSession(
	interviewID string,
	cfg SessionConfig,
	backend Backend,
	dialer Dialer,
	guard *media.DeviceGuard,
	playback *media.PlaybackQueue,
	logger *logrus.Entry,
) *Session {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}

	return &Session{
		interviewID:  interviewID,
		cfg:          cfg.withDefaults(),
		backend:      backend,
		dialer:       dialer,
		guard:        guard,
		playback:     playback,
		log:          logger.WithField("component", "session"),
		state:        StateIdle,
		audioEnabled: true,
		eventLog:     NewEventLog(),
		chunks:       make(chan media.Chunk, 100),
		events:       make(chan Event, 100),
		endCh:        make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// InterviewID returns the interview identifier the session was created for.
func (s *Session) InterviewID() string {
	return s.interviewID
}

// SessionID returns the backend-allocated session identifier, empty until
// Start has allocated one.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Speaking reports whether interviewer audio is currently being rendered.
func (s *Session) Speaking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speaking
}

// Events returns the observer channel. Events are dropped rather than
// blocking the session when the observer falls behind. The channel is
// closed after the session ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the session has fully ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns how the session ended, or nil if it has not ended yet.
func (s *Session) Result() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Transcript returns the conversation transcript assembled so far.
func (s *Session) Transcript() []TranscriptEntry {
	return s.eventLog.Transcript()
}

// Start runs the start sequence: exclusive device acquisition, backend
// priming, session allocation, realtime dial, capture start. On success the
// session is Active and the run loop owns it until finalization. On failure
// everything acquired so far is rolled back, the state returns to Idle, and
// nothing is persisted.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		st := s.state
		s.mu.Unlock()
		return core.NewInvalidRequestError("cannot start session in state " + st.String())
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.emit(&StateChangedEvent{From: StateIdle, To: StateConnecting})

	device, err := s.guard.Acquire(ctx, s.cfg.Constraints)
	if err != nil {
		s.log.WithError(err).Warn("device acquisition failed")
		s.rollbackStart()
		return err
	}
	s.mu.Lock()
	s.device = device
	s.mu.Unlock()

	if err := s.backend.PrepareContext(ctx, s.interviewID); err != nil {
		s.log.WithError(err).Warn("prepare context failed")
		s.rollbackStart()
		return err
	}

	sessionID, err := s.backend.StartSession(ctx, s.interviewID)
	if err != nil {
		s.log.WithError(err).Warn("start session failed")
		s.rollbackStart()
		return err
	}
	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()
	s.log.WithField("session_id", sessionID).Debug("session allocated")

	conn, err := s.dialer.Dial(ctx, sessionID)
	if err != nil {
		s.log.WithError(err).Warn("realtime dial failed")
		s.rollbackStart()
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	capture := media.NewCapturePipeline(device.Input(), media.CaptureConfig{
		Constraints:   s.cfg.Constraints,
		ChunkInterval: s.cfg.ChunkInterval,
	})
	if err := capture.Start(s.onChunk); err != nil {
		s.log.WithError(err).Warn("capture start failed")
		s.rollbackStart()
		return err
	}
	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()

	s.setState(StateActive)
	s.log.Info("session active")

	go s.run(ctx)
	return nil
}

// rollbackStart undoes a partial start sequence and returns to Idle.
// Nothing has been persisted at this point, so no finalization runs.
func (s *Session) rollbackStart() {
	s.mu.Lock()
	capture := s.capture
	conn := s.conn
	device := s.device
	s.capture = nil
	s.conn = nil
	s.device = nil
	s.sessionID = ""
	prev := s.state
	s.state = StateIdle
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
	}
	if conn != nil {
		_ = conn.Close(CloseUserEnded)
	}
	if device != nil {
		device.Release()
	}
	s.emit(&StateChangedEvent{From: prev, To: StateIdle})
}

// End requests a candidate-initiated end. Idempotent; safe from any
// goroutine. The first call wins, later calls are no-ops.
func (s *Session) End() error {
	s.endOnce.Do(func() {
		close(s.endCh)
	})
	return nil
}

// ToggleAudio pauses or resumes forwarding of captured audio without
// stopping the capture pipeline, and tells the backend.
func (s *Session) ToggleAudio(enabled bool) error {
	s.mu.Lock()
	if s.state != StateActive {
		st := s.state
		s.mu.Unlock()
		return core.NewInvalidRequestError("cannot toggle audio in state " + st.String())
	}
	s.audioEnabled = enabled
	conn := s.conn
	s.mu.Unlock()

	return conn.ToggleAudio(enabled)
}

// onChunk is the capture pipeline callback. It must never block: a stalled
// consumer drops chunks rather than backing up the device callback.
func (s *Session) onChunk(chunk media.Chunk) {
	s.mu.RLock()
	enabled := s.audioEnabled
	s.mu.RUnlock()
	if !enabled {
		// Dropped at the source: muted audio must never sit in the
		// buffer and leak out after an unmute.
		return
	}

	select {
	case s.chunks <- chunk:
	default:
		s.log.WithField("seq", chunk.Seq).Warn("chunk buffer full, dropping")
	}
}

// run is the session's event loop. All inbound events, chunk forwarding,
// end requests, and finalization happen on this goroutine; that is what
// keeps the event log single-writer and finalization single-caller.
func (s *Session) run(ctx context.Context) {
	connEvents := s.conn.Events()
	connClosed := s.conn.Closed()
	var graceful <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			s.finalize(TriggerContext, ctx.Err())
			return

		case <-s.endCh:
			s.log.Info("end requested")
			if err := s.conn.EndInterview(); err != nil {
				s.log.WithError(err).Warn("end notification failed")
			}
			s.finalize(TriggerUser, nil)
			return

		case chunk := <-s.chunks:
			s.forwardChunk(chunk)

		case ev, ok := <-connEvents:
			if !ok {
				connEvents = nil
				continue
			}
			s.eventLog.Append(ev)
			s.emit(ev)
			switch e := ev.(type) {
			case *AIEndedEvent:
				// Keep draining interviewer audio so the closing words
				// are heard, then finalize.
				s.log.WithField("reason", e.Reason).Info("interview ended by interviewer")
				s.mu.Lock()
				s.draining = true
				s.mu.Unlock()
				if graceful == nil {
					graceful = time.After(s.cfg.GracefulEndDelay)
				}
			case *BackendErrorEvent:
				if e.Fatal {
					s.finalize(TriggerDisconnect, core.NewBackendError(e.Code, e.Message))
					return
				}
				s.log.WithFields(logrus.Fields{"code": e.Code, "message": e.Message}).Warn("backend error")
				s.emit(&WarningEvent{Code: e.Code, Message: e.Message})
			default:
				s.handleEvent(ev)
			}

		case info := <-connClosed:
			trigger, cause := triggerForClose(info)
			s.finalize(trigger, cause)
			return

		case <-graceful:
			s.finalize(TriggerAI, nil)
			return
		}
	}
}

// forwardChunk sends one captured chunk over the connection, in capture
// order. Forwarding stops while audio is toggled off or the interviewer has
// ended the conversation.
func (s *Session) forwardChunk(chunk media.Chunk) {
	s.mu.RLock()
	enabled := s.audioEnabled && !s.draining && s.state == StateActive
	s.mu.RUnlock()
	if !enabled {
		return
	}

	if err := s.conn.Send(chunk); err != nil {
		s.log.WithError(err).WithField("seq", chunk.Seq).Warn("chunk send failed")
	}
}

// handleEvent applies a decoded inbound event to the media pipelines.
func (s *Session) handleEvent(ev Event) {
	switch e := ev.(type) {
	case *AudioDeltaEvent:
		s.playback.Enqueue(e.Audio)
		s.setSpeaking(true)

	case *ResponseDoneEvent:
		s.setSpeaking(false)

	case *SpeechStartedEvent:
		// Barge-in: the candidate started talking over the interviewer.
		// Drop everything queued so stale audio never plays.
		if s.playback.Playing() {
			s.playback.FlushAndStop()
			s.setSpeaking(false)
			s.emit(&BargeInEvent{})
			s.log.Debug("barge-in, playback flushed")
		}

	case *TranscriptCompletedEvent:
		s.log.WithFields(logrus.Fields{"role": e.Role}).Debug("transcript completed")
	}
}

func (s *Session) setSpeaking(speaking bool) {
	s.mu.Lock()
	s.speaking = speaking
	s.mu.Unlock()
}

// triggerForClose maps a connection close to a finalization trigger.
func triggerForClose(info CloseInfo) (Trigger, error) {
	switch info.Reason {
	case CloseRemoteEnded:
		return TriggerAI, nil
	case CloseHeartbeatTimeout:
		err := info.Err
		if err == nil {
			err = core.NewConnectionLostError(core.CodeHeartbeatTimeout, "connection went stale")
		}
		return TriggerDisconnect, err
	case CloseProtocolError:
		err := info.Err
		if err == nil {
			err = core.NewConnectionLostError(core.CodeProtocolError, "protocol violation")
		}
		return TriggerDisconnect, err
	default:
		err := info.Err
		if err == nil {
			err = core.NewConnectionLostError(core.CodeAbnormalClosure, "connection closed unexpectedly")
		}
		return TriggerDisconnect, err
	}
}

// setState updates state under the mutex and emits the transition.
func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		s.emit(&StateChangedEvent{From: prev, To: next})
	}
}

// emit delivers an event to observers without ever blocking the session.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// Observer is behind, drop.
	}
}
