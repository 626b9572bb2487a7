package interview

import (
	"context"

	"github.com/sethvargo/go-retry"

	"github.com/hirelane/interview-client/pkg/core"
)

// finalize tears the session down and persists the transcript. It runs at
// most once: the Ending/Ended check under the mutex is the guard, so racing
// triggers collapse to whichever got here first. Only the run goroutine
// calls finalize, which is what makes closing the channels at the end safe.
func (s *Session) finalize(trigger Trigger, cause error) {
	s.mu.Lock()
	if s.state == StateEnding || s.state == StateEnded {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateEnding
	sessionID := s.sessionID
	capture := s.capture
	device := s.device
	conn := s.conn
	s.speaking = false
	s.mu.Unlock()

	s.log.WithField("trigger", trigger.String()).Info("finalizing session")
	s.emit(&StateChangedEvent{From: prev, To: StateEnding})

	if capture != nil {
		capture.Stop()
	}
	s.playback.FlushAndStop()
	if device != nil {
		device.Release()
	}
	if conn != nil {
		_ = conn.Close(closeReasonFor(trigger))
	}

	var persistErr error
	if sessionID != "" {
		if persistErr = s.persistTranscript(sessionID); persistErr != nil {
			s.log.WithError(persistErr).Warn("transcript persistence failed")
			s.emit(&WarningEvent{Code: "persistence_failure", Message: persistErr.Error()})
		}
	}

	s.mu.Lock()
	s.state = StateEnded
	s.result = &Result{Trigger: trigger, Err: cause, PersistErr: persistErr}
	s.mu.Unlock()

	s.emit(&StateChangedEvent{From: StateEnding, To: StateEnded})
	s.emit(&SessionEndedEvent{Trigger: trigger})
	s.log.Info("session ended")

	close(s.done)
	close(s.events)
}

// persistTranscript sends the assembled transcript to the backend with a
// per-attempt timeout and bounded retry. Runs on its own context: the
// session context may already be cancelled when we get here.
func (s *Session) persistTranscript(sessionID string) error {
	req := FinalizeRequest{
		InterviewID: s.interviewID,
		SessionID:   sessionID,
		Transcript:  s.eventLog.Transcript(),
		EventCount:  s.eventLog.Len(),
	}

	backoff := retry.WithMaxRetries(s.cfg.Finalize.Retries, retry.NewConstant(s.cfg.Finalize.Backoff))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Finalize.Timeout)
		defer cancel()

		if err := s.backend.FinalizeInterview(attemptCtx, req); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return core.NewPersistenceError("persist transcript: " + err.Error())
	}
	return nil
}

// closeReasonFor maps a finalization trigger to the reason reported on the
// connection close.
func closeReasonFor(trigger Trigger) CloseReason {
	switch trigger {
	case TriggerAI:
		return CloseRemoteEnded
	case TriggerDisconnect:
		return CloseAbnormal
	default:
		return CloseUserEnded
	}
}
