package interview

import (
	"context"

	"github.com/hirelane/interview-client/pkg/core/media"
)

// CloseReason classifies why the realtime connection ended.
type CloseReason int

const (
	// CloseUserEnded is a caller-initiated disconnect.
	CloseUserEnded CloseReason = iota
	// CloseRemoteEnded is a clean close from the backend.
	CloseRemoteEnded
	// CloseHeartbeatTimeout means the connection went stale and bounded
	// reconnection was exhausted.
	CloseHeartbeatTimeout
	// CloseProtocolError is a close attributable to a protocol violation.
	CloseProtocolError
	// CloseAbnormal is any other unexpected disconnect.
	CloseAbnormal
)

// String returns a human-readable close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseUserEnded:
		return "user_ended"
	case CloseRemoteEnded:
		return "remote_ended"
	case CloseHeartbeatTimeout:
		return "heartbeat_timeout"
	case CloseProtocolError:
		return "protocol_error"
	case CloseAbnormal:
		return "abnormal_closure"
	default:
		return "unknown"
	}
}

// CloseInfo is delivered exactly once on Conn.Closed when the connection is
// genuinely over (after any internal reconnection has succeeded or given up).
type CloseInfo struct {
	Reason CloseReason
	Err    error
}

// Conn is the live duplex channel to the interviewer service. Implementations
// own heartbeating and bounded reconnection internally; a successful
// reconnect is invisible to the session.
type Conn interface {
	// Send forwards one captured audio chunk. Chunks must be sent in
	// capture order.
	Send(chunk media.Chunk) error

	// EndInterview notifies the backend that the candidate ended the interview.
	EndInterview() error

	// ToggleAudio tells the backend whether candidate audio is flowing.
	ToggleAudio(enabled bool) error

	// Events yields decoded inbound events in arrival order.
	Events() <-chan Event

	// Closed delivers the single close notification.
	Closed() <-chan CloseInfo

	// Close tears the connection down. Idempotent.
	Close(reason CloseReason) error
}

// Dialer opens realtime connections for an allocated session id.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Conn, error)
}

// FinalizeRequest is the persistence payload assembled from the event log.
type FinalizeRequest struct {
	InterviewID string            `json:"interview_id"`
	SessionID   string            `json:"session_id"`
	Transcript  []TranscriptEntry `json:"transcript"`
	EventCount  int               `json:"event_count"`
}

// Results is the post-interview analysis rendered after finalize.
type Results struct {
	Summary    string   `json:"summary"`
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	JobFit     string   `json:"job_fit"`
}

// Backend is the request/response surface of the interview backend service.
type Backend interface {
	// PrepareContext primes the backend for an interview. Called once
	// before starting; failure aborts the start sequence.
	PrepareContext(ctx context.Context, interviewID string) error

	// StartSession allocates the live session id used to address the
	// realtime connection.
	StartSession(ctx context.Context, interviewID string) (sessionID string, err error)

	// FinalizeInterview persists the transcript. Called at most once per
	// session, by the finalizer.
	FinalizeInterview(ctx context.Context, req FinalizeRequest) error

	// FetchResults returns the interview analysis after finalize.
	FetchResults(ctx context.Context, sessionID string) (*Results, error)
}
