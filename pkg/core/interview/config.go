package interview

import (
	"time"

	"github.com/hirelane/interview-client/pkg/core/media"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle is the initial state, before Start.
	StateIdle State = iota
	// StateConnecting covers the start sequence: device acquisition,
	// backend priming, and the realtime dial.
	StateConnecting
	// StateActive is the live conversation.
	StateActive
	// StateEnding means finalization is in progress.
	StateEnding
	// StateEnded is terminal.
	StateEnded
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateEnding:
		return "ENDING"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Trigger identifies what caused a session to finalize.
type Trigger int

const (
	// TriggerUser is a candidate-initiated end.
	TriggerUser Trigger = iota
	// TriggerAI is an interviewer-initiated end.
	TriggerAI
	// TriggerDisconnect is an unrecoverable connection loss.
	TriggerDisconnect
	// TriggerContext is cancellation of the session context.
	TriggerContext
)

// String returns a human-readable trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerUser:
		return "user"
	case TriggerAI:
		return "ai"
	case TriggerDisconnect:
		return "disconnect"
	case TriggerContext:
		return "context"
	default:
		return "unknown"
	}
}

// HeartbeatConfig controls liveness probing on the realtime connection.
type HeartbeatConfig struct {
	// Interval between outbound pings.
	Interval time.Duration
	// Timeout is how long the connection may go without any inbound
	// traffic before it is considered stale.
	Timeout time.Duration
}

// ReconnectConfig bounds reconnection after a stale connection is detected.
type ReconnectConfig struct {
	// MaxAttempts is the total number of redial attempts before giving up.
	MaxAttempts uint64
	// Backoff is the fixed delay between attempts.
	Backoff time.Duration
}

// FinalizeConfig bounds the persistence attempt at the end of a session.
type FinalizeConfig struct {
	// Timeout bounds each persistence attempt.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first failure.
	Retries uint64
	// Backoff is the delay between attempts.
	Backoff time.Duration
}

// SessionConfig controls session behavior. Zero values are replaced by
// defaults in NewSession.
type SessionConfig struct {
	// Constraints requested from the capture device.
	Constraints media.Constraints

	// ChunkInterval is the capture framing interval.
	ChunkInterval time.Duration

	// GracefulEndDelay is how long to keep draining interviewer audio
	// after the backend announces the interview is over, so the closing
	// words are heard before teardown.
	GracefulEndDelay time.Duration

	// Heartbeat controls liveness probing on the realtime connection.
	Heartbeat HeartbeatConfig

	// Reconnect bounds redialing after heartbeat staleness.
	Reconnect ReconnectConfig

	// Finalize bounds transcript persistence.
	Finalize FinalizeConfig
}

// DefaultSessionConfig returns the standard session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Constraints:      media.DefaultConstraints(),
		ChunkInterval:    100 * time.Millisecond,
		GracefulEndDelay: 600 * time.Millisecond,
		Heartbeat: HeartbeatConfig{
			Interval: 5 * time.Second,
			Timeout:  15 * time.Second,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 3,
			Backoff:     500 * time.Millisecond,
		},
		Finalize: FinalizeConfig{
			Timeout: 5 * time.Second,
			Retries: 1,
			Backoff: 500 * time.Millisecond,
		},
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.Constraints.SampleRate == 0 {
		c.Constraints.SampleRate = d.Constraints.SampleRate
	}
	if c.Constraints.Channels == 0 {
		c.Constraints.Channels = d.Constraints.Channels
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = d.ChunkInterval
	}
	if c.GracefulEndDelay <= 0 {
		c.GracefulEndDelay = d.GracefulEndDelay
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = d.Heartbeat.Interval
	}
	if c.Heartbeat.Timeout <= 0 {
		c.Heartbeat.Timeout = d.Heartbeat.Timeout
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = d.Reconnect.MaxAttempts
	}
	if c.Reconnect.Backoff <= 0 {
		c.Reconnect.Backoff = d.Reconnect.Backoff
	}
	if c.Finalize.Timeout <= 0 {
		c.Finalize.Timeout = d.Finalize.Timeout
	}
	if c.Finalize.Backoff <= 0 {
		c.Finalize.Backoff = d.Finalize.Backoff
	}
	return c
}
