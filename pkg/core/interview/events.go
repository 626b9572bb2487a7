package interview

import "time"

// Event is the interface for all session events: inbound protocol events
// decoded from the realtime connection, plus local lifecycle events emitted
// to observers.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// AudioDeltaEvent carries one synthesized-audio fragment from the interviewer.
type AudioDeltaEvent struct {
	Audio []byte `json:"-"`
}

func (e *AudioDeltaEvent) EventType() string { return "response.audio.delta" }

// ResponseDoneEvent marks the end of one interviewer response.
type ResponseDoneEvent struct{}

func (e *ResponseDoneEvent) EventType() string { return "response.done" }

// SpeechStartedEvent signals that the candidate began speaking. Processing
// it triggers barge-in: playback is flushed before the next event is read.
type SpeechStartedEvent struct{}

func (e *SpeechStartedEvent) EventType() string { return "input_audio_buffer.speech_started" }

// SpeechStoppedEvent signals that the candidate stopped speaking.
type SpeechStoppedEvent struct{}

func (e *SpeechStoppedEvent) EventType() string { return "input_audio_buffer.speech_stopped" }

// TranscriptCompletedEvent carries a completed transcription of candidate audio.
type TranscriptCompletedEvent struct {
	Role       string `json:"role,omitempty"`
	Transcript string `json:"transcript"`
}

func (e *TranscriptCompletedEvent) EventType() string {
	return "conversation.item.input_audio_transcription.completed"
}

// AIEndedEvent signals that the interviewer decided to end the interview.
type AIEndedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *AIEndedEvent) EventType() string { return "interview_ended_by_ai" }

// BackendErrorEvent carries an error reported by the backend over the
// realtime connection. Fatal errors end the session.
type BackendErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}

func (e *BackendErrorEvent) EventType() string { return "error" }

// HeartbeatAckEvent records a heartbeat acknowledgment. The connection layer
// uses it for staleness detection; the session only logs it.
type HeartbeatAckEvent struct {
	At time.Time `json:"at"`
}

func (e *HeartbeatAckEvent) EventType() string { return "pong" }

// StateChangedEvent is emitted to observers on every state transition.
type StateChangedEvent struct {
	From State `json:"from"`
	To   State `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// BargeInEvent is emitted after playback has been flushed for a barge-in.
type BargeInEvent struct{}

func (e *BargeInEvent) EventType() string { return "playback.interrupted" }

// WarningEvent surfaces non-fatal problems to observers.
type WarningEvent struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *WarningEvent) EventType() string { return "warning" }

// SessionEndedEvent is emitted once, after finalization completes.
type SessionEndedEvent struct {
	Trigger Trigger `json:"trigger"`
}

func (e *SessionEndedEvent) EventType() string { return "session.ended" }
