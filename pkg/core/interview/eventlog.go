package interview

import "sync"

// TranscriptEntry is one ordered utterance reconstructed from the event log.
type TranscriptEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// EventLog is the append-only record of all inbound protocol events during a
// session, in arrival order. It is the sole source of truth for transcript
// reconstruction at finalize time and is never truncated while the session
// is live. Single writer (the session run loop); read once at finalize.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records an inbound event.
func (l *EventLog) Append(e Event) {
	if e == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a snapshot of the log in arrival order.
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Transcript assembles the ordered transcript entries from completed
// transcription events. Events that carry no role default to the candidate.
func (l *EventLog) Transcript() []TranscriptEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []TranscriptEntry
	for _, e := range l.events {
		tc, ok := e.(*TranscriptCompletedEvent)
		if !ok || tc.Transcript == "" {
			continue
		}
		role := tc.Role
		if role == "" {
			role = "candidate"
		}
		entries = append(entries, TranscriptEntry{Role: role, Text: tc.Transcript})
	}
	return entries
}
