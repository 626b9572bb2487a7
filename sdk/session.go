package hirelane

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hirelane/interview-client/pkg/core/interview"
	"github.com/hirelane/interview-client/pkg/core/media"
)

// playbackSampleRate is the interviewer audio format rendered through the
// speaker.
const (
	playbackSampleRate = 24000
	playbackChannels   = 1
)

// InterviewService starts and manages live interview sessions.
type InterviewService struct {
	client *Client
}

// SessionOption configures one Interviews.Start call.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	cfg    interview.SessionConfig
	opener media.InputOpener
	sink   media.OutputSink
}

// WithConfig overrides the client's default session configuration for this
// session.
func WithConfig(cfg interview.SessionConfig) SessionOption {
	return func(o *sessionOptions) {
		o.cfg = cfg
	}
}

// WithInputOpener injects the capture device opener. The session takes
// ownership and closes it on teardown. Default: the system microphone.
func WithInputOpener(opener media.InputOpener) SessionOption {
	return func(o *sessionOptions) {
		o.opener = opener
	}
}

// WithOutputSink injects the playback sink. The session takes ownership and
// closes it on teardown. Default: the system speaker.
func WithOutputSink(sink media.OutputSink) SessionOption {
	return func(o *sessionOptions) {
		o.sink = sink
	}
}

// Start acquires the microphone, primes the backend, opens the realtime
// connection, and returns a live session. The returned session is Active;
// failures along the way roll everything back.
func (s *InterviewService) Start(ctx context.Context, interviewID string, opts ...SessionOption) (*InterviewSession, error) {
	o := sessionOptions{cfg: s.client.sessionCfg}
	for _, opt := range opts {
		opt(&o)
	}

	opener := o.opener
	if opener == nil {
		mic, err := media.NewMalgoOpener()
		if err != nil {
			return nil, err
		}
		opener = mic
	}

	sink := o.sink
	if sink == nil {
		speaker, err := media.NewOtoSink(playbackSampleRate, playbackChannels)
		if err != nil {
			opener.Close()
			return nil, err
		}
		sink = speaker
	}

	queue := media.NewPlaybackQueue(sink)
	session := interview.NewSession(
		interviewID,
		o.cfg,
		&backendService{client: s.client},
		&liveDialer{client: s.client, cfg: o.cfg},
		media.NewDeviceGuard(opener),
		queue,
		logrus.NewEntry(s.client.logger),
	)

	if err := session.Start(ctx); err != nil {
		queue.Close()
		opener.Close()
		return nil, err
	}

	is := &InterviewSession{
		client:  s.client,
		session: session,
	}

	// Release the owned devices once the session is fully over.
	go func() {
		<-session.Done()
		queue.Close()
		_ = opener.Close()
	}()

	return is, nil
}

// InterviewSession is a running live interview.
type InterviewSession struct {
	client  *Client
	session *interview.Session
}

// SessionID returns the backend-allocated session identifier.
func (s *InterviewSession) SessionID() string {
	return s.session.SessionID()
}

// State returns the current session state.
func (s *InterviewSession) State() interview.State {
	return s.session.State()
}

// Speaking reports whether interviewer audio is currently playing.
func (s *InterviewSession) Speaking() bool {
	return s.session.Speaking()
}

// Events yields session events for UI observers: state changes, transcripts,
// playback interruptions, warnings. The channel closes after the session
// ends.
func (s *InterviewSession) Events() <-chan interview.Event {
	return s.session.Events()
}

// Transcript returns the conversation transcript assembled so far.
func (s *InterviewSession) Transcript() []interview.TranscriptEntry {
	return s.session.Transcript()
}

// End requests a candidate-initiated end. Idempotent.
func (s *InterviewSession) End() error {
	return s.session.End()
}

// ToggleAudio pauses or resumes the candidate's outbound audio.
func (s *InterviewSession) ToggleAudio(enabled bool) error {
	return s.session.ToggleAudio(enabled)
}

// Done is closed once the session has fully ended and its devices are
// released.
func (s *InterviewSession) Done() <-chan struct{} {
	return s.session.Done()
}

// Result reports how the session ended. Nil until Done is closed.
func (s *InterviewSession) Result() *interview.Result {
	return s.session.Result()
}

// FetchResults retrieves the interview analysis. Valid after the session has
// ended and the backend has processed the transcript.
func (s *InterviewSession) FetchResults(ctx context.Context) (*interview.Results, error) {
	backend := &backendService{client: s.client}
	return backend.FetchResults(ctx, s.session.SessionID())
}
