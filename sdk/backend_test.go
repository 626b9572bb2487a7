package hirelane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelane/interview-client/pkg/core"
	"github.com/hirelane/interview-client/pkg/core/interview"
)

func newBackendTestServer(t *testing.T, handler http.HandlerFunc) (*backendService, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewClient(WithBaseURL(server.URL), WithAPIKey("test-key"))
	return &backendService{client: client}, server.Close
}

func TestBackend_StartSession(t *testing.T) {
	t.Parallel()

	backend, closeServer := newBackendTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/interviews/int_1/session", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess_42"})
	})
	defer closeServer()

	sessionID, err := backend.StartSession(context.Background(), "int_1")
	require.NoError(t, err)
	assert.Equal(t, "sess_42", sessionID)
}

func TestBackend_StartSessionMissingID(t *testing.T) {
	t.Parallel()

	backend, closeServer := newBackendTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	defer closeServer()

	_, err := backend.StartSession(context.Background(), "int_1")
	require.Error(t, err)
	assert.True(t, core.IsType(err, core.ErrHandshake))
}

func TestBackend_PrepareContextErrorDecode(t *testing.T) {
	t.Parallel()

	backend, closeServer := newBackendTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"type":"backend_error","message":"interview already finished","code":"interview_finished"}}`))
	})
	defer closeServer()

	err := backend.PrepareContext(context.Background(), "int_1")
	require.Error(t, err)
	require.True(t, core.IsType(err, core.ErrBackend))
	assert.Contains(t, err.Error(), "interview already finished")
}

func TestBackend_FinalizeCarriesTranscript(t *testing.T) {
	t.Parallel()

	var got interview.FinalizeRequest
	backend, closeServer := newBackendTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/interviews/int_1/finalize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})
	defer closeServer()

	req := interview.FinalizeRequest{
		InterviewID: "int_1",
		SessionID:   "sess_42",
		Transcript: []interview.TranscriptEntry{
			{Role: "interviewer", Text: "why this role?"},
			{Role: "candidate", Text: "the mission"},
		},
		EventCount: 7,
	}
	require.NoError(t, backend.FinalizeInterview(context.Background(), req))
	assert.Equal(t, req, got)
}

func TestBackend_FetchResults(t *testing.T) {
	t.Parallel()

	backend, closeServer := newBackendTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/sessions/sess_42/results", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(interview.Results{
			Summary:   "strong communicator",
			Score:     8.5,
			Strengths: []string{"clarity"},
			JobFit:    "good",
		})
	})
	defer closeServer()

	results, err := backend.FetchResults(context.Background(), "sess_42")
	require.NoError(t, err)
	assert.Equal(t, "strong communicator", results.Summary)
	assert.InDelta(t, 8.5, results.Score, 0.001)
	assert.Equal(t, []string{"clarity"}, results.Strengths)
}

func TestBackend_TransportErrorSurfaces(t *testing.T) {
	t.Parallel()

	client := NewClient(WithBaseURL("http://127.0.0.1:1"))
	backend := &backendService{client: client}

	_, err := backend.FetchResults(context.Background(), "sess_42")
	require.Error(t, err)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}
