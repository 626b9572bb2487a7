package hirelane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/hirelane/interview-client/pkg/core"
	"github.com/hirelane/interview-client/pkg/core/interview"
)

// backendService implements interview.Backend over the platform REST API.
type backendService struct {
	client *Client
}

func (b *backendService) PrepareContext(ctx context.Context, interviewID string) error {
	if interviewID == "" {
		return core.NewInvalidRequestError("interview id must not be empty")
	}
	err := b.doJSON(ctx, http.MethodPost, "/v1/interviews/"+interviewID+"/prepare", nil, nil)
	if err != nil {
		return wrapHandshake("prepare interview context", err)
	}
	return nil
}

func (b *backendService) StartSession(ctx context.Context, interviewID string) (string, error) {
	if interviewID == "" {
		return "", core.NewInvalidRequestError("interview id must not be empty")
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	err := b.doJSON(ctx, http.MethodPost, "/v1/interviews/"+interviewID+"/session", nil, &out)
	if err != nil {
		return "", wrapHandshake("start interview session", err)
	}
	if out.SessionID == "" {
		return "", core.NewHandshakeError("backend returned no session id")
	}
	return out.SessionID, nil
}

func (b *backendService) FinalizeInterview(ctx context.Context, req interview.FinalizeRequest) error {
	return b.doJSON(ctx, http.MethodPost, "/v1/interviews/"+req.InterviewID+"/finalize", req, nil)
}

func (b *backendService) FetchResults(ctx context.Context, sessionID string) (*interview.Results, error) {
	if sessionID == "" {
		return nil, core.NewInvalidRequestError("session id must not be empty")
	}
	var out interview.Results
	if err := b.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/results", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON performs one JSON request against the backend. Non-2xx responses
// decode into the canonical error shape; transport failures surface as
// *TransportError.
func (b *backendService) doJSON(ctx context.Context, method, path string, body, out any) error {
	endpoint, err := b.client.endpoint(path)
	if err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return core.NewInvalidRequestError("failed to marshal request body")
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if b.client.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.client.apiKey)
	}

	resp, err := b.client.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method, URL: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeErrorResponse(resp, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return core.NewBackendError("decode_failed", "failed to decode backend response: "+err.Error())
		}
	}
	return nil
}

// decodeErrorResponse turns a non-2xx body into a typed error. The backend
// wraps errors as {"error": {"type", "message", "code"}}.
func decodeErrorResponse(resp *http.Response, data []byte) error {
	var envelope struct {
		Error *core.Error `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		if envelope.Error.Type == "" {
			envelope.Error.Type = core.ErrBackend
		}
		envelope.Error.RequestID = resp.Header.Get("X-Request-ID")
		return envelope.Error
	}
	return &core.Error{
		Type:      core.ErrBackend,
		Message:   http.StatusText(resp.StatusCode),
		Code:      resp.Status,
		RequestID: resp.Header.Get("X-Request-ID"),
	}
}

// wrapHandshake maps start-sequence failures to the handshake error type.
// Typed backend errors pass through untouched.
func wrapHandshake(op string, err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	return core.NewHandshakeError(op + ": " + err.Error())
}
