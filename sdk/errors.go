package hirelane

import (
	"fmt"
	"net/url"

	"github.com/hirelane/interview-client/pkg/core"
)

// SDK-level error type that wraps core errors
type Error = core.Error

// Error types
const (
	ErrInvalidRequest    = core.ErrInvalidRequest
	ErrPermissionDenied  = core.ErrPermissionDenied
	ErrDeviceUnavailable = core.ErrDeviceUnavailable
	ErrHandshake         = core.ErrHandshake
	ErrConnectionLost    = core.ErrConnectionLost
	ErrPersistence       = core.ErrPersistence
	ErrBackend           = core.ErrBackend
)

// Error constructors
var (
	NewInvalidRequestError = core.NewInvalidRequestError
	NewHandshakeError      = core.NewHandshakeError
	NewConnectionLostError = core.NewConnectionLostError
	NewBackendError        = core.NewBackendError
)

// TransportError represents transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, etc.) while talking to the platform.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}
