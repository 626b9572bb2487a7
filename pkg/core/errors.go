package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error type surfaced by the interview client.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrInvalidRequest indicates a misuse of the client API.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	// ErrPermissionDenied indicates the user denied media device access.
	ErrPermissionDenied ErrorType = "permission_denied"
	// ErrDeviceUnavailable indicates the capture device could not be opened
	// or is already held by another session.
	ErrDeviceUnavailable ErrorType = "device_unavailable"
	// ErrHandshake indicates the prepare/start calls or the realtime dial failed.
	ErrHandshake ErrorType = "handshake_error"
	// ErrConnectionLost indicates the realtime connection ended unexpectedly.
	// Code carries the subdivision: heartbeat_timeout, abnormal_closure,
	// or protocol_error.
	ErrConnectionLost ErrorType = "connection_lost"
	// ErrPersistence indicates the finalize persistence call failed. Non-fatal:
	// the session still ends locally.
	ErrPersistence ErrorType = "persistence_error"
	// ErrBackend indicates an error event reported by the interview backend.
	ErrBackend ErrorType = "backend_error"
)

// Connection-lost codes.
const (
	CodeHeartbeatTimeout = "heartbeat_timeout"
	CodeAbnormalClosure  = "abnormal_closure"
	CodeProtocolError    = "protocol_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewPermissionDeniedError creates a media permission error.
func NewPermissionDeniedError(message string) *Error {
	return &Error{
		Type:    ErrPermissionDenied,
		Message: message,
	}
}

// NewDeviceUnavailableError creates a device unavailable error.
func NewDeviceUnavailableError(message string) *Error {
	return &Error{
		Type:    ErrDeviceUnavailable,
		Message: message,
	}
}

// NewHandshakeError creates a handshake error.
func NewHandshakeError(message string) *Error {
	return &Error{
		Type:    ErrHandshake,
		Message: message,
	}
}

// NewConnectionLostError creates a connection lost error with a subdivision code.
func NewConnectionLostError(code, message string) *Error {
	return &Error{
		Type:    ErrConnectionLost,
		Message: message,
		Code:    code,
	}
}

// NewPersistenceError creates a finalize persistence error.
func NewPersistenceError(message string) *Error {
	return &Error{
		Type:    ErrPersistence,
		Message: message,
	}
}

// NewBackendError creates an error for a backend-reported error event.
func NewBackendError(code, message string) *Error {
	return &Error{
		Type:    ErrBackend,
		Message: message,
		Code:    code,
	}
}

// IsType reports whether err is (or wraps) a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}
