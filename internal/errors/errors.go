package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTimeout          = errors.New("timeout")
	ErrConnectionFailed = errors.New("connection failed")
	ErrNoData           = errors.New("no data")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConnectivity covers an unreachable or unauthenticated cluster.
	// Non-fatal: it drives the cluster-connectivity alert and is retried via
	// login on the next tick.
	ErrorTypeConnectivity ErrorType = "connectivity"
	// ErrorTypeIPMIQuery covers malformed or missing power data for a single
	// IPMI endpoint. Non-fatal: that endpoint is skipped for the tick.
	ErrorTypeIPMIQuery ErrorType = "ipmi_query"
	// ErrorTypeNotification covers trap or mail send failures. Non-fatal:
	// logged, never blocks the other channel or subsequent ticks.
	ErrorTypeNotification ErrorType = "notification"
	// ErrorTypeConfig covers missing or invalid startup configuration.
	// Fatal: the poll loop and SNMP responder must not start.
	ErrorTypeConfig ErrorType = "config"
)

// AgentError is a structured error for agent operations
type AgentError struct {
	Type       ErrorType
	Op         string // Operation that failed (e.g., "list_nodes", "send_trap")
	Endpoint   string // Host or endpoint where the error occurred
	Err        error  // Underlying error
	StatusCode int    // HTTP status code if applicable
	Timestamp  time.Time
	Retryable  bool
}

func (e *AgentError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *AgentError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrUnauthorized, ErrConnectionFailed:
		if e.Type == ErrorTypeConnectivity {
			return true
		}
	case ErrInvalidConfig:
		if e.Type == ErrorTypeConfig {
			return true
		}
	}

	return errors.Is(e.Err, target)
}

// New creates a new AgentError
func New(errorType ErrorType, op, endpoint string, err error) *AgentError {
	return &AgentError{
		Type:      errorType,
		Op:        op,
		Endpoint:  endpoint,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: errorType != ErrorTypeConfig,
	}
}

// WithStatusCode adds an HTTP status code to the error
func (e *AgentError) WithStatusCode(code int) *AgentError {
	e.StatusCode = code
	if code >= 400 && code < 500 && code != 408 && code != 429 {
		e.Retryable = false
	}
	return e
}

// WrapConnectivity wraps a cluster reachability or authentication error
func WrapConnectivity(op, endpoint string, err error) error {
	return New(ErrorTypeConnectivity, op, endpoint, err)
}

// WrapIPMIQuery wraps a per-endpoint power query error
func WrapIPMIQuery(op, endpoint string, err error) error {
	return New(ErrorTypeIPMIQuery, op, endpoint, err)
}

// WrapNotification wraps a notification channel send error
func WrapNotification(op, endpoint string, err error) error {
	return New(ErrorTypeNotification, op, endpoint, err)
}

// WrapConfig wraps a fatal configuration error
func WrapConfig(op string, err error) error {
	return New(ErrorTypeConfig, op, "", err)
}

// IsFatal reports whether the error must prevent the agent from starting.
// Only configuration errors are fatal; every other kind is surfaced through
// logs and retried on a later tick.
func IsFatal(err error) bool {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Type == ErrorTypeConfig
	}
	return errors.Is(err, ErrInvalidConfig)
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		if agentErr.Type == ErrorTypeConnectivity && (agentErr.StatusCode == 401 || agentErr.StatusCode == 403) {
			return true
		}
	}

	return errors.Is(err, ErrUnauthorized)
}
