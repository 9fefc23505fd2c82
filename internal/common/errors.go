// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies resolution failures. Kinds are stable strings so
// they can cross the HTTP boundary and be matched by the UI collaborator.
type ErrorKind string

const (
	KindNoLiquidityFound      ErrorKind = "NO_LIQUIDITY_FOUND"
	KindNoRouteFound          ErrorKind = "NO_ROUTE_FOUND"
	KindQuoteExpired          ErrorKind = "QUOTE_EXPIRED"
	KindSlippageExceededMax   ErrorKind = "SLIPPAGE_EXCEEDED_MAX"
	KindInsufficientBalance   ErrorKind = "INSUFFICIENT_BALANCE"
	KindInsufficientAllowance ErrorKind = "INSUFFICIENT_ALLOWANCE"
	KindSimulationFailed      ErrorKind = "SIMULATION_FAILED"
	KindBridgeUnavailable     ErrorKind = "BRIDGE_UNAVAILABLE"
	KindUpstreamTimeout       ErrorKind = "UPSTREAM_TIMEOUT"
)

// ResolveError is the taxonomy error surfaced when a whole stage is
// exhausted. Component-local failures (one candidate rejected, one
// source timing out) are absorbed at the component boundary and never
// become ResolveErrors on their own.
type ResolveError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ResolveError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match any ResolveError of the same kind.
func (e *ResolveError) Is(target error) bool {
	var re *ResolveError
	if errors.As(target, &re) {
		return re.Kind == e.Kind
	}
	return false
}

func NewResolveError(kind ErrorKind, format string, args ...interface{}) *ResolveError {
	return &ResolveError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapResolveError(kind ErrorKind, err error, msg string) *ResolveError {
	return &ResolveError{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain, or "" when the
// error carries no kind.
func KindOf(err error) ErrorKind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// HttpError represents an HTTP error with status code and message
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorNotFound(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    messageOrDefault(msg, "Not found"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

// HTTPStatusForKind maps taxonomy kinds onto HTTP status codes for the
// API layer. Warning-level kinds intentionally map to 200: the plan is
// still returned.
func HTTPStatusForKind(kind ErrorKind) int {
	switch kind {
	case KindNoRouteFound, KindNoLiquidityFound, KindBridgeUnavailable:
		return http.StatusNotFound
	case KindQuoteExpired, KindSlippageExceededMax, KindInsufficientBalance, KindSimulationFailed:
		return http.StatusUnprocessableEntity
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindInsufficientAllowance:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
