// Package errors provides structured error handling for Anchor.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the anchor binary.
const (
	ExitSuccess     = 0 // Successful execution
	ExitGeneral     = 1 // General/unknown error
	ExitInput       = 2 // Invalid input
	ExitWallet      = 3 // Wallet driver refused or failed
	ExitNotFound    = 4 // Resource not found
	ExitUnavailable = 5 // External collaborator unavailable
)

// AnchorError is the structured error type for Anchor.
type AnchorError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *AnchorError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AnchorError) Unwrap() error {
	return e.Cause
}

// Is matches any AnchorError carrying the same code.
func (e *AnchorError) Is(target error) bool {
	var t *AnchorError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Generic errors.
var (
	ErrGeneral = &AnchorError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &AnchorError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &AnchorError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &AnchorError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &AnchorError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown config key",
		ExitCode: ExitInput,
	}
)

// Wallet session and driver errors.
var (
	ErrDriverUnavailable = &AnchorError{
		Code:     "DRIVER_UNAVAILABLE",
		Message:  "wallet driver is not available",
		ExitCode: ExitWallet,
	}

	ErrHandshakeRejected = &AnchorError{
		Code:     "HANDSHAKE_REJECTED",
		Message:  "wallet rejected the connection",
		ExitCode: ExitWallet,
	}

	ErrKeyFetchFailed = &AnchorError{
		Code:     "KEY_FETCH_FAILED",
		Message:  "failed to fetch public key from wallet",
		ExitCode: ExitWallet,
	}

	ErrDriverTeardownFailed = &AnchorError{
		Code:     "DRIVER_TEARDOWN_FAILED",
		Message:  "wallet driver failed to disconnect",
		ExitCode: ExitWallet,
	}

	ErrUnknownKind = &AnchorError{
		Code:     "UNKNOWN_KIND",
		Message:  "unknown wallet kind",
		ExitCode: ExitInput,
	}

	ErrNotConnected = &AnchorError{
		Code:     "NOT_CONNECTED",
		Message:  "wallet not connected",
		ExitCode: ExitWallet,
	}

	ErrConnectInProgress = &AnchorError{
		Code:     "CONNECT_IN_PROGRESS",
		Message:  "a wallet connection is already in progress",
		ExitCode: ExitWallet,
	}

	ErrSigningFailed = &AnchorError{
		Code:     "SIGNING_FAILED",
		Message:  "wallet failed to sign transaction",
		ExitCode: ExitWallet,
	}
)

// External collaborator errors.
var (
	ErrProviderFailed = &AnchorError{
		Code:     "PROVIDER_FAILED",
		Message:  "lending estimate provider request failed",
		ExitCode: ExitUnavailable,
	}

	ErrStoreFailed = &AnchorError{
		Code:     "STORE_FAILED",
		Message:  "persistence store request failed",
		ExitCode: ExitUnavailable,
	}

	ErrNetworkError = &AnchorError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitUnavailable,
	}
)

// New creates a new AnchorError with the given code and message.
func New(code, message string) *AnchorError {
	return &AnchorError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ae *AnchorError
	if errors.As(err, &ae) {
		return &AnchorError{
			Code:       ae.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ae.Message),
			Details:    ae.Details,
			Suggestion: ae.Suggestion,
			Cause:      ae.Cause,
			ExitCode:   ae.ExitCode,
		}
	}

	return &AnchorError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// Classify returns a copy of the sentinel with cause attached, keeping the
// sentinel's code, message and exit code.
func Classify(sentinel *AnchorError, cause error) error {
	return &AnchorError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ae *AnchorError
	if errors.As(err, &ae) {
		return &AnchorError{
			Code:       ae.Code,
			Message:    ae.Message,
			Details:    details,
			Suggestion: ae.Suggestion,
			Cause:      ae.Cause,
			ExitCode:   ae.ExitCode,
		}
	}

	return &AnchorError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ae *AnchorError
	if errors.As(err, &ae) {
		return &AnchorError{
			Code:       ae.Code,
			Message:    ae.Message,
			Details:    ae.Details,
			Suggestion: suggestion,
			Cause:      ae.Cause,
			ExitCode:   ae.ExitCode,
		}
	}

	return &AnchorError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ae *AnchorError
	if errors.As(err, &ae) {
		return ae.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ae *AnchorError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
