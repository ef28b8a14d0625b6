// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// User-facing messages shared by the CLI and the proxy.
const (
	MsgFileTooLarge     = "File size exceeds the maximum limit of %s"
	MsgFileNotSupported = "File type not supported for conversion"
	MsgSameFormat       = "Input and output formats cannot be the same"
	MsgNoFileSelected   = "Please select a file first"
	MsgNoFormatSelected = "Please select both input and output formats"
	MsgNetworkError     = "Network error. Please check your connection and try again."
	MsgTimeoutError     = "Request timed out. Please try again."
	MsgMixedCategories  = "All files in one batch must belong to the same category"
)

// ValidationError reports bad or missing input detected before any network
// call. It is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NetworkError wraps a transport failure reaching the proxy or the
// conversion API.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError carries a non-success response from the proxy or the
// conversion API. Message is the upstream text, passed through verbatim.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// TimeoutError reports that a polling loop reached its attempt ceiling
// without observing a terminal job state.
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("conversion timed out after %d attempts (%v)", e.Attempts, e.Elapsed)
}

// ConfigurationError reports a missing or unusable process configuration,
// such as an absent API credential. The credential itself never appears in
// Message.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }
