package asr

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a RecognitionError.
type ErrorCode string

const (
	// ErrorCodeConnectionFailure covers transport problems: failed dial,
	// TLS trust errors, rejected credentials and unexpected disconnects.
	ErrorCodeConnectionFailure ErrorCode = "CONNECTION_FAILURE"

	// ErrorCodeSessionTimeout is raised when the server stops answering
	// within the configured response window.
	ErrorCodeSessionTimeout ErrorCode = "SESSION_TIMEOUT"

	// ErrorCodeFailure covers protocol and server-side errors.
	ErrorCodeFailure ErrorCode = "FAILURE"
)

// RecognitionError is the error type delivered to listeners and returned
// by recognizer operations.
type RecognitionError struct {
	Code    ErrorCode
	Message string
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRecognitionError creates an error with an explicit code and message.
func NewRecognitionError(code ErrorCode, message string) *RecognitionError {
	return &RecognitionError{Code: code, Message: message}
}

// NewConnectionError creates a CONNECTION_FAILURE error.
func NewConnectionError(message string) *RecognitionError {
	return NewRecognitionError(ErrorCodeConnectionFailure, message)
}

// NewTimeoutError creates a SESSION_TIMEOUT error.
func NewTimeoutError(message string) *RecognitionError {
	return NewRecognitionError(ErrorCodeSessionTimeout, message)
}

// NewFailureError creates a FAILURE error.
func NewFailureError(message string) *RecognitionError {
	return NewRecognitionError(ErrorCodeFailure, message)
}

// AsRecognitionError extracts a *RecognitionError from err, wrapping
// foreign errors as internal failures.
func AsRecognitionError(err error) *RecognitionError {
	if err == nil {
		return nil
	}
	var rerr *RecognitionError
	if errors.As(err, &rerr) {
		return rerr
	}
	return NewFailureError(err.Error())
}

// IsErrorCode reports whether err is a RecognitionError with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var rerr *RecognitionError
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.Code == code
}

// Server error codes returned in the Error-Code header of a failed
// START_RECOGNITION response.
const (
	serverErrFileOpen    = "ERR_FILE_OPEN"
	serverErrArgInvalid  = "ERR_ARG_INVALID"
	serverErrCorruptedLM = "ERR_CORRUPTED_LM"
	serverErrNoActiveLM  = "ERR_NO_ACTIVE_LM"
)

// startRecognitionError maps a failed START_RECOGNITION response to the
// error reported to the application.
func startRecognitionError(errorCode, message string) *RecognitionError {
	switch errorCode {
	case serverErrFileOpen:
		return NewFailureError("Language model not found")
	case serverErrArgInvalid:
		return NewFailureError("Required AM not loaded")
	case serverErrCorruptedLM:
		return NewFailureError("Corrupted language model")
	case serverErrNoActiveLM:
		return NewFailureError("No active language model")
	default:
		if message == "" {
			message = errorCode
		}
		return NewFailureError(fmt.Sprintf("Internal server error: %s", message))
	}
}
