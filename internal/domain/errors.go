package domain

import "errors"

var (
	// ErrPromptNotFound is returned when the device stream ends before the expected prompt.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrFieldMissing indicates that command output lacks the expected line or field.
	ErrFieldMissing = errors.New("field missing")
	// ErrMalformedValue indicates a field whose value cannot be parsed.
	ErrMalformedValue = errors.New("malformed value")
	// ErrLivenessTimeout is reported by the watchdog when the session made no progress in time.
	ErrLivenessTimeout = errors.New("no session progress within deadline")
	// ErrSessionExited is reported by the watchdog when the session-driving path has returned.
	ErrSessionExited = errors.New("session loop exited")
)
