package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError is an engine-level failure: the request never reached the
// ledger, or replay found the log inconsistent. Ledger rejections are not
// RuntimeErrors; they become rejected completions.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Action is the requested action, when known.
	Action string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownAction means the action is not in the ABI.
	ErrCodeUnknownAction RuntimeErrorCode = "UNKNOWN_ACTION"

	// ErrCodeInvalidArgs means arguments are missing, unknown or not strings,
	// or the caller is not a valid name.
	ErrCodeInvalidArgs RuntimeErrorCode = "INVALID_ARGS"

	// ErrCodeStopped means the engine queue was closed.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeReplayDiverged means re-executing the log did not reproduce it.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnknownAction reports whether err is an unknown-action error.
func IsUnknownAction(err error) bool {
	return hasCode(err, ErrCodeUnknownAction)
}

// IsInvalidArgs reports whether err is an argument validation error.
func IsInvalidArgs(err error) bool {
	return hasCode(err, ErrCodeInvalidArgs)
}

// IsStopped reports whether err came from a stopped engine.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func unknownActionError(action string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownAction,
		Message: "action is not part of the ledger ABI",
		Action:  action,
	}
}

func invalidArgsError(action string, problems []string) *RuntimeError {
	details := make(map[string]string, len(problems))
	for i, p := range problems {
		details[fmt.Sprintf("arg%d", i)] = p
	}
	return &RuntimeError{
		Code:    ErrCodeInvalidArgs,
		Message: strings.Join(problems, "; "),
		Action:  action,
		Details: details,
	}
}

func stoppedError() *RuntimeError {
	return &RuntimeError{Code: ErrCodeStopped, Message: "engine is not accepting requests"}
}
