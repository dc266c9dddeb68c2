package game

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine failures for the transport layer.
type ErrorCode string

const (
	// ErrCodeProtocolViolation covers malformed or out-of-turn requests:
	// acting without priority, submitting to a step you do not own,
	// advancing a step outside priority exhaustion.
	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	// ErrCodeInvalidSelection covers resolution responses that violate
	// cardinality or legality constraints. The step stays queued.
	ErrCodeInvalidSelection ErrorCode = "INVALID_SELECTION"
	// ErrCodeUnknownEvent marks an event tag outside the known set.
	ErrCodeUnknownEvent ErrorCode = "UNKNOWN_EVENT"
	// ErrCodeNotFound marks a missing game, player, card or step.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeGameOver marks commands against a finished game.
	ErrCodeGameOver ErrorCode = "GAME_OVER"
	// ErrCodeConflict marks duplicate game ids or out-of-order seq.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeInternal marks unexpected engine failures.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// EngineError is a typed engine failure. Handlers reject the request
// with the code and leave game state untouched.
type EngineError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func newEngineError(code ErrorCode, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapEngineError(code ErrorCode, err error, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the error code from err, or ErrCodeInternal when the
// error is not an EngineError.
func CodeOf(err error) ErrorCode {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given engine error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
