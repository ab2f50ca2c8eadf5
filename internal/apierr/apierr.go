package apierr

import (
	"errors"
	"fmt"
)

const (
	CodeInsufficientCredits = "insufficient_credits"
	CodeRateLimit           = "rate_limit"
	CodeGenerationFailed    = "generation_failed"
	CodeSyncFailed          = "sync_failed"
	CodeRecoveryFailed      = "recovery_failed"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Code returns the machine-readable category of err, or "" when err carries none.
func Code(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func IsInsufficientCredits(err error) bool { return Code(err) == CodeInsufficientCredits }
func IsRateLimit(err error) bool           { return Code(err) == CodeRateLimit }
