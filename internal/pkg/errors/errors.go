package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict signals contention on an atomic update. Callers retry a
	// bounded number of times before surfacing a transient failure.
	ErrConflict = errors.New("concurrency conflict")
)

// Rejection codes returned by the connection engine. These are stable API
// strings, not display text.
const (
	CodeQuotaExceeded     = "quota_exceeded"
	CodeEventFull         = "event_full"
	CodeInvalidTransition = "invalid_transition"
	CodeAlreadyInvited    = "already_invited"
	CodeAlreadyConnected  = "already_connected"
	CodeNotInviteTarget   = "not_invite_target"
	CodeMessagingLocked   = "messaging_locked"
)

// Rejection is an expected, user-facing policy denial: quota exceeded, event
// at capacity, invalid state transition. It is a normal outcome, never logged
// as an error.
type Rejection struct {
	Code string
	Msg  string
}

func (r *Rejection) Error() string {
	if r.Msg != "" {
		return r.Msg
	}
	return r.Code
}

func Reject(code, msg string) *Rejection {
	return &Rejection{Code: code, Msg: msg}
}

// AsRejection unwraps a Rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// InvariantViolation indicates state that the engine's atomicity contracts
// make unreachable, e.g. a connected edge whose reverse edge is dangling in
// invited. It is never recovered and never retried; writes to the affected
// pair stay blocked because every transition re-detects it.
type InvariantViolation struct {
	Detail string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", v.Detail)
}

func Invariant(format string, args ...interface{}) *InvariantViolation {
	return &InvariantViolation{Detail: fmt.Sprintf(format, args...)}
}

func IsInvariantViolation(err error) bool {
	var v *InvariantViolation
	return errors.As(err, &v)
}
