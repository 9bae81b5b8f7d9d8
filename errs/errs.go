// Package errs defines the failure taxonomy shared by the ledger, the risk
// calculations and the indicator library.
//
// Every failure returned by this module wraps exactly one of the four kind
// sentinels, so callers can branch with errors.Is:
//
//	if errors.Is(err, errs.ErrStateConflict) { ... }
package errs

import "errors"

// Kind names a failure class for reporting surfaces.
type Kind string

const (
	KindNone                Kind = ""
	KindValidation          Kind = "validation"
	KindStateConflict       Kind = "state_conflict"
	KindInsufficientHistory Kind = "insufficient_history"
	KindPersistence         Kind = "persistence"
	KindUnknown             Kind = "unknown"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrStateConflict       = errors.New("state conflict")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrPersistence         = errors.New("persistence error")
)

var (
	ErrInvalidStopPlacement = kinded(ErrValidation, "invalid stop placement")
	ErrInvalidSize          = kinded(ErrValidation, "invalid size")
	ErrInvalidPrice         = kinded(ErrValidation, "invalid price")
	ErrInvalidTarget        = kinded(ErrValidation, "invalid take profit")
	ErrInvalidTrailing      = kinded(ErrValidation, "invalid trailing config")
	ErrInvalidPeriod        = kinded(ErrValidation, "invalid period")

	ErrPositionAlreadyOpen = kinded(ErrStateConflict, "position already open")
	ErrNoOpenPosition      = kinded(ErrStateConflict, "no open position")
	ErrStopWouldLoosen     = kinded(ErrStateConflict, "stop would loosen")
)

// kindedError is a specific sentinel that also matches its kind.
type kindedError struct {
	kind error
	msg  string
}

func kinded(kind error, msg string) error {
	return &kindedError{kind: kind, msg: msg}
}

func (e *kindedError) Error() string { return e.msg }

func (e *kindedError) Unwrap() error { return e.kind }

// KindOf classifies err. A nil error has KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrInsufficientHistory):
		return KindInsufficientHistory
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindUnknown
	}
}

// Retryable reports whether resubmitting the same command may succeed.
// Only persistence failures qualify; everything else is a logic or input
// error.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Persistence wraps a storage failure so it matches ErrPersistence while
// keeping the underlying cause reachable.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &persistenceError{op: op, err: err}
}

type persistenceError struct {
	op  string
	err error
}

func (e *persistenceError) Error() string {
	return e.op + ": " + ErrPersistence.Error() + ": " + e.err.Error()
}

func (e *persistenceError) Unwrap() []error { return []error{ErrPersistence, e.err} }
