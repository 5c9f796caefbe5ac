package interfaces

import (
	"context"
	"errors"
	"fmt"
)

// Local validation errors. These never reach the ledger.
var (
	ErrInvalidName       = errors.New("invalid network name")
	ErrInvalidIdentifier = errors.New("invalid network identifier")
	ErrInvalidOptions    = errors.New("invalid submit options")
	// ErrNoTransactOpts is returned when a transaction is attempted without a credential.
	ErrNoTransactOpts = errors.New("no authorized transactor available")
)

// Ledger-reported precondition failures. They are never retried automatically.
var (
	ErrNetworkNotFound        = errors.New("network not found")
	ErrTokenNotFound          = errors.New("gateway token not found")
	ErrNoPendingClaim         = errors.New("no pending primary authority claim")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidStateTransition = errors.New("invalid token state transition")
	// ErrLedgerRejected covers ledger rejections with no more specific kind.
	// The ledger's own reason is kept in LedgerError.Reason.
	ErrLedgerRejected = errors.New("rejected by ledger")
)

// Transport and confirmation errors.
var (
	ErrTransport          = errors.New("ledger transport failure")
	ErrSubmissionRejected = errors.New("submission reverted on ledger")
	ErrTimeout            = errors.New("timed out waiting for confirmations")
)

// LedgerError carries the kind of a ledger-originated failure together with the
// ledger's own message. errors.Is matches both the kind and the wrapped cause.
type LedgerError struct {
	Kind   error
	Method string
	Reason string
	Err    error
}

func (e *LedgerError) Error() string {
	msg := e.Kind.Error()
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewLedgerError builds a LedgerError of the given kind.
func NewLedgerError(kind error, method, reason string, cause error) *LedgerError {
	return &LedgerError{Kind: kind, Method: method, Reason: reason, Err: cause}
}

// Outcome tells a caller what is known about a mutation after an error.
type Outcome int

const (
	// OutcomeSucceeded means the mutation was applied.
	OutcomeSucceeded Outcome = iota
	// OutcomeNotApplied means the mutation definitely did not happen.
	OutcomeNotApplied
	// OutcomeUnknown means the ledger may still apply the mutation. Re-query before retrying.
	OutcomeUnknown
	// OutcomeFailed means the mutation was included and reverted. It must not be retried as-is.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeNotApplied:
		return "not_applied"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ClassifyOutcome maps an error returned by a write or a wait onto an Outcome.
func ClassifyOutcome(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSucceeded
	case errors.Is(err, ErrSubmissionRejected):
		return OutcomeFailed
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransport),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeUnknown
	default:
		return OutcomeNotApplied
	}
}

// IsRetryableRead reports whether a failed read may be retried with backoff.
func IsRetryableRead(err error) bool {
	return errors.Is(err, ErrTransport)
}
