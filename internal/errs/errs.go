// Package errs defines the named error kinds the compensation engine
// surfaces to its callers. Every error returned across a component
// boundary either wraps one of these sentinels or is a bug.
package errs

import "errors"

var (
	// NotFound - partner, package, order, entry, or queued row does not exist.
	NotFound = errors.New("not found")
	// Unauthorized - caller identity is missing or could not be established.
	Unauthorized = errors.New("unauthorized")
	// Forbidden - caller identity is known but not allowed to act on this resource.
	Forbidden = errors.New("forbidden")
	// Validation - malformed input: negative amount, zero units, bad transition, unknown code.
	Validation = errors.New("validation failed")
	// InsufficientFunds - a payout or debit exceeds the available wallet balance.
	InsufficientFunds = errors.New("insufficient funds")
	// MinWithdrawal - a payout request is below the configured minimum.
	MinWithdrawal = errors.New("amount below minimum withdrawal")
	// Conflict - an already-terminal entry was re-transitioned, or a duplicate assignment was attempted.
	Conflict = errors.New("conflict")
	// Transient - a retryable datastore error; the caller MAY retry with the same logical input.
	Transient = errors.New("transient datastore error")
)

// Bundle pairs a sentinel error kind with a human message and optional
// structured data, the way a caller can report it without losing the
// kind for errors.Is matching.
type Bundle struct {
	Kind    error
	Message string
	Data    interface{}
}

// New builds a Bundle around one of the sentinel kinds above.
func New(kind error, message string, data interface{}) *Bundle {
	return &Bundle{Kind: kind, Message: message, Data: data}
}

// Error implements error.
func (b *Bundle) Error() string {
	if b.Message == "" {
		return b.Kind.Error()
	}
	return b.Message + ": " + b.Kind.Error()
}

// Unwrap exposes the sentinel kind to errors.Is / errors.As.
func (b *Bundle) Unwrap() error {
	return b.Kind
}

// MultiError collects independent validation failures so all of them
// can be reported at once instead of failing fast on the first.
type MultiError struct {
	Errs []error
}

// Append adds one or more errors to the set.
func (me *MultiError) Append(errs ...error) {
	me.Errs = append(me.Errs, errs...)
}

// Empty reports whether no errors have been collected.
func (me *MultiError) Empty() bool {
	return len(me.Errs) == 0
}

// Error implements error.
func (me *MultiError) Error() string {
	msg := ""
	for _, err := range me.Errs {
		if msg == "" {
			msg = err.Error()
			continue
		}
		msg += "; " + err.Error()
	}
	return msg
}
