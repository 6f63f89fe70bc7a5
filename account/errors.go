package account

import "errors"

var (
	// ErrInsufficientBalance rejects an operation whose amount exceeds the
	// account's available balance. No state is mutated.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrNotFound means the account ID is unknown to this ledger.
	ErrNotFound = errors.New("account not found")
)

// ValidationError rejects malformed input (non-positive amount, unsupported
// method, ...) before any state is touched.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Msg
}
