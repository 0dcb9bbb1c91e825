package ledger

import "errors"

// Operation outcomes callers are expected to branch on. The HTTP layer
// maps each of these to a status code with errors.Is.
var (
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrAdminExists         = errors.New("address is already an admin")
	ErrAdminNotFound       = errors.New("address is not an admin")
	ErrInvalidUser         = errors.New("custody account cannot hold an earmarked balance")
	ErrZeroAddress         = errors.New("zero address is not allowed")
	ErrNotPayable          = errors.New("native currency is not accepted")
	ErrNegativeAmount      = errors.New("amount cannot be negative")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientExcess  = errors.New("withdrawal exceeds unearmarked holdings")
)
