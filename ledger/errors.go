package ledger

import "errors"

// Sentinel errors returned by the ledger. Callers match with errors.Is and map
// them to HTTP status codes at the controller boundary.
var (
	// ErrInvalidBundle is returned when a purchase names an unknown or inactive bundle.
	ErrInvalidBundle = errors.New("token bundle not found or inactive")

	// ErrInsufficientBalance is returned when a debit would drive a balance below zero.
	// The wallet is left untouched; there are no partial debits.
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrUnknownReference is returned when a settlement names an external
	// reference with no matching transaction.
	ErrUnknownReference = errors.New("unknown payment reference")

	// ErrRecipientNotFound is returned when a transfer recipient cannot be resolved.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrSelfTransfer is returned when a transfer names the sender as recipient.
	ErrSelfTransfer = errors.New("cannot transfer tokens to yourself")

	// ErrAuthentication is returned when a webhook signature does not verify.
	ErrAuthentication = errors.New("signature verification failed")

	// ErrConflict is returned when an idempotency key already exists.
	ErrConflict = errors.New("duplicate idempotency key")

	// ErrInvalidTransition is returned for a status change the state machine
	// forbids, such as refunding anything but a completed transaction.
	ErrInvalidTransition = errors.New("illegal status transition")

	// ErrNotFound is returned for unknown wallet or transaction ids.
	ErrNotFound = errors.New("record not found")

	// ErrStorage wraps transient persistence failures. Callers may retry with backoff.
	ErrStorage = errors.New("storage failure")
)

// Retryable reports whether the error is a transient storage failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
