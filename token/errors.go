package token

import (
	"errors"
	"fmt"
)

var (
	// ErrDecodeCorruption indicates a locking script whose field layout is malformed.
	// Recovered locally: the output is dropped and logged.
	ErrDecodeCorruption = errors.New("token: corrupt field layout")

	// ErrDecryptOptional indicates an optional field (timestamp, message) failed to decrypt.
	// Recovered locally: a default is substituted.
	ErrDecryptOptional = errors.New("token: optional field decryption failed")

	// ErrDecryptRequired indicates a required field failed to decrypt. The token is dropped.
	ErrDecryptRequired = errors.New("token: required field decryption failed")

	// ErrStaleReference indicates the backing transaction is missing from the
	// wallet's transaction bundle. Refresh and retry.
	ErrStaleReference = errors.New("token: stale reference (refresh and retry)")

	// ErrUnlockAuthorization indicates the unlock proof could not be produced or
	// was rejected (wrong counterparty or signature mismatch).
	ErrUnlockAuthorization = errors.New("token: unlock authorization failed")

	// ErrRelayUnavailable indicates the mailbox relay could not be reached.
	ErrRelayUnavailable = errors.New("token: relay unavailable")

	// ErrConstructionFailure indicates the transaction could not be built.
	// Nothing was broadcast; safe to retry from scratch.
	ErrConstructionFailure = errors.New("token: transaction construction failed")

	// ErrIdentityUnavailable indicates the wallet's identity key could not be retrieved.
	ErrIdentityUnavailable = errors.New("token: identity key unavailable")

	// ErrEncryptionFailure indicates a field could not be encrypted.
	ErrEncryptionFailure = errors.New("token: encryption failed")

	// ErrRedemptionInFlight indicates a redemption for the same outpoint is already running.
	ErrRedemptionInFlight = errors.New("token: redemption already in flight")

	// ErrNotFound indicates no tracked token matches the outpoint.
	ErrNotFound = errors.New("token: not found")

	// ErrInvalidRequest indicates the caller supplied inconsistent parameters.
	ErrInvalidRequest = errors.New("token: invalid request")
)

// Error carries the kind of failure together with the token or notification
// it concerns. Kind is tested with errors.Is against the sentinels above.
type Error struct {
	Op             string
	Outpoint       Outpoint
	NotificationID string
	Err            error
}

// Wrap returns an *Error for op on outpoint. kind is one of the package
// sentinels; cause may be nil.
func Wrap(op string, outpoint Outpoint, kind, cause error) *Error {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &Error{Op: op, Outpoint: outpoint, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.NotificationID != "":
		return fmt.Sprintf("%s notification %s: %v", e.Op, e.NotificationID, e.Err)
	case !e.Outpoint.IsZero():
		return fmt.Sprintf("%s %s: %v", e.Op, e.Outpoint, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
