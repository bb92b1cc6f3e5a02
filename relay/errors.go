package relay

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libvoicemail-go/token"
)

var (
	// ErrUnavailable indicates the relay could not be reached or failed
	// server-side. It wraps token.ErrRelayUnavailable.
	ErrUnavailable = fmt.Errorf("relay: unavailable: %w", token.ErrRelayUnavailable)

	// ErrRejected indicates the relay refused a request as invalid.
	ErrRejected = errors.New("relay: request rejected")

	// ErrInvalidIdentity indicates a missing or malformed identity key.
	ErrInvalidIdentity = errors.New("relay: invalid identity key")

	// ErrInvalidMessage indicates a notification without recipient, box or reference.
	ErrInvalidMessage = errors.New("relay: invalid message")
)
