// Package relay is the store-and-forward mailbox that carries voicemail
// notifications between identities. Notifications are hints only: the token
// itself lives on chain, and a lost notification loses nothing but the
// shortcut.
//
// Relay is the client view of one identity. Local serves it straight from a
// Mailbox, Client talks to a mailboxd Server over HTTP.
package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/google/uuid"
)

// BoxVoicemail is the message box voicemail notifications are published to.
const BoxVoicemail = "voicemail_inbox"

// Notification is a relay-delivered pointer to a token. Sender and Recipient
// are hex-encoded compressed identity keys; Payload is opaque to the relay.
type Notification struct {
	ID          string    `json:"messageId"`
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	MessageBox  string    `json:"messageBox"`
	ReferenceID string    `json:"referenceId"`
	Payload     []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Relay is a mailbox relay as seen by one identity.
type Relay interface {
	// Publish delivers a notification to recipient's box and returns its id.
	Publish(ctx context.Context, recipient *ec.PublicKey, box, referenceID string, payload []byte) (string, error)

	// Poll returns the unacknowledged notifications in the caller's box, oldest first.
	Poll(ctx context.Context, box string) ([]*Notification, error)

	// Acknowledge removes ids from the caller's mailbox. Unknown ids are ignored.
	Acknowledge(ctx context.Context, ids []string) error
}

// IdentityHex returns the canonical relay form of an identity key. key must
// not be nil.
func IdentityHex(key *ec.PublicKey) string {
	return hex.EncodeToString(key.Compressed())
}

// ParseIdentity parses a hex-encoded compressed identity key and returns it
// together with its canonical form.
func ParseIdentity(s string) (*ec.PublicKey, string, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	key, err := ec.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if curve := ec.S256(); key.X.Cmp(curve.P) >= 0 || !curve.IsOnCurve(key.X, key.Y) {
		return nil, "", fmt.Errorf("%w: point out of range", ErrInvalidIdentity)
	}
	return key, IdentityHex(key), nil
}

// newNotification validates a publish request and assigns it an id.
func newNotification(sender, recipient, box, referenceID string, payload []byte, now time.Time) (*Notification, error) {
	if box == "" || referenceID == "" {
		return nil, fmt.Errorf("%w: message box and reference id are required", ErrInvalidMessage)
	}
	_, canonical, err := ParseIdentity(recipient)
	if err != nil {
		return nil, err
	}
	return &Notification{
		ID:          uuid.NewString(),
		Sender:      sender,
		Recipient:   canonical,
		MessageBox:  box,
		ReferenceID: referenceID,
		Payload:     slices.Clone(payload),
		CreatedAt:   now.UTC(),
	}, nil
}

// Local is a Relay served directly from a Mailbox, for tests and for
// single-host setups.
type Local struct {
	mb       Mailbox
	identity string
	Now      func() time.Time
}

// Compile-time interface check.
var _ Relay = (*Local)(nil)

// NewLocal returns the view of identity on mb.
func NewLocal(mb Mailbox, identity *ec.PublicKey) (*Local, error) {
	if identity == nil {
		return nil, fmt.Errorf("%w: nil identity", ErrInvalidIdentity)
	}
	return &Local{mb: mb, identity: IdentityHex(identity), Now: time.Now}, nil
}

// Publish delivers a notification.
func (l *Local) Publish(ctx context.Context, recipient *ec.PublicKey, box, referenceID string, payload []byte) (string, error) {
	if recipient == nil {
		return "", fmt.Errorf("%w: recipient", ErrInvalidIdentity)
	}
	n, err := newNotification(l.identity, IdentityHex(recipient), box, referenceID, payload, l.Now())
	if err != nil {
		return "", err
	}
	if err := l.mb.Put(n); err != nil {
		return "", err
	}
	return n.ID, nil
}

// Poll lists the box.
func (l *Local) Poll(ctx context.Context, box string) ([]*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.mb.List(l.identity, box)
}

// Acknowledge removes ids.
func (l *Local) Acknowledge(ctx context.Context, ids []string) error {
	_, err := l.mb.Ack(l.identity, ids)
	return err
}
