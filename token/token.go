// Package token defines the data model shared by the voicemail packages:
// tokens (spendable, data-bearing outputs), outpoints, baskets, counterparties
// and the error taxonomy used across the send, sync and redeem flows.
package token

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Basket is a named local grouping of wallet outputs.
type Basket string

const (
	// BasketImport holds internalized outputs that have not been decoded yet.
	BasketImport Basket = "inbox-import"
	// BasketInbox holds decoded voicemails received from other identities.
	BasketInbox Basket = "inbox"
	// BasketSent holds voicemails sent to other identities.
	BasketSent Basket = "sent"
	// BasketSelf holds self-addressed voicemails.
	BasketSelf Basket = "self"
	// BasketContacts holds encrypted contact entries.
	BasketContacts Basket = "contacts"
	// BasketDefault holds the wallet's plain funding outputs.
	BasketDefault Basket = "default"
)

// Output tags recorded by the wallet alongside token outputs.
const (
	// TagSelfAddressed marks an output locked and encrypted for the owner.
	TagSelfAddressed = "self-addressed"
	// TagCounterpartyPrefix prefixes the hex identity key an output was encrypted for.
	TagCounterpartyPrefix = "counterparty:"
)

// CounterpartyTag returns the tag recording key as an output's counterparty.
func CounterpartyTag(key *ec.PublicKey) string {
	return TagCounterpartyPrefix + hex.EncodeToString(key.Compressed())
}

// State is the lifecycle position of a token.
type State int

const (
	StateDraft State = iota
	StateBuilt
	StateBroadcast
	StateActive
	StateSpendRequested
	StateSpent
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateBuilt:
		return "built"
	case StateBroadcast:
		return "broadcast"
	case StateActive:
		return "active"
	case StateSpendRequested:
		return "spend-requested"
	case StateSpent:
		return "spent"
	default:
		return "unknown"
	}
}

// Outpoint identifies a transaction output.
type Outpoint struct {
	TxID  string // display-order hex
	Index uint32
}

// String returns "txid.index".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s.%d", o.TxID, o.Index)
}

// IsZero reports whether o is the zero value.
func (o Outpoint) IsZero() bool { return o.TxID == "" && o.Index == 0 }

// ParseOutpoint parses "txid.index" (also accepts "txid:index").
func ParseOutpoint(s string) (Outpoint, error) {
	sep := strings.LastIndexAny(s, ".:")
	if sep <= 0 {
		return Outpoint{}, fmt.Errorf("%w: outpoint %q", ErrInvalidRequest, s)
	}
	txid := s[:sep]
	if b, err := hex.DecodeString(txid); err != nil || len(b) != 32 {
		return Outpoint{}, fmt.Errorf("%w: outpoint txid %q", ErrInvalidRequest, txid)
	}
	idx, err := strconv.ParseUint(s[sep+1:], 10, 32)
	if err != nil {
		return Outpoint{}, fmt.Errorf("%w: outpoint index: %v", ErrInvalidRequest, err)
	}
	return Outpoint{TxID: strings.ToLower(txid), Index: uint32(idx)}, nil
}

// Voicemail is the decrypted content of a voicemail token.
type Voicemail struct {
	Sender    *ec.PublicKey
	Audio     []byte
	Timestamp time.Time
	Message   string
}

// Contact is the decrypted content of a contacts token.
type Contact struct {
	Name        string
	IdentityKey *ec.PublicKey
	AddedAt     time.Time
}

// Token is a single spendable, data-bearing ledger output.
type Token struct {
	Outpoint      Outpoint
	Satoshis      uint64
	LockingScript []byte
	Counterparty  Counterparty
	Basket        Basket
	SelfAddressed bool
	State         State

	// Decoded content; exactly one is set once decoding succeeded.
	Voicemail *Voicemail
	Contact   *Contact
}

// Time returns the token's content timestamp, used for sorting.
func (t *Token) Time() time.Time {
	switch {
	case t.Voicemail != nil:
		return t.Voicemail.Timestamp
	case t.Contact != nil:
		return t.Contact.AddedAt
	default:
		return time.Time{}
	}
}
