package token

import (
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Counterparty is the identity a field is encrypted for and an output is
// locked for. Self means the wallet's own identity key.
type Counterparty struct {
	Self bool
	Key  *ec.PublicKey
}

// Self returns the self counterparty.
func Self() Counterparty { return Counterparty{Self: true} }

// Other returns a counterparty for another identity key.
func Other(key *ec.PublicKey) Counterparty { return Counterparty{Key: key} }

// IsZero reports whether c names no counterparty at all.
func (c Counterparty) IsZero() bool { return !c.Self && c.Key == nil }

// Resolve returns the public key the counterparty stands for, substituting
// own for Self.
func (c Counterparty) Resolve(own *ec.PublicKey) (*ec.PublicKey, error) {
	if c.Self {
		if own == nil {
			return nil, fmt.Errorf("%w: own identity key is nil", ErrIdentityUnavailable)
		}
		return own, nil
	}
	if c.Key == nil {
		return nil, fmt.Errorf("%w: counterparty key is nil", ErrInvalidRequest)
	}
	return c.Key, nil
}

// Equal reports whether c and o name the same counterparty.
func (c Counterparty) Equal(o Counterparty) bool {
	if c.Self || o.Self {
		return c.Self == o.Self
	}
	if c.Key == nil || o.Key == nil {
		return c.Key == o.Key
	}
	return hex.EncodeToString(c.Key.Compressed()) == hex.EncodeToString(o.Key.Compressed())
}

func (c Counterparty) String() string {
	switch {
	case c.Self:
		return "self"
	case c.Key == nil:
		return "<none>"
	default:
		return hex.EncodeToString(c.Key.Compressed())
	}
}

// ParseCounterpartyTag extracts the identity key from a "counterparty:<hex>" tag.
func ParseCounterpartyTag(tag string) (*ec.PublicKey, bool) {
	if !strings.HasPrefix(tag, TagCounterpartyPrefix) {
		return nil, false
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(tag, TagCounterpartyPrefix))
	if err != nil {
		return nil, false
	}
	pub, err := ec.PublicKeyFromBytes(raw)
	if err != nil {
		return nil, false
	}
	return pub, true
}

// Protocol identifies an application channel for key derivation.
type Protocol struct {
	SecurityLevel int
	Name          string
}

// Channels used by the voicemail application. They are never mixed.
var (
	VoicemailProtocol = Protocol{SecurityLevel: 2, Name: "voicemail"}
	ContactsProtocol  = Protocol{SecurityLevel: 2, Name: "voicemail contacts"}
)

// DefaultKeyID is the key identifier used on both channels.
const DefaultKeyID = "1"

// KeyArgs names a derived key: the channel, the key id within it and the
// counterparty.
type KeyArgs struct {
	Protocol     Protocol
	KeyID        string
	Counterparty Counterparty
}
