package paymail

import (
	"encoding/hex"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// AddressType identifies how a recipient address is resolved.
type AddressType int

const (
	// AddressPaymail is alias@domain, resolved through the Paymail PKI capability.
	AddressPaymail AddressType = iota
	// AddressDNS is a bare domain, resolved through a _voicemail TXT record.
	AddressDNS
	// AddressPubKey is a hex compressed public key, used as is.
	AddressPubKey
)

// String returns a human-readable name for the address type.
func (t AddressType) String() string {
	switch t {
	case AddressPaymail:
		return "Paymail"
	case AddressDNS:
		return "DNS"
	case AddressPubKey:
		return "PubKey"
	default:
		return "Unknown"
	}
}

// Address is a parsed recipient address.
type Address struct {
	Type   AddressType
	Alias  string // Paymail only
	Domain string // Paymail and DNS
	PubKey *ec.PublicKey
	Raw    string
}

// ParseAddress classifies s as a paymail handle, a public key or a domain.
// Aliases and domains are lowercased.
func ParseAddress(s string) (*Address, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	if strings.ContainsAny(s, " \t/?#:") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}

	if alias, domain, ok := strings.Cut(s, "@"); ok {
		if alias == "" || !validDomain(domain) || strings.Contains(domain, "@") {
			return nil, fmt.Errorf("%w: malformed paymail %q", ErrInvalidAddress, raw)
		}
		return &Address{
			Type:   AddressPaymail,
			Alias:  strings.ToLower(alias),
			Domain: strings.ToLower(domain),
			Raw:    raw,
		}, nil
	}

	if isPubKeyHex(s) {
		pub, err := parsePubKeyHex(s)
		if err != nil {
			return nil, err
		}
		return &Address{Type: AddressPubKey, PubKey: pub, Raw: raw}, nil
	}

	if !validDomain(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return &Address{Type: AddressDNS, Domain: strings.ToLower(s), Raw: raw}, nil
}

// validDomain accepts dotted labels of letters, digits and hyphens.
func validDomain(d string) bool {
	if len(d) < 3 || len(d) > 253 || !strings.Contains(d, ".") {
		return false
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
	}
	return true
}

// isPubKeyHex reports whether s looks like a 66-char compressed key.
func isPubKeyHex(s string) bool {
	if len(s) != 66 || (s[:2] != "02" && s[:2] != "03") {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// parsePubKeyHex decodes and validates a hex compressed public key.
func parsePubKeyHex(s string) (*ec.PublicKey, error) {
	if len(s) != 66 {
		return nil, fmt.Errorf("%w: expected 66 hex chars, got %d", ErrInvalidPubKey, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	if b[0] != 0x02 && b[0] != 0x03 {
		return nil, fmt.Errorf("%w: prefix 0x%02x", ErrInvalidPubKey, b[0])
	}
	pub, err := ec.PublicKeyFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}
	// The point parser reduces x modulo p, so x >= p would alias a valid key.
	curve := ec.S256()
	if pub.X.Cmp(curve.P) >= 0 || !curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("%w: x coordinate out of range", ErrInvalidPubKey)
	}
	return pub, nil
}
