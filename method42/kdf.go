// Package method42 implements the per-counterparty field encryption and key
// derivation used by voicemail tokens.
//
// Key derivation formula:
//
//	aes_key = HKDF-SHA256(ECDH(D_self, P_counterparty).x, SHA256(invoice), "voicemail-field-encryption")
//
// where invoice = "<securityLevel>-<protocolName>-<keyID>" binds the key to one
// application channel. Locking keys use BRC-42 child derivation over the same
// invoice number (see derive.go).
package method42

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"golang.org/x/crypto/hkdf"
)

const (
	// HKDFInfo is the constant info string used in HKDF-SHA256 key derivation.
	HKDFInfo = "voicemail-field-encryption"

	// AESKeyLen is the length of the derived AES-256 key in bytes.
	AESKeyLen = 32

	maxProtocolNameLen = 400
)

// InvoiceNumber formats the BRC-43 invoice number for a protocol and key id.
// Protocol names are lower-cased and trimmed; they must be at least five
// characters and must not contain consecutive spaces.
func InvoiceNumber(securityLevel int, protocolName, keyID string) (string, error) {
	if securityLevel < 0 || securityLevel > 2 {
		return "", fmt.Errorf("%w: security level %d", ErrInvalidInvoice, securityLevel)
	}
	name := strings.ToLower(strings.TrimSpace(protocolName))
	if len(name) < 5 || len(name) > maxProtocolNameLen {
		return "", fmt.Errorf("%w: protocol name %q", ErrInvalidInvoice, protocolName)
	}
	if strings.Contains(name, "  ") {
		return "", fmt.Errorf("%w: protocol name %q has consecutive spaces", ErrInvalidInvoice, protocolName)
	}
	if keyID == "" || len(keyID) > 800 {
		return "", fmt.Errorf("%w: key id length %d", ErrInvalidInvoice, len(keyID))
	}
	return fmt.Sprintf("%d-%s-%s", securityLevel, name, keyID), nil
}

// DeriveAESKey derives a 32-byte AES-256 key using HKDF-SHA256.
//
// The HKDF parameters are:
//   - IKM  = sharedSecretX
//   - Salt = SHA256(invoice)
//   - Info = "voicemail-field-encryption"
//   - Len  = 32 (AES-256)
func DeriveAESKey(sharedSecretX []byte, invoice string) ([]byte, error) {
	if len(sharedSecretX) == 0 {
		return nil, fmt.Errorf("%w: shared secret is empty", ErrHKDFFailure)
	}
	if invoice == "" {
		return nil, fmt.Errorf("%w: invoice is empty", ErrHKDFFailure)
	}

	salt := sha256.Sum256([]byte(invoice))
	hkdfReader := hkdf.New(sha256.New, sharedSecretX, salt[:], []byte(HKDFInfo))
	key := make([]byte, AESKeyLen)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHKDFFailure, err)
	}
	return key, nil
}

// SymmetricKey derives the field key shared between privateKey's owner and
// the holder of counterparty. Both directions of a channel yield the same key.
func SymmetricKey(privateKey *ec.PrivateKey, counterparty *ec.PublicKey, invoice string) ([]byte, error) {
	shared, err := ECDH(privateKey, counterparty)
	if err != nil {
		return nil, err
	}
	return DeriveAESKey(shared, invoice)
}
