package method42

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

const (
	NonceLen  = 12
	GCMTagLen = 16

	// MinCiphertextLen is the sealed size of an empty field.
	MinCiphertextLen = NonceLen + GCMTagLen
)

// Encrypt seals a field for counterparty on the channel named by invoice.
// The result is nonce || ciphertext || tag with a fresh random nonce.
func Encrypt(plaintext []byte, priv *ec.PrivateKey, counterparty *ec.PublicKey, invoice string) ([]byte, error) {
	key, err := SymmetricKey(priv, counterparty, invoice)
	if err != nil {
		return nil, err
	}
	return Seal(plaintext, key)
}

// Decrypt opens a field sealed by Encrypt from either end of the channel.
func Decrypt(ciphertext []byte, priv *ec.PrivateKey, counterparty *ec.PublicKey, invoice string) ([]byte, error) {
	if len(ciphertext) < MinCiphertextLen {
		return nil, ErrInvalidCiphertext
	}
	key, err := SymmetricKey(priv, counterparty, invoice)
	if err != nil {
		return nil, err
	}
	return Open(ciphertext, key)
}

// Seal encrypts plaintext under a 32-byte key with AES-256-GCM.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	out := make([]byte, NonceLen, NonceLen+len(plaintext)+GCMTagLen)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrEncryptionFailed, err)
	}
	return aead.Seal(out, out, plaintext, nil), nil
}

// Open reverses Seal. Any authentication failure is ErrDecryptionFailed.
func Open(sealed, key []byte) ([]byte, error) {
	if len(sealed) < MinCiphertextLen {
		return nil, ErrInvalidCiphertext
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := aead.Open(nil, sealed[:NonceLen], sealed[NonceLen:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
