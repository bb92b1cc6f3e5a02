package method42

import "errors"

var (
	// ErrNilPrivateKey indicates a nil private key was provided.
	ErrNilPrivateKey = errors.New("method42: private key is nil")

	// ErrNilPublicKey indicates a nil public key was provided.
	ErrNilPublicKey = errors.New("method42: public key is nil")

	// ErrInvalidCiphertext indicates the ciphertext is too short or malformed.
	// Minimum length: 12 (nonce) + 16 (GCM tag) = 28 bytes.
	ErrInvalidCiphertext = errors.New("method42: invalid ciphertext")

	// ErrDecryptionFailed indicates AES-GCM authentication failed during decryption.
	ErrDecryptionFailed = errors.New("method42: decryption failed")

	// ErrEncryptionFailed indicates the AES-GCM cipher could not seal the plaintext.
	ErrEncryptionFailed = errors.New("method42: encryption failed")

	// ErrHKDFFailure indicates HKDF key derivation failed.
	ErrHKDFFailure = errors.New("method42: HKDF key derivation failed")

	// ErrInvalidInvoice indicates a protocol name or key id that cannot form an invoice number.
	ErrInvalidInvoice = errors.New("method42: invalid invoice number")

	// ErrChildDerivation indicates BRC-42 child key derivation failed.
	ErrChildDerivation = errors.New("method42: child key derivation failed")
)
