package method42

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

const testInvoice = "2-voicemail-1"

// --- Helper functions ---

func generateKeyPair(t *testing.T) (*ec.PrivateKey, *ec.PublicKey) {
	t.Helper()
	privKey, err := ec.NewPrivateKey()
	require.NoError(t, err)
	pubKey := privKey.PubKey()
	require.NotNil(t, pubKey)
	return privKey, pubKey
}

// --- InvoiceNumber tests ---

func TestInvoiceNumber(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		proto   string
		keyID   string
		want    string
		wantErr bool
	}{
		{"voicemail channel", 2, "voicemail", "1", "2-voicemail-1", false},
		{"contacts channel", 2, "voicemail contacts", "1", "2-voicemail contacts-1", false},
		{"normalizes case and whitespace", 1, "  VoiceMail ", "7", "1-voicemail-7", false},
		{"short name", 2, "vm", "1", "", true},
		{"double space", 2, "voice  mail", "1", "", true},
		{"bad level", 3, "voicemail", "1", "", true},
		{"empty key id", 2, "voicemail", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InvoiceNumber(tt.level, tt.proto, tt.keyID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInvoice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// --- ECDH tests ---

func TestECDH(t *testing.T) {
	privKey, pubKey := generateKeyPair(t)

	shared, err := ECDH(privKey, pubKey)
	require.NoError(t, err)
	assert.Len(t, shared, 32, "shared secret should be 32 bytes")
}

func TestECDH_Symmetry(t *testing.T) {
	// ECDH(D_a, P_b) == ECDH(D_b, P_a)
	privA, pubA := generateKeyPair(t)
	privB, pubB := generateKeyPair(t)

	sharedAB, err := ECDH(privA, pubB)
	require.NoError(t, err)
	sharedBA, err := ECDH(privB, pubA)
	require.NoError(t, err)
	assert.Equal(t, sharedAB, sharedBA, "ECDH should be symmetric")
}

func TestECDH_NilKeys(t *testing.T) {
	privKey, pubKey := generateKeyPair(t)

	_, err := ECDH(nil, pubKey)
	assert.ErrorIs(t, err, ErrNilPrivateKey)
	_, err = ECDH(privKey, nil)
	assert.ErrorIs(t, err, ErrNilPublicKey)
}

// --- DeriveAESKey tests ---

func TestDeriveAESKey(t *testing.T) {
	shared := bytes.Repeat([]byte{0x42}, 32)
	key, err := DeriveAESKey(shared, testInvoice)
	require.NoError(t, err)
	assert.Len(t, key, AESKeyLen)

	// Verify against a direct HKDF computation.
	salt := sha256.Sum256([]byte(testInvoice))
	expected := make([]byte, AESKeyLen)
	_, err = io.ReadFull(hkdf.New(sha256.New, shared, salt[:], []byte(HKDFInfo)), expected)
	require.NoError(t, err)
	assert.Equal(t, expected, key)
}

func TestDeriveAESKey_InvoiceSeparatesChannels(t *testing.T) {
	shared := bytes.Repeat([]byte{0x42}, 32)
	k1, err := DeriveAESKey(shared, "2-voicemail-1")
	require.NoError(t, err)
	k2, err := DeriveAESKey(shared, "2-voicemail contacts-1")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestDeriveAESKey_InvalidInput(t *testing.T) {
	_, err := DeriveAESKey(nil, testInvoice)
	assert.ErrorIs(t, err, ErrHKDFFailure)
	_, err = DeriveAESKey(bytes.Repeat([]byte{1}, 32), "")
	assert.ErrorIs(t, err, ErrHKDFFailure)
}

func TestSymmetricKey_BothDirections(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	privB, pubB := generateKeyPair(t)

	kAB, err := SymmetricKey(privA, pubB, testInvoice)
	require.NoError(t, err)
	kBA, err := SymmetricKey(privB, pubA, testInvoice)
	require.NoError(t, err)
	assert.Equal(t, kAB, kBA)

	kSelf, err := SymmetricKey(privA, pubA, testInvoice)
	require.NoError(t, err)
	assert.NotEqual(t, kAB, kSelf, "self key must differ from the shared key")
}

// --- Encrypt / Decrypt tests ---

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	privB, pubB := generateKeyPair(t)
	plaintext := []byte("hello voicemail")

	ct, err := Encrypt(plaintext, privA, pubB, testInvoice)
	require.NoError(t, err)
	assert.Len(t, ct, len(plaintext)+MinCiphertextLen)

	got, err := Decrypt(ct, privB, pubA, testInvoice)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	// The sender can read what it sent.
	got, err = Decrypt(ct, privA, pubB, testInvoice)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_DifferentNonces(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	c1, err := Encrypt([]byte("same"), privA, pubA, testInvoice)
	require.NoError(t, err)
	c2, err := Encrypt([]byte("same"), privA, pubA, testInvoice)
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestDecrypt_WrongCounterparty(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	_, pubB := generateKeyPair(t)
	privC, _ := generateKeyPair(t)

	ct, err := Encrypt([]byte("secret"), privA, pubB, testInvoice)
	require.NoError(t, err)

	_, err = Decrypt(ct, privC, pubA, testInvoice)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	// Self-decryption of a field encrypted for another identity fails too.
	_, err = Decrypt(ct, privA, pubA, testInvoice)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_WrongInvoice(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	ct, err := Encrypt([]byte("secret"), privA, pubA, "2-voicemail-1")
	require.NoError(t, err)
	_, err = Decrypt(ct, privA, pubA, "2-voicemail contacts-1")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_Tampered(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	ct, err := Encrypt([]byte("secret"), privA, pubA, testInvoice)
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0xff
	_, err = Decrypt(ct, privA, pubA, testInvoice)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_TooShort(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	_, err := Decrypt(make([]byte, MinCiphertextLen-1), privA, pubA, testInvoice)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	ct, err := Encrypt(nil, privA, pubA, testInvoice)
	require.NoError(t, err)
	assert.Len(t, ct, MinCiphertextLen)
	got, err := Decrypt(ct, privA, pubA, testInvoice)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// --- Child key derivation tests ---

func TestChildKeys_Match(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	privB, pubB := generateKeyPair(t)

	// A locks for B; B derives the matching private key.
	lockPub, err := ChildPublicKey(privA, pubB, testInvoice)
	require.NoError(t, err)
	unlockPriv, err := ChildPrivateKey(privB, pubA, testInvoice)
	require.NoError(t, err)
	assert.Equal(t, lockPub.Compressed(), unlockPriv.PubKey().Compressed())

	// Using self as counterparty on B's side does not match.
	wrong, err := ChildPrivateKey(privB, pubB, testInvoice)
	require.NoError(t, err)
	assert.NotEqual(t, lockPub.Compressed(), wrong.PubKey().Compressed())
}

func TestChildKeys_Self(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	lockPub, err := ChildPublicKey(privA, pubA, testInvoice)
	require.NoError(t, err)
	unlockPriv, err := ChildPrivateKey(privA, pubA, testInvoice)
	require.NoError(t, err)
	assert.Equal(t, lockPub.Compressed(), unlockPriv.PubKey().Compressed())
}

func TestChildKeys_NilKeys(t *testing.T) {
	privA, pubA := generateKeyPair(t)
	_, err := ChildPublicKey(nil, pubA, testInvoice)
	assert.ErrorIs(t, err, ErrNilPrivateKey)
	_, err = ChildPrivateKey(privA, nil, testInvoice)
	assert.ErrorIs(t, err, ErrNilPublicKey)
}
