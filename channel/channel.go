// Package channel binds a wallet to one (protocol, key id) pair and does the
// per-counterparty work on top of it: field encryption, token locks and
// unlock proofs. The voicemail and contacts channels never share keys.
package channel

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libvoicemail-go/codec"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
)

// Channel is a key channel of a wallet.
type Channel struct {
	Protocol token.Protocol
	KeyID    string
	Wallet   ledger.KeyWallet
	Log      logging.Logger
	Now      func() time.Time
}

// Voicemail returns the voicemail channel of w.
func Voicemail(w ledger.KeyWallet, log logging.Logger) *Channel {
	return newChannel(token.VoicemailProtocol, w, log)
}

// Contacts returns the contacts channel of w.
func Contacts(w ledger.KeyWallet, log logging.Logger) *Channel {
	return newChannel(token.ContactsProtocol, w, log)
}

func newChannel(p token.Protocol, w ledger.KeyWallet, log logging.Logger) *Channel {
	return &Channel{
		Protocol: p,
		KeyID:    token.DefaultKeyID,
		Wallet:   w,
		Log:      logging.OrNop(log).With("channel", p.Name),
		Now:      time.Now,
	}
}

func (c *Channel) args(cp token.Counterparty) token.KeyArgs {
	return token.KeyArgs{Protocol: c.Protocol, KeyID: c.KeyID, Counterparty: cp}
}

func (c *Channel) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// EncryptFor encrypts plaintext for cp.
func (c *Channel) EncryptFor(ctx context.Context, cp token.Counterparty, plaintext []byte) ([]byte, error) {
	ct, err := c.Wallet.Encrypt(ctx, c.args(cp), plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrEncryptionFailure, err)
	}
	return ct, nil
}

// DecryptFor decrypts a ciphertext produced by cp (or by this wallet for cp).
func (c *Channel) DecryptFor(ctx context.Context, cp token.Counterparty, ciphertext []byte) ([]byte, error) {
	return c.Wallet.Decrypt(ctx, c.args(cp), ciphertext)
}

// LockKey returns the key a token for cp is locked to: the key cp can sign for.
func (c *Channel) LockKey(ctx context.Context, cp token.Counterparty) (*ec.PublicKey, error) {
	return c.Wallet.DerivePublicKey(ctx, c.args(cp), false)
}

// Lock builds the locking script of a token for cp carrying fields.
func (c *Channel) Lock(ctx context.Context, cp token.Counterparty, fields [][]byte) (*script.Script, error) {
	return codec.Encode(ctx, c.Wallet, fields, c.args(cp), false)
}

// UnlockProof signs sighash for a token locked with lockingScript. cp must
// be the counterparty the lock was made with: the sender for received
// tokens, Self for self-addressed and contact tokens. A mismatch fails with
// token.ErrUnlockAuthorization before anything is signed.
func (c *Channel) UnlockProof(ctx context.Context, cp token.Counterparty, lockingScript, sighash []byte) (*script.Script, error) {
	d, err := codec.Decode(lockingScript)
	if err != nil {
		return nil, err
	}
	mine, err := c.Wallet.DerivePublicKey(ctx, c.args(cp), true)
	if err != nil {
		return nil, fmt.Errorf("%w: derive signing key: %w", token.ErrUnlockAuthorization, err)
	}
	if !bytes.Equal(mine.Compressed(), d.LockingKey.Compressed()) {
		return nil, fmt.Errorf("%w: counterparty %s does not match the lock", token.ErrUnlockAuthorization, cp)
	}
	sig, err := c.Wallet.CreateSignature(ctx, c.args(cp), sighash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrUnlockAuthorization, err)
	}
	unlock, err := tx.SignatureUnlock(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrUnlockAuthorization, err)
	}
	return unlock, nil
}
