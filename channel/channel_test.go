package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/codec"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/ledger/ledgertest"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
)

var fixedNow = time.UnixMilli(1700000000123).UTC()

func pair(t *testing.T) (alice, bob *ledger.LocalWallet) {
	t.Helper()
	chain := ledger.NewMemChain()
	return ledgertest.NewWallet(t, chain, 0), ledgertest.NewWallet(t, chain, 0)
}

func identity(t *testing.T, w ledger.KeyWallet) token.Counterparty {
	t.Helper()
	pub, err := w.IdentityKey(context.Background())
	require.NoError(t, err)
	return token.Other(pub)
}

func TestVoicemail_RoundTripAcrossWallets(t *testing.T) {
	ctx := context.Background()
	alice, bob := pair(t)
	alicePub, _ := alice.IdentityKey(ctx)

	out := Voicemail(alice, nil)
	vf, err := out.EncryptVoicemail(ctx, alicePub, identity(t, bob), []byte("audio"), "hi bob", fixedNow)
	require.NoError(t, err)

	in := Voicemail(bob, nil)
	vm, err := in.DecryptVoicemail(ctx, vf, identity(t, alice))
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), vm.Audio)
	assert.Equal(t, "hi bob", vm.Message)
	assert.True(t, fixedNow.Equal(vm.Timestamp))
	assert.Equal(t, alicePub.Compressed(), vm.Sender.Compressed())
}

func TestVoicemail_EmptyMessageOmitted(t *testing.T) {
	ctx := context.Background()
	alice, _ := pair(t)
	pub, _ := alice.IdentityKey(ctx)
	ch := Voicemail(alice, nil)

	vf, err := ch.EncryptVoicemail(ctx, pub, token.Self(), []byte("a"), "", fixedNow)
	require.NoError(t, err)
	assert.Nil(t, vf.Message)
	assert.Len(t, vf.Fields(), 3)

	_, err = ch.EncryptVoicemail(ctx, pub, token.Self(), nil, "", fixedNow)
	assert.ErrorIs(t, err, token.ErrInvalidRequest)
	_, err = ch.EncryptVoicemail(ctx, nil, token.Self(), []byte("a"), "", fixedNow)
	assert.ErrorIs(t, err, token.ErrIdentityUnavailable)
}

func TestVoicemail_OptionalFieldFallbacks(t *testing.T) {
	ctx := context.Background()
	alice, _ := pair(t)
	pub, _ := alice.IdentityKey(ctx)
	ch := Voicemail(alice, nil)
	ch.Now = func() time.Time { return fixedNow }

	vf, err := ch.EncryptVoicemail(ctx, pub, token.Self(), []byte("a"), "msg", time.UnixMilli(5))
	require.NoError(t, err)
	vf.Timestamp = []byte("garbage")
	vf.Message = []byte("garbage")

	vm, err := ch.DecryptVoicemail(ctx, vf, token.Self())
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(vm.Timestamp), "undecryptable timestamp falls back to now")
	assert.Empty(t, vm.Message)

	vf.Audio = []byte("garbage")
	_, err = ch.DecryptVoicemail(ctx, vf, token.Self())
	assert.ErrorIs(t, err, token.ErrDecryptRequired)
	assert.True(t, IsDecryptFailure(err))
}

func TestVoicemail_WrongCounterpartyFails(t *testing.T) {
	ctx := context.Background()
	alice, bob := pair(t)
	pub, _ := alice.IdentityKey(ctx)
	vf, err := Voicemail(alice, nil).EncryptVoicemail(ctx, pub, identity(t, bob), []byte("a"), "", fixedNow)
	require.NoError(t, err)

	_, err = Voicemail(bob, nil).DecryptVoicemail(ctx, vf, token.Self())
	assert.ErrorIs(t, err, token.ErrDecryptRequired)
	_, err = Contacts(bob, nil).DecryptVoicemail(ctx, vf, identity(t, alice))
	assert.ErrorIs(t, err, token.ErrDecryptRequired, "contacts channel cannot read voicemail fields")
}

func TestContact_RoundTrip(t *testing.T) {
	ctx := context.Background()
	alice, bob := pair(t)
	bobPub, _ := bob.IdentityKey(ctx)
	ch := Contacts(alice, nil)

	cf, err := ch.EncryptContact(ctx, "Bob", bobPub, fixedNow)
	require.NoError(t, err)
	c, err := ch.DecryptContact(ctx, cf)
	require.NoError(t, err)
	assert.Equal(t, "Bob", c.Name)
	assert.Equal(t, bobPub.Compressed(), c.IdentityKey.Compressed())
	assert.True(t, fixedNow.Equal(c.AddedAt))

	_, err = Contacts(bob, nil).DecryptContact(ctx, cf)
	assert.ErrorIs(t, err, token.ErrDecryptRequired)

	_, err = ch.EncryptContact(ctx, "", bobPub, fixedNow)
	assert.ErrorIs(t, err, token.ErrInvalidRequest)
}

func TestUnlockProof(t *testing.T) {
	ctx := context.Background()
	alice, bob := pair(t)
	alicePub, _ := alice.IdentityKey(ctx)
	sender := Voicemail(alice, nil)

	vf, err := sender.EncryptVoicemail(ctx, alicePub, identity(t, bob), []byte("a"), "", fixedNow)
	require.NoError(t, err)
	lock, err := sender.Lock(ctx, identity(t, bob), vf.Fields())
	require.NoError(t, err)

	d, err := codec.Decode(*lock)
	require.NoError(t, err)
	want, err := sender.LockKey(ctx, identity(t, bob))
	require.NoError(t, err)
	assert.Equal(t, want.Compressed(), d.LockingKey.Compressed())

	hash := make([]byte, 32)
	hash[0] = 7

	recipient := Voicemail(bob, nil)
	unlock, err := recipient.UnlockProof(ctx, identity(t, alice), *lock, hash)
	require.NoError(t, err)
	chunks, err := unlock.Chunks()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Greater(t, len(chunks[0].Data), tx.SignatureUnlockLen-20)

	_, err = recipient.UnlockProof(ctx, token.Self(), *lock, hash)
	assert.ErrorIs(t, err, token.ErrUnlockAuthorization)

	// The sender cannot unlock a token it addressed to somebody else.
	_, err = sender.UnlockProof(ctx, identity(t, bob), *lock, hash)
	assert.ErrorIs(t, err, token.ErrUnlockAuthorization)

	_, err = recipient.UnlockProof(ctx, identity(t, alice), []byte{0x51}, hash)
	assert.ErrorIs(t, err, token.ErrDecodeCorruption)
}
