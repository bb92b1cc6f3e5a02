package voicemail_test

import (
	"context"
	"errors"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/ledger/ledgertest"
	"github.com/bitfsorg/libvoicemail-go/lifecycle"
	"github.com/bitfsorg/libvoicemail-go/relay"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/voicemail"
)

// staticResolver maps addresses to keys.
type staticResolver map[string]*ec.PublicKey

func (r staticResolver) Resolve(_ context.Context, addr string) (*ec.PublicKey, error) {
	if k, ok := r[addr]; ok {
		return k, nil
	}
	return nil, errors.New("unknown address")
}

type user struct {
	svc   *voicemail.Service
	id    *ec.PublicKey
	relay *relay.Local
}

func newUser(t *testing.T, chain *ledger.MemChain, mb relay.Mailbox, fund uint64, res voicemail.Resolver) *user {
	t.Helper()
	w := ledgertest.NewWallet(t, chain, fund)
	id, err := w.IdentityKey(context.Background())
	require.NoError(t, err)
	r, err := relay.NewLocal(mb, id)
	require.NoError(t, err)
	svc, err := voicemail.New(voicemail.Config{
		Wallet:   w,
		Relay:    r,
		Acks:     store.NewMemStore(),
		Resolver: res,
	})
	require.NoError(t, err)
	return &user{svc: svc, id: id, relay: r}
}

func TestNew_Validation(t *testing.T) {
	_, err := voicemail.New(voicemail.Config{})
	assert.ErrorIs(t, err, token.ErrInvalidRequest)

	w := ledgertest.NewWallet(t, ledger.NewMemChain(), 0)
	id, err := w.IdentityKey(context.Background())
	require.NoError(t, err)
	r, err := relay.NewLocal(relay.NewMemMailbox(), id)
	require.NoError(t, err)
	_, err = voicemail.New(voicemail.Config{Wallet: w, Relay: r})
	assert.ErrorIs(t, err, token.ErrInvalidRequest, "relay without ack store")

	svc, err := voicemail.New(voicemail.Config{Wallet: w})
	require.NoError(t, err)
	_, err = svc.Poller(0, nil)
	assert.ErrorIs(t, err, token.ErrInvalidRequest)
}

func TestService_SendSyncRedeem(t *testing.T) {
	ctx := context.Background()
	chain := ledger.NewMemChain()
	mb := relay.NewMemMailbox()
	bob := newUser(t, chain, mb, 0, nil)
	alice := newUser(t, chain, mb, 50000, staticResolver{"bob@example.com": bob.id})

	to, err := alice.svc.ResolveRecipient(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = alice.svc.ResolveRecipient(ctx, "carol@example.com")
	assert.ErrorIs(t, err, token.ErrInvalidRequest)

	var sent []*lifecycle.SendResult
	for i, sats := range []uint64{700, 300, 500} {
		res, err := alice.svc.SendToken(ctx, lifecycle.SendRequest{
			Recipient: to,
			Audio:     []byte{byte(i), 1, 2, 3},
			Message:   "call me",
			Satoshis:  sats,
		})
		require.NoError(t, err)
		require.NoError(t, res.RelayWarning)
		sent = append(sent, res)
	}

	report, err := bob.svc.SyncAndReconcile(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Imported, 3)
	assert.Len(t, report.Acknowledged, 3)
	assert.Empty(t, report.Pending)
	require.Len(t, report.Inbox, 3)

	// Acknowledged notifications are gone from the relay.
	left, err := bob.relay.Poll(ctx, relay.BoxVoicemail)
	require.NoError(t, err)
	assert.Empty(t, left)

	// A second pass finds nothing new and keeps the inbox.
	report, err = bob.svc.SyncAndReconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Imported)
	assert.Len(t, report.Inbox, 3)

	byValue, err := bob.svc.ListCollection(ctx, token.BasketInbox, token.SortSpec{Field: token.ByValue, Order: token.Descending})
	require.NoError(t, err)
	require.Len(t, byValue, 3)
	assert.Equal(t, []uint64{700, 500, 300}, []uint64{byValue[0].Satoshis, byValue[1].Satoshis, byValue[2].Satoshis})
	for _, tok := range byValue {
		require.NotNil(t, tok.Voicemail)
		assert.Equal(t, "call me", tok.Voicemail.Message)
		assert.Equal(t, alice.id.Compressed(), tok.Voicemail.Sender.Compressed())
	}

	target := sent[1].Token.Outpoint
	txid, err := bob.svc.RedeemToken(ctx, target)
	require.NoError(t, err)
	assert.NotEmpty(t, txid)

	_, err = bob.svc.RedeemToken(ctx, target)
	assert.ErrorIs(t, err, token.ErrNotFound)

	inbox, err := bob.svc.ListCollection(ctx, token.BasketInbox, token.SortSpec{})
	require.NoError(t, err)
	assert.Len(t, inbox, 2)
	for _, tok := range inbox {
		assert.NotEqual(t, target, tok.Outpoint)
	}

	// The redeemed token leaves the sender's sent basket too; the others stay.
	out, err := alice.svc.ListCollection(ctx, token.BasketSent, token.SortSpec{Field: token.ByValue})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []uint64{500, 700}, []uint64{out[0].Satoshis, out[1].Satoshis})
	for _, tok := range out {
		assert.NotEqual(t, target, tok.Outpoint)
	}
}

func TestService_SendToOwnIdentityLandsInInbox(t *testing.T) {
	ctx := context.Background()
	chain := ledger.NewMemChain()
	alice := newUser(t, chain, relay.NewMemMailbox(), 20000, nil)

	res, err := alice.svc.SendToken(ctx, lifecycle.SendRequest{
		Recipient: alice.id,
		Audio:     []byte("note to self"),
		Satoshis:  400,
	})
	require.NoError(t, err)
	require.NoError(t, res.RelayWarning)

	// Cache the token under sent before the notification is reconciled.
	sent, err := alice.svc.ListCollection(ctx, token.BasketSent, token.SortSpec{})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	report, err := alice.svc.SyncAndReconcile(ctx)
	require.NoError(t, err)
	require.Len(t, report.Imported, 1)
	assert.Len(t, report.Acknowledged, 1)
	require.Len(t, report.Inbox, 1)
	assert.Equal(t, res.Token.Outpoint, report.Inbox[0].Outpoint)
	assert.Equal(t, []byte("note to self"), report.Inbox[0].Voicemail.Audio)

	sent, err = alice.svc.ListCollection(ctx, token.BasketSent, token.SortSpec{})
	require.NoError(t, err)
	assert.Empty(t, sent, "an outpoint lives in one basket")
}

func TestService_SendWithoutRelayWarns(t *testing.T) {
	ctx := context.Background()
	chain := ledger.NewMemChain()
	w := ledgertest.NewWallet(t, chain, 10000)
	svc, err := voicemail.New(voicemail.Config{Wallet: w})
	require.NoError(t, err)

	self, err := svc.Identity(ctx)
	require.NoError(t, err)
	res, err := svc.SendToken(ctx, lifecycle.SendRequest{Audio: []byte("memo"), Satoshis: 100, SelfAddressed: true})
	require.NoError(t, err)
	assert.Equal(t, token.BasketSelf, res.Token.Basket)

	report, err := svc.SyncAndReconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Inbox)

	mine, err := svc.ListCollection(ctx, token.BasketSelf, token.SortSpec{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, self.Compressed(), mine[0].Voicemail.Sender.Compressed())

	_, err = svc.RedeemToken(ctx, mine[0].Outpoint)
	require.NoError(t, err)
}

func TestService_Contacts(t *testing.T) {
	ctx := context.Background()
	chain := ledger.NewMemChain()
	w := ledgertest.NewWallet(t, chain, 10000)
	svc, err := voicemail.New(voicemail.Config{Wallet: w})
	require.NoError(t, err)

	keys := map[string]*ec.PublicKey{}
	for _, name := range []string{"carol", "Alice", "bob"} {
		priv, err := ec.NewPrivateKey()
		require.NoError(t, err)
		keys[name] = priv.PubKey()
		_, err = svc.AddContact(ctx, name, keys[name])
		require.NoError(t, err)
	}

	contacts, err := svc.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	var names []string
	for _, c := range contacts {
		names = append(names, c.Contact.Name)
		assert.Equal(t, keys[c.Contact.Name].Compressed(), c.Contact.IdentityKey.Compressed())
	}
	assert.Equal(t, []string{"Alice", "bob", "carol"}, names)

	_, err = svc.ForgetContact(ctx, contacts[1].Outpoint)
	require.NoError(t, err)
	contacts, err = svc.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	_, err = svc.ForgetContact(ctx, token.Outpoint{TxID: "ab", Index: 9})
	assert.ErrorIs(t, err, token.ErrNotFound)
}
