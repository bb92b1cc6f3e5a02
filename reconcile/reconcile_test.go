package reconcile_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/channel"
	"github.com/bitfsorg/libvoicemail-go/collection"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/ledger/ledgertest"
	"github.com/bitfsorg/libvoicemail-go/lifecycle"
	"github.com/bitfsorg/libvoicemail-go/reconcile"
	"github.com/bitfsorg/libvoicemail-go/relay"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// countingRelay counts acknowledgment calls and can fail them.
type countingRelay struct {
	relay.Relay
	ackCalls atomic.Int64
	ackErr   error
}

func (c *countingRelay) Acknowledge(ctx context.Context, ids []string) error {
	c.ackCalls.Add(1)
	if c.ackErr != nil {
		return c.ackErr
	}
	return c.Relay.Acknowledge(ctx, ids)
}

type env struct {
	chain     *ledger.MemChain
	alice     *lifecycle.Manager
	aliceW    *ledger.LocalWallet
	aliceR    *relay.Local
	bobID     *ec.PublicKey
	bobRelay  *countingRelay
	bobSync   *collection.Synchronizer
	acks      store.AckStore
	reconcile *reconcile.Reconciler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	chain := ledger.NewMemChain()
	mb := relay.NewMemMailbox()

	aw := ledgertest.NewWallet(t, chain, 50000)
	aid, err := aw.IdentityKey(ctx)
	require.NoError(t, err)
	ar, err := relay.NewLocal(mb, aid)
	require.NoError(t, err)
	avm, act := channel.Voicemail(aw, nil), channel.Contacts(aw, nil)
	am, err := lifecycle.New(lifecycle.Config{
		Wallet: aw, Voicemail: avm, Contacts: act, Relay: ar,
		Collection: collection.New(aw, avm, act, nil),
	})
	require.NoError(t, err)

	bw := ledgertest.NewWallet(t, chain, 0)
	bid, err := bw.IdentityKey(ctx)
	require.NoError(t, err)
	blocal, err := relay.NewLocal(mb, bid)
	require.NoError(t, err)
	br := &countingRelay{Relay: blocal}
	bs := collection.New(bw, channel.Voicemail(bw, nil), channel.Contacts(bw, nil), nil)
	acks := store.NewMemStore()

	return &env{
		chain: chain, alice: am, aliceW: aw, aliceR: ar,
		bobID: bid, bobRelay: br, bobSync: bs, acks: acks,
		reconcile: reconcile.New(br, bs, acks, relay.BoxVoicemail, nil),
	}
}

func (e *env) inbox(ctx context.Context) ([]*token.Token, error) {
	res, err := e.bobSync.Sync(ctx, token.BasketInbox)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

func (e *env) send(t *testing.T, msg string) *lifecycle.SendResult {
	t.Helper()
	res, err := e.alice.Send(context.Background(), lifecycle.SendRequest{
		Recipient: e.bobID, Audio: []byte("audio"), Message: msg, Satoshis: 1000,
	})
	require.NoError(t, err)
	require.NoError(t, res.RelayWarning)
	return res
}

func TestReconcile_AcknowledgesOnlyImported(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s1 := e.send(t, "one")
	s2 := e.send(t, "two")
	corruptID, err := e.aliceR.Publish(ctx, e.bobID, relay.BoxVoicemail, strings.Repeat("f", 64), []byte("garbage"))
	require.NoError(t, err)

	res, err := e.reconcile.Pass(ctx, e.inbox)
	require.NoError(t, err)
	require.Len(t, res.Imported, 2)
	assert.ElementsMatch(t, []string{s1.NotificationID, s2.NotificationID}, res.Acknowledged)
	assert.Equal(t, []string{corruptID}, res.Pending)

	inbox, err := e.inbox(ctx)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "one", inbox[0].Voicemail.Message)

	// The corrupt notification is never acknowledged.
	for pass := 0; pass < 3; pass++ {
		res, err = e.reconcile.Pass(ctx, e.inbox)
		require.NoError(t, err)
		assert.Empty(t, res.Acknowledged)
		assert.Equal(t, []string{corruptID}, res.Pending)
	}
	assert.Equal(t, int64(1), e.bobRelay.ackCalls.Load())
	left, err := e.bobRelay.Poll(ctx, relay.BoxVoicemail)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, corruptID, left[0].ID)
	ok, err := e.acks.IsAcknowledged(corruptID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconcile_RepeatedIDsAreNotResent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.send(t, "")

	notes, err := e.bobRelay.Poll(ctx, relay.BoxVoicemail)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	replayed := append(notes, notes[0])
	res, err := e.reconcile.ReconcileAndAcknowledge(ctx, replayed, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{notes[0].ID}, res.Acknowledged)
	assert.Equal(t, []string{notes[0].ID}, res.Duplicate)

	res, err = e.reconcile.ReconcileAndAcknowledge(ctx, notes, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Acknowledged)
	assert.Equal(t, []string{notes[0].ID}, res.Duplicate)
	assert.Equal(t, int64(1), e.bobRelay.ackCalls.Load(), "no second network call")
}

func TestReconcile_MatchesAlreadyImportedTokens(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.send(t, "")
	notes, err := e.bobRelay.Poll(ctx, relay.BoxVoicemail)
	require.NoError(t, err)
	hint, err := ledger.ParseHint(notes[0].Payload)
	require.NoError(t, err)
	imp, err := e.bobSync.Import(ctx, hint)
	require.NoError(t, err)

	res, err := e.reconcile.ReconcileAndAcknowledge(ctx, notes, []*token.Token{imp.Token})
	require.NoError(t, err)
	assert.Empty(t, res.Imported, "nothing new to import")
	assert.Equal(t, []string{notes[0].ID}, res.Acknowledged)
}

func TestReconcile_UndecodableIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	id, err := e.aliceW.IdentityKey(ctx)
	require.NoError(t, err)
	lock := ledgertest.OneFieldScript(t, id, []byte("lonely"))
	out, err := e.aliceW.CreateAction(ctx, ledger.ActionRequest{
		Outputs: []ledger.ActionOutput{{LockingScript: lock, Satoshis: 5}},
	})
	require.NoError(t, err)
	hint, err := ledger.NewHint(out.RawTx, 0)
	require.NoError(t, err)
	payload, err := hint.Marshal()
	require.NoError(t, err)
	nid, err := e.aliceR.Publish(ctx, e.bobID, relay.BoxVoicemail, out.TxID, payload)
	require.NoError(t, err)

	res, err := e.reconcile.Pass(ctx, e.inbox)
	require.NoError(t, err)
	assert.Equal(t, []string{nid}, res.Acknowledged)
	assert.Equal(t, []string{nid}, res.Undecodable)
	assert.Empty(t, res.Imported)
}

func TestReconcile_AcknowledgeFailureKeepsNotifications(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	sent := e.send(t, "")
	e.bobRelay.ackErr = relay.ErrUnavailable

	res, err := e.reconcile.Pass(ctx, e.inbox)
	require.Error(t, err)
	assert.ErrorIs(t, err, token.ErrRelayUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, []string{sent.NotificationID}, res.Pending)
	ok, err := e.acks.IsAcknowledged(sent.NotificationID)
	require.NoError(t, err)
	assert.False(t, ok)

	e.bobRelay.ackErr = nil
	res, err = e.reconcile.Pass(ctx, e.inbox)
	require.NoError(t, err)
	assert.Empty(t, res.Imported, "token was imported by the failed pass")
	assert.Equal(t, []string{sent.NotificationID}, res.Acknowledged)
}

func TestPoller_DeliversUntilCancelled(t *testing.T) {
	e := newEnv(t)
	e.send(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *reconcile.Result, 4)
	p := &reconcile.Poller{
		Reconciler: e.reconcile,
		Source:     e.inbox,
		Interval:   10 * time.Millisecond,
		Deliver: func(r *reconcile.Result) {
			select {
			case results <- r:
			default:
			}
		},
	}
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	first := <-results
	assert.Len(t, first.Acknowledged, 1)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPoller_DiscardsPassInFlightAtCancel(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	proceed := make(chan struct{})
	var completed atomic.Bool
	var delivered atomic.Int64
	p := &reconcile.Poller{
		Reconciler: e.reconcile,
		Source: func(ctx context.Context) ([]*token.Token, error) {
			close(started)
			<-proceed
			defer completed.Store(true)
			if ctx.Err() != nil {
				return nil, errors.New("pass context was cancelled")
			}
			return nil, nil
		},
		Interval: time.Hour,
		Deliver:  func(*reconcile.Result) { delivered.Add(1) },
	}
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-started
	cancel()
	close(proceed)
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, completed.Load(), "the pass ran to completion")
	assert.Zero(t, delivered.Load(), "its result was discarded")
}

func TestPoller_NeedsWiring(t *testing.T) {
	assert.Error(t, (&reconcile.Poller{}).Run(context.Background()))
}
