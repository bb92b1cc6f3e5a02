// Package ledgertest builds funded in-memory wallets for tests.
package ledgertest

import (
	"context"
	"crypto/rand"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/wallet"
)

// NewWallet returns a LocalWallet on chain with a fresh random seed and an
// in-memory store, funded with one output of fund satoshis when fund > 0.
func NewWallet(t testing.TB, chain *ledger.MemChain, fund uint64) *ledger.LocalWallet {
	t.Helper()
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	hd, err := wallet.NewWallet(seed, &wallet.RegTest)
	require.NoError(t, err)

	w, err := ledger.NewLocalWallet(ledger.LocalWalletConfig{
		Keys:  hd,
		Store: store.NewMemStore(),
		Chain: chain,
	})
	require.NoError(t, err)
	if fund > 0 {
		Fund(t, chain, w, fund)
	}
	return w
}

// Fund mints sats to a new receive address of w and internalizes it.
func Fund(t testing.TB, chain *ledger.MemChain, w *ledger.LocalWallet, sats uint64) {
	t.Helper()
	ctx := context.Background()
	fa, err := w.ReceiveAddress(ctx)
	require.NoError(t, err)
	raw, _, err := chain.Mint(fa.LockingScript, sats)
	require.NoError(t, err)
	got, err := w.InternalizeFunding(ctx, raw, fa.Index)
	require.NoError(t, err)
	require.Equal(t, sats, got)
}

// OneFieldScript returns `<key> OP_CHECKSIG <field> OP_DROP`, a well-formed
// script carrying too few fields to be a token.
func OneFieldScript(t testing.TB, key *ec.PublicKey, field []byte) *script.Script {
	t.Helper()
	s := &script.Script{}
	require.NoError(t, s.AppendPushData(key.Compressed()))
	require.NoError(t, s.AppendOpcodes(script.OpCHECKSIG))
	require.NoError(t, s.AppendPushData(field))
	require.NoError(t, s.AppendOpcodes(script.OpDROP))
	return s
}
