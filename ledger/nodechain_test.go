package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/ledger/ledgertest"
	"github.com/bitfsorg/libvoicemail-go/network"
	"github.com/bitfsorg/libvoicemail-go/token"
)

func TestNodeChain(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemChain()
	w := ledgertest.NewWallet(t, mem, 1000)
	res, err := w.CreateAction(ctx, ledger.ActionRequest{
		Outputs: []ledger.ActionOutput{{LockingScript: tokenScript(t, ctx, w, token.Self()), Satoshis: 10}},
	})
	require.NoError(t, err)

	var sent []byte
	node := &network.MockNode{
		BroadcastTxFn: func(_ context.Context, raw []byte) (string, error) {
			sent = raw
			return "", nil
		},
		GetRawTxFn: func(_ context.Context, txid string) ([]byte, error) {
			if txid == res.TxID {
				return res.RawTx, nil
			}
			return nil, network.ErrTxNotFound
		},
		GetTxOutFn: func(_ context.Context, txid string, vout uint32) (*network.TxOut, error) {
			if txid == res.TxID && vout == 0 {
				return &network.TxOut{Satoshis: 10}, nil
			}
			return nil, nil
		},
	}
	chain := ledger.NewNodeChain(node)

	txid, err := chain.Broadcast(ctx, res.RawTx)
	require.NoError(t, err)
	assert.Equal(t, res.TxID, txid, "txid is computed locally")
	assert.Equal(t, res.RawTx, sent)

	spent, err := chain.IsSpent(ctx, token.Outpoint{TxID: res.TxID, Index: 0})
	require.NoError(t, err)
	assert.False(t, spent)

	spent, err = chain.IsSpent(ctx, token.Outpoint{TxID: res.TxID, Index: 1})
	require.NoError(t, err)
	assert.True(t, spent, "known tx without the output in the UTXO set")

	_, err = chain.IsSpent(ctx, token.Outpoint{TxID: "unknown", Index: 0})
	assert.ErrorIs(t, err, ledger.ErrUnknownOutput)

	_, err = chain.GetRawTx(ctx, "unknown")
	assert.ErrorIs(t, err, ledger.ErrMissingTx)
}
