package ledger_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/ledger/ledgertest"
	"github.com/bitfsorg/libvoicemail-go/token"
)

func TestHint_RoundTrip(t *testing.T) {
	ctx := context.Background()
	chain := ledger.NewMemChain()
	w := ledgertest.NewWallet(t, chain, 5000)
	res, err := w.CreateAction(ctx, ledger.ActionRequest{
		Outputs: []ledger.ActionOutput{{LockingScript: tokenScript(t, ctx, w, token.Self()), Satoshis: 10}},
	})
	require.NoError(t, err)

	h, err := ledger.NewHint(res.RawTx, 0)
	require.NoError(t, err)
	assert.Equal(t, res.TxID, h.TxID)
	payload, err := h.Marshal()
	require.NoError(t, err)

	got, err := ledger.ParseHint(payload)
	require.NoError(t, err)
	assert.Equal(t, token.Outpoint{TxID: res.TxID, Index: 0}, got.Outpoint())
	raw, err := got.Raw()
	require.NoError(t, err)
	assert.Equal(t, res.RawTx, raw)

	_, err = ledger.NewHint(res.RawTx, 9)
	assert.ErrorIs(t, err, ledger.ErrInvalidHint)
}

func TestParseHint_Rejects(t *testing.T) {
	ctx := context.Background()
	chain := ledger.NewMemChain()
	w := ledgertest.NewWallet(t, chain, 5000)
	res, err := w.CreateAction(ctx, ledger.ActionRequest{
		Outputs: []ledger.ActionOutput{{LockingScript: tokenScript(t, ctx, w, token.Self()), Satoshis: 10}},
	})
	require.NoError(t, err)
	good, err := ledger.NewHint(res.RawTx, 0)
	require.NoError(t, err)

	mismatched := *good
	mismatched.TxID = "00" + good.TxID[2:]
	if mismatched.TxID == good.TxID {
		mismatched.TxID = "11" + good.TxID[2:]
	}
	mismatchedJSON, _ := json.Marshal(mismatched)

	badHex := *good
	badHex.RawTx = "zz"
	badHexJSON, _ := json.Marshal(badHex)

	for name, payload := range map[string][]byte{
		"not json":      []byte("{"),
		"txid mismatch": mismatchedJSON,
		"bad hex":       badHexJSON,
		"empty":         []byte(`{}`),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.ParseHint(payload)
			assert.ErrorIs(t, err, ledger.ErrInvalidHint)
		})
	}
}

func TestBundle_Output(t *testing.T) {
	b := ledger.NewBundle()
	_, err := b.Output(token.Outpoint{TxID: "missing"})
	assert.ErrorIs(t, err, ledger.ErrMissingTx)
	_, err = b.Add([]byte{0x01})
	assert.Error(t, err)
	assert.Equal(t, 0, b.Len())
}
