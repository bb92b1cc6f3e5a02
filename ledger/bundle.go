package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/bitfsorg/libvoicemail-go/token"
)

// Bundle is a set of parsed transactions keyed by txid. It is read-only
// once built and safe for concurrent readers.
type Bundle struct {
	txs map[string]*transaction.Transaction
}

// NewBundle returns an empty bundle.
func NewBundle() *Bundle {
	return &Bundle{txs: make(map[string]*transaction.Transaction)}
}

// Add parses raw and adds it, returning its txid.
func (b *Bundle) Add(raw []byte) (string, error) {
	t, err := transaction.NewTransactionFromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("ledger: parse transaction: %w", err)
	}
	txid := t.TxID().String()
	b.txs[txid] = t
	return txid, nil
}

// Len returns the number of transactions.
func (b *Bundle) Len() int { return len(b.txs) }

// Tx returns the transaction with txid.
func (b *Bundle) Tx(txid string) (*transaction.Transaction, bool) {
	t, ok := b.txs[txid]
	return t, ok
}

// Output returns the output op refers to.
func (b *Bundle) Output(op token.Outpoint) (*transaction.TransactionOutput, error) {
	t, ok := b.txs[op.TxID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTx, op.TxID)
	}
	if int(op.Index) >= len(t.Outputs) {
		return nil, fmt.Errorf("%w: %s has %d outputs", ErrOutputIndex, op, len(t.Outputs))
	}
	return t.Outputs[op.Index], nil
}

// Hint is the payload of a relay notification: the referenced output and
// the transaction that holds it, so the recipient need not query the chain.
type Hint struct {
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"outputIndex"`
	RawTx       string `json:"rawTx"`
}

// NewHint builds the hint for output idx of rawTx.
func NewHint(rawTx []byte, idx uint32) (*Hint, error) {
	b := NewBundle()
	txid, err := b.Add(rawTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	h := &Hint{TxID: txid, OutputIndex: idx, RawTx: hex.EncodeToString(rawTx)}
	if _, err := b.Output(h.Outpoint()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	return h, nil
}

// Marshal encodes the hint as JSON.
func (h *Hint) Marshal() ([]byte, error) {
	return json.Marshal(h)
}

// ParseHint decodes and checks a hint: the raw transaction must parse, hash
// to TxID and contain OutputIndex.
func ParseHint(payload []byte) (*Hint, error) {
	var h Hint
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	raw, err := h.Raw()
	if err != nil {
		return nil, err
	}
	b := NewBundle()
	txid, err := b.Add(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	if txid != h.TxID {
		return nil, fmt.Errorf("%w: txid %s does not match transaction %s", ErrInvalidHint, h.TxID, txid)
	}
	if _, err := b.Output(h.Outpoint()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHint, err)
	}
	return &h, nil
}

// Outpoint returns the referenced outpoint.
func (h *Hint) Outpoint() token.Outpoint {
	return token.Outpoint{TxID: h.TxID, Index: h.OutputIndex}
}

// Raw decodes the raw transaction.
func (h *Hint) Raw() ([]byte, error) {
	raw, err := hex.DecodeString(h.RawTx)
	if err != nil || len(raw) == 0 {
		return nil, fmt.Errorf("%w: raw tx hex", ErrInvalidHint)
	}
	return raw, nil
}
