package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"

	"github.com/bitfsorg/libvoicemail-go/codec"
	"github.com/bitfsorg/libvoicemail-go/network"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
)

// Chain is the ledger a LocalWallet broadcasts to.
type Chain interface {
	// Broadcast submits a signed transaction and returns its txid.
	Broadcast(ctx context.Context, rawTx []byte) (string, error)

	// GetRawTx returns a transaction, or ErrMissingTx.
	GetRawTx(ctx context.Context, txid string) ([]byte, error)

	// IsSpent reports whether op is spent. Unknown outputs return ErrUnknownOutput.
	IsSpent(ctx context.Context, op token.Outpoint) (bool, error)
}

// ---------------------------------------------------------------------------
// MemChain
// ---------------------------------------------------------------------------

// MemChain is an in-memory ledger. It checks every input's unlocking script
// against P2PKH and token locks and rejects double spends.
type MemChain struct {
	mu      sync.Mutex
	txs     map[string][]byte
	unspent map[token.Outpoint]*transaction.TransactionOutput
	spentBy map[token.Outpoint]string
	mints   uint64
	count   int
}

var _ Chain = (*MemChain)(nil)

// NewMemChain returns an empty chain.
func NewMemChain() *MemChain {
	return &MemChain{
		txs:     make(map[string][]byte),
		unspent: make(map[token.Outpoint]*transaction.TransactionOutput),
		spentBy: make(map[token.Outpoint]string),
	}
}

// Mint creates a transaction paying sats to lockingScript out of thin air
// and returns it.
func (c *MemChain) Mint(lockingScript *script.Script, sats uint64) ([]byte, string, error) {
	if lockingScript == nil {
		return nil, "", fmt.Errorf("%w: locking script", ErrNilParam)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mints++
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], c.mints)
	prev := chainhash.Hash(sha256.Sum256(n[:]))
	unlock := &script.Script{}
	if err := unlock.AppendPushData(n[:]); err != nil {
		return nil, "", err
	}

	t := transaction.NewTransaction()
	t.AddInput(&transaction.TransactionInput{
		SourceTXID:       &prev,
		SourceTxOutIndex: 0xffffffff,
		UnlockingScript:  unlock,
		SequenceNumber:   transaction.DefaultSequenceNumber,
	})
	t.AddOutput(&transaction.TransactionOutput{Satoshis: sats, LockingScript: lockingScript})

	raw := t.Bytes()
	txid := t.TxID().String()
	c.commit(txid, raw, t)
	return raw, txid, nil
}

// Broadcast verifies and applies rawTx. Re-broadcasting a known
// transaction is a no-op.
func (c *MemChain) Broadcast(_ context.Context, rawTx []byte) (string, error) {
	t, err := transaction.NewTransactionFromBytes(rawTx)
	if err != nil {
		return "", fmt.Errorf("ledger: parse transaction: %w", err)
	}
	txid := t.TxID().String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.txs[txid]; ok {
		return txid, nil
	}

	sources := make([]*transaction.TransactionOutput, len(t.Inputs))
	var in uint64
	for i, input := range t.Inputs {
		op := token.Outpoint{TxID: input.SourceTXID.String(), Index: input.SourceTxOutIndex}
		if by, ok := c.spentBy[op]; ok {
			return "", fmt.Errorf("%w: %s already spent by %s", ErrDoubleSpend, op, by)
		}
		src, ok := c.unspent[op]
		if !ok {
			return "", fmt.Errorf("%w: input %d spends %s", ErrUnknownOutput, i, op)
		}
		for j := 0; j < i; j++ {
			if t.Inputs[j].SourceTXID.String() == op.TxID && t.Inputs[j].SourceTxOutIndex == op.Index {
				return "", fmt.Errorf("%w: %s spent twice", ErrDoubleSpend, op)
			}
		}
		sources[i] = src
		input.SetSourceTxOutput(src)
		in += src.Satoshis
	}
	var out uint64
	for _, o := range t.Outputs {
		out += o.Satoshis
	}
	if out > in {
		return "", fmt.Errorf("%w: %d > %d", ErrValueOverflow, out, in)
	}
	for i := range t.Inputs {
		if err := verifyInput(t, i, sources[i]); err != nil {
			return "", fmt.Errorf("%w: input %d: %w", ErrScriptVerify, i, err)
		}
	}

	for _, input := range t.Inputs {
		op := token.Outpoint{TxID: input.SourceTXID.String(), Index: input.SourceTxOutIndex}
		delete(c.unspent, op)
		c.spentBy[op] = txid
	}
	c.commit(txid, rawTx, t)
	c.count++
	return txid, nil
}

func (c *MemChain) commit(txid string, raw []byte, t *transaction.Transaction) {
	c.txs[txid] = slices.Clone(raw)
	for i, o := range t.Outputs {
		c.unspent[token.Outpoint{TxID: txid, Index: uint32(i)}] = o
	}
}

// Broadcasts returns how many transactions were accepted by Broadcast.
func (c *MemChain) Broadcasts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// GetRawTx returns a broadcast or minted transaction.
func (c *MemChain) GetRawTx(_ context.Context, txid string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.txs[txid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingTx, txid)
	}
	return slices.Clone(raw), nil
}

// IsSpent reports whether op has been spent.
func (c *MemChain) IsSpent(_ context.Context, op token.Outpoint) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.spentBy[op]; ok {
		return true, nil
	}
	if _, ok := c.unspent[op]; ok {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOutput, op)
}

// SpentBy returns the txid that spent op.
func (c *MemChain) SpentBy(op token.Outpoint) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txid, ok := c.spentBy[op]
	return txid, ok
}

// verifyInput checks a P2PKH or token (single-signature) spend.
func verifyInput(t *transaction.Transaction, idx int, src *transaction.TransactionOutput) error {
	unlock := t.Inputs[idx].UnlockingScript
	if unlock == nil {
		return errors.New("no unlocking script")
	}
	chunks, err := unlock.Chunks()
	if err != nil || len(chunks) == 0 {
		return errors.New("malformed unlocking script")
	}

	var pub *ec.PublicKey
	lock := []byte(*src.LockingScript)
	if d, err := codec.Decode(lock); err == nil {
		if len(chunks) != 1 {
			return errors.New("token unlock must push one signature")
		}
		pub = d.LockingKey
	} else {
		if len(chunks) != 2 {
			return errors.New("unrecognized locking script")
		}
		pub, err = ec.PublicKeyFromBytes(chunks[1].Data)
		if err != nil {
			return fmt.Errorf("unlock pubkey: %w", err)
		}
		want, err := tx.BuildP2PKHScript(pub)
		if err != nil {
			return err
		}
		if !bytes.Equal(*want, lock) {
			return errors.New("pubkey does not match P2PKH lock")
		}
	}

	sigBytes := chunks[0].Data
	if len(sigBytes) < 2 || sigBytes[len(sigBytes)-1] != byte(sighash.AllForkID) {
		return errors.New("missing SIGHASH_ALL|FORKID flag")
	}
	sig, err := ec.ParseDERSignature(sigBytes[:len(sigBytes)-1])
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}
	h, err := tx.SigHash(t, idx)
	if err != nil {
		return err
	}
	if !sig.Verify(h, pub) {
		return errors.New("signature does not verify")
	}
	return nil
}

// ---------------------------------------------------------------------------
// NodeChain
// ---------------------------------------------------------------------------

// NodeChain is a Chain backed by a BSV node.
type NodeChain struct {
	node network.Node
}

var _ Chain = (*NodeChain)(nil)

// NewNodeChain wraps node.
func NewNodeChain(node network.Node) *NodeChain {
	return &NodeChain{node: node}
}

// Broadcast sends rawTx to the node.
func (c *NodeChain) Broadcast(ctx context.Context, rawTx []byte) (string, error) {
	t, err := transaction.NewTransactionFromBytes(rawTx)
	if err != nil {
		return "", fmt.Errorf("ledger: parse transaction: %w", err)
	}
	if _, err := c.node.BroadcastTx(ctx, rawTx); err != nil {
		return "", err
	}
	return t.TxID().String(), nil
}

// GetRawTx fetches a transaction from the node.
func (c *NodeChain) GetRawTx(ctx context.Context, txid string) ([]byte, error) {
	raw, err := c.node.GetRawTx(ctx, txid)
	if errors.Is(err, network.ErrTxNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingTx, txid)
	}
	return raw, err
}

// IsSpent asks gettxout, falling back to getrawtransaction to tell spent
// outputs from unknown ones.
func (c *NodeChain) IsSpent(ctx context.Context, op token.Outpoint) (bool, error) {
	out, err := c.node.GetTxOut(ctx, op.TxID, op.Index)
	if err != nil {
		return false, err
	}
	if out != nil {
		return false, nil
	}
	if _, err := c.GetRawTx(ctx, op.TxID); err != nil {
		if errors.Is(err, ErrMissingTx) {
			return false, fmt.Errorf("%w: %s", ErrUnknownOutput, op)
		}
		return false, err
	}
	return true, nil
}
