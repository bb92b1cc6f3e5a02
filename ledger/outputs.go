package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
	"github.com/bitfsorg/libvoicemail-go/wallet"
)

// ListOutputs implements Wallet. Records the chain reports spent are
// dropped; transactions missing from the store are left out of the bundle.
func (w *LocalWallet) ListOutputs(ctx context.Context, basket token.Basket) (*OutputList, error) {
	recs, err := w.store.ListOutputs(basket)
	if err != nil {
		return nil, err
	}
	list := &OutputList{Bundle: NewBundle()}
	for _, r := range recs {
		spent, err := w.chain.IsSpent(ctx, r.Outpoint)
		switch {
		case err != nil:
			w.log.Debug(ctx, "spend check failed", "outpoint", r.Outpoint, "error", err)
		case spent:
			w.log.Info(ctx, "dropping spent output", "outpoint", r.Outpoint, "basket", basket)
			if err := w.store.DeleteOutput(r.Outpoint); err != nil && !errors.Is(err, store.ErrOutputNotFound) {
				return nil, err
			}
			continue
		}
		list.Outputs = append(list.Outputs, recordOutput(r))
		if _, ok := list.Bundle.Tx(r.Outpoint.TxID); ok {
			continue
		}
		raw, err := w.store.GetTx(r.Outpoint.TxID)
		if err != nil {
			w.log.Debug(ctx, "transaction missing from store", "txid", r.Outpoint.TxID, "error", err)
			continue
		}
		if _, err := list.Bundle.Add(raw); err != nil {
			w.log.Warn(ctx, "stored transaction does not parse", "txid", r.Outpoint.TxID, "error", err)
		}
	}
	return list, nil
}

func recordOutput(r *store.OutputRecord) *Output {
	return &Output{
		Outpoint:  r.Outpoint,
		Satoshis:  r.Satoshis,
		Basket:    r.Basket,
		Tags:      slices.Clone(r.Tags),
		CreatedAt: r.CreatedAt,
	}
}

// InternalizeOutput implements Wallet. The output must be unspent on chain.
func (w *LocalWallet) InternalizeOutput(ctx context.Context, req InternalizeRequest) (*Output, error) {
	if req.Basket == "" {
		return nil, fmt.Errorf("%w: basket", ErrNilParam)
	}
	b := NewBundle()
	txid, err := b.Add(req.RawTx)
	if err != nil {
		return nil, err
	}
	op := token.Outpoint{TxID: txid, Index: req.OutputIndex}
	if rec, err := w.store.GetOutput(op); err == nil {
		return recordOutput(rec), nil
	}
	out, err := b.Output(op)
	if err != nil {
		return nil, err
	}
	spent, err := w.chain.IsSpent(ctx, op)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, fmt.Errorf("%w: %s", ErrOutputSpent, op)
	}

	if err := w.store.PutTx(txid, req.RawTx); err != nil {
		return nil, err
	}
	rec := &store.OutputRecord{
		Outpoint:      op,
		Satoshis:      out.Satoshis,
		LockingScript: []byte(*out.LockingScript),
		Basket:        req.Basket,
		Tags:          req.Tags,
		CreatedAt:     w.now().UTC(),
	}
	if err := w.store.PutOutput(rec); err != nil {
		return nil, err
	}
	w.log.Info(ctx, "output internalized", "outpoint", op, "basket", req.Basket, "satoshis", out.Satoshis)
	return recordOutput(rec), nil
}

// RelinquishOutput implements Wallet.
func (w *LocalWallet) RelinquishOutput(_ context.Context, op token.Outpoint) error {
	if err := w.store.DeleteOutput(op); err != nil {
		if errors.Is(err, store.ErrOutputNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownOutput, op)
		}
		return err
	}
	return nil
}

// MoveOutput implements Wallet. The output keeps its position in listings.
func (w *LocalWallet) MoveOutput(ctx context.Context, op token.Outpoint, basket token.Basket) error {
	rec, err := w.store.GetOutput(op)
	if err != nil {
		if errors.Is(err, store.ErrOutputNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownOutput, op)
		}
		return err
	}
	if rec.Basket == basket {
		return nil
	}
	from := rec.Basket
	rec.Basket = basket
	if err := w.store.PutOutput(rec); err != nil {
		return err
	}
	w.log.Debug(ctx, "output moved", "outpoint", op, "from", from, "to", basket)
	return nil
}

// FundingAddress is a receive address of the funding key chain.
type FundingAddress struct {
	Address       string
	Index         uint32
	LockingScript *script.Script
}

// ReceiveAddress returns a fresh funding address.
func (w *LocalWallet) ReceiveAddress(context.Context) (*FundingAddress, error) {
	idx, err := w.store.NextIndex(counterReceive)
	if err != nil {
		return nil, fmt.Errorf("ledger: receive index: %w", err)
	}
	return w.fundingAddress(idx)
}

func (w *LocalWallet) fundingAddress(idx uint32) (*FundingAddress, error) {
	kp, err := w.keys.DeriveFundingKey(wallet.ExternalChain, idx)
	if err != nil {
		return nil, err
	}
	lock, err := tx.BuildP2PKHScript(kp.PublicKey)
	if err != nil {
		return nil, err
	}
	addr, err := script.NewAddressFromPublicKey(kp.PublicKey, w.keys.Network().IsMainnet())
	if err != nil {
		return nil, fmt.Errorf("ledger: address: %w", err)
	}
	return &FundingAddress{Address: addr.AddressString, Index: idx, LockingScript: lock}, nil
}

// InternalizeFunding tracks every output of rawTx paying the receive
// address at index as spendable funds. It returns the satoshis added.
func (w *LocalWallet) InternalizeFunding(ctx context.Context, rawTx []byte, index uint32) (uint64, error) {
	fa, err := w.fundingAddress(index)
	if err != nil {
		return 0, err
	}
	b := NewBundle()
	txid, err := b.Add(rawTx)
	if err != nil {
		return 0, err
	}
	t, _ := b.Tx(txid)

	var total uint64
	var matched bool
	for i, out := range t.Outputs {
		if out.LockingScript == nil || !bytes.Equal(*out.LockingScript, *fa.LockingScript) {
			continue
		}
		matched = true
		op := token.Outpoint{TxID: txid, Index: uint32(i)}
		if _, err := w.store.GetOutput(op); err == nil {
			continue
		}
		if spent, err := w.chain.IsSpent(ctx, op); err != nil || spent {
			w.log.Warn(ctx, "skipping funding output", "outpoint", op, "spent", spent, "error", err)
			continue
		}
		if err := w.store.PutTx(txid, rawTx); err != nil {
			return total, err
		}
		err := w.store.PutOutput(&store.OutputRecord{
			Outpoint:      op,
			Satoshis:      out.Satoshis,
			LockingScript: []byte(*out.LockingScript),
			Basket:        token.BasketDefault,
			CreatedAt:     w.now().UTC(),
			KeyChain:      wallet.ExternalChain,
			KeyIndex:      index,
			HasKey:        true,
		})
		if err != nil {
			return total, err
		}
		total += out.Satoshis
	}
	if !matched {
		return 0, fmt.Errorf("%w: %s index %d", ErrNoMatchingOutput, fa.Address, index)
	}
	w.log.Info(ctx, "funding received", "txid", txid, "satoshis", total)
	return total, nil
}

// Balance sums the spendable funding outputs.
func (w *LocalWallet) Balance(ctx context.Context) (uint64, error) {
	list, err := w.ListOutputs(ctx, token.BasketDefault)
	if err != nil {
		return 0, err
	}
	var sum uint64
	for _, o := range list.Outputs {
		sum += o.Satoshis
	}
	return sum, nil
}
