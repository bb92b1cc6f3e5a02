package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/google/uuid"

	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
	"github.com/bitfsorg/libvoicemail-go/wallet"
)

// pendingAction is a built transaction waiting for SignAction.
type pendingAction struct {
	req         ActionRequest
	plan        *tx.Plan
	changeIndex uint32
	reserved    []token.Outpoint
}

// CreateAction implements Wallet.
func (w *LocalWallet) CreateAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if len(req.Inputs) == 0 && len(req.Outputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs or outputs", tx.ErrNoOutputs)
	}

	b := &tx.Builder{FeeRate: w.feeRate}
	for _, in := range req.Inputs {
		src, err := w.sourceOutput(in.Outpoint)
		if err != nil {
			return nil, err
		}
		unlockLen := in.UnlockLen
		if unlockLen == 0 {
			unlockLen = tx.SignatureUnlockLen
		}
		b.Inputs = append(b.Inputs, tx.Input{Outpoint: in.Outpoint, Source: src, UnlockLen: unlockLen})
	}
	for i, out := range req.Outputs {
		if out.LockingScript == nil {
			return nil, fmt.Errorf("%w: output %d locking script", ErrNilParam, i)
		}
		b.Outputs = append(b.Outputs, tx.Output{LockingScript: out.LockingScript, Satoshis: out.Satoshis})
	}

	changeIndex, err := w.store.NextIndex(counterChange)
	if err != nil {
		return nil, fmt.Errorf("ledger: change index: %w", err)
	}
	changeKey, err := w.keys.DeriveFundingKey(wallet.InternalChain, changeIndex)
	if err != nil {
		return nil, err
	}
	if b.ChangeScript, err = tx.BuildP2PKHScript(changeKey.PublicKey); err != nil {
		return nil, err
	}

	// Funding selection and reservation happen under one lock so two actions
	// never pick the same UTXO.
	w.mu.Lock()
	for _, in := range req.Inputs {
		if ref, ok := w.reserved[in.Outpoint]; ok {
			w.mu.Unlock()
			return nil, fmt.Errorf("%w: %s by %s", ErrOutputReserved, in.Outpoint, ref)
		}
	}
	funding, err := w.fundingUTXOs()
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	b.Funding = funding
	plan, err := b.Build()
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	ref := uuid.NewString()
	p := &pendingAction{req: req, plan: plan, changeIndex: changeIndex}
	for _, in := range req.Inputs {
		p.reserved = append(p.reserved, in.Outpoint)
	}
	for _, u := range plan.Funding {
		p.reserved = append(p.reserved, u.Outpoint)
	}
	for _, op := range p.reserved {
		w.reserved[op] = ref
	}
	w.pending[ref] = p
	w.mu.Unlock()

	if err := plan.SignFunding(); err != nil {
		w.release(ref)
		return nil, err
	}

	w.log.Debug(ctx, "action built", "ref", ref, "description", req.Description,
		"inputs", len(plan.Tx.Inputs), "outputs", len(plan.Tx.Outputs), "fee", plan.Fee)

	if len(req.Inputs) > 0 {
		return &ActionResult{Signable: &Signable{Reference: ref, Tx: plan.Tx}}, nil
	}
	return w.complete(ctx, ref)
}

// SignAction implements Wallet. unlocks maps caller input indexes to their
// unlocking scripts.
func (w *LocalWallet) SignAction(ctx context.Context, reference string, unlocks map[int]*script.Script) (*ActionResult, error) {
	w.mu.Lock()
	p, ok := w.pending[reference]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, reference)
	}
	for i := range p.req.Inputs {
		s, ok := unlocks[i]
		if !ok || s == nil {
			return nil, fmt.Errorf("%w: input %d", ErrMissingUnlock, i)
		}
		p.plan.Tx.Inputs[i].UnlockingScript = s
	}
	return w.complete(ctx, reference)
}

// AbortAction implements Wallet.
func (w *LocalWallet) AbortAction(ctx context.Context, reference string) error {
	if !w.release(reference) {
		return fmt.Errorf("%w: %s", ErrUnknownAction, reference)
	}
	w.log.Debug(ctx, "action aborted", "ref", reference)
	return nil
}

// release drops a pending action and its reservations.
func (w *LocalWallet) release(ref string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pending[ref]
	if !ok {
		return false
	}
	for _, op := range p.reserved {
		delete(w.reserved, op)
	}
	delete(w.pending, ref)
	return true
}

// complete broadcasts a pending action and updates tracked outputs. The
// action is released whether or not the broadcast succeeds.
func (w *LocalWallet) complete(ctx context.Context, ref string) (*ActionResult, error) {
	w.mu.Lock()
	p, ok := w.pending[ref]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, ref)
	}
	defer w.release(ref)

	raw := p.plan.Tx.Bytes()
	txid, err := w.chain.Broadcast(ctx, raw)
	if err != nil {
		w.log.Warn(ctx, "broadcast failed", "ref", ref, "error", err)
		return nil, fmt.Errorf("ledger: broadcast: %w", err)
	}
	if err := w.store.PutTx(txid, raw); err != nil {
		return nil, err
	}

	for _, op := range p.reserved {
		if err := w.store.DeleteOutput(op); err != nil && !errors.Is(err, store.ErrOutputNotFound) {
			return nil, err
		}
	}
	now := w.now().UTC()
	for i, out := range p.req.Outputs {
		if out.Basket == "" {
			continue
		}
		err := w.store.PutOutput(&store.OutputRecord{
			Outpoint:      token.Outpoint{TxID: txid, Index: uint32(i)},
			Satoshis:      out.Satoshis,
			LockingScript: []byte(*out.LockingScript),
			Basket:        out.Basket,
			Tags:          out.Tags,
			CreatedAt:     now,
		})
		if err != nil {
			return nil, err
		}
	}
	if p.plan.ChangeVout >= 0 {
		err := w.store.PutOutput(&store.OutputRecord{
			Outpoint:      token.Outpoint{TxID: txid, Index: uint32(p.plan.ChangeVout)},
			Satoshis:      p.plan.Change,
			LockingScript: []byte(*p.plan.Tx.Outputs[p.plan.ChangeVout].LockingScript),
			Basket:        token.BasketDefault,
			CreatedAt:     now,
			KeyChain:      wallet.InternalChain,
			KeyIndex:      p.changeIndex,
			HasKey:        true,
		})
		if err != nil {
			return nil, err
		}
	}

	w.log.Info(ctx, "transaction broadcast", "txid", txid, "description", p.req.Description, "fee", p.plan.Fee)
	return &ActionResult{TxID: txid, RawTx: raw}, nil
}

// sourceOutput returns the tracked output op spends. Its transaction must
// be stored as well.
func (w *LocalWallet) sourceOutput(op token.Outpoint) (*transaction.TransactionOutput, error) {
	rec, err := w.store.GetOutput(op)
	if err != nil {
		if errors.Is(err, store.ErrOutputNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOutput, op)
		}
		return nil, err
	}
	if _, err := w.store.GetTx(op.TxID); err != nil {
		if errors.Is(err, store.ErrTxNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMissingTx, op.TxID)
		}
		return nil, err
	}
	return &transaction.TransactionOutput{
		Satoshis:      rec.Satoshis,
		LockingScript: script.NewFromBytes(rec.LockingScript),
	}, nil
}

// fundingUTXOs returns the unreserved default-basket outputs with their
// keys. Callers hold w.mu.
func (w *LocalWallet) fundingUTXOs() ([]*tx.UTXO, error) {
	recs, err := w.store.ListOutputs(token.BasketDefault)
	if err != nil {
		return nil, err
	}
	var out []*tx.UTXO
	for _, r := range recs {
		if !r.HasKey {
			continue
		}
		if _, busy := w.reserved[r.Outpoint]; busy {
			continue
		}
		kp, err := w.keys.DeriveFundingKey(r.KeyChain, r.KeyIndex)
		if err != nil {
			return nil, err
		}
		out = append(out, &tx.UTXO{
			Outpoint:      r.Outpoint,
			Satoshis:      r.Satoshis,
			LockingScript: r.LockingScript,
			PrivateKey:    kp.PrivateKey,
		})
	}
	return out, nil
}
