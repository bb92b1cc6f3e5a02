package lifecycle

import (
	"context"
	"errors"

	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libvoicemail-go/channel"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
)

// Redeem spends tok with no outputs of its own, returning its value to the
// wallet, and removes it from the local collection. It returns the spending
// txid.
//
// Only one redemption per outpoint runs at a time; a concurrent call fails
// at once with token.ErrRedemptionInFlight. On failure tok is left Active.
func (m *Manager) Redeem(ctx context.Context, tok *token.Token) (string, error) {
	const op = "redeem"
	if tok == nil {
		return "", fail(op, token.Outpoint{}, token.ErrInvalidRequest, errors.New("nil token"))
	}
	outpoint := tok.Outpoint
	if tok.Counterparty.IsZero() {
		return "", fail(op, outpoint, token.ErrInvalidRequest, errors.New("token has no counterparty"))
	}
	if err := m.begin(tok); err != nil {
		return "", err
	}
	m.observe(outpoint, token.StateSpendRequested)
	txid, err := m.redeem(ctx, tok)
	m.observe(outpoint, m.finish(tok, err == nil))
	if err != nil {
		m.log.Warn(ctx, "redemption failed", "outpoint", outpoint, "error", err)
		return "", err
	}
	m.collection.Remove(outpoint)
	m.log.Info(ctx, "token redeemed", "outpoint", outpoint, "txid", txid)
	return txid, nil
}

// begin fences tok with the in-flight guard and moves it to SpendRequested.
func (m *Manager) begin(tok *token.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[tok.Outpoint]; busy || tok.State == token.StateSpendRequested {
		return fail("redeem", tok.Outpoint, token.ErrRedemptionInFlight, nil)
	}
	if tok.State == token.StateSpent {
		return fail("redeem", tok.Outpoint, token.ErrNotFound, errors.New("already redeemed"))
	}
	m.inFlight[tok.Outpoint] = struct{}{}
	tok.State = token.StateSpendRequested
	return nil
}

// finish lifts the fence, rolling tok back to Active unless it was spent,
// and returns the resulting state.
func (m *Manager) finish(tok *token.Token, spent bool) token.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, tok.Outpoint)
	if spent {
		tok.State = token.StateSpent
	} else {
		tok.State = token.StateActive
	}
	return tok.State
}

func (m *Manager) channelFor(tok *token.Token) *channel.Channel {
	if tok.Basket == token.BasketContacts || tok.Contact != nil {
		return m.contacts
	}
	return m.voicemail
}

func (m *Manager) redeem(ctx context.Context, tok *token.Token) (string, error) {
	const op = "redeem"
	outpoint := tok.Outpoint

	// Phase 1: the wallet builds and funds the spend.
	res, err := m.wallet.CreateAction(ctx, ledger.ActionRequest{
		Description: "redeem " + outpoint.String(),
		Inputs:      []ledger.ActionInput{{Outpoint: outpoint, UnlockLen: tx.SignatureUnlockLen}},
	})
	switch {
	case errors.Is(err, ledger.ErrUnknownOutput), errors.Is(err, ledger.ErrMissingTx):
		return "", fail(op, outpoint, token.ErrStaleReference, err)
	case errors.Is(err, ledger.ErrOutputReserved):
		return "", fail(op, outpoint, token.ErrRedemptionInFlight, err)
	case err != nil:
		return "", fail(op, outpoint, token.ErrConstructionFailure, err)
	case res.Signable == nil:
		return "", fail(op, outpoint, token.ErrConstructionFailure, errors.New("wallet returned no signable transaction"))
	}
	ref := res.Signable.Reference

	// Phase 2: unlock with the lock's counterparty, then broadcast.
	sighash, err := tx.SigHash(res.Signable.Tx, 0)
	if err != nil {
		m.abort(ctx, ref)
		return "", fail(op, outpoint, token.ErrConstructionFailure, err)
	}
	unlock, err := m.channelFor(tok).UnlockProof(ctx, tok.Counterparty, tok.LockingScript, sighash)
	if err != nil {
		m.abort(ctx, ref)
		return "", fail(op, outpoint, token.ErrUnlockAuthorization, err)
	}
	done, err := m.wallet.SignAction(ctx, ref, map[int]*script.Script{0: unlock})
	switch {
	case errors.Is(err, ledger.ErrScriptVerify):
		return "", fail(op, outpoint, token.ErrUnlockAuthorization, err)
	case errors.Is(err, ledger.ErrDoubleSpend), errors.Is(err, ledger.ErrOutputSpent):
		return "", fail(op, outpoint, token.ErrStaleReference, err)
	case err != nil:
		m.abort(ctx, ref)
		return "", fail(op, outpoint, token.ErrConstructionFailure, err)
	}
	return done.TxID, nil
}

// abort releases a pending spend. The wallet may already have dropped it.
func (m *Manager) abort(ctx context.Context, ref string) {
	if err := m.wallet.AbortAction(ctx, ref); err != nil && !errors.Is(err, ledger.ErrUnknownAction) {
		m.log.Warn(ctx, "abort failed", "ref", ref, "error", err)
	}
}
