// Package reconcile matches relay notifications against imported tokens and
// acknowledges only the ones whose token is safely in the wallet. An
// unmatched notification stays on the relay and is retried on the next pass.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfsorg/libvoicemail-go/collection"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/relay"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// Importer pulls the output a hint references into the wallet.
type Importer interface {
	Import(ctx context.Context, hint *ledger.Hint) (*collection.ImportResult, error)
}

// Source returns the imported token set at reconciliation time.
type Source func(ctx context.Context) ([]*token.Token, error)

// Result is the outcome of one reconciliation.
type Result struct {
	// Imported holds tokens imported during this pass.
	Imported []*token.Token
	// Acknowledged holds the ids acknowledged to the relay.
	Acknowledged []string
	// Undecodable holds acknowledged ids whose token can never be read.
	Undecodable []string
	// Pending holds ids left for a later pass.
	Pending []string
	// Duplicate holds ids acknowledged earlier; no relay call is made for them.
	Duplicate []string
}

// Reconciler owns the acknowledgment decision.
type Reconciler struct {
	relay    relay.Relay
	importer Importer
	acks     store.AckStore
	log      logging.Logger
	box      string
}

// New returns a reconciler for box. acks remembers acknowledged ids across runs.
func New(r relay.Relay, importer Importer, acks store.AckStore, box string, log logging.Logger) *Reconciler {
	if box == "" {
		box = relay.BoxVoicemail
	}
	return &Reconciler{
		relay:    r,
		importer: importer,
		acks:     acks,
		log:      logging.OrNop(log).With("component", "reconcile"),
		box:      box,
	}
}

// Pass polls the relay, reads the imported set from src and reconciles.
func (r *Reconciler) Pass(ctx context.Context, src Source) (*Result, error) {
	notes, err := r.relay.Poll(ctx, r.box)
	if err != nil {
		return nil, fail("poll", token.ErrRelayUnavailable, err)
	}
	imported, err := src(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: imported set: %w", err)
	}
	return r.ReconcileAndAcknowledge(ctx, notes, imported)
}

// ReconcileAndAcknowledge imports what notes reference and acknowledges the
// notes whose token is in imported (directly or after import), or whose
// output proved permanently undecodable. A failed acknowledgment call leaves
// every id unacknowledged and returns the partial result with the error.
func (r *Reconciler) ReconcileAndAcknowledge(ctx context.Context, notes []*relay.Notification, imported []*token.Token) (*Result, error) {
	have := make(map[string]struct{}, len(imported))
	for _, tok := range imported {
		have[tok.Outpoint.TxID] = struct{}{}
	}

	res := &Result{}
	seen := make(map[string]struct{}, len(notes))
	var batch []string
	for _, n := range notes {
		if n == nil || n.ID == "" {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			res.Duplicate = append(res.Duplicate, n.ID)
			continue
		}
		seen[n.ID] = struct{}{}

		acked, err := r.acks.IsAcknowledged(n.ID)
		if err != nil {
			return nil, fmt.Errorf("reconcile: ack store: %w", err)
		}
		if acked {
			res.Duplicate = append(res.Duplicate, n.ID)
			continue
		}

		switch r.match(ctx, n, have, res) {
		case matchImported:
			batch = append(batch, n.ID)
		case matchUndecodable:
			batch = append(batch, n.ID)
			res.Undecodable = append(res.Undecodable, n.ID)
		default:
			res.Pending = append(res.Pending, n.ID)
		}
	}

	if len(batch) == 0 {
		return res, nil
	}
	if err := r.relay.Acknowledge(ctx, batch); err != nil {
		r.log.Warn(ctx, "acknowledge failed", "count", len(batch), "error", err)
		res.Pending = append(res.Pending, batch...)
		res.Undecodable = nil
		return res, fail("acknowledge", token.ErrRelayUnavailable, err)
	}
	if err := r.acks.MarkAcknowledged(batch...); err != nil {
		return res, fmt.Errorf("reconcile: record acknowledgments: %w", err)
	}
	res.Acknowledged = batch
	r.log.Info(ctx, "notifications acknowledged", "count", len(batch))
	return res, nil
}

type matchKind int

const (
	matchPending matchKind = iota
	matchImported
	matchUndecodable
)

// match decides one notification, importing its token when needed.
func (r *Reconciler) match(ctx context.Context, n *relay.Notification, have map[string]struct{}, res *Result) matchKind {
	hint, err := ledger.ParseHint(n.Payload)
	if err != nil {
		r.log.Warn(ctx, "unreadable notification payload", "id", n.ID, "error", err)
		return matchPending
	}
	if n.ReferenceID != "" && n.ReferenceID != hint.TxID {
		r.log.Warn(ctx, "notification reference does not match its payload", "id", n.ID,
			"reference", n.ReferenceID, "txid", hint.TxID)
		return matchPending
	}
	if _, ok := have[hint.TxID]; ok {
		return matchImported
	}

	out, err := r.importer.Import(ctx, hint)
	switch {
	case err != nil:
		r.log.Warn(ctx, "import failed", "id", n.ID, "outpoint", hint.Outpoint(), "error", err)
		return matchPending
	case out.Undecodable:
		return matchUndecodable
	case out.Token == nil:
		return matchPending
	}
	res.Imported = append(res.Imported, out.Token)
	have[out.Token.Outpoint.TxID] = struct{}{}
	if _, ok := have[hint.TxID]; !ok {
		return matchPending
	}
	return matchImported
}

func fail(op string, kind, err error) error {
	if errors.Is(err, kind) {
		return &token.Error{Op: op, Err: err}
	}
	return &token.Error{Op: op, Err: fmt.Errorf("%w: %w", kind, err)}
}
