// Package collection mirrors the wallet's token baskets locally. Sync lists
// a basket, decodes only outpoints it has not seen before and evicts the
// ones that vanished; Import pulls a single referenced output in from a
// relay hint.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/libvoicemail-go/channel"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// DefaultLimit bounds concurrent decodes during a sync.
const DefaultLimit = 8

// SyncResult is the outcome of one Sync. Tokens are in listing order.
// Skipped counts outputs left out because their transaction was missing or
// a required field did not decrypt; Corrupt counts malformed scripts.
type SyncResult struct {
	Tokens  []*token.Token
	Skipped int
	Corrupt int
}

// ImportResult is the outcome of Import. Undecodable is set when the output
// can never yield a token.
type ImportResult struct {
	Token       *token.Token
	Undecodable bool
}

// Synchronizer owns the local view of the wallet's baskets.
type Synchronizer struct {
	wallet    ledger.Wallet
	voicemail *channel.Channel
	contacts  *channel.Channel
	log       logging.Logger

	// Limit bounds concurrent decodes; DefaultLimit when zero.
	Limit int

	mu    sync.Mutex
	cache map[token.Basket]map[token.Outpoint]*token.Token
}

// New returns a synchronizer over w decoding through the given channels.
func New(w ledger.Wallet, voicemail, contacts *channel.Channel, log logging.Logger) *Synchronizer {
	return &Synchronizer{
		wallet:    w,
		voicemail: voicemail,
		contacts:  contacts,
		log:       logging.OrNop(log).With("component", "collection"),
		cache:     make(map[token.Basket]map[token.Outpoint]*token.Token),
	}
}

type decodeOutcome struct {
	tok *token.Token
	err error
}

// Sync lists basket and returns its decodable tokens. Per-output failures
// are counted and logged, never returned.
func (s *Synchronizer) Sync(ctx context.Context, basket token.Basket) (*SyncResult, error) {
	list, err := s.wallet.ListOutputs(ctx, basket)
	if err != nil {
		return nil, fmt.Errorf("collection: list %s: %w", basket, err)
	}

	known := s.snapshot(basket)
	outcomes := make([]decodeOutcome, len(list.Outputs))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	g.SetLimit(limit)
	for i, out := range list.Outputs {
		if tok, ok := known[out.Outpoint]; ok {
			outcomes[i] = decodeOutcome{tok: tok}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tok, err := s.decode(gctx, basket, out, list.Bundle)
			outcomes[i] = decodeOutcome{tok: tok, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &SyncResult{}
	fresh := make(map[token.Outpoint]*token.Token, len(outcomes))
	for i, o := range outcomes {
		op := list.Outputs[i].Outpoint
		switch {
		case o.err == nil:
			res.Tokens = append(res.Tokens, o.tok)
			fresh[op] = o.tok
		case errors.Is(o.err, token.ErrDecodeCorruption):
			res.Corrupt++
			s.log.Warn(ctx, "dropping corrupt token", "outpoint", op, "basket", basket, "error", o.err)
		default:
			res.Skipped++
			s.log.Warn(ctx, "skipping token", "outpoint", op, "basket", basket, "error", o.err)
		}
	}
	s.replace(basket, fresh)
	s.log.Debug(ctx, "basket synced", "basket", basket, "tokens", len(res.Tokens),
		"skipped", res.Skipped, "corrupt", res.Corrupt)
	return res, nil
}

// Import internalizes the output a hint points at into the holding basket,
// decodes it and moves it to the inbox. Failures that no retry can fix are
// reported through ImportResult.Undecodable rather than as errors.
func (s *Synchronizer) Import(ctx context.Context, hint *ledger.Hint) (*ImportResult, error) {
	if hint == nil {
		return nil, fmt.Errorf("%w: nil hint", token.ErrInvalidRequest)
	}
	raw, err := hint.Raw()
	if err != nil {
		return &ImportResult{Undecodable: true}, nil
	}
	if tok, ok := s.Lookup(hint.Outpoint()); ok && inbound(tok.Basket) {
		return &ImportResult{Token: tok}, nil
	}

	out, err := s.wallet.InternalizeOutput(ctx, ledger.InternalizeRequest{
		RawTx:       raw,
		OutputIndex: hint.OutputIndex,
		Basket:      token.BasketImport,
	})
	switch {
	case errors.Is(err, ledger.ErrOutputSpent), errors.Is(err, ledger.ErrOutputIndex):
		s.log.Info(ctx, "referenced output cannot be imported", "outpoint", hint.Outpoint(), "error", err)
		return &ImportResult{Undecodable: true}, nil
	case err != nil:
		return nil, fmt.Errorf("collection: internalize %s: %w", hint.Outpoint(), err)
	}

	switch {
	case inbound(out.Basket):
	case out.Basket == token.BasketSent:
		// Sent to our own identity without the self-addressed flag.
	default:
		s.log.Info(ctx, "referenced output is not a received token", "outpoint", out.Outpoint, "basket", out.Basket)
		return &ImportResult{Undecodable: true}, nil
	}

	bundle := ledger.NewBundle()
	if _, err := bundle.Add(raw); err != nil {
		return &ImportResult{Undecodable: true}, nil
	}
	tok, err := s.decode(ctx, token.BasketImport, out, bundle)
	if err != nil {
		if errors.Is(err, token.ErrDecodeCorruption) || errors.Is(err, token.ErrDecryptRequired) {
			s.log.Warn(ctx, "imported output is undecodable", "outpoint", out.Outpoint, "error", err)
			return &ImportResult{Undecodable: true}, nil
		}
		return nil, err
	}

	if out.Basket != token.BasketInbox {
		if err := s.wallet.MoveOutput(ctx, out.Outpoint, token.BasketInbox); err != nil {
			return nil, fmt.Errorf("collection: move %s to inbox: %w", out.Outpoint, err)
		}
	}
	tok.Basket = token.BasketInbox
	s.put(tok)
	s.log.Info(ctx, "token imported", "outpoint", tok.Outpoint, "basket", tok.Basket)
	return &ImportResult{Token: tok}, nil
}

// inbound reports whether basket holds received tokens.
func inbound(basket token.Basket) bool {
	return basket == token.BasketInbox || basket == token.BasketImport
}

// Lookup returns the cached token at op in any basket.
func (s *Synchronizer) Lookup(op token.Outpoint) (*token.Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		if tok, ok := m[op]; ok {
			return tok, true
		}
	}
	return nil, false
}

// Remove evicts op from every basket.
func (s *Synchronizer) Remove(op token.Outpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		delete(m, op)
	}
}

func (s *Synchronizer) snapshot(basket token.Basket) map[token.Outpoint]*token.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[token.Outpoint]*token.Token, len(s.cache[basket]))
	for op, tok := range s.cache[basket] {
		out[op] = tok
	}
	return out
}

func (s *Synchronizer) replace(basket token.Basket, fresh map[token.Outpoint]*token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[basket] = fresh
	// An outpoint lives in one basket only.
	for b, m := range s.cache {
		if b == basket {
			continue
		}
		for op := range fresh {
			delete(m, op)
		}
	}
}

func (s *Synchronizer) put(tok *token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.cache {
		delete(m, tok.Outpoint)
	}
	m, ok := s.cache[tok.Basket]
	if !ok {
		m = make(map[token.Outpoint]*token.Token)
		s.cache[tok.Basket] = m
	}
	m[tok.Outpoint] = tok
}

// Track records a token the caller created, so it is known before the next Sync.
func (s *Synchronizer) Track(tok *token.Token) {
	if tok == nil {
		return
	}
	s.put(tok)
}
