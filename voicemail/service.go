// Package voicemail is the application-facing surface: it wires the crypto
// channels, collection, lifecycle manager and reconciler around one wallet
// and exposes the operations a user interface needs.
package voicemail

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/libvoicemail-go/channel"
	"github.com/bitfsorg/libvoicemail-go/collection"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/lifecycle"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/paymail"
	"github.com/bitfsorg/libvoicemail-go/reconcile"
	"github.com/bitfsorg/libvoicemail-go/relay"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// Resolver turns a recipient address into an identity key.
type Resolver interface {
	Resolve(ctx context.Context, addr string) (*ec.PublicKey, error)
}

// Config wires a Service. Relay may be nil for an offline wallet; Resolver
// defaults to paymail.NewResolver().
type Config struct {
	Wallet   ledger.Wallet
	Relay    relay.Relay
	Acks     store.AckStore
	Resolver Resolver
	Log      logging.Logger
	Now      func() time.Time
}

// Service is one identity's voicemail client.
type Service struct {
	wallet     ledger.Wallet
	collection *collection.Synchronizer
	lifecycle  *lifecycle.Manager
	reconciler *reconcile.Reconciler
	resolver   Resolver
	log        logging.Logger
}

// SyncReport is the outcome of SyncAndReconcile.
type SyncReport struct {
	// Imported holds tokens newly imported from notifications.
	Imported []*token.Token
	// Acknowledged holds the notification ids acknowledged to the relay.
	Acknowledged []string
	// Pending holds notification ids left for a later pass.
	Pending []string
	// Inbox is the full inbox after the pass, in listing order.
	Inbox []*token.Token
	// Skipped and Corrupt count inbox outputs that could not be shown.
	Skipped int
	Corrupt int
}

// New returns a Service for cfg.
func New(cfg Config) (*Service, error) {
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("%w: service needs a wallet", token.ErrInvalidRequest)
	}
	if cfg.Relay != nil && cfg.Acks == nil {
		return nil, fmt.Errorf("%w: a relay needs an acknowledgment store", token.ErrInvalidRequest)
	}
	log := logging.OrNop(cfg.Log)

	vm := channel.Voicemail(cfg.Wallet, log)
	ct := channel.Contacts(cfg.Wallet, log)
	if cfg.Now != nil {
		vm.Now, ct.Now = cfg.Now, cfg.Now
	}
	sync := collection.New(cfg.Wallet, vm, ct, log)
	mgr, err := lifecycle.New(lifecycle.Config{
		Wallet:     cfg.Wallet,
		Voicemail:  vm,
		Contacts:   ct,
		Relay:      cfg.Relay,
		Collection: sync,
		Log:        log,
		Now:        cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	s := &Service{
		wallet:     cfg.Wallet,
		collection: sync,
		lifecycle:  mgr,
		resolver:   cfg.Resolver,
		log:        log.With("component", "voicemail"),
	}
	if s.resolver == nil {
		s.resolver = paymail.NewResolver()
	}
	if cfg.Relay != nil {
		s.reconciler = reconcile.New(cfg.Relay, sync, cfg.Acks, relay.BoxVoicemail, log)
	}
	return s, nil
}

// Identity returns the wallet's identity key.
func (s *Service) Identity(ctx context.Context) (*ec.PublicKey, error) {
	key, err := s.wallet.IdentityKey(ctx)
	if err != nil {
		return nil, token.Wrap("identity", token.Outpoint{}, token.ErrIdentityUnavailable, err)
	}
	return key, nil
}

// SendToken sends a voicemail. A relay failure is reported in
// SendResult.RelayWarning and does not fail the send.
func (s *Service) SendToken(ctx context.Context, req lifecycle.SendRequest) (res *lifecycle.SendResult, err error) {
	defer func(start time.Time) { observe("send", start, err) }(time.Now())
	res, err = s.lifecycle.Send(ctx, req)
	if err == nil && res.RelayWarning != nil {
		s.log.Warn(ctx, "voicemail sent without notification", "outpoint", res.Token.Outpoint, "error", res.RelayWarning)
	}
	return res, err
}

// RedeemToken spends the voicemail at op back into the wallet and returns
// the spending txid.
func (s *Service) RedeemToken(ctx context.Context, op token.Outpoint) (txid string, err error) {
	defer func(start time.Time) { observe("redeem", start, err) }(time.Now())
	tok, err := s.find(ctx, op, token.BasketInbox, token.BasketSelf, token.BasketSent)
	if err != nil {
		return "", err
	}
	return s.lifecycle.Redeem(ctx, tok)
}

// ListCollection syncs basket and returns its tokens ordered by spec.
func (s *Service) ListCollection(ctx context.Context, basket token.Basket, spec token.SortSpec) (tokens []*token.Token, err error) {
	defer func(start time.Time) { observe("list", start, err) }(time.Now())
	res, err := s.collection.Sync(ctx, basket)
	if err != nil {
		return nil, err
	}
	tokens = slices.Clone(res.Tokens)
	token.Sort(tokens, spec)
	return tokens, nil
}

// SyncAndReconcile runs one reconciliation pass against the relay and
// returns the resulting inbox. Without a relay it only syncs the inbox.
// When acknowledgment fails the report is still returned with the error.
func (s *Service) SyncAndReconcile(ctx context.Context) (report *SyncReport, err error) {
	defer func(start time.Time) { observe("sync", start, err) }(time.Now())
	report = &SyncReport{}
	if s.reconciler != nil {
		res, rerr := s.reconciler.Pass(ctx, s.inbox)
		if res == nil {
			return nil, rerr
		}
		report.Imported = res.Imported
		report.Acknowledged = res.Acknowledged
		report.Pending = res.Pending
		notificationsAcknowledged.Add(float64(len(res.Acknowledged)))
		err = rerr
	}

	inbox, serr := s.collection.Sync(ctx, token.BasketInbox)
	if serr != nil {
		return report, errors.Join(err, serr)
	}
	report.Inbox = inbox.Tokens
	report.Skipped = inbox.Skipped
	report.Corrupt = inbox.Corrupt
	return report, err
}

// inbox is the reconciler's view of the imported set.
func (s *Service) inbox(ctx context.Context) ([]*token.Token, error) {
	res, err := s.collection.Sync(ctx, token.BasketInbox)
	if err != nil {
		return nil, err
	}
	return res.Tokens, nil
}

// Poller returns a background poller that reconciles every interval.
func (s *Service) Poller(interval time.Duration, deliver func(*reconcile.Result)) (*reconcile.Poller, error) {
	if s.reconciler == nil {
		return nil, fmt.Errorf("%w: no relay configured", token.ErrInvalidRequest)
	}
	return &reconcile.Poller{
		Reconciler: s.reconciler,
		Source:     s.inbox,
		Interval:   interval,
		Deliver:    deliver,
		Log:        s.log,
	}, nil
}

// AddContact records name and identityKey as an encrypted contact token.
func (s *Service) AddContact(ctx context.Context, name string, identityKey *ec.PublicKey) (tok *token.Token, err error) {
	defer func(start time.Time) { observe("add_contact", start, err) }(time.Now())
	return s.lifecycle.AddContact(ctx, name, identityKey)
}

// ListContacts returns the contacts sorted by name, case-insensitively.
func (s *Service) ListContacts(ctx context.Context) (contacts []*token.Token, err error) {
	defer func(start time.Time) { observe("list_contacts", start, err) }(time.Now())
	res, err := s.collection.Sync(ctx, token.BasketContacts)
	if err != nil {
		return nil, err
	}
	contacts = slices.Clone(res.Tokens)
	slices.SortStableFunc(contacts, func(a, b *token.Token) int {
		return strings.Compare(strings.ToLower(a.Contact.Name), strings.ToLower(b.Contact.Name))
	})
	return contacts, nil
}

// ForgetContact spends the contact token at op.
func (s *Service) ForgetContact(ctx context.Context, op token.Outpoint) (txid string, err error) {
	defer func(start time.Time) { observe("forget_contact", start, err) }(time.Now())
	tok, err := s.find(ctx, op, token.BasketContacts)
	if err != nil {
		return "", err
	}
	return s.lifecycle.ForgetContact(ctx, tok)
}

// ResolveRecipient resolves a paymail handle, domain or hex key.
func (s *Service) ResolveRecipient(ctx context.Context, addr string) (key *ec.PublicKey, err error) {
	defer func(start time.Time) { observe("resolve", start, err) }(time.Now())
	key, err = s.resolver.Resolve(ctx, addr)
	if err != nil {
		return nil, token.Wrap("resolve", token.Outpoint{}, token.ErrInvalidRequest, err)
	}
	return key, nil
}

// find returns the cached token at op, syncing baskets until it shows up.
func (s *Service) find(ctx context.Context, op token.Outpoint, baskets ...token.Basket) (*token.Token, error) {
	if tok, ok := s.collection.Lookup(op); ok {
		return tok, nil
	}
	for _, b := range baskets {
		if _, err := s.collection.Sync(ctx, b); err != nil {
			return nil, err
		}
		if tok, ok := s.collection.Lookup(op); ok {
			return tok, nil
		}
	}
	return nil, token.Wrap("find", op, token.ErrNotFound, nil)
}
