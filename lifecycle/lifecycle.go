// Package lifecycle is the only writer of ledger-visible token state. It
// sends voicemail and contact tokens and redeems them in two phases: the
// wallet builds the spend, then the unlock proof is signed with the same
// (protocol, key id, counterparty) triple the lock was made with.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libvoicemail-go/channel"
	"github.com/bitfsorg/libvoicemail-go/collection"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/relay"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// ContactSatoshis is the carrier value of a contact token.
const ContactSatoshis = 1

// Config wires a Manager. Relay may be nil, in which case sends publish no
// notification.
type Config struct {
	Wallet     ledger.Wallet
	Voicemail  *channel.Channel
	Contacts   *channel.Channel
	Relay      relay.Relay
	Collection *collection.Synchronizer
	Log        logging.Logger
	Now        func() time.Time

	// OnState, when set, observes every state a token moves through.
	// It runs on the calling goroutine and must not block.
	OnState func(outpoint token.Outpoint, state token.State)
}

// Manager sends and redeems tokens.
type Manager struct {
	wallet     ledger.Wallet
	voicemail  *channel.Channel
	contacts   *channel.Channel
	relay      relay.Relay
	collection *collection.Synchronizer
	log        logging.Logger
	now        func() time.Time
	onState    func(token.Outpoint, token.State)

	mu       sync.Mutex
	inFlight map[token.Outpoint]struct{}
}

// New returns a Manager for cfg.
func New(cfg Config) (*Manager, error) {
	if cfg.Wallet == nil || cfg.Voicemail == nil || cfg.Contacts == nil || cfg.Collection == nil {
		return nil, fmt.Errorf("%w: lifecycle needs a wallet, both channels and a collection", token.ErrInvalidRequest)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		wallet:     cfg.Wallet,
		voicemail:  cfg.Voicemail,
		contacts:   cfg.Contacts,
		relay:      cfg.Relay,
		collection: cfg.Collection,
		log:        logging.OrNop(cfg.Log).With("component", "lifecycle"),
		now:        now,
		onState:    cfg.OnState,
		inFlight:   make(map[token.Outpoint]struct{}),
	}, nil
}

// SendRequest describes a voicemail. Recipient is ignored when SelfAddressed.
type SendRequest struct {
	Recipient     *ec.PublicKey
	Audio         []byte
	Message       string
	Satoshis      uint64
	SelfAddressed bool
}

// SendResult reports a broadcast voicemail. RelayWarning is set when the
// notification could not be delivered; the send itself still succeeded.
type SendResult struct {
	Token          *token.Token
	RawTx          []byte
	NotificationID string
	RelayWarning   error
}

// fail wraps err as an *token.Error of kind, keeping err's own kind when it
// already carries it.
func fail(op string, outpoint token.Outpoint, kind, err error) error {
	if err != nil && errors.Is(err, kind) {
		return &token.Error{Op: op, Outpoint: outpoint, Err: err}
	}
	return token.Wrap(op, outpoint, kind, err)
}

// Send encrypts and locks a voicemail and broadcasts it. Identity,
// encryption and construction failures are reported with distinct kinds.
func (m *Manager) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	const op = "send"
	if req.Satoshis == 0 {
		return nil, fail(op, token.Outpoint{}, token.ErrInvalidRequest, errors.New("zero value"))
	}
	if !req.SelfAddressed && req.Recipient == nil {
		return nil, fail(op, token.Outpoint{}, token.ErrInvalidRequest, errors.New("no recipient"))
	}

	identity, err := m.wallet.IdentityKey(ctx)
	if err != nil {
		return nil, fail(op, token.Outpoint{}, token.ErrIdentityUnavailable, err)
	}
	cp := token.Self()
	basket := token.BasketSelf
	tags := []string{token.TagSelfAddressed}
	if !req.SelfAddressed {
		cp = token.Other(req.Recipient)
		basket = token.BasketSent
		tags = []string{token.CounterpartyTag(req.Recipient)}
	}

	now := m.now()
	vf, err := m.voicemail.EncryptVoicemail(ctx, identity, cp, req.Audio, req.Message, now)
	if err != nil {
		if errors.Is(err, token.ErrInvalidRequest) {
			return nil, fail(op, token.Outpoint{}, token.ErrInvalidRequest, err)
		}
		return nil, fail(op, token.Outpoint{}, token.ErrEncryptionFailure, err)
	}
	tok := &token.Token{
		Satoshis:      req.Satoshis,
		Counterparty:  cp,
		Basket:        basket,
		SelfAddressed: req.SelfAddressed,
		Voicemail: &token.Voicemail{
			Sender:    identity,
			Audio:     req.Audio,
			Timestamp: time.UnixMilli(now.UnixMilli()).UTC(),
			Message:   req.Message,
		},
	}
	m.advance(ctx, tok, token.StateDraft)

	lock, err := m.voicemail.Lock(ctx, cp, vf.Fields())
	if err != nil {
		return nil, fail(op, token.Outpoint{}, token.ErrConstructionFailure, err)
	}
	tok.LockingScript = []byte(*lock)
	m.advance(ctx, tok, token.StateBuilt)

	res, err := m.create(ctx, "voicemail", lock, req.Satoshis, basket, tags)
	if err != nil {
		return nil, fail(op, token.Outpoint{}, token.ErrConstructionFailure, err)
	}
	tok.Outpoint = token.Outpoint{TxID: res.TxID, Index: 0}
	m.advance(ctx, tok, token.StateBroadcast)

	m.collection.Track(tok)
	m.advance(ctx, tok, token.StateActive)
	m.log.Info(ctx, "voicemail sent", "outpoint", tok.Outpoint, "basket", basket, "satoshis", req.Satoshis)

	out := &SendResult{Token: tok, RawTx: res.RawTx}
	if !req.SelfAddressed {
		out.NotificationID, out.RelayWarning = m.notify(ctx, req.Recipient, tok.Outpoint, res.RawTx)
	}
	return out, nil
}

// advance moves tok to state and reports the transition.
func (m *Manager) advance(ctx context.Context, tok *token.Token, state token.State) {
	tok.State = state
	m.log.Debug(ctx, "token state", "outpoint", tok.Outpoint, "state", state)
	m.observe(tok.Outpoint, state)
}

func (m *Manager) observe(op token.Outpoint, state token.State) {
	if m.onState != nil {
		m.onState(op, state)
	}
}

// notify publishes the hint for a sent token. Failures are returned as a
// warning of kind token.ErrRelayUnavailable.
func (m *Manager) notify(ctx context.Context, recipient *ec.PublicKey, outpoint token.Outpoint, raw []byte) (string, error) {
	if m.relay == nil {
		return "", nil
	}
	hint, err := ledger.NewHint(raw, outpoint.Index)
	if err != nil {
		return "", fail("notify", outpoint, token.ErrRelayUnavailable, err)
	}
	payload, err := hint.Marshal()
	if err != nil {
		return "", fail("notify", outpoint, token.ErrRelayUnavailable, err)
	}
	id, err := m.relay.Publish(ctx, recipient, relay.BoxVoicemail, outpoint.TxID, payload)
	if err != nil {
		m.log.Warn(ctx, "notification not delivered", "outpoint", outpoint, "error", err)
		return "", fail("notify", outpoint, token.ErrRelayUnavailable, err)
	}
	m.log.Debug(ctx, "notification published", "outpoint", outpoint, "id", id)
	return id, nil
}

func (m *Manager) create(ctx context.Context, desc string, lock *script.Script, sats uint64, basket token.Basket, tags []string) (*ledger.ActionResult, error) {
	res, err := m.wallet.CreateAction(ctx, ledger.ActionRequest{
		Description: desc,
		Outputs: []ledger.ActionOutput{{
			LockingScript: lock,
			Satoshis:      sats,
			Basket:        basket,
			Tags:          tags,
		}},
	})
	if err != nil {
		return nil, err
	}
	if res.TxID == "" {
		return nil, errors.New("wallet returned no transaction")
	}
	return res, nil
}

// AddContact stores an encrypted contact entry as a self-addressed token.
func (m *Manager) AddContact(ctx context.Context, name string, identityKey *ec.PublicKey) (*token.Token, error) {
	const op = "add contact"
	now := m.now()
	cf, err := m.contacts.EncryptContact(ctx, name, identityKey, now)
	if err != nil {
		if errors.Is(err, token.ErrInvalidRequest) {
			return nil, fail(op, token.Outpoint{}, token.ErrInvalidRequest, err)
		}
		return nil, fail(op, token.Outpoint{}, token.ErrEncryptionFailure, err)
	}
	tok := &token.Token{
		Satoshis:      ContactSatoshis,
		Counterparty:  token.Self(),
		Basket:        token.BasketContacts,
		SelfAddressed: true,
		Contact: &token.Contact{
			Name:        name,
			IdentityKey: identityKey,
			AddedAt:     time.UnixMilli(now.UnixMilli()).UTC(),
		},
	}
	m.advance(ctx, tok, token.StateDraft)

	lock, err := m.contacts.Lock(ctx, token.Self(), cf.Fields())
	if err != nil {
		return nil, fail(op, token.Outpoint{}, token.ErrConstructionFailure, err)
	}
	tok.LockingScript = []byte(*lock)
	m.advance(ctx, tok, token.StateBuilt)

	res, err := m.create(ctx, "contact", lock, ContactSatoshis, token.BasketContacts, []string{token.TagSelfAddressed})
	if err != nil {
		return nil, fail(op, token.Outpoint{}, token.ErrConstructionFailure, err)
	}
	tok.Outpoint = token.Outpoint{TxID: res.TxID, Index: 0}
	m.advance(ctx, tok, token.StateBroadcast)

	m.collection.Track(tok)
	m.advance(ctx, tok, token.StateActive)
	m.log.Info(ctx, "contact added", "outpoint", tok.Outpoint)
	return tok, nil
}

// ForgetContact redeems a contact token.
func (m *Manager) ForgetContact(ctx context.Context, tok *token.Token) (string, error) {
	if tok == nil || tok.Basket != token.BasketContacts {
		return "", fail("forget contact", token.Outpoint{}, token.ErrInvalidRequest, errors.New("not a contact token"))
	}
	return m.Redeem(ctx, tok)
}
