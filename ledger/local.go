package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/method42"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/tx"
	"github.com/bitfsorg/libvoicemail-go/wallet"
)

// Store counter names.
const (
	counterReceive = "receive"
	counterChange  = "change"
)

// LocalWalletConfig wires a LocalWallet.
type LocalWalletConfig struct {
	Keys    *wallet.Wallet
	Store   store.Store
	Chain   Chain
	FeeRate uint64 // sat/KB; 0 means tx.DefaultFeeRate
	Log     logging.Logger
	Now     func() time.Time
}

// LocalWallet is a Wallet whose keys come from an HD wallet and whose
// outputs are tracked in a store.
type LocalWallet struct {
	keys     *wallet.Wallet
	identity *ec.PrivateKey
	store    store.Store
	chain    Chain
	feeRate  uint64
	log      logging.Logger
	now      func() time.Time

	mu       sync.Mutex
	pending  map[string]*pendingAction
	reserved map[token.Outpoint]string
}

var _ Wallet = (*LocalWallet)(nil)

// NewLocalWallet derives the identity key and returns the wallet.
func NewLocalWallet(cfg LocalWalletConfig) (*LocalWallet, error) {
	if cfg.Keys == nil || cfg.Store == nil || cfg.Chain == nil {
		return nil, fmt.Errorf("%w: keys, store and chain are required", ErrNilParam)
	}
	id, err := cfg.Keys.DeriveIdentityKey()
	if err != nil {
		return nil, fmt.Errorf("ledger: identity key: %w", err)
	}
	if cfg.FeeRate == 0 {
		cfg.FeeRate = tx.DefaultFeeRate
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &LocalWallet{
		keys:     cfg.Keys,
		identity: id.PrivateKey,
		store:    cfg.Store,
		chain:    cfg.Chain,
		feeRate:  cfg.FeeRate,
		log:      logging.OrNop(cfg.Log).With("component", "ledger"),
		now:      cfg.Now,
		pending:  make(map[string]*pendingAction),
		reserved: make(map[token.Outpoint]string),
	}, nil
}

// IdentityKey returns the public identity key.
func (w *LocalWallet) IdentityKey(context.Context) (*ec.PublicKey, error) {
	return w.identity.PubKey(), nil
}

// resolve returns the invoice number and counterparty key for args.
func (w *LocalWallet) resolve(args token.KeyArgs) (string, *ec.PublicKey, error) {
	invoice, err := method42.InvoiceNumber(args.Protocol.SecurityLevel, args.Protocol.Name, args.KeyID)
	if err != nil {
		return "", nil, err
	}
	cp, err := args.Counterparty.Resolve(w.identity.PubKey())
	if err != nil {
		return "", nil, err
	}
	return invoice, cp, nil
}

// DerivePublicKey implements KeyWallet.
func (w *LocalWallet) DerivePublicKey(_ context.Context, args token.KeyArgs, forSelf bool) (*ec.PublicKey, error) {
	invoice, cp, err := w.resolve(args)
	if err != nil {
		return nil, err
	}
	if forSelf {
		child, err := method42.ChildPrivateKey(w.identity, cp, invoice)
		if err != nil {
			return nil, err
		}
		return child.PubKey(), nil
	}
	return method42.ChildPublicKey(w.identity, cp, invoice)
}

// Encrypt implements KeyWallet.
func (w *LocalWallet) Encrypt(_ context.Context, args token.KeyArgs, plaintext []byte) ([]byte, error) {
	invoice, cp, err := w.resolve(args)
	if err != nil {
		return nil, err
	}
	return method42.Encrypt(plaintext, w.identity, cp, invoice)
}

// Decrypt implements KeyWallet.
func (w *LocalWallet) Decrypt(_ context.Context, args token.KeyArgs, ciphertext []byte) ([]byte, error) {
	invoice, cp, err := w.resolve(args)
	if err != nil {
		return nil, err
	}
	return method42.Decrypt(ciphertext, w.identity, cp, invoice)
}

// CreateSignature implements KeyWallet.
func (w *LocalWallet) CreateSignature(_ context.Context, args token.KeyArgs, hash []byte) ([]byte, error) {
	invoice, cp, err := w.resolve(args)
	if err != nil {
		return nil, err
	}
	child, err := method42.ChildPrivateKey(w.identity, cp, invoice)
	if err != nil {
		return nil, err
	}
	sig, err := child.Sign(hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tx.ErrSigningFailed, err)
	}
	return sig.Serialize(), nil
}
