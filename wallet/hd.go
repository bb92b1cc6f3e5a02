package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	PurposeBIP44    = 44
	CoinTypeBitFS   = 236
	FundingAccount  = 0
	IdentityAccount = 1

	// ExternalChain holds receive addresses, InternalChain change.
	ExternalChain = 0
	InternalChain = 1

	// MaxKeyIndex is the largest non-hardened BIP32 child index.
	MaxKeyIndex = 1<<31 - 1

	Hardened = 0x80000000
)

// KeyPath is a leaf under m/44'/236'/account'.
type KeyPath struct {
	Account uint32
	Chain   uint32
	Index   uint32
}

func (p KeyPath) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", PurposeBIP44, CoinTypeBitFS, p.Account, p.Chain, p.Index)
}

// children lists the child indices from the master key down to the leaf.
func (p KeyPath) children() []uint32 {
	return []uint32{
		PurposeBIP44 + Hardened,
		CoinTypeBitFS + Hardened,
		p.Account + Hardened,
		p.Chain,
		p.Index,
	}
}

// IdentityPath is the key voicemail tokens are encrypted against and locked for.
var IdentityPath = KeyPath{Account: IdentityAccount, Chain: ExternalChain}

// Wallet is the HD key source behind one voicemail identity.
type Wallet struct {
	master  *bip32.ExtendedKey
	network *NetworkConfig
}

// KeyPair holds a derived key and the path it came from.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`
}

// NewWallet creates a Wallet from a BIP39 seed. A nil network means mainnet.
func NewWallet(seed []byte, network *NetworkConfig) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = &MainNet
	}
	params := &chaincfg.TestNet
	if network.IsMainnet() {
		params = &chaincfg.MainNet
	}
	master, err := bip32.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{master: master, network: network}, nil
}

// Network returns the wallet's network configuration.
func (w *Wallet) Network() *NetworkConfig {
	return w.network
}

// Derive returns the key pair at p.
func (w *Wallet) Derive(p KeyPath) (*KeyPair, error) {
	if p.Chain > MaxKeyIndex || p.Index > MaxKeyIndex {
		return nil, fmt.Errorf("%w: %s", ErrIndexOutOfRange, p)
	}
	key := w.master
	for depth, child := range p.children() {
		next, err := key.Child(child)
		if err != nil {
			return nil, fmt.Errorf("%w: %s depth %d: %w", ErrDerivationFailed, p, depth+1, err)
		}
		key = next
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDerivationFailed, p, err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: priv.PubKey(), Path: p.String()}, nil
}

// DeriveFundingKey derives m/44'/236'/0'/chain/index. chain is ExternalChain
// for receive addresses and InternalChain for change.
func (w *Wallet) DeriveFundingKey(chain, index uint32) (*KeyPair, error) {
	return w.Derive(KeyPath{Account: FundingAccount, Chain: chain, Index: index})
}

// DeriveIdentityKey derives the identity key at m/44'/236'/1'/0/0.
func (w *Wallet) DeriveIdentityKey() (*KeyPair, error) {
	return w.Derive(IdentityPath)
}
