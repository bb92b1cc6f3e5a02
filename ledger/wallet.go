// Package ledger is the wallet boundary of the voicemail system: key
// derivation and field encryption bound to the identity key, two-phase
// transaction construction, and basket-tracked outputs.
//
// Wallet is what the rest of the module consumes. LocalWallet implements it
// over a store.Store and a Chain.
package ledger

import (
	"context"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/bitfsorg/libvoicemail-go/token"
)

// KeyWallet is the key half of a wallet: identity, BRC-42 derivation,
// per-counterparty encryption and signing.
type KeyWallet interface {
	// IdentityKey returns the wallet's public identity key.
	IdentityKey(ctx context.Context) (*ec.PublicKey, error)

	// DerivePublicKey returns the child key named by args. With forSelf the
	// key is the one this wallet can sign for; otherwise it is the key the
	// counterparty can sign for.
	DerivePublicKey(ctx context.Context, args token.KeyArgs, forSelf bool) (*ec.PublicKey, error)

	Encrypt(ctx context.Context, args token.KeyArgs, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, args token.KeyArgs, ciphertext []byte) ([]byte, error)

	// CreateSignature signs hash with the child private key named by args
	// and returns a DER signature.
	CreateSignature(ctx context.Context, args token.KeyArgs, hash []byte) ([]byte, error)
}

// Wallet adds transaction construction and output tracking to KeyWallet.
type Wallet interface {
	KeyWallet

	// CreateAction funds and builds a transaction. Without caller inputs it
	// is broadcast at once; otherwise the result carries a Signable and the
	// caller completes it with SignAction or AbortAction.
	CreateAction(ctx context.Context, req ActionRequest) (*ActionResult, error)
	SignAction(ctx context.Context, reference string, unlocks map[int]*script.Script) (*ActionResult, error)
	AbortAction(ctx context.Context, reference string) error

	// ListOutputs returns the unspent outputs tracked in basket and a bundle
	// holding their transactions.
	ListOutputs(ctx context.Context, basket token.Basket) (*OutputList, error)

	// InternalizeOutput starts tracking an output of a foreign transaction.
	// Internalizing a tracked output returns it unchanged.
	InternalizeOutput(ctx context.Context, req InternalizeRequest) (*Output, error)

	// RelinquishOutput stops tracking an output without spending it.
	RelinquishOutput(ctx context.Context, op token.Outpoint) error

	// MoveOutput reassigns a tracked output to basket.
	MoveOutput(ctx context.Context, op token.Outpoint, basket token.Basket) error
}

// ActionInput spends a tracked output. UnlockLen estimates the size of the
// caller's unlocking script for fee purposes.
type ActionInput struct {
	Outpoint  token.Outpoint
	UnlockLen int
}

// ActionOutput is a caller output. A non-empty Basket makes the wallet track it.
type ActionOutput struct {
	LockingScript *script.Script
	Satoshis      uint64
	Basket        token.Basket
	Tags          []string
}

// ActionRequest describes a transaction to build.
type ActionRequest struct {
	Description string
	Inputs      []ActionInput
	Outputs     []ActionOutput
}

// Signable is a built transaction awaiting caller unlocking scripts. The
// source outputs of every input are attached, so tx.SigHash works on it.
type Signable struct {
	Reference string
	Tx        *transaction.Transaction
}

// ActionResult reports a broadcast transaction, or a Signable when the
// caller still has inputs to unlock.
type ActionResult struct {
	TxID     string
	RawTx    []byte
	Signable *Signable
}

// Output is a tracked, unspent output.
type Output struct {
	Outpoint  token.Outpoint
	Satoshis  uint64
	Basket    token.Basket
	Tags      []string
	CreatedAt time.Time
}

// OutputList is the content of one basket.
type OutputList struct {
	Outputs []*Output
	Bundle  *Bundle
}

// InternalizeRequest names an output of RawTx to track in Basket.
type InternalizeRequest struct {
	RawTx       []byte
	OutputIndex uint32
	Basket      token.Basket
	Tags        []string
}
