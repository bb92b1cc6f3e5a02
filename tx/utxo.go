// Package tx assembles and signs the transactions behind voicemail tokens:
// funding selection, fee estimation, change, and P2PKH signing of the
// wallet's own funding inputs.
package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"

	"github.com/bitfsorg/libvoicemail-go/token"
)

const (
	// DefaultFeeRate is the default fee rate in sat/KB.
	DefaultFeeRate = uint64(1)

	// MinChange is the smallest change output worth creating, in satoshis.
	MinChange = uint64(1)

	// TxIDLen is the length of a transaction ID.
	TxIDLen = 32

	// P2PKHUnlockLen is the estimated size of a P2PKH unlocking script:
	// push(sig 72 + flag) + push(pubkey 33).
	P2PKHUnlockLen = 1 + 73 + 1 + 33

	// SignatureUnlockLen is the estimated size of a single-signature unlocking
	// script such as the one spending a token: push(sig 72 + flag).
	SignatureUnlockLen = 1 + 73
)

// UTXO is a wallet-owned P2PKH output available for funding.
type UTXO struct {
	Outpoint      token.Outpoint
	Satoshis      uint64
	LockingScript []byte
	PrivateKey    *ec.PrivateKey // signing key (never serialized)
}

// Input is a caller-supplied input. Its unlocking script is produced by the
// caller after the transaction is built.
type Input struct {
	Outpoint  token.Outpoint
	Source    *transaction.TransactionOutput
	UnlockLen int
}

// Output is a caller-supplied output.
type Output struct {
	LockingScript *script.Script
	Satoshis      uint64
}

// HashFromTxID parses a display-order hex txid.
func HashFromTxID(txid string) (*chainhash.Hash, error) {
	h, err := chainhash.NewHashFromHex(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTxID, txid, err)
	}
	return h, nil
}
