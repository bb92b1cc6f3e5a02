package ledger

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("ledger: required parameter is nil")

	// ErrUnknownOutput indicates the outpoint is not tracked or not on chain.
	ErrUnknownOutput = errors.New("ledger: unknown output")

	// ErrMissingTx indicates a transaction is absent from the bundle or store.
	ErrMissingTx = errors.New("ledger: transaction not in bundle")

	// ErrOutputIndex indicates an output index beyond the transaction's outputs.
	ErrOutputIndex = errors.New("ledger: output index out of range")

	// ErrOutputSpent indicates the output was already spent.
	ErrOutputSpent = errors.New("ledger: output already spent")

	// ErrOutputReserved indicates the output is an input of a pending action.
	ErrOutputReserved = errors.New("ledger: output reserved by a pending action")

	// ErrUnknownAction indicates no pending action has the given reference.
	ErrUnknownAction = errors.New("ledger: unknown action reference")

	// ErrMissingUnlock indicates SignAction lacks an unlocking script for a caller input.
	ErrMissingUnlock = errors.New("ledger: missing unlocking script")

	// ErrDoubleSpend indicates a transaction spends an already spent output.
	ErrDoubleSpend = errors.New("ledger: double spend")

	// ErrScriptVerify indicates an input's unlocking script does not satisfy its lock.
	ErrScriptVerify = errors.New("ledger: script verification failed")

	// ErrValueOverflow indicates outputs exceed inputs.
	ErrValueOverflow = errors.New("ledger: outputs exceed inputs")

	// ErrInvalidHint indicates a malformed notification payload hint.
	ErrInvalidHint = errors.New("ledger: invalid hint")

	// ErrNoMatchingOutput indicates a funding transaction pays none of the wallet's keys.
	ErrNoMatchingOutput = errors.New("ledger: no output pays the funding key")
)
