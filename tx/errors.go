package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the inputs and funding UTXOs cannot cover outputs and fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrNoOutputs indicates a transaction that would carry no outputs at all.
	ErrNoOutputs = errors.New("tx: transaction has no outputs")

	// ErrInvalidTxID indicates a transaction id that is not 32 bytes of hex.
	ErrInvalidTxID = errors.New("tx: invalid transaction id")

	// ErrSigningFailed indicates transaction signing failed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")

	// ErrInputIndex indicates an input index outside the transaction.
	ErrInputIndex = errors.New("tx: input index out of range")
)
