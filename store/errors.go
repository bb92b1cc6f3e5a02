package store

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("store: required parameter is nil")

	// ErrOutputNotFound indicates no output record exists for the outpoint.
	ErrOutputNotFound = errors.New("store: output not found")

	// ErrTxNotFound indicates the raw transaction is not stored.
	ErrTxNotFound = errors.New("store: transaction not found")

	// ErrInvalidOutpoint indicates an outpoint with an empty txid.
	ErrInvalidOutpoint = errors.New("store: invalid outpoint")

	// ErrEmptyID indicates an empty notification id.
	ErrEmptyID = errors.New("store: empty id")
)
