package network

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// Node is the subset of a BSV node the voicemail wallet relies on.
type Node interface {
	// BroadcastTx submits a raw transaction and returns its txid.
	BroadcastTx(ctx context.Context, rawTx []byte) (string, error)

	// GetRawTx returns a transaction by txid, or ErrTxNotFound.
	GetRawTx(ctx context.Context, txid string) ([]byte, error)

	// GetTxOut returns an unspent output, or nil when it is spent or unknown.
	GetTxOut(ctx context.Context, txid string, vout uint32) (*TxOut, error)
}

// TxOut is an unspent output as reported by gettxout.
type TxOut struct {
	Satoshis      uint64
	LockingScript []byte
	Confirmations int64
}

// Compile-time interface check.
var _ Node = (*RPCClient)(nil)

// btcToSat converts a node BTC amount to satoshis.
func btcToSat(btc float64) uint64 {
	return uint64(math.Round(btc * 1e8))
}

// BroadcastTx calls sendrawtransaction. A transaction the node already has
// is reported as success.
func (c *RPCClient) BroadcastTx(ctx context.Context, rawTx []byte) (string, error) {
	var txid string
	err := c.Call(ctx, "sendrawtransaction", []any{hex.EncodeToString(rawTx)}, &txid)
	var rpcErr *RPCError
	switch {
	case err == nil:
		return txid, nil
	case errors.As(err, &rpcErr) && rpcErr.Code == rpcCodeInChain:
		return "", nil
	case errors.As(err, &rpcErr) && (rpcErr.Code == rpcCodeRejected || rpcErr.Code == rpcCodeVerifyFail):
		return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, rpcErr.Message)
	default:
		return "", err
	}
}

// GetRawTx calls getrawtransaction in non-verbose mode.
func (c *RPCClient) GetRawTx(ctx context.Context, txid string) ([]byte, error) {
	var rawHex string
	if err := c.Call(ctx, "getrawtransaction", []any{txid, false}, &rawHex); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == rpcCodeNoSuchTx {
			return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txid)
		}
		return nil, err
	}
	data, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid tx hex: %w", ErrInvalidResponse, err)
	}
	return data, nil
}

type gettxoutResult struct {
	Value         float64 `json:"value"`
	Confirmations int64   `json:"confirmations"`
	ScriptPubKey  struct {
		Hex string `json:"hex"`
	} `json:"scriptPubKey"`
}

// GetTxOut calls gettxout including the mempool. JSON null means spent or unknown.
func (c *RPCClient) GetTxOut(ctx context.Context, txid string, vout uint32) (*TxOut, error) {
	var result *gettxoutResult
	if err := c.Call(ctx, "gettxout", []any{txid, vout, true}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	script, err := hex.DecodeString(result.ScriptPubKey.Hex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid script hex: %w", ErrInvalidResponse, err)
	}
	return &TxOut{
		Satoshis:      btcToSat(result.Value),
		LockingScript: script,
		Confirmations: result.Confirmations,
	}, nil
}
