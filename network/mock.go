package network

import "context"

// MockNode is a test double for Node. Unset functions panic.
type MockNode struct {
	BroadcastTxFn func(ctx context.Context, rawTx []byte) (string, error)
	GetRawTxFn    func(ctx context.Context, txid string) ([]byte, error)
	GetTxOutFn    func(ctx context.Context, txid string, vout uint32) (*TxOut, error)
}

var _ Node = (*MockNode)(nil)

func (m *MockNode) BroadcastTx(ctx context.Context, rawTx []byte) (string, error) {
	return m.BroadcastTxFn(ctx, rawTx)
}
func (m *MockNode) GetRawTx(ctx context.Context, txid string) ([]byte, error) {
	return m.GetRawTxFn(ctx, txid)
}
func (m *MockNode) GetTxOut(ctx context.Context, txid string, vout uint32) (*TxOut, error) {
	return m.GetTxOutFn(ctx, txid, vout)
}
