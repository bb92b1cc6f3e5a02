package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// Builder assembles an unsigned transaction from caller inputs and outputs,
// adding funding UTXOs and a change output as needed.
//
// Input layout:
//
//	[0, len(Inputs))        caller inputs, in order
//	[len(Inputs), ...)      funding inputs, in Funding order
//
// Output layout:
//
//	[0, len(Outputs))       caller outputs, in order
//	[last]                  change (omitted when below MinChange)
type Builder struct {
	FeeRate      uint64
	Inputs       []Input
	Outputs      []Output
	Funding      []*UTXO
	ChangeScript *script.Script
}

// Plan is a built, not yet signed, transaction.
type Plan struct {
	Tx           *transaction.Transaction
	Funding      []*UTXO // funding UTXOs actually used
	FundingStart int     // index of the first funding input
	ChangeVout   int     // -1 when there is no change output
	Change       uint64
	Fee          uint64
}

// Build selects funding and assembles the transaction.
func (b *Builder) Build() (*Plan, error) {
	if len(b.Outputs) == 0 && len(b.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs or outputs", ErrNoOutputs)
	}
	var have, want uint64
	for i, in := range b.Inputs {
		if in.Source == nil {
			return nil, fmt.Errorf("%w: input %d source output", ErrNilParam, i)
		}
		have += in.Source.Satoshis
	}
	for i, out := range b.Outputs {
		if out.LockingScript == nil {
			return nil, fmt.Errorf("%w: output %d locking script", ErrNilParam, i)
		}
		want += out.Satoshis
	}

	var (
		selected []*UTXO
		fee      uint64
		next     int
	)
	for {
		fee = EstimateFee(b.estimateSize(selected), b.FeeRate)
		// A transaction always needs at least one output: when the caller
		// supplies none, the change output must survive.
		if have >= want+fee && (len(b.Outputs) > 0 || have-want-fee >= MinChange) {
			break
		}
		if next >= len(b.Funding) {
			return nil, fmt.Errorf("%w: need %d sat, have %d sat",
				ErrInsufficientFunds, want+fee+boolToSat(len(b.Outputs) == 0), have)
		}
		u := b.Funding[next]
		next++
		if u == nil {
			continue
		}
		selected = append(selected, u)
		have += u.Satoshis
	}

	change := have - want - fee
	if change < MinChange {
		change = 0
	}
	if change > 0 && b.ChangeScript == nil {
		return nil, fmt.Errorf("%w: change script", ErrNilParam)
	}

	t := transaction.NewTransaction()
	for _, in := range b.Inputs {
		if err := addInput(t, in.Outpoint.TxID, in.Outpoint.Index, in.Source); err != nil {
			return nil, err
		}
	}
	for _, u := range selected {
		src := &transaction.TransactionOutput{
			Satoshis:      u.Satoshis,
			LockingScript: script.NewFromBytes(u.LockingScript),
		}
		if err := addInput(t, u.Outpoint.TxID, u.Outpoint.Index, src); err != nil {
			return nil, err
		}
	}
	for _, out := range b.Outputs {
		t.AddOutput(&transaction.TransactionOutput{
			Satoshis:      out.Satoshis,
			LockingScript: out.LockingScript,
		})
	}
	changeVout := -1
	if change > 0 {
		changeVout = len(t.Outputs)
		t.AddOutput(&transaction.TransactionOutput{
			Satoshis:      change,
			LockingScript: b.ChangeScript,
		})
	}

	return &Plan{
		Tx:           t,
		Funding:      selected,
		FundingStart: len(b.Inputs),
		ChangeVout:   changeVout,
		Change:       change,
		Fee:          have - want - change,
	}, nil
}

// SignFunding signs every funding input of the plan with its UTXO key.
func (p *Plan) SignFunding() error {
	for i, u := range p.Funding {
		if err := SignP2PKHInput(p.Tx, p.FundingStart+i, u.PrivateKey); err != nil {
			return err
		}
	}
	return nil
}

// estimateSize assumes a change output is present.
func (b *Builder) estimateSize(funding []*UTXO) int {
	size := 4 + 4 + varIntLen(len(b.Inputs)+len(funding)) + varIntLen(len(b.Outputs)+1)
	for _, in := range b.Inputs {
		size += inputSize(in.UnlockLen)
	}
	for range funding {
		size += inputSize(P2PKHUnlockLen)
	}
	for _, out := range b.Outputs {
		size += outputSize(len(*out.LockingScript))
	}
	return size + outputSize(25)
}

func addInput(t *transaction.Transaction, txid string, vout uint32, src *transaction.TransactionOutput) error {
	h, err := HashFromTxID(txid)
	if err != nil {
		return err
	}
	t.AddInput(&transaction.TransactionInput{
		SourceTXID:       h,
		SourceTxOutIndex: vout,
		SequenceNumber:   transaction.DefaultSequenceNumber,
	})
	t.Inputs[len(t.Inputs)-1].SetSourceTxOutput(src)
	return nil
}

func boolToSat(b bool) uint64 {
	if b {
		return MinChange
	}
	return 0
}
