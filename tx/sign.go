package tx

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	sighash "github.com/bsv-blockchain/go-sdk/transaction/sighash"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"
)

// BuildP2PKHScript creates a P2PKH locking script for the given public key.
func BuildP2PKHScript(pubKey *ec.PublicKey) (*script.Script, error) {
	if pubKey == nil {
		return nil, fmt.Errorf("%w: public key", ErrNilParam)
	}
	addr, err := script.NewAddressFromPublicKey(pubKey, true)
	if err != nil {
		return nil, fmt.Errorf("%w: address from pubkey: %w", ErrScriptBuild, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock script: %w", ErrScriptBuild, err)
	}
	return lockScript, nil
}

// SigHash computes the SIGHASH_ALL|FORKID digest for input idx. The input's
// source output must be attached.
func SigHash(t *transaction.Transaction, idx int) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transaction", ErrNilParam)
	}
	if idx < 0 || idx >= len(t.Inputs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInputIndex, idx, len(t.Inputs))
	}
	h, err := t.CalcInputSignatureHash(uint32(idx), sighash.AllForkID)
	if err != nil {
		return nil, fmt.Errorf("%w: sighash for input %d: %w", ErrSigningFailed, idx, err)
	}
	return h, nil
}

// SignatureUnlock builds an unlocking script pushing a DER signature with
// the SIGHASH_ALL|FORKID flag appended.
func SignatureUnlock(derSig []byte) (*script.Script, error) {
	if len(derSig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrSigningFailed)
	}
	s := &script.Script{}
	sigBytes := append(append([]byte{}, derSig...), byte(sighash.AllForkID))
	if err := s.AppendPushData(sigBytes); err != nil {
		return nil, fmt.Errorf("%w: push sig: %w", ErrScriptBuild, err)
	}
	return s, nil
}

// SignP2PKHInput signs input idx as a P2PKH spend by key and sets its
// unlocking script: <sig+flag> <pubkey>.
func SignP2PKHInput(t *transaction.Transaction, idx int, key *ec.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("%w: input %d key", ErrNilParam, idx)
	}
	h, err := SigHash(t, idx)
	if err != nil {
		return err
	}
	sig, err := key.Sign(h)
	if err != nil {
		return fmt.Errorf("%w: input %d: %w", ErrSigningFailed, idx, err)
	}
	unlock, err := SignatureUnlock(sig.Serialize())
	if err != nil {
		return err
	}
	if err := unlock.AppendPushData(key.PubKey().Compressed()); err != nil {
		return fmt.Errorf("%w: push pubkey: %w", ErrScriptBuild, err)
	}
	t.Inputs[idx].UnlockingScript = unlock
	return nil
}
