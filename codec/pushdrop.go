// Package codec encodes and decodes the ordered field list carried by a
// voicemail token's locking script.
//
// Script layout (PushDrop):
//
//	<lockKey 33B> OP_CHECKSIG <f0> <f1> ... <fn> {OP_2DROP}* [OP_DROP]
//
// The fields are pushed after the signature check and dropped again, so the
// output is spendable by a single signature for lockKey while carrying
// arbitrary data.
package codec

import (
	"context"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"

	"github.com/bitfsorg/libvoicemail-go/token"
)

// MinFields is the minimum number of fields a token must carry.
const MinFields = 2

// CompressedPubKeyLen is the length of a compressed secp256k1 public key.
const CompressedPubKeyLen = 33

const (
	opSmallIntMin = 0x51 // OP_1
	opSmallIntMax = 0x60 // OP_16
)

// Decoded is the result of parsing a PushDrop locking script.
type Decoded struct {
	LockingKey *ec.PublicKey
	Fields     [][]byte
}

// KeyDeriver derives the public key an output is locked to.
type KeyDeriver interface {
	DerivePublicKey(ctx context.Context, args token.KeyArgs, forSelf bool) (*ec.PublicKey, error)
}

// Lock builds a PushDrop locking script carrying fields, spendable by a
// signature for lockKey.
func Lock(lockKey *ec.PublicKey, fields [][]byte) (*script.Script, error) {
	if lockKey == nil {
		return nil, ErrNilLockKey
	}
	if len(fields) < MinFields {
		return nil, ErrTooFewFields
	}

	s := &script.Script{}
	if err := s.AppendPushData(lockKey.Compressed()); err != nil {
		return nil, fmt.Errorf("codec: push lock key: %w", err)
	}
	if err := s.AppendOpcodes(script.OpCHECKSIG); err != nil {
		return nil, fmt.Errorf("codec: append OP_CHECKSIG: %w", err)
	}
	for i, f := range fields {
		if err := s.AppendPushData(f); err != nil {
			return nil, fmt.Errorf("codec: push field %d: %w", i, err)
		}
	}
	for n := len(fields); n > 0; n -= 2 {
		var op byte = script.Op2DROP
		if n == 1 {
			op = script.OpDROP
		}
		if err := s.AppendOpcodes(op); err != nil {
			return nil, fmt.Errorf("codec: append drop: %w", err)
		}
	}
	return s, nil
}

// Encode derives the lock key for args through deriver and locks fields to it.
func Encode(ctx context.Context, deriver KeyDeriver, fields [][]byte, args token.KeyArgs, forSelf bool) (*script.Script, error) {
	lockKey, err := deriver.DerivePublicKey(ctx, args, forSelf)
	if err != nil {
		return nil, fmt.Errorf("codec: derive lock key: %w", err)
	}
	return Lock(lockKey, fields)
}

// Decode parses a PushDrop locking script. It fails closed: any deviation
// from the layout, or fewer than MinFields fields, returns an error wrapping
// token.ErrDecodeCorruption.
func Decode(lockingScript []byte) (*Decoded, error) {
	chunks, err := script.NewFromBytes(lockingScript).Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScript, err)
	}
	if len(chunks) < 2 {
		return nil, fmt.Errorf("%w: %d chunks", ErrMalformedScript, len(chunks))
	}
	if len(chunks[0].Data) != CompressedPubKeyLen {
		return nil, fmt.Errorf("%w: lock key must be %d bytes", ErrMalformedScript, CompressedPubKeyLen)
	}
	lockKey, err := ec.PublicKeyFromBytes(chunks[0].Data)
	if err != nil {
		return nil, fmt.Errorf("%w: lock key: %v", ErrMalformedScript, err)
	}
	if chunks[1].Op != script.OpCHECKSIG {
		return nil, fmt.Errorf("%w: expected OP_CHECKSIG, got 0x%02x", ErrMalformedScript, chunks[1].Op)
	}

	var fields [][]byte
	i := 2
	for ; i < len(chunks); i++ {
		data, ok := pushedData(chunks[i])
		if !ok {
			break
		}
		fields = append(fields, data)
	}

	dropped := 0
	for ; i < len(chunks); i++ {
		switch chunks[i].Op {
		case script.Op2DROP:
			dropped += 2
		case script.OpDROP:
			dropped++
		default:
			return nil, fmt.Errorf("%w: unexpected opcode 0x%02x", ErrMalformedScript, chunks[i].Op)
		}
	}
	if dropped != len(fields) {
		return nil, fmt.Errorf("%w: %d fields but %d dropped", ErrMalformedScript, len(fields), dropped)
	}
	if len(fields) < MinFields {
		return nil, ErrTooFewFields
	}
	return &Decoded{LockingKey: lockKey, Fields: fields}, nil
}

// pushedData returns the bytes a chunk pushes onto the stack.
func pushedData(c *script.ScriptChunk) ([]byte, bool) {
	switch {
	case c.Op <= script.OpPUSHDATA4:
		if len(c.Data) == 0 {
			return []byte{}, true
		}
		return c.Data, true
	case c.Op >= opSmallIntMin && c.Op <= opSmallIntMax:
		return []byte{c.Op - opSmallIntMin + 1}, true
	default:
		return nil, false
	}
}
