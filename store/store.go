// Package store persists the local wallet state behind a voicemail identity:
// tracked outputs grouped by basket, raw transactions, acknowledged relay
// notification ids and key index counters.
package store

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bitfsorg/libvoicemail-go/token"
)

// OutputRecord is a wallet-tracked output.
type OutputRecord struct {
	Outpoint      token.Outpoint
	Satoshis      uint64
	LockingScript []byte
	Basket        token.Basket
	Tags          []string
	CreatedAt     time.Time

	// KeyChain and KeyIndex locate the funding key of wallet-owned P2PKH
	// outputs; HasKey is false for every other output.
	KeyChain uint32
	KeyIndex uint32
	HasKey   bool

	// Seq orders records by insertion; assigned by the store.
	Seq uint64
}

// HasTag reports whether the record carries tag.
func (r *OutputRecord) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// OutputStore tracks outputs by outpoint.
type OutputStore interface {
	// PutOutput inserts or replaces a record. A zero Seq is assigned the next sequence.
	PutOutput(rec *OutputRecord) error

	// GetOutput returns the record for op, or ErrOutputNotFound.
	GetOutput(op token.Outpoint) (*OutputRecord, error)

	// DeleteOutput removes the record for op, or returns ErrOutputNotFound.
	DeleteOutput(op token.Outpoint) error

	// ListOutputs returns the records in basket, in insertion order.
	ListOutputs(basket token.Basket) ([]*OutputRecord, error)
}

// TxStore keeps raw transactions by display-order txid.
type TxStore interface {
	PutTx(txid string, raw []byte) error
	GetTx(txid string) ([]byte, error)
}

// AckStore remembers which relay notifications were acknowledged.
type AckStore interface {
	MarkAcknowledged(ids ...string) error
	IsAcknowledged(id string) (bool, error)
}

// Store is the full local state of one identity.
type Store interface {
	OutputStore
	TxStore
	AckStore

	// NextIndex returns the next value of the named counter, starting at 0.
	NextIndex(name string) (uint32, error)

	Close() error
}

func validOutpoint(op token.Outpoint) error {
	if op.TxID == "" {
		return fmt.Errorf("%w: empty txid", ErrInvalidOutpoint)
	}
	return nil
}

func copyRecord(r *OutputRecord) *OutputRecord {
	c := *r
	c.LockingScript = slices.Clone(r.LockingScript)
	c.Tags = slices.Clone(r.Tags)
	return &c
}

// ---------------------------------------------------------------------------
// MemStore implements Store in memory.
// ---------------------------------------------------------------------------

// MemStore is an in-memory Store for tests and ephemeral wallets.
type MemStore struct {
	mu       sync.RWMutex
	outputs  map[token.Outpoint]*OutputRecord
	txs      map[string][]byte
	acks     map[string]struct{}
	counters map[string]uint32
	seq      uint64
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		outputs:  make(map[token.Outpoint]*OutputRecord),
		txs:      make(map[string][]byte),
		acks:     make(map[string]struct{}),
		counters: make(map[string]uint32),
	}
}

// PutOutput inserts or replaces a record.
func (s *MemStore) PutOutput(rec *OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: output record", ErrNilParam)
	}
	if err := validOutpoint(rec.Outpoint); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyRecord(rec)
	if c.Seq == 0 {
		s.seq++
		c.Seq = s.seq
		rec.Seq = c.Seq
	}
	s.outputs[c.Outpoint] = c
	return nil
}

// GetOutput returns the record for op.
func (s *MemStore) GetOutput(op token.Outpoint) (*OutputRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.outputs[op]
	if !ok {
		return nil, ErrOutputNotFound
	}
	return copyRecord(r), nil
}

// DeleteOutput removes the record for op.
func (s *MemStore) DeleteOutput(op token.Outpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outputs[op]; !ok {
		return ErrOutputNotFound
	}
	delete(s.outputs, op)
	return nil
}

// ListOutputs returns the records in basket, in insertion order.
func (s *MemStore) ListOutputs(basket token.Basket) ([]*OutputRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*OutputRecord
	for _, r := range s.outputs {
		if r.Basket == basket {
			out = append(out, copyRecord(r))
		}
	}
	sortBySeq(out)
	return out, nil
}

// PutTx stores a raw transaction.
func (s *MemStore) PutTx(txid string, raw []byte) error {
	if txid == "" || len(raw) == 0 {
		return fmt.Errorf("%w: txid or raw tx", ErrNilParam)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[txid] = slices.Clone(raw)
	return nil
}

// GetTx returns a raw transaction.
func (s *MemStore) GetTx(txid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.txs[txid]
	if !ok {
		return nil, ErrTxNotFound
	}
	return slices.Clone(raw), nil
}

// MarkAcknowledged records ids as acknowledged.
func (s *MemStore) MarkAcknowledged(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			return ErrEmptyID
		}
		s.acks[id] = struct{}{}
	}
	return nil
}

// IsAcknowledged reports whether id was acknowledged.
func (s *MemStore) IsAcknowledged(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.acks[id]
	return ok, nil
}

// NextIndex returns the next value of the named counter.
func (s *MemStore) NextIndex(name string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.counters[name]
	s.counters[name] = v + 1
	return v, nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

func sortBySeq(recs []*OutputRecord) {
	slices.SortFunc(recs, func(a, b *OutputRecord) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}
