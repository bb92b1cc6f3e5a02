package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libvoicemail-go/token"
)

var (
	bucketOutputs  = []byte("outputs")
	bucketTxs      = []byte("txs")
	bucketAcks     = []byte("acks")
	bucketCounters = []byte("counters")
)

// BoltStore persists a Store in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketOutputs, bucketTxs, bucketAcks, bucketCounters} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func outpointKey(op token.Outpoint) []byte { return []byte(op.String()) }

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// PutOutput inserts or replaces a record.
func (s *BoltStore) PutOutput(rec *OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: output record", ErrNilParam)
	}
	if err := validOutpoint(rec.Outpoint); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOutputs)
		if rec.Seq == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("boltstore: next sequence: %w", err)
			}
			rec.Seq = seq
		}
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		if err := b.Put(outpointKey(rec.Outpoint), data); err != nil {
			return fmt.Errorf("boltstore: put output: %w", err)
		}
		return nil
	})
}

// GetOutput returns the record for op.
func (s *BoltStore) GetOutput(op token.Outpoint) (*OutputRecord, error) {
	var rec OutputRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketOutputs).Get(outpointKey(op))
		if data == nil {
			return ErrOutputNotFound
		}
		if err := decodeGob(data, &rec); err != nil {
			return fmt.Errorf("boltstore: decode output: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteOutput removes the record for op.
func (s *BoltStore) DeleteOutput(op token.Outpoint) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketOutputs)
		key := outpointKey(op)
		if b.Get(key) == nil {
			return ErrOutputNotFound
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("boltstore: delete output: %w", err)
		}
		return nil
	})
}

// ListOutputs returns the records in basket, in insertion order.
func (s *BoltStore) ListOutputs(basket token.Basket) ([]*OutputRecord, error) {
	var out []*OutputRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutputs).ForEach(func(_, v []byte) error {
			var rec OutputRecord
			if err := decodeGob(v, &rec); err != nil {
				return fmt.Errorf("boltstore: decode output: %w", err)
			}
			if rec.Basket == basket {
				out = append(out, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortBySeq(out)
	return out, nil
}

// PutTx stores a raw transaction.
func (s *BoltStore) PutTx(txid string, raw []byte) error {
	if txid == "" || len(raw) == 0 {
		return fmt.Errorf("%w: txid or raw tx", ErrNilParam)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketTxs).Put([]byte(txid), raw); err != nil {
			return fmt.Errorf("boltstore: put tx: %w", err)
		}
		return nil
	})
}

// GetTx returns a raw transaction.
func (s *BoltStore) GetTx(txid string) ([]byte, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTxs).Get([]byte(txid))
		if data == nil {
			return ErrTxNotFound
		}
		raw = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// MarkAcknowledged records ids as acknowledged.
func (s *BoltStore) MarkAcknowledged(ids ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAcks)
		for _, id := range ids {
			if id == "" {
				return ErrEmptyID
			}
			if err := b.Put([]byte(id), []byte{1}); err != nil {
				return fmt.Errorf("boltstore: put ack: %w", err)
			}
		}
		return nil
	})
}

// IsAcknowledged reports whether id was acknowledged.
func (s *BoltStore) IsAcknowledged(id string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(bucketAcks).Get([]byte(id)) != nil
		return nil
	})
	return ok, err
}

// NextIndex returns the next value of the named counter.
func (s *BoltStore) NextIndex(name string) (uint32, error) {
	var v uint32
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		if cur := b.Get([]byte(name)); len(cur) == 4 {
			v = binary.BigEndian.Uint32(cur)
		}
		next := make([]byte, 4)
		binary.BigEndian.PutUint32(next, v+1)
		if err := b.Put([]byte(name), next); err != nil {
			return fmt.Errorf("boltstore: put counter: %w", err)
		}
		return nil
	})
	return v, err
}
