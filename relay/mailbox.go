package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.etcd.io/bbolt"
)

// Mailbox stores notifications per recipient.
type Mailbox interface {
	// Put stores n. n.ID and n.Recipient must be set.
	Put(n *Notification) error

	// List returns the notifications of recipient in box, oldest first.
	List(recipient, box string) ([]*Notification, error)

	// Ack removes the listed notifications of recipient and returns how many
	// existed. Ids of other recipients are never touched.
	Ack(recipient string, ids []string) (int, error)

	Close() error
}

func validStored(n *Notification) error {
	if n == nil || n.ID == "" || n.Recipient == "" {
		return fmt.Errorf("%w: id and recipient are required", ErrInvalidMessage)
	}
	return nil
}

// storedNotification keeps the insertion order next to the notification.
type storedNotification struct {
	Seq uint64        `json:"seq"`
	N   *Notification `json:"notification"`
}

func sortStored(recs []storedNotification) []*Notification {
	slices.SortFunc(recs, func(a, b storedNotification) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	out := make([]*Notification, len(recs))
	for i, r := range recs {
		out[i] = r.N
	}
	return out
}

func copyNotification(n *Notification) *Notification {
	c := *n
	c.Payload = slices.Clone(n.Payload)
	return &c
}

// MemMailbox is an in-memory Mailbox.
type MemMailbox struct {
	mu    sync.Mutex
	boxes map[string]map[string]storedNotification
	seq   uint64
}

// Compile-time interface check.
var _ Mailbox = (*MemMailbox)(nil)

// NewMemMailbox creates an empty in-memory mailbox.
func NewMemMailbox() *MemMailbox {
	return &MemMailbox{boxes: make(map[string]map[string]storedNotification)}
}

// Put stores n.
func (m *MemMailbox) Put(n *Notification) error {
	if err := validStored(n); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	box, ok := m.boxes[n.Recipient]
	if !ok {
		box = make(map[string]storedNotification)
		m.boxes[n.Recipient] = box
	}
	m.seq++
	box[n.ID] = storedNotification{Seq: m.seq, N: copyNotification(n)}
	return nil
}

// List returns the notifications of recipient in box.
func (m *MemMailbox) List(recipient, box string) ([]*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []storedNotification
	for _, r := range m.boxes[recipient] {
		if r.N.MessageBox == box {
			recs = append(recs, storedNotification{Seq: r.Seq, N: copyNotification(r.N)})
		}
	}
	return sortStored(recs), nil
}

// Ack removes ids of recipient.
func (m *MemMailbox) Ack(recipient string, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.boxes[recipient][id]; ok {
			delete(m.boxes[recipient], id)
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (m *MemMailbox) Close() error { return nil }

var bucketMailboxes = []byte("mailboxes")

// BoltMailbox persists notifications in a bbolt database, one nested bucket
// per recipient.
type BoltMailbox struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Mailbox = (*BoltMailbox)(nil)

// OpenBoltMailbox opens or creates the mailbox database at dbPath.
func OpenBoltMailbox(dbPath string) (*BoltMailbox, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("relay: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMailboxes)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("relay: create bucket: %w", err)
	}
	return &BoltMailbox{db: db}, nil
}

// Put stores n.
func (m *BoltMailbox) Put(n *Notification) error {
	if err := validStored(n); err != nil {
		return err
	}
	return m.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketMailboxes)
		b, err := root.CreateBucketIfNotExists([]byte(n.Recipient))
		if err != nil {
			return fmt.Errorf("relay: recipient bucket: %w", err)
		}
		seq, err := root.NextSequence()
		if err != nil {
			return fmt.Errorf("relay: next sequence: %w", err)
		}
		data, err := json.Marshal(storedNotification{Seq: seq, N: n})
		if err != nil {
			return fmt.Errorf("relay: encode notification: %w", err)
		}
		return b.Put([]byte(n.ID), data)
	})
}

// List returns the notifications of recipient in box.
func (m *BoltMailbox) List(recipient, box string) ([]*Notification, error) {
	var recs []storedNotification
	err := m.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMailboxes).Bucket([]byte(recipient))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var r storedNotification
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("relay: decode notification: %w", err)
			}
			if r.N != nil && r.N.MessageBox == box {
				recs = append(recs, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sortStored(recs), nil
}

// Ack removes ids of recipient.
func (m *BoltMailbox) Ack(recipient string, ids []string) (int, error) {
	n := 0
	err := m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMailboxes).Bucket([]byte(recipient))
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				continue
			}
			if err := b.Delete([]byte(id)); err != nil {
				return fmt.Errorf("relay: delete notification: %w", err)
			}
			n++
		}
		return nil
	})
	return n, err
}

// Close closes the database.
func (m *BoltMailbox) Close() error { return m.db.Close() }
