package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/token"
)

func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("mem", func(t *testing.T) { fn(t, NewMemStore()) })
	t.Run("bolt", func(t *testing.T) { fn(t, tempBoltStore(t)) })
}

func testOutpoint(c string, idx uint32) token.Outpoint {
	return token.Outpoint{TxID: strings.Repeat(c, 64), Index: idx}
}

func TestOutputs_PutGetDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		rec := &OutputRecord{
			Outpoint:      testOutpoint("a", 0),
			Satoshis:      1000,
			LockingScript: []byte{0x01, 0x02},
			Basket:        token.BasketInbox,
			Tags:          []string{token.TagSelfAddressed},
			CreatedAt:     time.Unix(1700000000, 0).UTC(),
		}
		require.NoError(t, s.PutOutput(rec))
		assert.NotZero(t, rec.Seq)

		got, err := s.GetOutput(rec.Outpoint)
		require.NoError(t, err)
		assert.Equal(t, rec.Satoshis, got.Satoshis)
		assert.Equal(t, rec.LockingScript, got.LockingScript)
		assert.Equal(t, rec.Basket, got.Basket)
		assert.True(t, got.HasTag(token.TagSelfAddressed))
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

		require.NoError(t, s.DeleteOutput(rec.Outpoint))
		_, err = s.GetOutput(rec.Outpoint)
		assert.ErrorIs(t, err, ErrOutputNotFound)
		assert.ErrorIs(t, s.DeleteOutput(rec.Outpoint), ErrOutputNotFound)
	})
}

func TestOutputs_ListByBasketInInsertionOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ops := []token.Outpoint{testOutpoint("c", 0), testOutpoint("a", 1), testOutpoint("b", 2)}
		for _, op := range ops {
			require.NoError(t, s.PutOutput(&OutputRecord{Outpoint: op, Basket: token.BasketInbox}))
		}
		require.NoError(t, s.PutOutput(&OutputRecord{Outpoint: testOutpoint("d", 0), Basket: token.BasketSent}))

		list, err := s.ListOutputs(token.BasketInbox)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, op := range ops {
			assert.Equal(t, op, list[i].Outpoint)
		}

		// Moving a record keeps its sequence.
		moved := list[0]
		moved.Basket = token.BasketSelf
		require.NoError(t, s.PutOutput(moved))
		list, err = s.ListOutputs(token.BasketInbox)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		selfList, err := s.ListOutputs(token.BasketSelf)
		require.NoError(t, err)
		require.Len(t, selfList, 1)
		assert.Equal(t, moved.Seq, selfList[0].Seq)
	})
}

func TestOutputs_Validation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		assert.ErrorIs(t, s.PutOutput(nil), ErrNilParam)
		assert.ErrorIs(t, s.PutOutput(&OutputRecord{}), ErrInvalidOutpoint)
	})
}

func TestTxs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		txid := strings.Repeat("e", 64)
		_, err := s.GetTx(txid)
		assert.ErrorIs(t, err, ErrTxNotFound)

		require.NoError(t, s.PutTx(txid, []byte{1, 2, 3}))
		raw, err := s.GetTx(txid)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, raw)

		assert.ErrorIs(t, s.PutTx("", []byte{1}), ErrNilParam)
	})
}

func TestAcks(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ok, err := s.IsAcknowledged("n-1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.MarkAcknowledged("n-1", "n-2"))
		require.NoError(t, s.MarkAcknowledged("n-1"))
		for _, id := range []string{"n-1", "n-2"} {
			ok, err = s.IsAcknowledged(id)
			require.NoError(t, err)
			assert.True(t, ok, id)
		}
		assert.ErrorIs(t, s.MarkAcknowledged(""), ErrEmptyID)
	})
}

func TestNextIndex(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		for want := uint32(0); want < 3; want++ {
			got, err := s.NextIndex("fee")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		got, err := s.NextIndex("other")
		require.NoError(t, err)
		assert.Equal(t, uint32(0), got)
	})
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.PutOutput(&OutputRecord{Outpoint: testOutpoint("f", 0), Basket: token.BasketDefault, Satoshis: 5}))
	require.NoError(t, s.MarkAcknowledged("n-9"))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.GetOutput(testOutpoint("f", 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), rec.Satoshis)
	ok, err := s.IsAcknowledged("n-9")
	require.NoError(t, err)
	assert.True(t, ok)
}
