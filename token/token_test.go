package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTxID = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func TestParseOutpoint(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Outpoint
		wantErr bool
	}{
		{"dot separator", testTxID + ".3", Outpoint{TxID: testTxID, Index: 3}, false},
		{"colon separator", testTxID + ":0", Outpoint{TxID: testTxID, Index: 0}, false},
		{"uppercase normalized", strings.ToUpper(testTxID) + ".1", Outpoint{TxID: testTxID, Index: 1}, false},
		{"missing index", testTxID, Outpoint{}, true},
		{"short txid", "abcd.1", Outpoint{}, true},
		{"bad index", testTxID + ".x", Outpoint{}, true},
		{"empty", "", Outpoint{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutpoint(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestError_KindAndID(t *testing.T) {
	op := Outpoint{TxID: testTxID, Index: 2}
	cause := errors.New("bundle lookup")
	err := error(Wrap("redeem", op, ErrStaleReference, cause))

	assert.ErrorIs(t, err, ErrStaleReference)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnlockAuthorization)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, op, te.Outpoint)
	assert.Contains(t, err.Error(), testTxID+".2")

	noteErr := &Error{Op: "acknowledge", NotificationID: "n-1", Err: ErrRelayUnavailable}
	assert.Contains(t, noteErr.Error(), "notification n-1")
}

func TestCounterparty(t *testing.T) {
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	own := priv.PubKey()
	otherPriv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	other := otherPriv.PubKey()

	got, err := Self().Resolve(own)
	require.NoError(t, err)
	assert.Equal(t, own.Compressed(), got.Compressed())

	got, err = Other(other).Resolve(own)
	require.NoError(t, err)
	assert.Equal(t, other.Compressed(), got.Compressed())

	_, err = Self().Resolve(nil)
	assert.ErrorIs(t, err, ErrIdentityUnavailable)

	assert.True(t, Self().Equal(Self()))
	assert.False(t, Self().Equal(Other(own)), "self is never equal to an explicit key")
	assert.True(t, Other(other).Equal(Other(other)))
	assert.False(t, Other(other).Equal(Other(own)))
	assert.Equal(t, "self", Self().String())
	assert.True(t, Counterparty{}.IsZero())
	assert.False(t, Self().IsZero())
}

func TestCounterpartyTag(t *testing.T) {
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	tag := CounterpartyTag(priv.PubKey())

	pub, ok := ParseCounterpartyTag(tag)
	require.True(t, ok)
	assert.Equal(t, priv.PubKey().Compressed(), pub.Compressed())

	_, ok = ParseCounterpartyTag(TagSelfAddressed)
	assert.False(t, ok)
	_, ok = ParseCounterpartyTag(TagCounterpartyPrefix + "zz")
	assert.False(t, ok)
}

func TestSort(t *testing.T) {
	base := time.Unix(1700000000, 0)
	mk := func(idx uint32, sats uint64, offset time.Duration) *Token {
		return &Token{
			Outpoint:  Outpoint{TxID: testTxID, Index: idx},
			Satoshis:  sats,
			Voicemail: &Voicemail{Timestamp: base.Add(offset)},
		}
	}
	indexes := func(tokens []*Token) []uint32 {
		out := make([]uint32, len(tokens))
		for i, tok := range tokens {
			out[i] = tok.Outpoint.Index
		}
		return out
	}
	fresh := func() []*Token {
		return []*Token{
			mk(0, 500, 2*time.Minute),
			mk(1, 100, time.Minute),
			mk(2, 500, 3*time.Minute),
			mk(3, 100, time.Minute),
		}
	}

	tests := []struct {
		name string
		spec SortSpec
		want []uint32
	}{
		{"time ascending", SortSpec{ByTime, Ascending}, []uint32{1, 3, 0, 2}},
		{"time descending", SortSpec{ByTime, Descending}, []uint32{2, 0, 1, 3}},
		{"value ascending keeps ties in listing order", SortSpec{ByValue, Ascending}, []uint32{1, 3, 0, 2}},
		{"value descending keeps ties in listing order", SortSpec{ByValue, Descending}, []uint32{0, 2, 1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := fresh()
			Sort(tokens, tt.spec)
			assert.Equal(t, tt.want, indexes(tokens))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "spend-requested", StateSpendRequested.String())
	assert.Equal(t, "unknown", State(42).String())
}
