package codec

import (
	"bytes"
	"context"
	"errors"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libvoicemail-go/token"
)

func newKey(t *testing.T) *ec.PrivateKey {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

type stubDeriver struct {
	key  *ec.PublicKey
	err  error
	args token.KeyArgs
	self bool
}

func (s *stubDeriver) DerivePublicKey(_ context.Context, args token.KeyArgs, forSelf bool) (*ec.PublicKey, error) {
	s.args = args
	s.self = forSelf
	return s.key, s.err
}

// --- Lock / Decode ---

func TestLockDecode_RoundTrip(t *testing.T) {
	lockKey := newKey(t).PubKey()

	tests := []struct {
		name   string
		fields [][]byte
	}{
		{"two fields", [][]byte{[]byte("a"), []byte("b")}},
		{"three fields", [][]byte{[]byte("sender"), []byte("audio"), []byte("ts")}},
		{"four fields", [][]byte{{0x01}, {0x02}, {0x03}, {0x04}}},
		{"empty field preserved", [][]byte{[]byte("x"), {}, []byte("z")}},
		{"large field", [][]byte{bytes.Repeat([]byte{0xaa}, 70000), []byte("tail")}},
		{"pushdata1 boundary", [][]byte{bytes.Repeat([]byte{1}, 76), bytes.Repeat([]byte{2}, 255)}},
		{"many fields", [][]byte{{1}, {2}, {3}, {4}, {5}, {6}, {7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Lock(lockKey, tt.fields)
			require.NoError(t, err)

			dec, err := Decode(*s)
			require.NoError(t, err)
			assert.Equal(t, lockKey.Compressed(), dec.LockingKey.Compressed())
			assert.Equal(t, tt.fields, dec.Fields)
		})
	}
}

func TestLock_Layout(t *testing.T) {
	lockKey := newKey(t).PubKey()
	s, err := Lock(lockKey, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)

	chunks, err := s.Chunks()
	require.NoError(t, err)
	require.Len(t, chunks, 7)
	assert.Equal(t, lockKey.Compressed(), chunks[0].Data)
	assert.Equal(t, byte(script.OpCHECKSIG), chunks[1].Op)
	assert.Equal(t, byte(script.Op2DROP), chunks[5].Op)
	assert.Equal(t, byte(script.OpDROP), chunks[6].Op)
}

func TestLock_Errors(t *testing.T) {
	_, err := Lock(nil, [][]byte{{1}, {2}})
	assert.ErrorIs(t, err, ErrNilLockKey)

	_, err = Lock(newKey(t).PubKey(), [][]byte{{1}})
	assert.ErrorIs(t, err, token.ErrDecodeCorruption)
}

func TestDecode_FailsClosed(t *testing.T) {
	lockKey := newKey(t).PubKey()

	oneField := &script.Script{}
	require.NoError(t, oneField.AppendPushData(lockKey.Compressed()))
	require.NoError(t, oneField.AppendOpcodes(script.OpCHECKSIG))
	require.NoError(t, oneField.AppendPushData([]byte("only")))
	require.NoError(t, oneField.AppendOpcodes(script.OpDROP))

	badDrops := &script.Script{}
	require.NoError(t, badDrops.AppendPushData(lockKey.Compressed()))
	require.NoError(t, badDrops.AppendOpcodes(script.OpCHECKSIG))
	require.NoError(t, badDrops.AppendPushData([]byte("a")))
	require.NoError(t, badDrops.AppendPushData([]byte("b")))
	require.NoError(t, badDrops.AppendOpcodes(script.OpDROP))

	noChecksig := &script.Script{}
	require.NoError(t, noChecksig.AppendPushData(lockKey.Compressed()))
	require.NoError(t, noChecksig.AppendPushData([]byte("a")))
	require.NoError(t, noChecksig.AppendPushData([]byte("b")))
	require.NoError(t, noChecksig.AppendOpcodes(script.Op2DROP))

	trailing := &script.Script{}
	require.NoError(t, trailing.AppendPushData(lockKey.Compressed()))
	require.NoError(t, trailing.AppendOpcodes(script.OpCHECKSIG))
	require.NoError(t, trailing.AppendPushData([]byte("a")))
	require.NoError(t, trailing.AppendPushData([]byte("b")))
	require.NoError(t, trailing.AppendOpcodes(script.Op2DROP, script.OpRETURN))

	tests := []struct {
		name   string
		script []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0x4c}},
		{"one field", *oneField},
		{"drop count mismatch", *badDrops},
		{"missing checksig", *noChecksig},
		{"trailing opcode", *trailing},
		{"short lock key", []byte{0x02, 0x01, 0x02, 0xac}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.script)
			require.Error(t, err)
			assert.True(t, errors.Is(err, token.ErrDecodeCorruption), "got %v", err)
		})
	}
}

func TestDecode_SmallIntPush(t *testing.T) {
	lockKey := newKey(t).PubKey()
	s := &script.Script{}
	require.NoError(t, s.AppendPushData(lockKey.Compressed()))
	require.NoError(t, s.AppendOpcodes(script.OpCHECKSIG, script.Op1))
	require.NoError(t, s.AppendPushData([]byte("b")))
	require.NoError(t, s.AppendOpcodes(script.Op2DROP))

	dec, err := Decode(*s)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{0x01}, []byte("b")}, dec.Fields)
}

func TestEncode_UsesDeriver(t *testing.T) {
	lockKey := newKey(t).PubKey()
	d := &stubDeriver{key: lockKey}
	args := token.KeyArgs{Protocol: token.VoicemailProtocol, KeyID: token.DefaultKeyID, Counterparty: token.Self()}

	s, err := Encode(context.Background(), d, [][]byte{{1}, {2}}, args, false)
	require.NoError(t, err)
	assert.Equal(t, args, d.args)
	assert.False(t, d.self)

	dec, err := Decode(*s)
	require.NoError(t, err)
	assert.Equal(t, lockKey.Compressed(), dec.LockingKey.Compressed())

	d.err = errors.New("wallet offline")
	_, err = Encode(context.Background(), d, [][]byte{{1}, {2}}, args, false)
	assert.ErrorContains(t, err, "wallet offline")
}

// --- typed fields ---

func TestVoicemailFields_RoundTrip(t *testing.T) {
	sender := newKey(t).PubKey()
	lockKey := newKey(t).PubKey()

	tests := []struct {
		name string
		vf   VoicemailFields
	}{
		{"required only", VoicemailFields{Sender: sender, Audio: []byte("audio")}},
		{"with timestamp", VoicemailFields{Sender: sender, Audio: []byte("audio"), Timestamp: []byte("ts")}},
		{"with message", VoicemailFields{Sender: sender, Audio: []byte("audio"), Timestamp: []byte("ts"), Message: []byte("hi")}},
		{"message without timestamp", VoicemailFields{Sender: sender, Audio: []byte("audio"), Message: []byte("hi")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Lock(lockKey, tt.vf.Fields())
			require.NoError(t, err)
			dec, err := Decode(*s)
			require.NoError(t, err)

			got, err := ParseVoicemail(dec.Fields)
			require.NoError(t, err)
			assert.Equal(t, sender.Compressed(), got.Sender.Compressed())
			assert.Equal(t, tt.vf.Audio, got.Audio)
			assert.Equal(t, tt.vf.Message, got.Message)
			assert.Equal(t, dec.Fields, got.Fields())
		})
	}
}

func TestParseVoicemail_Errors(t *testing.T) {
	sender := newKey(t).PubKey().Compressed()

	_, err := ParseVoicemail([][]byte{sender})
	assert.ErrorIs(t, err, token.ErrDecodeCorruption)

	_, err = ParseVoicemail([][]byte{[]byte("not a key"), []byte("audio")})
	assert.ErrorIs(t, err, token.ErrDecodeCorruption)

	_, err = ParseVoicemail([][]byte{sender, {1}, {2}, {3}, {4}})
	assert.ErrorIs(t, err, ErrFieldLayout)
}

func TestContactFields_RoundTrip(t *testing.T) {
	cf := ContactFields{Name: []byte("n"), IdentityKey: []byte("k"), Timestamp: []byte("t")}
	got, err := ParseContact(cf.Fields())
	require.NoError(t, err)
	assert.Equal(t, cf, *got)

	noTS := ContactFields{Name: []byte("n"), IdentityKey: []byte("k")}
	got, err = ParseContact(noTS.Fields())
	require.NoError(t, err)
	assert.Nil(t, got.Timestamp)

	_, err = ParseContact([][]byte{{1}, {2}, {3}, {4}})
	assert.ErrorIs(t, err, ErrFieldLayout)
}
