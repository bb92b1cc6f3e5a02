package codec

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Field positions within a voicemail token.
const (
	voicemailSenderIdx    = 0
	voicemailAudioIdx     = 1
	voicemailTimestampIdx = 2
	voicemailMessageIdx   = 3
	voicemailMaxFields    = 4

	contactNameIdx      = 0
	contactKeyIdx       = 1
	contactTimestampIdx = 2
	contactMaxFields    = 3
)

// VoicemailFields is the field set of a voicemail token. Sender is
// plaintext; the rest are ciphertexts. Timestamp and Message are optional:
// nil means the field is absent from the script.
type VoicemailFields struct {
	Sender    *ec.PublicKey
	Audio     []byte
	Timestamp []byte
	Message   []byte
}

// ParseVoicemail builds a VoicemailFields from decoded script fields.
func ParseVoicemail(fields [][]byte) (*VoicemailFields, error) {
	if len(fields) < MinFields {
		return nil, ErrTooFewFields
	}
	if len(fields) > voicemailMaxFields {
		return nil, fmt.Errorf("%w: voicemail has %d fields", ErrFieldLayout, len(fields))
	}
	sender, err := ec.PublicKeyFromBytes(fields[voicemailSenderIdx])
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrFieldLayout, err)
	}
	vf := &VoicemailFields{
		Sender: sender,
		Audio:  nonNil(fields[voicemailAudioIdx]),
	}
	if len(fields) > voicemailTimestampIdx {
		vf.Timestamp = nonNil(fields[voicemailTimestampIdx])
	}
	if len(fields) > voicemailMessageIdx {
		vf.Message = nonNil(fields[voicemailMessageIdx])
	}
	return vf, nil
}

// Fields returns the ordered script fields. An absent timestamp is written
// as an empty placeholder when a message follows it.
func (v *VoicemailFields) Fields() [][]byte {
	out := [][]byte{v.Sender.Compressed(), nonNil(v.Audio)}
	if v.Timestamp != nil || v.Message != nil {
		out = append(out, nonNil(v.Timestamp))
	}
	if v.Message != nil {
		out = append(out, v.Message)
	}
	return out
}

// ContactFields is the field set of a contacts token. All fields are
// ciphertexts; Timestamp is nil when absent.
type ContactFields struct {
	Name        []byte
	IdentityKey []byte
	Timestamp   []byte
}

// ParseContact builds a ContactFields from decoded script fields.
func ParseContact(fields [][]byte) (*ContactFields, error) {
	if len(fields) < MinFields {
		return nil, ErrTooFewFields
	}
	if len(fields) > contactMaxFields {
		return nil, fmt.Errorf("%w: contact has %d fields", ErrFieldLayout, len(fields))
	}
	cf := &ContactFields{
		Name:        nonNil(fields[contactNameIdx]),
		IdentityKey: nonNil(fields[contactKeyIdx]),
	}
	if len(fields) > contactTimestampIdx {
		cf.Timestamp = nonNil(fields[contactTimestampIdx])
	}
	return cf, nil
}

// Fields returns the ordered script fields.
func (c *ContactFields) Fields() [][]byte {
	out := [][]byte{nonNil(c.Name), nonNil(c.IdentityKey)}
	if c.Timestamp != nil {
		out = append(out, c.Timestamp)
	}
	return out
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
