package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/libvoicemail-go/codec"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// Timestamps are encrypted as decimal unix milliseconds.
func encodeTime(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UnixMilli(), 10))
}

func decodeTime(b []byte) (time.Time, error) {
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// EncryptVoicemail builds the field set of a voicemail from sender to cp.
// The message field is omitted when message is empty.
func (c *Channel) EncryptVoicemail(ctx context.Context, sender *ec.PublicKey, cp token.Counterparty,
	audio []byte, message string, now time.Time) (*codec.VoicemailFields, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: sender key", token.ErrIdentityUnavailable)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", token.ErrInvalidRequest)
	}
	vf := &codec.VoicemailFields{Sender: sender}
	var err error
	if vf.Audio, err = c.EncryptFor(ctx, cp, audio); err != nil {
		return nil, err
	}
	if vf.Timestamp, err = c.EncryptFor(ctx, cp, encodeTime(now)); err != nil {
		return nil, err
	}
	if message != "" {
		if vf.Message, err = c.EncryptFor(ctx, cp, []byte(message)); err != nil {
			return nil, err
		}
	}
	return vf, nil
}

// DecryptVoicemail decrypts vf with cp. Audio must decrypt; a timestamp or
// message that fails is left at its default (now, empty) and logged.
func (c *Channel) DecryptVoicemail(ctx context.Context, vf *codec.VoicemailFields, cp token.Counterparty) (*token.Voicemail, error) {
	audio, err := c.DecryptFor(ctx, cp, vf.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: audio: %w", token.ErrDecryptRequired, err)
	}
	vm := &token.Voicemail{Sender: vf.Sender, Audio: audio, Timestamp: c.now().UTC()}

	if len(vf.Timestamp) > 0 {
		ts, err := c.optional(ctx, cp, "timestamp", vf.Timestamp)
		if err == nil {
			if t, perr := decodeTime(ts); perr == nil {
				vm.Timestamp = t
			} else {
				c.Log.Debug(ctx, "optional field skipped", "field", "timestamp",
					"error", fmt.Errorf("%w: %w", token.ErrDecryptOptional, perr))
			}
		}
	}
	if len(vf.Message) > 0 {
		if msg, err := c.optional(ctx, cp, "message", vf.Message); err == nil {
			vm.Message = string(msg)
		}
	}
	return vm, nil
}

// optional decrypts a field whose failure is not fatal.
func (c *Channel) optional(ctx context.Context, cp token.Counterparty, name string, ct []byte) ([]byte, error) {
	pt, err := c.DecryptFor(ctx, cp, ct)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", token.ErrDecryptOptional, name, err)
		c.Log.Debug(ctx, "optional field skipped", "field", name, "error", err)
		return nil, err
	}
	return pt, nil
}

// EncryptContact builds the field set of a contact. Contacts are always
// encrypted for Self.
func (c *Channel) EncryptContact(ctx context.Context, name string, key *ec.PublicKey, now time.Time) (*codec.ContactFields, error) {
	if name == "" || key == nil {
		return nil, fmt.Errorf("%w: contact needs a name and an identity key", token.ErrInvalidRequest)
	}
	cf := &codec.ContactFields{}
	var err error
	if cf.Name, err = c.EncryptFor(ctx, token.Self(), []byte(name)); err != nil {
		return nil, err
	}
	if cf.IdentityKey, err = c.EncryptFor(ctx, token.Self(), key.Compressed()); err != nil {
		return nil, err
	}
	if cf.Timestamp, err = c.EncryptFor(ctx, token.Self(), encodeTime(now)); err != nil {
		return nil, err
	}
	return cf, nil
}

// DecryptContact decrypts cf. Name and identity key are required.
func (c *Channel) DecryptContact(ctx context.Context, cf *codec.ContactFields) (*token.Contact, error) {
	name, err := c.DecryptFor(ctx, token.Self(), cf.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %w", token.ErrDecryptRequired, err)
	}
	rawKey, err := c.DecryptFor(ctx, token.Self(), cf.IdentityKey)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key: %w", token.ErrDecryptRequired, err)
	}
	key, err := ec.PublicKeyFromBytes(rawKey)
	if err != nil {
		return nil, fmt.Errorf("%w: identity key: %w", token.ErrDecryptRequired, err)
	}
	ct := &token.Contact{Name: string(name), IdentityKey: key, AddedAt: c.now().UTC()}
	if len(cf.Timestamp) > 0 {
		if ts, err := c.optional(ctx, token.Self(), "timestamp", cf.Timestamp); err == nil {
			if t, err := decodeTime(ts); err == nil {
				ct.AddedAt = t
			}
		}
	}
	return ct, nil
}

// IsDecryptFailure reports whether err is a required-field decrypt failure.
func IsDecryptFailure(err error) bool {
	return errors.Is(err, token.ErrDecryptRequired)
}
