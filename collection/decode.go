package collection

import (
	"context"
	"fmt"

	"github.com/bitfsorg/libvoicemail-go/codec"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/token"
)

// decode rebuilds the token behind out from its transaction in bundle.
func (s *Synchronizer) decode(ctx context.Context, basket token.Basket, out *ledger.Output, bundle *ledger.Bundle) (*token.Token, error) {
	src, err := bundle.Output(out.Outpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", token.ErrStaleReference, err)
	}
	if src.LockingScript == nil {
		return nil, fmt.Errorf("%w: empty locking script", token.ErrDecodeCorruption)
	}
	lockingScript := []byte(*src.LockingScript)
	d, err := codec.Decode(lockingScript)
	if err != nil {
		return nil, err
	}

	tok := &token.Token{
		Outpoint:      out.Outpoint,
		Satoshis:      src.Satoshis,
		LockingScript: lockingScript,
		Basket:        basket,
		State:         token.StateActive,
	}
	if basket == token.BasketContacts {
		cf, err := codec.ParseContact(d.Fields)
		if err != nil {
			return nil, err
		}
		if tok.Contact, err = s.contacts.DecryptContact(ctx, cf); err != nil {
			return nil, err
		}
		tok.Counterparty = token.Self()
		tok.SelfAddressed = true
		return tok, nil
	}

	vf, err := codec.ParseVoicemail(d.Fields)
	if err != nil {
		return nil, err
	}
	cp, err := voicemailCounterparty(basket, out.Tags, vf)
	if err != nil {
		return nil, err
	}
	if tok.Voicemail, err = s.voicemail.DecryptVoicemail(ctx, vf, cp); err != nil {
		return nil, err
	}
	tok.Counterparty = cp
	tok.SelfAddressed = cp.Self
	return tok, nil
}

// voicemailCounterparty picks the decrypt counterparty of a voicemail token.
// The self-addressed tag wins; otherwise received tokens use the sender in
// field 0 and sent tokens the counterparty tag recorded at send time.
func voicemailCounterparty(basket token.Basket, tags []string, vf *codec.VoicemailFields) (token.Counterparty, error) {
	for _, tag := range tags {
		if tag == token.TagSelfAddressed {
			return token.Self(), nil
		}
	}
	switch basket {
	case token.BasketInbox, token.BasketImport:
		return token.Other(vf.Sender), nil
	case token.BasketSelf:
		return token.Self(), nil
	case token.BasketSent:
		for _, tag := range tags {
			if key, ok := token.ParseCounterpartyTag(tag); ok {
				return token.Other(key), nil
			}
		}
		return token.Counterparty{}, fmt.Errorf("%w: sent token without counterparty tag", token.ErrDecryptRequired)
	default:
		return token.Counterparty{}, fmt.Errorf("%w: basket %q holds no voicemail tokens", token.ErrInvalidRequest, basket)
	}
}
