package method42

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// ChildPublicKey derives the BRC-42 child public key that the holder of
// counterparty's private key can later sign for. The caller proves its
// identity with privateKey.
//
//	child_pub = P_counterparty + G * HMAC(ECDH(D_self, P_counterparty), invoice)
func ChildPublicKey(privateKey *ec.PrivateKey, counterparty *ec.PublicKey, invoice string) (*ec.PublicKey, error) {
	if privateKey == nil {
		return nil, ErrNilPrivateKey
	}
	if counterparty == nil {
		return nil, ErrNilPublicKey
	}
	child, err := counterparty.DeriveChild(privateKey, invoice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChildDerivation, err)
	}
	return child, nil
}

// ChildPrivateKey derives the BRC-42 child private key matching
// ChildPublicKey(D_counterparty, P_self, invoice).
//
//	child_priv = D_self + HMAC(ECDH(D_self, P_counterparty), invoice)
func ChildPrivateKey(privateKey *ec.PrivateKey, counterparty *ec.PublicKey, invoice string) (*ec.PrivateKey, error) {
	if privateKey == nil {
		return nil, ErrNilPrivateKey
	}
	if counterparty == nil {
		return nil, ErrNilPublicKey
	}
	child, err := privateKey.DeriveChild(counterparty, invoice)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChildDerivation, err)
	}
	return child, nil
}
