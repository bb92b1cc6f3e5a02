package method42

import (
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// SharedSecretLen is the length of the ECDH x-coordinate.
const SharedSecretLen = 32

// ECDH returns the x-coordinate of priv·pub, left-padded to 32 bytes.
// ECDH(a, B) == ECDH(b, A); a self channel uses the wallet's own pair.
func ECDH(priv *ec.PrivateKey, pub *ec.PublicKey) ([]byte, error) {
	switch {
	case priv == nil:
		return nil, ErrNilPrivateKey
	case pub == nil:
		return nil, ErrNilPublicKey
	}
	point, err := priv.DeriveSharedSecret(pub)
	if err != nil {
		return nil, fmt.Errorf("method42: shared secret: %w", err)
	}
	return point.X.FillBytes(make([]byte, SharedSecretLen)), nil
}
