package codec

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/libvoicemail-go/token"
)

var (
	// ErrTooFewFields indicates a token script carrying fewer than two fields.
	ErrTooFewFields = fmt.Errorf("codec: fewer than %d fields: %w", MinFields, token.ErrDecodeCorruption)

	// ErrMalformedScript indicates a script that is not a PushDrop lock.
	ErrMalformedScript = fmt.Errorf("codec: malformed pushdrop script: %w", token.ErrDecodeCorruption)

	// ErrFieldLayout indicates a field count or field value that does not fit the channel's layout.
	ErrFieldLayout = fmt.Errorf("codec: unexpected field layout: %w", token.ErrDecodeCorruption)

	// ErrNilLockKey indicates Lock was called without a locking key.
	ErrNilLockKey = errors.New("codec: lock key is nil")
)
