package paymail

import (
	"context"
	"fmt"
	"net"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// DNSResolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type DNSResolver interface {
	// LookupTXT looks up TXT records for the given name.
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// defaultDNSResolver wraps net.DefaultResolver.
type defaultDNSResolver struct{}

func (d *defaultDNSResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return net.DefaultResolver.LookupTXT(ctx, name)
}

// DefaultDNSResolver is the production DNS resolver using the net package.
var DefaultDNSResolver DNSResolver = &defaultDNSResolver{}

const (
	txtLabel  = "_voicemail."
	txtPrefix = "voicemail="
)

// ResolveDNSPubKey looks up _voicemail.{domain} TXT records and returns the
// identity key of the first record with the "voicemail=" prefix
// (e.g. "voicemail=02a1b2c3...").
func ResolveDNSPubKey(ctx context.Context, domain string, resolver DNSResolver) (*ec.PublicKey, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}

	name := txtLabel + domain
	txts, err := resolver.LookupTXT(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: TXT lookup for %s: %w", ErrDNSLookupFailed, name, err)
	}

	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if v, ok := strings.CutPrefix(txt, txtPrefix); ok {
			return parsePubKeyHex(strings.TrimSpace(v))
		}
	}
	return nil, fmt.Errorf("%w: no %s TXT record for %s", ErrDNSLookupFailed, txtPrefix, name)
}
