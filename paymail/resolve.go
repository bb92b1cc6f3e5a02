// Package paymail resolves voicemail recipients given as Paymail handles,
// DNS names or hex public keys to identity keys.
package paymail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// maxResponseBytes caps capability and PKI documents.
const maxResponseBytes = 64 << 10

// Capabilities holds discovered Paymail server capabilities.
type Capabilities struct {
	PKI               string // URL template for public key infrastructure
	VoicemailIdentity string // URL template for the voicemail identity key
}

// PKIResponse holds the response from a Paymail PKI endpoint.
type PKIResponse struct {
	BSVAlias string `json:"bsvalias"`
	Handle   string `json:"handle"`
	PubKey   string `json:"pubkey"` // Hex-encoded compressed public key
}

// HTTPClient defines the interface for HTTP requests.
// This allows tests to mock HTTP calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient is the production HTTP client.
var DefaultHTTPClient HTTPClient = http.DefaultClient

// wellKnownResponse represents the JSON structure of .well-known/bsvalias.
type wellKnownResponse struct {
	BSVAlias     string                 `json:"bsvalias"`
	Capabilities map[string]interface{} `json:"capabilities"`
}

// Known Paymail capability URNs.
const (
	capPKI     = "pki"
	capPKIFull = "6745385c3fc0"
)

func getJSON(ctx context.Context, client HTTPClient, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	return nil
}

// DiscoverCapabilities fetches .well-known/bsvalias from a domain.
func DiscoverCapabilities(ctx context.Context, domain string, client HTTPClient) (*Capabilities, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrPaymailDiscovery)
	}

	var wk wellKnownResponse
	if err := getJSON(ctx, client, "https://"+domain+"/.well-known/bsvalias", &wk); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymailDiscovery, err)
	}

	caps := &Capabilities{}
	for key, val := range wk.Capabilities {
		urlStr, ok := val.(string)
		if !ok {
			continue
		}
		switch {
		case key == BRFCVoicemailIdentity:
			caps.VoicemailIdentity = urlStr
		case key == capPKI || key == capPKIFull || strings.Contains(key, "pki"):
			caps.PKI = urlStr
		}
	}
	return caps, nil
}

// ResolvePKI resolves alias@domain to its voicemail identity key. The
// voicemail identity capability wins over the generic PKI capability.
func ResolvePKI(ctx context.Context, alias, domain string, client HTTPClient) (*ec.PublicKey, error) {
	if alias == "" || domain == "" {
		return nil, fmt.Errorf("%w: alias and domain are required", ErrPKIResolution)
	}

	caps, err := DiscoverCapabilities(ctx, domain, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}

	tmpl := caps.VoicemailIdentity
	if tmpl == "" {
		tmpl = caps.PKI
	}
	if tmpl == "" {
		return nil, fmt.Errorf("%w: no PKI capability found for %s", ErrPKIResolution, domain)
	}

	pkiURL := strings.ReplaceAll(tmpl, "{alias}", alias)
	pkiURL = strings.ReplaceAll(pkiURL, "{domain.tld}", domain)

	var pki PKIResponse
	if err := getJSON(ctx, client, pkiURL, &pki); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPKIResolution, err)
	}
	if pki.PubKey == "" {
		return nil, fmt.Errorf("%w: empty public key in response", ErrPKIResolution)
	}
	return parsePubKeyHex(pki.PubKey)
}

// Resolver turns recipient addresses into identity keys.
type Resolver struct {
	HTTP HTTPClient
	DNS  DNSResolver
}

// NewResolver returns a Resolver using the default HTTP client and the
// system DNS resolver.
func NewResolver() *Resolver {
	return &Resolver{HTTP: DefaultHTTPClient, DNS: DefaultDNSResolver}
}

// Resolve parses addr and resolves it to an identity key.
func (r *Resolver) Resolve(ctx context.Context, addr string) (*ec.PublicKey, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}

	switch a.Type {
	case AddressPaymail:
		return ResolvePKI(ctx, a.Alias, a.Domain, r.httpClient())
	case AddressDNS:
		return ResolveDNSPubKey(ctx, a.Domain, r.dnsResolver())
	default:
		return a.PubKey, nil
	}
}

func (r *Resolver) httpClient() HTTPClient {
	if r.HTTP == nil {
		return DefaultHTTPClient
	}
	return r.HTTP
}

func (r *Resolver) dnsResolver() DNSResolver {
	if r.DNS == nil {
		return DefaultDNSResolver
	}
	return r.DNS
}
