package network

import "fmt"

// Environment variables read by ResolveConfig.
const (
	EnvRPCURL  = "VOICEMAIL_RPC_URL"
	EnvRPCUser = "VOICEMAIL_RPC_USER"
	EnvRPCPass = "VOICEMAIL_RPC_PASS"
)

// RPCConfig holds the connection parameters for a BSV node's JSON-RPC interface.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets holds local-node defaults. Mainnet has none and must be
// configured explicitly.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18443", User: "voicemail", Password: "voicemail"},
	"testnet": {URL: "http://localhost:18332", User: "voicemail", Password: "voicemail"},
}

// ResolveConfig layers RPC settings: flags over environment over presets.
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network}
	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	pick := func(dst *string, vals ...string) {
		for _, v := range vals {
			if v != "" {
				*dst = v
			}
		}
	}
	var f RPCConfig
	if flags != nil {
		f = *flags
	}
	pick(&result.URL, env[EnvRPCURL], f.URL)
	pick(&result.User, env[EnvRPCUser], f.User)
	pick(&result.Password, env[EnvRPCPass], f.Password)

	if result.URL == "" {
		return nil, fmt.Errorf("%w: %s needs --rpc-url, %s or rpcurl in the config file",
			ErrNotConfigured, network, EnvRPCURL)
	}
	return &result, nil
}
