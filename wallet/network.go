package wallet

import (
	"fmt"
	"slices"
)

// NetworkConfig names a BSV network and the parameters the wallet needs
// from it.
type NetworkConfig struct {
	Name           string `json:"name"`
	AddressVersion byte   `json:"address_version"`
	RPCPort        uint16 `json:"rpc_port"`
}

var (
	MainNet = NetworkConfig{Name: "mainnet", AddressVersion: 0x00, RPCPort: 8332}
	TestNet = NetworkConfig{Name: "testnet", AddressVersion: 0x6f, RPCPort: 18332}
	RegTest = NetworkConfig{Name: "regtest", AddressVersion: 0x6f, RPCPort: 18443}
)

// networks is kept sorted by name.
var networks = []*NetworkConfig{&MainNet, &RegTest, &TestNet}

// IsMainnet reports whether addresses use the mainnet version byte.
func (n *NetworkConfig) IsMainnet() bool {
	return n.AddressVersion == MainNet.AddressVersion
}

// GetNetwork returns a predefined network by name.
func GetNetwork(name string) (*NetworkConfig, error) {
	i := slices.IndexFunc(networks, func(n *NetworkConfig) bool { return n.Name == name })
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
	}
	return networks[i], nil
}

// NetworkNames lists the predefined network names in sorted order.
func NetworkNames() []string {
	names := make([]string, len(networks))
	for i, n := range networks {
		names[i] = n.Name
	}
	return names
}
