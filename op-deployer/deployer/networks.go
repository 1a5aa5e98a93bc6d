package deployer

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const SimulatedNetwork = "simulated"

var ErrUnknownNetwork = errors.New("unknown network")

// Network is a named deployment target. A zero ChainID accepts whatever
// chain the endpoint reports.
type Network struct {
	Name    string `toml:"-"`
	RPCURL  string `toml:"rpc-url"`
	ChainID uint64 `toml:"chain-id"`
}

// Simulated reports whether the network is the in-process chain.
func (n Network) Simulated() bool {
	return n.Name == SimulatedNetwork
}

var presets = map[string]Network{
	"development":    {RPCURL: "http://127.0.0.1:8545"},
	"sepolia":        {RPCURL: "https://rpc.sepolia.org", ChainID: 11155111},
	"goerli":         {RPCURL: "https://rpc.ankr.com/eth_goerli", ChainID: 5},
	SimulatedNetwork: {ChainID: 1337},
}

// LoadNetworks reads a TOML file of networks keyed by name:
//
//	[staging]
//	rpc-url = "https://rpc.example.org"
//	chain-id = 11155111
func LoadNetworks(path string) (map[string]Network, error) {
	networks := make(map[string]Network)
	md, err := toml.DecodeFile(path, &networks)
	if err != nil {
		return nil, fmt.Errorf("failed to decode networks file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in networks file: %v", undecoded)
	}
	for name, n := range networks {
		if name == SimulatedNetwork {
			return nil, fmt.Errorf("network name %q is reserved for the in-process chain", name)
		}
		if n.RPCURL == "" {
			return nil, fmt.Errorf("network %q has no rpc-url", name)
		}
		n.Name = name
		networks[name] = n
	}
	return networks, nil
}

// ResolveNetwork looks name up in the networks file, if any, and then in
// the presets. Entries of the file take precedence.
func ResolveNetwork(name string, networksFile string) (Network, error) {
	if networksFile != "" {
		networks, err := LoadNetworks(networksFile)
		if err != nil {
			return Network{}, err
		}
		if n, ok := networks[name]; ok {
			return n, nil
		}
	}
	if n, ok := presets[name]; ok {
		n.Name = name
		return n, nil
	}
	return Network{}, fmt.Errorf("%w: %q (presets: %v)", ErrUnknownNetwork, name, PresetNames())
}

func PresetNames() []string {
	names := maps.Keys(presets)
	slices.Sort(names)
	return names
}
