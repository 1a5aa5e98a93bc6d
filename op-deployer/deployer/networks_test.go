package deployer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeNetworks(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "networks.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolvePresets(t *testing.T) {
	n, err := ResolveNetwork("development", "")
	require.NoError(t, err)
	require.Equal(t, Network{Name: "development", RPCURL: "http://127.0.0.1:8545"}, n)
	require.False(t, n.Simulated())

	n, err = ResolveNetwork("sepolia", "")
	require.NoError(t, err)
	require.Equal(t, uint64(11155111), n.ChainID)

	n, err = ResolveNetwork(SimulatedNetwork, "")
	require.NoError(t, err)
	require.True(t, n.Simulated())

	_, err = ResolveNetwork("mainnet", "")
	require.ErrorIs(t, err, ErrUnknownNetwork)
	require.ErrorContains(t, err, "development")
}

func TestResolveFromFile(t *testing.T) {
	path := writeNetworks(t, `
[staging]
rpc-url = "https://rpc.staging.example"
chain-id = 4242

[development]
rpc-url = "http://localhost:7545"
`)
	n, err := ResolveNetwork("staging", path)
	require.NoError(t, err)
	require.Equal(t, Network{Name: "staging", RPCURL: "https://rpc.staging.example", ChainID: 4242}, n)

	n, err = ResolveNetwork("development", path)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:7545", n.RPCURL)

	n, err = ResolveNetwork("sepolia", path)
	require.NoError(t, err)
	require.Equal(t, "https://rpc.sepolia.org", n.RPCURL)
}

func TestLoadNetworksErrors(t *testing.T) {
	_, err := LoadNetworks(writeNetworks(t, "[staging]\nchain-id = 1\n"))
	require.ErrorContains(t, err, "no rpc-url")

	_, err = LoadNetworks(writeNetworks(t, "[staging]\nrpc-url = \"http://x\"\nhost = \"y\"\n"))
	require.ErrorContains(t, err, "unknown keys")

	_, err = LoadNetworks(writeNetworks(t, "[simulated]\nrpc-url = \"http://x\"\n"))
	require.ErrorContains(t, err, "reserved")

	_, err = LoadNetworks(writeNetworks(t, "not toml ["))
	require.Error(t, err)

	_, err = ResolveNetwork("staging", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestPresetNamesSorted(t *testing.T) {
	require.Equal(t, []string{"development", "goerli", "sepolia", "simulated"}, PresetNames())
}
