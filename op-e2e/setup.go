/*
Package op_e2e runs the deployer against a live development node.

The tests are skipped unless OP_DEPLOYER_E2E_RPC points at a JSON-RPC endpoint,
for example a local anvil, hardhat or geth --dev node:

	anvil &
	OP_DEPLOYER_E2E_RPC=http://127.0.0.1:8545 go test ./op-e2e/...

The sender defaults to the first well-known development account, which those
nodes fund at genesis. Set OP_DEPLOYER_E2E_PRIVATE_KEY to use another one.
*/
package op_e2e

import (
	"os"
	"testing"
)

type TestConfig struct {
	rpcURL        string
	senderPrivKey string
}

const defaultSenderPrivKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testConfig(t *testing.T) TestConfig {
	rpcURL := os.Getenv("OP_DEPLOYER_E2E_RPC")
	if rpcURL == "" {
		t.Skip("OP_DEPLOYER_E2E_RPC not set")
	}
	key := os.Getenv("OP_DEPLOYER_E2E_PRIVATE_KEY")
	if key == "" {
		key = defaultSenderPrivKey
	}
	return TestConfig{
		rpcURL:        rpcURL,
		senderPrivKey: key,
	}
}
