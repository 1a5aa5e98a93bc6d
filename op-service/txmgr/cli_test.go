package txmgr

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestDefaultCLIConfig(t *testing.T) {
	cfg := cliConfigForArgs(t, "--rpc-url", "http://localhost:8545")
	require.Equal(t, CLIConfig{
		RPCURL:                    "http://localhost:8545",
		NumConfirmations:          1,
		SafeAbortNonceTooLowCount: 3,
		ResubmissionTimeout:       48 * time.Second,
		ReceiptQueryInterval:      2 * time.Second,
		NetworkTimeout:            10 * time.Second,
		TxNotInMempoolTimeout:     2 * time.Minute,
	}, cfg)
	require.NoError(t, cfg.Check())
}

func TestCLIConfigCheck(t *testing.T) {
	cfg := cliConfigForArgs(t)
	require.ErrorContains(t, cfg.Check(), "RPC url")

	cfg = cliConfigForArgs(t, "--rpc-url", "ws://node:8546", "--num-confirmations", "0")
	require.ErrorContains(t, cfg.Check(), "NumConfirmations")

	cfg = cliConfigForArgs(t, "--rpc-url", "ws://node:8546", "--txmgr.receipt-query-interval", "0s")
	require.ErrorContains(t, cfg.Check(), "ReceiptQueryInterval")
}

func TestCLIConfigFromEnv(t *testing.T) {
	t.Setenv("TEST_RPC_URL", "http://env:8545")
	t.Setenv("TEST_NETWORK_TIMEOUT", "3s")
	cfg := cliConfigForArgs(t)
	require.Equal(t, "http://env:8545", cfg.RPCURL)
	require.Equal(t, 3*time.Second, cfg.NetworkTimeout)
}

func cliConfigForArgs(t *testing.T, args ...string) CLIConfig {
	app := cli.NewApp()
	app.Name = "test"
	app.Flags = CLIFlags("TEST")
	var cfg CLIConfig
	app.Action = func(ctx *cli.Context) error {
		cfg = ReadCLIConfig(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg
}

func TestNewConfigWithBackend(t *testing.T) {
	cliCfg := cliConfigForArgs(t, "--rpc-url", "http://localhost:8545")
	backend := newMockBackend(newGasPricer(3))

	cfg := NewConfigWithBackend(cliCfg, backend, big.NewInt(1337))
	require.Equal(t, big.NewInt(1337), cfg.ChainID)
	require.Equal(t, cliCfg.NetworkTimeout, cfg.NetworkTimeout)
	require.Equal(t, cliCfg.NumConfirmations, cfg.NumConfirmations)
	require.ErrorContains(t, cfg.Check(), "Signer")

	from := common.Address{0x01}
	signed := cfg.WithSigner(from, func(ctx context.Context, addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		return tx, nil
	})
	require.NoError(t, signed.Check())
	require.Equal(t, from, signed.From)
	require.Nil(t, cfg.Signer)
}
