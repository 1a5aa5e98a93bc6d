package op_e2e

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/deployer"
	"github.com/dcSpark/op-deployer/op-deployer/metrics"
	"github.com/dcSpark/op-deployer/op-service/testlog"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
)

func deployerConfig(tc TestConfig) deployer.CLIConfig {
	return deployer.CLIConfig{
		Network:    "development",
		ProjectDir: filepath.Join("..", "op-deployer", "project", "testdata", "brownie"),
		TxMgrConfig: txmgr.CLIConfig{
			RPCURL:                    tc.rpcURL,
			NumConfirmations:          1,
			SafeAbortNonceTooLowCount: 3,
			ResubmissionTimeout:       10 * time.Second,
			ReceiptQueryInterval:      100 * time.Millisecond,
			NetworkTimeout:            5 * time.Second,
			TxNotInMempoolTimeout:     time.Minute,
		},
		AccountsConfig: accounts.CLIConfig{
			PrivateKeys: []string{tc.senderPrivKey},
		},
	}
}

func TestDeployGreeter(t *testing.T) {
	tc := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	d, err := deployer.NewDeployerFromCLIConfig(ctx, deployerConfig(tc), testlog.Logger(t, log.LvlDebug), metrics.NoopMetrics, "e2e")
	require.NoError(t, err)
	defer d.Close()

	var out bytes.Buffer
	require.NoError(t, d.Run(ctx, &out))
	line := out.String()
	require.True(t, strings.HasPrefix(line, "Greeter deployed at 0x"), line)
	addr := common.HexToAddress(strings.TrimSpace(strings.TrimPrefix(line, "Greeter deployed at ")))

	client, err := ethclient.DialContext(ctx, tc.rpcURL)
	require.NoError(t, err)
	defer client.Close()
	code, err := client.CodeAt(ctx, addr, nil)
	require.NoError(t, err)
	require.NotEmpty(t, code)
}

func TestChainIDMismatch(t *testing.T) {
	tc := testConfig(t)
	cfg := deployerConfig(tc)
	cfg.Network = "sepolia"

	client, err := ethclient.Dial(tc.rpcURL)
	require.NoError(t, err)
	defer client.Close()
	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)
	if chainID.Uint64() == 11155111 {
		t.Skip("endpoint is sepolia")
	}

	_, err = deployer.NewDeployerFromCLIConfig(context.Background(), cfg, testlog.Logger(t, log.LvlDebug), metrics.NoopMetrics, "e2e")
	require.ErrorIs(t, err, deployer.ErrChainIDMismatch)
}
