package deployer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/contract"
	"github.com/dcSpark/op-deployer/op-deployer/project"
	"github.com/dcSpark/op-deployer/op-deployer/simchain"
	opcrypto "github.com/dcSpark/op-deployer/op-service/crypto"
	"github.com/dcSpark/op-deployer/op-service/testlog"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
	"github.com/dcSpark/op-deployer/op-service/txmgr/metrics"
)

// Well-known development key, also account 0 of the "test test ... junk" mnemonic.
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	devAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	// first contract created by devAddress
	devFirstContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

var greeterProject = filepath.Join("..", "project", "testdata", "brownie")

func devProvider(t *testing.T) *accounts.Provider {
	key, err := opcrypto.ParsePrivateKey(devKey)
	require.NoError(t, err)
	return accounts.NewProvider(accounts.NewAccount(key, "private-key"))
}

func simSenders(t *testing.T, chain *simchain.Backend) contract.SenderFn {
	cfg := txmgr.Config{
		Backend:                   chain,
		ChainID:                   chain.ChainID(),
		ResubmissionTimeout:       time.Second,
		ReceiptQueryInterval:      10 * time.Millisecond,
		NetworkTimeout:            time.Second,
		TxNotInMempoolTimeout:     time.Minute,
		NumConfirmations:          1,
		SafeAbortNonceTooLowCount: 3,
	}
	l := testlog.Logger(t, log.LvlInfo)
	return func(from accounts.Account) (txmgr.TxManager, error) {
		return txmgr.NewSimpleTxManager("test", l, &metrics.NoopTxMetrics{},
			cfg.WithSigner(from.Address, opcrypto.PrivateKeySignerFn(from.Key, cfg.ChainID)))
	}
}

func TestDeployGreeter(t *testing.T) {
	provider := devProvider(t)
	chain := simchain.New(simchain.DefaultBalance, provider.Addresses()...)
	t.Cleanup(func() { _ = chain.Close() })
	proj, err := project.Open(greeterProject)
	require.NoError(t, err)

	ctx := context.Background()
	c, err := Deploy(ctx, testlog.Logger(t, log.LvlInfo), provider, proj, simSenders(t, chain), chain)
	require.NoError(t, err)
	require.Equal(t, devFirstContract, c.Address)

	code, err := chain.CodeAt(ctx, c.Address, nil)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	out, err := c.Call(ctx, "greet")
	require.NoError(t, err)
	require.Equal(t, []interface{}{Greeting}, out)

	receipt, err := chain.TransactionReceipt(ctx, c.TxHash())
	require.NoError(t, err)
	tx, _, err := chain.TransactionByHash(ctx, c.TxHash())
	require.NoError(t, err)
	require.Nil(t, tx.To())
	require.Equal(t, c.Address, receipt.ContractAddress)
}

func TestDeployNoAccounts(t *testing.T) {
	chain := simchain.New(simchain.DefaultBalance)
	t.Cleanup(func() { _ = chain.Close() })
	proj, err := project.Open(greeterProject)
	require.NoError(t, err)

	_, err = Deploy(context.Background(), testlog.Logger(t, log.LvlInfo), accounts.NewProvider(), proj, simSenders(t, chain), chain)
	require.ErrorIs(t, err, accounts.ErrNoAccounts)
}

func TestDeployMissingArtifact(t *testing.T) {
	provider := devProvider(t)
	chain := simchain.New(simchain.DefaultBalance, provider.Addresses()...)
	t.Cleanup(func() { _ = chain.Close() })
	proj, err := project.Open(t.TempDir())
	require.NoError(t, err)

	_, err = Deploy(context.Background(), testlog.Logger(t, log.LvlInfo), provider, proj, simSenders(t, chain), chain)
	require.ErrorIs(t, err, project.ErrArtifactNotFound)

	nonce, err := chain.PendingNonceAt(context.Background(), devAddress)
	require.NoError(t, err)
	require.Zero(t, nonce)
}
