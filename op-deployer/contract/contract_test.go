package contract

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/project"
	"github.com/dcSpark/op-deployer/op-deployer/simchain"
	opcrypto "github.com/dcSpark/op-deployer/op-service/crypto"
	"github.com/dcSpark/op-deployer/op-service/testlog"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
	"github.com/dcSpark/op-deployer/op-service/txmgr/metrics"
)

type harness struct {
	t       *testing.T
	chain   *simchain.Backend
	account accounts.Account
	greeter *ContainerType
}

func newHarness(t *testing.T) *harness {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	acc := accounts.NewAccount(key, "test")

	chain := simchain.New(simchain.DefaultBalance, acc.Address)
	t.Cleanup(func() { _ = chain.Close() })

	p, err := project.Open(filepath.Join("..", "project", "testdata", "brownie"))
	require.NoError(t, err)
	artifact, err := p.Artifact("Greeter")
	require.NoError(t, err)

	l := testlog.Logger(t, log.LvlInfo)
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
	senders := func(from accounts.Account) (txmgr.TxManager, error) {
		return txmgr.NewSimpleTxManager("test", l, &metrics.NoopTxMetrics{},
			cfg.WithSigner(from.Address, opcrypto.PrivateKeySignerFn(from.Key, cfg.ChainID)))
	}
	return &harness{
		t:       t,
		chain:   chain,
		account: acc,
		greeter: NewContainerType(artifact, senders, chain, l),
	}
}

func TestDeploy(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.greeter.Deploy(ctx, TxOpts{From: h.account}, "Hello")
	require.NoError(t, err)
	require.Equal(t, "Greeter", c.Name)
	require.Equal(t, crypto.CreateAddress(h.account.Address, 0), c.Address)
	require.Equal(t, c.Address.Hex(), c.String())

	code, err := h.chain.CodeAt(ctx, c.Address, nil)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	receipt, err := h.chain.TransactionReceipt(ctx, c.TxHash())
	require.NoError(t, err)
	require.Equal(t, c.Address, receipt.ContractAddress)

	out, err := c.Call(ctx, "greet")
	require.NoError(t, err)
	require.Equal(t, []interface{}{"Hello"}, out)
}

func TestDeployTwiceUsesNextNonce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.greeter.Deploy(ctx, TxOpts{From: h.account, GasLimit: 500_000}, "Hello")
	require.NoError(t, err)
	second, err := h.greeter.Deploy(ctx, TxOpts{From: h.account}, "Hello")
	require.NoError(t, err)
	require.NotEqual(t, first.Address, second.Address)
	require.Equal(t, crypto.CreateAddress(h.account.Address, 1), second.Address)
}

func TestDeployBadConstructorArgs(t *testing.T) {
	h := newHarness(t)
	_, err := h.greeter.Deploy(context.Background(), TxOpts{From: h.account}, 42)
	require.ErrorContains(t, err, "constructor arguments")

	_, err = h.greeter.Deploy(context.Background(), TxOpts{From: h.account})
	require.ErrorContains(t, err, "constructor arguments")
}

func TestDeploySenderErrors(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")
	h.greeter.senders = func(accounts.Account) (txmgr.TxManager, error) {
		return nil, boom
	}
	_, err := h.greeter.Deploy(context.Background(), TxOpts{From: h.account}, "Hello")
	require.ErrorIs(t, err, boom)

	h.greeter.senders = func(accounts.Account) (txmgr.TxManager, error) {
		return &stubSender{from: common.Address{0x01}}, nil
	}
	_, err = h.greeter.Deploy(context.Background(), TxOpts{From: h.account}, "Hello")
	require.ErrorIs(t, err, ErrSenderMismatch)
}

type stubSender struct {
	from    common.Address
	receipt *types.Receipt
}

func (s *stubSender) Send(context.Context, txmgr.TxCandidate) (*types.Receipt, error) {
	return s.receipt, nil
}

func (s *stubSender) From() common.Address {
	return s.from
}

func TestDeployReceiptChecks(t *testing.T) {
	h := newHarness(t)
	stub := &stubSender{from: h.account.Address}
	h.greeter.senders = func(accounts.Account) (txmgr.TxManager, error) {
		return stub, nil
	}

	stub.receipt = &types.Receipt{
		Status:          types.ReceiptStatusFailed,
		TxHash:          common.Hash{0x02},
		ContractAddress: common.Address{0x03},
		BlockNumber:     big.NewInt(4),
	}
	_, err := h.greeter.Deploy(context.Background(), TxOpts{From: h.account}, "Hello")
	require.ErrorIs(t, err, ErrDeploymentReverted)

	stub.receipt = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.Hash{0x02},
		BlockNumber: big.NewInt(4),
	}
	_, err = h.greeter.Deploy(context.Background(), TxOpts{From: h.account}, "Hello")
	require.ErrorIs(t, err, ErrNoContractAddress)
}

func TestWriteRecord(t *testing.T) {
	h := newHarness(t)
	c, err := h.greeter.Deploy(context.Background(), TxOpts{From: h.account}, "Hello")
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := c.WriteRecord(dir, h.chain.ChainID())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "1337", c.Address.Hex()+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec Deployment
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, "Greeter", rec.ContractName)
	require.Equal(t, c.Address, rec.Address)
	require.Equal(t, c.TxHash(), rec.TransactionHash)
	require.Equal(t, h.account.Address, rec.Deployer)
	require.Equal(t, uint64(1337), rec.ChainID)
	require.Equal(t, uint64(1), rec.BlockNumber)
	require.NotNil(t, rec.DeployedAt)
}

func TestAtHasNoDeployment(t *testing.T) {
	h := newHarness(t)
	c := h.greeter.At(common.Address{0x05})
	require.Equal(t, common.Hash{}, c.TxHash())
	rec := c.Record(big.NewInt(1))
	require.Nil(t, rec.DeployedAt)
	require.Equal(t, "Greeter", rec.ContractName)
}
