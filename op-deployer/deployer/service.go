package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/contract"
	"github.com/dcSpark/op-deployer/op-deployer/flags"
	"github.com/dcSpark/op-deployer/op-deployer/metrics"
	"github.com/dcSpark/op-deployer/op-deployer/project"
	"github.com/dcSpark/op-deployer/op-deployer/simchain"
	opservice "github.com/dcSpark/op-deployer/op-service"
	opcrypto "github.com/dcSpark/op-deployer/op-service/crypto"
	oplog "github.com/dcSpark/op-deployer/op-service/log"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
)

var ErrChainIDMismatch = errors.New("chain ID mismatch")

// Backend is the chain access the deployer needs: sending transactions,
// calling contracts and reading balances.
type Backend interface {
	txmgr.ETHBackend
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Main is the entrypoint into the deployer. This method returns a
// closure that executes the deployer and exits.
func Main(version string) func(cliCtx *cli.Context) error {
	return func(cliCtx *cli.Context) error {
		if err := flags.CheckRequired(cliCtx); err != nil {
			return err
		}
		cfg := NewConfig(cliCtx)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid CLI flags: %w", err)
		}

		l := oplog.NewLogger(cfg.LogConfig)
		opservice.ValidateEnvVars(flags.EnvVarPrefix, flags.Flags, l)

		ctx, cancel := opservice.InterruptContext(context.Background())
		defer cancel()

		l.Info("Initializing deployer", "version", version)
		d, err := NewDeployerFromCLIConfig(ctx, cfg, l, metrics.NewMetrics("default"), version)
		if err != nil {
			return fmt.Errorf("failed to initialize deployer: %w", err)
		}
		defer d.Close()

		return d.Run(ctx, cliCtx.App.Writer)
	}
}

// Deployer deploys the Greeter contract to a network and reports where it
// ended up.
type Deployer struct {
	l       log.Logger
	metr    metrics.Metricer
	network Network

	backend      Backend
	closeBackend func()
	chainID      *big.Int
	txConfig     txmgr.Config

	provider       *accounts.Provider
	project        *project.Project
	deploymentsDir string

	sendersLock sync.Mutex
	senders     map[common.Address]txmgr.TxManager

	metricsCancel context.CancelFunc
	metricsDone   chan struct{}
}

// NewDeployerFromCLIConfig resolves the network, loads the accounts and the
// project, and connects to the chain.
func NewDeployerFromCLIConfig(ctx context.Context, cfg CLIConfig, l log.Logger, m metrics.Metricer, version string) (*Deployer, error) {
	network, err := ResolveNetwork(cfg.Network, cfg.NetworksFile)
	if err != nil {
		return nil, err
	}
	provider, err := accounts.NewProviderFromConfig(cfg.AccountsConfig, accounts.TerminalPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	proj, err := project.Open(cfg.ProjectDir)
	if err != nil {
		return nil, err
	}
	l.Info("Opened project", "dir", proj.Dir(), "accounts", provider.Len())

	d := &Deployer{
		l:              l,
		metr:           m,
		network:        network,
		provider:       provider,
		project:        proj,
		deploymentsDir: cfg.DeploymentsDir,
		senders:        make(map[common.Address]txmgr.TxManager),
	}
	if err := d.connect(ctx, cfg.TxMgrConfig); err != nil {
		return nil, err
	}

	m.RecordInfo(version)
	if cfg.MetricsConfig.Enabled {
		d.startMetrics(cfg.MetricsConfig.ListenAddr, cfg.MetricsConfig.ListenPort)
	}
	m.RecordUp()
	return d, nil
}

func (d *Deployer) connect(ctx context.Context, txCfg txmgr.CLIConfig) error {
	if d.network.Simulated() {
		chain := simchain.New(simchain.DefaultBalance, d.provider.Addresses()...)
		d.backend = chain
		d.closeBackend = func() { _ = chain.Close() }
		d.chainID = chain.ChainID()
		// blocks are only mined on send, so deeper confirmations never arrive
		if txCfg.NumConfirmations > 1 {
			d.l.Warn("Simulated chain confirms at depth 1", "requested", txCfg.NumConfirmations)
			txCfg.NumConfirmations = 1
		}
		d.txConfig = txmgr.NewConfigWithBackend(txCfg, chain, d.chainID)
		d.l.Info("Using simulated chain", "chain_id", d.chainID, "funded", d.provider.Len())
		return nil
	}

	if txCfg.RPCURL == "" {
		txCfg.RPCURL = d.network.RPCURL
	}
	txConfig, client, err := txmgr.NewConfig(ctx, txCfg, d.l)
	if err != nil {
		return err
	}
	if d.network.ChainID != 0 && txConfig.ChainID.Uint64() != d.network.ChainID {
		client.Close()
		return fmt.Errorf("%w: network %s expects %d, endpoint reports %s",
			ErrChainIDMismatch, d.network.Name, d.network.ChainID, txConfig.ChainID)
	}
	d.backend = client
	d.closeBackend = client.Close
	d.chainID = txConfig.ChainID
	d.txConfig = txConfig
	d.l.Info("Connected to network", "network", d.network.Name, "rpc", txCfg.RPCURL, "chain_id", d.chainID)
	return nil
}

func (d *Deployer) startMetrics(addr string, port int) {
	ctx, cancel := context.WithCancel(context.Background())
	d.metricsCancel = cancel
	d.metricsDone = make(chan struct{})
	d.l.Info("starting metrics server", "addr", addr, "port", port)
	go func() {
		defer close(d.metricsDone)
		if err := d.metr.Serve(ctx, addr, port); err != nil {
			d.l.Error("error starting metrics server", "err", err)
		}
	}()
}

// sender returns the tx manager for the account, creating it on first use.
// Managers are kept so that nonces stay tracked across deployments.
func (d *Deployer) sender(from accounts.Account) (txmgr.TxManager, error) {
	d.sendersLock.Lock()
	defer d.sendersLock.Unlock()
	if mgr, ok := d.senders[from.Address]; ok {
		return mgr, nil
	}
	signer := opcrypto.PrivateKeySignerFn(from.Key, d.chainID)
	mgr, err := txmgr.NewSimpleTxManager("deployer", d.l, d.metr, d.txConfig.WithSigner(from.Address, signer))
	if err != nil {
		return nil, err
	}
	d.senders[from.Address] = mgr
	return mgr, nil
}

func (d *Deployer) ChainID() *big.Int {
	return new(big.Int).Set(d.chainID)
}

// Deploy deploys the Greeter and records the outcome in metrics and, when
// configured, in the deployments directory. If only the record cannot be
// written, the deployed contract is returned together with the error.
func (d *Deployer) Deploy(ctx context.Context) (*contract.Contract, error) {
	c, err := Deploy(ctx, d.l, d.provider, d.project, d.sender, d.backend)
	if err != nil {
		d.metr.RecordDeploymentFailure(ContractName)
		return nil, err
	}
	d.metr.RecordDeployment(ContractName)

	if d.deploymentsDir != "" {
		path, err := c.WriteRecord(d.deploymentsDir, d.ChainID())
		if err != nil {
			return c, fmt.Errorf("contract deployed at %s but %w", c, err)
		}
		d.l.Info("Wrote deployment record", "path", path)
	}
	return c, nil
}

// Run deploys the Greeter and writes "Greeter deployed at <address>" to w.
func (d *Deployer) Run(ctx context.Context, w io.Writer) error {
	c, err := d.Deploy(ctx)
	if c == nil {
		return err
	}
	if _, werr := fmt.Fprintf(w, "%s deployed at %s\n", ContractName, c); werr != nil {
		return werr
	}
	return err
}

func (d *Deployer) Close() {
	if d.metricsCancel != nil {
		d.metricsCancel()
		<-d.metricsDone
	}
	if d.closeBackend != nil {
		d.closeBackend()
	}
}
