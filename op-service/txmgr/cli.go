package txmgr

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	opservice "github.com/dcSpark/op-deployer/op-service"
	opcrypto "github.com/dcSpark/op-deployer/op-service/crypto"
)

const (
	RPCUrlFlagName = "rpc-url"
	// TxMgr Flags
	NumConfirmationsFlagName          = "num-confirmations"
	SafeAbortNonceTooLowCountFlagName = "safe-abort-nonce-too-low-count"
	ResubmissionTimeoutFlagName       = "resubmission-timeout"
	NetworkTimeoutFlagName            = "network-timeout"
	TxSendTimeoutFlagName             = "txmgr.send-timeout"
	TxNotInMempoolTimeoutFlagName     = "txmgr.not-in-mempool-timeout"
	ReceiptQueryIntervalFlagName      = "txmgr.receipt-query-interval"
)

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:   RPCUrlFlagName,
			Usage:  "HTTP or websocket JSON-RPC endpoint of the target network. Overrides the network preset",
			EnvVar: opservice.PrefixEnvVar(envPrefix, "RPC_URL"),
		},
		cli.Uint64Flag{
			Name:   NumConfirmationsFlagName,
			Usage:  "Number of confirmations which we will wait after sending a transaction",
			Value:  1,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "NUM_CONFIRMATIONS"),
		},
		cli.Uint64Flag{
			Name:   SafeAbortNonceTooLowCountFlagName,
			Usage:  "Number of ErrNonceTooLow observations required to give up on a tx at a particular nonce without receiving confirmation",
			Value:  3,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "SAFE_ABORT_NONCE_TOO_LOW_COUNT"),
		},
		cli.DurationFlag{
			Name:   ResubmissionTimeoutFlagName,
			Usage:  "Duration we will wait before resubmitting a transaction with a bumped fee",
			Value:  48 * time.Second,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "RESUBMISSION_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   NetworkTimeoutFlagName,
			Usage:  "Timeout for all network operations",
			Value:  10 * time.Second,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "NETWORK_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   TxSendTimeoutFlagName,
			Usage:  "Timeout for sending transactions. If 0 it is disabled.",
			Value:  0,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "TXMGR_TX_SEND_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   TxNotInMempoolTimeoutFlagName,
			Usage:  "Timeout for aborting a tx send if the tx does not make it to the mempool.",
			Value:  2 * time.Minute,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "TXMGR_TX_NOT_IN_MEMPOOL_TIMEOUT"),
		},
		cli.DurationFlag{
			Name:   ReceiptQueryIntervalFlagName,
			Usage:  "Frequency to poll for receipts",
			Value:  2 * time.Second,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "TXMGR_RECEIPT_QUERY_INTERVAL"),
		},
	}
}

type CLIConfig struct {
	RPCURL                    string
	NumConfirmations          uint64
	SafeAbortNonceTooLowCount uint64
	ResubmissionTimeout       time.Duration
	ReceiptQueryInterval      time.Duration
	NetworkTimeout            time.Duration
	TxSendTimeout             time.Duration
	TxNotInMempoolTimeout     time.Duration
}

func (m CLIConfig) Check() error {
	if m.RPCURL == "" {
		return errors.New("must provide a RPC url")
	}
	if m.NumConfirmations == 0 {
		return errors.New("NumConfirmations must not be 0")
	}
	if m.NetworkTimeout == 0 {
		return errors.New("must provide NetworkTimeout")
	}
	if m.ResubmissionTimeout == 0 {
		return errors.New("must provide ResubmissionTimeout")
	}
	if m.ReceiptQueryInterval == 0 {
		return errors.New("must provide ReceiptQueryInterval")
	}
	if m.TxNotInMempoolTimeout == 0 {
		return errors.New("must provide TxNotInMempoolTimeout")
	}
	if m.SafeAbortNonceTooLowCount == 0 {
		return errors.New("SafeAbortNonceTooLowCount must not be 0")
	}
	return nil
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		RPCURL:                    ctx.GlobalString(RPCUrlFlagName),
		NumConfirmations:          ctx.GlobalUint64(NumConfirmationsFlagName),
		SafeAbortNonceTooLowCount: ctx.GlobalUint64(SafeAbortNonceTooLowCountFlagName),
		ResubmissionTimeout:       ctx.GlobalDuration(ResubmissionTimeoutFlagName),
		ReceiptQueryInterval:      ctx.GlobalDuration(ReceiptQueryIntervalFlagName),
		NetworkTimeout:            ctx.GlobalDuration(NetworkTimeoutFlagName),
		TxSendTimeout:             ctx.GlobalDuration(TxSendTimeoutFlagName),
		TxNotInMempoolTimeout:     ctx.GlobalDuration(TxNotInMempoolTimeoutFlagName),
	}
}

// NewConfig dials the configured RPC endpoint and returns a Config without a
// sender. Use WithSigner to bind it to an account.
func NewConfig(ctx context.Context, cfg CLIConfig, l log.Logger) (Config, *ethclient.Client, error) {
	if err := cfg.Check(); err != nil {
		return Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.NetworkTimeout)
	defer cancel()
	client, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return Config{}, nil, fmt.Errorf("could not dial eth client: %w", err)
	}

	chainCtx, cancel := context.WithTimeout(ctx, cfg.NetworkTimeout)
	defer cancel()
	chainID, err := client.ChainID(chainCtx)
	if err != nil {
		client.Close()
		return Config{}, nil, fmt.Errorf("could not fetch chain ID: %w", err)
	}
	l.Debug("connected to network", "rpc", cfg.RPCURL, "chain_id", chainID)

	return NewConfigWithBackend(cfg, client, chainID), client, nil
}

// NewConfigWithBackend returns a Config without a sender that uses an
// already connected backend.
func NewConfigWithBackend(cfg CLIConfig, backend ETHBackend, chainID *big.Int) Config {
	return Config{
		Backend:                   backend,
		ChainID:                   chainID,
		ResubmissionTimeout:       cfg.ResubmissionTimeout,
		TxSendTimeout:             cfg.TxSendTimeout,
		TxNotInMempoolTimeout:     cfg.TxNotInMempoolTimeout,
		NetworkTimeout:            cfg.NetworkTimeout,
		ReceiptQueryInterval:      cfg.ReceiptQueryInterval,
		NumConfirmations:          cfg.NumConfirmations,
		SafeAbortNonceTooLowCount: cfg.SafeAbortNonceTooLowCount,
	}
}

// Config houses parameters for altering the behavior of a SimpleTxManager.
type Config struct {
	Backend ETHBackend
	// ChainID is the chain ID transactions are signed for.
	ChainID *big.Int

	// ResubmissionTimeout is the interval at which, if no previously
	// published transaction has been mined, the new tx with a bumped gas
	// price will be published.
	ResubmissionTimeout time.Duration

	// TxSendTimeout is how long to wait for sending a transaction.
	// By default it is unbounded.
	TxSendTimeout time.Duration

	// TxNotInMempoolTimeout is how long to wait before aborting a transaction send if the transaction does not
	// make it to the mempool. If the tx is in the mempool, TxSendTimeout is used instead.
	TxNotInMempoolTimeout time.Duration

	// NetworkTimeout is the allowed duration for a single network request.
	// This is intended to be used for network requests that can be replayed.
	NetworkTimeout time.Duration

	// RequireQueryInterval is the interval at which the tx manager will
	// query the backend to check for confirmations after a tx at a
	// specific gas price has been published.
	ReceiptQueryInterval time.Duration

	// NumConfirmations specifies how many blocks are need to consider a
	// transaction confirmed.
	NumConfirmations uint64

	// SafeAbortNonceTooLowCount specifies how many ErrNonceTooLow observations
	// are required to give up on a tx at a particular nonce without receiving
	// confirmation.
	SafeAbortNonceTooLowCount uint64

	// Signer is used to sign transactions when the gas price is increased.
	Signer opcrypto.SignerFn
	From   common.Address
}

// WithSigner returns a copy of the config that sends from the given address.
func (m Config) WithSigner(from common.Address, signer opcrypto.SignerFn) Config {
	m.From = from
	m.Signer = signer
	return m
}

func (m Config) Check() error {
	if m.Backend == nil {
		return errors.New("must provide the Backend")
	}
	if m.ChainID == nil {
		return errors.New("must provide the ChainID")
	}
	if m.NumConfirmations == 0 {
		return errors.New("NumConfirmations must not be 0")
	}
	if m.NetworkTimeout == 0 {
		return errors.New("must provide NetworkTimeout")
	}
	if m.ResubmissionTimeout == 0 {
		return errors.New("must provide ResubmissionTimeout")
	}
	if m.ReceiptQueryInterval == 0 {
		return errors.New("must provide ReceiptQueryInterval")
	}
	if m.TxNotInMempoolTimeout == 0 {
		return errors.New("must provide TxNotInMempoolTimeout")
	}
	if m.SafeAbortNonceTooLowCount == 0 {
		return errors.New("SafeAbortNonceTooLowCount must not be 0")
	}
	if m.Signer == nil {
		return errors.New("must provide the Signer")
	}
	if m.From == (common.Address{}) {
		return errors.New("must provide the From address")
	}
	return nil
}
