package deployer

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/params"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/metrics"
	opservice "github.com/dcSpark/op-deployer/op-service"
	oplog "github.com/dcSpark/op-deployer/op-service/log"
)

// maxBalanceQueries bounds the concurrent balance requests.
const maxBalanceQueries = 8

// ListAccounts returns the action of the "accounts list" command: a table
// of the configured accounts in deployment order with their balances.
func ListAccounts(version string) func(cliCtx *cli.Context) error {
	return func(cliCtx *cli.Context) error {
		cfg := NewConfig(cliCtx)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid CLI flags: %w", err)
		}
		l := oplog.NewLogger(cfg.LogConfig)

		ctx, cancel := opservice.InterruptContext(context.Background())
		defer cancel()

		d, err := NewDeployerFromCLIConfig(ctx, cfg, l, metrics.NoopMetrics, version)
		if err != nil {
			return err
		}
		defer d.Close()
		return d.ListAccounts(ctx, cliCtx.App.Writer)
	}
}

// Balances returns the balance of every account, in provider order.
func (d *Deployer) Balances(ctx context.Context) ([]*big.Int, error) {
	accs := d.provider.All()
	balances := make([]*big.Int, len(accs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBalanceQueries)
	for i, acc := range accs {
		i, acc := i, acc
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, d.txConfig.NetworkTimeout)
			defer cancel()
			bal, err := d.backend.BalanceAt(cctx, acc.Address, nil)
			if err != nil {
				return fmt.Errorf("failed to fetch balance of %s: %w", acc.Address, err)
			}
			balances[i] = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

func (d *Deployer) ListAccounts(ctx context.Context, w io.Writer) error {
	if d.provider.Len() == 0 {
		return accounts.ErrNoAccounts
	}
	balances, err := d.Balances(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Index", "Address", "Source", "Balance (ETH)"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for i, acc := range d.provider.All() {
		table.Append([]string{strconv.Itoa(i), acc.Address.Hex(), acc.Source, formatEther(balances[i])})
	}
	table.Render()
	return nil
}

func formatEther(wei *big.Int) string {
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return eth.Text('f', 6)
}
