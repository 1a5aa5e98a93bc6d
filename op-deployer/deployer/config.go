package deployer

import (
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/flags"
	oplog "github.com/dcSpark/op-deployer/op-service/log"
	opmetrics "github.com/dcSpark/op-deployer/op-service/metrics"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
)

type CLIConfig struct {
	// Network is the name of the network to deploy to.
	Network string

	// NetworksFile optionally adds networks to the presets.
	NetworksFile string

	// ProjectDir is the root of the contracts project.
	ProjectDir string

	// DeploymentsDir receives a record per deployment when set.
	DeploymentsDir string

	TxMgrConfig txmgr.CLIConfig

	LogConfig oplog.CLIConfig

	MetricsConfig opmetrics.CLIConfig

	AccountsConfig accounts.CLIConfig
}

// Check validates every part of the config and reports all problems at once.
// The RPC url of the tx manager is checked after network resolution.
func (c CLIConfig) Check() error {
	var result *multierror.Error
	if c.Network == "" {
		result = multierror.Append(result, errors.New("network must be set"))
	}
	if c.ProjectDir == "" {
		result = multierror.Append(result, errors.New("project dir must be set"))
	}
	if err := c.LogConfig.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.MetricsConfig.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.AccountsConfig.Check(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// NewConfig parses the Config from the provided flags or environment variables.
func NewConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		Network:        ctx.GlobalString(flags.NetworkFlag.Name),
		NetworksFile:   ctx.GlobalString(flags.NetworksFileFlag.Name),
		ProjectDir:     ctx.GlobalString(flags.ProjectDirFlag.Name),
		DeploymentsDir: ctx.GlobalString(flags.DeploymentsDirFlag.Name),
		TxMgrConfig:    txmgr.ReadCLIConfig(ctx),
		LogConfig:      oplog.ReadCLIConfig(ctx),
		MetricsConfig:  opmetrics.ReadCLIConfig(ctx),
		AccountsConfig: accounts.ReadCLIConfig(ctx),
	}
}
