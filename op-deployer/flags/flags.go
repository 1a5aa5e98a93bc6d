package flags

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	opservice "github.com/dcSpark/op-deployer/op-service"
	oplog "github.com/dcSpark/op-deployer/op-service/log"
	opmetrics "github.com/dcSpark/op-deployer/op-service/metrics"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
)

const EnvVarPrefix = "OP_DEPLOYER"

var (
	NetworkFlag = cli.StringFlag{
		Name:   "network",
		Usage:  "Name of the network to deploy to. A preset or an entry of --networks-file",
		Value:  "development",
		EnvVar: opservice.PrefixEnvVar(EnvVarPrefix, "NETWORK"),
	}
	NetworksFileFlag = cli.StringFlag{
		Name:   "networks-file",
		Usage:  "TOML file with additional networks, keyed by name",
		EnvVar: opservice.PrefixEnvVar(EnvVarPrefix, "NETWORKS_FILE"),
	}
	ProjectDirFlag = cli.StringFlag{
		Name:   "project-dir",
		Usage:  "Directory of the contracts project holding the compiled artifacts",
		Value:  ".",
		EnvVar: opservice.PrefixEnvVar(EnvVarPrefix, "PROJECT_DIR"),
	}
	DeploymentsDirFlag = cli.StringFlag{
		Name:   "deployments-dir",
		Usage:  "Directory to write deployment records to. Records are not written when empty",
		EnvVar: opservice.PrefixEnvVar(EnvVarPrefix, "DEPLOYMENTS_DIR"),
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	NetworkFlag,
	NetworksFileFlag,
	ProjectDirFlag,
	DeploymentsDirFlag,
}

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, txmgr.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, accounts.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

// Flags contains the list of configuration options available to the binary.
var Flags []cli.Flag

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.GlobalIsSet(f.GetName()) {
			return fmt.Errorf("flag %s is required", f.GetName())
		}
	}
	return nil
}
