package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	"github.com/dcSpark/op-deployer/op-deployer/deployer"
	"github.com/dcSpark/op-deployer/op-deployer/flags"
	opservice "github.com/dcSpark/op-deployer/op-service"
	oplog "github.com/dcSpark/op-deployer/op-service/log"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	oplog.SetupDefaults()

	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = opservice.FormatVersion(Version, GitCommit, GitDate)
	app.Name = "op-deployer"
	app.Usage = "Greeter Deployment Service"
	app.Description = "Deploys the Greeter contract from the first configured account and prints its address"
	app.Action = deployer.Main(Version)
	app.Commands = []cli.Command{
		{
			Name:  "accounts",
			Usage: "Inspect the configured signing accounts",
			Subcommands: []cli.Command{
				{
					Name:   "list",
					Usage:  "List accounts in deployment order with their balances",
					Action: deployer.ListAccounts(Version),
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}
