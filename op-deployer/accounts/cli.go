package accounts

import (
	"errors"
	"strings"

	"github.com/urfave/cli"

	opservice "github.com/dcSpark/op-deployer/op-service"
)

const DefaultHDPathTemplate = "m/44'/60'/0'/0/%d"

const (
	PrivateKeyFlagName       = "private-key"
	MnemonicFlagName         = "mnemonic"
	HDPathFlagName           = "hd-path"
	MnemonicAccountsFlagName = "mnemonic-accounts"
	KeystoreFlagName         = "keystore"
	KeystorePasswordFlagName = "keystore.password"
)

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		cli.StringSliceFlag{
			Name:   PrivateKeyFlagName,
			Usage:  "Hex encoded private key. May be repeated; the first key is account 0",
			EnvVar: opservice.PrefixEnvVar(envPrefix, "PRIVATE_KEY"),
		},
		cli.StringFlag{
			Name:   MnemonicFlagName,
			Usage:  "The mnemonic used to derive accounts, after any private keys",
			EnvVar: opservice.PrefixEnvVar(envPrefix, "MNEMONIC"),
		},
		cli.StringFlag{
			Name:   HDPathFlagName,
			Usage:  "HD path template for mnemonic accounts. %d is replaced by the account index",
			Value:  DefaultHDPathTemplate,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "HD_PATH"),
		},
		cli.IntFlag{
			Name:   MnemonicAccountsFlagName,
			Usage:  "Number of accounts to derive from the mnemonic",
			Value:  10,
			EnvVar: opservice.PrefixEnvVar(envPrefix, "MNEMONIC_ACCOUNTS"),
		},
		cli.StringFlag{
			Name:   KeystoreFlagName,
			Usage:  "Directory of encrypted key files, loaded after mnemonic accounts",
			EnvVar: opservice.PrefixEnvVar(envPrefix, "KEYSTORE"),
		},
		cli.StringFlag{
			Name:   KeystorePasswordFlagName,
			Usage:  "Passphrase for the keystore files. Prompted for when empty",
			EnvVar: opservice.PrefixEnvVar(envPrefix, "KEYSTORE_PASSWORD"),
		},
	}
}

type CLIConfig struct {
	PrivateKeys    []string
	Mnemonic       string
	HDPathTemplate string
	MnemonicCount  int
	KeystoreDir    string
	Password       string
}

func (c CLIConfig) Check() error {
	if c.Mnemonic != "" {
		if strings.Count(c.HDPathTemplate, "%d") != 1 {
			return errors.New("hd path template must contain exactly one %d")
		}
		if c.MnemonicCount <= 0 {
			return errors.New("mnemonic account count must be positive")
		}
	}
	return nil
}

func ReadCLIConfig(ctx *cli.Context) CLIConfig {
	return CLIConfig{
		PrivateKeys:    ctx.GlobalStringSlice(PrivateKeyFlagName),
		Mnemonic:       ctx.GlobalString(MnemonicFlagName),
		HDPathTemplate: ctx.GlobalString(HDPathFlagName),
		MnemonicCount:  ctx.GlobalInt(MnemonicAccountsFlagName),
		KeystoreDir:    ctx.GlobalString(KeystoreFlagName),
		Password:       ctx.GlobalString(KeystorePasswordFlagName),
	}
}
