package op_service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestPrefixEnvVar(t *testing.T) {
	require.Equal(t, "OP_DEPLOYER_PRIVATE_KEY", PrefixEnvVar("OP_DEPLOYER", "PRIVATE_KEY"))
}

func TestCLIFlagsToEnvVars(t *testing.T) {
	flags := []cli.Flag{
		cli.StringFlag{Name: "foo", EnvVar: "OP_FOO"},
		cli.DurationFlag{Name: "bar", EnvVar: "OP_BAR, OP_BAR_LEGACY"},
		cli.BoolFlag{Name: "baz"},
	}
	res := cliFlagsToEnvVars(flags)
	require.Contains(t, res, "OP_FOO")
	require.Contains(t, res, "OP_BAR")
	require.Contains(t, res, "OP_BAR_LEGACY")
	require.Len(t, res, 3)
}

func TestValidateEnvVars(t *testing.T) {
	provided := []string{"OP_DEPLOYER_FOO=true", "OP_DEPLOYER_BAR=1", "OP_DEPLOYER_E2E_PRIVATE_KEY=abcd", "OTHER=x"}
	defined := map[string]struct{}{"OP_DEPLOYER_FOO": {}}
	invalids := validateEnvVars("OP_DEPLOYER", provided, defined)
	require.ElementsMatch(t, []string{"OP_DEPLOYER_BAR", "OP_DEPLOYER_E2E_PRIVATE_KEY"}, invalids)
}

func TestFormatVersion(t *testing.T) {
	require.Equal(t, "v0.1.0", FormatVersion("v0.1.0", "", ""))
	require.Equal(t, "v0.1.0-0123abcd-1700000000", FormatVersion("v0.1.0", "0123abcdef99", "1700000000"))
}
