package log

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func TestDefaultCLIOptions(t *testing.T) {
	cfg := configForArgs(t)
	require.Equal(t, "info", cfg.Level)
	require.Equal(t, "text", cfg.Format)
	require.NoError(t, cfg.Check())
}

func TestLevel(t *testing.T) {
	cfg := configForArgs(t, "--log.level", "DEBUG")
	require.Equal(t, "DEBUG", cfg.Level)
	require.NoError(t, cfg.Check())
	require.Equal(t, log.LvlDebug, Level(cfg.Level))
}

func TestInvalidFormat(t *testing.T) {
	cfg := configForArgs(t, "--log.format", "yaml")
	require.ErrorContains(t, cfg.Check(), "unrecognized log format")
}

func TestInvalidLevel(t *testing.T) {
	cfg := configForArgs(t, "--log.level", "loud")
	require.ErrorContains(t, cfg.Check(), "unrecognized log level")
}

func TestColor(t *testing.T) {
	cfg := configForArgs(t, "--log.color")
	require.True(t, cfg.Color)
}

func TestLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, CLIConfig{Level: "warn", Format: "logfmt"})
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "msg=shown")
	require.Contains(t, buf.String(), "key=value")
}

func configForArgs(t *testing.T, args ...string) CLIConfig {
	app := cli.NewApp()
	app.Flags = CLIFlags("TEST")
	app.Name = "test"
	var config CLIConfig
	app.Action = func(ctx *cli.Context) error {
		config = ReadCLIConfig(ctx)
		return nil
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return config
}
