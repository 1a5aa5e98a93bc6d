package op_service

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"
)

func PrefixEnvVar(prefix, suffix string) string {
	return prefix + "_" + suffix
}

// ValidateEnvVars logs all env vars that look like they apply to the service,
// but are not recognized by any of the given flags.
func ValidateEnvVars(prefix string, flags []cli.Flag, log log.Logger) {
	for _, envVar := range validateEnvVars(prefix, os.Environ(), cliFlagsToEnvVars(flags)) {
		log.Warn("Unknown env var", "prefix", prefix, "env_var", envVar)
	}
}

func cliFlagsToEnvVars(flags []cli.Flag) map[string]struct{} {
	definedEnvVars := make(map[string]struct{})
	for _, flag := range flags {
		var envVars string
		switch f := flag.(type) {
		case cli.StringFlag:
			envVars = f.EnvVar
		case cli.StringSliceFlag:
			envVars = f.EnvVar
		case cli.IntFlag:
			envVars = f.EnvVar
		case cli.Uint64Flag:
			envVars = f.EnvVar
		case cli.BoolFlag:
			envVars = f.EnvVar
		case cli.DurationFlag:
			envVars = f.EnvVar
		case cli.GenericFlag:
			envVars = f.EnvVar
		}
		for _, envVar := range strings.Split(envVars, ",") {
			if envVar = strings.TrimSpace(envVar); envVar != "" {
				definedEnvVars[envVar] = struct{}{}
			}
		}
	}
	return definedEnvVars
}

// validateEnvVars returns the names of the unknown environment variables
// that match the prefix. Values are left out since they may hold keys.
func validateEnvVars(prefix string, providedEnvVars []string, definedEnvVars map[string]struct{}) []string {
	var out []string
	for _, envVar := range providedEnvVars {
		key, _, _ := strings.Cut(envVar, "=")
		if strings.HasPrefix(key, prefix) {
			if _, ok := definedEnvVars[key]; !ok {
				out = append(out, key)
			}
		}
	}
	return out
}

// InterruptContext returns a context that is cancelled on SIGINT or SIGTERM.
func InterruptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// FormatVersion renders a version string with optional git metadata.
func FormatVersion(version, gitCommit, gitDate string) string {
	v := version
	if gitCommit != "" {
		if len(gitCommit) > 8 {
			gitCommit = gitCommit[:8]
		}
		v += "-" + gitCommit
	}
	if gitDate != "" {
		v += "-" + gitDate
	}
	return v
}
