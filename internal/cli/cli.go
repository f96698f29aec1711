// Package cli holds what the api and processor commands share: version output and
// config loading with flag overrides.
package cli

import (
	"fmt"
	"runtime"

	"github.com/abkawan/toybank-ledger/internal/config"
	"github.com/abkawan/toybank-ledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information - set at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// NewVersionCommand prints version information for the named binary
func NewVersionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", name, Version)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// AddConfigFlag registers the --config flag shared by every command
func AddConfigFlag(cmd *cobra.Command, path *string) {
	cmd.PersistentFlags().StringVarP(path, "config", "c", "", "config file (yaml, json or toml)")
}

// LoadConfig reads the config file and environment, then applies the flags that were
// set on the command line. bindings maps config keys to flag names.
func LoadConfig(path string, flags *pflag.FlagSet, bindings map[string]string) (*config.Config, error) {
	v, err := config.New(path)
	if err != nil {
		return nil, err
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return nil, fmt.Errorf("unknown flag %q for %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process logger from config
func NewLogger(cfg config.LogConfig) zerolog.Logger {
	return logger.NewWithOptions(logger.Options{Level: cfg.Level, Console: cfg.Console})
}
