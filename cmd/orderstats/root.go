// Package orderstats implements the orderstats command line interface, which runs estimators over files of values and
// serves estimator sessions over gRPC.
package orderstats

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override configuration, such as ORDERSTATS_WINDOW.
const EnvPrefix = "ORDERSTATS"

// Execute runs the root command, printing any error and exiting with a non-zero status on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the state shared by every command in one command tree.
type app struct {
	config *viper.Viper
	logger *slog.Logger
}

// NewRootCmd returns a new orderstats command tree. Configuration is layered: flags override ORDERSTATS_*
// environment variables, which override the config file, which overrides flag defaults.
func NewRootCmd() *cobra.Command {
	a := &app{config: viper.New()}
	rootCmd := &cobra.Command{
		Use:   "orderstats",
		Short: "Compute order statistics over streams of values",
		Long: `orderstats computes moving sorts, medians and order statistics over a sliding window, cumulative P²
quantile estimates, and compactor sketch summaries over streams of values read one per line from files or stdin.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json), defaults to ./orderstats.* if present")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		a.newEstimateCmd(sortCmdSpec),
		a.newEstimateCmd(medianCmdSpec),
		a.newEstimateCmd(quantileCmdSpec),
		a.newEstimateCmd(psquareCmdSpec),
		a.newEstimateCmd(sketchCmdSpec),
		a.newServeCmd(),
	)
	return rootCmd
}

// loadConfig loads configuration for cmd and builds the logger.
func (a *app) loadConfig(cmd *cobra.Command) error {
	v := a.config
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("orderstats")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}
