// Command skypass predicts satellite positions and passes from TLE data.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/star/skypass/internal/config"
)

var (
	configPath string
	cfg        config.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "skypass",
	Short: "Satellite positions and pass predictions from TLE data",
	Long: `skypass parses two-line element sets, propagates orbits and predicts
when satellites rise above an observer's horizon.

Settings come from an optional config file and ` + config.EnvPrefix + `_* environment
variables, e.g. ` + config.EnvPrefix + `_TLE_SOURCE_URL or ` + config.EnvPrefix + `_OBSERVER_LATITUDE.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Bootstrap logger until the configured level is known.
		boot := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		c, err := config.Load(configPath, boot)
		if err != nil {
			return err
		}
		cfg = c
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level}))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, toml or json)")
	rootCmd.AddCommand(serveCmd, positionCmd, passesCmd, trackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
