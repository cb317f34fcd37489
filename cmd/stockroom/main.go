/*
main.go - stockroom command entry point

COMMANDS:
  serve            Run the HTTP API (and the periodic stock audit)
  audit            Replay movements against live stock and report drift
  report monthly   Print the monthly withdrawal/return report

CONFIGURATION:
  A .env file in the working directory is loaded first, then the optional
  TOML file (--config or STOCKROOM_CONFIG), then STOCKROOM_* variables.
  See config/config.go for every setting.

EXAMPLES:
  stockroom serve
  STOCKROOM_STORE=postgres STOCKROOM_DATABASE_URL=postgres://... stockroom serve
  stockroom report monthly --year 2025 --month 3 --json
*/
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/warp/stockroom/config"
)

// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	configPath string
	jsonOutput bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "stockroom",
		Short:         "Warehouse access sessions and stock ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.Logger(cmd.ErrOrStderr())
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output as JSON")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newAuditCmd(a))
	root.AddCommand(newReportCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("stockroom failed", "err", err)
		os.Exit(1)
	}
}
