package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nelhattab/electratrack/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "electratrack",
	Short: "Dashboard backend for electrical contract and substation records",
	Long:  "Loads contract and substation spreadsheets into per-session slots, then serves filtered tables, aggregate chart series, expiry alerts, and exports over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
