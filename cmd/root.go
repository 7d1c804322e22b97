package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ksyjerry/fs-recon/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fs-recon",
	Short: "Korean/English financial statement reconciliation",
	Long:  "Parses a Korean DSD disclosure file and an English financial statement, maps notes across the two, reconciles every amount cell, and renders an Excel report.",
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
