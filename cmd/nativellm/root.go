package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peakyragnar/NativeLLM/pkg/core/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nativellm",
	Short: "SEC filing ingestion for LLM consumption",
	Long:  "Downloads SEC EDGAR filings, extracts clean text and XBRL facts, and writes per-filing text and LLM-native artifacts to local disk or Cloud Storage.",
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
