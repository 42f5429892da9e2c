package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caprock-exchange/match-cli/internal/config"
	"github.com/caprock-exchange/match-cli/internal/matching"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "match-cli",
	Short: "Deal/allocator matching for the allocation marketplace",
	Long:  "Scores funding requests against allocator mandates: ranks allocators for a request, scans open requests for an allocator, and serves both over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if cfg.Underserved.File != "" {
			if err := matching.LoadUnderservedFile(cfg.Underserved.File); err != nil {
				return fmt.Errorf("load underserved lists: %w", err)
			}
			zap.L().Info("loaded underserved-geography override",
				zap.String("file", cfg.Underserved.File),
				zap.Ints("years", matching.UnderservedYears()),
			)
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
