package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rseng/rseng-activity/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "rseng-activity",
	Short:        "Measure how long cataloged research software stays maintained",
	Long:         "Collects publication and last-commit dates for every repository in an RSEpedia catalog, then classifies which projects are still updated months after they were published.",
	SilenceUsage: true,
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
