package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "devtree",
	Short: "FDA 510(k) predicate lineage pipeline",
	Long:  "Fetches the openFDA 510(k) dataset, downloads summary PDFs, extracts predicate device citations via pattern and model-based methods, and builds the device ancestry graph.",
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
