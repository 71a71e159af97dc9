package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/pipeline"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Reconcile extraction results into one predicate list per device",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		n := p.Aggregate()
		zap.L().Info("predicates aggregated", zap.Int("devices", n))
		return p.SaveStore()
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
}
