package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devtree-data/devtree/internal/graph"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compute structural and company analytics over the citation graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, err := graph.Load(cfg.Paths.GraphPath())
		if err != nil {
			return err
		}

		analysis, err := graph.Analyze(ctx, g, graph.Options{
			TopChains:       cfg.Analyze.TopChains,
			TopDevices:      cfg.Analyze.TopDevices,
			TopCompanies:    cfg.Analyze.TopCompanies,
			MinCompanyEdges: cfg.Analyze.MinCompanyEdges,
			ChainWorkers:    cfg.Analyze.ChainWorkers,
			MinVariants:     cfg.Analyze.MinVariants,
			MinDevices:      cfg.Analyze.MinDevices,
		})
		if err != nil {
			return err
		}
		return analysis.Export(cfg.Paths.AnalysisPath())
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
