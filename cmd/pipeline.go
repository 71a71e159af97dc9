package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/graph"
	"github.com/devtree-data/devtree/internal/pipeline"
	"github.com/devtree-data/devtree/internal/report"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the full stage sequence: fetch, download, extract, aggregate, graph, analyze, report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		snapshot, err := p.Fetch(ctx)
		if err != nil {
			return err
		}

		p.Download(ctx)
		p.Extract(ctx)
		p.Aggregate()

		// Persist before the derived outputs so a failure past this
		// point never loses stage results.
		if err := p.SaveStore(); err != nil {
			return err
		}

		g := graph.Build(snapshot, p.Predicates())
		if err := g.Export(cfg.Paths.GraphPath()); err != nil {
			return err
		}
		if err := g.ExportCytoscape(cfg.Paths.CytoscapePath()); err != nil {
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
		if err := analysis.Export(cfg.Paths.AnalysisPath()); err != nil {
			return err
		}

		if err := report.WriteFile(report.Input{
			Store:        p.Store(),
			SnapshotIdx:  snapshot.Index(),
			NewDeviceIDs: p.NewDeviceIDs(),
			Elapsed:      p.Elapsed(),
		}, cfg.Paths.ReportPath()); err != nil {
			return err
		}

		zap.L().Info("pipeline complete", zap.Duration("elapsed", p.Elapsed()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}
