package main

import (
	"github.com/spf13/cobra"

	"github.com/devtree-data/devtree/internal/graph"
	"github.com/devtree-data/devtree/internal/pipeline"
)

var buildGraphCmd = &cobra.Command{
	Use:   "build-graph",
	Short: "Build the citation graph and export raw and Cytoscape JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		snapshot, err := p.LoadSnapshot()
		if err != nil {
			return err
		}

		g := graph.Build(snapshot, p.Predicates())
		if err := g.Export(cfg.Paths.GraphPath()); err != nil {
			return err
		}
		return g.ExportCytoscape(cfg.Paths.CytoscapePath())
	},
}

func init() {
	rootCmd.AddCommand(buildGraphCmd)
}
