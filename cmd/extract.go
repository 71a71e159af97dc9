package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devtree-data/devtree/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text and predicate citations from downloaded PDFs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		p.Extract(ctx)
		return p.SaveStore()
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
