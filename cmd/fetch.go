package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devtree-data/devtree/internal/pipeline"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the openFDA 510(k) dataset snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		if _, err := p.Fetch(ctx); err != nil {
			return err
		}
		return p.SaveStore()
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
