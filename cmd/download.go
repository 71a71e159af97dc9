package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/devtree-data/devtree/internal/pipeline"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download summary PDFs for devices without a local copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}

		p.Download(ctx)
		return p.SaveStore()
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
