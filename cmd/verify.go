package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/devtree-data/devtree/internal/knum"
	"github.com/devtree-data/devtree/internal/pipeline"
)

var (
	verifyShow       bool
	verifyPredicates string
)

var verifyCmd = &cobra.Command{
	Use:   "verify K-NUMBER",
	Short: "Show or set human-verified predicates for a device",
	Long:  "Marks a device human-verified, optionally replacing its predicate list. Verified predicates are frozen against automatic overwrite.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := knum.Normalize(args[0])
		if !knum.Valid(id) {
			return eris.Errorf("invalid device identifier %q", args[0])
		}

		p, err := pipeline.New(cfg)
		if err != nil {
			return err
		}
		st := p.Store()

		rec := st.Get(id)
		if rec == nil {
			return eris.Errorf("device %s not found in store", id)
		}

		if verifyShow {
			fmt.Printf("Device: %s\n", id)
			fmt.Printf("  Predicates: %v\n", rec.Preds.Values)
			fmt.Printf("  Method: %s\n", rec.Preds.Method)
			fmt.Printf("  Verified: %v\n", rec.Preds.Verified)
			fmt.Printf("  Doc: %s\n", rec.Doc.Status)
			fmt.Printf("  Text: %d chars, %d pages, %s\n", rec.Text.Chars, rec.Text.Pages, rec.Text.Quality)
			if rec.Errors.Download != "" {
				fmt.Printf("  Download error: %s\n", rec.Errors.Download)
			}
			if rec.Errors.Text != "" {
				fmt.Printf("  Text error: %s\n", rec.Errors.Text)
			}
			if rec.Errors.Predicate != "" {
				fmt.Printf("  Predicate error: %s\n", rec.Errors.Predicate)
			}
			return nil
		}

		var predicates []string
		if cmd.Flags().Changed("predicates") {
			predicates = []string{}
			for _, p := range strings.Split(verifyPredicates, ",") {
				p = knum.Normalize(strings.TrimSpace(p))
				if p == "" {
					continue
				}
				if !knum.Valid(p) {
					return eris.Errorf("invalid predicate identifier %q", p)
				}
				predicates = append(predicates, p)
			}
		}

		st.Verify(id, predicates)
		if err := p.SaveStore(); err != nil {
			return err
		}
		fmt.Printf("Device %s marked as human verified\n", id)
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyShow, "show", false, "show current state without modifying")
	verifyCmd.Flags().StringVar(&verifyPredicates, "predicates", "", "comma-separated replacement predicate list")
	rootCmd.AddCommand(verifyCmd)
}
