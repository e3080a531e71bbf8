package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

func newReprocessCmd(a *app) *cobra.Command {
	var (
		originID int
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "reprocess",
		Short: "Rerun table detection for one recorded source",
		Long: `Rerun table detection for a source already in the ledger and replace its
table records. Table images beyond the new count are removed.

Without --strategy the configured strategy for the source's kind is used.`,
		Example: `  tablemagnifier reprocess --origin 12
  tablemagnifier reprocess --origin 12 --strategy image_morphology`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if originID <= 0 {
				return errors.New("--origin must be a positive origin id")
			}
			ctx := cmd.Context()

			store, state, err := a.loadState(ctx)
			if err != nil {
				return err
			}
			src, ok := state.Source(originID)
			if !ok {
				return fmt.Errorf("%w: %d", repository.ErrOriginNotFound, originID)
			}

			if strategy == "" {
				strategy = a.cfg.WebStrategy
				if src.Kind() == entity.SourceKindPDF {
					strategy = a.cfg.PDFStrategy
				}
			}
			method, err := entity.ParseDetectionMethod(strategy)
			if err != nil {
				return err
			}

			web := src.Kind() == entity.SourceKindWeb
			p, err := a.newPipeline(store, web, !web)
			if err != nil {
				return err
			}

			res, err := p.Reprocess(ctx, state, originID, method)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "origin %d (%s): %d tables, previously %d; %d stale images removed\n",
				res.OriginID, res.Method, res.Tables, res.PreviousTables, res.RemovedArtifact)
			return nil
		},
	}

	cmd.Flags().IntVar(&originID, "origin", 0, "origin id to reprocess")
	cmd.Flags().StringVar(&strategy, "strategy", "", "detection strategy (dom_table, image_morphology, pdf_native_table)")
	_ = cmd.MarkFlagRequired("origin")
	return cmd
}
