package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/input"
	"github.com/user/tablemagnifier/internal/usecase"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		fromQueue bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every new URL and PDF",
		Long: `Process the URLs listed in URL_FILE and the PDFs under PDF_INBOX_DIR that the
ledger does not know yet. The ledger is saved after every source.

With --from-queue the batch is taken from the Redis queue instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sources, err := a.collectSources(ctx, fromQueue, limit)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				a.logger.Info("Nothing to process")
				return nil
			}

			store, state, err := a.loadState(ctx)
			if err != nil {
				return err
			}
			web, pdfs := needs(sources)
			p, err := a.newPipeline(store, web, pdfs)
			if err != nil {
				return err
			}
			a.serveTelemetry()

			res := p.RunBatch(ctx, state, sources)
			out := cmd.OutOrStdout()
			printBatch(out, res)

			rep, err := usecase.BuildReport(state, a.layout())
			if err != nil {
				a.logger.Warn("Artifact cross-check failed", zap.Error(err))
			} else {
				printReport(out, rep)
			}

			if res.CommitFailures > 0 {
				return fmt.Errorf("%w: %d of %d", errCommitFailures, res.CommitFailures, res.Processed)
			}
			return ctx.Err()
		},
	}

	cmd.Flags().BoolVar(&fromQueue, "from-queue", false, "take sources from the Redis queue instead of URL_FILE and PDF_INBOX_DIR")
	cmd.Flags().IntVar(&limit, "limit", 0, "with --from-queue, take at most this many sources (0 = all)")
	return cmd
}

// collectSources gathers the batch input: URLs first, then documents.
func (a *app) collectSources(ctx context.Context, fromQueue bool, limit int) ([]usecase.Source, error) {
	if fromQueue {
		queue, err := a.openQueue(ctx)
		if err != nil {
			return nil, err
		}
		// The ledger is consulted again by RunBatch; Take only drains.
		in := usecase.NewIntake(queue, nil, a.metrics, a.logger)
		sources, err := in.Take(ctx, limit)
		if err != nil {
			return sources, fmt.Errorf("drain queue: %w", err)
		}
		a.logger.Info("Sources taken from queue", zap.Int("count", len(sources)))
		return sources, nil
	}

	urls, err := input.LoadURLFile(a.cfg.URLFile)
	if err != nil {
		return nil, err
	}
	docs, err := input.ScanDocuments(a.cfg.PDFInboxDir, a.cfg.DocumentPattern)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Batch input read",
		zap.String("url_file", a.cfg.URLFile),
		zap.Int("urls", len(urls)),
		zap.String("inbox", a.cfg.PDFInboxDir),
		zap.Int("documents", len(docs)))

	sources := make([]usecase.Source, 0, len(urls)+len(docs))
	for _, u := range urls {
		sources = append(sources, usecase.WebSource(u))
	}
	for _, d := range docs {
		sources = append(sources, usecase.PDFSource(d))
	}
	return sources, nil
}
