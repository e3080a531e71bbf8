package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/tablemagnifier/internal/input"
	"github.com/user/tablemagnifier/internal/ledger"
	"github.com/user/tablemagnifier/internal/usecase"
)

func newWatchCmd(a *app) *cobra.Command {
	var quiet time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process PDFs as they land in the inbox",
		Long: `Process the PDFs already in PDF_INBOX_DIR, then keep watching the directory and
process every new document once it has stopped changing. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, state, err := a.loadState(ctx)
			if err != nil {
				return err
			}
			p, err := a.newPipeline(store, false, true)
			if err != nil {
				return err
			}
			w, err := input.NewWatcher(a.cfg.PDFInboxDir, a.cfg.DocumentPattern, quiet, a.logger)
			if err != nil {
				return err
			}
			a.serveTelemetry()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := w.Run(gctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return a.drainInbox(gctx, p, state, w.Documents())
			})
			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&quiet, "quiet", 2*time.Second, "how long a file must stay unchanged before it is processed")
	return cmd
}

// drainInbox processes what is already in the inbox, then each document the
// watcher reports, one batch per document.
func (a *app) drainInbox(ctx context.Context, p *usecase.Pipeline, state *ledger.State, docs <-chan string) error {
	existing, err := input.ScanDocuments(a.cfg.PDFInboxDir, a.cfg.DocumentPattern)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		sources := make([]usecase.Source, len(existing))
		for i, d := range existing {
			sources[i] = usecase.PDFSource(d)
		}
		a.logBatch(p.RunBatch(ctx, state, sources))
	}

	for path := range docs {
		a.logBatch(p.RunBatch(ctx, state, []usecase.Source{usecase.PDFSource(path)}))
	}
	return nil
}

func (a *app) logBatch(res usecase.BatchResult) {
	for _, o := range res.Outcomes {
		if o.Err != nil {
			a.logger.Warn("Source failed", zap.String("source", o.Ref), zap.Error(o.Err))
		}
	}
}
