package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/tablemagnifier/internal/input"
	"github.com/user/tablemagnifier/internal/usecase"
)

func newEnqueueCmd(a *app) *cobra.Command {
	var fromFile bool

	cmd := &cobra.Command{
		Use:   "enqueue [url-or-pdf...]",
		Short: "Queue sources in Redis for a later run --from-queue",
		Example: `  tablemagnifier enqueue https://example.org/guidelines.html
  tablemagnifier enqueue temperal_pdf/report.pdf
  tablemagnifier enqueue --from-file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := args
			if fromFile {
				urls, err := input.LoadURLFile(a.cfg.URLFile)
				if err != nil {
					return err
				}
				refs = append(refs, urls...)
			}
			if len(refs) == 0 {
				return errors.New("nothing to enqueue: pass sources or --from-file")
			}
			ctx := cmd.Context()

			_, state, err := a.loadState(ctx)
			if err != nil {
				return err
			}
			queue, err := a.openQueue(ctx)
			if err != nil {
				return err
			}
			in := usecase.NewIntake(queue, state, a.metrics, a.logger)

			out := cmd.OutOrStdout()
			for _, ref := range refs {
				added, err := in.Submit(ctx, ref)
				switch {
				case errors.Is(err, usecase.ErrAlreadyRecorded):
					fmt.Fprintf(out, "recorded  %s\n", ref)
				case err != nil:
					return fmt.Errorf("enqueue %s: %w", ref, err)
				case added:
					fmt.Fprintf(out, "queued    %s\n", ref)
				default:
					fmt.Fprintf(out, "waiting   %s\n", ref)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromFile, "from-file", false, "also queue every URL in URL_FILE")
	return cmd
}
