// Command tablemagnifier finds tables on web pages and in PDFs, saves each one
// as an image and keeps an incremental ledger of what has been processed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := rootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tablemagnifier",
		Short: "Extract table images from web pages and PDFs",
		Long: `tablemagnifier renders web pages and PDF pages, locates the tables on them,
saves every table as a PNG and records sources and tables in a ledger.

Sources already in the ledger are skipped, so a batch can be rerun at any
time and only new URLs and documents are processed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default: optional .env in the working directory)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCmd(a),
		newReprocessCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
		newEnqueueCmd(a),
	)
	return cmd
}
