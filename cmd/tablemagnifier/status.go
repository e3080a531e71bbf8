package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/user/tablemagnifier/internal/usecase"
)

func newStatusCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarise the ledger and cross-check it against table images on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, state, err := a.loadState(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := usecase.BuildReport(state, a.layout())
			if err != nil {
				return fmt.Errorf("list table images: %w", err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				printReport(out, rep)
				return nil
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(rep); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			default:
				return fmt.Errorf("invalid output format %q (must be one of: text, yaml, json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, yaml, json)")
	return cmd
}
