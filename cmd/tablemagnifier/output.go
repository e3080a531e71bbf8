package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/usecase"
)

func printBatch(w io.Writer, res usecase.BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ORIGIN\tSTATUS\tTABLES\tSOURCE\n")
	for _, o := range res.Outcomes {
		if o.Status == entity.SourceStatusSkipped {
			continue
		}
		origin := "-"
		if o.OriginID > 0 {
			origin = fmt.Sprint(o.OriginID)
		}
		status := string(o.Status)
		switch {
		case o.Err != nil:
			status += ": " + o.Err.Error()
		case o.CommitErr != nil:
			status += " (not saved)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", origin, status, o.Tables, o.Ref)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nbatch %s: %d processed, %d failed, %d skipped, %d tables",
		res.BatchID, res.Processed, res.Failed, res.Skipped, res.TablesRecorded)
	if res.CommitFailures > 0 {
		fmt.Fprintf(w, ", %d commit failures", res.CommitFailures)
	}
	fmt.Fprintln(w)
}

func printReport(w io.Writer, rep usecase.Report) {
	fmt.Fprintf(w, "\nledger: %d sources, %d tables, max origin %d\n", rep.Sources, rep.Tables, rep.MaxOriginID)
	for _, k := range []entity.SourceKind{entity.SourceKindWeb, entity.SourceKindPDF} {
		fmt.Fprintf(w, "  %-20s %d\n", k, rep.ByKind[string(k)])
	}
	for _, m := range entity.DetectionMethods {
		if n := rep.ByMethod[string(m)]; n > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", m, n)
		}
	}
	fmt.Fprintf(w, "table images on disk: %d (difference %+d)\n", rep.ArtifactsOnDisk, rep.Discrepancy)
	printList(w, "missing images", rep.Missing)
	printList(w, "unrecorded images", rep.Orphans)
	printList(w, "ledger problems", rep.Problems)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n  %s\n", title, len(items), strings.Join(items, "\n  "))
}
