package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/retailfusion/internal/export"
	"github.com/rewired-gh/retailfusion/internal/logger"
	"github.com/rewired-gh/retailfusion/internal/render"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

var (
	snapshotJSON bool
	snapshotXLSX string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch one snapshot and print the merged series and recommendations",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the dashboard view model as JSON")
	snapshotCmd.Flags().StringVar(&snapshotXLSX, "xlsx", "", "also write the spreadsheet export to this path")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	client := newBackendClient(cfg)
	snap, err := client.FetchSnapshot(context.Background())
	if err != nil {
		return err
	}

	views := viewstate.New()
	views.OnFetchSuccess(1, snap)
	page := render.Build(views.Current(), render.Options{
		DefaultTitle:    defaultTitle,
		RefreshInterval: cfg.Refresh.Interval,
	})
	for _, status := range page.UnknownStatuses {
		logger.Warn("Unrecognized recommendation status %q", status)
	}

	if snapshotXLSX != "" {
		if err := writeExport(snapshotXLSX, views.Current()); err != nil {
			return err
		}
		logger.Info("Export written to %s", snapshotXLSX)
	}

	if snapshotJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}
	return printPage(cmd.OutOrStdout(), page)
}

func writeExport(path string, v viewstate.ViewState) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printPage writes the merged series and recommendations, most severe first.
func printPage(out io.Writer, p render.Page) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\n\n", p.Title)
	for _, c := range p.Cards {
		fmt.Fprintf(w, "%s\t%s\n", c.Label, c.Value)
	}

	fmt.Fprintf(w, "\nDAY\tDEMAND\tTYPE\n")
	for _, pt := range p.Chart {
		fmt.Fprintf(w, "%s\t%g\t%s\n", pt.Day, pt.Demand, pt.Type)
	}

	recs := append([]render.RecommendationRow(nil), p.Recommendations...)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Class.Rank() < recs[j].Class.Rank()
	})
	fmt.Fprintf(w, "\nPRODUCT\tSTOCK\tREORDER\tANOMALY HITS\tSTATUS\n")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", r.Product, r.CurrentStock, r.ReorderQty, r.AnomalyHits, r.Status)
	}
	return w.Flush()
}
