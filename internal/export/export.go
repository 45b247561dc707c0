// Package export writes the current snapshot as an xlsx workbook.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/retailfusion/internal/series"
	"github.com/rewired-gh/retailfusion/internal/severity"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

// Sheet names, in workbook order.
const (
	SheetRecommendations = "Recommendations"
	SheetTransactions    = "Transactions"
	SheetForecast        = "Forecast"
)

// ErrNoSnapshot is returned when there is nothing to export yet.
var ErrNoSnapshot = errors.New("no snapshot received yet")

// Workbook builds the export for v. The caller must Close the result.
func Workbook(v viewstate.ViewState) (*excelize.File, error) {
	snap, ok := v.Snapshot()
	if !ok {
		return nil, ErrNoSnapshot
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetRecommendations); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetTransactions, SheetForecast} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	recs := [][]any{{"Product", "Current Stock", "Reorder Qty", "Anomaly Hits", "Status", "Class"}}
	for _, r := range snap.Recommendations {
		class, _ := severity.Classify(r.Status)
		recs = append(recs, []any{r.Product, r.CurrentStock, r.ReorderQty, r.AnomalyHits, r.Status, string(class)})
	}

	txs := [][]any{{"ID", "Product", "Quantity", "Timestamp", "Anomaly", "Z-Score"}}
	for _, tx := range snap.Transactions {
		txs = append(txs, []any{tx.ID, tx.Product, tx.Quantity, tx.Timestamp, tx.IsAnomaly, tx.ZScore})
	}

	fc := [][]any{{"Day", "Demand", "Type"}}
	for _, p := range series.MergeSnapshot(snap) {
		fc = append(fc, []any{p.Day, p.Demand, string(p.Type)})
	}

	for sheet, rows := range map[string][][]any{
		SheetRecommendations: recs,
		SheetTransactions:    txs,
		SheetForecast:        fc,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Write streams the export for v to w.
func Write(w io.Writer, v viewstate.ViewState) error {
	f, err := Workbook(v)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
