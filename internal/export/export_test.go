package export

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/retailfusion/internal/models"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

func TestWorkbook_NoSnapshot(t *testing.T) {
	_, err := Workbook(viewstate.New().Current())
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, viewstate.New().Current()), ErrNoSnapshot)
	assert.Zero(t, buf.Len())
}

func TestWrite_Sheets(t *testing.T) {
	store := viewstate.New()
	store.OnFetchSuccess(1, &models.Snapshot{
		Forecast: models.Forecast{
			Historical: []models.DemandPoint{{Day: "Mon", Demand: 10}, {Day: "Tue", Demand: 11}},
			Forecast:   []models.DemandPoint{{Day: "Wed", Demand: 12.5}},
		},
		Transactions: []models.Transaction{
			{ID: "TX-10001", Product: "Gaming Mice", Quantity: 72, IsAnomaly: true, ZScore: 4.2, Timestamp: "2024-03-01 10:00:00 UTC"},
		},
		Recommendations: []models.Recommendation{
			{Product: "Gaming Mice", CurrentStock: 40, ReorderQty: 90, AnomalyHits: 1, Status: "critical"},
			{Product: "Smart Watches", CurrentStock: 150, Status: "overstocked"},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, store.Current()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRecommendations, SheetTransactions, SheetForecast}, f.GetSheetList())

	recs, err := f.GetRows(SheetRecommendations)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"Gaming Mice", "40", "90", "1", "critical", "critical"}, recs[1])
	assert.Equal(t, "unknown", recs[2][5])

	txs, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "TX-10001", txs[1][0])
	assert.Equal(t, "TRUE", txs[1][4])

	fc, err := f.GetRows(SheetForecast)
	require.NoError(t, err)
	require.Len(t, fc, 4)
	assert.Equal(t, []string{"Mon", "10", "Historical"}, fc[1])
	assert.Equal(t, []string{"Wed", "12.5", "Forecast"}, fc[3])
}
