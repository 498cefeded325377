package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExcelExporter_Export(t *testing.T) {
	invoiceDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := []port.MatchReportRow{
		{
			MatchID:                "m1",
			Status:                 "PROPOSED",
			Score:                  decimal.RequireFromString("0.95"),
			Confidence:             "high",
			InvoiceID:              "inv-1",
			InvoiceNumber:          "INV-1",
			VendorName:             "Staples",
			InvoiceAmount:          decimal.RequireFromString("150"),
			InvoiceCurrency:        "USD",
			InvoiceDate:            &invoiceDate,
			TransactionID:          "txn-1",
			TransactionExternalID:  "bank-1",
			TransactionAmount:      decimal.RequireFromString("150.00"),
			TransactionPostedAt:    time.Date(2024, 1, 11, 9, 30, 0, 0, time.UTC),
			TransactionDescription: "STAPLES #123",
			Reasoning:              "amount_exact: Exact amount match (weight 0.50, achieved 1.00)",
			CreatedAt:              time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			MatchID:           "m2",
			Status:            "CONFIRMED",
			Score:             decimal.RequireFromString("0.6"),
			Confidence:        "medium",
			InvoiceID:         "inv-2",
			InvoiceAmount:     decimal.RequireFromString("9.5"),
			TransactionID:     "txn-2",
			TransactionAmount: decimal.RequireFromString("9.5"),
		},
	}

	exporter := NewExcelExporter("", zap.NewNop())
	content, err := exporter.Export(rows)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", exporter.FileExtension())
	assert.Contains(t, exporter.ContentType(), "spreadsheetml")

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DefaultSheetName}, f.GetSheetList())

	got, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Match ID", got[0][0])
	assert.Equal(t, "Created At", got[0][len(reportHeader)-1])

	first := got[1]
	assert.Equal(t, "m1", first[0])
	assert.Equal(t, "0.9500", first[2])
	assert.Equal(t, "150.00", first[7])
	assert.Equal(t, "2024-01-10", first[9])
	assert.Equal(t, "2024-01-11", first[13])
	assert.Equal(t, "2024-02-01 12:00:00", first[16])

	second := got[2]
	assert.Equal(t, "m2", second[0])
	assert.Equal(t, "0.6000", second[2])
	assert.Equal(t, "", second[9])
}

func TestExcelExporter_EmptyReportKeepsHeader(t *testing.T) {
	exporter := NewExcelExporter("Report", zap.NewNop())
	content, err := exporter.Export(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0], len(reportHeader))
}
