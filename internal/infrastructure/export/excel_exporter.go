// Package export renders match reports as spreadsheets.
package export

import (
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	// DefaultSheetName is used when no sheet name is configured
	DefaultSheetName = "Matches"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout      = "2006-01-02"
	timeLayout      = "2006-01-02 15:04:05"
)

var reportHeader = []interface{}{
	"Match ID",
	"Status",
	"Score",
	"Confidence",
	"Invoice ID",
	"Invoice Number",
	"Vendor",
	"Invoice Amount",
	"Invoice Currency",
	"Invoice Date",
	"Transaction ID",
	"External ID",
	"Transaction Amount",
	"Posted At",
	"Memo",
	"Reasoning",
	"Created At",
}

// ExcelExporter implements port.MatchReportExporter with an .xlsx workbook
type ExcelExporter struct {
	sheetName string
	logger    *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(sheetName string, logger *zap.Logger) *ExcelExporter {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &ExcelExporter{
		sheetName: sheetName,
		logger:    logger,
	}
}

// ContentType returns the MIME type of the workbook
func (e *ExcelExporter) ContentType() string {
	return xlsxContentType
}

// FileExtension returns the workbook file extension
func (e *ExcelExporter) FileExtension() string {
	return "xlsx"
}

// Export writes one header row followed by one row per match
func (e *ExcelExporter) Export(rows []port.MatchReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), e.sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(e.sheetName, "A1", &reportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := e.styleHeader(f); err != nil {
		return nil, err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		values := reportValues(row)
		if err := f.SetSheetRow(e.sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Match report rendered",
		zap.String("sheet", e.sheetName),
		zap.Int("rows", len(rows)))
	return buf.Bytes(), nil
}

func (e *ExcelExporter) styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(reportHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(e.sheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	// keep the header visible while scrolling
	return f.SetPanes(e.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// reportValues lays out a row in header order. Money and scores are written
// as fixed-point text so the workbook shows exactly what was stored.
func reportValues(row port.MatchReportRow) []interface{} {
	invoiceDate := ""
	if row.InvoiceDate != nil {
		invoiceDate = row.InvoiceDate.Format(dateLayout)
	}
	createdAt := ""
	if !row.CreatedAt.IsZero() {
		createdAt = row.CreatedAt.UTC().Format(timeLayout)
	}

	return []interface{}{
		row.MatchID,
		row.Status,
		row.Score.StringFixed(4),
		row.Confidence,
		row.InvoiceID,
		row.InvoiceNumber,
		row.VendorName,
		row.InvoiceAmount.StringFixed(2),
		row.InvoiceCurrency,
		invoiceDate,
		row.TransactionID,
		row.TransactionExternalID,
		row.TransactionAmount.StringFixed(2),
		row.TransactionPostedAt.UTC().Format(dateLayout),
		row.TransactionDescription,
		row.Reasoning,
		createdAt,
	}
}

var _ port.MatchReportExporter = (*ExcelExporter)(nil)
