// Package export writes chart series as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"salestracker/internal/core"
)

const (
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	chartSheet    = "Chart"
	recordsSheet  = "Records"
	moneyFormatID = 4 // #,##0.00
)

// Workbook is what gets exported: one series plus, optionally, the records
// it was built from.
type Workbook struct {
	Title   string
	Points  []core.ChartPoint
	Summary core.Summary
	Records []core.SalesRecord
}

// Filename suggests an attachment name for the period and anchor key.
func Filename(p core.Period, key string) string {
	return fmt.Sprintf("sales_%s_%s.xlsx", p, key)
}

// WriteXLSX renders the workbook to w.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormatID})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", chartSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	writeHeaders := func(sheet string, headers []string) {
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
			f.SetCellStyle(sheet, cell, cell, headerStyle)
		}
	}

	writeHeaders(chartSheet, []string{"Bucket", "Label", "Cash", "Online", "Total"})
	row := 2
	for _, p := range wb.Points {
		setRow(f, chartSheet, row, p.Date, p.Label, p.Cash.Float64(), p.Online.Float64(), p.Total.Float64())
		row++
	}
	setRow(f, chartSheet, row, "Total", wb.Title, wb.Summary.Cash.Float64(), wb.Summary.Online.Float64(), wb.Summary.Total.Float64())
	f.SetCellStyle(chartSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), headerStyle)
	f.SetCellStyle(chartSheet, "C2", fmt.Sprintf("E%d", row), moneyStyle)
	f.SetPanes(chartSheet, &excelize.Panes{Freeze: true, Split: true, YSplit: 1})

	if len(wb.Records) > 0 {
		if _, err := f.NewSheet(recordsSheet); err != nil {
			return fmt.Errorf("create records sheet: %w", err)
		}
		writeHeaders(recordsSheet, []string{"ID", "Date", "Cash", "Online", "Notes"})
		for i, r := range wb.Records {
			setRow(f, recordsSheet, i+2, r.ID, r.Date.String(), r.Cash.Float64(), r.Online.Float64(), r.Notes)
		}
		f.SetCellStyle(recordsSheet, "C2", fmt.Sprintf("D%d", len(wb.Records)+1), moneyStyle)
		f.AutoFilter(recordsSheet, "A1:E1", []excelize.AutoFilterOptions{})
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	f.SetSheetRow(sheet, cell, &values)
}

// RecordsIn returns the records that fall into one of the series' buckets,
// in their original order.
func RecordsIn(p core.Period, points []core.ChartPoint, recs []core.SalesRecord) []core.SalesRecord {
	keys := make(map[string]bool, len(points))
	for _, pt := range points {
		keys[pt.Date] = true
	}
	var out []core.SalesRecord
	for _, r := range recs {
		key, err := core.BucketKey(p, r.Date)
		if err == nil && keys[key] {
			out = append(out, r)
		}
	}
	return out
}
