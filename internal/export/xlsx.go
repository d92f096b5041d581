package export

import (
	"fmt"

	"sabore-analytics/internal/analytics"

	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary    = "Summary"
	sheetDaily      = "Daily"
	sheetWeekly     = "Weekly"
	sheetMonthly    = "Monthly"
	sheetTopItems   = "Top Items"
	sheetPeakHours  = "Peak Hours"
	sheetWeekdays   = "Weekdays"
	sheetCategories = "Categories"
)

// XLSX renders the report as a workbook with one sheet per breakdown.
func XLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	w := &workbook{file: f}
	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F2E6D9"}},
	})
	if err != nil {
		return nil, err
	}
	w.header = header
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	w.money = money

	report := doc.Report
	w.summary(doc)
	w.buckets(sheetDaily, "Day", report.Daily)
	w.buckets(sheetWeekly, "Week", report.Weekly)
	w.buckets(sheetMonthly, "Month", report.Monthly)

	w.sheet(sheetTopItems, []any{"Rank", "Item", "Quantity", "Value"}, 8)
	for i, item := range report.TopItems {
		w.row(sheetTopItems, []any{i + 1, item.Name, item.QuantityTotal, item.ValueTotal}, 4)
	}

	w.sheet(sheetPeakHours, []any{"Hour", "Orders"}, 12)
	for _, entry := range report.PeakHours {
		w.row(sheetPeakHours, []any{entry.Hour, entry.Count}, 0)
	}

	w.buckets(sheetWeekdays, "Weekday", report.Weekdays)
	w.buckets(sheetCategories, "Category", report.Categories)

	if w.err != nil {
		return nil, fmt.Errorf("build workbook: %w", w.err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// workbook keeps the first error so sheet writers stay linear.
type workbook struct {
	file   *excelize.File
	header int
	money  int
	rows   map[string]int
	err    error
}

// sheet creates a sheet with a styled header row.
func (w *workbook) sheet(name string, header []any, firstColWidth float64) {
	if w.err != nil {
		return
	}
	if w.rows == nil {
		w.rows = map[string]int{}
	}
	if name != sheetSummary {
		if _, err := w.file.NewSheet(name); err != nil {
			w.err = err
			return
		}
	}
	w.rows[name] = 1
	w.row(name, header, 0)
	if w.err != nil {
		return
	}
	end, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		w.err = err
		return
	}
	if err := w.file.SetCellStyle(name, "A1", end, w.header); err != nil {
		w.err = err
		return
	}
	w.err = w.file.SetColWidth(name, "A", "A", firstColWidth)
}

// row appends values to the sheet. moneyCol is the 1-based column formatted
// as currency, 0 for none.
func (w *workbook) row(name string, values []any, moneyCol int) {
	if w.err != nil {
		return
	}
	n := w.rows[name]
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	if err := w.file.SetSheetRow(name, cell, &values); err != nil {
		w.err = err
		return
	}
	if moneyCol > 0 {
		target, _ := excelize.CoordinatesToCellName(moneyCol, n)
		w.err = w.file.SetCellStyle(name, target, target, w.money)
	}
	w.rows[name] = n + 1
}

func (w *workbook) buckets(name, label string, buckets analytics.Buckets) {
	w.sheet(name, []any{label, "Sales"}, 18)
	for _, bucket := range buckets {
		w.row(name, []any{bucket.Key, bucket.Value}, 2)
	}
}

func (w *workbook) summary(doc Document) {
	report := doc.Report
	w.sheet(sheetSummary, []any{"Metric", "Value"}, 28)
	rows := [][]any{
		{"Report", doc.title()},
		{"Restaurant", doc.Scope},
		{"Period", doc.Period},
		{"Generated at", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total sales", report.Metrics.TotalSales},
		{"Orders", report.Metrics.OrderCount},
		{"Average ticket", report.Metrics.AverageTicket},
		{"Growth %", report.Metrics.GrowthPercent},
		{"Trend", report.Trend.Direction},
		{"Daily slope", report.Trend.DailySlope},
		{"Skipped orders", report.SkippedOrders},
	}
	if stats := report.Statistics; !stats.IsEmpty() {
		rows = append(rows,
			[]any{"Mean order", stats.Mean},
			[]any{"Median order", stats.Median},
			[]any{"Standard deviation", stats.Stdev},
			[]any{"Largest order", stats.MaxOrder.ID},
			[]any{"Smallest order", stats.MinOrder.ID},
		)
	}
	for i, value := range report.Forecast {
		rows = append(rows, []any{fmt.Sprintf("Forecast day +%d", i+1), value})
	}
	for _, values := range rows {
		w.row(sheetSummary, values, 0)
	}
}
