package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"sabore-analytics/internal/analytics"

	"github.com/phpdave11/gofpdf"
)

const pdfRankingLimit = 10

// PDF renders the report as a single A4 summary with ranked tables.
func PDF(doc Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	report := doc.Report

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, tr(doc.title()), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if doc.Scope != "" {
		pdf.CellFormat(0, 5, tr("Restaurant: "+doc.Scope), "", 1, "C", false, 0, "")
	}
	if doc.Period != "" {
		pdf.CellFormat(0, 5, tr("Period: "+doc.Period), "", 1, "C", false, 0, "")
	}
	if !report.GeneratedAt.IsZero() {
		pdf.CellFormat(0, 5, "Generated: "+report.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
	}

	section := func(title string) {
		pdf.Ln(3)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, tr(title), "B", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
	}
	row := func(label, value string) {
		pdf.CellFormat(110, 5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(value), "", 1, "R", false, 0, "")
	}

	section("Summary")
	row("Total sales", doc.money(report.Metrics.TotalSales))
	row("Orders", strconv.Itoa(report.Metrics.OrderCount))
	row("Average ticket", doc.money(report.Metrics.AverageTicket))
	row("Growth (30 days)", analytics.FormatPercent(report.Metrics.GrowthPercent))
	row("Trend", strings.ToUpper(report.Trend.Direction))
	row("Daily slope", doc.money(report.Trend.DailySlope))
	if report.SkippedOrders > 0 {
		row("Orders without a valid date", strconv.Itoa(report.SkippedOrders))
	}

	if stats := report.Statistics; !stats.IsEmpty() {
		section("Order statistics")
		row("Mean", doc.money(stats.Mean))
		row("Median", doc.money(stats.Median))
		row("Standard deviation", doc.money(stats.Stdev))
		row("Largest order", fmt.Sprintf("#%s %s", stats.MaxOrder.ID, doc.money(stats.MaxOrder.Value)))
		row("Smallest order", fmt.Sprintf("#%s %s", stats.MinOrder.ID, doc.money(stats.MinOrder.Value)))
	}

	if len(report.Forecast) > 0 {
		section("Forecast")
		for i, value := range report.Forecast {
			row(fmt.Sprintf("Day +%d", i+1), doc.money(value))
		}
	}

	if len(report.TopItems) > 0 {
		section("Top items")
		for i, item := range report.TopItems {
			if i == pdfRankingLimit {
				break
			}
			row(fmt.Sprintf("%d. %s (%s units)", i+1, item.Name, strconv.FormatFloat(item.QuantityTotal, 'f', -1, 64)), doc.money(item.ValueTotal))
		}
	}

	if busiest := report.PeakHours.Busiest(pdfRankingLimit); len(busiest) > 0 {
		section("Peak hours")
		for _, entry := range busiest {
			row(fmt.Sprintf("%02dh", entry.Hour), fmt.Sprintf("%d orders", entry.Count))
		}
	}

	bucketSection := func(title string, buckets analytics.Buckets) {
		if len(buckets) == 0 {
			return
		}
		section(title)
		for _, bucket := range buckets {
			row(bucket.Key, doc.money(bucket.Value))
		}
	}
	bucketSection("Weekday performance", report.Weekdays)
	bucketSection("Sales by month", report.Monthly)
	bucketSection("Categories", report.Categories)

	if len(report.Statuses) > 0 {
		section("Order status")
		for _, status := range report.Statuses {
			row(status.Status, fmt.Sprintf("%d (%.2f%%)", status.Count, status.Percentage))
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return out.Bytes(), nil
}
