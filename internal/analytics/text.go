package analytics

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DefaultReportTitle = "SABORÊ SALES REPORT"
	DefaultCurrency    = "R$"
	textRankingLimit   = 5
)

type TextOptions struct {
	Title    string
	Currency string
}

// FormatText renders a report as a line-oriented summary.
func FormatText(report Report, opts TextOptions) string {
	if opts.Title == "" {
		opts.Title = DefaultReportTitle
	}
	p := message.NewPrinter(language.English)
	money := func(value float64) string {
		return FormatMoney(opts.Currency, value)
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString(p.Sprintf(format, args...))
		b.WriteByte('\n')
	}

	line("=== %s ===", opts.Title)
	line("")
	line("Total sales: %s", money(report.Metrics.TotalSales))
	line("Orders: %d", report.Metrics.OrderCount)
	line("Average ticket: %s", money(report.Metrics.AverageTicket))
	line("Growth: %s", signedPercent(report.Metrics.GrowthPercent))
	line("")

	line("PEAK HOURS:")
	for _, entry := range report.PeakHours.Busiest(textRankingLimit) {
		line("   %dh: %d orders", entry.Hour, entry.Count)
	}
	line("")

	line("WEEKDAY PERFORMANCE:")
	for _, bucket := range report.Weekdays.SortedByValue() {
		line("   %s: %s", bucket.Key, money(bucket.Value))
	}
	line("")

	line("TOP ITEMS:")
	for i, item := range report.TopItems {
		if i == textRankingLimit {
			break
		}
		line("   %d. %s: %s units", i+1, item.Name, formatQuantity(item.QuantityTotal))
	}
	line("")

	line("TREND: %s", strings.ToUpper(report.Trend.Direction))
	if report.Trend.DailySlope != 0 {
		line("   Daily growth: %s", money(report.Trend.DailySlope))
	}
	return b.String()
}

// FormatMoney renders value with the currency symbol, thousands grouping and
// two decimals.
func FormatMoney(currency string, value float64) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return currency + " " + message.NewPrinter(language.English).Sprintf("%.2f", value)
}

// FormatPercent renders a signed percentage with one decimal.
func FormatPercent(value float64) string {
	return signedPercent(value)
}

func signedPercent(value float64) string {
	out := strconv.FormatFloat(value, 'f', 1, 64) + "%"
	if !strings.HasPrefix(out, "-") {
		out = "+" + out
	}
	return out
}

func formatQuantity(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
