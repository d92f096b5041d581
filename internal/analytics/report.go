package analytics

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

const (
	DefaultTrendWindowDays = 30
	DefaultForecastDays    = 7
	forecastLookbackDays   = 7
)

const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

type CoreMetrics struct {
	TotalSales    float64 `json:"total_sales"`
	AverageTicket float64 `json:"average_ticket"`
	OrderCount    int     `json:"order_count"`
	GrowthPercent float64 `json:"growth_percent"`
}

type OrderExtreme struct {
	ID        string  `json:"id"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
}

// AdvancedStats describes the distribution of order totals. The zero value
// means the batch was empty and marshals as {}.
type AdvancedStats struct {
	Mean     float64       `json:"mean"`
	Median   float64       `json:"median"`
	Stdev    float64       `json:"stdev"`
	MaxOrder *OrderExtreme `json:"max_order"`
	MinOrder *OrderExtreme `json:"min_order"`
}

func (s AdvancedStats) IsEmpty() bool {
	return s.MaxOrder == nil
}

func (s AdvancedStats) MarshalJSON() ([]byte, error) {
	if s.IsEmpty() {
		return []byte("{}"), nil
	}
	type plain AdvancedStats
	return json.Marshal(plain(s))
}

type Trend struct {
	Direction  string  `json:"direction"`
	DailySlope float64 `json:"daily_slope"`
}

type Report struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	Metrics       CoreMetrics   `json:"core_metrics"`
	Statistics    AdvancedStats `json:"advanced_statistics"`
	Trend         Trend         `json:"sales_trend"`
	Forecast      []float64     `json:"forecast"`
	PeakHours     HourHistogram `json:"peak_hours"`
	Weekdays      Buckets       `json:"weekday_performance"`
	TopItems      []ItemRank    `json:"top_items"`
	Daily         Buckets       `json:"sales_by_day"`
	Weekly        Buckets       `json:"sales_by_week"`
	Monthly       Buckets       `json:"sales_by_month"`
	Categories    Buckets       `json:"category_breakdown"`
	Statuses      []StatusCount `json:"status_breakdown"`
	SkippedOrders int           `json:"skipped_orders"`
}

// ReportBuilder assembles reports over one batch. now is the reference
// instant for trailing windows and the report's generation time.
type ReportBuilder struct {
	orders  []Order
	skipped int
	now     time.Time
}

func NewReportBuilder(batch Batch, now time.Time) *ReportBuilder {
	return &ReportBuilder{
		orders:  append([]Order(nil), batch.Orders...),
		skipped: batch.Skipped,
		now:     now,
	}
}

func (b *ReportBuilder) Orders() []Order {
	return b.orders
}

func (b *ReportBuilder) Now() time.Time {
	return b.now
}

func (b *ReportBuilder) CoreMetrics() CoreMetrics {
	if len(b.orders) == 0 {
		return CoreMetrics{}
	}
	total := TotalSales(b.orders)
	return CoreMetrics{
		TotalSales:    total,
		AverageTicket: total / float64(len(b.orders)),
		OrderCount:    len(b.orders),
		GrowthPercent: GrowthRate(b.orders, DefaultGrowthWindowDays, b.now),
	}
}

// AdvancedStatistics works on order totals as recorded, without expanding
// line items. Ties for max and min go to the first order seen.
func (b *ReportBuilder) AdvancedStatistics() AdvancedStats {
	if len(b.orders) == 0 {
		return AdvancedStats{}
	}
	values := make([]float64, 0, len(b.orders))
	maxIdx, minIdx := 0, 0
	for i, order := range b.orders {
		values = append(values, order.Total)
		if order.Total > b.orders[maxIdx].Total {
			maxIdx = i
		}
		if order.Total < b.orders[minIdx].Total {
			minIdx = i
		}
	}
	return AdvancedStats{
		Mean:     mean(values),
		Median:   median(values),
		Stdev:    sampleStdev(values),
		MaxOrder: extremeOf(b.orders[maxIdx]),
		MinOrder: extremeOf(b.orders[minIdx]),
	}
}

// SalesTrend fits a least-squares line through daily totals of the trailing
// window, using each day's position in the sorted sequence as x.
func (b *ReportBuilder) SalesTrend(windowDays int) Trend {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindowDays
	}
	start := b.now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	recent := make([]Order, 0, len(b.orders))
	for _, order := range b.orders {
		if order.HasTime && !order.Time.Before(start) {
			recent = append(recent, order)
		}
	}

	daily := GroupByPeriod(recent, PeriodDay)
	if len(daily) < 2 {
		return Trend{Direction: TrendFlat}
	}
	slope, ok := linearSlope(daily.Values())
	if !ok {
		return Trend{Direction: TrendFlat}
	}
	return Trend{Direction: trendDirection(slope), DailySlope: slope}
}

// Forecast repeats the mean of the last seven daily totals, or of all of them
// when fewer exist, for each day of the horizon. A negative horizon means the
// default and zero yields an empty forecast.
func (b *ReportBuilder) Forecast(horizonDays int) []float64 {
	if horizonDays < 0 {
		horizonDays = DefaultForecastDays
	}
	out := make([]float64, horizonDays)
	daily := GroupByPeriod(b.orders, PeriodDay).Values()
	if len(daily) == 0 {
		return out
	}
	if len(daily) > forecastLookbackDays {
		daily = daily[len(daily)-forecastLookbackDays:]
	}
	level := mean(daily)
	for i := range out {
		out[i] = level
	}
	return out
}

func (b *ReportBuilder) FullReport() Report {
	return Report{
		GeneratedAt:   b.now,
		Metrics:       b.CoreMetrics(),
		Statistics:    b.AdvancedStatistics(),
		Trend:         b.SalesTrend(DefaultTrendWindowDays),
		Forecast:      b.Forecast(DefaultForecastDays),
		PeakHours:     PeakHours(b.orders),
		Weekdays:      WeekdayPerformance(b.orders),
		TopItems:      TopItems(b.orders, DefaultTopItemsLimit),
		Daily:         GroupByPeriod(b.orders, PeriodDay),
		Weekly:        GroupByPeriod(b.orders, PeriodWeek),
		Monthly:       GroupByPeriod(b.orders, PeriodMonth),
		Categories:    CategoryBreakdown(b.orders),
		Statuses:      StatusBreakdown(b.orders),
		SkippedOrders: b.skipped,
	}
}

func linearSlope(values []float64) (float64, bool) {
	n := float64(len(values))
	if n < 2 {
		return 0, false
	}
	meanX := (n - 1) / 2
	meanY := mean(values)
	var num, den float64
	for i, y := range values {
		dx := float64(i) - meanX
		num += dx * (y - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

func trendDirection(slope float64) string {
	switch {
	case slope > 0:
		return TrendRising
	case slope < 0:
		return TrendFalling
	}
	return TrendFlat
}

func extremeOf(order Order) *OrderExtreme {
	return &OrderExtreme{ID: order.ID, Value: order.Total, Timestamp: order.RawTimestamp}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func sampleStdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
