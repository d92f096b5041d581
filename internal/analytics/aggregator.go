package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

const (
	DefaultTopItemsLimit    = 10
	DefaultGrowthWindowDays = 30
)

// ParsePeriodKind maps day/week/month names, including the backend's
// dia/semana/mes, to a PeriodKind.
func ParsePeriodKind(value string) (PeriodKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "day", "daily", "dia":
		return PeriodDay, nil
	case "week", "weekly", "semana":
		return PeriodWeek, nil
	case "month", "monthly", "mes", "mês":
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("unknown period kind %q", value)
}

// PeriodKey formats the bucket key of t for kind. Unknown kinds fall back to
// the day key.
func PeriodKey(t time.Time, kind PeriodKind) string {
	switch kind {
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-S%02d", year, week)
	case PeriodMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

type ItemRank struct {
	Name          string  `json:"name"`
	QuantityTotal float64 `json:"quantity_total"`
	ValueTotal    float64 `json:"value_total"`
}

type StatusCount struct {
	Status     string  `json:"status"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

var weekdayOrder = []string{
	time.Monday.String(),
	time.Tuesday.String(),
	time.Wednesday.String(),
	time.Thursday.String(),
	time.Friday.String(),
	time.Saturday.String(),
	time.Sunday.String(),
}

var monthOrder = func() []string {
	names := make([]string, 0, 12)
	for m := time.January; m <= time.December; m++ {
		names = append(names, m.String())
	}
	return names
}()

// TotalSales sums Order.Value over orders, so itemized orders count their
// line items and the rest their total.
func TotalSales(orders []Order) float64 {
	total := 0.0
	for _, order := range orders {
		total += order.Value()
	}
	return total
}

// GroupByPeriod sums order totals per period key for orders with a parsed
// timestamp. Keys are sorted ascending.
func GroupByPeriod(orders []Order, kind PeriodKind) Buckets {
	set := newBucketSet()
	for _, order := range orders {
		if !order.HasTime {
			continue
		}
		set.add(PeriodKey(order.Time, kind), order.Total)
	}
	return set.sortedByKey()
}

// TopItems ranks line items by quantity sold. Items with equal quantity keep
// the order in which they were first seen. A negative limit means the
// default and zero yields an empty ranking.
func TopItems(orders []Order, limit int) []ItemRank {
	if limit < 0 {
		limit = DefaultTopItemsLimit
	}
	index := make(map[string]int)
	ranking := make([]ItemRank, 0)
	for _, order := range orders {
		for _, item := range order.Items {
			i, ok := index[item.Name]
			if !ok {
				i = len(ranking)
				index[item.Name] = i
				ranking = append(ranking, ItemRank{Name: item.Name})
			}
			ranking[i].QuantityTotal += item.Quantity
			ranking[i].ValueTotal += item.Value()
		}
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].QuantityTotal > ranking[j].QuantityTotal
	})
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking
}

func PeakHours(orders []Order) HourHistogram {
	var counts [24]int
	for _, order := range orders {
		if !order.HasTime {
			continue
		}
		counts[order.Time.Hour()]++
	}
	histogram := HourHistogram{}
	for hour, count := range counts {
		if count > 0 {
			histogram = append(histogram, HourCount{Hour: hour, Count: count})
		}
	}
	return histogram
}

// WeekdayPerformance sums order totals per English weekday name, Monday
// first. Weekdays without orders are omitted.
func WeekdayPerformance(orders []Order) Buckets {
	set := newBucketSet()
	for _, order := range orders {
		if !order.HasTime {
			continue
		}
		set.add(order.Time.Weekday().String(), order.Total)
	}
	return set.inOrder(weekdayOrder)
}

// Seasonality sums order totals per English month name in calendar order.
// months does not filter the input; every month with data is returned.
func Seasonality(orders []Order, months int) Buckets {
	_ = months
	set := newBucketSet()
	for _, order := range orders {
		if !order.HasTime {
			continue
		}
		set.add(order.Time.Month().String(), order.Total)
	}
	return set.inOrder(monthOrder)
}

// GrowthRate compares sales in the trailing window ending at now with the
// window of the same length before it, as a percentage rounded to two
// decimals.
func GrowthRate(orders []Order, windowDays int, now time.Time) float64 {
	if windowDays <= 0 {
		windowDays = DefaultGrowthWindowDays
	}
	window := time.Duration(windowDays) * 24 * time.Hour
	currentStart := now.Add(-window)
	previousStart := currentStart.Add(-window)

	var current, previous []Order
	for _, order := range orders {
		if !order.HasTime {
			continue
		}
		switch {
		case !order.Time.Before(currentStart):
			current = append(current, order)
		case !order.Time.Before(previousStart):
			previous = append(previous, order)
		}
	}

	currentTotal := TotalSales(current)
	previousTotal := TotalSales(previous)
	if previousTotal == 0 {
		if currentTotal > 0 {
			return 100.0
		}
		return 0.0
	}
	return round2(100 * (currentTotal - previousTotal) / previousTotal)
}

// CategoryBreakdown sums line-item value per category, largest first.
func CategoryBreakdown(orders []Order) Buckets {
	set := newBucketSet()
	for _, order := range orders {
		for _, item := range order.Items {
			set.add(item.Category, item.Value())
		}
	}
	return set.items.SortedByValue()
}

// StatusBreakdown counts orders per status, most frequent first.
func StatusBreakdown(orders []Order) []StatusCount {
	index := make(map[string]int)
	out := make([]StatusCount, 0)
	for _, order := range orders {
		status := strings.ToLower(order.Status)
		if status == "" {
			status = "unknown"
		}
		i, ok := index[status]
		if !ok {
			i = len(out)
			index[status] = i
			out = append(out, StatusCount{Status: status})
		}
		out[i].Count++
	}
	for i := range out {
		out[i].Percentage = percentage(out[i].Count, len(orders))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func percentage(count int, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(count) / float64(total) * 100)
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
