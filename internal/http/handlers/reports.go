package handlers

import (
	"fmt"
	"net/http"
	"time"

	"sabore-analytics/internal/analytics"
	"sabore-analytics/internal/reports"
	"sabore-analytics/pkg/response"
)

const (
	maxWindowDays   = 3650
	maxForecastDays = 365
	maxTopItems     = 100
	maxMonths       = 120
)

// reportEnvelope wraps a single report section with the dataset it was
// computed from.
type reportEnvelope struct {
	Scope     string     `json:"scope"`
	Source    string     `json:"source"`
	Cached    bool       `json:"cached"`
	Skipped   int        `json:"skipped"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	FetchedAt time.Time  `json:"fetchedAt"`
	Result    any        `json:"result"`
}

func envelope(ds *reports.Dataset, result any) reportEnvelope {
	env := reportEnvelope{
		Scope:     ds.Scope,
		Source:    ds.Source,
		Cached:    ds.Cached,
		Skipped:   ds.Batch.Skipped,
		FetchedAt: ds.FetchedAt,
		Result:    result,
	}
	if !ds.Query.Start.IsZero() {
		start := ds.Query.Start
		env.Start = &start
	}
	if !ds.Query.End.IsZero() {
		end := ds.Query.End
		env.End = &end
	}
	return env
}

// withDataset loads the dataset for the request and responds with the
// section computed by build.
func (h *Handler) withDataset(w http.ResponseWriter, r *http.Request, action string, build func(ds *reports.Dataset) any) {
	q, err := h.readQuery(r)
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	ds, err := h.Reports.Load(r.Context(), q, readBool(r, "refresh"))
	if err != nil {
		h.writeError(w, r, err, action)
		return
	}
	response.Success(w, envelope(ds, build(ds)))
}

func (h *Handler) FullReport(w http.ResponseWriter, r *http.Request) {
	q, err := h.readQuery(r)
	if err != nil {
		h.writeError(w, r, err, "build report")
		return
	}
	snap, err := h.Reports.Generate(r.Context(), q, readBool(r, "refresh"))
	if err != nil {
		h.writeError(w, r, err, "build report")
		return
	}
	response.Success(w, snap)
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, "compute metrics", func(ds *reports.Dataset) any {
		return ds.Builder.CoreMetrics()
	})
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, "compute statistics", func(ds *reports.Dataset) any {
		return ds.Builder.AdvancedStatistics()
	})
}

func (h *Handler) Trend(w http.ResponseWriter, r *http.Request) {
	window, err := readPositiveInt(r, "window", analytics.DefaultTrendWindowDays, maxWindowDays)
	if err != nil {
		h.writeError(w, r, err, "compute trend")
		return
	}
	h.withDataset(w, r, "compute trend", func(ds *reports.Dataset) any {
		return ds.Builder.SalesTrend(window)
	})
}

func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	horizon, err := readPositiveInt(r, "horizon", analytics.DefaultForecastDays, maxForecastDays)
	if err != nil {
		h.writeError(w, r, err, "compute forecast")
		return
	}
	h.withDataset(w, r, "compute forecast", func(ds *reports.Dataset) any {
		return ds.Builder.Forecast(horizon)
	})
}

func (h *Handler) TopItems(w http.ResponseWriter, r *http.Request) {
	limit, err := readPositiveInt(r, "limit", analytics.DefaultTopItemsLimit, maxTopItems)
	if err != nil {
		h.writeError(w, r, err, "rank items")
		return
	}
	h.withDataset(w, r, "rank items", func(ds *reports.Dataset) any {
		return analytics.TopItems(ds.Builder.Orders(), limit)
	})
}

func (h *Handler) PeakHours(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, "compute peak hours", func(ds *reports.Dataset) any {
		return analytics.PeakHours(ds.Builder.Orders())
	})
}

func (h *Handler) Weekdays(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, "compute weekday performance", func(ds *reports.Dataset) any {
		return analytics.WeekdayPerformance(ds.Builder.Orders())
	})
}

func (h *Handler) Seasonality(w http.ResponseWriter, r *http.Request) {
	months, err := readPositiveInt(r, "months", 12, maxMonths)
	if err != nil {
		h.writeError(w, r, err, "compute seasonality")
		return
	}
	h.withDataset(w, r, "compute seasonality", func(ds *reports.Dataset) any {
		return analytics.Seasonality(ds.Builder.Orders(), months)
	})
}

func (h *Handler) Periods(w http.ResponseWriter, r *http.Request) {
	kind, err := analytics.ParsePeriodKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", errInvalidParam, err), "group sales")
		return
	}
	h.withDataset(w, r, "group sales", func(ds *reports.Dataset) any {
		return map[string]any{
			"kind":    kind,
			"buckets": analytics.GroupByPeriod(ds.Builder.Orders(), kind),
		}
	})
}

func (h *Handler) Growth(w http.ResponseWriter, r *http.Request) {
	window, err := readPositiveInt(r, "window", analytics.DefaultGrowthWindowDays, maxWindowDays)
	if err != nil {
		h.writeError(w, r, err, "compute growth")
		return
	}
	h.withDataset(w, r, "compute growth", func(ds *reports.Dataset) any {
		return map[string]any{
			"window_days":    window,
			"growth_percent": analytics.GrowthRate(ds.Builder.Orders(), window, ds.Builder.Now()),
		}
	})
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, "compute categories", func(ds *reports.Dataset) any {
		return analytics.CategoryBreakdown(ds.Builder.Orders())
	})
}

func (h *Handler) Statuses(w http.ResponseWriter, r *http.Request) {
	h.withDataset(w, r, "compute statuses", func(ds *reports.Dataset) any {
		return analytics.StatusBreakdown(ds.Builder.Orders())
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	q, err := h.readQuery(r)
	if err != nil {
		h.writeError(w, r, err, "refresh report")
		return
	}
	snap, err := h.Reports.Refresh(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err, "refresh report")
		return
	}
	response.Success(w, snap)
}
