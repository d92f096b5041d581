package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sabore-analytics/internal/orders"

	"go.uber.org/zap"
)

// RefreshRequest is the body of a report.refresh.requested message.
type RefreshRequest struct {
	RestaurantID *int64 `json:"restaurantId"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
}

// Refresher regenerates reports off the request path, on a ticker for the
// configured scopes and on demand from the refresh queue.
type Refresher struct {
	Service  *Service
	Scopes   []*int64
	Interval time.Duration
	Logger   *zap.Logger
}

func NewRefresher(service *Service, scopes []string, interval time.Duration, logger *zap.Logger) (*Refresher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Refresher{Service: service, Interval: interval, Logger: logger}
	for _, scope := range scopes {
		id, err := orders.ParseScope(scope)
		if err != nil {
			return nil, fmt.Errorf("invalid refresh restaurant %q: %w", scope, err)
		}
		r.Scopes = append(r.Scopes, id)
	}
	if len(r.Scopes) == 0 {
		r.Scopes = []*int64{nil}
	}
	return r, nil
}

// Run refreshes every scope once per interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	if r.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.Logger.Info("report refresher started", zap.Duration("interval", r.Interval), zap.Int("scopes", len(r.Scopes)))
	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("report refresher stopped")
			return
		case <-ticker.C:
			r.RefreshAll(ctx)
		}
	}
}

// RefreshAll regenerates each scope and returns how many succeeded.
func (r *Refresher) RefreshAll(ctx context.Context) int {
	ok := 0
	for _, id := range r.Scopes {
		start := time.Now()
		snap, err := r.Service.Refresh(ctx, orders.Query{RestaurantID: id})
		if err != nil {
			r.Logger.Warn("report refresh failed", zap.String("scope", orders.Scope(id)), zap.Error(err))
			continue
		}
		ok++
		r.Logger.Info("report refreshed",
			zap.String("scope", snap.Scope),
			zap.String("reportId", snap.ID),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}
	return ok
}

// HandleMessage consumes one refresh request. Its signature matches
// queue.HandlerFunc.
func (r *Refresher) HandleMessage(ctx context.Context, body []byte) error {
	var req RefreshRequest
	if err := json.Unmarshal(body, &req); err != nil {
		// A malformed body can never succeed; drop it.
		r.Logger.Warn("refresh request discarded", zap.Error(err))
		return nil
	}
	q := orders.Query{RestaurantID: req.RestaurantID}
	if req.StartDate != "" || req.EndDate != "" {
		start, end, err := ResolvePeriod(PeriodCustom, req.StartDate, req.EndDate, r.Service.Now())
		if err != nil {
			r.Logger.Warn("refresh request discarded", zap.Error(err))
			return nil
		}
		q.Start, q.End = start, end
	}
	snap, err := r.Service.Refresh(ctx, q)
	if err != nil {
		return err
	}
	r.Logger.Info("report refreshed on request", zap.String("scope", snap.Scope), zap.String("reportId", snap.ID))
	return nil
}
