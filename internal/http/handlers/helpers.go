package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sabore-analytics/internal/export"
	"sabore-analytics/internal/orders"
	"sabore-analytics/internal/reports"
	"sabore-analytics/pkg/response"

	"go.uber.org/zap"
)

var errInvalidParam = errors.New("invalid parameter")

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func splitQueryList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	out := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func readBool(r *http.Request, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && value
}

// readPositiveInt returns fallback when key is absent. Values outside
// [1, max] are rejected.
func readPositiveInt(r *http.Request, key string, fallback int, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 || value > max {
		return 0, fmt.Errorf("%w: %s must be an integer between 1 and %d", errInvalidParam, key, max)
	}
	return value, nil
}

// readQuery builds the order query from restaurantId, period, startDate,
// endDate and status.
func (h *Handler) readQuery(r *http.Request) (orders.Query, error) {
	values := r.URL.Query()
	restaurantID, err := orders.ParseScope(values.Get("restaurantId"))
	if err != nil {
		return orders.Query{}, fmt.Errorf("%w: restaurantId must be an integer", errInvalidParam)
	}

	period := reports.Period(strings.ToLower(defaultString(values.Get("period"), string(reports.PeriodAll))))
	start, end, err := reports.ResolvePeriod(period, values.Get("startDate"), values.Get("endDate"), h.Reports.Now())
	if err != nil {
		return orders.Query{}, err
	}
	if period != reports.PeriodCustom && !start.IsZero() {
		// Relative periods are left open at the end so their cache key only
		// moves once a minute.
		start = start.Truncate(time.Minute)
		end = time.Time{}
	}

	return orders.Query{
		RestaurantID: restaurantID,
		Start:        start,
		End:          end,
		Statuses:     splitQueryList(values.Get("status")),
	}, nil
}

// writeError maps service errors to API error codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, errInvalidParam):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, reports.ErrInvalidPeriod):
		response.Error(w, http.StatusBadRequest, "INVALID_PERIOD", err.Error())
	case errors.Is(err, export.ErrUnknownFormat):
		response.Error(w, http.StatusBadRequest, "INVALID_FORMAT", err.Error())
	case errors.Is(err, reports.ErrNoSource):
		response.Error(w, http.StatusServiceUnavailable, "SOURCE_NOT_CONFIGURED", "No order source is configured")
	case errors.Is(err, reports.ErrArchiveDisabled):
		response.Error(w, http.StatusServiceUnavailable, "ARCHIVE_DISABLED", "Report archive is not configured")
	case errors.Is(err, context.Canceled):
		h.Logger.Debug("request canceled", zap.String("action", action))
	case errors.Is(err, reports.ErrSourceUnavailable):
		h.Logger.Warn("order source failed", zap.String("action", action), zap.String("path", r.URL.Path), zapError(err))
		response.Error(w, http.StatusBadGateway, "SOURCE_UNAVAILABLE", "Failed to fetch orders")
	default:
		h.Logger.Error(action+" failed", zap.String("path", r.URL.Path), zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}
