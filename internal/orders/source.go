package orders

import (
	"context"
	"strconv"
	"strings"
	"time"

	"sabore-analytics/internal/analytics"
)

// Query scopes an order fetch. Zero times leave that side of the range open.
type Query struct {
	RestaurantID *int64
	Start        time.Time
	End          time.Time
	Statuses     []string
}

// Key identifies the query for caching and event routing.
func (q Query) Key() string {
	parts := []string{Scope(q.RestaurantID)}
	if !q.Start.IsZero() {
		parts = append(parts, q.Start.UTC().Format(time.RFC3339))
	} else {
		parts = append(parts, "")
	}
	if !q.End.IsZero() {
		parts = append(parts, q.End.UTC().Format(time.RFC3339))
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, strings.Join(q.Statuses, ","))
	return strings.Join(parts, "|")
}

// Scope names the restaurant a query covers, "all" when unscoped.
func Scope(restaurantID *int64) string {
	if restaurantID == nil {
		return "all"
	}
	return strconv.FormatInt(*restaurantID, 10)
}

// ParseScope is the inverse of Scope.
func ParseScope(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "all" {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type Source interface {
	Name() string
	FetchOrders(ctx context.Context, q Query) ([]analytics.RawOrder, error)
}
