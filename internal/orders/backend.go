package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sabore-analytics/internal/analytics"

	"go.uber.org/zap"
)

var ordersEndpoints = []string{"/api/pedidos", "/pedidos"}

// APIError reports a failed call to the Saborê backend.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %s: %s", e.Endpoint, e.Message)
}

// BackendSource fetches orders from the Saborê REST backend. The prefixed
// endpoint is tried first, then the legacy unprefixed one.
type BackendSource struct {
	BaseURL string
	Client  *http.Client
	Logger  *zap.Logger
}

func NewBackendSource(baseURL string, timeout time.Duration, logger *zap.Logger) *BackendSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

func (s *BackendSource) Name() string {
	return "backend"
}

func (s *BackendSource) FetchOrders(ctx context.Context, q Query) ([]analytics.RawOrder, error) {
	if s.BaseURL == "" {
		return nil, errors.New("backend base url is not configured")
	}
	params := backendParams(q)

	var errs []error
	for _, endpoint := range ordersEndpoints {
		orders, err := s.get(ctx, endpoint, params)
		if err == nil {
			return filterStatuses(orders, q.Statuses), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if s.Logger != nil {
			s.Logger.Warn("orders endpoint failed", zap.String("endpoint", endpoint), zap.Error(err))
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (s *BackendSource) get(ctx context.Context, endpoint string, params url.Values) ([]analytics.RawOrder, error) {
	target := s.BaseURL + endpoint
	if encoded := params.Encode(); encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sabore-analytics/1.0")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	orders, err := decodeOrders(body)
	if err != nil {
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return orders, nil
}

// decodeOrders accepts a bare list or an object wrapping the list in
// data, pedidos or orders.
func decodeOrders(body []byte) ([]analytics.RawOrder, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}
	if body[0] == '[' {
		var orders []analytics.RawOrder
		if err := json.Unmarshal(body, &orders); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
		return orders, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	for _, key := range []string{"data", "pedidos", "orders"} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var orders []analytics.RawOrder
		if err := json.Unmarshal(raw, &orders); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return orders, nil
	}
	return nil, errors.New("response has no order list")
}

func backendParams(q Query) url.Values {
	params := url.Values{}
	if q.RestaurantID != nil {
		params.Set("restaurante_id", strconv.FormatInt(*q.RestaurantID, 10))
	}
	if !q.Start.IsZero() {
		params.Set("data_inicio", q.Start.Format("2006-01-02"))
	}
	if !q.End.IsZero() {
		params.Set("data_fim", q.End.Format("2006-01-02"))
	}
	return params
}

func filterStatuses(orders []analytics.RawOrder, statuses []string) []analytics.RawOrder {
	if len(statuses) == 0 {
		return orders
	}
	allowed := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		allowed[strings.ToLower(strings.TrimSpace(status))] = struct{}{}
	}
	out := make([]analytics.RawOrder, 0, len(orders))
	for _, order := range orders {
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(order.Status))]; ok {
			out = append(out, order)
		}
	}
	return out
}

var _ Source = (*BackendSource)(nil)
