package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sabore-analytics/internal/analytics"
	"sabore-analytics/internal/cache"
	"sabore-analytics/internal/config"
	"sabore-analytics/internal/orders"
	"sabore-analytics/internal/reports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	mu      sync.Mutex
	err     error
	queries []orders.Query
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchOrders(_ context.Context, q orders.Query) ([]analytics.RawOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return []analytics.RawOrder{
		{
			ID:        "1",
			Timestamp: analytics.TimestampText("2024-03-30T12:00:00"),
			Total:     analytics.NewNumber(40),
			Status:    "entregue",
			Items: []analytics.RawLineItem{
				{Name: "Feijoada", UnitPrice: analytics.NewNumber(20), Quantity: analytics.NewNumber(2), Category: "Pratos"},
			},
			Itemized: true,
		},
		{ID: "2", Timestamp: analytics.TimestampText("2024-03-31T09:30:00"), Total: analytics.NewNumber(60), Status: "cancelado"},
		{ID: "3", Timestamp: analytics.TimestampText("not a date"), Total: analytics.NewNumber(15)},
	}, nil
}

func (s *stubSource) lastQuery() orders.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func (s *stubSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type memoryArchive struct {
	keys []string
}

func (a *memoryArchive) PutObject(_ context.Context, key string, _ []byte, _ string, _ string) (string, error) {
	a.keys = append(a.keys, key)
	return "https://cdn.test/" + key, nil
}

func (a *memoryArchive) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, key := range a.keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (a *memoryArchive) PublicURL(key string) string { return "https://cdn.test/" + key }

type apiResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, source orders.Source) (http.Handler, *reports.Service) {
	t.Helper()
	svc := reports.NewService(source, cache.NewMemory(), zap.NewNop(), reports.Options{
		CacheTTL:      time.Minute,
		Currency:      "R$",
		ArchivePrefix: "reports",
		Clock:         func() time.Time { return testNow },
	})
	cfg := config.Config{Env: "test", MaxUploadSize: 1 << 20}
	return NewRouter(svc, zap.NewNop(), cfg, nil), svc
}

func do(t *testing.T, h http.Handler, method string, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) apiResponse {
	t.Helper()
	var out apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	if data != nil && len(out.Data) > 0 {
		require.NoError(t, json.Unmarshal(out.Data, data))
	}
	return out
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})
	rec := do(t, router, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEnvelopeAndCache(t *testing.T) {
	source := &stubSource{}
	router, _ := newTestRouter(t, source)

	var env struct {
		Scope   string `json:"scope"`
		Source  string `json:"source"`
		Cached  bool   `json:"cached"`
		Skipped int    `json:"skipped"`
		Result  struct {
			TotalSales    float64 `json:"total_sales"`
			AverageTicket float64 `json:"average_ticket"`
			OrderCount    int     `json:"order_count"`
		} `json:"result"`
	}
	rec := do(t, router, http.MethodGet, "/api/reports/metrics?restaurantId=7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode(t, rec, &env).Success)
	assert.Equal(t, "7", env.Scope)
	assert.Equal(t, "stub", env.Source)
	assert.Equal(t, 1, env.Skipped)
	assert.False(t, env.Cached)
	assert.Equal(t, 100.0, env.Result.TotalSales)
	assert.Equal(t, 50.0, env.Result.AverageTicket)
	assert.Equal(t, 2, env.Result.OrderCount)
	require.NotNil(t, source.lastQuery().RestaurantID)
	assert.Equal(t, int64(7), *source.lastQuery().RestaurantID)

	rec = do(t, router, http.MethodGet, "/api/reports/metrics?restaurantId=7", nil, "")
	decode(t, rec, &env)
	assert.True(t, env.Cached)
	assert.Equal(t, 1, source.calls())

	rec = do(t, router, http.MethodGet, "/api/reports/metrics?restaurantId=7&refresh=true", nil, "")
	decode(t, rec, &env)
	assert.False(t, env.Cached)
	assert.Equal(t, 2, source.calls())
}

func TestPeriodQueries(t *testing.T) {
	source := &stubSource{}
	router, _ := newTestRouter(t, source)

	rec := do(t, router, http.MethodGet, "/api/reports/statistics?period=custom&startDate=2024-03-01&endDate=2024-03-31", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	q := source.lastQuery()
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), q.Start)
	assert.Equal(t, 31, q.End.Day())

	rec = do(t, router, http.MethodGet, "/api/reports/statistics?period=week&status=entregue", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	q = source.lastQuery()
	assert.Equal(t, testNow.AddDate(0, 0, -7), q.Start)
	assert.True(t, q.End.IsZero())
	assert.Equal(t, []string{"entregue"}, q.Statuses)
}

func TestSectionEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	var periods struct {
		Result struct {
			Kind    string             `json:"kind"`
			Buckets map[string]float64 `json:"buckets"`
		} `json:"result"`
	}
	rec := do(t, router, http.MethodGet, "/api/reports/periods?kind=dia", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &periods)
	assert.Equal(t, "day", periods.Result.Kind)
	assert.Equal(t, map[string]float64{"2024-03-30": 40, "2024-03-31": 60}, periods.Result.Buckets)

	var categories struct {
		Result map[string]float64 `json:"result"`
	}
	rec = do(t, router, http.MethodGet, "/api/reports/categories", nil, "")
	decode(t, rec, &categories)
	assert.Equal(t, map[string]float64{"Pratos": 40}, categories.Result)

	var forecast struct {
		Result []float64 `json:"result"`
	}
	rec = do(t, router, http.MethodGet, "/api/reports/forecast?horizon=3", nil, "")
	decode(t, rec, &forecast)
	assert.Equal(t, []float64{50, 50, 50}, forecast.Result)

	var top struct {
		Result []analytics.ItemRank `json:"result"`
	}
	rec = do(t, router, http.MethodGet, "/api/reports/top-items?limit=1", nil, "")
	decode(t, rec, &top)
	require.Len(t, top.Result, 1)
	assert.Equal(t, "Feijoada", top.Result[0].Name)

	for _, path := range []string{"trend", "peak-hours", "weekdays", "seasonality", "growth", "statuses"} {
		rec = do(t, router, http.MethodGet, "/api/reports/"+path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestValidationErrors(t *testing.T) {
	source := &stubSource{}
	router, _ := newTestRouter(t, source)

	cases := map[string]string{
		"/api/reports/trend?window=abc":                           "VALIDATION_ERROR",
		"/api/reports/top-items?limit=0":                          "VALIDATION_ERROR",
		"/api/reports/periods?kind=year":                          "VALIDATION_ERROR",
		"/api/reports/metrics?restaurantId=x":                     "VALIDATION_ERROR",
		"/api/reports/metrics?period=decade":                      "INVALID_PERIOD",
		"/api/reports/metrics?period=custom&startDate=2024-03-01": "INVALID_PERIOD",
		"/api/reports/export?format=doc":                          "INVALID_FORMAT",
	}
	for target, code := range cases {
		rec := do(t, router, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, code, decode(t, rec, nil).Error, target)
	}
	assert.Zero(t, source.calls())
}

func TestSourceFailure(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{err: errors.New("connection refused")})
	rec := do(t, router, http.MethodGet, "/api/reports/full", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "SOURCE_UNAVAILABLE", decode(t, rec, nil).Error)
}

func TestFullReportAndRefresh(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	var snap reports.Snapshot
	rec := do(t, router, http.MethodGet, "/api/reports/full?restaurantId=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &snap)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "3", snap.Scope)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 100.0, snap.Report.Metrics.TotalSales)

	rec = do(t, router, http.MethodPost, "/api/reports/refresh?restaurantId=3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed reports.Snapshot
	decode(t, rec, &refreshed)
	assert.NotEqual(t, snap.ID, refreshed.ID)
	assert.False(t, refreshed.Cached)
}

func TestTextAndExport(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	rec := do(t, router, http.MethodGet, "/api/reports/text", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), analytics.DefaultReportTitle)

	rec = do(t, router, http.MethodGet, "/api/reports/export?format=xlsx&restaurantId=9", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="sabore-report-9-20240331.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = do(t, router, http.MethodGet, "/api/reports/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestArchive(t *testing.T) {
	router, svc := newTestRouter(t, &stubSource{})

	rec := do(t, router, http.MethodPost, "/api/reports/archive?format=json", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ARCHIVE_DISABLED", decode(t, rec, nil).Error)

	svc.Archive = &memoryArchive{}
	var archived reports.ArchivedReport
	rec = do(t, router, http.MethodPost, "/api/reports/archive?format=json&restaurantId=5", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	decode(t, rec, &archived)
	assert.True(t, strings.HasPrefix(archived.Key, "reports/5/2024/03/"), archived.Key)
	assert.True(t, strings.HasSuffix(archived.Key, ".json"))
	assert.Positive(t, archived.Size)

	var listing struct {
		Scope   string                 `json:"scope"`
		Reports []reports.ArchiveEntry `json:"reports"`
	}
	rec = do(t, router, http.MethodGet, "/api/reports/archive?restaurantId=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &listing)
	assert.Equal(t, "5", listing.Scope)
	require.Len(t, listing.Reports, 1)
	assert.Equal(t, "https://cdn.test/"+archived.Key, listing.Reports[0].URL)
}

func multipartFile(t *testing.T, filename string, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestAnalyzeUpload(t *testing.T) {
	source := &stubSource{}
	router, _ := newTestRouter(t, source)

	csv := "id,data_pedido,valor_total,nome,preco_unitario,quantidade\n" +
		"1,2024-03-30T12:00:00,30,Pastel,10,3\n" +
		"2,2024-03-31T19:00:00,12.5,Caldo,12.5,1\n"
	body, contentType := multipartFile(t, "march.csv", csv)
	rec := do(t, router, http.MethodPost, "/api/reports/analyze", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var snap reports.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, "upload", snap.Scope)
	assert.Equal(t, "upload:march.csv", snap.Source)
	assert.Equal(t, 42.5, snap.Report.Metrics.TotalSales)
	assert.Zero(t, source.calls())

	body, contentType = multipartFile(t, "march.csv", csv)
	rec = do(t, router, http.MethodPost, "/api/reports/analyze?format=txt", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sabore-report-upload-")

	body, contentType = multipartFile(t, "orders.pdf", "x")
	rec = do(t, router, http.MethodPost, "/api/reports/analyze", body, contentType)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body, contentType = multipartFile(t, "orders.csv", "id,cliente\n1,Ana\n")
	rec = do(t, router, http.MethodPost, "/api/reports/analyze", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INVALID_SHEET", decode(t, rec, nil).Error)

	rec = do(t, router, http.MethodPost, "/api/reports/analyze", bytes.NewBufferString("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeUploadWithNonFiniteValues(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	csv := "id,data_pedido,valor_total\n" +
		"1,2024-03-01T10:00:00Z,NaN\n" +
		"2,2024-03-01T11:00:00Z,Infinity\n" +
		"3,2024-03-01T12:00:00Z,10\n"
	body, contentType := multipartFile(t, "march.csv", csv)
	rec := do(t, router, http.MethodPost, "/api/reports/analyze", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotZero(t, rec.Body.Len())

	var snap reports.Snapshot
	assert.True(t, decode(t, rec, &snap).Success)
	assert.Equal(t, 10.0, snap.Report.Metrics.TotalSales)
	assert.Equal(t, 3, snap.Report.Metrics.OrderCount)
}
