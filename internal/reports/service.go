package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sabore-analytics/internal/analytics"
	"sabore-analytics/internal/cache"
	"sabore-analytics/internal/orders"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const ordersCachePrefix = "orders"

var (
	ErrNoSource          = errors.New("no order source configured")
	ErrSourceUnavailable = errors.New("order source unavailable")
)

// Publisher emits domain events. *queue.Client satisfies it.
type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

// Broadcaster pushes messages to dashboards subscribed to a scope.
type Broadcaster interface {
	Broadcast(scope string, eventType string, payload any)
}

type Options struct {
	Location      *time.Location
	CacheTTL      time.Duration
	Currency      string
	Exchange      string
	ArchivePrefix string
	// Clock overrides time.Now for report generation.
	Clock func() time.Time
}

// Service produces reports for a query. Optional collaborators (cache,
// publisher, broadcaster, archive) may be nil.
type Service struct {
	Source      orders.Source
	Cache       cache.Store
	Publisher   Publisher
	Broadcaster Broadcaster
	Archive     Archive
	Logger      *zap.Logger

	opts Options
	now  func() time.Time
}

func NewService(source orders.Source, store cache.Store, logger *zap.Logger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		Source: source,
		Cache:  store,
		Logger: logger,
		opts:   opts,
		now:    now,
	}
}

func (s *Service) Location() *time.Location {
	return s.opts.Location
}

func (s *Service) Currency() string {
	return s.opts.Currency
}

func (s *Service) Now() time.Time {
	return s.now().In(s.opts.Location)
}

// Dataset is an ingested batch with the builder over it.
type Dataset struct {
	Query     orders.Query
	Scope     string
	Source    string
	FetchedAt time.Time
	Cached    bool
	Batch     analytics.Batch
	Builder   *analytics.ReportBuilder
}

type cachedOrders struct {
	Source    string               `json:"source"`
	FetchedAt time.Time            `json:"fetched_at"`
	Orders    []analytics.RawOrder `json:"orders"`
}

// Load fetches the orders for q, from the cache unless refresh is set, and
// ingests them in the report timezone.
func (s *Service) Load(ctx context.Context, q orders.Query, refresh bool) (*Dataset, error) {
	if s.Source == nil {
		return nil, ErrNoSource
	}
	key := cache.Key(ordersCachePrefix, q.Key())

	var entry cachedOrders
	cached := false
	if s.Cache != nil && !refresh {
		err := cache.GetJSON(ctx, s.Cache, key, &entry)
		switch {
		case err == nil:
			cached = true
		case !errors.Is(err, cache.ErrMiss):
			s.Logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	if !cached {
		raw, err := s.Source.FetchOrders(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch orders from %s: %w", ErrSourceUnavailable, s.Source.Name(), err)
		}
		entry = cachedOrders{Source: s.Source.Name(), FetchedAt: s.now(), Orders: raw}
		if s.Cache != nil {
			if err := cache.SetJSON(ctx, s.Cache, key, entry, s.opts.CacheTTL); err != nil {
				s.Logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	ds := s.ingest(entry.Orders)
	ds.Query = q
	ds.Scope = orders.Scope(q.RestaurantID)
	ds.Source = entry.Source
	ds.FetchedAt = entry.FetchedAt
	ds.Cached = cached
	if ds.Batch.Skipped > 0 {
		s.Logger.Info("orders skipped for unparseable timestamps",
			zap.String("scope", ds.Scope),
			zap.Int("skipped", ds.Batch.Skipped),
			zap.Int("orders", len(ds.Batch.Orders)),
		)
	}
	return ds, nil
}

func (s *Service) ingest(raw []analytics.RawOrder) *Dataset {
	batch := analytics.Ingest(raw, analytics.IngestOptions{Location: s.opts.Location})
	return &Dataset{
		Batch:   batch,
		Builder: analytics.NewReportBuilder(batch, s.Now()),
	}
}

// Snapshot is one generated full report.
type Snapshot struct {
	ID          string           `json:"id"`
	Scope       string           `json:"scope"`
	Source      string           `json:"source"`
	Start       *time.Time       `json:"start,omitempty"`
	End         *time.Time       `json:"end,omitempty"`
	Cached      bool             `json:"cached"`
	Skipped     int              `json:"skipped"`
	GeneratedAt time.Time        `json:"generated_at"`
	Report      analytics.Report `json:"report"`
}

// GeneratedEvent is published on the analytics exchange after each report.
type GeneratedEvent struct {
	Type         string    `json:"type"`
	ReportID     string    `json:"reportId"`
	Scope        string    `json:"scope"`
	RestaurantID *int64    `json:"restaurantId,omitempty"`
	GeneratedAt  time.Time `json:"generatedAt"`
	TotalSales   float64   `json:"totalSales"`
	OrderCount   int       `json:"orderCount"`
	Skipped      int       `json:"skipped"`
}

const (
	EventReportGenerated = "report.generated"
	EventReportSnapshot  = "report.snapshot"
)

// Generate builds the full report for q, then announces it.
func (s *Service) Generate(ctx context.Context, q orders.Query, refresh bool) (Snapshot, error) {
	ds, err := s.Load(ctx, q, refresh)
	if err != nil {
		return Snapshot{}, err
	}
	snap := ds.Snapshot()
	s.announce(ctx, q, snap)
	return snap, nil
}

// Snapshot builds the full report over the dataset and assigns it an id.
func (ds *Dataset) Snapshot() Snapshot {
	report := ds.Builder.FullReport()
	snap := Snapshot{
		ID:          uuid.NewString(),
		Scope:       ds.Scope,
		Source:      ds.Source,
		Cached:      ds.Cached,
		Skipped:     ds.Batch.Skipped,
		GeneratedAt: report.GeneratedAt,
		Report:      report,
	}
	if !ds.Query.Start.IsZero() {
		start := ds.Query.Start
		snap.Start = &start
	}
	if !ds.Query.End.IsZero() {
		end := ds.Query.End
		snap.End = &end
	}
	return snap
}

// Refresh drops cached data for the scope of q and regenerates its report.
func (s *Service) Refresh(ctx context.Context, q orders.Query) (Snapshot, error) {
	if s.Cache != nil {
		prefix := cache.Key(ordersCachePrefix, orders.Scope(q.RestaurantID))
		if err := s.Cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.Logger.Warn("report cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
	return s.Generate(ctx, q, true)
}

// Analyze builds a report over orders supplied by the caller, e.g. an
// uploaded spreadsheet. Nothing is cached or announced.
func (s *Service) Analyze(raw []analytics.RawOrder, source string) Snapshot {
	ds := s.ingest(raw)
	ds.Scope = "upload"
	ds.Source = source
	ds.FetchedAt = s.now()
	return ds.Snapshot()
}

func (s *Service) announce(ctx context.Context, q orders.Query, snap Snapshot) {
	if s.Publisher != nil && s.opts.Exchange != "" {
		event := GeneratedEvent{
			Type:         EventReportGenerated,
			ReportID:     snap.ID,
			Scope:        snap.Scope,
			RestaurantID: q.RestaurantID,
			GeneratedAt:  snap.GeneratedAt,
			TotalSales:   snap.Report.Metrics.TotalSales,
			OrderCount:   snap.Report.Metrics.OrderCount,
			Skipped:      snap.Skipped,
		}
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.Publisher.PublishJSON(pubCtx, s.opts.Exchange, EventReportGenerated, event)
		cancel()
		if err != nil {
			s.Logger.Warn("report event publish failed", zap.String("reportId", snap.ID), zap.Error(err))
		}
	}
	if s.Broadcaster != nil {
		s.Broadcaster.Broadcast(snap.Scope, EventReportSnapshot, snap)
	}
}

// Current returns a snapshot for q without announcing it, using cached
// orders when available.
func (s *Service) Current(ctx context.Context, q orders.Query) (Snapshot, error) {
	ds, err := s.Load(ctx, q, false)
	if err != nil {
		return Snapshot{}, err
	}
	return ds.Snapshot(), nil
}
