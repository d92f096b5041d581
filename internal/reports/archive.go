package reports

import (
	"context"
	"errors"
	"fmt"

	"sabore-analytics/internal/export"
	"sabore-analytics/internal/orders"
	"sabore-analytics/internal/storage"

	"go.uber.org/zap"
)

var ErrArchiveDisabled = errors.New("report archive is not configured")

// Archive stores exported reports. *storage.ObjectStore satisfies it.
type Archive interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string, cacheControl string) (string, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
}

type ArchivedReport struct {
	ReportID string `json:"reportId"`
	Format   string `json:"format"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	Size     int    `json:"size"`
}

type ArchiveEntry struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Document prepares a snapshot for export.
func (s *Service) Document(snap Snapshot) export.Document {
	return export.Document{
		ID:       snap.ID,
		Scope:    snap.Scope,
		Currency: s.opts.Currency,
		Period:   periodLabel(snap),
		Report:   snap.Report,
	}
}

func (s *Service) Export(snap Snapshot, format export.Format) ([]byte, export.Document, error) {
	doc := s.Document(snap)
	body, err := export.Render(doc, format)
	if err != nil {
		return nil, doc, fmt.Errorf("export %s: %w", format, err)
	}
	return body, doc, nil
}

// ArchiveSnapshot renders snap and uploads it under the scope's prefix.
func (s *Service) ArchiveSnapshot(ctx context.Context, snap Snapshot, format export.Format) (ArchivedReport, error) {
	if s.Archive == nil {
		return ArchivedReport{}, ErrArchiveDisabled
	}
	body, _, err := s.Export(snap, format)
	if err != nil {
		return ArchivedReport{}, err
	}
	key := storage.ArchiveKey(s.opts.ArchivePrefix, snap.Scope, snap.ID, format.Extension(), snap.GeneratedAt)
	url, err := s.Archive.PutObject(ctx, key, body, format.ContentType(), "")
	if err != nil {
		return ArchivedReport{}, fmt.Errorf("archive report: %w", err)
	}
	s.Logger.Info("report archived", zap.String("reportId", snap.ID), zap.String("key", key), zap.Int("bytes", len(body)))
	return ArchivedReport{ReportID: snap.ID, Format: string(format), Key: key, URL: url, Size: len(body)}, nil
}

// ListArchive lists archived exports for a restaurant, newest first.
func (s *Service) ListArchive(ctx context.Context, restaurantID *int64) ([]ArchiveEntry, error) {
	if s.Archive == nil {
		return nil, ErrArchiveDisabled
	}
	keys, err := s.Archive.ListKeys(ctx, storage.ArchivePrefix(s.opts.ArchivePrefix, orders.Scope(restaurantID)))
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	out := make([]ArchiveEntry, 0, len(keys))
	for _, key := range keys {
		out = append(out, ArchiveEntry{Key: key, URL: s.Archive.PublicURL(key)})
	}
	return out, nil
}

func periodLabel(snap Snapshot) string {
	switch {
	case snap.Start != nil && snap.End != nil:
		return snap.Start.Format("2006-01-02") + " to " + snap.End.Format("2006-01-02")
	case snap.Start != nil:
		return "since " + snap.Start.Format("2006-01-02")
	case snap.End != nil:
		return "until " + snap.End.Format("2006-01-02")
	}
	return "all time"
}
