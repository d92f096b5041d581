package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sabore-analytics/internal/analytics"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatText Format = "txt"
	FormatJSON Format = "json"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "pdf":
		return FormatPDF, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

func (f Format) Extension() string {
	return string(f)
}

// Document is one report prepared for export.
type Document struct {
	ID       string
	Title    string
	Scope    string
	Currency string
	// Period describes the covered range, e.g. "2024-03-01 to 2024-03-31".
	Period   string
	Report   analytics.Report
}

func (d Document) title() string {
	if d.Title != "" {
		return d.Title
	}
	return analytics.DefaultReportTitle
}

func (d Document) money(value float64) string {
	return analytics.FormatMoney(d.Currency, value)
}

// Filename suggests a download name such as sabore-report-all-20240331.pdf.
func (d Document) Filename(f Format) string {
	stamp := d.Report.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	scope := d.Scope
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("sabore-report-%s-%s.%s", scope, stamp.UTC().Format("20060102"), f.Extension())
}

func Render(doc Document, f Format) ([]byte, error) {
	switch f {
	case FormatPDF:
		return PDF(doc)
	case FormatXLSX:
		return XLSX(doc)
	case FormatText:
		return Text(doc), nil
	case FormatJSON:
		return JSON(doc)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

func Text(doc Document) []byte {
	return []byte(analytics.FormatText(doc.Report, analytics.TextOptions{Title: doc.title(), Currency: doc.Currency}))
}

type jsonDocument struct {
	ID     string           `json:"id,omitempty"`
	Title  string           `json:"title"`
	Scope  string           `json:"scope,omitempty"`
	Period string           `json:"period,omitempty"`
	Report analytics.Report `json:"report"`
}

func JSON(doc Document) ([]byte, error) {
	return json.MarshalIndent(jsonDocument{
		ID:     doc.ID,
		Title:  doc.title(),
		Scope:  doc.Scope,
		Period: doc.Period,
		Report: doc.Report,
	}, "", "  ")
}
