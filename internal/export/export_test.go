package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sabore-analytics/internal/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var exportNow = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func sampleDocument(t *testing.T) Document {
	t.Helper()
	raw := []analytics.RawOrder{
		{
			ID: "1", Timestamp: analytics.TimestampText("2024-03-29T12:10:00Z"), Total: analytics.NewNumber(70), Status: "entregue",
			Items: []analytics.RawLineItem{
				{Name: "Pizza", UnitPrice: analytics.NewNumber(30), Quantity: analytics.NewNumber(2), Category: "Pratos"},
				{Name: "Suco", UnitPrice: analytics.NewNumber(10), Category: "Bebidas"},
			},
			Itemized: true,
		},
		{ID: "2", Timestamp: analytics.TimestampText("2024-03-30T19:45:00Z"), Total: analytics.NewNumber(45.5), Status: "entregue"},
		{ID: "3", Timestamp: analytics.TimestampText("bad"), Total: analytics.NewNumber(5)},
	}
	batch := analytics.Ingest(raw, analytics.IngestOptions{})
	return Document{
		ID:     "rep-1",
		Scope:  "7",
		Period: "2024-03-01 to 2024-03-31",
		Report: analytics.NewReportBuilder(batch, exportNow).FullReport(),
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatPDF},
		{"PDF", FormatPDF},
		{"excel", FormatXLSX},
		{"xlsx", FormatXLSX},
		{"text", FormatText},
		{"json", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Equal(t, "sabore-report-7-20240331.xlsx", sampleDocument(t).Filename(FormatXLSX))
	assert.Equal(t, "sabore-report-all-20240331.txt", Document{Report: analytics.Report{GeneratedAt: exportNow}}.Filename(FormatText))
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(sampleDocument(t), FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	empty, err := PDF(Document{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}

func TestRenderXLSX(t *testing.T) {
	out, err := Render(sampleDocument(t), FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Daily", "Weekly", "Monthly", "Top Items", "Peak Hours", "Weekdays", "Categories"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, summary[0])
	assert.Equal(t, "Restaurant", summary[2][0])
	assert.Equal(t, "7", summary[2][1])

	daily, err := f.GetRows("Daily")
	require.NoError(t, err)
	require.Len(t, daily, 3)
	assert.Equal(t, "2024-03-29", daily[1][0])

	items, err := f.GetRows("Top Items")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Pizza", items[1][1])

	categories, err := f.GetRows("Categories", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, categories, 3)
	assert.Equal(t, []string{"Pratos", "60"}, categories[1])
}

func TestRenderTextAndJSON(t *testing.T) {
	doc := sampleDocument(t)

	text, err := Render(doc, FormatText)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "=== "+analytics.DefaultReportTitle+" ===\n"))
	assert.Contains(t, string(text), "Orders: 3\n")

	raw, err := Render(doc, FormatJSON)
	require.NoError(t, err)
	var decoded struct {
		ID     string `json:"id"`
		Scope  string `json:"scope"`
		Report struct {
			Skipped int `json:"skipped_orders"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "rep-1", decoded.ID)
	assert.Equal(t, "7", decoded.Scope)
	assert.Equal(t, 1, decoded.Report.Skipped)

	_, err = Render(doc, Format("doc"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
