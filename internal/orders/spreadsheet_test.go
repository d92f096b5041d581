package orders

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"sabore-analytics/internal/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseSpreadsheetCSVGroupsItems(t *testing.T) {
	data := strings.Join([]string{
		"id,data_pedido,valor_total,cliente,status,nome,preco_unitario,quantidade,categoria",
		"1,2024-03-01T12:30:00,50,Ana,entregue,Pizza,20,2,Pratos",
		"1,,,,,Suco,10,1,Bebidas",
		"2,2024-03-02 19:00,\"35,5\",Bruno,cancelado,,,,",
		",,,,,,,,",
		",2024-03-03,12,,,Café,6,2,",
	}, "\n")

	orders, err := ParseSpreadsheet("vendas.CSV", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, orders, 3)

	first := orders[0]
	assert.Equal(t, analytics.OrderID("1"), first.ID)
	assert.Equal(t, "2024-03-01T12:30:00", first.Timestamp.String())
	assert.Equal(t, "Ana", first.Customer)
	assert.True(t, first.Itemized)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "Suco", first.Items[1].Name)
	assert.Equal(t, "Bebidas", first.Items[1].Category)

	second := orders[1]
	assert.False(t, second.Itemized)
	assert.Empty(t, second.Items)
	assert.Equal(t, 35.5, second.Total.Value)

	assert.Equal(t, analytics.OrderID("row-6"), orders[2].ID)

	batch := analytics.Ingest(orders, analytics.IngestOptions{})
	assert.Zero(t, batch.Skipped)
	assert.InDelta(t, 97.5, analytics.TotalSales(batch.Orders), 1e-9)
}

func TestParseSpreadsheetCSVWithoutItems(t *testing.T) {
	data := "Date,Total,Status\n2024-03-01,10,paid\n2024-03-02,15,paid\n"

	orders, err := ParseSpreadsheet("orders.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.False(t, orders[0].Itemized)
	assert.Equal(t, analytics.OrderID("row-2"), orders[0].ID)
	assert.Equal(t, 15.0, orders[1].Total.Value)
}

func TestParseSpreadsheetXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"pedido", "data_pedido", "valor_total", "nome", "preco_unitario", "quantidade"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"10", time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), 42.5, "Lasanha", 42.5, 1}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"11", "2024-03-06T20:15:00", 20, "Salada", 10, 2}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	orders, err := ParseSpreadsheet("upload.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "2024-03-05T18:00:00", orders[0].Timestamp.String())
	assert.Equal(t, "2024-03-06T20:15:00", orders[1].Timestamp.String())
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, 2.0, orders[1].Items[0].Quantity.Value)

	batch := analytics.Ingest(orders, analytics.IngestOptions{})
	require.Len(t, batch.Orders, 2)
	assert.Equal(t, 18, batch.Orders[0].Time.Hour())
	assert.InDelta(t, 62.5, analytics.TotalSales(batch.Orders), 1e-9)
}

func TestParseSpreadsheetErrors(t *testing.T) {
	_, err := ParseSpreadsheet("orders.json", strings.NewReader("[]"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = ParseSpreadsheet("orders.csv", strings.NewReader("id,data_pedido,valor_total\n"))
	assert.ErrorIs(t, err, ErrEmptySheet)

	_, err = ParseSpreadsheet("orders.csv", strings.NewReader("id,cliente\n1,Ana\n"))
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "data_pedido, valor_total")

	_, err = ParseSpreadsheet("orders.xlsx", strings.NewReader("not a zip"))
	assert.Error(t, err)
}

func TestSheetTimestamp(t *testing.T) {
	assert.Equal(t, "45352", sheetTimestamp("45352", false))
	assert.Equal(t, "2024-03-01T00:00:00", sheetTimestamp("45352", true))
	assert.Equal(t, "2024-03-01T12:00:00", sheetTimestamp("45352.5", true))
	assert.Equal(t, "2024-03-01", sheetTimestamp("2024-03-01", true))
}
