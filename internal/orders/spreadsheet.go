package orders

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"sabore-analytics/internal/analytics"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type, upload .xlsx or .csv")
	ErrEmptySheet      = errors.New("file needs a header row and at least one data row")
	ErrMissingColumns  = errors.New("missing required columns")
)

// Header aliases, matched case-insensitively.
var (
	colOrderID   = []string{"id", "order_id", "pedido", "pedido_id", "id_pedido"}
	colTimestamp = []string{"data_pedido", "timestamp", "date", "data", "placed_at"}
	colTotal     = []string{"valor_total", "total_value", "total", "total_amount"}
	colCustomer  = []string{"cliente", "customer", "customer_name"}
	colStatus    = []string{"status"}
	colItem      = []string{"nome", "item", "name", "produto", "product", "item_name"}
	colUnitPrice = []string{"preco_unitario", "unit_price", "preco", "price"}
	colValue     = []string{"valor", "value"}
	colQuantity  = []string{"quantidade", "quantity", "qtd", "qty"}
	colCategory  = []string{"categoria", "category"}
)

type sheetColumns struct {
	orderID, timestamp, total, customer, status int
	item, unitPrice, value, quantity, category  int
}

func (c sheetColumns) itemized() bool {
	return c.item >= 0 || c.unitPrice >= 0 || c.value >= 0
}

// ParseSpreadsheet reads orders from an uploaded .xlsx or .csv file. Each row
// is one line item; rows sharing an order id are grouped into one order.
func ParseSpreadsheet(filename string, r io.Reader) ([]analytics.RawOrder, error) {
	var (
		rows   [][]string
		serial bool
		err    error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		rows, err = readXLSX(r)
		serial = true
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFile
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptySheet
	}

	cols := detectColumns(rows[0])
	if cols.timestamp < 0 || (cols.total < 0 && !cols.itemized()) {
		var missing []string
		if cols.timestamp < 0 {
			missing = append(missing, "data_pedido")
		}
		if cols.total < 0 && !cols.itemized() {
			missing = append(missing, "valor_total")
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return groupRows(rows[1:], cols, serial), nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func detectColumns(header []string) sheetColumns {
	return sheetColumns{
		orderID:   findIndex(header, colOrderID...),
		timestamp: findIndex(header, colTimestamp...),
		total:     findIndex(header, colTotal...),
		customer:  findIndex(header, colCustomer...),
		status:    findIndex(header, colStatus...),
		item:      findIndex(header, colItem...),
		unitPrice: findIndex(header, colUnitPrice...),
		value:     findIndex(header, colValue...),
		quantity:  findIndex(header, colQuantity...),
		category:  findIndex(header, colCategory...),
	}
}

func groupRows(rows [][]string, cols sheetColumns, serial bool) []analytics.RawOrder {
	out := make([]analytics.RawOrder, 0, len(rows))
	index := make(map[string]int)

	for n, row := range rows {
		if blankRow(row) {
			continue
		}
		id := cell(row, cols.orderID)
		if id == "" {
			id = "row-" + strconv.Itoa(n+2)
		}

		i, seen := index[id]
		if !seen {
			i = len(out)
			index[id] = i
			out = append(out, analytics.RawOrder{ID: analytics.OrderID(id)})
		}
		order := &out[i]

		if order.Timestamp.String() == "" {
			if ts := cell(row, cols.timestamp); ts != "" {
				order.Timestamp = analytics.TimestampText(sheetTimestamp(ts, serial))
			}
		}
		if !order.Total.Valid {
			order.Total = numberCell(row, cols.total)
		}
		if order.Customer == "" {
			order.Customer = cell(row, cols.customer)
		}
		if order.Status == "" {
			order.Status = cell(row, cols.status)
		}

		if !cols.itemized() {
			continue
		}
		if cell(row, cols.item) == "" && cell(row, cols.unitPrice) == "" && cell(row, cols.value) == "" {
			continue
		}
		order.Itemized = true
		order.Items = append(order.Items, analytics.RawLineItem{
			Name:      cell(row, cols.item),
			UnitPrice: numberCell(row, cols.unitPrice),
			Value:     numberCell(row, cols.value),
			Quantity:  numberCell(row, cols.quantity),
			Category:  cell(row, cols.category),
		})
	}
	return out
}

// sheetTimestamp turns an Excel date serial into naive timestamp text. Other
// values pass through for the regular timestamp parser.
func sheetTimestamp(value string, serial bool) string {
	if !serial {
		return value
	}
	days, err := strconv.ParseFloat(value, 64)
	if err != nil || days <= 0 || days > 2958465 {
		return value
	}
	at, err := excelize.ExcelDateToTime(days, false)
	if err != nil {
		return value
	}
	return at.Format("2006-01-02T15:04:05")
}

func findIndex(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), candidate) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func numberCell(row []string, i int) analytics.Number {
	value, ok := analytics.ParseDecimal(cell(row, i))
	if !ok {
		return analytics.Number{}
	}
	return analytics.NewNumber(value)
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
