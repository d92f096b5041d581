package analytics

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultItemName = "Unnamed item"
	DefaultCategory = "Uncategorized"
	DefaultQuantity = 1.0
)

// Number is an optional numeric field. Valid is false when the field was
// absent, null, or not a number.
type Number struct {
	Value float64
	Valid bool
}

func NewNumber(value float64) Number {
	return Number{Value: value, Valid: true}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = Number{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return nil
		}
		if value, ok := ParseDecimal(text); ok {
			*n = NewNumber(value)
		}
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil || !finite(value) {
		return nil
	}
	*n = NewNumber(value)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n Number) Or(fallback float64) float64 {
	if n.Valid {
		return n.Value
	}
	return fallback
}

// OrderID accepts numeric or string identifiers.
type OrderID string

func (id *OrderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*id = OrderID(text)
		return nil
	}
	*id = OrderID(string(data))
	return nil
}

// Timestamp carries an order time as delivered by a source: either text
// to be parsed at ingestion or a native time value.
type Timestamp struct {
	Text   string
	At     time.Time
	Native bool
}

func TimestampText(text string) Timestamp {
	return Timestamp{Text: text}
}

func TimestampAt(at time.Time) Timestamp {
	return Timestamp{At: at, Native: true}
}

func (t Timestamp) String() string {
	if t.Native {
		return t.At.Format(time.RFC3339Nano)
	}
	return t.Text
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = Timestamp{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '"' {
		t.Text = string(data)
		return nil
	}
	return json.Unmarshal(data, &t.Text)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if (!t.Native && t.Text == "") || (t.Native && t.At.IsZero()) {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

type RawLineItem struct {
	Name      string
	UnitPrice Number
	Value     Number
	Quantity  Number
	Category  string
}

type lineItemOutJSON struct {
	Name      string `json:"name,omitempty"`
	UnitPrice Number `json:"unit_price"`
	Value     Number `json:"value"`
	Quantity  Number `json:"quantity"`
	Category  string `json:"category,omitempty"`
}

type rawLineItemJSON struct {
	Nome          *string `json:"nome"`
	Name          *string `json:"name"`
	PrecoUnitario Number  `json:"preco_unitario"`
	UnitPrice     Number  `json:"unit_price"`
	Valor         Number  `json:"valor"`
	Value         Number  `json:"value"`
	Quantidade    Number  `json:"quantidade"`
	Quantity      Number  `json:"quantity"`
	Categoria     *string `json:"categoria"`
	Category      *string `json:"category"`
}

func (item *RawLineItem) UnmarshalJSON(data []byte) error {
	var aux rawLineItemJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*item = RawLineItem{
		Name:      firstString(aux.Nome, aux.Name),
		UnitPrice: firstNumber(aux.PrecoUnitario, aux.UnitPrice),
		Value:     firstNumber(aux.Valor, aux.Value),
		Quantity:  firstNumber(aux.Quantidade, aux.Quantity),
		Category:  firstString(aux.Categoria, aux.Category),
	}
	return nil
}

// MarshalJSON writes the English field names.
func (item RawLineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineItemOutJSON(item))
}

// RawOrder is the order shape supplied by sources before ingestion. JSON
// decoding accepts the backend's field names and their English aliases.
type RawOrder struct {
	ID        OrderID
	Timestamp Timestamp
	Total     Number
	Customer  string
	Status    string
	Items     []RawLineItem
	// Itemized is true when the source supplied a line-item list, even an
	// empty one.
	Itemized bool
}

type rawOrderOutJSON struct {
	ID         OrderID        `json:"id"`
	Timestamp  Timestamp      `json:"timestamp"`
	TotalValue Number         `json:"total_value"`
	Customer   string         `json:"customer,omitempty"`
	Status     string         `json:"status,omitempty"`
	LineItems  *[]RawLineItem `json:"line_items,omitempty"`
}

type rawOrderJSON struct {
	ID         OrderID        `json:"id"`
	DataPedido *Timestamp     `json:"data_pedido"`
	Timestamp  *Timestamp     `json:"timestamp"`
	ValorTotal Number         `json:"valor_total"`
	TotalValue Number         `json:"total_value"`
	Cliente    *string        `json:"cliente"`
	Customer   *string        `json:"customer"`
	Status     *string        `json:"status"`
	Itens      *[]RawLineItem `json:"itens"`
	LineItems  *[]RawLineItem `json:"line_items"`
}

func (o *RawOrder) UnmarshalJSON(data []byte) error {
	var aux rawOrderJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*o = RawOrder{
		ID:       aux.ID,
		Total:    firstNumber(aux.ValorTotal, aux.TotalValue),
		Customer: firstString(aux.Cliente, aux.Customer),
		Status:   firstString(aux.Status),
	}
	switch {
	case aux.DataPedido != nil:
		o.Timestamp = *aux.DataPedido
	case aux.Timestamp != nil:
		o.Timestamp = *aux.Timestamp
	}
	switch {
	case aux.Itens != nil:
		o.Items, o.Itemized = *aux.Itens, true
	case aux.LineItems != nil:
		o.Items, o.Itemized = *aux.LineItems, true
	}
	return nil
}

// MarshalJSON writes the English field names. The line-item list is present
// exactly when the order is itemized.
func (o RawOrder) MarshalJSON() ([]byte, error) {
	out := rawOrderOutJSON{
		ID:         o.ID,
		Timestamp:  o.Timestamp,
		TotalValue: o.Total,
		Customer:   o.Customer,
		Status:     o.Status,
	}
	if o.Itemized {
		items := o.Items
		if items == nil {
			items = []RawLineItem{}
		}
		out.LineItems = &items
	}
	return json.Marshal(out)
}

type LineItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  float64 `json:"quantity"`
	Category  string  `json:"category"`
}

func (i LineItem) Value() float64 {
	return i.UnitPrice * i.Quantity
}

// Order is a resolved order record. Optional fields hold their defaults and
// HasTime reports whether the timestamp parsed.
type Order struct {
	ID           string
	Time         time.Time
	HasTime      bool
	RawTimestamp string
	Total        float64
	Customer     string
	Status       string
	Items        []LineItem
	Itemized     bool
}

// Value is the line-item sum for itemized orders, otherwise the order total.
func (o Order) Value() float64 {
	if !o.Itemized {
		return o.Total
	}
	total := 0.0
	for _, item := range o.Items {
		total += item.Value()
	}
	return total
}

type Batch struct {
	Orders  []Order
	Skipped int
}

type IngestOptions struct {
	// Location resolves timestamps without an offset and is the zone native
	// times are converted into. Nil means UTC for naive text and leaves
	// native times untouched.
	Location *time.Location
}

// ResolveOrder applies field defaults and parses the timestamp. The returned
// order is usable for value aggregations even when err is non-nil.
func ResolveOrder(raw RawOrder, loc *time.Location) (Order, error) {
	order := Order{
		ID:           string(raw.ID),
		RawTimestamp: raw.Timestamp.String(),
		Total:        raw.Total.Or(0),
		Customer:     strings.TrimSpace(raw.Customer),
		Status:       strings.TrimSpace(raw.Status),
		Itemized:     raw.Itemized,
	}
	if raw.Itemized {
		order.Items = make([]LineItem, 0, len(raw.Items))
		for _, item := range raw.Items {
			order.Items = append(order.Items, resolveLineItem(item))
		}
	}

	if raw.Timestamp.Native {
		if raw.Timestamp.At.IsZero() {
			return order, ErrMissingTimestamp
		}
		at := raw.Timestamp.At
		if loc != nil {
			at = at.In(loc)
		}
		order.Time, order.HasTime = at, true
		return order, nil
	}
	at, err := ParseTimestamp(raw.Timestamp.Text, loc)
	if err != nil {
		return order, err
	}
	order.Time, order.HasTime = at, true
	return order, nil
}

func Ingest(raw []RawOrder, opts IngestOptions) Batch {
	batch := Batch{Orders: make([]Order, 0, len(raw))}
	for _, item := range raw {
		order, err := ResolveOrder(item, opts.Location)
		if err != nil {
			batch.Skipped++
		}
		batch.Orders = append(batch.Orders, order)
	}
	return batch
}

func resolveLineItem(raw RawLineItem) LineItem {
	item := LineItem{
		Name:      strings.TrimSpace(raw.Name),
		UnitPrice: raw.UnitPrice.Or(raw.Value.Or(0)),
		Quantity:  raw.Quantity.Or(DefaultQuantity),
		Category:  strings.TrimSpace(raw.Category),
	}
	if item.Name == "" {
		item.Name = DefaultItemName
	}
	if item.Category == "" {
		item.Category = DefaultCategory
	}
	return item
}

// ParseDecimal accepts "12.50" and the comma decimal form "12,50". NaN and
// infinities are rejected.
func ParseDecimal(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, ",") && !strings.Contains(text, ".") {
		text = strings.ReplaceAll(text, ",", ".")
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || !finite(value) {
		return 0, false
	}
	return value, true
}

func finite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func firstString(values ...*string) string {
	for _, value := range values {
		if value != nil {
			return *value
		}
	}
	return ""
}

func firstNumber(values ...Number) Number {
	for _, value := range values {
		if value.Valid {
			return value
		}
	}
	return Number{}
}
