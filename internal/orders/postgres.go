package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sabore-analytics/internal/analytics"
	"sabore-analytics/internal/utils"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSource reads orders and their items from the order service schema.
type PostgresSource struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
}

func NewPostgresSource(db *pgxpool.Pool, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{DB: db, Logger: logger}
}

func (s *PostgresSource) Name() string {
	return "postgres"
}

func (s *PostgresSource) FetchOrders(ctx context.Context, q Query) ([]analytics.RawOrder, error) {
	where, args := buildOrderWhereClause(q)

	orders, index, err := s.loadOrders(ctx, where, args)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}
	if err := s.loadOrderItems(ctx, where, args, orders, index); err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	return orders, nil
}

func (s *PostgresSource) loadOrders(ctx context.Context, where string, args []any) ([]analytics.RawOrder, map[int64]int, error) {
	query := `
		select o.id, o.placed_at, o.total_amount, o.status::text, coalesce(c.name, '')
		from orders o
		left join customers c on c.id = o.customer_id
		where ` + where + `
		order by o.placed_at asc, o.id asc`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	out := make([]analytics.RawOrder, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id       int64
			placedAt pgtype.Timestamptz
			total    pgtype.Numeric
			status   pgtype.Text
			customer string
		)
		if err := rows.Scan(&id, &placedAt, &total, &status, &customer); err != nil {
			s.logScanError("orders", err)
			continue
		}
		order := analytics.RawOrder{
			ID:       analytics.OrderID(strconv.FormatInt(id, 10)),
			Customer: customer,
			Status:   status.String,
		}
		if placedAt.Valid {
			order.Timestamp = analytics.TimestampAt(placedAt.Time)
		}
		if value, ok := utils.NumericValue(total); ok {
			order.Total = analytics.NewNumber(value)
		}
		index[id] = len(out)
		out = append(out, order)
	}
	return out, index, rows.Err()
}

func (s *PostgresSource) loadOrderItems(ctx context.Context, where string, args []any, orders []analytics.RawOrder, index map[int64]int) error {
	query := `
		select oi.order_id, coalesce(m.name, oi.menu_name), oi.subtotal, oi.quantity, mc.name
		from orders o
		join order_items oi on oi.order_id = o.id
		left join menus m on m.id = oi.menu_id
		left join menu_categories mc on mc.id = m.category_id
		where ` + where + `
		order by oi.order_id asc, oi.id asc`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID  int64
			name     pgtype.Text
			subtotal pgtype.Numeric
			quantity pgtype.Int4
			category pgtype.Text
		)
		if err := rows.Scan(&orderID, &name, &subtotal, &quantity, &category); err != nil {
			s.logScanError("order_items", err)
			continue
		}
		i, ok := index[orderID]
		if !ok {
			continue
		}
		orders[i].Items = append(orders[i].Items, itemFromRow(name, subtotal, quantity, category))
		orders[i].Itemized = true
	}
	return rows.Err()
}

// itemFromRow derives the unit price from the stored line subtotal.
func itemFromRow(name pgtype.Text, subtotal pgtype.Numeric, quantity pgtype.Int4, category pgtype.Text) analytics.RawLineItem {
	item := analytics.RawLineItem{Name: name.String, Category: category.String}
	if quantity.Valid {
		item.Quantity = analytics.NewNumber(float64(quantity.Int32))
	}
	if value, ok := utils.NumericValue(subtotal); ok {
		qty := item.Quantity.Or(analytics.DefaultQuantity)
		if qty != 0 {
			item.UnitPrice = analytics.NewNumber(value / qty)
		}
	}
	return item
}

func (s *PostgresSource) logScanError(table string, err error) {
	if s.Logger != nil {
		s.Logger.Warn("row scan failed", zap.String("table", table), zap.Error(err))
	}
}

func buildOrderWhereClause(q Query) (string, []any) {
	where := []string{"true"}
	args := make([]any, 0, 4)
	next := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	if q.RestaurantID != nil {
		where = append(where, "o.merchant_id = "+next(*q.RestaurantID))
	}
	if !q.Start.IsZero() {
		where = append(where, "o.placed_at >= "+next(q.Start))
	}
	if !q.End.IsZero() {
		where = append(where, "o.placed_at <= "+next(q.End))
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, 0, len(q.Statuses))
		for _, status := range q.Statuses {
			statuses = append(statuses, strings.ToUpper(status))
		}
		where = append(where, "o.status::text = any("+next(statuses)+")")
	}
	return strings.Join(where, " and "), args
}

var _ Source = (*PostgresSource)(nil)
