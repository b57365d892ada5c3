package orderwatch

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ActiveStatuses = []string{"PENDING", "ACCEPTED", "IN_PROGRESS", "READY"}

type PostgresSource struct {
	DB *pgxpool.Pool
}

func (s *PostgresSource) ActiveOrders(ctx context.Context, merchantID int64) ([]Order, error) {
	query := `
		select
		  o.id, o.order_number, o.status, o.order_type, o.table_number, o.placed_at,
		  c.name, p.payment_method
		from orders o
		left join customers c on c.id = o.customer_id
		left join payments p on p.order_id = o.id
		where o.merchant_id = $1 and o.status = any($2)
		order by o.placed_at desc
	`

	rows, err := s.DB.Query(ctx, query, merchantID, ActiveStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		var (
			id            int64
			order         Order
			tableNumber   pgtype.Text
			placedAt      time.Time
			customerName  pgtype.Text
			paymentMethod pgtype.Text
		)
		if err := rows.Scan(
			&id,
			&order.OrderNumber,
			&order.Status,
			&order.OrderType,
			&tableNumber,
			&placedAt,
			&customerName,
			&paymentMethod,
		); err != nil {
			return nil, err
		}

		order.ID = strconv.FormatInt(id, 10)
		order.PlacedAt = placedAt
		if tableNumber.Valid {
			order.TableNumber = &tableNumber.String
		}
		if customerName.Valid {
			order.CustomerName = customerName.String
		}
		if paymentMethod.Valid {
			order.PaymentMethod = paymentMethod.String
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
