package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

const orderSelect = `
        SELECT o.id, o.user_id, u.name, u.email, o.total, o.status,
               o.street, o.city, o.state, o.zip_code, o.country,
               o.stock_reserved, o.created_at, o.updated_at
        FROM orders o
        LEFT JOIN users u ON u.id = o.user_id`

type postgresOrderRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresOrderRepository(db *sql.DB, logger *logrus.Logger) domain.OrderRepository {
	return &postgresOrderRepository{
		db:  db,
		log: logger,
	}
}

type stockDecrement struct {
	productID string
	name      string
	quantity  int
}

// stockDecrements merges quantities per product and orders them by product
// ID, so concurrent checkouts lock product rows in the same order.
func stockDecrements(items []domain.OrderItem) []stockDecrement {
	byProduct := make(map[string]*stockDecrement, len(items))
	out := make([]stockDecrement, 0, len(items))
	for _, item := range items {
		if d, ok := byProduct[item.ProductID]; ok {
			d.quantity += item.Quantity
			continue
		}
		byProduct[item.ProductID] = &stockDecrement{productID: item.ProductID, name: item.Name, quantity: item.Quantity}
	}
	for _, d := range byProduct {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

func (r *postgresOrderRepository) PlaceOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	err := withTx(ctx, r.db, r.log, func(tx *sql.Tx) error {
		decrement := `
            UPDATE products
            SET stock = stock - $1, updated_at = NOW()
            WHERE id = $2 AND stock >= $1`
		for _, d := range stockDecrements(order.Items) {
			result, err := tx.ExecContext(ctx, decrement, d.quantity, d.productID)
			if err != nil {
				r.log.Errorf("Repository: Failed to decrement stock for product %s: %v", d.productID, err)
				return translatePqError(fmt.Errorf("could not update stock for product %s: %w", d.productID, err), "stock of product "+d.productID)
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("could not confirm stock update for product %s: %w", d.productID, err)
			}
			if rows == 0 {
				r.log.Warnf("Repository: Stock for product %s fell below %d before commit", d.productID, d.quantity)
				return fmt.Errorf("%w for %s", domain.ErrInsufficientStock, d.name)
			}
		}
		order.StockReserved = true
		return r.insertOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	r.log.Infof("Repository: Order %s placed with %d items, stock decremented", order.ID, len(order.Items))
	return r.GetOrderByID(ctx, order.ID)
}

func (r *postgresOrderRepository) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	order.StockReserved = false
	err := withTx(ctx, r.db, r.log, func(tx *sql.Tx) error {
		return r.insertOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return r.GetOrderByID(ctx, order.ID)
}

func (r *postgresOrderRepository) insertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	addr := order.ShippingAddress
	orderQuery := `
        INSERT INTO orders (id, user_id, total, status, street, city, state, zip_code, country, stock_reserved)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at, updated_at`
	err := tx.QueryRowContext(ctx, orderQuery,
		order.ID, order.UserID, order.Total, order.Status,
		addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country, order.StockReserved,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		r.log.Errorf("Repository: Failed to insert order for user %s: %v", order.UserID, err)
		return translatePqError(fmt.Errorf("could not create order entry: %w", err), "order for user "+order.UserID)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO order_items (order_id, position, product_id, name, price, quantity)
        VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		r.log.Errorf("Repository: Failed to prepare order item statement: %v", err)
		return fmt.Errorf("could not prepare item statement: %w", err)
	}
	defer stmt.Close()

	for i, item := range order.Items {
		if _, err := stmt.ExecContext(ctx, order.ID, i, item.ProductID, item.Name, item.Price, item.Quantity); err != nil {
			r.log.Errorf("Repository: Failed to insert order item (product_id: %s) for order %s: %v", item.ProductID, order.ID, err)
			return translatePqError(fmt.Errorf("could not create order item (product_id: %s): %w", item.ProductID, err), "order item "+item.ProductID)
		}
	}
	return nil
}

func scanOrder(row interface{ Scan(dest ...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var userName, userEmail sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&userName,
		&userEmail,
		&order.Total,
		&order.Status,
		&order.ShippingAddress.Street,
		&order.ShippingAddress.City,
		&order.ShippingAddress.State,
		&order.ShippingAddress.ZipCode,
		&order.ShippingAddress.Country,
		&order.StockReserved,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userName.Valid {
		order.User = &domain.UserSummary{ID: order.UserID, Name: userName.String, Email: userEmail.String}
	}
	return order, nil
}

func (r *postgresOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Repository: Order with ID %s not found", id)
			return nil, fmt.Errorf("order %s %w", id, domain.ErrNotFound)
		}
		if translated := translatePqError(err, "order "+id); errors.Is(translated, domain.ErrNotFound) {
			return nil, translated
		}
		r.log.Errorf("Repository: Failed to get order by ID %s: %v", id, err)
		return nil, fmt.Errorf("could not retrieve order: %w", err)
	}

	items, err := r.orderItems(ctx, r.db, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}

	r.log.Debugf("Repository: Order %s retrieved with %d items.", order.ID, len(order.Items))
	return order, nil
}

func (r *postgresOrderRepository) orderItems(ctx context.Context, q queryer, orderIDs []string) (map[string][]domain.OrderItem, error) {
	query := `
        SELECT order_id, product_id, name, price, quantity
        FROM order_items
        WHERE order_id = ANY($1::uuid[])
        ORDER BY order_id, position`
	rows, err := q.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		r.log.Errorf("Repository: Failed to query items for orders %v: %v", orderIDs, err)
		return nil, fmt.Errorf("could not retrieve order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			r.log.Errorf("Repository: Failed to scan order item row: %v", err)
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		itemsByOrder[orderID] = append(itemsByOrder[orderID], item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return itemsByOrder, nil
}

func (r *postgresOrderRepository) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}

	query := orderSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if translated := translatePqError(err, "user "+filter.UserID); errors.Is(translated, domain.ErrNotFound) {
			// Malformed user id: nothing can match.
			return []domain.Order{}, nil
		}
		r.log.Errorf("Repository: Failed to list orders: %v", err)
		return nil, fmt.Errorf("could not retrieve orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	var ids []string
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.log.Errorf("Repository: Failed to scan order row: %v", err)
			return nil, fmt.Errorf("error scanning order data: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	itemsByOrder, err := r.orderItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	r.log.Infof("Repository: Retrieved %d orders (user: %q, status: %q)", len(orders), filter.UserID, filter.Status)
	return orders, nil
}

func (r *postgresOrderRepository) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	err := withTx(ctx, r.db, r.log, func(tx *sql.Tx) error {
		var reserved bool
		err := tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3 RETURNING stock_reserved`,
			to, id, from).Scan(&reserved)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			r.log.Errorf("Repository: Failed to update status for order %s: %v", id, err)
			return translatePqError(fmt.Errorf("could not update order status: %w", err), "order "+id)
		}
		if errors.Is(err, sql.ErrNoRows) {
			var current domain.OrderStatus
			err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("order %s %w", id, domain.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("could not read order status: %w", err)
			}
			r.log.Warnf("Repository: Order %s changed to '%s' concurrently, expected '%s'", id, current, from)
			return fmt.Errorf("order %s is now %s: %w", id, current, domain.ErrInvalidTransition)
		}

		if to == domain.StatusCancelled && reserved {
			// Lock the product rows in ID order, as PlaceOrder does.
			lock := `
                SELECT id FROM products
                WHERE id IN (SELECT product_id FROM order_items WHERE order_id = $1)
                ORDER BY id
                FOR UPDATE`
			locked, err := tx.QueryContext(ctx, lock, id)
			if err != nil {
				r.log.Errorf("Repository: Failed to lock products of cancelled order %s: %v", id, err)
				return translatePqError(fmt.Errorf("could not lock products for order %s: %w", id, err), "products of order "+id)
			}
			for locked.Next() {
			}
			err = locked.Err()
			locked.Close()
			if err != nil {
				return translatePqError(fmt.Errorf("could not lock products for order %s: %w", id, err), "products of order "+id)
			}

			restock := `
                UPDATE products p
                SET stock = p.stock + i.quantity, updated_at = NOW()
                FROM (
                    SELECT product_id, SUM(quantity) AS quantity
                    FROM order_items
                    WHERE order_id = $1
                    GROUP BY product_id
                ) i
                WHERE p.id = i.product_id`
			if _, err := tx.ExecContext(ctx, restock, id); err != nil {
				r.log.Errorf("Repository: Failed to return stock for cancelled order %s: %v", id, err)
				return translatePqError(fmt.Errorf("could not return stock for order %s: %w", id, err), "products of order "+id)
			}
			r.log.Infof("Repository: Returned stock for cancelled order %s", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Infof("Repository: Order %s moved from '%s' to '%s'", id, from, to)
	return r.GetOrderByID(ctx, id)
}

func (r *postgresOrderRepository) CountOrders(ctx context.Context) (int, error) {
	return count(ctx, r.db, "orders")
}
