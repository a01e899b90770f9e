package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/models"
	"github.com/shopspring/decimal"
)

type PlaceOrderRequest struct {
	CustomerID      int64
	Items           []OrderItemRequest
	ShippingAddress string
	PaymentMethod   string
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

func generateOrderNumber() string {
	return "ORD-" + uuid.NewString()
}

// validatePlaceOrder checks request shape only; existence checks against the
// database happen in PlaceOrder.
func validatePlaceOrder(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: empty item list", database.ErrInvalidRequest)
	}

	seen := make(map[int64]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: non-positive quantity %d for product %d",
				database.ErrInvalidRequest, item.Quantity, item.ProductID)
		}
		if seen[item.ProductID] {
			return fmt.Errorf("%w: duplicate product %d (merge quantities before ordering)",
				database.ErrInvalidRequest, item.ProductID)
		}
		seen[item.ProductID] = true
	}

	return nil
}

// buildOrderLines materializes lines from the catalog snapshot taken during
// validation, so each line's unit price comes from the same read that
// approved the product.
func buildOrderLines(items []OrderItemRequest, entries map[int64]*catalogEntry) []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(items))
	for _, item := range items {
		unitPrice := entries[item.ProductID].Product.UnitPrice
		lines = append(lines, models.OrderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return lines
}

func orderTotal(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// PlaceOrder runs the placement workflow: validate everything before touching
// stock, reserve per item in input order, then persist header and lines as
// one atomic write. Any failure after a reservation compensates by releasing
// the already-reserved quantities in reverse order, so a failed call leaves
// stock at its pre-call values and creates no order row.
func PlaceOrder(ctx context.Context, db *sql.DB, req PlaceOrderRequest) (*models.Order, error) {
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	exists, err := customerExists(ctx, db, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: unknown customer %d", database.ErrInvalidRequest, req.CustomerID)
	}

	// Validate-all-before-reserve-any. The lookup is also the single read
	// point for line pricing.
	entries := make(map[int64]*catalogEntry, len(req.Items))
	for _, item := range req.Items {
		entry, err := lookupCatalog(ctx, db, item.ProductID)
		if err != nil {
			return nil, err
		}
		entries[item.ProductID] = entry
	}

	// Reserve in input order. Each reservation is a single atomic
	// conditional update, so no locks are held across products.
	reserved := make([]OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		if err := ReserveStock(ctx, db, item.ProductID, item.Quantity); err != nil {
			if relErr := releaseReserved(ctx, db, reserved); relErr != nil {
				return nil, errors.Join(err, relErr)
			}
			return nil, err
		}
		reserved = append(reserved, item)
	}

	lines := buildOrderLines(req.Items, entries)

	order := &models.Order{
		OrderNumber:     generateOrderNumber(),
		CustomerID:      req.CustomerID,
		Status:          models.OrderStatusPending,
		TotalAmount:     orderTotal(lines),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Lines:           lines,
	}

	if err := insertOrder(ctx, db, order); err != nil {
		wrapped := fmt.Errorf("%w: %v", database.ErrOrderPersistence, err)
		if relErr := releaseReserved(ctx, db, reserved); relErr != nil {
			return nil, errors.Join(wrapped, relErr)
		}
		return nil, wrapped
	}

	return order, nil
}

// releaseReserved compensates a partially reserved attempt, most recent
// reservation first.
func releaseReserved(ctx context.Context, db *sql.DB, reserved []OrderItemRequest) error {
	var errs []error
	for i := len(reserved) - 1; i >= 0; i-- {
		if err := ReleaseStock(ctx, db, reserved[i].ProductID, reserved[i].Quantity); err != nil {
			errs = append(errs, fmt.Errorf("compensate product %d: %w", reserved[i].ProductID, err))
		}
	}
	return errors.Join(errs...)
}

// insertOrder writes header and lines in one transaction and fills in the
// database-assigned identifiers and timestamps.
func insertOrder(ctx context.Context, db *sql.DB, order *models.Order) error {
	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, customer_id, status, total_amount, shipping_address, payment_method, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING id, created_at`,
			order.OrderNumber, order.CustomerID, order.Status, order.TotalAmount,
			order.ShippingAddress, order.PaymentMethod).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Lines {
			line := &order.Lines[i]
			line.OrderID = order.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_lines (order_id, product_id, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, created_at`,
				line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal).
				Scan(&line.ID, &line.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}

		return nil
	})
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `
		SELECT id, order_number, customer_id, status, total_amount, shipping_address, payment_method, created_at
		FROM orders
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.CustomerID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := getOrderLines(ctx, db, id)
	if err != nil {
		return nil, err
	}
	order.Lines = lines

	return order, nil
}

func getOrderLines(ctx context.Context, db *sql.DB, orderID int64) ([]models.OrderLine, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id`

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.OrderLine
	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.UnitPrice,
			&line.Subtotal,
			&line.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

const orderColumns = `id, order_number, customer_id, status, total_amount, shipping_address, payment_method, created_at`

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.CustomerID,
			&order.Status,
			&order.TotalAmount,
			&order.ShippingAddress,
			&order.PaymentMethod,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func ListOrdersByCustomer(ctx context.Context, db *sql.DB, customerID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders by customer: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func ListOrdersByStatus(ctx context.Context, db *sql.DB, status string, page, pageSize int) (*OffsetPage, error) {
	if !isOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", database.ErrInvalidRequest, status)
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, status, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

func ListOrdersByDateRange(ctx context.Context, db *sql.DB, from, to time.Time) ([]models.Order, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: date range end precedes start", database.ErrInvalidRequest)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders by date range: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func ListRecentOrders(ctx context.Context, db *sql.DB, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}
