package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/models"
)

// orderStatusTransitions is the full set of legal edges. Forward progress is
// pending -> processing -> shipped -> delivered; cancellation is reachable
// only from pending or processing. Shipped and delivered orders cannot be
// cancelled.
var orderStatusTransitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
}

func isOrderStatus(status string) bool {
	_, ok := orderStatusTransitions[status]
	return ok
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to string) bool {
	for _, next := range orderStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// statusPredecessors returns the statuses from which target is reachable.
func statusPredecessors(target string) []string {
	var from []string
	for status, nexts := range orderStatusTransitions {
		for _, next := range nexts {
			if next == target {
				from = append(from, status)
			}
		}
	}
	return from
}

// UpdateOrderStatus moves an order along the status machine. The write is a
// conditional update guarded by the set of legal predecessor statuses, so a
// concurrent transition cannot apply the same edge twice. A transition into
// cancelled restores every line's stock in the same transaction as the
// status write.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus string) error {
	if !isOrderStatus(newStatus) {
		return fmt.Errorf("%w: unknown status %q", database.ErrInvalidRequest, newStatus)
	}

	if newStatus == models.OrderStatusCancelled {
		return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			return cancelOrderTx(ctx, tx, orderID)
		})
	}

	result, err := db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1
		 WHERE id = $2
		   AND status = ANY($3)`,
		newStatus, orderID, pq.Array(statusPredecessors(newStatus)))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return explainRejectedTransition(ctx, db, orderID, newStatus)
	}

	return nil
}

// cancelOrderTx performs the cancelled edge and the compensating stock
// releases atomically. The order row and its total are kept; only the status
// changes and the line quantities flow back into the ledger.
func cancelOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1
		 WHERE id = $2
		   AND status = ANY($3)`,
		models.OrderStatusCancelled, orderID,
		pq.Array(statusPredecessors(models.OrderStatusCancelled)))
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return explainRejectedTransition(ctx, tx, orderID, models.OrderStatusCancelled)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity FROM order_lines WHERE order_id = $1 ORDER BY id`,
		orderID)
	if err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	type lineQty struct {
		productID int64
		quantity  int
	}
	var lines []lineQty
	for rows.Next() {
		var l lineQty
		if err := rows.Scan(&l.productID, &l.quantity); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	for _, l := range lines {
		if err := releaseStock(ctx, tx, l.productID, l.quantity); err != nil {
			return err
		}
	}

	return nil
}

// explainRejectedTransition distinguishes a missing order from an illegal
// edge after a guarded status update touched zero rows.
func explainRejectedTransition(ctx context.Context, q querier, orderID int64, newStatus string) error {
	var current string
	err := q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return database.ErrOrderNotFound
		}
		return fmt.Errorf("get order status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", database.ErrIllegalTransition, current, newStatus)
}

// CancelOrder cancels if the order is in a cancellable state, restoring line
// quantities to stock. An illegal state reports false rather than an error;
// infrastructure failures still surface as errors.
func CancelOrder(ctx context.Context, db *sql.DB, orderID int64) (bool, error) {
	err := UpdateOrderStatus(ctx, db, orderID, models.OrderStatusCancelled)
	if err != nil {
		if errors.Is(err, database.ErrIllegalTransition) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
