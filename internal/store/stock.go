package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/models"
)

// Stock ledger. Every mutation is a single atomic conditional statement, so
// per-product serializability is delegated to the database row lock and no
// in-process locking or lock ordering is needed.

func GetStock(ctx context.Context, db *sql.DB, productID int64) (*models.StockRecord, error) {
	record := &models.StockRecord{}

	query := `
		SELECT product_id, quantity, minimum_stock, updated_at
		FROM stock_records
		WHERE product_id = $1`

	err := db.QueryRowContext(ctx, query, productID).Scan(
		&record.ProductID,
		&record.Quantity,
		&record.MinimumStock,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrStockRecordNotFound
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}

	return record, nil
}

// ReserveStock decrements on-hand quantity if and only if enough is
// available. An insufficient balance is a normal negative outcome reported
// as ErrInsufficientStock, never a partially applied write.
func ReserveStock(ctx context.Context, db *sql.DB, productID int64, quantity int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE stock_records
		 SET quantity = quantity - $1,
		     updated_at = NOW()
		 WHERE product_id = $2
		   AND quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %d", database.ErrInsufficientStock, productID)
	}

	return nil
}

// ReleaseStock restores quantity, compensating an earlier reservation. No
// upper bound is enforced.
func ReleaseStock(ctx context.Context, db *sql.DB, productID int64, quantity int) error {
	return releaseStock(ctx, db, productID, quantity)
}

// querier lets store helpers run either directly or inside a larger
// transaction (cancellation restores stock atomically with the status
// write). Satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func releaseStock(ctx context.Context, q querier, productID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE stock_records
		 SET quantity = quantity + $1,
		     updated_at = NOW()
		 WHERE product_id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %d", database.ErrStockRecordNotFound, productID)
	}

	return nil
}

func SetMinimumStock(ctx context.Context, db *sql.DB, productID int64, minimum int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE stock_records
		 SET minimum_stock = $1,
		     updated_at = NOW()
		 WHERE product_id = $2`,
		minimum, productID)
	if err != nil {
		return fmt.Errorf("set minimum stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: product %d", database.ErrStockRecordNotFound, productID)
	}

	return nil
}

// ListBelowMinimum reports stock records whose on-hand quantity has fallen
// below their minimum threshold, for replenishment.
func ListBelowMinimum(ctx context.Context, db *sql.DB) ([]models.StockRecord, error) {
	query := `
		SELECT s.product_id, s.quantity, s.minimum_stock, s.updated_at
		FROM stock_records s
		JOIN products p ON p.id = s.product_id
		WHERE p.active AND s.quantity < s.minimum_stock
		ORDER BY s.product_id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list below minimum: %w", err)
	}
	defer rows.Close()

	var records []models.StockRecord
	for rows.Next() {
		var record models.StockRecord
		err := rows.Scan(
			&record.ProductID,
			&record.Quantity,
			&record.MinimumStock,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stock record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}
