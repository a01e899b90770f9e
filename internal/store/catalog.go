package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/models"
	"github.com/shopspring/decimal"
)

// catalogEntry is the snapshot a placement request validates and prices
// against: product state and stock at a single read point.
type catalogEntry struct {
	Product models.Product
	Stock   models.StockRecord
}

// lookupCatalog resolves a product for ordering. It fails with
// ErrProductUnavailable when the product does not exist, is inactive, or has
// no stock record yet. Side-effect free.
func lookupCatalog(ctx context.Context, db *sql.DB, productID int64) (*catalogEntry, error) {
	entry := &catalogEntry{}
	var stockProductID sql.NullInt64
	var stockQty, stockMin sql.NullInt32
	var stockUpdated sql.NullTime

	query := `
		SELECT p.id, p.sku, p.name, p.description, p.unit_price, p.active,
		       p.store_id, p.category_id, p.created_at, p.updated_at,
		       s.product_id, s.quantity, s.minimum_stock, s.updated_at
		FROM products p
		LEFT JOIN stock_records s ON s.product_id = p.id
		WHERE p.id = $1`

	err := db.QueryRowContext(ctx, query, productID).Scan(
		&entry.Product.ID,
		&entry.Product.SKU,
		&entry.Product.Name,
		&entry.Product.Description,
		&entry.Product.UnitPrice,
		&entry.Product.Active,
		&entry.Product.StoreID,
		&entry.Product.CategoryID,
		&entry.Product.CreatedAt,
		&entry.Product.UpdatedAt,
		&stockProductID,
		&stockQty,
		&stockMin,
		&stockUpdated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: product %d", database.ErrProductUnavailable, productID)
		}
		return nil, fmt.Errorf("lookup product %d: %w", productID, err)
	}

	if !entry.Product.Active {
		return nil, fmt.Errorf("%w: product %d is inactive", database.ErrProductUnavailable, productID)
	}

	// A product without a stock record has not finished catalog setup;
	// refuse orders against it.
	if !stockProductID.Valid {
		return nil, fmt.Errorf("%w: product %d has no stock record", database.ErrProductUnavailable, productID)
	}

	entry.Stock = models.StockRecord{
		ProductID:    stockProductID.Int64,
		Quantity:     int(stockQty.Int32),
		MinimumStock: int(stockMin.Int32),
		UpdatedAt:    stockUpdated.Time,
	}

	return entry, nil
}

// CreateProduct inserts the product and its stock record in one transaction
// so no product is orderable before its stock ledger row exists.
func CreateProduct(ctx context.Context, db *sql.DB, sku, name, description string, price decimal.Decimal, storeID, categoryID int64, stock, minimumStock int) (*models.Product, error) {
	product := &models.Product{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		query := `
			INSERT INTO products (sku, name, description, unit_price, active, store_id, category_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $6, NOW(), NOW())
			RETURNING id, sku, name, description, unit_price, active, store_id, category_id, created_at, updated_at`

		err := tx.QueryRowContext(ctx, query, sku, name, description, price, storeID, categoryID).Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.UnitPrice,
			&product.Active,
			&product.StoreID,
			&product.CategoryID,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO stock_records (product_id, quantity, minimum_stock, updated_at)
			 VALUES ($1, $2, $3, NOW())`,
			product.ID, stock, minimumStock)
		if err != nil {
			return fmt.Errorf("create stock record: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT id, sku, name, description, unit_price, active, store_id, category_id, created_at, updated_at
		FROM products
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.UnitPrice,
		&product.Active,
		&product.StoreID,
		&product.CategoryID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// UpdateProductPrice changes the catalog price. Lines of already-placed
// orders keep their captured price.
func UpdateProductPrice(ctx context.Context, db *sql.DB, id int64, price decimal.Decimal) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET unit_price = $1, updated_at = NOW()
		 WHERE id = $2`,
		price, id)
	if err != nil {
		return fmt.Errorf("update product price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// DeactivateProduct soft-deletes: the row stays for the referential integrity
// of historical order lines, but normal listings and new orders exclude it.
func DeactivateProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET active = FALSE, updated_at = NOW()
		 WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

// ListProducts returns active products only.
func ListProducts(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE active`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, sku, name, description, unit_price, active, store_id, category_id, created_at, updated_at
		FROM products
		WHERE active
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.SKU,
			&product.Name,
			&product.Description,
			&product.UnitPrice,
			&product.Active,
			&product.StoreID,
			&product.CategoryID,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(products, total, page, pageSize), nil
}
