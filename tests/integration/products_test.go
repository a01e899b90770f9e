package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/models"
	"github.com/safar/go-order-store/internal/store"
	"github.com/shopspring/decimal"
)

func TestCreateProductWithStockRecord(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product, err := store.CreateProduct(ctx, db, "PRD-001", "Widget", "A widget",
		decimal.RequireFromString("19.99"), 1, 2, 25, 5)
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	if product.ID == 0 {
		t.Error("Product ID should not be 0")
	}
	if !product.Active {
		t.Error("New product should be active")
	}
	if !product.UnitPrice.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("Expected price 19.99, got %s", product.UnitPrice)
	}

	record, err := store.GetStock(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get stock: %v", err)
	}
	if record.Quantity != 25 {
		t.Errorf("Expected quantity 25, got %d", record.Quantity)
	}
	if record.MinimumStock != 5 {
		t.Errorf("Expected minimum 5, got %d", record.MinimumStock)
	}
}

func TestGetProductNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.GetProduct(context.Background(), db, 424242)
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}
}

func TestDeactivateProductExcludedFromListing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	kept := createTestProduct(t, db, "PRD-KEEP", "10.00", 5)
	gone := createTestProduct(t, db, "PRD-GONE", "10.00", 5)

	if err := store.DeactivateProduct(ctx, db, gone.ID); err != nil {
		t.Fatalf("Deactivate product: %v", err)
	}

	page, err := store.ListProducts(ctx, db, 1, 50)
	if err != nil {
		t.Fatalf("List products: %v", err)
	}

	products := page.Items.([]models.Product)
	if page.Total != 1 || len(products) != 1 {
		t.Fatalf("Expected 1 listed product, got total=%d len=%d", page.Total, len(products))
	}
	if products[0].ID != kept.ID {
		t.Errorf("Expected product %d, got %d", kept.ID, products[0].ID)
	}

	// Soft delete: the row itself survives for order history.
	loaded, err := store.GetProduct(ctx, db, gone.ID)
	if err != nil {
		t.Fatalf("Get deactivated product: %v", err)
	}
	if loaded.Active {
		t.Error("Deactivated product should be inactive")
	}
}

func TestUpdateProductPriceNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.UpdateProductPrice(context.Background(), db, 424242, decimal.New(1, 0))
	if !errors.Is(err, database.ErrProductNotFound) {
		t.Errorf("Expected product not found, got: %v", err)
	}
}
