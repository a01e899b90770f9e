package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/store"
)

func TestReserveAndReleaseStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := createTestProduct(t, db, "STK-001", "10.00", 5)

	if err := store.ReserveStock(ctx, db, product.ID, 5); err != nil {
		t.Fatalf("Reserve exact balance: %v", err)
	}
	if qty := stockQty(t, db, product.ID); qty != 0 {
		t.Errorf("Expected stock 0, got %d", qty)
	}

	// Nothing left; even a single unit is refused.
	err := store.ReserveStock(ctx, db, product.ID, 1)
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Expected insufficient stock, got: %v", err)
	}
	if qty := stockQty(t, db, product.ID); qty != 0 {
		t.Errorf("Stock must never go negative, got %d", qty)
	}

	if err := store.ReleaseStock(ctx, db, product.ID, 3); err != nil {
		t.Fatalf("Release stock: %v", err)
	}
	if qty := stockQty(t, db, product.ID); qty != 3 {
		t.Errorf("Expected stock 3 after release, got %d", qty)
	}

	err = store.ReserveStock(ctx, db, 424242, 1)
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Errorf("Reserve against unknown product should read as insufficient, got: %v", err)
	}

	err = store.ReleaseStock(ctx, db, 424242, 1)
	if !errors.Is(err, database.ErrStockRecordNotFound) {
		t.Errorf("Release against unknown product should fail, got: %v", err)
	}
}

func TestConcurrentReserves(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	product := createTestProduct(t, db, "STK-CONC", "10.00", 7)

	concurrency := 20
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.ReserveStock(ctx, db, product.ID, 1)
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	failureCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
			failureCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 7 {
		t.Errorf("Expected exactly 7 successful reserves, got %d", successCount)
	}
	if failureCount != 13 {
		t.Errorf("Expected exactly 13 failures, got %d", failureCount)
	}
	if qty := stockQty(t, db, product.ID); qty != 0 {
		t.Errorf("Expected final stock 0, got %d", qty)
	}
}

func TestMinimumStockReporting(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	low := createTestProduct(t, db, "STK-LOW", "10.00", 2)
	healthy := createTestProduct(t, db, "STK-OK", "10.00", 50)
	inactive := createTestProduct(t, db, "STK-INACT", "10.00", 0)

	if err := store.SetMinimumStock(ctx, db, low.ID, 5); err != nil {
		t.Fatalf("Set minimum stock: %v", err)
	}
	if err := store.SetMinimumStock(ctx, db, healthy.ID, 5); err != nil {
		t.Fatalf("Set minimum stock: %v", err)
	}
	if err := store.SetMinimumStock(ctx, db, inactive.ID, 5); err != nil {
		t.Fatalf("Set minimum stock: %v", err)
	}
	if err := store.DeactivateProduct(ctx, db, inactive.ID); err != nil {
		t.Fatalf("Deactivate product: %v", err)
	}

	records, err := store.ListBelowMinimum(ctx, db)
	if err != nil {
		t.Fatalf("List below minimum: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 low-stock record, got %d", len(records))
	}
	if records[0].ProductID != low.ID {
		t.Errorf("Expected product %d, got %d", low.ID, records[0].ProductID)
	}
	if records[0].MinimumStock != 5 || records[0].Quantity != 2 {
		t.Errorf("Unexpected record: %+v", records[0])
	}
}

func TestGetStockNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := store.GetStock(context.Background(), db, 424242)
	if !errors.Is(err, database.ErrStockRecordNotFound) {
		t.Errorf("Expected stock record not found, got: %v", err)
	}
}
