package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/store"
)

func TestCreateAndGetCustomer(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	created, err := store.CreateCustomer(ctx, db, "cust@example.com", "Customer")
	if err != nil {
		t.Fatalf("Create customer: %v", err)
	}
	if created.ID == 0 {
		t.Error("Customer ID should not be 0")
	}

	loaded, err := store.GetCustomer(ctx, db, created.ID)
	if err != nil {
		t.Fatalf("Get customer: %v", err)
	}
	if loaded.Email != "cust@example.com" {
		t.Errorf("Expected email cust@example.com, got %s", loaded.Email)
	}

	_, err = store.GetCustomer(ctx, db, 424242)
	if !errors.Is(err, database.ErrCustomerNotFound) {
		t.Errorf("Expected customer not found, got: %v", err)
	}
}
