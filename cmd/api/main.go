package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/safar/go-order-store/internal/config"
	"github.com/safar/go-order-store/internal/database"
	"github.com/safar/go-order-store/internal/store"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	mux := http.NewServeMux()

	mux.HandleFunc("/customers", handleCustomers(db))
	mux.HandleFunc("/customers/", handleCustomerByID(db))
	mux.HandleFunc("/products", handleProducts(db))
	mux.HandleFunc("/products/", handleProductByID(db))
	mux.HandleFunc("/stock/low", handleLowStock(db))
	mux.HandleFunc("/stock/", handleStockByProduct(db))
	mux.HandleFunc("/orders", handleOrders(db))
	mux.HandleFunc("/orders/", handleOrderByID(db))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func handleCustomers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method != http.MethodPost {
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		customer, err := store.CreateCustomer(ctx, db, req.Email, req.Name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}

		respondJSON(w, http.StatusCreated, customer)
	}
}

func handleCustomerByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rest := strings.TrimPrefix(r.URL.Path, "/customers/")

		// GET /customers/{id}/orders — cursor-paged order history
		if id, ok := strings.CutSuffix(rest, "/orders"); ok {
			customerID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid customer ID")
				return
			}

			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			if limit < 1 || limit > 100 {
				limit = 20
			}

			result, err := store.ListOrdersByCustomer(ctx, db, customerID, r.URL.Query().Get("cursor"), limit)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}

			respondJSON(w, http.StatusOK, result)
			return
		}

		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid customer ID")
			return
		}

		customer, err := store.GetCustomer(ctx, db, id)
		if err != nil {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, customer)
	}
}

func handleProducts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				SKU          string `json:"sku"`
				Name         string `json:"name"`
				Description  string `json:"description"`
				UnitPrice    string `json:"unit_price"`
				StoreID      int64  `json:"store_id"`
				CategoryID   int64  `json:"category_id"`
				Stock        int    `json:"stock"`
				MinimumStock int    `json:"minimum_stock"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			price, err := decimal.NewFromString(req.UnitPrice)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid unit price")
				return
			}

			product, err := store.CreateProduct(ctx, db, req.SKU, req.Name, req.Description,
				price, req.StoreID, req.CategoryID, req.Stock, req.MinimumStock)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}

			respondJSON(w, http.StatusCreated, product)

		case http.MethodGet:
			page, pageSize := pagingParams(r)

			result, err := store.ListProducts(ctx, db, page, pageSize)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}

			respondJSON(w, http.StatusOK, result)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleProductByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rest := strings.TrimPrefix(r.URL.Path, "/products/")

		// PUT /products/{id}/price
		if id, ok := strings.CutSuffix(rest, "/price"); ok && r.Method == http.MethodPut {
			productID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid product ID")
				return
			}

			var req struct {
				UnitPrice string `json:"unit_price"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			price, err := decimal.NewFromString(req.UnitPrice)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid unit price")
				return
			}

			if err := store.UpdateProductPrice(ctx, db, productID, price); err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}

			w.WriteHeader(http.StatusNoContent)
			return
		}

		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		switch r.Method {
		case http.MethodGet:
			product, err := store.GetProduct(ctx, db, id)
			if err != nil {
				respondError(w, http.StatusNotFound, err.Error())
				return
			}
			respondJSON(w, http.StatusOK, product)

		case http.MethodDelete:
			// Soft delete: deactivate, never remove.
			if err := store.DeactivateProduct(ctx, db, id); err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleLowStock(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListBelowMinimum(r.Context(), db)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, records)
	}
}

func handleStockByProduct(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		idStr := strings.TrimPrefix(r.URL.Path, "/stock/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}

		switch r.Method {
		case http.MethodGet:
			record, err := store.GetStock(ctx, db, id)
			if err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}
			respondJSON(w, http.StatusOK, record)

		case http.MethodPut:
			var req struct {
				MinimumStock int `json:"minimum_stock"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			if err := store.SetMinimumStock(ctx, db, id, req.MinimumStock); err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleOrders(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		switch r.Method {
		case http.MethodPost:
			var req struct {
				CustomerID int64 `json:"customer_id"`
				Items      []struct {
					ProductID int64 `json:"product_id"`
					Quantity  int   `json:"quantity"`
				} `json:"items"`
				ShippingAddress string `json:"shipping_address"`
				PaymentMethod   string `json:"payment_method"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			var items []store.OrderItemRequest
			for _, item := range req.Items {
				items = append(items, store.OrderItemRequest{
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
				})
			}

			order, err := store.PlaceOrder(ctx, db, store.PlaceOrderRequest{
				CustomerID:      req.CustomerID,
				Items:           items,
				ShippingAddress: req.ShippingAddress,
				PaymentMethod:   req.PaymentMethod,
			})
			if err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}

			respondJSON(w, http.StatusCreated, order)

		case http.MethodGet:
			// Query forms: ?status=..., ?from=...&to=..., default recent.
			if status := r.URL.Query().Get("status"); status != "" {
				page, pageSize := pagingParams(r)
				result, err := store.ListOrdersByStatus(ctx, db, status, page, pageSize)
				if err != nil {
					respondError(w, statusForError(err), err.Error())
					return
				}
				respondJSON(w, http.StatusOK, result)
				return
			}

			if fromStr := r.URL.Query().Get("from"); fromStr != "" {
				from, err := time.Parse(time.RFC3339, fromStr)
				if err != nil {
					respondError(w, http.StatusBadRequest, "Invalid 'from' timestamp")
					return
				}
				to := time.Now()
				if toStr := r.URL.Query().Get("to"); toStr != "" {
					if to, err = time.Parse(time.RFC3339, toStr); err != nil {
						respondError(w, http.StatusBadRequest, "Invalid 'to' timestamp")
						return
					}
				}
				orders, err := store.ListOrdersByDateRange(ctx, db, from, to)
				if err != nil {
					respondError(w, statusForError(err), err.Error())
					return
				}
				respondJSON(w, http.StatusOK, orders)
				return
			}

			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			orders, err := store.ListRecentOrders(ctx, db, limit)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			respondJSON(w, http.StatusOK, orders)

		default:
			respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

func handleOrderByID(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rest := strings.TrimPrefix(r.URL.Path, "/orders/")

		// POST /orders/{id}/cancel
		if id, ok := strings.CutSuffix(rest, "/cancel"); ok && r.Method == http.MethodPost {
			orderID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid order ID")
				return
			}

			cancelled, err := store.CancelOrder(ctx, db, orderID)
			if err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}

			respondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
			return
		}

		// PUT /orders/{id}/status
		if id, ok := strings.CutSuffix(rest, "/status"); ok && r.Method == http.MethodPut {
			orderID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Invalid order ID")
				return
			}

			var req struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			if err := store.UpdateOrderStatus(ctx, db, orderID, req.Status); err != nil {
				respondError(w, statusForError(err), err.Error())
				return
			}

			w.WriteHeader(http.StatusNoContent)
			return
		}

		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid order ID")
			return
		}

		order, err := store.GetOrder(ctx, db, id)
		if err != nil {
			respondError(w, statusForError(err), err.Error())
			return
		}

		respondJSON(w, http.StatusOK, order)
	}
}

func pagingParams(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrCustomerNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrStockRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrProductUnavailable),
		errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
