package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/port"
)

type brokenStore struct{}

func (brokenStore) Load(context.Context) (*domain.Snapshot, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Save(context.Context, *domain.Snapshot) error {
	return errors.New("connection refused")
}

func newInventory(t *testing.T, store port.SnapshotRepository) *service.InventoryService {
	t.Helper()
	return service.NewInventoryService(store, zaptest.NewLogger(t),
		service.WithClock(func() time.Time { return time.Date(2025, time.March, 7, 9, 30, 0, 0, time.UTC) }),
		service.WithIdempotency(storage.NewMemoryIdempotency()),
	)
}

func newTestRouter(t *testing.T, store port.SnapshotRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	return NewRouter(NewHTTPHandler(newInventory(t, store), logger), logger)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHTTPProductLifecycle(t *testing.T) {
	r := newTestRouter(t, storage.NewMemoryAdapter())

	w := doJSON(t, r, http.MethodPost, "/products", map[string]interface{}{"name": "Tea", "price": 10, "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tea := decodeBody[domain.Product](t, w)
	assert.NotEmpty(t, tea.ID)
	assert.Equal(t, "New product", tea.Description)
	assert.Equal(t, "General", tea.Category)
	assert.Contains(t, w.Body.String(), `"price":10`)

	w = doJSON(t, r, http.MethodPatch, "/products/"+tea.ID, map[string]interface{}{"quantity": 8})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 8, decodeBody[domain.Product](t, w).Quantity)

	w = doJSON(t, r, http.MethodPost, "/sales", map[string]interface{}{"productId": tea.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sale := decodeBody[domain.Sale](t, w)
	assert.True(t, decimal.NewFromInt(30).Equal(sale.Total))
	assert.Equal(t, "3/7/2025, 9:30:00 AM", sale.Date)

	w = doJSON(t, r, http.MethodGet, "/products/"+tea.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, decodeBody[domain.Product](t, w).Quantity)

	w = doJSON(t, r, http.MethodDelete, "/products/"+tea.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	txs := decodeBody[[]domain.TransactionRecord](t, w)
	require.Len(t, txs, 4)
	assert.Equal(t, []domain.Action{domain.ActionAdded, domain.ActionRestocked, domain.ActionSold, domain.ActionDeleted},
		[]domain.Action{txs[0].Action, txs[1].Action, txs[2].Action, txs[3].Action})

	w = doJSON(t, r, http.MethodGet, "/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]domain.Sale](t, w), 1)

	w = doJSON(t, r, http.MethodPatch, "/products/"+tea.ID, map[string]interface{}{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Product not found"}`, w.Body.String())
}

func TestHTTPErrors(t *testing.T) {
	r := newTestRouter(t, storage.NewMemoryAdapter())

	w := doJSON(t, r, http.MethodPost, "/products", map[string]interface{}{"name": "Tea", "price": 2, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	tea := decodeBody[domain.Product](t, w)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		errMsg string
	}{
		{"malformed body", http.MethodPost, "/products", "not an object", http.StatusBadRequest, "invalid request body"},
		{"missing name", http.MethodPost, "/products", map[string]interface{}{"price": 1}, http.StatusBadRequest, "validation failed: name is required"},
		{"negative price on edit", http.MethodPatch, "/products/" + tea.ID, map[string]interface{}{"price": -1}, http.StatusBadRequest, "validation failed: price must be >= 0"},
		{"tiny negative price", http.MethodPost, "/products", map[string]interface{}{"name": "Jam", "price": json.Number("-1e-400")}, http.StatusBadRequest, "validation failed: price must be >= 0"},
		{"price beyond stored scale", http.MethodPost, "/products", map[string]interface{}{"name": "Jam", "price": 1.23456}, http.StatusBadRequest, "validation failed: price must have at most 4 decimal places"},
		{"unknown product", http.MethodGet, "/products/nope", nil, http.StatusNotFound, "Product not found"},
		{"delete unknown product", http.MethodDelete, "/products/nope", nil, http.StatusNotFound, "Product not found"},
		{"sale of unknown product", http.MethodPost, "/sales", map[string]interface{}{"productId": "nope", "quantity": 1}, http.StatusNotFound, "Product not found"},
		{"not enough stock", http.MethodPost, "/sales", map[string]interface{}{"productId": tea.ID, "quantity": 2}, http.StatusBadRequest, "Not enough stock"},
		{"zero quantity sale", http.MethodPost, "/sales", map[string]interface{}{"productId": tea.ID, "quantity": 0}, http.StatusBadRequest, "validation failed: quantity must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.errMsg, decodeBody[map[string]string](t, w)["error"])
		})
	}

	// none of the rejected requests changed anything
	w = doJSON(t, r, http.MethodGet, "/transactions", nil)
	assert.Len(t, decodeBody[[]domain.TransactionRecord](t, w), 1)
}

func TestHTTPDuplicateSale(t *testing.T) {
	r := newTestRouter(t, storage.NewMemoryAdapter())

	w := doJSON(t, r, http.MethodPost, "/products", map[string]interface{}{"name": "Tea", "price": 2, "quantity": 5})
	tea := decodeBody[domain.Product](t, w)

	sale := map[string]interface{}{"productId": tea.ID, "quantity": 1}
	w = doJSON(t, r, http.MethodPost, "/sales", sale, "Idempotency-Key", "checkout-42")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/sales", sale, "Idempotency-Key", "checkout-42")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/products/"+tea.ID, nil)
	assert.Equal(t, 4, decodeBody[domain.Product](t, w).Quantity)
}

func TestHTTPPersistenceFailure(t *testing.T) {
	r := newTestRouter(t, brokenStore{})

	w := doJSON(t, r, http.MethodGet, "/products", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/products", map[string]interface{}{"name": "Tea"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHTTPReport(t *testing.T) {
	r := newTestRouter(t, storage.NewMemoryAdapter())

	w := doJSON(t, r, http.MethodPost, "/products", map[string]interface{}{"name": "Tea", "price": 2.5, "quantity": 10})
	tea := decodeBody[domain.Product](t, w)
	doJSON(t, r, http.MethodPost, "/products", map[string]interface{}{"name": "Mug", "price": 8, "quantity": 3})
	doJSON(t, r, http.MethodPost, "/sales", map[string]interface{}{"productId": tea.ID, "quantity": 4})

	w = doJSON(t, r, http.MethodGet, "/report", nil)
	require.Equal(t, http.StatusOK, w.Code)

	report := decodeBody[service.Report](t, w)
	assert.Equal(t, 2, report.TotalProducts)
	assert.Equal(t, 9, report.TotalStock)
	assert.Equal(t, 5, report.LowStockThreshold)
	require.Len(t, report.LowStock, 1)
	assert.Equal(t, "Mug", report.LowStock[0].Name)
	assert.True(t, decimal.NewFromInt(10).Equal(report.TotalSales))
	assert.Equal(t, 1, report.SalesCount)
	assert.Equal(t, 3, report.TransactionCount)
}

func TestMiddleware(t *testing.T) {
	r := newTestRouter(t, storage.NewMemoryAdapter())

	t.Run("preflight", func(t *testing.T) {
		w := doJSON(t, r, http.MethodOptions, "/products", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

		allowed := strings.Split(w.Header().Get("Access-Control-Allow-Headers"), ", ")
		assert.Contains(t, allowed, "Content-Type")
		assert.Contains(t, allowed, "X-Request-ID")
		assert.Contains(t, allowed, "Idempotency-Key")
	})

	t.Run("request id is echoed", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/health", nil, "X-Request-ID", "abc-123")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})

	t.Run("request id is generated", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("panics become 500", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		logger := zaptest.NewLogger(t)
		e := gin.New()
		e.Use(RequestID(), Recovery(logger))
		e.GET("/boom", func(*gin.Context) { panic("boom") })

		w := doJSON(t, e, http.MethodGet, "/boom", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
	})
}
