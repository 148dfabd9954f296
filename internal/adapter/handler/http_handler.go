package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

type HTTPHandler struct {
	inventory *service.InventoryService
	logger    *zap.Logger
}

func NewHTTPHandler(inventory *service.InventoryService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{inventory: inventory, logger: logger}
}

// Register binds the inventory routes to r.
func (h *HTTPHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	r.GET("/products", h.ListProducts)
	r.POST("/products", h.AddProduct)
	r.GET("/products/:id", h.GetProduct)
	r.PATCH("/products/:id", h.EditProduct)
	r.DELETE("/products/:id", h.DeleteProduct)

	r.GET("/sales", h.ListSales)
	r.POST("/sales", h.RecordSale)

	r.GET("/transactions", h.ListTransactions)
	r.GET("/report", h.Report)
}

// NewRouter builds a gin engine with the standard middleware chain.
func NewRouter(h *HTTPHandler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(CORS())
	h.Register(r)
	return r
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	products, err := h.inventory.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	product, err := h.inventory.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) AddProduct(c *gin.Context) {
	var req service.NewProduct
	if !h.bind(c, &req) {
		return
	}

	product, err := h.inventory.AddProduct(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) EditProduct(c *gin.Context) {
	var req service.ProductPatch
	if !h.bind(c, &req) {
		return
	}

	product, err := h.inventory.EditProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	if err := h.inventory.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *HTTPHandler) ListSales(c *gin.Context) {
	sales, err := h.inventory.ListSales(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *HTTPHandler) RecordSale(c *gin.Context) {
	var req service.NewSale
	if !h.bind(c, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader(idempotencyKeyHeader)
	}

	sale, err := h.inventory.RecordSale(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *HTTPHandler) ListTransactions(c *gin.Context) {
	txs, err := h.inventory.ListTransactions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *HTTPHandler) Report(c *gin.Context) {
	report, err := h.inventory.Report(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *HTTPHandler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Warn("failed to bind JSON request",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status, message := httpError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": message})
}

func httpError(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "Not enough stock"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
