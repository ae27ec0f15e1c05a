package facade

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"crmbot/internal/crm"
	"crmbot/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// APIPrefix is where the facade routes are mounted.
const APIPrefix = "/api/v1"

// Headers carrying CRM pagination on list responses.
const (
	HeaderTotalCount = "X-Total-Count"
	HeaderTotalPages = "X-Total-Pages"
)

var configureGinOnce sync.Once

// Handler exposes the facade Service over HTTP.
type Handler struct {
	svc     *Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRouter builds the gin engine serving the facade API.
func NewRouter(svc *Service, logger *slog.Logger, metricRegistry *metrics.Metrics) *gin.Engine {
	configureGinOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			configureValidator(v)
		}
	})

	h := &Handler{
		svc:     svc,
		logger:  logger.With("component", "facade_http"),
		metrics: metricRegistry,
	}

	r := gin.New()
	r.Use(h.recovery(), h.observe())

	api := r.Group(APIPrefix)
	api.GET("/customers", h.listCustomers)
	api.POST("/customers", h.createCustomer)
	api.GET("/customers/:id/orders", h.listCustomerOrders)
	api.POST("/orders", h.createOrder)
	api.POST("/orders/:id/payment", h.createPayment)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "not found"})
	})
	return r
}

// GET /customers
func (h *Handler) listCustomers(c *gin.Context) {
	var q CustomerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeError(c, bindError(err))
		return
	}
	page, err := h.svc.ListCustomers(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	setPagingHeaders(c, page.Paging)
	c.JSON(http.StatusOK, page.Customers)
}

// POST /customers
func (h *Handler) createCustomer(c *gin.Context) {
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindError(err))
		return
	}
	res, err := h.svc.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /customers/:id/orders
func (h *Handler) listCustomerOrders(c *gin.Context) {
	customerID, err := pathID(c, "customer_id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var q OrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.writeError(c, bindError(err))
		return
	}
	page, err := h.svc.ListCustomerOrders(c.Request.Context(), customerID, q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	setPagingHeaders(c, page.Paging)
	c.JSON(http.StatusOK, page.Orders)
}

// POST /orders
func (h *Handler) createOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindError(err))
		return
	}
	res, err := h.svc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /orders/:id/payment
func (h *Handler) createPayment(c *gin.Context) {
	orderID, err := pathID(c, "order_id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, bindError(err))
		return
	}
	res, err := h.svc.CreatePayment(c.Request.Context(), orderID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func pathID(c *gin.Context, field string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid(field, "must be a positive integer")
	}
	return id, nil
}

// bindError turns decoding and binding failures into validation errors.
func bindError(err error) error {
	converted := toValidationError(err)
	var vErr *ValidationError
	if errors.As(converted, &vErr) {
		return vErr
	}
	return invalid("request", fmt.Sprintf("could not be parsed: %v", err))
}

func setPagingHeaders(c *gin.Context, p Paging) {
	if p.TotalCount > 0 {
		c.Header(HeaderTotalCount, strconv.Itoa(p.TotalCount))
	}
	if p.TotalPages > 0 {
		c.Header(HeaderTotalPages, strconv.Itoa(p.TotalPages))
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var vErr *ValidationError
	var apiErr *crm.APIError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: vErr.Error(), Errors: vErr.Fields})
	case errors.As(err, &apiErr):
		h.logger.Warn("crm rejected request", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: apiErr.Detail(), Errors: apiErr.Errors})
	case errors.Is(err, crm.ErrTransport):
		h.logger.Error("crm unavailable", "path", c.FullPath(), "error", err)
		h.metrics.IncError("facade_crm_transport")
		c.JSON(http.StatusBadGateway, ErrorResponse{Detail: "CRM request failed: " + err.Error()})
	default:
		h.logger.Error("facade request failed", "path", c.FullPath(), "error", err)
		h.metrics.IncError("facade_internal")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"})
	}
}

func (h *Handler) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.Error("panic in facade handler", "path", c.Request.URL.Path, "panic", recovered)
		h.metrics.IncError("facade_panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"})
	})
}

func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)
		if h.metrics != nil {
			statusLabel := strconv.Itoa(status)
			h.metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, statusLabel).Inc()
			h.metrics.HTTPLatency.WithLabelValues(route, c.Request.Method, statusLabel).Observe(duration.Seconds())
		}
		h.logger.Info("request handled",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
