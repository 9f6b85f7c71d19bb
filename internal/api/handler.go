package api

import (
	"context"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/identity"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	quotations    *service.QuotationService
	orders        *service.OrderService
	notifications *service.NotificationService
	identity      identity.Chain
	dependencies  map[string]Pinger
}

var registerTagNames sync.Once

// NewHandler creates a new HTTP handler
func NewHandler(
	quotations *service.QuotationService,
	orders *service.OrderService,
	notifications *service.NotificationService,
	resolver identity.Chain,
	dependencies map[string]Pinger,
) *Handler {
	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})
	return &Handler{
		quotations:    quotations,
		orders:        orders,
		notifications: notifications,
		identity:      resolver,
		dependencies:  dependencies,
	}
}

// jsonFieldName reports validation failures under their JSON names.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())
	router.NoRoute(notFoundRoute)

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	customer := requireRole(identity.RoleCustomer)
	distributor := requireRole(identity.RoleDistributor)

	v1 := router.Group("/api/v1", authenticate(h.identity))
	{
		q := v1.Group("/quotation")
		q.POST("/request", customer, h.createQuotationRequest)
		q.GET("/customer/requests", customer, h.listCustomerRequests)
		q.GET("/request/:id", h.getQuotationRequest)
		q.GET("/request/:id/items", h.getQuotationRequestItems)
		q.GET("/request/:id/has-response", distributor, h.hasResponded)
		q.GET("/request/:id/my-response", distributor, h.getMyResponse)
		q.GET("/comparison/:requestId", h.getComparison)
		q.GET("/distributor/requests", distributor, h.listDistributorRequests)
		q.POST("/response", distributor, h.submitQuotationResponse)
		q.GET("/response/:id", h.getQuotationResponse)
		q.PUT("/response/:id", distributor, h.updateQuotationResponse)
		q.POST("/accept", customer, h.acceptQuotation)
		q.POST("/cancel/:id", customer, h.cancelQuotationRequest)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.GET("/notifications", h.listNotifications)
		v1.POST("/notifications/:id/read", h.markNotificationRead)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.dependencies))
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperr.Validation("invalid path parameter", map[string]string{name: "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

func bind(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, bindingError(err))
		return false
	}
	return true
}
