// Package httpapi is the HTTP ingress (C7): request parsing, routing, and
// response shaping for the public endpoints. It is the one layer allowed to
// know about the external wire contract's naming (e.g. "default" instead of
// "primary") — the core packages never see it.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/robertalmeida/payment-dispatch-gateway/internal/dispatch"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/model"
	"github.com/robertalmeida/payment-dispatch-gateway/internal/summary"
)

// Handler holds the ingress's dependencies.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	summary    *summary.Store
}

// New builds a Handler.
func New(d *dispatch.Dispatcher, s *summary.Store) *Handler {
	return &Handler{dispatcher: d, summary: s}
}

// Router builds the gin engine with CORS and every route registered,
// matching the teacher's setup (gin.ReleaseMode, permissive CORS).
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"*"}
	r.Use(cors.New(corsConfig))

	r.POST("/payments", h.postPayment)
	r.GET("/payments-summary", h.getSummary)
	r.DELETE("/payments-summary", h.resetSummary)
	r.GET("/healthz", h.healthz)

	return r
}

type paymentRequest struct {
	CorrelationID string  `json:"correlationId" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
}

// postPayment handles POST /payments. Ingress validation (§7, not core
// scope) happens here: correlationId must be a UUID and amount must be
// positive; the number of fractional digits is not checked. The Dispatcher is called synchronously so a
// failed dispatch can surface as a 500, per spec.md's ingress contract —
// the teacher's original fire-and-forget `go processPayment(...)` cannot
// satisfy that contract and is not carried forward; see DESIGN.md.
func (h *Handler) postPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := uuid.Parse(req.CorrelationID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "correlationId must be a valid UUID"})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}

	outcome := h.dispatcher.ProcessPayment(c.Request.Context(), model.PaymentRequest{
		CorrelationID: req.CorrelationID,
		Amount:        req.Amount,
	})

	if !outcome.Success {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment could not be processed by either processor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "payment processed", "processor": outcome.ProcessorUsed})
}

type processorSummaryResponse struct {
	TotalRequests int     `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type summaryResponse struct {
	Default  processorSummaryResponse `json:"default"`
	Fallback processorSummaryResponse `json:"fallback"`
}

// getSummary handles GET /payments-summary?from=&to=. from/to are parsed as
// RFC3339, but a value that fails to parse is not rejected, and neither
// value affects the result: SummaryStore always returns global totals, per
// spec.md §4.6/§9.
func (h *Handler) getSummary(c *gin.Context) {
	from, _ := parseRFC3339(c.Query("from"))
	to, _ := parseRFC3339(c.Query("to"))

	sum := h.summary.Get(c.Request.Context(), from, to)

	c.JSON(http.StatusOK, summaryResponse{
		Default: processorSummaryResponse{
			TotalRequests: sum.Primary.TotalRequests,
			TotalAmount:   sum.Primary.TotalAmount,
		},
		Fallback: processorSummaryResponse{
			TotalRequests: sum.Fallback.TotalRequests,
			TotalAmount:   sum.Fallback.TotalAmount,
		},
	})
}

// resetSummary handles DELETE /payments-summary.
func (h *Handler) resetSummary(c *gin.Context) {
	if err := h.summary.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "summary reset requested", "warning": "coordination store degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "summary reset"})
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseRFC3339(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
