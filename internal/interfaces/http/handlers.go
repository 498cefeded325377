package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-reconciler/internal/application/service"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
)

// IdempotencyKeyHeader carries the client's replay key on imports
const IdempotencyKeyHeader = "Idempotency-Key"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateTenantRequest is the body of POST /tenants
type CreateTenantRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateVendorRequest is the body of POST /tenants/:tenant_id/vendors
type CreateVendorRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateInvoiceRequest is the body of POST /tenants/:tenant_id/invoices
type CreateInvoiceRequest struct {
	VendorID      string          `json:"vendor_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	InvoiceDate   string          `json:"invoice_date"`
	Description   string          `json:"description"`
}

// ImportTransactionsRequest is the body of POST /tenants/:tenant_id/bank-transactions/import
type ImportTransactionsRequest struct {
	Transactions []service.ImportTransactionInput `json:"transactions" binding:"required"`
}

// PairScoreResponse is the result of scoring an explicit pair
type PairScoreResponse struct {
	InvoiceID     string          `json:"invoice_id"`
	TransactionID string          `json:"bank_transaction_id"`
	Score         decimal.Decimal `json:"score"`
	Confidence    string          `json:"confidence"`
	Reasoning     string          `json:"reasoning"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateTenant handles POST /tenants
func (h *Handlers) CreateTenant(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	tenant, err := h.services.Tenants.CreateTenant(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: tenant})
}

// ListTenants handles GET /tenants
func (h *Handlers) ListTenants(c *gin.Context) {
	tenants, err := h.services.Tenants.ListTenants(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tenants})
}

// GetTenant handles GET /tenants/:tenant_id
func (h *Handlers) GetTenant(c *gin.Context) {
	tenant, err := h.services.Tenants.GetTenant(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tenant})
}

// CreateVendor handles POST /tenants/:tenant_id/vendors
func (h *Handlers) CreateVendor(c *gin.Context) {
	var req CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	vendor, err := h.services.Tenants.CreateVendor(c.Request.Context(), tenantID(c), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: vendor})
}

// ListVendors handles GET /tenants/:tenant_id/vendors
func (h *Handlers) ListVendors(c *gin.Context) {
	vendors, err := h.services.Tenants.ListVendors(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: vendors})
}

// CreateInvoice handles POST /tenants/:tenant_id/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid invoice body")
		return
	}

	invoiceDate, err := parseOptionalDate(req.InvoiceDate)
	if err != nil {
		badRequest(c, "invoice_date must be YYYY-MM-DD or RFC3339")
		return
	}

	invoice, err := h.services.Invoices.CreateInvoice(c.Request.Context(), tenantID(c), service.CreateInvoiceInput{
		VendorID:      req.VendorID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		Currency:      req.Currency,
		InvoiceDate:   invoiceDate,
		Description:   req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: invoice})
}

// ListInvoices handles GET /tenants/:tenant_id/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	filter, err := invoiceFilterFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit, offset, err := pageFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.services.Invoices.ListInvoices(c.Request.Context(), tenantID(c), filter, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// GetInvoice handles GET /tenants/:tenant_id/invoices/:invoice_id
func (h *Handlers) GetInvoice(c *gin.Context) {
	invoice, err := h.services.Invoices.GetInvoice(c.Request.Context(), tenantID(c), c.Param("invoice_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: invoice})
}

// DeleteInvoice handles DELETE /tenants/:tenant_id/invoices/:invoice_id
func (h *Handlers) DeleteInvoice(c *gin.Context) {
	if err := h.services.Invoices.DeleteInvoice(c.Request.Context(), tenantID(c), c.Param("invoice_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ImportTransactions handles POST /tenants/:tenant_id/bank-transactions/import
func (h *Handlers) ImportTransactions(c *gin.Context) {
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key == "" {
		badRequest(c, IdempotencyKeyHeader+" header is required")
		return
	}

	var req ImportTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid import body")
		return
	}

	result, err := h.services.Transactions.Import(c.Request.Context(), tenantID(c), req.Transactions, key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// ListTransactions handles GET /tenants/:tenant_id/bank-transactions
func (h *Handlers) ListTransactions(c *gin.Context) {
	limit, offset, err := pageFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	page, err := h.services.Transactions.ListTransactions(c.Request.Context(), tenantID(c), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// Reconcile handles POST /tenants/:tenant_id/reconcile
func (h *Handlers) Reconcile(c *gin.Context) {
	result, err := h.services.Reconciliation.Reconcile(c.Request.Context(), tenantID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListMatches handles GET /tenants/:tenant_id/matches
func (h *Handlers) ListMatches(c *gin.Context) {
	status, err := matchStatusFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	matches, err := h.services.Reconciliation.ListMatches(c.Request.Context(), tenantID(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: matches})
}

// GetMatch handles GET /tenants/:tenant_id/matches/:match_id
func (h *Handlers) GetMatch(c *gin.Context) {
	match, err := h.services.Reconciliation.GetMatch(c.Request.Context(), tenantID(c), c.Param("match_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: match})
}

// ConfirmMatch handles POST /tenants/:tenant_id/matches/:match_id/confirm
func (h *Handlers) ConfirmMatch(c *gin.Context) {
	result, err := h.services.Reconciliation.ConfirmMatch(c.Request.Context(), tenantID(c), c.Param("match_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ExportMatches handles GET /tenants/:tenant_id/matches/export
func (h *Handlers) ExportMatches(c *gin.Context) {
	status, err := matchStatusFromQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	report, err := h.services.Reports.ExportMatches(c.Request.Context(), tenantID(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.Filename))
	c.Data(http.StatusOK, report.ContentType, report.Content)
}

// Explain handles GET /tenants/:tenant_id/reconcile/explain. It accepts either
// match_id or the invoice_id/bank_transaction_id pair.
func (h *Handlers) Explain(c *gin.Context) {
	matchID := c.Query("match_id")
	invoiceID := c.Query("invoice_id")
	transactionID := c.Query("bank_transaction_id")

	ctx := c.Request.Context()
	switch {
	case matchID != "":
		explanation, err := h.services.Explanations.ExplainMatch(ctx, tenantID(c), matchID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: explanation})

	case invoiceID != "" && transactionID != "":
		explanation, err := h.services.Explanations.ExplainPair(ctx, tenantID(c), invoiceID, transactionID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: explanation})

	default:
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   "provide match_id or both invoice_id and bank_transaction_id",
		})
	}
}

// ScorePair handles GET /tenants/:tenant_id/reconcile/score
func (h *Handlers) ScorePair(c *gin.Context) {
	invoiceID := c.Query("invoice_id")
	transactionID := c.Query("bank_transaction_id")
	if invoiceID == "" || transactionID == "" {
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   "invoice_id and bank_transaction_id are required",
		})
		return
	}

	result, err := h.services.Reconciliation.ScorePair(c.Request.Context(), tenantID(c), invoiceID, transactionID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: PairScoreResponse{
		InvoiceID:     result.Invoice.ID,
		TransactionID: result.Transaction.ID,
		Score:         result.Score.Total,
		Confidence:    result.Score.Confidence,
		Reasoning:     result.Score.Reasoning,
	}})
}

func pageFromQuery(c *gin.Context) (int, int, error) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func matchStatusFromQuery(c *gin.Context) (*entity.MatchStatus, error) {
	raw := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	if raw == "" {
		return nil, nil
	}
	status := entity.MatchStatus(raw)
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown match status %q", raw)
	}
	return &status, nil
}

func invoiceFilterFromQuery(c *gin.Context) (entity.InvoiceFilter, error) {
	filter := entity.InvoiceFilter{
		Status:   entity.InvoiceStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		VendorID: c.Query("vendor_id"),
	}

	var err error
	if filter.DateFrom, err = parseOptionalDate(c.Query("start_date")); err != nil {
		return filter, fmt.Errorf("start_date must be YYYY-MM-DD or RFC3339")
	}
	if filter.DateTo, err = parseOptionalDate(c.Query("end_date")); err != nil {
		return filter, fmt.Errorf("end_date must be YYYY-MM-DD or RFC3339")
	}
	if filter.AmountMin, err = parseOptionalDecimal(c.Query("min_amount")); err != nil {
		return filter, fmt.Errorf("min_amount must be a decimal number")
	}
	if filter.AmountMax, err = parseOptionalDecimal(c.Query("max_amount")); err != nil {
		return filter, fmt.Errorf("max_amount must be a decimal number")
	}
	return filter, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptionalDecimal(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
