package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/lifecycle"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/application/port"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/entity"
	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine *lifecycle.Engine
	linker *lifecycle.Linker
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine *lifecycle.Engine, linker *lifecycle.Linker, logger Logger) *Handlers {
	return &Handlers{
		engine: engine,
		linker: linker,
		logger: logger,
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

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                string  `json:"id"`
	InvoiceNumber     int64   `json:"invoice_number,omitempty"`
	TemplateSerial    string  `json:"template_serial"`
	CustomerID        string  `json:"customer_id,omitempty"`
	IssueDate         *string `json:"issue_date,omitempty"`
	TotalAmount       float64 `json:"total_amount"`
	InternalStatus    int     `json:"internal_status"`
	StatusLabel       string  `json:"status_label"`
	TaxStatus         string  `json:"tax_status"`
	TaxStatusLabel    string  `json:"tax_status_label"`
	InvoiceType       string  `json:"invoice_type"`
	OriginalInvoiceID string  `json:"original_invoice_id,omitempty"`
	Reason            string  `json:"reason,omitempty"`
	Version           int64   `json:"version"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// TransitionRecordResponse represents one audit trail entry
type TransitionRecordResponse struct {
	ID             int64  `json:"id"`
	Action         string `json:"action"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	Reason         string `json:"reason,omitempty"`
	Actor          string `json:"actor"`
	CreatedAt      string `json:"created_at"`
}

// CreateInvoiceRequest represents the draft authoring payload
type CreateInvoiceRequest struct {
	TemplateSerial string  `json:"template_serial"`
	CustomerID     string  `json:"customer_id"`
	IssueDate      *string `json:"issue_date"`
	TotalAmount    float64 `json:"total_amount"`
	Actor          string  `json:"actor"`
}

// TransitionRequest represents a transition request payload
type TransitionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// CreateDerivativeRequest represents a derivative creation payload
type CreateDerivativeRequest struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// ListInvoicesRequest represents query parameters for listing invoices
type ListInvoicesRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid create invoice payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request payload",
		})
		return
	}

	input := lifecycle.DraftInput{
		TemplateSerial: req.TemplateSerial,
		CustomerID:     req.CustomerID,
		TotalAmount:    req.TotalAmount,
		Actor:          req.Actor,
	}
	if req.IssueDate != nil {
		parsed, err := time.Parse(time.RFC3339, *req.IssueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid issue_date, expected RFC 3339",
			})
			return
		}
		input.IssueDate = &parsed
	}

	inv, err := h.engine.CreateDraft(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toInvoiceResponse(inv),
	})
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	var req ListInvoicesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	invoices, err := h.engine.ListInvoices(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		responses = append(responses, toInvoiceResponse(inv))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	inv, err := h.engine.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(inv),
	})
}

// GetActions handles GET /api/invoices/:id/actions
func (h *Handlers) GetActions(c *gin.Context) {
	actions, err := h.engine.EligibleActions(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.String())
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    names,
	})
}

// GetHistory handles GET /api/invoices/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	records, err := h.engine.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]TransitionRecordResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, TransitionRecordResponse{
			ID:             rec.ID,
			Action:         rec.Action,
			PreviousStatus: rec.PreviousStatus.Label(),
			NewStatus:      rec.NewStatus.Label(),
			Reason:         rec.Reason,
			Actor:          rec.Actor,
			CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// RequestTransition handles POST /api/invoices/:id/transitions
func (h *Handlers) RequestTransition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid transition payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request payload",
		})
		return
	}

	inv, err := h.engine.RequestTransition(c.Request.Context(), c.Param("id"), lifecycle.TransitionRequest{
		Action: workflow.Action(req.Action),
		Reason: req.Reason,
		Actor:  req.Actor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(inv),
	})
}

// CreateDerivative handles POST /api/invoices/:id/derivatives
func (h *Handlers) CreateDerivative(c *gin.Context) {
	var req CreateDerivativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid derivative payload", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request payload",
		})
		return
	}

	invoiceType, err := entity.ParseInvoiceType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	derivative, err := h.linker.CreateDerivative(c.Request.Context(), lifecycle.DerivativeInput{
		OriginalInvoiceID: c.Param("id"),
		Type:              invoiceType,
		Reason:            req.Reason,
		Actor:             req.Actor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toInvoiceResponse(derivative),
	})
}

// ListDerivatives handles GET /api/invoices/:id/derivatives
func (h *Handlers) ListDerivatives(c *gin.Context) {
	derivatives, err := h.linker.Derivatives(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	responses := make([]InvoiceResponse, 0, len(derivatives))
	for _, d := range derivatives {
		responses = append(responses, toInvoiceResponse(d))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// respondError maps application errors to HTTP status codes:
// validation 400, not found 404, transition/state conflicts 409,
// linkage 422, tax authority failures 502.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var (
		validationErr *lifecycle.ValidationError
		transitionErr *lifecycle.TransitionNotAllowedError
		staleErr      *lifecycle.StaleStateError
		linkageErr    *lifecycle.LinkageError
		submitErr     *lifecycle.ExternalSubmissionError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: validationErr.Error()})

	case errors.Is(err, port.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})

	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, Response{Success: false, Error: transitionErr.Error()})

	case errors.As(err, &staleErr):
		c.JSON(http.StatusConflict, Response{Success: false, Error: staleErr.Error()})

	case errors.As(err, &linkageErr):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: linkageErr.Error()})

	case errors.As(err, &submitErr):
		c.JSON(http.StatusBadGateway, Response{Success: false, Error: submitErr.Error()})

	default:
		h.logger.Error("Unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

// toInvoiceResponse converts the domain entity to the API response shape
func toInvoiceResponse(inv *entity.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                inv.ID,
		InvoiceNumber:     int64(inv.InvoiceNumber),
		TemplateSerial:    inv.TemplateSerial,
		CustomerID:        inv.CustomerID,
		TotalAmount:       inv.TotalAmount,
		InternalStatus:    int(inv.InternalStatus),
		StatusLabel:       inv.InternalStatus.Label(),
		TaxStatus:         inv.TaxStatus.Code(),
		TaxStatusLabel:    inv.TaxStatus.Label(),
		InvoiceType:       inv.InvoiceType.String(),
		OriginalInvoiceID: inv.OriginalInvoiceID,
		Reason:            inv.Reason,
		Version:           inv.Version,
		CreatedAt:         inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         inv.UpdatedAt.Format(time.RFC3339),
	}

	if inv.IssueDate != nil {
		issueDate := inv.IssueDate.Format(time.RFC3339)
		resp.IssueDate = &issueDate
	}

	return resp
}
