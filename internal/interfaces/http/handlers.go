package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/application/service"
	"github.com/garyjia/project-billing/internal/domain/entity"
)

// Actor headers set by the upstream identity proxy
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"
)

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

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// CreateRecordRequest is the body of POST /records and of each batch item
type CreateRecordRequest struct {
	RecordType        entity.RecordType `json:"record_type"`
	RecordNumber      string            `json:"record_number"`
	ContractID        string            `json:"contract_id"`
	AcceptanceID      string            `json:"acceptance_id"`
	TaskIDs           []string          `json:"task_ids"`
	LineItems         []entity.LineItem `json:"line_items"`
	TaxRate           *decimal.Decimal  `json:"tax_rate"`
	BillingPercentage decimal.Decimal   `json:"billing_percentage"`
	Owner             *entity.Party     `json:"owner"`
	Contractor        *entity.Party     `json:"contractor"`
	DueDate           *time.Time        `json:"due_date"`
}

func (r CreateRecordRequest) toInput() service.DraftInput {
	input := service.DraftInput{
		RecordType:        r.RecordType,
		RecordNumber:      r.RecordNumber,
		ContractID:        r.ContractID,
		AcceptanceID:      r.AcceptanceID,
		TaskIDs:           r.TaskIDs,
		LineItems:         r.LineItems,
		TaxRate:           r.TaxRate,
		BillingPercentage: r.BillingPercentage,
		Owner:             r.Owner,
		Contractor:        r.Contractor,
	}
	if r.DueDate != nil {
		input.DueDate = *r.DueDate
	}
	return input
}

// BatchPayablesRequest is the body of POST /payables/batch
type BatchPayablesRequest struct {
	Items []CreateRecordRequest `json:"items"`
}

// SubmitRequest is the body of POST .../submit
type SubmitRequest struct {
	Approvers []entity.Approver `json:"approvers"`
	Comments  string            `json:"comments"`
}

// CommentRequest is the body of approve and return
type CommentRequest struct {
	Comments string `json:"comments"`
}

// ReasonRequest is the body of reject and cancel
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// InvoiceRequest is the body of invoice and issue
type InvoiceRequest struct {
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   *time.Time      `json:"invoice_date"`
	TaxID         string          `json:"tax_id"`
	Amount        decimal.Decimal `json:"amount"`
	AttachmentIDs []string        `json:"attachment_ids"`
}

func (r InvoiceRequest) toOptions() service.InvoiceOptions {
	opts := service.InvoiceOptions{
		InvoiceNumber: r.InvoiceNumber,
		TaxID:         r.TaxID,
		Amount:        r.Amount,
		AttachmentIDs: r.AttachmentIDs,
	}
	if r.InvoiceDate != nil {
		opts.InvoiceDate = *r.InvoiceDate
	}
	return opts
}

// PaymentRequest is the body of pay and collect
type PaymentRequest struct {
	Amount        decimal.Decimal       `json:"amount"`
	PaidDate      *time.Time            `json:"paid_date"`
	PaymentMethod string                `json:"payment_method"`
	Detail        *entity.PaymentDetail `json:"detail"`
}

func (r PaymentRequest) toOptions() service.PaymentOptions {
	opts := service.PaymentOptions{
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
		Detail:        r.Detail,
	}
	if r.PaidDate != nil {
		opts.PaidDate = *r.PaidDate
	}
	return opts
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.services.Health != nil {
		healthy, details := h.services.Health()
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp})
			return
		}
	}

	respond(c, http.StatusOK, resp)
}

// CreateRecord handles POST /api/projects/:projectId/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req CreateRecordRequest
	if !bindJSON(c, &req, false) {
		return
	}

	record, err := h.services.Records.CreateDraft(c.Request.Context(), c.Param("projectId"), actor, req.toInput())
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, record)
}

// GeneratePayables handles POST /api/projects/:projectId/payables/batch
func (h *Handlers) GeneratePayables(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req BatchPayablesRequest
	if !bindJSON(c, &req, false) {
		return
	}

	inputs := make([]service.DraftInput, len(req.Items))
	for i, item := range req.Items {
		inputs[i] = item.toInput()
	}

	result, err := h.services.Records.GeneratePayables(c.Request.Context(), c.Param("projectId"), actor, inputs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if len(result.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	respond(c, status, result)
}

// ListRecords handles GET /api/projects/:projectId/records
func (h *Handlers) ListRecords(c *gin.Context) {
	records, err := h.services.Records.List(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []*entity.BillingRecord{}
	}
	respond(c, http.StatusOK, records)
}

// GetRecord handles GET /api/projects/:projectId/records/:recordId
func (h *Handlers) GetRecord(c *gin.Context) {
	record, err := h.services.Records.Get(c.Request.Context(), c.Param("projectId"), c.Param("recordId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, record)
}

// command runs one lifecycle command against the record named in the path
type command func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error)

func (h *Handlers) runCommand(c *gin.Context, run command) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	record, err := run(c, c.Param("projectId"), c.Param("recordId"), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, record)
}

// Submit handles POST .../submit
func (h *Handlers) Submit(c *gin.Context) {
	var req SubmitRequest
	if !bindJSON(c, &req, true) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.Submit(c.Request.Context(), projectID, recordID, actor, service.SubmitOptions{
			Approvers: req.Approvers,
			Comments:  req.Comments,
		})
	})
}

// Approve handles POST .../approve
func (h *Handlers) Approve(c *gin.Context) {
	var req CommentRequest
	if !bindJSON(c, &req, true) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.Approve(c.Request.Context(), projectID, recordID, actor, service.DecisionOptions{Comments: req.Comments})
	})
}

// Reject handles POST .../reject
func (h *Handlers) Reject(c *gin.Context) {
	var req ReasonRequest
	if !bindJSON(c, &req, true) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.Reject(c.Request.Context(), projectID, recordID, actor, req.Reason)
	})
}

// Cancel handles POST .../cancel
func (h *Handlers) Cancel(c *gin.Context) {
	var req ReasonRequest
	if !bindJSON(c, &req, true) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.Cancel(c.Request.Context(), projectID, recordID, actor, req.Reason)
	})
}

// ReturnToDraft handles POST .../return
func (h *Handlers) ReturnToDraft(c *gin.Context) {
	var req CommentRequest
	if !bindJSON(c, &req, true) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.ReturnToDraft(c.Request.Context(), projectID, recordID, actor, req.Comments)
	})
}

// MarkAsInvoiced handles POST .../invoice
func (h *Handlers) MarkAsInvoiced(c *gin.Context) {
	var req InvoiceRequest
	if !bindJSON(c, &req, false) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.MarkAsInvoiced(c.Request.Context(), projectID, recordID, actor, req.toOptions())
	})
}

// MarkAsPaid handles POST .../pay
func (h *Handlers) MarkAsPaid(c *gin.Context) {
	var req PaymentRequest
	if !bindJSON(c, &req, false) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.MarkAsPaid(c.Request.Context(), projectID, recordID, actor, req.toOptions())
	})
}

// IssueInvoice handles POST .../issue
func (h *Handlers) IssueInvoice(c *gin.Context) {
	var req InvoiceRequest
	if !bindJSON(c, &req, false) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.IssueInvoice(c.Request.Context(), projectID, recordID, actor, req.toOptions())
	})
}

// RecordCollection handles POST .../collect
func (h *Handlers) RecordCollection(c *gin.Context) {
	var req PaymentRequest
	if !bindJSON(c, &req, false) {
		return
	}
	h.runCommand(c, func(c *gin.Context, projectID, recordID string, actor entity.Actor) (*entity.BillingRecord, error) {
		return h.services.Lifecycle.RecordCollection(c.Request.Context(), projectID, recordID, actor, req.toOptions())
	})
}

// actorFrom reads the acting user from the identity headers, aborting with 401 when absent
func actorFrom(c *gin.Context) (entity.Actor, bool) {
	actor := entity.Actor{
		UserID:   c.GetHeader(HeaderUserID),
		UserName: c.GetHeader(HeaderUserName),
		Role:     c.GetHeader(HeaderUserRole),
	}
	if actor.UserID == "" {
		respondError(c, http.StatusUnauthorized, CodeUnauthenticated, "missing "+HeaderUserID+" header", nil)
		return actor, false
	}
	return actor, true
}

// bindJSON decodes the body into dst, aborting with 400 on malformed input.
// An empty body is accepted when optional is set.
func bindJSON(c *gin.Context, dst interface{}, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		respondError(c, http.StatusBadRequest, CodeBadRequest, "invalid request body: "+err.Error(), nil)
		return false
	}
	return true
}
