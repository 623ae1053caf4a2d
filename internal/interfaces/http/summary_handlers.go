package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/project-billing/internal/domain/entity"
	"github.com/garyjia/project-billing/internal/infrastructure/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CacheStatus is returned by DELETE /api/cache
type CacheStatus struct {
	Cleared     bool        `json:"cleared"`
	LastUpdated interface{} `json:"last_updated"`
}

// FinancialSummary handles GET /api/projects/:projectId/summary
func (h *Handlers) FinancialSummary(c *gin.Context) {
	projectID := c.Param("projectId")
	records, ok := h.projectRecords(c, projectID)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.services.Aggregation.FinancialSummary(records, projectID))
}

// CachedSummary handles GET /api/projects/:projectId/summary/cached
func (h *Handlers) CachedSummary(c *gin.Context) {
	projectID := c.Param("projectId")
	summary, ok := h.services.Aggregation.GetCachedSummary(projectID)
	if !ok {
		respondError(c, http.StatusNotFound, CodeNotFound, "no cached summary for project "+projectID, nil)
		return
	}
	respond(c, http.StatusOK, summary)
}

// ExportSummary handles GET /api/projects/:projectId/summary/export
func (h *Handlers) ExportSummary(c *gin.Context) {
	projectID := c.Param("projectId")
	records, ok := h.projectRecords(c, projectID)
	if !ok {
		return
	}

	summary := h.services.Aggregation.FinancialSummary(records, projectID)
	data, err := export.Workbook(summary, records)
	if err != nil {
		h.writeError(c, fmt.Errorf("export workbook: %w", err))
		return
	}

	filename := fmt.Sprintf("billing-%s-%s.xlsx", projectID, summary.GeneratedAt.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// OverdueSummary handles GET /api/projects/:projectId/overdue
func (h *Handlers) OverdueSummary(c *gin.Context) {
	projectID := c.Param("projectId")
	records, ok := h.projectRecords(c, projectID)
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.services.Aggregation.OverdueSummary(records, projectID))
}

// BillingProgress handles GET .../tasks/:taskId/billing-progress?totalBillable=
func (h *Handlers) BillingProgress(c *gin.Context) {
	total, ok := decimalQuery(c, "totalBillable")
	if !ok {
		return
	}
	records, ok := h.projectRecords(c, c.Param("projectId"))
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.services.Aggregation.BillingProgress(records, c.Param("taskId"), total))
}

// PaymentProgress handles GET .../tasks/:taskId/payment-progress?totalPayable=
func (h *Handlers) PaymentProgress(c *gin.Context) {
	total, ok := decimalQuery(c, "totalPayable")
	if !ok {
		return
	}
	records, ok := h.projectRecords(c, c.Param("projectId"))
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.services.Aggregation.PaymentProgress(records, c.Param("taskId"), total))
}

// ContractorSummary handles GET .../contractors/:contractorId/summary
func (h *Handlers) ContractorSummary(c *gin.Context) {
	records, ok := h.projectRecords(c, c.Param("projectId"))
	if !ok {
		return
	}
	respond(c, http.StatusOK, h.services.Aggregation.ContractorSummary(records, c.Param("contractorId")))
}

// ClearCache handles DELETE /api/cache
func (h *Handlers) ClearCache(c *gin.Context) {
	h.services.Aggregation.ClearCache()

	status := CacheStatus{Cleared: true}
	if last := h.services.Aggregation.GetLastUpdated(); last != nil {
		status.LastUpdated = *last
	}
	respond(c, http.StatusOK, status)
}

func (h *Handlers) projectRecords(c *gin.Context, projectID string) ([]*entity.BillingRecord, bool) {
	records, err := h.services.Records.List(c.Request.Context(), projectID)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return records, true
}

// decimalQuery parses an optional decimal query parameter; a missing value is zero
func decimalQuery(c *gin.Context, name string) (decimal.Decimal, bool) {
	raw := c.Query(name)
	if raw == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeBadRequest, "invalid "+name+": "+raw, nil)
		return decimal.Zero, false
	}
	return d, true
}
