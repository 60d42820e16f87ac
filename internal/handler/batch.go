package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/caseforge/backend/internal/dto"
	"github.com/caseforge/backend/internal/export"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/service"
)

type BatchHandler struct {
	batches *service.BatchService
}

func NewBatchHandler(batches *service.BatchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Start submits a batch; generation continues after this returns.
func (h *BatchHandler) Start(c *gin.Context) {
	var req dto.BatchStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.batches.StartBatch(req)
	if err != nil {
		if errors.Is(err, provider.ErrNoProvider) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *BatchHandler) GetStatus(c *gin.Context) {
	resp, err := h.batches.GetBatchStatus(c.Param("id"))
	if errors.Is(err, service.ErrBatchNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RetryFeature re-runs one failed feature of a batch in place.
func (h *BatchHandler) RetryFeature(c *gin.Context) {
	err := h.batches.RetryFeature(c.Param("id"), c.Param("featureId"))
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
	case errors.Is(err, service.ErrFeatureNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "feature not found"})
	case errors.Is(err, service.ErrFeatureNotRetryable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "feature retry started"})
	}
}

// DeleteCase removes one generated case from a batch's results.
func (h *BatchHandler) DeleteCase(c *gin.Context) {
	err := h.batches.DeleteTestCase(c.Param("id"), c.Param("caseId"))
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
	case errors.Is(err, service.ErrCaseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "test case not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "test case deleted"})
	}
}

// ExportCSV streams the batch's current cases as a CSV download.
func (h *BatchHandler) ExportCSV(c *gin.Context) {
	resp, err := h.batches.GetBatchStatus(c.Param("id"))
	if errors.Is(err, service.ErrBatchNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=testcases-%s.csv", resp.BatchID))
	if err := export.WriteBatchCSV(c.Writer, resp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
