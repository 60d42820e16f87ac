package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/caseforge/backend/internal/dto"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/repository"
	"github.com/caseforge/backend/internal/service"
)

type TestCaseHandler struct {
	batches *service.BatchService
	repo    repository.TestCaseRepository
}

func NewTestCaseHandler(batches *service.BatchService, repo repository.TestCaseRepository) *TestCaseHandler {
	return &TestCaseHandler{batches: batches, repo: repo}
}

// Generate runs a single feature synchronously and returns its cases.
func (h *TestCaseHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.batches.GenerateFeature(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, provider.ErrNoProvider) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"test_cases": items})
}

func (h *TestCaseHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	cases, err := h.repo.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (h *TestCaseHandler) Get(c *gin.Context) {
	tc, err := h.repo.Get(c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "test case not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tc)
}

func (h *TestCaseHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	// A case owned by a live batch is removed there; the deletion event
	// takes care of the store. Otherwise fall back to the store directly.
	err := h.batches.DeleteTestCaseByID(id)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"message": "test case deleted"})
		return
	}
	if !errors.Is(err, service.ErrCaseNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	err = h.repo.Delete(id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "test case not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test case deleted"})
}
