package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"campaign-sheet-service/internal/models"
	"campaign-sheet-service/internal/repository"
)

const (
	defaultOperationLimit = 20
	maxOperationLimit     = 100
)

// OperationReader reads the operation history
type OperationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.SheetOperation, error)
	List(ctx context.Context, opts repository.OperationListOptions) ([]models.SheetOperation, int64, error)
}

type OperationsHandler struct {
	repo   OperationReader
	logger *logrus.Entry
}

// NewOperationsHandler creates the history handler. repo is nil when the
// operation log is disabled.
func NewOperationsHandler(repo OperationReader, logger *logrus.Logger) *OperationsHandler {
	return &OperationsHandler{
		repo:   repo,
		logger: logger.WithField("component", "operations-handler"),
	}
}

// ListOperations returns recent operations, newest first
// @Summary List operations
// @Tags operations
// @Produce json
// @Param platform query string false "ju, tqg or tqc"
// @Param kind query string false "EXPORT, UPDATE, PUBLISH or ARTICLE_IMAGES"
// @Param status query string false "RUNNING, COMPLETED, PARTIAL or FAILED"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.ListResponse
// @Router /operations [get]
func (h *OperationsHandler) ListOperations(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var params models.OperationListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindingError(c, err)
		return
	}

	opts := repository.OperationListOptions{
		Kind:   models.OperationKind(strings.ToUpper(params.Kind)),
		Status: models.OperationStatus(strings.ToUpper(params.Status)),
	}
	if params.Platform != "" {
		p, err := models.ParsePlatform(params.Platform)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		opts.Platform = p
	}

	page := max(params.Page, 1)
	limit := params.Limit
	if limit <= 0 {
		limit = defaultOperationLimit
	}
	limit = min(limit, maxOperationLimit)
	opts.Limit = limit
	opts.Offset = (page - 1) * limit

	ops, total, err := h.repo.List(c.Request.Context(), opts)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list operations")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list operations")
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, models.ListResponse{
		Success: true,
		Data:    ops,
		Pagination: &models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	})
}

// GetOperation returns one operation with its failed rows
// @Summary Get an operation
// @Tags operations
// @Produce json
// @Param id path string true "Operation ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /operations/{id} [get]
func (h *OperationsHandler) GetOperation(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_ID", "Invalid operation ID format")
		return
	}

	op, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errorResponse(c, http.StatusNotFound, "NOT_FOUND", "Operation not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get operation")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get operation")
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: op})
}

func (h *OperationsHandler) enabled(c *gin.Context) bool {
	if h.repo == nil {
		errorResponse(c, http.StatusServiceUnavailable, "OPERATION_LOG_DISABLED", "Operation log is not enabled")
		return false
	}
	return true
}
