package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"campaign-sheet-service/internal/flow"
	"campaign-sheet-service/internal/lock"
	"campaign-sheet-service/internal/models"
	"campaign-sheet-service/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func errorResponse(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// respondError maps a flow error onto the error envelope
func respondError(c *gin.Context, log *logrus.Entry, err error) {
	var (
		validationErr *flow.ValidationError
		formatErr     *flow.FormatError
		remoteErr     *flow.RemoteError
	)

	switch {
	case errors.As(err, &validationErr):
		errorResponse(c, http.StatusBadRequest, "INVALID_WORKBOOK", validationErr.Message)
	case errors.As(err, &formatErr):
		errorResponse(c, http.StatusBadRequest, "INVALID_FORMAT", formatErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		errorResponse(c, http.StatusGatewayTimeout, "TIMEOUT", "Operation timed out")
	case errors.As(err, &remoteErr):
		log.WithError(err).Warn("Back-office call failed")
		errorResponse(c, http.StatusBadGateway, "REMOTE_ERROR", flow.Message(err))
	case errors.Is(err, lock.ErrBusy):
		errorResponse(c, http.StatusConflict, "SESSION_BUSY", "Another update or publish is running for this session")
	case errors.Is(err, services.ErrUnknownPlatform):
		errorResponse(c, http.StatusNotFound, "UNKNOWN_PLATFORM", "Unknown platform "+c.Param("platform"))
	default:
		log.WithError(err).Error("Operation failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func bindingError(c *gin.Context, err error) {
	errorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}
