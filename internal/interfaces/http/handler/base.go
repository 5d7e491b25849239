package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/magesync/backend/internal/domain/integration"
	"github.com/magesync/backend/internal/infrastructure/logger"
	"github.com/magesync/backend/internal/interfaces/http/dto"
	"github.com/magesync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// BindQuery binds and validates the query string, answering 400 on failure
func (h *BaseHandler) BindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// HandleError maps sync errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := errorCode(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
		message = "An unexpected error occurred"
	}
	h.ErrorWithCode(c, code, message)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, integration.ErrJobRunning):
		return dto.ErrCodeJobRunning
	case errors.Is(err, integration.ErrAuthFailed):
		return dto.ErrCodeAuthFailed
	case errors.Is(err, integration.ErrEnumeration):
		return dto.ErrCodeEnumerationFailed
	case errors.Is(err, integration.ErrInvalidTarget):
		return dto.ErrCodeInvalidTarget
	case errors.Is(err, integration.ErrRecordNotFound):
		return dto.ErrCodeNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dto.ErrCodeCanceled
	default:
		return dto.ErrCodeInternal
	}
}
