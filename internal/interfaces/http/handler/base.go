// Package handler implements the admin sync API and the entity save endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/integration"
	"github.com/overviewcreative/happyplacev2-sub013/internal/domain/shared"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/logger"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/scheduler"
	"github.com/overviewcreative/happyplacev2-sub013/internal/infrastructure/telemetry"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/dto"
	"github.com/overviewcreative/happyplacev2-sub013/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	resp.Error.TraceID = telemetry.GetTraceID(c.Request.Context())
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeInternal, message)
}

// BindJSON binds the request body, writing a validation response on failure
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters, writing a validation response on failure
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ParseUUIDParam parses a path parameter as a UUID, writing a 400 on failure
func (h *BaseHandler) ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// HandleError maps service errors to HTTP responses. Unknown errors become a
// 500 with a generic message and are logged with the request context.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	var transportErr *integration.TransportError
	switch {
	case errors.Is(err, integration.ErrUnknownEntityType),
		errors.Is(err, integration.ErrTableNotConfigured),
		errors.Is(err, integration.ErrInvalidEntityType):
		h.ErrorWithCode(c, dto.ErrCodeUnknownEntityType, err.Error())
	case errors.Is(err, scheduler.ErrInvalidJobKind):
		h.ErrorWithCode(c, dto.ErrCodeBadRequest, err.Error())
	case errors.Is(err, integration.ErrEntityNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "Entity not found")
	case errors.Is(err, integration.ErrRetryItemNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "Retry item not found")
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.ErrorWithCode(c, dto.ErrCodeNotFound, "Job not found")
	case errors.Is(err, integration.ErrSyncAlreadyInProgress):
		h.ErrorWithCode(c, dto.ErrCodeSyncInProgress, "A sync pass for this target is already running")
	case errors.Is(err, integration.ErrCorrelationConflict),
		errors.Is(err, integration.ErrCorrelationAmbiguous):
		h.ErrorWithCode(c, dto.ErrCodeConflict, err.Error())
	case errors.Is(err, integration.ErrRemoteNotConfigured):
		h.ErrorWithCode(c, dto.ErrCodeRemoteNotConfigured, "Remote record store is not configured")
	case errors.Is(err, scheduler.ErrJobQueueFull):
		h.ErrorWithCode(c, dto.ErrCodeQueueFull, "Job queue is full, try again later")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		h.ErrorWithCode(c, dto.ErrCodeQueueFull, "Job scheduler is not running")
	case errors.As(err, &transportErr):
		h.ErrorWithCode(c, dto.ErrCodeRemoteUnavailable, remoteMessage(transportErr))
	case errors.Is(err, integration.ErrRemoteUnavailable),
		errors.Is(err, integration.ErrRemoteRequestFailed),
		errors.Is(err, integration.ErrRemoteInvalidResponse),
		errors.Is(err, integration.ErrRemoteAuthFailed),
		errors.Is(err, integration.ErrRemoteRateLimited):
		h.ErrorWithCode(c, dto.ErrCodeRemoteUnavailable, err.Error())
	default:
		logger.L(c.Request.Context()).Error("Unhandled request error", zap.Error(err))
		h.InternalError(c, "An unexpected error occurred")
	}
}

func remoteMessage(err *integration.TransportError) string {
	if err.StatusCode > 0 {
		return "Remote record store returned HTTP " + strconv.Itoa(err.StatusCode)
	}
	return "Remote record store is unreachable"
}
