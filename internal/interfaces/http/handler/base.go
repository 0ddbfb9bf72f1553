package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/validation"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/infrastructure/apiclient"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
)

// Request ID lookup: the gin key set by the RequestID middleware, then the header
const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
)

// MsgSessionExpired is shown on the login page after the API rejected the
// stored token
const MsgSessionExpired = "Session expired. Please log in again."

const loginPath = "/login"

// BaseHandler provides common handler utilities. Every response carries the
// notices queued since the previous one.
type BaseHandler struct {
	notices *notice.Center
}

// NewBaseHandler creates a BaseHandler draining notices
func NewBaseHandler(notices *notice.Center) BaseHandler {
	return BaseHandler{notices: notices}
}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	if id := c.GetHeader(RequestIDHeader); id != "" {
		return id
	}
	return ""
}

// pathID parses the :id path parameter
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *BaseHandler) respond(c *gin.Context, status int, resp dto.Response) {
	if h.notices != nil {
		resp = resp.WithNotices(h.notices.Drain())
	}
	c.JSON(status, resp)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, dto.NewSuccessResponse(data))
}

// Navigate tells the view to go to location
func (h *BaseHandler) Navigate(c *gin.Context, location string) {
	h.Success(c, dto.Redirect{Location: location})
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	h.respond(c, statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, fields []shared.FieldError) {
	h.HandleError(c, &shared.ValidationError{Fields: fields})
}

// HandleBindError answers a request whose body could not be bound
func (h *BaseHandler) HandleBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		h.HandleError(c, validation.FromValidator(err))
		return
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		h.BadRequest(c, "Malformed JSON body")
		return
	}
	h.BadRequest(c, err.Error())
}

// HandleError converts application errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	h.ErrorWithData(c, err, nil)
}

// ErrorWithData sends the error response for err carrying data, used when a
// failed operation still has a view to render
// A forced logout is answered with a hard redirect to the login page.
func (h *BaseHandler) ErrorWithData(c *gin.Context, err error, data any) {
	if errors.Is(err, apiclient.ErrSessionExpired) {
		if h.notices != nil {
			h.notices.Error(MsgSessionExpired)
		}
		c.Redirect(http.StatusFound, loginPath)
		return
	}
	status, resp := errorResponse(err, getRequestID(c))
	resp.Data = data
	h.respond(c, status, resp)
}

func errorResponse(err error, requestID string) (int, dto.Response) {
	var validationErr *shared.ValidationError
	if errors.As(err, &validationErr) {
		details := make([]dto.ValidationDetail, len(validationErr.Fields))
		for i, f := range validationErr.Fields {
			details[i] = dto.ValidationDetail{Field: f.Field, Message: f.Message}
		}
		return http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	}

	// Check for domain error using errors.As for wrapped error support
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		return dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID)
	}

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, apiErr.Message, requestID)
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, apiErr.Message, requestID)
		case http.StatusForbidden:
			return http.StatusForbidden, dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, apiErr.Message, requestID)
		}
		return http.StatusBadGateway, dto.NewErrorResponseWithRequestID(dto.ErrCodeRemote, apiErr.Message, requestID)
	}

	return http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(dto.ErrCodeInternal, apiclient.GenericMessage, requestID)
}
