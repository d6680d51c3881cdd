package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/vatdesk/internal/audit/domain"
	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/export"
	txdomain "github.com/smallbiznis/vatdesk/internal/transaction/domain"
	vatdomain "github.com/smallbiznis/vatdesk/internal/vatreturn/domain"
	vendordomain "github.com/smallbiznis/vatdesk/internal/vendordir/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrTooManyRequests    = errors.New("too_many_requests")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationSentinels are matched in order; the first hit names the error code.
var validationSentinels = []error{
	ErrInvalidRequest,
	vatdomain.ErrInvalidID,
	vatdomain.ErrInvalidDate,
	vatdomain.ErrInvalidPeriod,
	vatdomain.ErrInvalidAmount,
	vatdomain.ErrInvalidFilingReference,
	vatdomain.ErrInvalidStatus,
	vatdomain.ErrOutsidePeriod,
	txdomain.ErrInvalidID,
	txdomain.ErrInvalidFilter,
	vendordomain.ErrInvalidID,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	config.ErrInvalidVatRate,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var overlapErr *vatdomain.OverlapError
	var transitionErr *vatdomain.TransitionError
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, errorPayload{
			Type:    "unsupported_format",
			Message: "export format must be csv or pdf",
		}
	case errors.As(err, &overlapErr):
		return http.StatusConflict, errorPayload{
			Type:    "period_overlap",
			Message: overlapErr.Error(),
		}
	case errors.Is(err, vatdomain.ErrPeriodOverlap):
		return http.StatusConflict, errorPayload{
			Type:    "period_overlap",
			Message: "period overlaps a filed return",
		}
	case errors.As(err, &transitionErr):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: transitionErr.Error(),
		}
	case errors.Is(err, vatdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: "invalid transition",
		}
	case errors.Is(err, vatdomain.ErrConcurrentModification):
		return http.StatusConflict, errorPayload{
			Type:    "concurrent_modification",
			Message: "the return was modified concurrently, retry",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code logged with each failed request.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	switch {
	case status >= http.StatusInternalServerError:
		return "server", code
	default:
		return "client", code
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorCode(err error) (string, bool) {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error(), true
		}
	}
	return "", false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, vatdomain.ErrNotFound),
		errors.Is(err, txdomain.ErrNotFound),
		errors.Is(err, vendordomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "transaction_outside_period":
		return "return_id"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_period":
		return "period_start must not be after period_end"
	case "invalid_amount":
		return "amounts must be non-negative, except adjustments"
	case "invalid_filing_reference":
		return "a filing reference is required"
	case "invalid_vat_rate":
		return "vat rate must be a fraction between 0 and 1"
	case "transaction_outside_period":
		return "the transaction date is outside the return's period"
	default:
		return "invalid value"
	}
}
