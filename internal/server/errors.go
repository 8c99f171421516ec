package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authdomain "github.com/batipilot/batipilot/internal/auth/domain"
	"github.com/batipilot/batipilot/internal/auth/token"
	catalogdomain "github.com/batipilot/batipilot/internal/catalog/domain"
	equipmentdomain "github.com/batipilot/batipilot/internal/equipment/domain"
	invoicedomain "github.com/batipilot/batipilot/internal/invoice/domain"
	opportunitydomain "github.com/batipilot/batipilot/internal/opportunity/domain"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	"github.com/batipilot/batipilot/internal/render"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	worklibdomain "github.com/batipilot/batipilot/internal/worklib/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

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

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	render.ErrUnsupportedFormat,
	authdomain.ErrInvalidEmail,
	authdomain.ErrWeakPassword,
	authdomain.ErrInvalidRole,
	tiersdomain.ErrInvalidID,
	tiersdomain.ErrInvalidKind,
	tiersdomain.ErrInvalidName,
	tiersdomain.ErrInvalidFlag,
	tiersdomain.ErrInvalidActivity,
	catalogdomain.ErrInvalidID,
	catalogdomain.ErrInvalidName,
	catalogdomain.ErrInvalidUnit,
	catalogdomain.ErrInvalidPrice,
	catalogdomain.ErrInvalidParent,
	catalogdomain.ErrInvalidCategory,
	worklibdomain.ErrInvalidID,
	worklibdomain.ErrInvalidName,
	worklibdomain.ErrInvalidUnit,
	worklibdomain.ErrInvalidKind,
	worklibdomain.ErrInvalidQuantity,
	worklibdomain.ErrInvalidMargin,
	opportunitydomain.ErrInvalidID,
	opportunitydomain.ErrInvalidName,
	opportunitydomain.ErrInvalidAmount,
	opportunitydomain.ErrInvalidStage,
	opportunitydomain.ErrInvalidSource,
	opportunitydomain.ErrInvalidLossReason,
	opportunitydomain.ErrInvalidCloseDate,
	opportunitydomain.ErrInvalidTiers,
	quotedomain.ErrInvalidID,
	quotedomain.ErrInvalidSubject,
	quotedomain.ErrInvalidItem,
	quotedomain.ErrInvalidTiers,
	quotedomain.ErrInvalidKind,
	quotedomain.ErrInvalidQuantity,
	quotedomain.ErrInvalidUnitPrice,
	quotedomain.ErrInvalidDiscount,
	quotedomain.ErrInvalidVATRate,
	quotedomain.ErrInvalidParentItem,
	quotedomain.ErrInvalidStatus,
	quotedomain.ErrInvalidWork,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidSubject,
	invoicedomain.ErrInvalidLine,
	invoicedomain.ErrInvalidKind,
	invoicedomain.ErrInvalidQuantity,
	invoicedomain.ErrInvalidUnitPrice,
	invoicedomain.ErrInvalidDiscount,
	invoicedomain.ErrInvalidVATRate,
	invoicedomain.ErrInvalidStatus,
	invoicedomain.ErrInvalidAmount,
	invoicedomain.ErrInvalidMethod,
	equipmentdomain.ErrInvalidID,
	equipmentdomain.ErrInvalidName,
	equipmentdomain.ErrInvalidSerial,
	equipmentdomain.ErrInvalidCategory,
	equipmentdomain.ErrInvalidLocation,
	equipmentdomain.ErrInvalidWindow,
	equipmentdomain.ErrInvalidStatus,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

var unauthorizedErrors = []error{
	ErrUnauthorized,
	token.ErrInvalidToken,
	authdomain.ErrInvalidCredentials,
	authdomain.ErrUserDisabled,
	authdomain.ErrUnauthenticated,
}

func isUnauthorizedError(err error) bool {
	for _, sentinel := range unauthorizedErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// Conflicts are requests that contradict current state: bad lifecycle
// transitions, frozen documents, overlapping windows, in-use references.
var conflictErrors = []error{
	authdomain.ErrEmailTaken,
	tiersdomain.ErrArchived,
	tiersdomain.ErrNotArchived,
	catalogdomain.ErrCategoryCycle,
	catalogdomain.ErrCategoryInUse,
	worklibdomain.ErrDuplicateIngredient,
	worklibdomain.ErrDanglingReference,
	opportunitydomain.ErrAlreadyClosed,
	quotedomain.ErrNotEditable,
	quotedomain.ErrInvalidTransition,
	quotedomain.ErrOpportunityClosed,
	invoicedomain.ErrQuoteNotAccepted,
	invoicedomain.ErrNotEditable,
	invoicedomain.ErrNotPayable,
	invoicedomain.ErrEmptyInvoice,
	invoicedomain.ErrPaymentExceedsDue,
	invoicedomain.ErrNotCreditable,
	invoicedomain.ErrAlreadyIssued,
	equipmentdomain.ErrSerialTaken,
	equipmentdomain.ErrNameTaken,
	equipmentdomain.ErrCategoryInUse,
	equipmentdomain.ErrOverlapping,
	equipmentdomain.ErrNotReserved,
}

func isConflictError(err error) bool {
	for _, sentinel := range conflictErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

var notFoundErrors = []error{
	ErrNotFound,
	authdomain.ErrNotFound,
	tiersdomain.ErrNotFound,
	catalogdomain.ErrNotFound,
	worklibdomain.ErrNotFound,
	worklibdomain.ErrItemNotFound,
	opportunitydomain.ErrNotFound,
	quotedomain.ErrNotFound,
	quotedomain.ErrItemNotFound,
	invoicedomain.ErrNotFound,
	invoicedomain.ErrLineNotFound,
	invoicedomain.ErrPaymentNotFound,
	equipmentdomain.ErrNotFound,
	equipmentdomain.ErrReservationNotFound,
	gorm.ErrRecordNotFound,
}

func isNotFoundError(err error) bool {
	for _, sentinel := range notFoundErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
