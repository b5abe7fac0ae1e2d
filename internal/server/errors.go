package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	bankdomain "github.com/smallbiznis/ledgerline/internal/bank/domain"
	companydomain "github.com/smallbiznis/ledgerline/internal/company/domain"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/ledgerline/internal/payment/domain"
	reportdomain "github.com/smallbiznis/ledgerline/internal/report/domain"
	pkgdb "github.com/smallbiznis/ledgerline/pkg/db"
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
	Details map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
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

	// Credit limit rejections carry the figures the caller needs to render
	// the override dialog.
	var creditErr *customerdomain.CreditLimitError
	if errors.As(err, &creditErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "credit_limit_exceeded",
			Message: "credit limit exceeded",
			Details: map[string]any{
				"current_balance": creditErr.CurrentBalance.String(),
				"credit_limit":    creditErr.CreditLimit.String(),
				"new_balance":     creditErr.NewBalance.String(),
			},
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

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, companydomain.ErrInvalidName),
		errors.Is(err, companydomain.ErrInvalidID),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, customerdomain.ErrInvalidCreditLimit),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, inventorydomain.ErrInvalidSKU),
		errors.Is(err, inventorydomain.ErrInvalidName),
		errors.Is(err, inventorydomain.ErrInvalidPrice),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, inventorydomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidCustomer),
		errors.Is(err, invoicedomain.ErrInvalidID),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, invoicedomain.ErrInvalidLineItems),
		errors.Is(err, invoicedomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrInvalidUnitPrice),
		errors.Is(err, invoicedomain.ErrInvalidTaxRate),
		errors.Is(err, paymentdomain.ErrInvalidCustomer),
		errors.Is(err, paymentdomain.ErrInvalidInvoice),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidMethod),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, ledgerdomain.ErrInvalidNumber),
		errors.Is(err, ledgerdomain.ErrInvalidName),
		errors.Is(err, ledgerdomain.ErrInvalidType),
		errors.Is(err, ledgerdomain.ErrInvalidAccount),
		errors.Is(err, ledgerdomain.ErrInvalidEntryLines),
		errors.Is(err, ledgerdomain.ErrInvalidLineAmount),
		errors.Is(err, ledgerdomain.ErrInvalidSourceType),
		errors.Is(err, ledgerdomain.ErrInvalidSourceID),
		errors.Is(err, ledgerdomain.ErrInvalidOccurredAt),
		errors.Is(err, ledgerdomain.ErrEntryNotBalanced),
		errors.Is(err, reportdomain.ErrInvalidRange),
		errors.Is(err, bankdomain.ErrInvalidName),
		errors.Is(err, bankdomain.ErrInvalidAccount),
		errors.Is(err, bankdomain.ErrInvalidType),
		errors.Is(err, bankdomain.ErrInvalidAmount),
		errors.Is(err, bankdomain.ErrInvalidID),
		errors.Is(err, bankdomain.ErrInvalidTransaction),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidPageToken):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrNotEditable),
		errors.Is(err, invoicedomain.ErrHasPayments),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		errors.Is(err, invoicedomain.ErrConcurrencyConflict),
		errors.Is(err, paymentdomain.ErrInvoiceNotActive),
		errors.Is(err, paymentdomain.ErrOverpayment),
		errors.Is(err, bankdomain.ErrAlreadyFinished),
		pkgdb.IsDuplicateKeyErr(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrNotFound),
		errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, bankdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
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
