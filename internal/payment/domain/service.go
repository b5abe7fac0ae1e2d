package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
)

type CreatePaymentRequest struct {
	CustomerID string
	InvoiceID  string
	Amount     decimal.Decimal
	Method     string
	PaidAt     time.Time
	Notes      string
}

// UpdatePaymentRequest carries partial updates. A non-nil empty InvoiceID
// detaches the payment from its invoice.
type UpdatePaymentRequest struct {
	ID        string
	Amount    *decimal.Decimal
	Method    *string
	PaidAt    *time.Time
	InvoiceID *string
	Notes     *string
}

type ListPaymentRequest struct {
	PageToken  string
	PageSize   int
	CustomerID string
	InvoiceID  string
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (Payment, error)
	Update(ctx context.Context, req UpdatePaymentRequest) (Payment, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Payment, error)
	List(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
}

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidInvoice   = errors.New("invalid_invoice")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvoiceNotActive = errors.New("invoice_not_active")
	ErrOverpayment      = errors.New("payment_exceeds_invoice_total")
	ErrNotFound         = errors.New("not_found")
)
