package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
)

// LineItemInput is one requested invoice line. TaxRate nil means the company
// default rate applies.
type LineItemInput struct {
	ItemID      string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     *decimal.Decimal
}

type CreateInvoiceRequest struct {
	CustomerID      string
	LineItems       []LineItemInput
	Status          InvoiceStatus
	IssueDate       time.Time
	DueDate         *time.Time
	Notes           string
	SkipCreditCheck bool
}

type UpdateInvoiceRequest struct {
	ID        string
	LineItems []LineItemInput
	IssueDate *time.Time
	DueDate   *time.Time
	Notes     *string
}

type ChangeStatusRequest struct {
	ID              string
	Status          InvoiceStatus
	SkipCreditCheck bool
}

type ListInvoiceRequest struct {
	PageToken  string
	PageSize   int
	CustomerID string
	Status     *InvoiceStatus
	IssuedFrom *time.Time
	IssuedTo   *time.Time
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	Update(ctx context.Context, req UpdateInvoiceRequest) (Invoice, error)
	ChangeStatus(ctx context.Context, req ChangeStatusRequest) (Invoice, error)
	Cancel(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)

	// MarkOverdue flips active unpaid invoices whose due date is before asOf
	// to OVERDUE. No balance or stock effect.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

var (
	ErrInvalidCompany      = errors.New("invalid_company")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidLineItems    = errors.New("invalid_line_items")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidTaxRate      = errors.New("invalid_tax_rate")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrNotEditable         = errors.New("not_editable")
	ErrHasPayments         = errors.New("has_payments")
	ErrNotFound            = errors.New("not_found")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
)
