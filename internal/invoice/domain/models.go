// Package domain contains persistence models for invoices and their line
// items, plus the lifecycle state machine.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// Invoice is a customer invoice. Subtotal, TaxAmount and Total are derived
// from the line items and recomputed on every edit; PaidAmount is the running
// sum of applied payments.
type Invoice struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID     snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_invoices_company_seq,priority:1" json:"company_id"`
	CustomerID    snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	InvoiceSeq    int64         `gorm:"not null;uniqueIndex:ux_invoices_company_seq,priority:2" json:"invoice_seq"`
	InvoiceNumber string        `gorm:"type:text;not null" json:"invoice_number"`
	Status        InvoiceStatus `gorm:"type:text;not null;default:'DRAFT';index" json:"status"`

	Subtotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"subtotal"`
	TaxAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"tax_amount"`
	Total      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"paid_amount"`

	IssueDate   time.Time  `gorm:"not null" json:"issue_date"`
	DueDate     *time.Time `gorm:"index" json:"due_date,omitempty"`
	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	CancelledAt *time.Time `gorm:"" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []LineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItem is one line on an invoice. Lines are owned by the invoice and
// replaced wholesale on edit; nothing outside the invoice references them.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID    `gorm:"not null;index" json:"company_id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	ItemID      *snowflake.ID   `gorm:"index" json:"item_id,omitempty"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(8,6);not null" json:"tax_rate"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"line_total"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }

// FormatNumber renders a display invoice number from the company prefix and
// the per-company sequence, e.g. INV-000042.
func FormatNumber(prefix string, seq int64) string {
	if prefix == "" {
		prefix = "INV"
	}
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

// Active reports whether the invoice has applied its balance and stock
// effects, i.e. it has left DRAFT and is not cancelled.
func (i Invoice) Active() bool {
	return i.Status != InvoiceStatusDraft && i.Status != InvoiceStatusCancelled
}
