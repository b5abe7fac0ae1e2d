// Package domain contains the payment model and service contract. A payment
// always belongs to a customer and optionally applies to one invoice.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment is money received from a customer. Revision counts posting-relevant
// mutations; every journal entry written for this payment carries the
// revision it was posted under, so replays deduplicate per mutation.
type Payment struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID    `gorm:"not null;index" json:"company_id"`
	CustomerID snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	InvoiceID  *snowflake.ID   `gorm:"index" json:"invoice_id,omitempty"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Method     string          `gorm:"type:text;not null" json:"method"`
	PaidAt     time.Time       `gorm:"not null" json:"paid_at"`
	Revision   int             `gorm:"not null;default:0" json:"revision"`
	Notes      string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
