// Package domain contains persistence models for customers and the credit
// limit check applied before any operation that grows a receivable balance.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Customer carries the denormalized accounts-receivable balance. Balance is
// mutated only by the invoice and payment services, always as a relative
// delta inside their transactions.
type Customer struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID    `gorm:"not null;index" json:"company_id"`
	Name        string          `gorm:"not null" json:"name"`
	Email       string          `gorm:"type:text" json:"email,omitempty"`
	Phone       string          `gorm:"type:text" json:"phone,omitempty"`
	Balance     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"`
	CreditLimit decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"credit_limit"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
