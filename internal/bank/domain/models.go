// Package domain contains bank accounts, their transaction log and statement
// reconciliation. The flow follows the same shape as the rest of the engine:
// the denormalized balance is updated atomically with each transaction insert
// and every money effect lands in the journal.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a bank transaction.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// ReconciliationStatus is the lifecycle of one statement reconciliation.
type ReconciliationStatus string

const (
	ReconciliationStatusOpen     ReconciliationStatus = "OPEN"
	ReconciliationStatusFinished ReconciliationStatus = "FINISHED"
)

// BankAccount holds a denormalized running balance over its transaction log.
type BankAccount struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID      snowflake.ID    `gorm:"not null;index" json:"company_id"`
	Name           string          `gorm:"not null" json:"name"`
	AccountNumber  string          `gorm:"type:text" json:"account_number,omitempty"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"current_balance"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BankAccount) TableName() string { return "bank_accounts" }

// BankTransaction is one deposit or withdrawal. IsReconciled flips to true
// when a finished reconciliation cleared it.
type BankTransaction struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID     snowflake.ID    `gorm:"not null;index" json:"company_id"`
	BankAccountID snowflake.ID    `gorm:"not null;index" json:"bank_account_id"`
	Type          TransactionType `gorm:"type:text;not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	OccurredAt    time.Time       `gorm:"not null;index" json:"occurred_at"`
	IsReconciled  bool            `gorm:"not null;default:false" json:"is_reconciled"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BankTransaction) TableName() string { return "bank_transactions" }

// SignedAmount returns the delta this transaction applies to the account
// balance.
func (t BankTransaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionTypeWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Reconciliation matches one bank statement against recorded transactions.
type Reconciliation struct {
	ID               snowflake.ID         `gorm:"primaryKey" json:"id"`
	CompanyID        snowflake.ID         `gorm:"not null;index" json:"company_id"`
	BankAccountID    snowflake.ID         `gorm:"not null;index" json:"bank_account_id"`
	StatementDate    time.Time            `gorm:"not null" json:"statement_date"`
	StatementBalance decimal.Decimal      `gorm:"type:decimal(18,4);not null" json:"statement_balance"`
	Status           ReconciliationStatus `gorm:"type:text;not null;default:'OPEN'" json:"status"`
	CreatedAt        time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Items []ReconciliationItem `gorm:"foreignKey:ReconciliationID" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Reconciliation) TableName() string { return "reconciliations" }

// ReconciliationItem is one transaction's cleared flag within a
// reconciliation.
type ReconciliationItem struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	ReconciliationID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_reconciliation_items_txn,priority:1" json:"reconciliation_id"`
	TransactionID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_reconciliation_items_txn,priority:2" json:"transaction_id"`
	Cleared          bool         `gorm:"not null;default:false" json:"cleared"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (ReconciliationItem) TableName() string { return "reconciliation_items" }
