// Package domain contains the chart of accounts and the double-entry journal.
// Journal lines are the canonical record; the denormalized account balance is
// a materialized view maintained in the same transaction as every posting.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AccountType classifies an account for reporting sign conventions.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Well-known account numbers seeded for every company.
const (
	AccountNumberCash               = "1100"
	AccountNumberAccountsReceivable = "1200"
	AccountNumberInventory          = "1400"
	AccountNumberTaxPayable         = "2100"
	AccountNumberOwnersEquity       = "3100"
	AccountNumberSalesRevenue       = "4100"
	AccountNumberCOGS               = "5100"
	AccountNumberGeneralExpense     = "6100"
)

// Account is a chart-of-accounts entry. Balance is kept in the account's
// normal-balance sign: debit-positive for assets and expenses,
// credit-positive for liabilities, equity and revenue.
type Account struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_accounts_company_number,priority:1" json:"company_id"`
	Number    string          `gorm:"type:text;not null;uniqueIndex:ux_accounts_company_number,priority:2" json:"number"`
	Name      string          `gorm:"not null" json:"name"`
	Type      AccountType     `gorm:"type:text;not null;index" json:"type"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// JournalEntry is the immutable header for one financial event. The
// (company, source_type, source_id, source_seq) key makes posting idempotent;
// mutations of the same source (payment edits) bump source_seq.
type JournalEntry struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_journal_entries_source,priority:1" json:"company_id"`
	SourceType string       `gorm:"type:text;not null;uniqueIndex:ux_journal_entries_source,priority:2" json:"source_type"`
	SourceID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_journal_entries_source,priority:3" json:"source_id"`
	SourceSeq  int          `gorm:"not null;default:0;uniqueIndex:ux_journal_entries_source,priority:4" json:"source_seq"`
	Memo       string       `gorm:"type:text" json:"memo,omitempty"`
	OccurredAt time.Time    `gorm:"not null;index" json:"occurred_at"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (JournalEntry) TableName() string { return "journal_entries" }

// JournalLine is one side of a posting. Exactly one of Debit and Credit is
// normally non-zero.
type JournalLine struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntryID   snowflake.ID    `gorm:"not null;index" json:"entry_id"`
	AccountID snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Debit     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"debit"`
	Credit    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"credit"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (JournalLine) TableName() string { return "journal_lines" }

// NormalDelta converts a line's debit/credit pair into the signed delta to
// apply to an account of the given type.
func NormalDelta(accountType AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	switch accountType {
	case AccountTypeAsset, AccountTypeExpense:
		return debit.Sub(credit)
	default:
		return credit.Sub(debit)
	}
}
