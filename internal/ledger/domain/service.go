package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryLine is the input shape for one posting line.
type EntryLine struct {
	AccountID snowflake.ID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// EntryInput describes one journal entry to post.
type EntryInput struct {
	SourceType string
	SourceID   snowflake.ID
	SourceSeq  int
	Memo       string
	OccurredAt time.Time
	Lines      []EntryLine
}

type CreateAccountRequest struct {
	Number string
	Name   string
	Type   AccountType
}

// ReconcileDrift reports one account whose denormalized balance disagreed
// with the sum of its journal lines.
type ReconcileDrift struct {
	AccountID  snowflake.ID    `json:"account_id"`
	Number     string          `json:"number"`
	Stored     decimal.Decimal `json:"stored"`
	Recomputed decimal.Decimal `json:"recomputed"`
}

type Service interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)

	// CreateEntry posts a manual journal entry in its own transaction.
	CreateEntry(ctx context.Context, input EntryInput) error

	// PostEntryTx posts inside the caller's transaction. Insertion is
	// idempotent on the entry source key; on replay nothing is written and
	// no balance moves. Account balances are maintained in the same
	// transaction, so the materialized view can never drift from the lines
	// it was posted with.
	PostEntryTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, input EntryInput) error

	// AccountsByNumber loads the given accounts for posting, keyed by number.
	AccountsByNumber(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, numbers []string) (map[string]Account, error)

	// ReconcileBalances recomputes every account balance from journal lines
	// and repairs drift, returning what it found.
	ReconcileBalances(ctx context.Context) ([]ReconcileDrift, error)
}

// ValidateBalanced rejects an entry whose debits and credits do not sum to
// the same total.
func ValidateBalanced(lines []EntryLine) error {
	if len(lines) < 2 {
		return ErrInvalidEntryLines
	}
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range lines {
		if line.AccountID == 0 {
			return ErrInvalidAccount
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return ErrInvalidLineAmount
		}
		debits = debits.Add(line.Debit)
		credits = credits.Add(line.Credit)
	}
	if !debits.Equal(credits) {
		return ErrEntryNotBalanced
	}
	return nil
}

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidSourceType = errors.New("invalid_source_type")
	ErrInvalidSourceID   = errors.New("invalid_source_id")
	ErrInvalidOccurredAt = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines = errors.New("invalid_entry_lines")
	ErrInvalidAccount    = errors.New("invalid_account")
	ErrInvalidLineAmount = errors.New("invalid_line_amount")
	ErrEntryNotBalanced  = errors.New("entry_not_balanced")
	ErrInvalidNumber     = errors.New("invalid_number")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidType       = errors.New("invalid_type")
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrNotFound          = errors.New("not_found")
)
