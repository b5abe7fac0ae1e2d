// Package domain defines the read-only reporting contract over the journal.
// Reports aggregate journal lines; they never consult the denormalized
// account balances.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
)

// AccountLine is one aggregated row of a report. Balance is signed per the
// account type's normal balance.
type AccountLine struct {
	AccountID snowflake.ID             `json:"account_id"`
	Number    string                   `json:"number"`
	Name      string                   `json:"name"`
	Type      ledgerdomain.AccountType `json:"type"`
	Debit     decimal.Decimal          `json:"debit"`
	Credit    decimal.Decimal          `json:"credit"`
	Balance   decimal.Decimal          `json:"balance"`
}

type TrialBalance struct {
	AsOf        time.Time       `json:"as_of"`
	Items       []AccountLine   `json:"items"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

type ProfitAndLoss struct {
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Income       []AccountLine   `json:"income"`
	Expense      []AccountLine   `json:"expense"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetIncome    decimal.Decimal `json:"net_income"`
}

// BalanceSheet reports both totals separately so callers can detect an
// unbalanced ledger instead of having equality forced on them.
type BalanceSheet struct {
	AsOf                      time.Time       `json:"as_of"`
	Assets                    []AccountLine   `json:"assets"`
	Liabilities               []AccountLine   `json:"liabilities"`
	Equity                    []AccountLine   `json:"equity"`
	TotalAssets               decimal.Decimal `json:"total_assets"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
}

type Service interface {
	TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error)
	ProfitAndLoss(ctx context.Context, start, end time.Time) (ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error)
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidRange   = errors.New("invalid_range")
)
