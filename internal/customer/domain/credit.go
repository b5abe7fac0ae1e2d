package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CreditCheck is the outcome of a credit limit evaluation.
type CreditCheck struct {
	Exceeded       bool            `json:"exceeded"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

// CheckCredit evaluates whether adding delta to the customer's receivable
// balance would exceed the credit limit. A zero limit means unlimited.
// Pure; performs no reads or writes.
func CheckCredit(balance, limit, delta decimal.Decimal) CreditCheck {
	newBalance := balance.Add(delta)
	return CreditCheck{
		Exceeded:       !limit.IsZero() && newBalance.GreaterThan(limit),
		CurrentBalance: balance,
		CreditLimit:    limit,
		NewBalance:     newBalance,
	}
}

// CreditLimitError is returned when an operation would push a customer past
// their credit limit and the caller did not override the check. It carries
// the figures the presentation layer needs for the warning dialog.
type CreditLimitError struct {
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	NewBalance     decimal.Decimal `json:"new_balance"`
}

func (e *CreditLimitError) Error() string {
	return fmt.Sprintf("credit_limit_exceeded: balance %s + delta exceeds limit %s (would be %s)",
		e.CurrentBalance.StringFixed(2), e.CreditLimit.StringFixed(2), e.NewBalance.StringFixed(2))
}
