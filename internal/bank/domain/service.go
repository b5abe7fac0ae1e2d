package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type CreateAccountRequest struct {
	Name          string
	AccountNumber string
}

type CreateTransactionRequest struct {
	BankAccountID string
	Type          TransactionType
	Amount        decimal.Decimal
	Description   string
	OccurredAt    time.Time
}

type StartReconciliationRequest struct {
	BankAccountID    string
	StatementDate    time.Time
	StatementBalance decimal.Decimal
}

type SetClearedRequest struct {
	ReconciliationID string
	TransactionID    string
	Cleared          bool
}

type Service interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (BankAccount, error)
	GetAccount(ctx context.Context, id string) (BankAccount, error)
	ListAccounts(ctx context.Context) ([]BankAccount, error)

	// CreateTransaction inserts the transaction, moves the account balance
	// and posts the journal entry in one transaction.
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (BankTransaction, error)
	ListTransactions(ctx context.Context, bankAccountID string) ([]BankTransaction, error)

	StartReconciliation(ctx context.Context, req StartReconciliationRequest) (Reconciliation, error)
	GetReconciliation(ctx context.Context, id string) (Reconciliation, error)
	SetCleared(ctx context.Context, req SetClearedRequest) error

	// FinishReconciliation closes the reconciliation and marks every cleared
	// transaction reconciled, atomically.
	FinishReconciliation(ctx context.Context, id string) (Reconciliation, error)
}

var (
	ErrInvalidCompany     = errors.New("invalid_company")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidAccount     = errors.New("invalid_account")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidTransaction = errors.New("invalid_transaction")
	ErrNotFound           = errors.New("not_found")
	ErrAlreadyFinished    = errors.New("already_finished")
)
