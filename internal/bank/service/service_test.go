package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	auditrepository "github.com/smallbiznis/ledgerline/internal/audit/repository"
	auditservice "github.com/smallbiznis/ledgerline/internal/audit/service"
	bankdomain "github.com/smallbiznis/ledgerline/internal/bank/domain"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/ledgerline/internal/ledger/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type testEnv struct {
	db        *gorm.DB
	node      *snowflake.Node
	ctx       context.Context
	companyID snowflake.ID
	account   bankdomain.BankAccount
	svc       bankdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&bankdomain.BankAccount{},
		&bankdomain.BankTransaction{},
		&bankdomain.Reconciliation{},
		&bankdomain.ReconciliationItem{},
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
		&auditdomain.AuditLog{},
	))
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_journal_entries_source ON journal_entries(company_id, source_type, source_id, source_seq)")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   logger,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: logger, GenID: node})
	svc := NewService(Params{
		DB:        db,
		Log:       logger,
		GenID:     node,
		LedgerSvc: ledgerSvc,
		AuditSvc:  auditSvc,
	})

	companyID := node.Generate()
	ctx := companyctx.WithCompanyID(context.Background(), companyID)

	for _, seed := range []struct {
		number string
		name   string
		typ    ledgerdomain.AccountType
	}{
		{ledgerdomain.AccountNumberCash, "Cash", ledgerdomain.AccountTypeAsset},
		{ledgerdomain.AccountNumberOwnersEquity, "Owner's Equity", ledgerdomain.AccountTypeEquity},
		{ledgerdomain.AccountNumberGeneralExpense, "General Expense", ledgerdomain.AccountTypeExpense},
	} {
		require.NoError(t, db.Create(&ledgerdomain.Account{
			ID:        node.Generate(),
			CompanyID: companyID,
			Number:    seed.number,
			Name:      seed.name,
			Type:      seed.typ,
			Balance:   decimal.Zero,
		}).Error)
	}

	account, err := svc.CreateAccount(ctx, bankdomain.CreateAccountRequest{
		Name:          "Operating",
		AccountNumber: "12-3456-789",
	})
	require.NoError(t, err)

	return &testEnv{
		db:        db,
		node:      node,
		ctx:       ctx,
		companyID: companyID,
		account:   account,
		svc:       svc,
	}
}

func (e *testEnv) reloadAccount(t *testing.T) bankdomain.BankAccount {
	t.Helper()
	var account bankdomain.BankAccount
	require.NoError(t, e.db.First(&account, "id = ?", e.account.ID).Error)
	return account
}

func (e *testEnv) ledgerBalance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	var account ledgerdomain.Account
	require.NoError(t, e.db.First(&account, "company_id = ? AND number = ?", e.companyID, number).Error)
	return account.Balance
}

func TestTransactionsMoveBalanceAndPostEntries(t *testing.T) {
	env := newTestEnv(t)

	deposit, err := env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.account.ID.String(),
		Type:          bankdomain.TransactionTypeDeposit,
		Amount:        dec("1000"),
		Description:   "owner funding",
	})
	require.NoError(t, err)
	assert.True(t, env.reloadAccount(t).CurrentBalance.Equal(dec("1000")))

	_, err = env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.account.ID.String(),
		Type:          bankdomain.TransactionTypeWithdrawal,
		Amount:        dec("300"),
		Description:   "rent",
	})
	require.NoError(t, err)
	assert.True(t, env.reloadAccount(t).CurrentBalance.Equal(dec("700")))

	// Deposit: Dr Cash / Cr Owner's Equity. Withdrawal: Dr Expense / Cr Cash.
	assert.True(t, env.ledgerBalance(t, ledgerdomain.AccountNumberCash).Equal(dec("700")))
	assert.True(t, env.ledgerBalance(t, ledgerdomain.AccountNumberOwnersEquity).Equal(dec("1000")))
	assert.True(t, env.ledgerBalance(t, ledgerdomain.AccountNumberGeneralExpense).Equal(dec("300")))

	var entries []ledgerdomain.JournalEntry
	require.NoError(t, env.db.
		Where("company_id = ? AND source_type = ?", env.companyID, "bank_txn").
		Find(&entries).Error)
	assert.Len(t, entries, 2)
	assert.Equal(t, deposit.ID, entries[0].SourceID)

	txns, err := env.svc.ListTransactions(env.ctx, env.account.ID.String())
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.account.ID.String(),
		Type:          bankdomain.TransactionType("TRANSFER"),
		Amount:        dec("10"),
	})
	assert.ErrorIs(t, err, bankdomain.ErrInvalidType)

	_, err = env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.account.ID.String(),
		Type:          bankdomain.TransactionTypeDeposit,
		Amount:        dec("-5"),
	})
	assert.ErrorIs(t, err, bankdomain.ErrInvalidAmount)

	_, err = env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.node.Generate().String(),
		Type:          bankdomain.TransactionTypeDeposit,
		Amount:        dec("5"),
	})
	assert.ErrorIs(t, err, bankdomain.ErrInvalidAccount)
}

func TestReconciliationFlow(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.account.ID.String(),
		Type:          bankdomain.TransactionTypeDeposit,
		Amount:        dec("500"),
	})
	require.NoError(t, err)
	second, err := env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: env.account.ID.String(),
		Type:          bankdomain.TransactionTypeWithdrawal,
		Amount:        dec("200"),
	})
	require.NoError(t, err)

	rec, err := env.svc.StartReconciliation(env.ctx, bankdomain.StartReconciliationRequest{
		BankAccountID:    env.account.ID.String(),
		StatementBalance: dec("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, bankdomain.ReconciliationStatusOpen, rec.Status)

	require.NoError(t, env.svc.SetCleared(env.ctx, bankdomain.SetClearedRequest{
		ReconciliationID: rec.ID.String(),
		TransactionID:    first.ID.String(),
		Cleared:          true,
	}))
	require.NoError(t, env.svc.SetCleared(env.ctx, bankdomain.SetClearedRequest{
		ReconciliationID: rec.ID.String(),
		TransactionID:    second.ID.String(),
		Cleared:          true,
	}))
	// Unclearing is an update of the existing item, not a duplicate row.
	require.NoError(t, env.svc.SetCleared(env.ctx, bankdomain.SetClearedRequest{
		ReconciliationID: rec.ID.String(),
		TransactionID:    second.ID.String(),
		Cleared:          false,
	}))

	loaded, err := env.svc.GetReconciliation(env.ctx, rec.ID.String())
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)

	finished, err := env.svc.FinishReconciliation(env.ctx, rec.ID.String())
	require.NoError(t, err)
	assert.Equal(t, bankdomain.ReconciliationStatusFinished, finished.Status)

	// Only the still-cleared transaction was marked reconciled. Each load
	// uses a fresh struct so the previous primary key cannot leak into the
	// query conditions.
	var firstTxn bankdomain.BankTransaction
	require.NoError(t, env.db.First(&firstTxn, "id = ?", first.ID).Error)
	assert.True(t, firstTxn.IsReconciled)
	var secondTxn bankdomain.BankTransaction
	require.NoError(t, env.db.First(&secondTxn, "id = ?", second.ID).Error)
	assert.False(t, secondTxn.IsReconciled)

	// A finished reconciliation is closed to further changes.
	err = env.svc.SetCleared(env.ctx, bankdomain.SetClearedRequest{
		ReconciliationID: rec.ID.String(),
		TransactionID:    first.ID.String(),
		Cleared:          false,
	})
	assert.ErrorIs(t, err, bankdomain.ErrAlreadyFinished)
	_, err = env.svc.FinishReconciliation(env.ctx, rec.ID.String())
	assert.ErrorIs(t, err, bankdomain.ErrAlreadyFinished)
}

func TestSetClearedRejectsForeignTransaction(t *testing.T) {
	env := newTestEnv(t)

	other, err := env.svc.CreateAccount(env.ctx, bankdomain.CreateAccountRequest{Name: "Savings"})
	require.NoError(t, err)
	foreign, err := env.svc.CreateTransaction(env.ctx, bankdomain.CreateTransactionRequest{
		BankAccountID: other.ID.String(),
		Type:          bankdomain.TransactionTypeDeposit,
		Amount:        dec("10"),
	})
	require.NoError(t, err)

	rec, err := env.svc.StartReconciliation(env.ctx, bankdomain.StartReconciliationRequest{
		BankAccountID: env.account.ID.String(),
	})
	require.NoError(t, err)

	err = env.svc.SetCleared(env.ctx, bankdomain.SetClearedRequest{
		ReconciliationID: rec.ID.String(),
		TransactionID:    foreign.ID.String(),
		Cleared:          true,
	})
	assert.ErrorIs(t, err, bankdomain.ErrInvalidTransaction)
}
