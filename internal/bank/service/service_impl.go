package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	bankdomain "github.com/smallbiznis/ledgerline/internal/bank/domain"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/ledgerline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	LedgerSvc  ledgerdomain.Service
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	ledgerSvc  ledgerdomain.Service
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) bankdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bank.service"),
		genID:      p.GenID,
		ledgerSvc:  p.LedgerSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateAccount(ctx context.Context, req bankdomain.CreateAccountRequest) (bankdomain.BankAccount, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return bankdomain.BankAccount{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return bankdomain.BankAccount{}, bankdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	account := bankdomain.BankAccount{
		ID:            s.genID.Generate(),
		CompanyID:     companyID,
		Name:          name,
		AccountNumber: strings.TrimSpace(req.AccountNumber),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return bankdomain.BankAccount{}, err
	}
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (bankdomain.BankAccount, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return bankdomain.BankAccount{}, err
	}
	accountID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return bankdomain.BankAccount{}, bankdomain.ErrInvalidID
	}

	var account bankdomain.BankAccount
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, accountID).
		First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return bankdomain.BankAccount{}, bankdomain.ErrNotFound
		}
		return bankdomain.BankAccount{}, err
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]bankdomain.BankAccount, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var accounts []bankdomain.BankAccount
	err = s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("name asc").
		Find(&accounts).Error
	return accounts, err
}

func (s *Service) CreateTransaction(ctx context.Context, req bankdomain.CreateTransactionRequest) (bankdomain.BankTransaction, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return bankdomain.BankTransaction{}, err
	}
	accountID, err := snowflake.ParseString(strings.TrimSpace(req.BankAccountID))
	if err != nil {
		return bankdomain.BankTransaction{}, bankdomain.ErrInvalidAccount
	}
	if req.Type != bankdomain.TransactionTypeDeposit && req.Type != bankdomain.TransactionTypeWithdrawal {
		return bankdomain.BankTransaction{}, bankdomain.ErrInvalidType
	}
	if !req.Amount.IsPositive() {
		return bankdomain.BankTransaction{}, bankdomain.ErrInvalidAmount
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	txn := bankdomain.BankTransaction{
		ID:            s.genID.Generate(),
		CompanyID:     companyID,
		BankAccountID: accountID,
		Type:          req.Type,
		Amount:        req.Amount,
		Description:   strings.TrimSpace(req.Description),
		OccurredAt:    occurredAt,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account bankdomain.BankAccount
		err := pkgdb.ForUpdate(tx.WithContext(ctx)).
			Where("company_id = ? AND id = ?", companyID, accountID).
			First(&account).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return bankdomain.ErrInvalidAccount
			}
			return err
		}

		if err := tx.WithContext(ctx).Create(&txn).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Exec(
			`UPDATE bank_accounts SET current_balance = current_balance + ?, updated_at = ? WHERE id = ?`,
			txn.SignedAmount(), time.Now().UTC(), account.ID,
		).Error; err != nil {
			return err
		}
		return s.postTransactionEntryTx(ctx, tx, &txn)
	})
	if err != nil {
		return bankdomain.BankTransaction{}, err
	}

	targetID := txn.ID.String()
	_ = s.auditSvc.AuditLog(ctx, &companyID, "bank.transaction_created", "bank_transaction", &targetID, map[string]any{
		"bank_account_id": accountID.String(),
		"type":            string(txn.Type),
		"amount":          txn.Amount.String(),
	})
	return txn, nil
}

func (s *Service) ListTransactions(ctx context.Context, bankAccountID string) ([]bankdomain.BankTransaction, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	accountID, err := snowflake.ParseString(strings.TrimSpace(bankAccountID))
	if err != nil {
		return nil, bankdomain.ErrInvalidAccount
	}

	var txns []bankdomain.BankTransaction
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND bank_account_id = ?", companyID, accountID).
		Order("occurred_at desc, id desc").
		Find(&txns).Error
	return txns, err
}

func (s *Service) StartReconciliation(ctx context.Context, req bankdomain.StartReconciliationRequest) (bankdomain.Reconciliation, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return bankdomain.Reconciliation{}, err
	}
	accountID, err := snowflake.ParseString(strings.TrimSpace(req.BankAccountID))
	if err != nil {
		return bankdomain.Reconciliation{}, bankdomain.ErrInvalidAccount
	}

	statementDate := req.StatementDate
	if statementDate.IsZero() {
		statementDate = time.Now().UTC()
	}

	var count int64
	err = s.db.WithContext(ctx).
		Model(&bankdomain.BankAccount{}).
		Where("company_id = ? AND id = ?", companyID, accountID).
		Count(&count).Error
	if err != nil {
		return bankdomain.Reconciliation{}, err
	}
	if count == 0 {
		return bankdomain.Reconciliation{}, bankdomain.ErrInvalidAccount
	}

	now := time.Now().UTC()
	rec := bankdomain.Reconciliation{
		ID:               s.genID.Generate(),
		CompanyID:        companyID,
		BankAccountID:    accountID,
		StatementDate:    statementDate,
		StatementBalance: req.StatementBalance,
		Status:           bankdomain.ReconciliationStatusOpen,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return bankdomain.Reconciliation{}, err
	}
	return rec, nil
}

func (s *Service) GetReconciliation(ctx context.Context, id string) (bankdomain.Reconciliation, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return bankdomain.Reconciliation{}, err
	}
	recID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return bankdomain.Reconciliation{}, bankdomain.ErrInvalidID
	}

	var rec bankdomain.Reconciliation
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where("company_id = ? AND id = ?", companyID, recID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return bankdomain.Reconciliation{}, bankdomain.ErrNotFound
		}
		return bankdomain.Reconciliation{}, err
	}
	return rec, nil
}

func (s *Service) SetCleared(ctx context.Context, req bankdomain.SetClearedRequest) error {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return err
	}
	recID, err := snowflake.ParseString(strings.TrimSpace(req.ReconciliationID))
	if err != nil {
		return bankdomain.ErrInvalidID
	}
	txnID, err := snowflake.ParseString(strings.TrimSpace(req.TransactionID))
	if err != nil {
		return bankdomain.ErrInvalidTransaction
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.loadReconciliationForUpdate(ctx, tx, companyID, recID)
		if err != nil {
			return err
		}
		if rec.Status == bankdomain.ReconciliationStatusFinished {
			return bankdomain.ErrAlreadyFinished
		}

		var count int64
		err = tx.WithContext(ctx).
			Model(&bankdomain.BankTransaction{}).
			Where("company_id = ? AND id = ? AND bank_account_id = ?", companyID, txnID, rec.BankAccountID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return bankdomain.ErrInvalidTransaction
		}

		now := time.Now().UTC()
		item := bankdomain.ReconciliationItem{
			ID:               s.genID.Generate(),
			ReconciliationID: rec.ID,
			TransactionID:    txnID,
			Cleared:          req.Cleared,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		result := tx.WithContext(ctx).
			Model(&bankdomain.ReconciliationItem{}).
			Where("reconciliation_id = ? AND transaction_id = ?", rec.ID, txnID).
			Updates(map[string]any{"cleared": req.Cleared, "updated_at": now})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return tx.WithContext(ctx).Create(&item).Error
		}
		return nil
	})
}

func (s *Service) FinishReconciliation(ctx context.Context, id string) (bankdomain.Reconciliation, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return bankdomain.Reconciliation{}, err
	}
	recID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return bankdomain.Reconciliation{}, bankdomain.ErrInvalidID
	}

	var finished bankdomain.Reconciliation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.loadReconciliationForUpdate(ctx, tx, companyID, recID)
		if err != nil {
			return err
		}
		if rec.Status == bankdomain.ReconciliationStatusFinished {
			return bankdomain.ErrAlreadyFinished
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE bank_transactions SET is_reconciled = ?
			 WHERE id IN (
				SELECT transaction_id FROM reconciliation_items
				WHERE reconciliation_id = ? AND cleared = ?
			 )`,
			true, rec.ID, true,
		).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Exec(
			`UPDATE reconciliations SET status = ?, updated_at = ? WHERE id = ?`,
			bankdomain.ReconciliationStatusFinished, now, rec.ID,
		).Error; err != nil {
			return err
		}
		rec.Status = bankdomain.ReconciliationStatusFinished
		finished = *rec
		return nil
	})
	if err != nil {
		return bankdomain.Reconciliation{}, err
	}

	targetID := finished.ID.String()
	_ = s.auditSvc.AuditLog(ctx, &companyID, "bank.reconciliation_finished", "reconciliation", &targetID, map[string]any{
		"bank_account_id":   finished.BankAccountID.String(),
		"statement_balance": finished.StatementBalance.String(),
	})
	return finished, nil
}

// postTransactionEntryTx books the cash movement. Deposits without a known
// classification credit Owner's Equity; withdrawals debit General Expense.
func (s *Service) postTransactionEntryTx(ctx context.Context, tx *gorm.DB, txn *bankdomain.BankTransaction) error {
	accounts, err := s.ledgerSvc.AccountsByNumber(ctx, tx, txn.CompanyID, []string{
		ledgerdomain.AccountNumberCash,
		ledgerdomain.AccountNumberOwnersEquity,
		ledgerdomain.AccountNumberGeneralExpense,
	})
	if err != nil {
		return err
	}

	var lines []ledgerdomain.EntryLine
	if txn.Type == bankdomain.TransactionTypeDeposit {
		lines = []ledgerdomain.EntryLine{
			{AccountID: accounts[ledgerdomain.AccountNumberCash].ID, Debit: txn.Amount},
			{AccountID: accounts[ledgerdomain.AccountNumberOwnersEquity].ID, Credit: txn.Amount},
		}
	} else {
		lines = []ledgerdomain.EntryLine{
			{AccountID: accounts[ledgerdomain.AccountNumberGeneralExpense].ID, Debit: txn.Amount},
			{AccountID: accounts[ledgerdomain.AccountNumberCash].ID, Credit: txn.Amount},
		}
	}

	input := ledgerdomain.EntryInput{
		SourceType: "bank_txn",
		SourceID:   txn.ID,
		Memo:       "Bank " + strings.ToLower(string(txn.Type)),
		OccurredAt: txn.OccurredAt,
		Lines:      lines,
	}
	if err := s.ledgerSvc.PostEntryTx(ctx, tx, txn.CompanyID, input); err != nil {
		return err
	}
	s.obsMetrics.RecordJournalEntry("bank_txn")
	return nil
}

func (s *Service) loadReconciliationForUpdate(ctx context.Context, tx *gorm.DB, companyID, recID snowflake.ID) (*bankdomain.Reconciliation, error) {
	var rec bankdomain.Reconciliation
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("company_id = ? AND id = ?", companyID, recID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, bankdomain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, bankdomain.ErrInvalidCompany
	}
	return companyID, nil
}
