package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateAccount(ctx context.Context, req ledgerdomain.CreateAccountRequest) (ledgerdomain.Account, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return ledgerdomain.Account{}, err
	}

	number := strings.TrimSpace(req.Number)
	if number == "" {
		return ledgerdomain.Account{}, ledgerdomain.ErrInvalidNumber
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ledgerdomain.Account{}, ledgerdomain.ErrInvalidName
	}
	switch req.Type {
	case ledgerdomain.AccountTypeAsset,
		ledgerdomain.AccountTypeLiability,
		ledgerdomain.AccountTypeEquity,
		ledgerdomain.AccountTypeRevenue,
		ledgerdomain.AccountTypeExpense:
	default:
		return ledgerdomain.Account{}, ledgerdomain.ErrInvalidType
	}

	now := time.Now().UTC()
	account := ledgerdomain.Account{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Number:    number,
		Name:      name,
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		return ledgerdomain.Account{}, err
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]ledgerdomain.Account, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var accounts []ledgerdomain.Account
	err = s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("number asc").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Service) CreateEntry(ctx context.Context, input ledgerdomain.EntryInput) error {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.PostEntryTx(ctx, tx, companyID, input)
	})
}

func (s *Service) PostEntryTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, input ledgerdomain.EntryInput) error {
	if companyID == 0 {
		return ledgerdomain.ErrInvalidCompany
	}
	sourceType := strings.TrimSpace(input.SourceType)
	if sourceType == "" {
		return ledgerdomain.ErrInvalidSourceType
	}
	if input.SourceID == 0 {
		return ledgerdomain.ErrInvalidSourceID
	}
	if input.OccurredAt.IsZero() {
		return ledgerdomain.ErrInvalidOccurredAt
	}
	if err := ledgerdomain.ValidateBalanced(input.Lines); err != nil {
		return err
	}

	entryID := s.genID.Generate()
	now := time.Now().UTC()

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO journal_entries (
			id, company_id, source_type, source_id, source_seq, memo, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, source_type, source_id, source_seq) DO NOTHING`,
		entryID,
		companyID,
		sourceType,
		input.SourceID,
		input.SourceSeq,
		strings.TrimSpace(input.Memo),
		input.OccurredAt.UTC(),
		now,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Info("journal entry already posted",
			zap.String("source_type", sourceType),
			zap.String("source_id", input.SourceID.String()),
			zap.Int("source_seq", input.SourceSeq),
		)
		return nil
	}

	for _, line := range input.Lines {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO journal_lines (id, entry_id, account_id, debit, credit, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			entryID,
			line.AccountID,
			line.Debit,
			line.Credit,
			now,
		).Error; err != nil {
			return err
		}

		if err := s.applyBalanceTx(ctx, tx, companyID, line); err != nil {
			return err
		}
	}

	s.log.Info("journal entry posted",
		zap.String("entry_id", entryID.String()),
		zap.String("source_type", sourceType),
		zap.String("source_id", input.SourceID.String()),
	)
	return nil
}

// applyBalanceTx folds one line into the denormalized account balance using
// the account type's normal-balance sign.
func (s *Service) applyBalanceTx(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, line ledgerdomain.EntryLine) error {
	var account ledgerdomain.Account
	err := tx.WithContext(ctx).
		Select("id", "type").
		Where("company_id = ? AND id = ?", companyID, line.AccountID).
		First(&account).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return ledgerdomain.ErrInvalidAccount
		}
		return err
	}

	delta := ledgerdomain.NormalDelta(account.Type, line.Debit, line.Credit)
	if delta.IsZero() {
		return nil
	}

	return tx.WithContext(ctx).Exec(
		`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE company_id = ? AND id = ?`,
		delta,
		time.Now().UTC(),
		companyID,
		line.AccountID,
	).Error
}

func (s *Service) AccountsByNumber(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, numbers []string) (map[string]ledgerdomain.Account, error) {
	var accounts []ledgerdomain.Account
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND number IN ?", companyID, numbers).
		Find(&accounts).Error; err != nil {
		return nil, err
	}

	result := make(map[string]ledgerdomain.Account, len(accounts))
	for _, acc := range accounts {
		result[acc.Number] = acc
	}
	return result, nil
}

func (s *Service) ReconcileBalances(ctx context.Context) ([]ledgerdomain.ReconcileDrift, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []ledgerdomain.ReconcileDrift
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var accounts []ledgerdomain.Account
		if err := tx.WithContext(ctx).
			Where("company_id = ?", companyID).
			Find(&accounts).Error; err != nil {
			return err
		}

		for _, account := range accounts {
			var sums struct {
				Debit  decimal.NullDecimal
				Credit decimal.NullDecimal
			}
			if err := tx.WithContext(ctx).Raw(
				`SELECT SUM(jl.debit) AS debit, SUM(jl.credit) AS credit
				 FROM journal_lines jl
				 JOIN journal_entries je ON je.id = jl.entry_id
				 WHERE je.company_id = ? AND jl.account_id = ?`,
				companyID,
				account.ID,
			).Scan(&sums).Error; err != nil {
				return err
			}

			debit := decimal.Zero
			if sums.Debit.Valid {
				debit = sums.Debit.Decimal
			}
			credit := decimal.Zero
			if sums.Credit.Valid {
				credit = sums.Credit.Decimal
			}

			recomputed := ledgerdomain.NormalDelta(account.Type, debit, credit)
			if account.Balance.Equal(recomputed) {
				continue
			}

			drifts = append(drifts, ledgerdomain.ReconcileDrift{
				AccountID:  account.ID,
				Number:     account.Number,
				Stored:     account.Balance,
				Recomputed: recomputed,
			})
			s.log.Warn("account balance drift repaired",
				zap.String("account", account.Number),
				zap.String("stored", account.Balance.String()),
				zap.String("recomputed", recomputed.String()),
			)
			if err := tx.WithContext(ctx).Exec(
				`UPDATE accounts SET balance = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
				recomputed,
				time.Now().UTC(),
				companyID,
				account.ID,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, ledgerdomain.ErrInvalidCompany
	}
	return companyID, nil
}
