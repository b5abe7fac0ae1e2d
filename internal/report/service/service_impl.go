package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	reportdomain "github.com/smallbiznis/ledgerline/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) reportdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("report.service"),
	}
}

// accountAggregate is the scan target for the grouped journal query.
type accountAggregate struct {
	AccountID snowflake.ID             `gorm:"column:account_id"`
	Number    string                   `gorm:"column:number"`
	Name      string                   `gorm:"column:name"`
	Type      ledgerdomain.AccountType `gorm:"column:type"`
	Debit     decimal.Decimal          `gorm:"column:debit"`
	Credit    decimal.Decimal          `gorm:"column:credit"`
}

func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (reportdomain.TrialBalance, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return reportdomain.TrialBalance{}, err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rows, err := s.aggregate(ctx, companyID, nil, asOf, nil)
	if err != nil {
		return reportdomain.TrialBalance{}, err
	}

	report := reportdomain.TrialBalance{
		AsOf:        asOf,
		Items:       make([]reportdomain.AccountLine, 0, len(rows)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, row := range rows {
		report.Items = append(report.Items, reportdomain.AccountLine{
			AccountID: row.AccountID,
			Number:    row.Number,
			Name:      row.Name,
			Type:      row.Type,
			Debit:     row.Debit,
			Credit:    row.Credit,
			Balance:   row.Debit.Sub(row.Credit),
		})
		report.TotalDebit = report.TotalDebit.Add(row.Debit)
		report.TotalCredit = report.TotalCredit.Add(row.Credit)
	}
	return report, nil
}

func (s *Service) ProfitAndLoss(ctx context.Context, start, end time.Time) (reportdomain.ProfitAndLoss, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return reportdomain.ProfitAndLoss{}, err
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if !start.IsZero() && end.Before(start) {
		return reportdomain.ProfitAndLoss{}, reportdomain.ErrInvalidRange
	}

	rows, err := s.aggregate(ctx, companyID, &start, end, []ledgerdomain.AccountType{
		ledgerdomain.AccountTypeRevenue,
		ledgerdomain.AccountTypeExpense,
	})
	if err != nil {
		return reportdomain.ProfitAndLoss{}, err
	}

	report := reportdomain.ProfitAndLoss{
		Start:        start,
		End:          end,
		Income:       []reportdomain.AccountLine{},
		Expense:      []reportdomain.AccountLine{},
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for _, row := range rows {
		line := reportdomain.AccountLine{
			AccountID: row.AccountID,
			Number:    row.Number,
			Name:      row.Name,
			Type:      row.Type,
			Debit:     row.Debit,
			Credit:    row.Credit,
			Balance:   ledgerdomain.NormalDelta(row.Type, row.Debit, row.Credit),
		}
		if row.Type == ledgerdomain.AccountTypeRevenue {
			report.Income = append(report.Income, line)
			report.TotalIncome = report.TotalIncome.Add(line.Balance)
		} else {
			report.Expense = append(report.Expense, line)
			report.TotalExpense = report.TotalExpense.Add(line.Balance)
		}
	}
	report.NetIncome = report.TotalIncome.Sub(report.TotalExpense)
	return report, nil
}

func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (reportdomain.BalanceSheet, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return reportdomain.BalanceSheet{}, err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rows, err := s.aggregate(ctx, companyID, nil, asOf, []ledgerdomain.AccountType{
		ledgerdomain.AccountTypeAsset,
		ledgerdomain.AccountTypeLiability,
		ledgerdomain.AccountTypeEquity,
	})
	if err != nil {
		return reportdomain.BalanceSheet{}, err
	}

	report := reportdomain.BalanceSheet{
		AsOf:                      asOf,
		Assets:                    []reportdomain.AccountLine{},
		Liabilities:               []reportdomain.AccountLine{},
		Equity:                    []reportdomain.AccountLine{},
		TotalAssets:               decimal.Zero,
		TotalLiabilitiesAndEquity: decimal.Zero,
	}
	for _, row := range rows {
		line := reportdomain.AccountLine{
			AccountID: row.AccountID,
			Number:    row.Number,
			Name:      row.Name,
			Type:      row.Type,
			Debit:     row.Debit,
			Credit:    row.Credit,
			Balance:   ledgerdomain.NormalDelta(row.Type, row.Debit, row.Credit),
		}
		switch row.Type {
		case ledgerdomain.AccountTypeAsset:
			report.Assets = append(report.Assets, line)
			report.TotalAssets = report.TotalAssets.Add(line.Balance)
		case ledgerdomain.AccountTypeLiability:
			report.Liabilities = append(report.Liabilities, line)
			report.TotalLiabilitiesAndEquity = report.TotalLiabilitiesAndEquity.Add(line.Balance)
		case ledgerdomain.AccountTypeEquity:
			report.Equity = append(report.Equity, line)
			report.TotalLiabilitiesAndEquity = report.TotalLiabilitiesAndEquity.Add(line.Balance)
		}
	}

	// Retained earnings closes all-time net income up to the as-of date into
	// equity; without it a ledger that has booked any revenue or expense can
	// never balance.
	retained, err := s.netIncomeThrough(ctx, companyID, asOf)
	if err != nil {
		return reportdomain.BalanceSheet{}, err
	}
	report.Equity = append(report.Equity, reportdomain.AccountLine{
		Name:    "Retained Earnings",
		Type:    ledgerdomain.AccountTypeEquity,
		Balance: retained,
	})
	report.TotalLiabilitiesAndEquity = report.TotalLiabilitiesAndEquity.Add(retained)
	return report, nil
}

// aggregate group-sums journal lines per account over the entry date window.
// Accounts with no lines in range are omitted.
func (s *Service) aggregate(ctx context.Context, companyID snowflake.ID, start *time.Time, end time.Time, types []ledgerdomain.AccountType) ([]accountAggregate, error) {
	query := `
		SELECT a.id AS account_id, a.number, a.name, a.type,
		       COALESCE(SUM(l.debit), 0) AS debit,
		       COALESCE(SUM(l.credit), 0) AS credit
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		JOIN accounts a ON a.id = l.account_id
		WHERE e.company_id = ? AND e.occurred_at <= ?`
	args := []any{companyID, end}
	if start != nil && !start.IsZero() {
		query += ` AND e.occurred_at >= ?`
		args = append(args, *start)
	}
	if len(types) > 0 {
		query += ` AND a.type IN ?`
		args = append(args, types)
	}
	query += `
		GROUP BY a.id, a.number, a.name, a.type
		ORDER BY a.number`

	var rows []accountAggregate
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) netIncomeThrough(ctx context.Context, companyID snowflake.ID, asOf time.Time) (decimal.Decimal, error) {
	rows, err := s.aggregate(ctx, companyID, nil, asOf, []ledgerdomain.AccountType{
		ledgerdomain.AccountTypeRevenue,
		ledgerdomain.AccountTypeExpense,
	})
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for _, row := range rows {
		balance := ledgerdomain.NormalDelta(row.Type, row.Debit, row.Credit)
		if row.Type == ledgerdomain.AccountTypeRevenue {
			net = net.Add(balance)
		} else {
			net = net.Sub(balance)
		}
	}
	return net, nil
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, reportdomain.ErrInvalidCompany
	}
	return companyID, nil
}
