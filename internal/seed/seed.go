// Package seed bootstraps a fresh database with a default company and its
// chart of accounts so the engine is usable immediately after migration.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/ledgerline/internal/company/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	"github.com/smallbiznis/ledgerline/pkg/repository"
	"gorm.io/gorm"
)

const (
	defaultCompanyName   = "Main"
	defaultInvoicePrefix = "INV"
)

type seedAccount struct {
	Number string
	Name   string
	Type   ledgerdomain.AccountType
}

// defaultAccounts is the minimum chart the posting paths depend on.
var defaultAccounts = []seedAccount{
	{ledgerdomain.AccountNumberCash, "Cash", ledgerdomain.AccountTypeAsset},
	{ledgerdomain.AccountNumberAccountsReceivable, "Accounts Receivable", ledgerdomain.AccountTypeAsset},
	{ledgerdomain.AccountNumberInventory, "Inventory", ledgerdomain.AccountTypeAsset},
	{ledgerdomain.AccountNumberTaxPayable, "Tax Payable", ledgerdomain.AccountTypeLiability},
	{ledgerdomain.AccountNumberOwnersEquity, "Owner's Equity", ledgerdomain.AccountTypeEquity},
	{ledgerdomain.AccountNumberSalesRevenue, "Sales Revenue", ledgerdomain.AccountTypeRevenue},
	{ledgerdomain.AccountNumberCOGS, "Cost of Goods Sold", ledgerdomain.AccountTypeExpense},
	{ledgerdomain.AccountNumberGeneralExpense, "General Expense", ledgerdomain.AccountTypeExpense},
}

// EnsureDefaultCompany seeds the default company with a generated id.
func EnsureDefaultCompany(db *gorm.DB) error {
	return ensure(db, 0)
}

// EnsureDefaultCompanyWithID seeds the default company under a fixed id so
// single-tenant deployments can pin DEFAULT_COMPANY.
func EnsureDefaultCompanyWithID(db *gorm.DB, companyID int64) error {
	return ensure(db, companyID)
}

func ensure(db *gorm.DB, companyID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	companies := repository.ProvideStore[companydomain.Company](db)
	accounts := repository.ProvideStore[ledgerdomain.Account](db)

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := ensureCompany(ctx, companies.WithTrx(tx), node, companyID)
		if err != nil {
			return err
		}
		return ensureAccounts(ctx, accounts.WithTrx(tx), node, company.ID)
	})
}

func ensureCompany(ctx context.Context, store repository.Repository[companydomain.Company], node *snowflake.Node, companyID int64) (companydomain.Company, error) {
	filter := companydomain.Company{Name: defaultCompanyName}
	if companyID != 0 {
		filter = companydomain.Company{ID: snowflake.ID(companyID)}
	}
	existing, err := store.FindOne(ctx, &filter)
	if err != nil {
		return companydomain.Company{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	id := node.Generate()
	if companyID != 0 {
		id = snowflake.ID(companyID)
	}
	now := time.Now().UTC()
	company := companydomain.Company{
		ID:            id,
		Name:          defaultCompanyName,
		InvoicePrefix: defaultInvoicePrefix,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Create(ctx, &company); err != nil {
		return companydomain.Company{}, err
	}
	return company, nil
}

func ensureAccounts(ctx context.Context, store repository.Repository[ledgerdomain.Account], node *snowflake.Node, companyID snowflake.ID) error {
	now := time.Now().UTC()
	missing := make([]*ledgerdomain.Account, 0, len(defaultAccounts))
	for _, seed := range defaultAccounts {
		count, err := store.Count(ctx, &ledgerdomain.Account{CompanyID: companyID, Number: seed.Number})
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		missing = append(missing, &ledgerdomain.Account{
			ID:        node.Generate(),
			CompanyID: companyID,
			Number:    seed.Number,
			Name:      seed.Name,
			Type:      seed.Type,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return store.BatchCreate(ctx, missing)
}
