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
	companydomain "github.com/smallbiznis/ledgerline/internal/company/domain"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	"github.com/smallbiznis/ledgerline/internal/config"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	inventoryservice "github.com/smallbiznis/ledgerline/internal/inventory/service"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/ledgerline/internal/ledger/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	ctx       context.Context
	companyID snowflake.ID
	customer  customerdomain.Customer
	item      inventorydomain.Item
	svc       invoicedomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// One named in-memory database per test so parallel packages and cases
	// never see each other's rows.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&companydomain.Company{},
		&customerdomain.Customer{},
		&inventorydomain.Item{},
		&inventorydomain.StockMovement{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
		&auditdomain.AuditLog{},
	))
	// SQLite needs a matching unique index for ON CONFLICT to target.
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
	inventorySvc := inventoryservice.NewService(inventoryservice.Params{DB: db, Log: logger, GenID: node})

	svc := NewService(Params{
		DB:           db,
		Log:          logger,
		GenID:        node,
		Cfg:          config.Config{InvoicePrefix: "INV", DefaultTaxRate: "0.15"},
		InventorySvc: inventorySvc,
		LedgerSvc:    ledgerSvc,
		AuditSvc:     auditSvc,
	})

	companyID := node.Generate()
	require.NoError(t, db.Create(&companydomain.Company{
		ID:            companyID,
		Name:          "Main",
		InvoicePrefix: "INV",
	}).Error)

	customer := customerdomain.Customer{
		ID:        node.Generate(),
		CompanyID: companyID,
		Name:      "Acme Ltd",
		Balance:   decimal.Zero,
	}
	require.NoError(t, db.Create(&customer).Error)

	item := inventorydomain.Item{
		ID:             node.Generate(),
		CompanyID:      companyID,
		SKU:            "WIDGET-1",
		Name:           "Widget",
		UnitPrice:      decimal.NewFromInt(100),
		QuantityOnHand: decimal.NewFromInt(10),
	}
	require.NoError(t, db.Create(&item).Error)

	for _, seed := range []struct {
		number string
		name   string
		typ    ledgerdomain.AccountType
	}{
		{ledgerdomain.AccountNumberCash, "Cash", ledgerdomain.AccountTypeAsset},
		{ledgerdomain.AccountNumberAccountsReceivable, "Accounts Receivable", ledgerdomain.AccountTypeAsset},
		{ledgerdomain.AccountNumberInventory, "Inventory", ledgerdomain.AccountTypeAsset},
		{ledgerdomain.AccountNumberTaxPayable, "Tax Payable", ledgerdomain.AccountTypeLiability},
		{ledgerdomain.AccountNumberOwnersEquity, "Owner's Equity", ledgerdomain.AccountTypeEquity},
		{ledgerdomain.AccountNumberSalesRevenue, "Sales Revenue", ledgerdomain.AccountTypeRevenue},
		{ledgerdomain.AccountNumberCOGS, "Cost of Goods Sold", ledgerdomain.AccountTypeExpense},
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

	return &testEnv{
		db:        db,
		ctx:       companyctx.WithCompanyID(context.Background(), companyID),
		companyID: companyID,
		customer:  customer,
		item:      item,
		svc:       svc,
	}
}

func (e *testEnv) reloadCustomer(t *testing.T) customerdomain.Customer {
	t.Helper()
	var customer customerdomain.Customer
	require.NoError(t, e.db.First(&customer, "id = ?", e.customer.ID).Error)
	return customer
}

func (e *testEnv) reloadItem(t *testing.T) inventorydomain.Item {
	t.Helper()
	var item inventorydomain.Item
	require.NoError(t, e.db.First(&item, "id = ?", e.item.ID).Error)
	return item
}

func (e *testEnv) accountBalance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	var account ledgerdomain.Account
	require.NoError(t, e.db.First(&account, "company_id = ? AND number = ?", e.companyID, number).Error)
	return account.Balance
}

func (e *testEnv) journalEntries(t *testing.T, sourceType string) []ledgerdomain.JournalEntry {
	t.Helper()
	var entries []ledgerdomain.JournalEntry
	require.NoError(t, e.db.
		Where("company_id = ? AND source_type = ?", e.companyID, sourceType).
		Find(&entries).Error)
	return entries
}

func (e *testEnv) movements(t *testing.T) []inventorydomain.StockMovement {
	t.Helper()
	var movements []inventorydomain.StockMovement
	require.NoError(t, e.db.
		Where("company_id = ? AND item_id = ?", e.companyID, e.item.ID).
		Order("id asc").
		Find(&movements).Error)
	return movements
}
