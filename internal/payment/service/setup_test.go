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
	invoiceservice "github.com/smallbiznis/ledgerline/internal/invoice/service"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	inventoryservice "github.com/smallbiznis/ledgerline/internal/inventory/service"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/ledgerline/internal/ledger/service"
	paymentdomain "github.com/smallbiznis/ledgerline/internal/payment/domain"
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
	db         *gorm.DB
	node       *snowflake.Node
	ctx        context.Context
	companyID  snowflake.ID
	customer   customerdomain.Customer
	invoiceSvc invoicedomain.Service
	svc        paymentdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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
		&paymentdomain.Payment{},
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
	inventorySvc := inventoryservice.NewService(inventoryservice.Params{DB: db, Log: logger, GenID: node})

	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB:           db,
		Log:          logger,
		GenID:        node,
		Cfg:          config.Config{InvoicePrefix: "INV", DefaultTaxRate: "0.15"},
		InventorySvc: inventorySvc,
		LedgerSvc:    ledgerSvc,
		AuditSvc:     auditSvc,
	})
	svc := NewService(Params{
		DB:        db,
		Log:       logger,
		GenID:     node,
		LedgerSvc: ledgerSvc,
		AuditSvc:  auditSvc,
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

	for _, seed := range []struct {
		number string
		name   string
		typ    ledgerdomain.AccountType
	}{
		{ledgerdomain.AccountNumberCash, "Cash", ledgerdomain.AccountTypeAsset},
		{ledgerdomain.AccountNumberAccountsReceivable, "Accounts Receivable", ledgerdomain.AccountTypeAsset},
		{ledgerdomain.AccountNumberTaxPayable, "Tax Payable", ledgerdomain.AccountTypeLiability},
		{ledgerdomain.AccountNumberSalesRevenue, "Sales Revenue", ledgerdomain.AccountTypeRevenue},
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
		db:         db,
		node:       node,
		ctx:        companyctx.WithCompanyID(context.Background(), companyID),
		companyID:  companyID,
		customer:   customer,
		invoiceSvc: invoiceSvc,
		svc:        svc,
	}
}

// sentInvoice creates an active invoice for 2 × 100 + 15% tax = 230 total.
func (e *testEnv) sentInvoice(t *testing.T) invoicedomain.Invoice {
	t.Helper()
	invoice, err := e.invoiceSvc.Create(e.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: e.customer.ID.String(),
		Status:     invoicedomain.InvoiceStatusSent,
		LineItems: []invoicedomain.LineItemInput{
			{Description: "Widget", Quantity: dec("2"), UnitPrice: dec("100")},
		},
	})
	require.NoError(t, err)
	return invoice
}

func (e *testEnv) reloadInvoice(t *testing.T, id snowflake.ID) invoicedomain.Invoice {
	t.Helper()
	var invoice invoicedomain.Invoice
	require.NoError(t, e.db.First(&invoice, "id = ?", id).Error)
	return invoice
}

func (e *testEnv) customerBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	var customer customerdomain.Customer
	require.NoError(t, e.db.First(&customer, "id = ?", e.customer.ID).Error)
	return customer.Balance
}

func (e *testEnv) accountBalance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	var account ledgerdomain.Account
	require.NoError(t, e.db.First(&account, "company_id = ? AND number = ?", e.companyID, number).Error)
	return account.Balance
}

func (e *testEnv) paymentEntries(t *testing.T, paymentID snowflake.ID) []ledgerdomain.JournalEntry {
	t.Helper()
	var entries []ledgerdomain.JournalEntry
	require.NoError(t, e.db.
		Where("company_id = ? AND source_type = ? AND source_id = ?", e.companyID, "payment", paymentID).
		Order("source_seq asc").
		Find(&entries).Error)
	return entries
}
