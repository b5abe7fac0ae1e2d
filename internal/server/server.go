package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/ledgerline/internal/audit"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	"github.com/smallbiznis/ledgerline/internal/bank"
	bankdomain "github.com/smallbiznis/ledgerline/internal/bank/domain"
	"github.com/smallbiznis/ledgerline/internal/company"
	companydomain "github.com/smallbiznis/ledgerline/internal/company/domain"
	"github.com/smallbiznis/ledgerline/internal/config"
	"github.com/smallbiznis/ledgerline/internal/customer"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	"github.com/smallbiznis/ledgerline/internal/inventory"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	"github.com/smallbiznis/ledgerline/internal/invoice"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	"github.com/smallbiznis/ledgerline/internal/ledger"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	"github.com/smallbiznis/ledgerline/internal/payment"
	paymentdomain "github.com/smallbiznis/ledgerline/internal/payment/domain"
	"github.com/smallbiznis/ledgerline/internal/report"
	reportdomain "github.com/smallbiznis/ledgerline/internal/report/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	audit.Module,
	company.Module,
	customer.Module,
	inventory.Module,
	ledger.Module,
	invoice.Module,
	payment.Module,
	report.Module,
	bank.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	auditSvc     auditdomain.Service
	companySvc   companydomain.Service
	customerSvc  customerdomain.Service
	inventorySvc inventorydomain.Service
	invoiceSvc   invoicedomain.Service
	paymentSvc   paymentdomain.Service
	ledgerSvc    ledgerdomain.Service
	reportSvc    reportdomain.Service
	bankSvc      bankdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	AuditSvc     auditdomain.Service
	CompanySvc   companydomain.Service
	CustomerSvc  customerdomain.Service
	InventorySvc inventorydomain.Service
	InvoiceSvc   invoicedomain.Service
	PaymentSvc   paymentdomain.Service
	LedgerSvc    ledgerdomain.Service
	ReportSvc    reportdomain.Service
	BankSvc      bankdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		auditSvc:     p.AuditSvc,
		companySvc:   p.CompanySvc,
		customerSvc:  p.CustomerSvc,
		inventorySvc: p.InventorySvc,
		invoiceSvc:   p.InvoiceSvc,
		paymentSvc:   p.PaymentSvc,
		ledgerSvc:    p.LedgerSvc,
		reportSvc:    p.ReportSvc,
		bankSvc:      p.BankSvc,
		obsMetrics:   p.ObsMetrics,
	}
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

// RegisterAPIRoutes wires every versioned route group. All routes below /v1
// are company-scoped through CompanyContext.
func (s *Server) RegisterAPIRoutes() {
	// Company bootstrap happens before any tenant exists, so these two
	// routes skip tenant resolution.
	root := s.engine.Group("/v1")
	root.POST("/companies", s.CreateCompany)
	root.GET("/companies/:id", s.GetCompany)

	v1 := s.engine.Group("/v1")
	v1.Use(s.CompanyContext())

	v1.POST("/customers", s.CreateCustomer)
	v1.GET("/customers", s.ListCustomers)
	v1.GET("/customers/:id", s.GetCustomer)
	v1.PATCH("/customers/:id", s.UpdateCustomer)

	v1.POST("/items", s.CreateItem)
	v1.GET("/items", s.ListItems)
	v1.GET("/items/:id", s.GetItem)
	v1.POST("/items/:id/adjust", s.AdjustStock)
	v1.GET("/items/:id/movements", s.ListStockMovements)
	v1.POST("/items/:id/rebuild", s.RebuildQuantityOnHand)

	v1.POST("/invoices", s.CreateInvoice)
	v1.GET("/invoices", s.ListInvoices)
	v1.GET("/invoices/:id", s.GetInvoice)
	v1.PATCH("/invoices/:id", s.UpdateInvoice)
	v1.DELETE("/invoices/:id", s.DeleteInvoice)
	v1.POST("/invoices/:id/status", s.ChangeInvoiceStatus)
	v1.POST("/invoices/:id/cancel", s.CancelInvoice)
	v1.POST("/invoices/mark-overdue", s.MarkInvoicesOverdue)

	v1.POST("/payments", s.CreatePayment)
	v1.GET("/payments", s.ListPayments)
	v1.GET("/payments/:id", s.GetPayment)
	v1.PATCH("/payments/:id", s.UpdatePayment)
	v1.DELETE("/payments/:id", s.DeletePayment)

	v1.POST("/accounts", s.CreateAccount)
	v1.GET("/accounts", s.ListAccounts)
	v1.POST("/journal-entries", s.CreateJournalEntry)
	v1.POST("/ledger/reconcile", s.ReconcileBalances)

	v1.GET("/reports/trial-balance", s.TrialBalance)
	v1.GET("/reports/profit-and-loss", s.ProfitAndLoss)
	v1.GET("/reports/balance-sheet", s.BalanceSheet)

	v1.POST("/bank/accounts", s.CreateBankAccount)
	v1.GET("/bank/accounts", s.ListBankAccounts)
	v1.GET("/bank/accounts/:id", s.GetBankAccount)
	v1.POST("/bank/accounts/:id/transactions", s.CreateBankTransaction)
	v1.GET("/bank/accounts/:id/transactions", s.ListBankTransactions)
	v1.POST("/bank/reconciliations", s.StartReconciliation)
	v1.GET("/bank/reconciliations/:id", s.GetReconciliation)
	v1.POST("/bank/reconciliations/:id/items", s.SetReconciliationItem)
	v1.POST("/bank/reconciliations/:id/finish", s.FinishReconciliation)

	v1.GET("/audit-logs", s.ListAuditLogs)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
