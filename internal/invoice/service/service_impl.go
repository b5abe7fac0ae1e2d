package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	companydomain "github.com/smallbiznis/ledgerline/internal/company/domain"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	"github.com/smallbiznis/ledgerline/internal/config"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/ledgerline/pkg/db"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
	"github.com/smallbiznis/ledgerline/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Cfg          config.Config
	InventorySvc inventorydomain.Service
	LedgerSvc    ledgerdomain.Service
	AuditSvc     auditdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	inventorySvc   inventorydomain.Service
	ledgerSvc      ledgerdomain.Service
	auditSvc       auditdomain.Service
	obsMetrics     *obsmetrics.Metrics
	lines          repository.Repository[invoicedomain.LineItem]
	defaultTaxRate decimal.Decimal
}

func NewService(p Params) invoicedomain.Service {
	rate, err := decimal.NewFromString(p.Cfg.DefaultTaxRate)
	if err != nil || rate.IsNegative() {
		rate = decimal.New(15, -2)
	}

	return &Service{
		db:             p.DB,
		log:            p.Log.Named("invoice.service"),
		genID:          p.GenID,
		inventorySvc:   p.InventorySvc,
		ledgerSvc:      p.LedgerSvc,
		auditSvc:       p.AuditSvc,
		obsMetrics:     p.ObsMetrics,
		lines:          repository.ProvideStore[invoicedomain.LineItem](p.DB),
		defaultTaxRate: rate,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidCustomer
	}

	status := req.Status
	if status == "" {
		status = invoicedomain.InvoiceStatusDraft
	}
	if !invoicedomain.ValidStatus(status) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}
	// Payment-derived and terminal statuses cannot be requested at creation.
	if status != invoicedomain.InvoiceStatusDraft && !invoicedomain.CanTransition(invoicedomain.InvoiceStatusDraft, status) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}
	if status == invoicedomain.InvoiceStatusCancelled {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}

	if err := invoicedomain.ValidateLineItems(req.LineItems); err != nil {
		return invoicedomain.Invoice{}, err
	}
	lines, err := s.buildLineItems(companyID, req.LineItems)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	issueDate := req.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}
	totals := invoicedomain.ComputeTotals(req.LineItems, s.defaultTaxRate)

	now := time.Now().UTC()
	invoice := invoicedomain.Invoice{
		ID:         s.genID.Generate(),
		CompanyID:  companyID,
		CustomerID: customerID,
		Status:     invoicedomain.InvoiceStatusDraft,
		Subtotal:   totals.Subtotal,
		TaxAmount:  totals.TaxAmount,
		Total:      totals.Total,
		IssueDate:  issueDate,
		DueDate:    req.DueDate,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prefix, err := s.nextInvoiceNumber(ctx, tx, companyID)
		if err != nil {
			return err
		}
		invoice.InvoiceSeq = seq
		invoice.InvoiceNumber = invoicedomain.FormatNumber(prefix, seq)

		if err := tx.WithContext(ctx).Omit("LineItems").Create(&invoice).Error; err != nil {
			return err
		}
		if err := s.insertLineItemsTx(ctx, tx, invoice.ID, lines); err != nil {
			return err
		}

		if status != invoicedomain.InvoiceStatusDraft {
			if err := s.activateTx(ctx, tx, &invoice, lines, req.SkipCreditCheck); err != nil {
				return err
			}
			if err := s.setStatusTx(ctx, tx, &invoice, status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return invoicedomain.Invoice{}, invoicedomain.ErrConcurrencyConflict
		}
		return invoicedomain.Invoice{}, err
	}

	invoice.LineItems = lines
	s.emitAudit(ctx, "invoice.created", &invoice, map[string]any{"status": string(invoice.Status)})
	if invoice.Status != invoicedomain.InvoiceStatusDraft {
		s.obsMetrics.RecordInvoiceActivated(string(invoice.Status))
	}
	return invoice, nil
}

func (s *Service) Update(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (invoicedomain.Invoice, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidID
	}

	if err := invoicedomain.ValidateLineItems(req.LineItems); err != nil {
		return invoicedomain.Invoice{}, err
	}
	lines, err := s.buildLineItems(companyID, req.LineItems)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	var updated invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if invoice.Status != invoicedomain.InvoiceStatusDraft {
			return invoicedomain.ErrNotEditable
		}

		// Line items are replaced wholesale; only DRAFT invoices get here so
		// nothing external references the outgoing rows.
		if err := tx.WithContext(ctx).
			Where("invoice_id = ?", invoice.ID).
			Delete(&invoicedomain.LineItem{}).Error; err != nil {
			return err
		}
		if err := s.insertLineItemsTx(ctx, tx, invoice.ID, lines); err != nil {
			return err
		}

		totals := invoicedomain.ComputeTotals(req.LineItems, s.defaultTaxRate)
		updates := map[string]any{
			"subtotal":   totals.Subtotal,
			"tax_amount": totals.TaxAmount,
			"total":      totals.Total,
			"updated_at": time.Now().UTC(),
		}
		if req.IssueDate != nil {
			updates["issue_date"] = *req.IssueDate
		}
		if req.DueDate != nil {
			updates["due_date"] = *req.DueDate
		}
		if req.Notes != nil {
			updates["notes"] = strings.TrimSpace(*req.Notes)
		}
		if err := tx.WithContext(ctx).
			Model(&invoicedomain.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		invoice.Subtotal = totals.Subtotal
		invoice.TaxAmount = totals.TaxAmount
		invoice.Total = totals.Total
		invoice.LineItems = lines
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.emitAudit(ctx, "invoice.updated", &updated, nil)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.ErrInvalidID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if invoice.Status != invoicedomain.InvoiceStatusDraft {
			return invoicedomain.ErrNotEditable
		}

		if err := tx.WithContext(ctx).
			Where("invoice_id = ?", invoice.ID).
			Delete(&invoicedomain.LineItem{}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Where("id = ?", invoice.ID).
			Delete(&invoicedomain.Invoice{}).Error
	})
	if err != nil {
		return err
	}

	idStr := invoiceID.String()
	_ = s.auditSvc.AuditLog(ctx, &companyID, "invoice.deleted", "invoice", &idStr, nil)
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidID
	}

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Preload("LineItems").
		Where("company_id = ? AND id = ?", companyID, invoiceID).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
		}
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	stmt := s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("company_id = ?", companyID)
	if req.CustomerID != "" {
		customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidCustomer
		}
		stmt = stmt.Where("customer_id = ?", customerID)
	}
	if req.Status != nil {
		stmt = stmt.Where("status = ?", *req.Status)
	}
	if req.IssuedFrom != nil {
		stmt = stmt.Where("issue_date >= ?", *req.IssuedFrom)
	}
	if req.IssuedTo != nil {
		stmt = stmt.Where("issue_date <= ?", *req.IssuedTo)
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidID
		}
		if cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	var invoices []*invoicedomain.Invoice
	if err := stmt.Order("id desc").Limit(size + 1).Find(&invoices).Error; err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices, pageInfo := pagination.BuildCursorPageInfo(invoices, size, func(i *invoicedomain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: i.ID.String()})
		return token
	})

	out := make([]invoicedomain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, *inv)
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: *pageInfo, Invoices: out}, nil
}

func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return 0, err
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	result := s.db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, updated_at = ?
		 WHERE company_id = ? AND status IN (?, ?) AND due_date IS NOT NULL AND due_date < ?`,
		invoicedomain.InvoiceStatusOverdue,
		time.Now().UTC(),
		companyID,
		invoicedomain.InvoiceStatusSent,
		invoicedomain.InvoiceStatusPartiallyPaid,
		asOf,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info("invoices marked overdue",
			zap.Int64("count", result.RowsAffected),
			zap.String("company_id", companyID.String()),
		)
	}
	return result.RowsAffected, nil
}

// nextInvoiceNumber serializes numbering per company by locking the company
// row for the duration of the transaction. The unique (company, seq) index is
// the backstop: if two transactions still race, the loser surfaces as a
// concurrency conflict instead of a duplicate number.
func (s *Service) nextInvoiceNumber(ctx context.Context, tx *gorm.DB, companyID snowflake.ID) (int64, string, error) {
	var company companydomain.Company
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("id = ?", companyID).
		First(&company).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, "", invoicedomain.ErrInvalidCompany
		}
		return 0, "", err
	}

	var next int64
	err = tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_seq), 0) + 1 FROM invoices WHERE company_id = ?`,
		companyID,
	).Scan(&next).Error
	if err != nil {
		return 0, "", err
	}
	return next, company.InvoicePrefix, nil
}

func (s *Service) insertLineItemsTx(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, lines []invoicedomain.LineItem) error {
	rows := make([]*invoicedomain.LineItem, len(lines))
	for i := range lines {
		lines[i].InvoiceID = invoiceID
		rows[i] = &lines[i]
	}
	return s.lines.WithTrx(tx).BatchCreate(ctx, rows)
}

func (s *Service) buildLineItems(companyID snowflake.ID, inputs []invoicedomain.LineItemInput) ([]invoicedomain.LineItem, error) {
	now := time.Now().UTC()
	lines := make([]invoicedomain.LineItem, 0, len(inputs))
	for _, input := range inputs {
		rate := s.defaultTaxRate
		if input.TaxRate != nil {
			rate = *input.TaxRate
		}

		var itemID *snowflake.ID
		if strings.TrimSpace(input.ItemID) != "" {
			parsed, err := snowflake.ParseString(strings.TrimSpace(input.ItemID))
			if err != nil {
				return nil, invoicedomain.ErrInvalidLineItems
			}
			itemID = &parsed
		}

		lines = append(lines, invoicedomain.LineItem{
			ID:          s.genID.Generate(),
			CompanyID:   companyID,
			ItemID:      itemID,
			Description: strings.TrimSpace(input.Description),
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			TaxRate:     rate,
			LineTotal:   invoicedomain.ComputeLineTotal(input.Quantity, input.UnitPrice, rate),
			CreatedAt:   now,
		})
	}
	return lines, nil
}

func (s *Service) loadInvoiceForUpdate(ctx context.Context, tx *gorm.DB, companyID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("company_id = ? AND id = ?", companyID, invoiceID).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) setStatusTx(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, status invoicedomain.InvoiceStatus) error {
	if err := tx.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		invoice.ID,
	).Error; err != nil {
		return err
	}
	invoice.Status = status
	return nil
}

func (s *Service) emitAudit(ctx context.Context, action string, invoice *invoicedomain.Invoice, extra map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	metadata := map[string]any{
		"customer_id":    invoice.CustomerID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"total":          invoice.Total.String(),
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := invoice.ID.String()
	companyID := invoice.CompanyID
	_ = s.auditSvc.AuditLog(ctx, &companyID, action, "invoice", &targetID, metadata)
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, invoicedomain.ErrInvalidCompany
	}
	return companyID, nil
}
