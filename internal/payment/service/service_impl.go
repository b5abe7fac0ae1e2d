package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/ledgerline/internal/audit/domain"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/ledgerline/internal/payment/domain"
	pkgdb "github.com/smallbiznis/ledgerline/pkg/db"
	"github.com/smallbiznis/ledgerline/pkg/db/pagination"
	"github.com/smallbiznis/ledgerline/pkg/repository"
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
	payments   repository.Repository[paymentdomain.Payment]
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		ledgerSvc:  p.LedgerSvc,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
		payments:   repository.ProvideStore[paymentdomain.Payment](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req paymentdomain.CreatePaymentRequest) (paymentdomain.Payment, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidCustomer
	}
	if !req.Amount.IsPositive() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMethod
	}

	var invoiceID *snowflake.ID
	if strings.TrimSpace(req.InvoiceID) != "" {
		parsed, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
		if err != nil {
			return paymentdomain.Payment{}, paymentdomain.ErrInvalidInvoice
		}
		invoiceID = &parsed
	}

	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	payment := paymentdomain.Payment{
		ID:         s.genID.Generate(),
		CompanyID:  companyID,
		CustomerID: customerID,
		InvoiceID:  invoiceID,
		Amount:     req.Amount,
		Method:     method,
		PaidAt:     paidAt,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureCustomerTx(ctx, tx, companyID, customerID); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}
		if payment.InvoiceID != nil {
			if err := s.applyToInvoiceTx(ctx, tx, companyID, *payment.InvoiceID, payment.Amount); err != nil {
				return err
			}
		}
		// Payments reduce what the customer owes whether or not they are
		// applied to an invoice.
		if err := s.adjustCustomerBalanceTx(ctx, tx, customerID, payment.Amount.Neg()); err != nil {
			return err
		}
		return s.postPaymentEntryTx(ctx, tx, &payment, payment.Amount, 0, "Payment received")
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.emitAudit(ctx, "payment.created", &payment, nil)
	s.obsMetrics.RecordPayment("create")
	return payment, nil
}

func (s *Service) Update(ctx context.Context, req paymentdomain.UpdatePaymentRequest) (paymentdomain.Payment, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	paymentID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidID
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}

	var updated paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.loadPaymentForUpdate(ctx, tx, companyID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}

		newAmount := payment.Amount
		if req.Amount != nil {
			newAmount = *req.Amount
		}

		newInvoiceID := payment.InvoiceID
		relink := false
		if req.InvoiceID != nil {
			if strings.TrimSpace(*req.InvoiceID) == "" {
				newInvoiceID = nil
			} else {
				parsed, err := snowflake.ParseString(strings.TrimSpace(*req.InvoiceID))
				if err != nil {
					return paymentdomain.ErrInvalidInvoice
				}
				newInvoiceID = &parsed
			}
			relink = !sameInvoice(payment.InvoiceID, newInvoiceID)
		}

		diff := newAmount.Sub(payment.Amount)

		switch {
		case relink:
			// Relinking detaches the full original effect before applying
			// the full new one; diffing amounts across invoices would leave
			// both invoices wrong.
			if payment.InvoiceID != nil {
				if err := s.applyToInvoiceTx(ctx, tx, companyID, *payment.InvoiceID, payment.Amount.Neg()); err != nil {
					return err
				}
			}
			if newInvoiceID != nil {
				if err := s.applyToInvoiceTx(ctx, tx, companyID, *newInvoiceID, newAmount); err != nil {
					return err
				}
			}
		case payment.InvoiceID != nil && !diff.IsZero():
			if err := s.applyToInvoiceTx(ctx, tx, companyID, *payment.InvoiceID, diff); err != nil {
				return err
			}
		}

		if !diff.IsZero() {
			if err := s.adjustCustomerBalanceTx(ctx, tx, payment.CustomerID, diff.Neg()); err != nil {
				return err
			}
		}

		updates := map[string]any{
			"updated_at": time.Now().UTC(),
		}
		if req.Amount != nil {
			updates["amount"] = newAmount
		}
		if req.Method != nil {
			method := strings.TrimSpace(*req.Method)
			if method == "" {
				return paymentdomain.ErrInvalidMethod
			}
			updates["method"] = method
			payment.Method = method
		}
		if req.PaidAt != nil {
			updates["paid_at"] = *req.PaidAt
			payment.PaidAt = *req.PaidAt
		}
		if req.InvoiceID != nil {
			updates["invoice_id"] = newInvoiceID
		}
		if req.Notes != nil {
			updates["notes"] = strings.TrimSpace(*req.Notes)
			payment.Notes = strings.TrimSpace(*req.Notes)
		}

		if !diff.IsZero() {
			payment.Revision++
			updates["revision"] = payment.Revision
			memo := "Payment adjusted"
			if err := s.postPaymentEntryTx(ctx, tx, payment, diff, payment.Revision, memo); err != nil {
				return err
			}
		}

		if err := tx.WithContext(ctx).
			Model(&paymentdomain.Payment{}).
			Where("id = ?", payment.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		payment.Amount = newAmount
		payment.InvoiceID = newInvoiceID
		updated = *payment
		return nil
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.emitAudit(ctx, "payment.updated", &updated, nil)
	s.obsMetrics.RecordPayment("update")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return err
	}
	paymentID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return paymentdomain.ErrInvalidID
	}

	var removed paymentdomain.Payment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.loadPaymentForUpdate(ctx, tx, companyID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrNotFound
		}

		if payment.InvoiceID != nil {
			if err := s.applyToInvoiceTx(ctx, tx, companyID, *payment.InvoiceID, payment.Amount.Neg()); err != nil {
				return err
			}
		}
		if err := s.adjustCustomerBalanceTx(ctx, tx, payment.CustomerID, payment.Amount); err != nil {
			return err
		}
		// The reversal entry outlives the payment row; the journal is the
		// durable record.
		if err := s.postPaymentEntryTx(ctx, tx, payment, payment.Amount.Neg(), payment.Revision+1, "Payment reversed"); err != nil {
			return err
		}

		removed = *payment
		return s.payments.WithTrx(tx).Delete(ctx, payment.ID.String())
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "payment.deleted", &removed, nil)
	s.obsMetrics.RecordPayment("delete")
	return nil
}

func (s *Service) GetByID(ctx context.Context, id string) (paymentdomain.Payment, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	paymentID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidID
	}

	var payment paymentdomain.Payment
	err = s.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, paymentID).
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return paymentdomain.Payment{}, paymentdomain.ErrNotFound
		}
		return paymentdomain.Payment{}, err
	}
	return payment, nil
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListPaymentRequest) (paymentdomain.ListPaymentResponse, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return paymentdomain.ListPaymentResponse{}, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	stmt := s.db.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("company_id = ?", companyID)
	if req.CustomerID != "" {
		customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
		if err != nil {
			return paymentdomain.ListPaymentResponse{}, paymentdomain.ErrInvalidCustomer
		}
		stmt = stmt.Where("customer_id = ?", customerID)
	}
	if req.InvoiceID != "" {
		invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
		if err != nil {
			return paymentdomain.ListPaymentResponse{}, paymentdomain.ErrInvalidInvoice
		}
		stmt = stmt.Where("invoice_id = ?", invoiceID)
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return paymentdomain.ListPaymentResponse{}, paymentdomain.ErrInvalidID
		}
		if cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	var payments []*paymentdomain.Payment
	if err := stmt.Order("id desc").Limit(size + 1).Find(&payments).Error; err != nil {
		return paymentdomain.ListPaymentResponse{}, err
	}

	payments, pageInfo := pagination.BuildCursorPageInfo(payments, size, func(p *paymentdomain.Payment) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: p.ID.String()})
		return token
	})

	out := make([]paymentdomain.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, *p)
	}
	return paymentdomain.ListPaymentResponse{PageInfo: *pageInfo, Payments: out}, nil
}

// applyToInvoiceTx moves an invoice's paid amount by delta and recomputes its
// payment-derived status. The row stays locked until the transaction ends.
func (s *Service) applyToInvoiceTx(ctx context.Context, tx *gorm.DB, companyID, invoiceID snowflake.ID, delta decimal.Decimal) error {
	var invoice invoicedomain.Invoice
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("company_id = ? AND id = ?", companyID, invoiceID).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return paymentdomain.ErrInvalidInvoice
		}
		return err
	}
	if !invoice.Active() {
		return paymentdomain.ErrInvoiceNotActive
	}

	newPaid := invoice.PaidAmount.Add(delta)
	// Paid amount stays within [0, total]. Applying more than the invoice
	// still owes is rejected; reversals that would dip below zero clamp.
	if delta.IsPositive() && newPaid.GreaterThan(invoice.Total) {
		return paymentdomain.ErrOverpayment
	}
	if newPaid.IsNegative() {
		newPaid = decimal.Zero
	}
	status := invoicedomain.StatusForPaid(newPaid, invoice.Total)

	return tx.WithContext(ctx).Exec(
		`UPDATE invoices SET paid_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		newPaid, status, time.Now().UTC(), invoice.ID,
	).Error
}

func (s *Service) adjustCustomerBalanceTx(ctx context.Context, tx *gorm.DB, customerID snowflake.ID, delta decimal.Decimal) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE customers SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		delta, time.Now().UTC(), customerID,
	).Error
}

func (s *Service) ensureCustomerTx(ctx context.Context, tx *gorm.DB, companyID, customerID snowflake.ID) error {
	var customer customerdomain.Customer
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("company_id = ? AND id = ?", companyID, customerID).
		First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return paymentdomain.ErrInvalidCustomer
		}
		return err
	}
	return nil
}

// postPaymentEntryTx posts Dr Cash / Cr Accounts Receivable for a positive
// amount and the mirror image for a negative one, keyed to the payment and
// the given revision.
func (s *Service) postPaymentEntryTx(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, amount decimal.Decimal, seq int, memo string) error {
	if amount.IsZero() {
		return nil
	}

	accounts, err := s.ledgerSvc.AccountsByNumber(ctx, tx, payment.CompanyID, []string{
		ledgerdomain.AccountNumberCash,
		ledgerdomain.AccountNumberAccountsReceivable,
	})
	if err != nil {
		return err
	}

	abs := amount.Abs()
	cash := ledgerdomain.EntryLine{AccountID: accounts[ledgerdomain.AccountNumberCash].ID}
	receivable := ledgerdomain.EntryLine{AccountID: accounts[ledgerdomain.AccountNumberAccountsReceivable].ID}
	if amount.IsPositive() {
		cash.Debit = abs
		receivable.Credit = abs
	} else {
		cash.Credit = abs
		receivable.Debit = abs
	}

	input := ledgerdomain.EntryInput{
		SourceType: "payment",
		SourceID:   payment.ID,
		SourceSeq:  seq,
		Memo:       memo,
		OccurredAt: payment.PaidAt,
		Lines:      []ledgerdomain.EntryLine{cash, receivable},
	}
	if err := s.ledgerSvc.PostEntryTx(ctx, tx, payment.CompanyID, input); err != nil {
		return err
	}
	s.obsMetrics.RecordJournalEntry("payment")
	return nil
}

func (s *Service) loadPaymentForUpdate(ctx context.Context, tx *gorm.DB, companyID, paymentID snowflake.ID) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("company_id = ? AND id = ?", companyID, paymentID).
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, payment *paymentdomain.Payment, extra map[string]any) {
	if s.auditSvc == nil || payment == nil {
		return
	}
	metadata := map[string]any{
		"customer_id": payment.CustomerID.String(),
		"amount":      payment.Amount.String(),
		"method":      payment.Method,
	}
	if payment.InvoiceID != nil {
		metadata["invoice_id"] = payment.InvoiceID.String()
	}
	for key, value := range extra {
		metadata[key] = value
	}

	targetID := payment.ID.String()
	companyID := payment.CompanyID
	_ = s.auditSvc.AuditLog(ctx, &companyID, action, "payment", &targetID, metadata)
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, paymentdomain.ErrInvalidCompany
	}
	return companyID, nil
}

func sameInvoice(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
