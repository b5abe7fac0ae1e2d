package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	pkgdb "github.com/smallbiznis/ledgerline/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ChangeStatus(ctx context.Context, req invoicedomain.ChangeStatusRequest) (invoicedomain.Invoice, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidID
	}
	if !invoicedomain.ValidStatus(req.Status) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}
	if req.Status == invoicedomain.InvoiceStatusCancelled {
		return invoicedomain.Invoice{}, s.cancel(ctx, companyID, invoiceID)
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
		if invoice.Status == req.Status {
			updated = *invoice
			return nil
		}
		if !invoicedomain.CanTransition(invoice.Status, req.Status) {
			return invoicedomain.ErrInvalidTransition
		}

		// Leaving DRAFT is the commitment point: receivable balance, stock
		// and the journal all move here, exactly once.
		if invoice.Status == invoicedomain.InvoiceStatusDraft {
			lines, err := s.loadLineItems(ctx, tx, invoice.ID)
			if err != nil {
				return err
			}
			if err := s.activateTx(ctx, tx, invoice, lines, req.SkipCreditCheck); err != nil {
				return err
			}
		}

		if err := s.setStatusTx(ctx, tx, invoice, req.Status); err != nil {
			return err
		}
		updated = *invoice
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.emitAudit(ctx, "invoice.status_changed", &updated, map[string]any{"status": string(updated.Status)})
	if updated.Status != invoicedomain.InvoiceStatusDraft {
		s.obsMetrics.RecordInvoiceActivated(string(updated.Status))
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return err
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return invoicedomain.ErrInvalidID
	}
	return s.cancel(ctx, companyID, invoiceID)
}

func (s *Service) cancel(ctx context.Context, companyID, invoiceID snowflake.ID) error {
	var cancelled invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.loadInvoiceForUpdate(ctx, tx, companyID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if invoice.Status == invoicedomain.InvoiceStatusCancelled {
			return invoicedomain.ErrInvalidTransition
		}
		if invoice.PaidAmount.IsPositive() {
			return invoicedomain.ErrHasPayments
		}

		if invoice.Active() {
			lines, err := s.loadLineItems(ctx, tx, invoice.ID)
			if err != nil {
				return err
			}
			if err := s.deactivateTx(ctx, tx, invoice, lines); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`,
			invoicedomain.InvoiceStatusCancelled, now, now, invoice.ID,
		).Error; err != nil {
			return err
		}
		invoice.Status = invoicedomain.InvoiceStatusCancelled
		invoice.CancelledAt = &now
		cancelled = *invoice
		return nil
	})
	if err != nil {
		return err
	}

	s.emitAudit(ctx, "invoice.cancelled", &cancelled, nil)
	s.obsMetrics.RecordInvoiceCancelled()
	return nil
}

// activateTx applies the invoice's side effects inside the caller's
// transaction: credit check, customer balance, stock movements and the sale
// journal entry.
func (s *Service) activateTx(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, lines []invoicedomain.LineItem, skipCreditCheck bool) error {
	if err := s.applyCustomerBalanceTx(ctx, tx, invoice, invoice.Total, skipCreditCheck); err != nil {
		return err
	}

	for _, line := range lines {
		if line.ItemID == nil {
			continue
		}
		mv := inventorydomain.StockMovement{
			ID:         s.genID.Generate(),
			CompanyID:  invoice.CompanyID,
			ItemID:     *line.ItemID,
			Quantity:   line.Quantity.Neg(),
			Kind:       inventorydomain.MovementKindSale,
			RefType:    "invoice",
			RefID:      invoice.ID,
			OccurredAt: invoice.IssueDate,
		}
		if err := s.inventorySvc.ApplyMovementTx(ctx, tx, mv); err != nil {
			return err
		}
		s.obsMetrics.RecordStockMovement(string(mv.Kind))
	}

	return s.postSaleEntryTx(ctx, tx, invoice, "invoice", false)
}

// deactivateTx reverses everything activateTx did, with offsetting stock
// movements and a mirror-image journal entry under its own source type.
func (s *Service) deactivateTx(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, lines []invoicedomain.LineItem) error {
	if err := s.applyCustomerBalanceTx(ctx, tx, invoice, invoice.Total.Neg(), true); err != nil {
		return err
	}

	for _, line := range lines {
		if line.ItemID == nil {
			continue
		}
		mv := inventorydomain.StockMovement{
			ID:         s.genID.Generate(),
			CompanyID:  invoice.CompanyID,
			ItemID:     *line.ItemID,
			Quantity:   line.Quantity,
			Kind:       inventorydomain.MovementKindSaleReversal,
			RefType:    "invoice",
			RefID:      invoice.ID,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.inventorySvc.ApplyMovementTx(ctx, tx, mv); err != nil {
			return err
		}
		s.obsMetrics.RecordStockMovement(string(mv.Kind))
	}

	return s.postSaleEntryTx(ctx, tx, invoice, "invoice_cancel", true)
}

func (s *Service) applyCustomerBalanceTx(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, delta decimal.Decimal, skipCreditCheck bool) error {
	var customer customerdomain.Customer
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("company_id = ? AND id = ?", invoice.CompanyID, invoice.CustomerID).
		First(&customer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return invoicedomain.ErrInvalidCustomer
		}
		return err
	}

	if delta.IsPositive() {
		check := customerdomain.CheckCredit(customer.Balance, customer.CreditLimit, delta)
		if check.Exceeded {
			if !skipCreditCheck {
				return &customerdomain.CreditLimitError{
					CurrentBalance: check.CurrentBalance,
					CreditLimit:    check.CreditLimit,
					NewBalance:     check.NewBalance,
				}
			}
			s.log.Warn("credit limit override",
				zap.String("customer_id", customer.ID.String()),
				zap.String("invoice_id", invoice.ID.String()),
				zap.String("new_balance", check.NewBalance.String()),
			)
		}
	}

	return tx.WithContext(ctx).Exec(
		`UPDATE customers SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		delta, time.Now().UTC(), customer.ID,
	).Error
}

func (s *Service) postSaleEntryTx(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, sourceType string, reversal bool) error {
	accounts, err := s.ledgerSvc.AccountsByNumber(ctx, tx, invoice.CompanyID, []string{
		ledgerdomain.AccountNumberAccountsReceivable,
		ledgerdomain.AccountNumberSalesRevenue,
		ledgerdomain.AccountNumberTaxPayable,
	})
	if err != nil {
		return err
	}

	lines := []ledgerdomain.EntryLine{
		{AccountID: accounts[ledgerdomain.AccountNumberAccountsReceivable].ID, Debit: invoice.Total},
		{AccountID: accounts[ledgerdomain.AccountNumberSalesRevenue].ID, Credit: invoice.Subtotal},
	}
	if invoice.TaxAmount.IsPositive() {
		lines = append(lines, ledgerdomain.EntryLine{
			AccountID: accounts[ledgerdomain.AccountNumberTaxPayable].ID,
			Credit:    invoice.TaxAmount,
		})
	}
	if reversal {
		for i := range lines {
			lines[i].Debit, lines[i].Credit = lines[i].Credit, lines[i].Debit
		}
	}

	input := ledgerdomain.EntryInput{
		SourceType: sourceType,
		SourceID:   invoice.ID,
		Memo:       "Invoice " + invoice.InvoiceNumber,
		OccurredAt: invoice.IssueDate,
		Lines:      lines,
	}
	if reversal {
		input.Memo = "Cancel invoice " + invoice.InvoiceNumber
		input.OccurredAt = time.Now().UTC()
	}

	if err := s.ledgerSvc.PostEntryTx(ctx, tx, invoice.CompanyID, input); err != nil {
		return err
	}
	s.obsMetrics.RecordJournalEntry(sourceType)
	return nil
}

func (s *Service) loadLineItems(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.LineItem, error) {
	var lines []invoicedomain.LineItem
	err := tx.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id asc").
		Find(&lines).Error
	return lines, err
}
