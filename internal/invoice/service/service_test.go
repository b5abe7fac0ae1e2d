package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (e *testEnv) widgetLine(qty string) invoicedomain.LineItemInput {
	return invoicedomain.LineItemInput{
		ItemID:      e.item.ID.String(),
		Description: "Widget",
		Quantity:    dec(qty),
		UnitPrice:   dec("100"),
	}
}

func TestCreateDraftHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)

	invoice, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("2")},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusDraft, invoice.Status)
	assert.Equal(t, "INV-000001", invoice.InvoiceNumber)
	assert.True(t, invoice.Subtotal.Equal(dec("200")))
	assert.True(t, invoice.TaxAmount.Equal(dec("30")))
	assert.True(t, invoice.Total.Equal(dec("230")))

	// Drafts are inert: no balance, stock or journal effect yet.
	assert.True(t, env.reloadCustomer(t).Balance.IsZero())
	assert.True(t, env.reloadItem(t).QuantityOnHand.Equal(dec("10")))
	assert.Empty(t, env.movements(t))
	assert.Empty(t, env.journalEntries(t, "invoice"))
}

func TestCreateAsSentAppliesAllEffects(t *testing.T) {
	env := newTestEnv(t)

	invoice, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Status:     invoicedomain.InvoiceStatusSent,
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("2")},
	})
	require.NoError(t, err)

	assert.Equal(t, invoicedomain.InvoiceStatusSent, invoice.Status)
	assert.True(t, invoice.Total.Equal(dec("230")))

	assert.True(t, env.reloadCustomer(t).Balance.Equal(dec("230")))
	assert.True(t, env.reloadItem(t).QuantityOnHand.Equal(dec("8")))

	movements := env.movements(t)
	require.Len(t, movements, 1)
	assert.Equal(t, "SALE", string(movements[0].Kind))
	assert.True(t, movements[0].Quantity.Equal(dec("-2")))
	assert.Equal(t, "invoice", movements[0].RefType)
	assert.Equal(t, invoice.ID, movements[0].RefID)

	entries := env.journalEntries(t, "invoice")
	require.Len(t, entries, 1)
	assert.Equal(t, invoice.ID, entries[0].SourceID)

	assert.True(t, env.accountBalance(t, "1200").Equal(dec("230")), "accounts receivable")
	assert.True(t, env.accountBalance(t, "4100").Equal(dec("200")), "sales revenue")
	assert.True(t, env.accountBalance(t, "2100").Equal(dec("30")), "tax payable")
}

func TestCreateRejectsDerivedAndTerminalStatuses(t *testing.T) {
	env := newTestEnv(t)

	for _, status := range []invoicedomain.InvoiceStatus{
		invoicedomain.InvoiceStatusPaid,
		invoicedomain.InvoiceStatusPartiallyPaid,
		invoicedomain.InvoiceStatusCancelled,
	} {
		_, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
			CustomerID: env.customer.ID.String(),
			Status:     status,
			LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
		})
		assert.ErrorIs(t, err, invoicedomain.ErrInvalidStatus, string(status))
	}
}

func TestSequentialNumbering(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)
	second, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.InvoiceSeq)
	assert.Equal(t, int64(2), second.InvoiceSeq)
	assert.Equal(t, "INV-000001", first.InvoiceNumber)
	assert.Equal(t, "INV-000002", second.InvoiceNumber)

	// Numbers survive deletion of the latest draft without reuse only when
	// the max-seq scan sees remaining rows; deleting the tail frees its seq.
	require.NoError(t, env.svc.Delete(env.ctx, second.ID.String()))
	third, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), third.InvoiceSeq)
}

func TestUpdateDraftRecomputesTotals(t *testing.T) {
	env := newTestEnv(t)

	invoice, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("2")},
	})
	require.NoError(t, err)

	notes := "rush order"
	updated, err := env.svc.Update(env.ctx, invoicedomain.UpdateInvoiceRequest{
		ID:        invoice.ID.String(),
		LineItems: []invoicedomain.LineItemInput{env.widgetLine("3")},
		Notes:     &notes,
	})
	require.NoError(t, err)

	assert.True(t, updated.Subtotal.Equal(dec("300")))
	assert.True(t, updated.Total.Equal(dec("345")))
	require.Len(t, updated.LineItems, 1)
	assert.True(t, updated.LineItems[0].Quantity.Equal(dec("3")))

	// The old lines are gone, not orphaned.
	var count int64
	require.NoError(t, env.db.Model(&invoicedomain.LineItem{}).
		Where("invoice_id = ?", invoice.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateAndDeleteRequireDraft(t *testing.T) {
	env := newTestEnv(t)

	invoice, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Status:     invoicedomain.InvoiceStatusSent,
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	_, err = env.svc.Update(env.ctx, invoicedomain.UpdateInvoiceRequest{
		ID:        invoice.ID.String(),
		LineItems: []invoicedomain.LineItemInput{env.widgetLine("2")},
	})
	assert.ErrorIs(t, err, invoicedomain.ErrNotEditable)

	assert.ErrorIs(t, env.svc.Delete(env.ctx, invoice.ID.String()), invoicedomain.ErrNotEditable)
}

func TestDeleteDraft(t *testing.T) {
	env := newTestEnv(t)

	invoice, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(env.ctx, invoice.ID.String()))

	_, err = env.svc.GetByID(env.ctx, invoice.ID.String())
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestMarkOverdue(t *testing.T) {
	env := newTestEnv(t)
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	nextWeek := time.Now().UTC().Add(7 * 24 * time.Hour)

	overdue, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Status:     invoicedomain.InvoiceStatusSent,
		DueDate:    &yesterday,
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	current, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Status:     invoicedomain.InvoiceStatusSent,
		DueDate:    &nextWeek,
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	// Drafts never go overdue, even past due date.
	draft, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		DueDate:    &yesterday,
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	count, err := env.svc.MarkOverdue(env.ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reloaded, err := env.svc.GetByID(env.ctx, overdue.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, reloaded.Status)

	reloaded, err = env.svc.GetByID(env.ctx, current.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloaded.Status)

	reloaded, err = env.svc.GetByID(env.ctx, draft.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusDraft, reloaded.Status)
}

func TestListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)
	sent, err := env.svc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		Status:     invoicedomain.InvoiceStatusSent,
		LineItems:  []invoicedomain.LineItemInput{env.widgetLine("1")},
	})
	require.NoError(t, err)

	status := invoicedomain.InvoiceStatusSent
	resp, err := env.svc.List(env.ctx, invoicedomain.ListInvoiceRequest{Status: &status})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 1)
	assert.Equal(t, sent.ID, resp.Invoices[0].ID)
}
