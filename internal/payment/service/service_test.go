package service

import (
	"testing"

	invoicedomain "github.com/smallbiznis/ledgerline/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/ledgerline/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartialThenFullPayment(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)
	require.True(t, env.customerBalance(t).Equal(dec("230")))

	first, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("100"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.Equal(dec("100")))
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, reloaded.Status)
	assert.True(t, env.customerBalance(t).Equal(dec("130")))

	_, err = env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("130"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	reloaded = env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.Equal(dec("230")))
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, reloaded.Status)
	assert.True(t, env.customerBalance(t).IsZero())

	// Each payment posted Dr Cash / Cr AR at sequence zero.
	entries := env.paymentEntries(t, first.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].SourceSeq)
	assert.True(t, env.accountBalance(t, ledgerdomain.AccountNumberCash).Equal(dec("230")))
	assert.True(t, env.accountBalance(t, ledgerdomain.AccountNumberAccountsReceivable).IsZero())
}

func TestUnappliedPaymentStillReducesBalance(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	_, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     dec("50"),
		Method:     "cash",
	})
	require.NoError(t, err)

	// The invoice is untouched; the customer's receivable still shrinks.
	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloaded.Status)
	assert.True(t, env.customerBalance(t).Equal(dec("180")))
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     dec("0"),
		Method:     "cash",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     dec("10"),
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	_, err = env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  env.node.Generate().String(),
		Amount:     dec("10"),
		Method:     "cash",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidInvoice)
}

func TestPaymentToDraftInvoiceRejected(t *testing.T) {
	env := newTestEnv(t)

	draft, err := env.invoiceSvc.Create(env.ctx, invoicedomain.CreateInvoiceRequest{
		CustomerID: env.customer.ID.String(),
		LineItems: []invoicedomain.LineItemInput{
			{Description: "Widget", Quantity: dec("1"), UnitPrice: dec("100")},
		},
	})
	require.NoError(t, err)

	_, err = env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  draft.ID.String(),
		Amount:     dec("10"),
		Method:     "cash",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrInvoiceNotActive)

	// Nothing was written on the failed attempt.
	assert.True(t, env.customerBalance(t).IsZero())
	var count int64
	require.NoError(t, env.db.Model(&paymentdomain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateAmountPostsAdjustment(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("100"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	newAmount := dec("150")
	updated, err := env.svc.Update(env.ctx, paymentdomain.UpdatePaymentRequest{
		ID:     payment.ID.String(),
		Amount: &newAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Revision)
	assert.True(t, updated.Amount.Equal(dec("150")))

	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.Equal(dec("150")))
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, reloaded.Status)
	assert.True(t, env.customerBalance(t).Equal(dec("80")))

	// The original entry stays; the diff lands as a second entry under the
	// bumped revision.
	entries := env.paymentEntries(t, payment.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].SourceSeq)
	assert.Equal(t, 1, entries[1].SourceSeq)
	assert.True(t, env.accountBalance(t, ledgerdomain.AccountNumberCash).Equal(dec("150")))
}

func TestUpdateWithoutAmountChangeSkipsJournal(t *testing.T) {
	env := newTestEnv(t)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     dec("40"),
		Method:     "cash",
	})
	require.NoError(t, err)

	method := "check"
	updated, err := env.svc.Update(env.ctx, paymentdomain.UpdatePaymentRequest{
		ID:     payment.ID.String(),
		Method: &method,
	})
	require.NoError(t, err)
	assert.Equal(t, "check", updated.Method)
	assert.Equal(t, 0, updated.Revision)
	assert.Len(t, env.paymentEntries(t, payment.ID), 1)
}

func TestRelinkMovesFullAmount(t *testing.T) {
	env := newTestEnv(t)
	first := env.sentInvoice(t)
	second := env.sentInvoice(t)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  first.ID.String(),
		Amount:     dec("100"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	target := second.ID.String()
	_, err = env.svc.Update(env.ctx, paymentdomain.UpdatePaymentRequest{
		ID:        payment.ID.String(),
		InvoiceID: &target,
	})
	require.NoError(t, err)

	reloadedFirst := env.reloadInvoice(t, first.ID)
	assert.True(t, reloadedFirst.PaidAmount.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloadedFirst.Status)

	reloadedSecond := env.reloadInvoice(t, second.ID)
	assert.True(t, reloadedSecond.PaidAmount.Equal(dec("100")))
	assert.Equal(t, invoicedomain.InvoiceStatusPartiallyPaid, reloadedSecond.Status)

	// Same amount, so the customer balance is unchanged by the relink.
	assert.True(t, env.customerBalance(t).Equal(dec("360")))
}

func TestDetachClearsInvoice(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("100"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	empty := ""
	updated, err := env.svc.Update(env.ctx, paymentdomain.UpdatePaymentRequest{
		ID:        payment.ID.String(),
		InvoiceID: &empty,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.InvoiceID)

	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloaded.Status)
}

func TestDeleteReversesEverything(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("230"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)
	require.Equal(t, invoicedomain.InvoiceStatusPaid, env.reloadInvoice(t, invoice.ID).Status)

	require.NoError(t, env.svc.Delete(env.ctx, payment.ID.String()))

	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloaded.Status)
	assert.True(t, env.customerBalance(t).Equal(dec("230")))

	_, err = env.svc.GetByID(env.ctx, payment.ID.String())
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)

	// The reversal entry outlives the deleted payment row.
	entries := env.paymentEntries(t, payment.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[1].SourceSeq)
	assert.True(t, env.accountBalance(t, ledgerdomain.AccountNumberCash).IsZero())
	assert.True(t, env.accountBalance(t, ledgerdomain.AccountNumberAccountsReceivable).Equal(dec("230")))
}

func TestPaidAmountNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("100"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	// Simulate drift: someone shrank the paid amount out from under us.
	require.NoError(t, env.db.Exec(
		`UPDATE invoices SET paid_amount = ? WHERE id = ?`, dec("40"), invoice.ID,
	).Error)

	require.NoError(t, env.svc.Delete(env.ctx, payment.ID.String()))

	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.IsZero(), "clamped at zero, not -60")
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloaded.Status)
}

func TestOverpaymentRejected(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	// 300 against a 230 invoice never lands; the whole transaction rolls
	// back, so neither the payment row nor the balance change survives.
	_, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("300"),
		Method:     "bank_transfer",
	})
	assert.ErrorIs(t, err, paymentdomain.ErrOverpayment)

	reloaded := env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusSent, reloaded.Status)
	assert.True(t, env.customerBalance(t).Equal(dec("230")))

	var count int64
	require.NoError(t, env.db.Model(&paymentdomain.Payment{}).Count(&count).Error)
	assert.Zero(t, count)

	payment, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("200"),
		Method:     "bank_transfer",
	})
	require.NoError(t, err)

	// Bumping the amount past what the invoice still owes is rejected too.
	over := dec("250")
	_, err = env.svc.Update(env.ctx, paymentdomain.UpdatePaymentRequest{
		ID:     payment.ID.String(),
		Amount: &over,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrOverpayment)

	reloaded = env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.Equal(dec("200")))
	assert.True(t, env.customerBalance(t).Equal(dec("30")))

	// Paying to exactly the total is the boundary case and stays allowed.
	exact := dec("230")
	_, err = env.svc.Update(env.ctx, paymentdomain.UpdatePaymentRequest{
		ID:     payment.ID.String(),
		Amount: &exact,
	})
	require.NoError(t, err)

	reloaded = env.reloadInvoice(t, invoice.ID)
	assert.True(t, reloaded.PaidAmount.Equal(dec("230")))
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, reloaded.Status)
	assert.True(t, env.customerBalance(t).IsZero())
}

func TestListFiltersByInvoice(t *testing.T) {
	env := newTestEnv(t)
	invoice := env.sentInvoice(t)

	applied, err := env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		InvoiceID:  invoice.ID.String(),
		Amount:     dec("10"),
		Method:     "cash",
	})
	require.NoError(t, err)
	_, err = env.svc.Create(env.ctx, paymentdomain.CreatePaymentRequest{
		CustomerID: env.customer.ID.String(),
		Amount:     dec("20"),
		Method:     "cash",
	})
	require.NoError(t, err)

	resp, err := env.svc.List(env.ctx, paymentdomain.ListPaymentRequest{InvoiceID: invoice.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Payments, 1)
	assert.Equal(t, applied.ID, resp.Payments[0].ID)
}
