package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    InvoiceStatus
		to      InvoiceStatus
		allowed bool
	}{
		{InvoiceStatusDraft, InvoiceStatusSent, true},
		{InvoiceStatusDraft, InvoiceStatusOverdue, true},
		{InvoiceStatusDraft, InvoiceStatusCancelled, true},
		{InvoiceStatusSent, InvoiceStatusOverdue, true},
		{InvoiceStatusSent, InvoiceStatusCancelled, true},
		{InvoiceStatusOverdue, InvoiceStatusSent, true},
		{InvoiceStatusPartiallyPaid, InvoiceStatusOverdue, true},
		{InvoiceStatusPartiallyPaid, InvoiceStatusCancelled, true},

		// Payment-derived statuses are never caller-assignable.
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusSent, InvoiceStatusPaid, false},
		{InvoiceStatusSent, InvoiceStatusPartiallyPaid, false},

		// Terminal states stay terminal.
		{InvoiceStatusPaid, InvoiceStatusSent, false},
		{InvoiceStatusPaid, InvoiceStatusCancelled, false},
		{InvoiceStatusCancelled, InvoiceStatusSent, false},
		{InvoiceStatusCancelled, InvoiceStatusDraft, false},

		{InvoiceStatusSent, InvoiceStatusDraft, false},
		{InvoiceStatus("BOGUS"), InvoiceStatusSent, false},
		{InvoiceStatusSent, InvoiceStatus("BOGUS"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, status := range []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusSent,
		InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
	} {
		assert.True(t, ValidStatus(status), string(status))
	}
	assert.False(t, ValidStatus(InvoiceStatus("SHIPPED")))
	assert.False(t, ValidStatus(InvoiceStatus("")))
}

func TestStatusForPaid(t *testing.T) {
	total := decimal.NewFromInt(230)

	assert.Equal(t, InvoiceStatusSent, StatusForPaid(decimal.Zero, total))
	assert.Equal(t, InvoiceStatusPartiallyPaid, StatusForPaid(decimal.NewFromInt(100), total))
	assert.Equal(t, InvoiceStatusPartiallyPaid, StatusForPaid(decimal.NewFromFloat(229.99), total))
	assert.Equal(t, InvoiceStatusPaid, StatusForPaid(total, total))
	assert.Equal(t, InvoiceStatusPaid, StatusForPaid(decimal.NewFromInt(300), total))

	// A zero-total invoice never reports PAID off the back of a zero payment.
	assert.Equal(t, InvoiceStatusSent, StatusForPaid(decimal.Zero, decimal.Zero))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "INV-000001", FormatNumber("INV", 1))
	assert.Equal(t, "ACME-000042", FormatNumber("ACME", 42))
	assert.Equal(t, "INV-001000", FormatNumber("", 1000))
}
