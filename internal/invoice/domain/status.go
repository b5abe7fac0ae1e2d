package domain

import "github.com/shopspring/decimal"

// transitions is the authoritative table of caller-initiated status changes.
// Payment-driven recomputation (PARTIALLY_PAID, PAID and the floor back to
// SENT) goes through StatusForPaid instead and is not listed here.
var transitions = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceStatusDraft: {
		InvoiceStatusSent:      true,
		InvoiceStatusOverdue:   true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusSent: {
		InvoiceStatusOverdue:   true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusOverdue: {
		InvoiceStatusSent:      true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusPartiallyPaid: {
		InvoiceStatusOverdue:   true,
		InvoiceStatusCancelled: true,
	},
	InvoiceStatusPaid:      {},
	InvoiceStatusCancelled: {},
}

// CanTransition reports whether a caller may move an invoice from one status
// to another. Undefined transitions are rejected outright.
func CanTransition(from, to InvoiceStatus) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return allowed[to]
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s InvoiceStatus) bool {
	_, ok := transitions[s]
	return ok
}

// StatusForPaid derives the payment-driven status from the paid amount:
// PAID when paid covers the total, PARTIALLY_PAID for anything in between,
// and the floor status (SENT) when paid returns to zero.
func StatusForPaid(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusSent
	}
}
