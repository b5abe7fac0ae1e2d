package domain

import "github.com/shopspring/decimal"

// Totals is the derived money summary of a set of line items.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeLineTotal returns quantity × unitPrice × (1 + taxRate).
func ComputeLineTotal(quantity, unitPrice, taxRate decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Mul(decimal.NewFromInt(1).Add(taxRate))
}

// ComputeTotals derives the invoice summary from validated line inputs.
// defaultTaxRate is used for lines that do not carry their own rate.
func ComputeTotals(lines []LineItemInput, defaultTaxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, line := range lines {
		rate := defaultTaxRate
		if line.TaxRate != nil {
			rate = *line.TaxRate
		}
		net := line.Quantity.Mul(line.UnitPrice)
		subtotal = subtotal.Add(net)
		tax = tax.Add(net.Mul(rate))
	}
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}
}

// ValidateLineItems rejects malformed line inputs before anything is written.
func ValidateLineItems(lines []LineItemInput) error {
	if len(lines) == 0 {
		return ErrInvalidLineItems
	}
	for _, line := range lines {
		if !line.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if line.UnitPrice.IsNegative() {
			return ErrInvalidUnitPrice
		}
		if line.TaxRate != nil && line.TaxRate.IsNegative() {
			return ErrInvalidTaxRate
		}
	}
	return nil
}
