package refund

import "github.com/shopspring/decimal"

// perUnitTaxScale is the scale at which per-unit tax is computed before
// multiplying by the selected quantity. Matches the 2-decimal, half-up
// convention used for display formatting.
const perUnitTaxScale = 2

// Subtotal sums the selected product quantities times their unit prices,
// plus the full total of every selected fee and shipping line.
func Subtotal(sel *Selection) decimal.Decimal {
	subtotal := decimal.Zero
	for _, ps := range sel.products {
		if ps.quantity == 0 {
			continue
		}
		subtotal = subtotal.Add(ps.line.UnitPrice.Mul(decimalFromInt(ps.quantity)))
	}
	for _, fs := range sel.fees {
		if fs.selected {
			subtotal = subtotal.Add(fs.line.Total)
		}
	}
	for _, ss := range sel.shipping {
		if ss.selected {
			subtotal = subtotal.Add(ss.line.Total)
		}
	}
	return subtotal
}

// Tax sums the per-unit tax of selected product quantities plus the full tax
// of every selected fee and shipping line. Per-unit tax is the line's total
// tax divided by the original quantity, rounded half-up at two decimals
// before multiplication.
func Tax(sel *Selection) decimal.Decimal {
	tax := decimal.Zero
	for _, ps := range sel.products {
		if ps.quantity == 0 {
			continue
		}
		unit := perUnitTax(ps.line.TotalTax, ps.line.Quantity)
		tax = tax.Add(unit.Mul(decimalFromInt(ps.quantity)))
	}
	for _, fs := range sel.fees {
		if fs.selected {
			tax = tax.Add(fs.line.TotalTax)
		}
	}
	for _, ss := range sel.shipping {
		if ss.selected {
			tax = tax.Add(ss.line.TotalTax)
		}
	}
	return tax
}

// Total is Subtotal plus Tax.
func Total(sel *Selection) decimal.Decimal {
	return Subtotal(sel).Add(Tax(sel))
}

// perUnitTax computes the tax attributable to one unit of a product line.
func perUnitTax(totalTax decimal.Decimal, originalQuantity int64) decimal.Decimal {
	if originalQuantity <= 0 {
		return decimal.Zero
	}
	return totalTax.DivRound(decimalFromInt(originalQuantity), perUnitTaxScale)
}

// IsEquivalent reports whether two amounts are financially equal: numeric
// comparison, insensitive to scale (0 == 0.00). Nil is treated as zero.
func IsEquivalent(a, b *decimal.Decimal) bool {
	av, bv := decimal.Zero, decimal.Zero
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av.Cmp(bv) == 0
}

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}
