package refund

import (
	"github.com/google/uuid"

	"github.com/storecraft/refund-server/internal/module/order"
)

// Selection tracks which lines of an order are chosen for a partial refund
// and by how much. It is owned by a single refund session and mutated only
// through its methods; derived totals are never cached here — the calculator
// recomputes them on every read.
type Selection struct {
	products map[uuid.UUID]*productSelection
	fees     map[uuid.UUID]*feeSelection
	shipping map[uuid.UUID]*shippingSelection
}

type productSelection struct {
	line     order.ProductSnapshot
	quantity int64
}

type feeSelection struct {
	line     order.FeeSnapshot
	selected bool
}

type shippingSelection struct {
	line     order.ShippingSnapshot
	selected bool
}

// NewSelection builds an empty selection over the order's refundable lines.
func NewSelection(snap *order.Snapshot) *Selection {
	s := &Selection{
		products: make(map[uuid.UUID]*productSelection, len(snap.LineItems)),
		fees:     make(map[uuid.UUID]*feeSelection, len(snap.FeeLines)),
		shipping: make(map[uuid.UUID]*shippingSelection, len(snap.ShippingLines)),
	}
	for _, li := range snap.LineItems {
		s.products[li.ItemID] = &productSelection{line: li}
	}
	for _, fl := range snap.FeeLines {
		s.fees[fl.FeeID] = &feeSelection{line: fl}
	}
	for _, sl := range snap.ShippingLines {
		s.shipping[sl.ShippingID] = &shippingSelection{line: sl}
	}
	return s
}

// SetProductQuantity sets the refund quantity for a product line. Quantities
// outside [0, maxQuantity] are rejected with ErrInvalidQuantity and never
// reach the calculator.
func (s *Selection) SetProductQuantity(itemID uuid.UUID, quantity int64) error {
	ps, ok := s.products[itemID]
	if !ok {
		return ErrLineNotFound
	}
	if quantity < 0 || quantity > ps.line.MaxQuantity {
		return ErrInvalidQuantity
	}
	ps.quantity = quantity
	return nil
}

// ToggleFee marks a fee line selected or not. Fee refunds are all-or-nothing.
func (s *Selection) ToggleFee(feeID uuid.UUID, selected bool) error {
	fs, ok := s.fees[feeID]
	if !ok {
		return ErrLineNotFound
	}
	fs.selected = selected
	return nil
}

// ToggleShipping marks a shipping line selected or not.
func (s *Selection) ToggleShipping(shippingID uuid.UUID, selected bool) error {
	ss, ok := s.shipping[shippingID]
	if !ok {
		return ErrLineNotFound
	}
	ss.selected = selected
	return nil
}

// SelectAll sets every product line to its maximum refundable quantity and
// selects every fee and shipping line.
func (s *Selection) SelectAll() {
	for _, ps := range s.products {
		ps.quantity = ps.line.MaxQuantity
	}
	for _, fs := range s.fees {
		fs.selected = true
	}
	for _, ss := range s.shipping {
		ss.selected = true
	}
}

// ClearAll resets the selection to empty.
func (s *Selection) ClearAll() {
	for _, ps := range s.products {
		ps.quantity = 0
	}
	for _, fs := range s.fees {
		fs.selected = false
	}
	for _, ss := range s.shipping {
		ss.selected = false
	}
}

// ProductQuantity returns the selected quantity for a product line.
func (s *Selection) ProductQuantity(itemID uuid.UUID) int64 {
	if ps, ok := s.products[itemID]; ok {
		return ps.quantity
	}
	return 0
}

// FeeSelected reports whether a fee line is selected.
func (s *Selection) FeeSelected(feeID uuid.UUID) bool {
	if fs, ok := s.fees[feeID]; ok {
		return fs.selected
	}
	return false
}

// ShippingSelected reports whether a shipping line is selected.
func (s *Selection) ShippingSelected(shippingID uuid.UUID) bool {
	if ss, ok := s.shipping[shippingID]; ok {
		return ss.selected
	}
	return false
}

// IsEmpty reports whether nothing is selected.
func (s *Selection) IsEmpty() bool {
	for _, ps := range s.products {
		if ps.quantity > 0 {
			return false
		}
	}
	for _, fs := range s.fees {
		if fs.selected {
			return false
		}
	}
	for _, ss := range s.shipping {
		if ss.selected {
			return false
		}
	}
	return true
}

// RequestLines materializes the selection into immutable request lines for a
// submission attempt.
func (s *Selection) RequestLines() []RequestLine {
	var lines []RequestLine
	for id, ps := range s.products {
		if ps.quantity == 0 {
			continue
		}
		qty := decimalFromInt(ps.quantity)
		lines = append(lines, RequestLine{
			Type:     LineTypeProduct,
			RefID:    id,
			Quantity: ps.quantity,
			Amount:   ps.line.UnitPrice.Mul(qty),
			Tax:      perUnitTax(ps.line.TotalTax, ps.line.Quantity).Mul(qty),
		})
	}
	for id, fs := range s.fees {
		if !fs.selected {
			continue
		}
		lines = append(lines, RequestLine{
			Type:   LineTypeFee,
			RefID:  id,
			Amount: fs.line.Total,
			Tax:    fs.line.TotalTax,
		})
	}
	for id, ss := range s.shipping {
		if !ss.selected {
			continue
		}
		lines = append(lines, RequestLine{
			Type:   LineTypeShipping,
			RefID:  id,
			Amount: ss.line.Total,
			Tax:    ss.line.TotalTax,
		})
	}
	return lines
}
