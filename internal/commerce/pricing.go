// Package commerce holds the order economics rules: unit and order pricing, the loyalty
// ledger, and the shipping timeline projection. Everything here is pure.
package commerce

import (
	"strings"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

// NoVariant selects the default option of a variant group.
const NoVariant = -1

const primaryVariantGroup = "size"

// Line is the minimum a priced line needs: a unit price snapshot and a quantity.
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Totals is the aggregate of an order or cart.
type Totals struct {
	Subtotal    int64
	ShippingFee int64
	Discount    int64
	Tax         int64
	Total       int64
}

// PrimaryVariantGroup returns the group unit prices are resolved against: the group named
// "size" when present, else the first group.
func PrimaryVariantGroup(product domain.Product) (domain.VariantGroup, bool) {
	if len(product.VariantGroups) == 0 {
		return domain.VariantGroup{}, false
	}
	for _, group := range product.VariantGroups {
		if strings.EqualFold(strings.TrimSpace(group.Name), primaryVariantGroup) {
			return group, true
		}
	}
	return product.VariantGroups[0], true
}

// ResolveVariantIndex bounds index to the group's options, falling back to 0.
func ResolveVariantIndex(group domain.VariantGroup, index int) int {
	if index < 0 || index >= len(group.Options) {
		return 0
	}
	return index
}

// ComputeUnitPrice returns basePrice plus the price delta of the selected option of the
// primary variant group.
func ComputeUnitPrice(product domain.Product, variantIndex int) int64 {
	base := NonNegative(product.BasePrice)
	group, ok := PrimaryVariantGroup(product)
	if !ok || len(group.Options) == 0 {
		return base
	}
	option := group.Options[ResolveVariantIndex(group, variantIndex)]
	return base + NonNegative(option.PriceDelta)
}

// ComputeUnitPriceForSelection sums the deltas of one option per variant group. Groups missing
// from selection use their first option. Keys are matched case-insensitively.
func ComputeUnitPriceForSelection(product domain.Product, selection map[string]int) int64 {
	base := NonNegative(product.BasePrice)
	for _, group := range product.VariantGroups {
		if len(group.Options) == 0 {
			continue
		}
		idx, found := lookupSelection(selection, group.Name)
		if !found {
			idx = 0
		}
		base += NonNegative(group.Options[ResolveVariantIndex(group, idx)].PriceDelta)
	}
	return base
}

// VariantChoices snapshots the resolved option of every group for a cart line.
func VariantChoices(product domain.Product, selection map[string]int) []domain.VariantChoice {
	if len(product.VariantGroups) == 0 {
		return nil
	}
	choices := make([]domain.VariantChoice, 0, len(product.VariantGroups))
	for _, group := range product.VariantGroups {
		if len(group.Options) == 0 {
			continue
		}
		idx, _ := lookupSelection(selection, group.Name)
		idx = ResolveVariantIndex(group, idx)
		choices = append(choices, domain.VariantChoice{
			Name:  group.Name,
			Value: group.Options[idx].Label,
			Index: idx,
		})
	}
	return choices
}

func lookupSelection(selection map[string]int, name string) (int, bool) {
	if len(selection) == 0 {
		return 0, false
	}
	if idx, ok := selection[name]; ok {
		return idx, true
	}
	for key, idx := range selection {
		if strings.EqualFold(strings.TrimSpace(key), strings.TrimSpace(name)) {
			return idx, true
		}
	}
	return 0, false
}

// ClampQuantity bounds qty to [1, stock] when stock is known and positive, otherwise to >= 1.
func ClampQuantity(qty int, stock *int) int {
	if qty < 1 {
		qty = 1
	}
	if stock != nil && *stock >= 1 && qty > *stock {
		qty = *stock
	}
	return qty
}

// LineTotal is unitPrice × max(1, quantity).
func LineTotal(line Line) int64 {
	qty := line.Quantity
	if qty < 1 {
		qty = 1
	}
	return NonNegative(line.UnitPrice) * int64(qty)
}

// ComputeOrderTotals aggregates lines. Negative inputs are treated as 0.
func ComputeOrderTotals(lines []Line, shippingFee, discount, tax int64) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += LineTotal(line)
	}
	totals := Totals{
		Subtotal:    subtotal,
		ShippingFee: NonNegative(shippingFee),
		Discount:    NonNegative(discount),
		Tax:         NonNegative(tax),
	}
	totals.Total = totals.Subtotal + totals.ShippingFee - totals.Discount + totals.Tax
	return totals
}

// CartLines adapts cart lines for pricing.
func CartLines(lines []domain.CartLine) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}

// OrderLines adapts order items for pricing.
func OrderLines(items []domain.OrderItem) []Line {
	out := make([]Line, 0, len(items))
	for _, item := range items {
		out = append(out, Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return out
}
