package reconcile

import "github.com/shopspring/decimal"

// DiffKind labels one category of line-level discrepancy.
type DiffKind string

const (
	DiffQuantity         DiffKind = "qty_diff"
	DiffPrice            DiffKind = "price_diff"
	DiffVAT              DiffKind = "vat_diff"
	DiffMissingOnInvoice DiffKind = "missing_on_invoice"
	DiffExtraOnInvoice   DiffKind = "extra_on_invoice"
)

// LineDiff is one discrepancy between a paired invoice and delivery note.
// Invoice/Delivery/Delta carry the diverging values for qty, price and VAT
// kinds; Delta is invoice minus delivery.
type LineDiff struct {
	Kind     DiffKind        `json:"kind"`
	Key      string          `json:"key"`
	Invoice  decimal.Decimal `json:"invoice"`
	Delivery decimal.Decimal `json:"delivery"`
	Delta    decimal.Decimal `json:"delta"`
}

// MatchKey derives the identity under which lines from both sides are paired.
type MatchKey func(LineItem) string

// ByDescription matches lines on their normalized description.
func ByDescription(li LineItem) string {
	return NormalizeDescription(li.Description)
}

// diffEpsilon absorbs rounding noise in extracted quantities and prices.
var diffEpsilon = decimal.New(1, -2) // 0.01

// Diff compares a paired invoice and delivery note line set. Matched keys
// are checked for quantity, ex-VAT unit price and VAT rate divergence; a key
// may produce several diffs. Keys on one side only become missing/extra
// diffs. Emission order is invoice lines first, in input order, then the
// delivery-side remainder in input order. Empty inputs yield an empty result.
func Diff(invoiceLines, deliveryLines []LineItem, key MatchKey) []LineDiff {
	invoiceKeys, invoiceByKey := index(invoiceLines, key)
	deliveryKeys, deliveryByKey := index(deliveryLines, key)

	diffs := []LineDiff{}
	for _, k := range invoiceKeys {
		inv := invoiceByKey[k]
		dn, matched := deliveryByKey[k]
		if !matched {
			diffs = append(diffs, LineDiff{Kind: DiffExtraOnInvoice, Key: k})
			continue
		}
		if inv.Quantity.Sub(dn.Quantity).Abs().GreaterThan(diffEpsilon) {
			diffs = append(diffs, LineDiff{
				Kind:     DiffQuantity,
				Key:      k,
				Invoice:  inv.Quantity,
				Delivery: dn.Quantity,
				Delta:    inv.Quantity.Sub(dn.Quantity),
			})
		}
		if inv.UnitPriceExVAT.Sub(dn.UnitPriceExVAT).Abs().GreaterThan(diffEpsilon) {
			diffs = append(diffs, LineDiff{
				Kind:     DiffPrice,
				Key:      k,
				Invoice:  inv.UnitPriceExVAT,
				Delivery: dn.UnitPriceExVAT,
				Delta:    inv.UnitPriceExVAT.Sub(dn.UnitPriceExVAT),
			})
		}
		if !inv.VATRate.Equal(dn.VATRate) {
			diffs = append(diffs, LineDiff{
				Kind:     DiffVAT,
				Key:      k,
				Invoice:  inv.VATRate,
				Delivery: dn.VATRate,
				Delta:    inv.VATRate.Sub(dn.VATRate),
			})
		}
	}

	for _, k := range deliveryKeys {
		if _, matched := invoiceByKey[k]; !matched {
			diffs = append(diffs, LineDiff{Kind: DiffMissingOnInvoice, Key: k})
		}
	}

	return diffs
}

// index maps lines by key, keeping first-seen key order. When one side
// repeats a key the last occurrence wins, matching how the lookup tables in
// the comparison endpoint have always been built.
func index(lines []LineItem, key MatchKey) ([]string, map[string]LineItem) {
	order := make([]string, 0, len(lines))
	byKey := make(map[string]LineItem, len(lines))
	for _, li := range lines {
		k := key(li)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = li
	}
	return order, byKey
}
