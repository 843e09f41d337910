package reconcile

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one extracted invoice or delivery-note line.
type LineItem struct {
	Description     string          `json:"description"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPriceExVAT  decimal.Decimal `json:"unit_price_ex_vat"`
	UnitPriceIncVAT decimal.Decimal `json:"unit_price_inc_vat"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	Confidence      *float64        `json:"confidence,omitempty"`
	Flagged         bool            `json:"flagged,omitempty"`
}

// vatTolerance allows for rounding in extracted prices.
var vatTolerance = decimal.New(1, -2) // 0.01

// LineTotal returns quantity times the ex-VAT unit price.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPriceExVAT)
}

// VATConsistent reports whether the inc-VAT unit price agrees with the
// ex-VAT price and VAT rate within tolerance. A divergence is a signal for
// review, not an error; lines missing either price are treated as consistent.
func (li LineItem) VATConsistent() bool {
	if li.UnitPriceExVAT.IsZero() || li.UnitPriceIncVAT.IsZero() {
		return true
	}
	expected := li.UnitPriceExVAT.Mul(decimal.NewFromInt(1).Add(li.VATRate))
	return li.UnitPriceIncVAT.Sub(expected).Abs().LessThanOrEqual(vatTolerance)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeDescription lowercases a line description and collapses
// whitespace so the same product matches across noisy extractions.
func NormalizeDescription(desc string) string {
	desc = strings.ToLower(strings.TrimSpace(desc))
	return whitespaceRe.ReplaceAllString(desc, " ")
}
