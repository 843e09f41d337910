package reconcile

import (
	"fmt"
	"math"
	"sort"
)

// Canonical extraction field names.
const (
	FieldSupplierName  = "supplier_name"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldTotalAmount   = "total_amount"
	FieldAddresses     = "addresses"
	FieldLineItems     = "line_items"
)

// fieldWeights biases the overall score towards the fields that matter most
// when deciding whether an extraction can be trusted.
var fieldWeights = map[string]float64{
	FieldSupplierName:  2,
	FieldInvoiceNumber: 2,
	FieldInvoiceDate:   2,
	FieldTotalAmount:   3,
	FieldAddresses:     1.5,
	FieldLineItems:     3,
}

const defaultFieldWeight = 1.0

// FieldConfidence carries per-field extraction confidence in [0,1]. A nil
// pointer means the extractor produced nothing for that field. Extra holds
// non-standard fields, which weigh 1 each.
type FieldConfidence struct {
	SupplierName  *float64           `json:"supplier_name,omitempty"`
	InvoiceNumber *float64           `json:"invoice_number,omitempty"`
	InvoiceDate   *float64           `json:"invoice_date,omitempty"`
	TotalAmount   *float64           `json:"total_amount,omitempty"`
	Addresses     *float64           `json:"addresses,omitempty"`
	LineItems     *float64           `json:"line_items,omitempty"`
	Extra         map[string]float64 `json:"extra,omitempty"`
}

// WeakSignal is one low-confidence field surfaced for reviewer triage.
type WeakSignal struct {
	Field   string `json:"field"`
	Percent int    `json:"percent"`
}

func (w WeakSignal) String() string {
	return fmt.Sprintf("%s: %d%%", w.Field, w.Percent)
}

// Summary is the aggregated trust assessment for one document.
type Summary struct {
	Overall float64      `json:"overall"`
	Weakest []WeakSignal `json:"weakest"`
}

// Aggregator combines field and line-item confidences into a Summary.
//
// The legacy behavior keeps a pre-supplied line_items field entry AND injects
// a second entry computed from per-item confidences, so the signal can count
// twice. CollapseLineItems makes the computed value replace the pre-supplied
// one instead.
type Aggregator struct {
	CollapseLineItems bool
}

type fieldEntry struct {
	name  string
	value float64
}

// Aggregate is a pure function: malformed or absent input degrades to a zero
// contribution, never an error.
func (a Aggregator) Aggregate(fields FieldConfidence, items []LineItem) Summary {
	entries := collectFields(fields)

	if mean, ok := itemConfidenceMean(items); ok {
		if a.CollapseLineItems {
			replaced := false
			for i := range entries {
				if entries[i].name == FieldLineItems {
					entries[i].value = mean
					replaced = true
					break
				}
			}
			if !replaced {
				entries = append(entries, fieldEntry{FieldLineItems, mean})
			}
		} else {
			entries = append(entries, fieldEntry{FieldLineItems, mean})
		}
	}

	var sum, weightSum float64
	for _, e := range entries {
		w, ok := fieldWeights[e.name]
		if !ok {
			w = defaultFieldWeight
		}
		sum += e.value * w
		weightSum += w
	}
	if weightSum == 0 {
		weightSum = 1
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].value < entries[j].value
	})
	weakest := make([]WeakSignal, 0, 3)
	for _, e := range entries {
		if len(weakest) == 3 {
			break
		}
		weakest = append(weakest, WeakSignal{
			Field:   e.name,
			Percent: int(math.Round(e.value * 100)),
		})
	}

	return Summary{Overall: sum / weightSum, Weakest: weakest}
}

// collectFields lists present fields in a fixed order so output is
// deterministic: known fields first, then extras sorted by name.
func collectFields(fields FieldConfidence) []fieldEntry {
	var entries []fieldEntry
	known := []struct {
		name  string
		value *float64
	}{
		{FieldSupplierName, fields.SupplierName},
		{FieldInvoiceNumber, fields.InvoiceNumber},
		{FieldInvoiceDate, fields.InvoiceDate},
		{FieldTotalAmount, fields.TotalAmount},
		{FieldAddresses, fields.Addresses},
		{FieldLineItems, fields.LineItems},
	}
	for _, k := range known {
		if k.value != nil {
			entries = append(entries, fieldEntry{k.name, clamp(*k.value)})
		}
	}

	extraNames := make([]string, 0, len(fields.Extra))
	for name := range fields.Extra {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	for _, name := range extraNames {
		entries = append(entries, fieldEntry{name, clamp(fields.Extra[name])})
	}
	return entries
}

// itemConfidenceMean returns the unweighted mean of the per-item confidences
// that are present. ok is false when no item carries one.
func itemConfidenceMean(items []LineItem) (float64, bool) {
	var sum float64
	var n int
	for _, li := range items {
		if li.Confidence == nil {
			continue
		}
		sum += clamp(*li.Confidence)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// clamp bounds a confidence to [0,1]; NaN degrades to 0.
func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
