package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Clock provides the reference time for recency scoring.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Candidate is one delivery note considered for pairing with an invoice.
// Zero DeliveryDate and nil TotalAmount mean the field was not extracted.
type Candidate struct {
	ID           string           `json:"id"`
	NoteNumber   string           `json:"note_number"`
	SupplierName string           `json:"supplier_name"`
	DeliveryDate time.Time        `json:"delivery_date"`
	TotalAmount  *decimal.Decimal `json:"total_amount,omitempty"`
}

// Factor names one contribution to a pairing score.
type Factor string

const (
	// FactorSupplierMatch: supplier names are byte-for-byte equal. Matching
	// is deliberately case-sensitive; loosening it reorders rankings.
	FactorSupplierMatch Factor = "supplier_match"
	// FactorDateProximity: delivery date close to the invoice date.
	FactorDateProximity Factor = "date_proximity"
	// FactorRecency: delivery date close to the evaluation time, used only
	// when no invoice date is known.
	FactorRecency Factor = "recency"
	// FactorAmountPresent: the note has any total amount at all. Amount
	// equality is not checked here.
	FactorAmountPresent Factor = "amount_present"
)

// PairingCandidate is a scored candidate. Ephemeral: recomputed per focal
// invoice, never persisted.
type PairingCandidate struct {
	Note    Candidate `json:"note"`
	Score   int       `json:"score"`
	Factors []Factor  `json:"factors,omitempty"`
}

// Focal identifies the invoice that candidates are ranked against. Zero
// InvoiceDate means the date was not extracted.
type Focal struct {
	SupplierName string
	InvoiceDate  time.Time
}

const (
	supplierPoints = 40
	nearDatePoints = 30
	farDatePoints  = 15
	amountPoints   = 20
	maxScore       = 100

	nearDateWindow = 7 * 24 * time.Hour
	farDateWindow  = 14 * 24 * time.Hour
)

// Scorer ranks delivery-note candidates for a focal invoice. It is a triage
// aid, not a matcher of record: absent fields contribute zero and the result
// is never an error.
type Scorer struct {
	clock Clock
}

// NewScorer returns a Scorer using the system clock as recency reference.
func NewScorer() *Scorer {
	return &Scorer{clock: systemClock{}}
}

// NewScorerWithClock returns a Scorer with an injected clock for testing or
// for evaluating as-of a fixed date.
func NewScorerWithClock(clock Clock) *Scorer {
	return &Scorer{clock: clock}
}

// Score returns a 0-100 pairing score and its contributing factors.
func (s *Scorer) Score(note Candidate, focal Focal) (int, []Factor) {
	score := 0
	var factors []Factor

	if focal.SupplierName != "" && note.SupplierName == focal.SupplierName {
		score += supplierPoints
		factors = append(factors, FactorSupplierMatch)
	}

	if !note.DeliveryDate.IsZero() {
		ref := focal.InvoiceDate
		factor := FactorDateProximity
		if ref.IsZero() {
			ref = s.clock.Now()
			factor = FactorRecency
		}
		gap := ref.Sub(note.DeliveryDate)
		if gap < 0 {
			gap = -gap
		}
		switch {
		case gap <= nearDateWindow:
			score += nearDatePoints
			factors = append(factors, factor)
		case gap <= farDateWindow:
			score += farDatePoints
			factors = append(factors, factor)
		}
	}

	if note.TotalAmount != nil {
		score += amountPoints
		factors = append(factors, FactorAmountPresent)
	}

	if score > maxScore {
		score = maxScore
	}
	return score, factors
}

// Rank scores every candidate and sorts descending by score. Ties keep input
// order, so the first-seen candidate wins.
func (s *Scorer) Rank(notes []Candidate, focal Focal) []PairingCandidate {
	ranked := make([]PairingCandidate, 0, len(notes))
	for _, note := range notes {
		score, factors := s.Score(note, focal)
		ranked = append(ranked, PairingCandidate{Note: note, Score: score, Factors: factors})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
