package segment

// DocType classifies the logical document a segment is believed to be.
type DocType string

const (
	TypeInvoice  DocType = "invoice"
	TypeDelivery DocType = "delivery"
	TypeReceipt  DocType = "receipt"
	TypeUtility  DocType = "utility"
	TypeOther    DocType = "other"
)

// Valid reports whether t is one of the known document types.
func (t DocType) Valid() bool {
	switch t {
	case TypeInvoice, TypeDelivery, TypeReceipt, TypeUtility, TypeOther:
		return true
	}
	return false
}

// Segment is a contiguous page range within one scanned file believed to be
// a single logical document. It starts life as a guess from the external
// segmenter and is corrected by a reviewer before confirmation.
type Segment struct {
	ID            string  `json:"id"`
	DocType       DocType `json:"doc_type"`
	Pages         []int   `json:"pages"`
	SupplierGuess string  `json:"supplier_guess,omitempty"`
	Confidence    float64 `json:"confidence"`
	Text          string  `json:"text,omitempty"`
}

// Contiguous reports whether the page set is an unbroken ascending run.
// Advisory: confirmation does not enforce it.
func (s *Segment) Contiguous() bool {
	for i := 1; i < len(s.Pages); i++ {
		if s.Pages[i] != s.Pages[i-1]+1 {
			return false
		}
	}
	return len(s.Pages) > 0
}

func (s *Segment) clone() *Segment {
	dup := *s
	dup.Pages = append([]int(nil), s.Pages...)
	return &dup
}
