package document

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyfold/invoice-desk/internal/reconcile"
	"github.com/tallyfold/invoice-desk/internal/segment"
)

// Document is one confirmed segment persisted as a standalone record. Header
// values and confidences are filled in later by the extraction collaborator.
type Document struct {
	ID            string                    `json:"id"`
	DocType       segment.DocType           `json:"doc_type"`
	SupplierName  string                    `json:"supplier_name,omitempty"`
	InvoiceNumber string                    `json:"invoice_number,omitempty"`
	InvoiceDate   time.Time                 `json:"invoice_date"`
	TotalAmount   *decimal.Decimal          `json:"total_amount,omitempty"`
	Pages         []int                     `json:"pages"`
	SourceFile    string                    `json:"source_file"`
	ContentType   string                    `json:"content_type,omitempty"`
	Text          string                    `json:"text,omitempty"`
	Confidence    float64                   `json:"confidence"`
	Fields        reconcile.FieldConfidence `json:"fields"`
	LineItems     []reconcile.LineItem      `json:"line_items,omitempty"`
	PairingID     string                    `json:"pairing_id,omitempty"` // ID of the pairing this document belongs to
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// DeliveryNote is a candidate delivery record supplied by the listing
// collaborator.
type DeliveryNote struct {
	ID           string               `json:"id"`
	NoteNumber   string               `json:"note_number"`
	SupplierName string               `json:"supplier_name,omitempty"`
	DeliveryDate time.Time            `json:"delivery_date"`
	TotalAmount  *decimal.Decimal     `json:"total_amount,omitempty"`
	LineItems    []reconcile.LineItem `json:"line_items,omitempty"`
	PairingID    string               `json:"pairing_id,omitempty"` // ID of the pairing this note belongs to
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Pairing links one invoice document with one delivery note as its delivery
// evidence.
type Pairing struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	NoteID    string    `json:"note_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Extraction is the payload the extraction collaborator delivers for one
// document: header values plus per-field and per-line confidences.
type Extraction struct {
	SupplierName  string                    `json:"supplier_name,omitempty"`
	InvoiceNumber string                    `json:"invoice_number,omitempty"`
	InvoiceDate   time.Time                 `json:"invoice_date"`
	TotalAmount   *decimal.Decimal          `json:"total_amount,omitempty"`
	Fields        reconcile.FieldConfidence `json:"fields"`
	LineItems     []reconcile.LineItem      `json:"line_items,omitempty"`
}
