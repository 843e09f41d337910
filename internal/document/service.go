package document

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tallyfold/invoice-desk/internal/reconcile"
	"github.com/tallyfold/invoice-desk/internal/segment"
)

// IDGenerator generates unique IDs for scans, documents and pairings
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// reviewSession couples an editable segment session with the stored scan it
// came from.
type reviewSession struct {
	session     *segment.Session
	sourceFile  string
	contentType string
}

// SessionView is the JSON shape of a review session returned to callers.
type SessionView struct {
	ID       string             `json:"id"`
	State    string             `json:"state"`
	Segments []*segment.Segment `json:"segments"`
}

// Service orchestrates review sessions, documents, delivery notes and
// pairings. Sessions live in memory only; nothing they own survives except
// the segment collection persisted on confirmation.
type Service struct {
	db         DB
	storage    Storage
	aggregator reconcile.Aggregator
	scorer     *reconcile.Scorer
	idGen      IDGenerator
	timeSource TimeSource

	mu       sync.Mutex // guards sessions; segment sessions are single-writer
	sessions map[string]*reviewSession
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return NewServiceWithDeps(db, storage, reconcile.Aggregator{}, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithAggregator creates a new Service with a custom confidence
// aggregator
func NewServiceWithAggregator(db DB, storage Storage, aggregator reconcile.Aggregator) *Service {
	return NewServiceWithDeps(db, storage, aggregator, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, aggregator reconcile.Aggregator, idGen IDGenerator, timeSource TimeSource) *Service {
	return &Service{
		db:         db,
		storage:    storage,
		aggregator: aggregator,
		scorer:     reconcile.NewScorerWithClock(timeSource),
		idGen:      idGen,
		timeSource: timeSource,
		sessions:   make(map[string]*reviewSession),
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "scan"
	}

	return base + ext
}

// IngestScan stores an uploaded scan and opens a review session over the
// segmentation result supplied by the external segmenter.
func (s *Service) IngestScan(filename string, data []byte, contentType string, segmentation []byte) (*SessionView, error) {
	id := s.idGen.Generate()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	segments, err := segment.ParseResult(segmentation)
	if err != nil {
		slog.Error("Failed to parse segmentation result",
			"filename", filename,
			"error", err,
		)
		// Clean up the saved file since the session never opened
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("parsing segmentation result: %w", err)
	}

	// The segmenter may omit IDs; every segment needs one before edits
	for i, seg := range segments {
		if seg.ID == "" {
			seg.ID = fmt.Sprintf("%s_seg%d", id, i+1)
		}
	}

	rs := &reviewSession{
		session:     segment.NewSession(id, segments),
		sourceFile:  savedPath,
		contentType: contentType,
	}

	s.mu.Lock()
	s.sessions[id] = rs
	s.mu.Unlock()

	return viewOf(rs.session), nil
}

func viewOf(session *segment.Session) *SessionView {
	return &SessionView{
		ID:       session.ID(),
		State:    session.State().String(),
		Segments: session.Segments(),
	}
}

// Session returns the current state of a review session
func (s *Service) Session(id string) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return viewOf(rs.session), nil
}

// editSession runs an edit under the session lock. The bool reports whether
// the edit had any effect; only an unknown session is an error.
func (s *Service) editSession(sessionID string, edit func(*segment.Session) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.sessions[sessionID]
	if !ok {
		return false, fmt.Errorf("session not found: %s", sessionID)
	}
	return edit(rs.session), nil
}

// ReclassifySegment changes a segment's document type
func (s *Service) ReclassifySegment(sessionID, segmentID string, docType segment.DocType) (bool, error) {
	return s.editSession(sessionID, func(session *segment.Session) bool {
		return session.Reclassify(segmentID, docType)
	})
}

// SplitSegment splits a segment's page range at splitPage
func (s *Service) SplitSegment(sessionID, segmentID string, splitPage int) (bool, error) {
	return s.editSession(sessionID, func(session *segment.Session) bool {
		return session.Split(segmentID, splitPage)
	})
}

// SetSegmentSupplier changes a segment's supplier guess
func (s *Service) SetSegmentSupplier(sessionID, segmentID, supplier string) (bool, error) {
	return s.editSession(sessionID, func(session *segment.Session) bool {
		return session.SetSupplierGuess(segmentID, supplier)
	})
}

// SetSegmentConfidence changes a segment's confidence
func (s *Service) SetSegmentConfidence(sessionID, segmentID string, confidence float64) (bool, error) {
	return s.editSession(sessionID, func(session *segment.Session) bool {
		return session.SetConfidence(segmentID, confidence)
	})
}

// ConfirmSession persists every segment of the session as a standalone
// document and closes the session.
func (s *Service) ConfirmSession(sessionID string) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	segments, ok := rs.session.Confirm()
	if !ok {
		return nil, fmt.Errorf("session %s is discarded", sessionID)
	}

	now := s.timeSource.Now()
	docs := make([]*Document, 0, len(segments))
	for _, seg := range segments {
		doc := &Document{
			ID:           seg.ID,
			DocType:      seg.DocType,
			SupplierName: seg.SupplierGuess,
			Pages:        seg.Pages,
			SourceFile:   rs.sourceFile,
			ContentType:  rs.contentType,
			Text:         seg.Text,
			Confidence:   seg.Confidence,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.db.SaveDocument(doc); err != nil {
			return nil, fmt.Errorf("saving document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}

	delete(s.sessions, sessionID)
	return docs, nil
}

// DiscardSession abandons a session and removes its stored scan file
func (s *Service) DiscardSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	rs.session.Discard()
	if err := s.storage.Delete(rs.sourceFile); err != nil {
		// Log error but continue; the session is gone either way
		slog.Warn("Failed to delete file", "filename", rs.sourceFile, "error", err)
	}
	delete(s.sessions, sessionID)
	return nil
}

// GetDocument retrieves a document by ID
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents
func (s *Service) ListDocuments() ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document. The stored scan file is kept while any
// sibling document still references it.
func (s *Service) DeleteDocument(id string) error {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return fmt.Errorf("getting document for deletion: %w", err)
	}

	docs, err := s.db.ListDocuments()
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	shared := false
	for _, other := range docs {
		if other.ID != id && other.SourceFile == doc.SourceFile {
			shared = true
			break
		}
	}
	if !shared {
		if err := s.storage.Delete(doc.SourceFile); err != nil {
			slog.Warn("Failed to delete file", "filename", doc.SourceFile, "error", err)
		}
	}

	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document from database: %w", err)
	}
	return nil
}

// DocumentFile retrieves the stored scan data for a document
func (s *Service) DocumentFile(id string) ([]byte, string, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting document: %w", err)
	}

	data, err := s.storage.Get(doc.SourceFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting document file: %w", err)
	}

	return data, doc.ContentType, nil
}

// AttachExtraction applies the extraction collaborator's output to a
// document: header values where extracted, confidences, and line items with
// VAT-inconsistent lines flagged for review.
func (s *Service) AttachExtraction(id string, extraction Extraction) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	if extraction.SupplierName != "" {
		doc.SupplierName = extraction.SupplierName
	}
	if extraction.InvoiceNumber != "" {
		doc.InvoiceNumber = extraction.InvoiceNumber
	}
	if !extraction.InvoiceDate.IsZero() {
		doc.InvoiceDate = extraction.InvoiceDate
	}
	if extraction.TotalAmount != nil {
		doc.TotalAmount = extraction.TotalAmount
	}
	doc.Fields = extraction.Fields
	doc.LineItems = extraction.LineItems
	for i := range doc.LineItems {
		if !doc.LineItems[i].VATConsistent() {
			doc.LineItems[i].Flagged = true
		}
	}
	doc.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}

// ConfidenceSummary aggregates a document's extraction confidences
func (s *Service) ConfidenceSummary(id string) (*reconcile.Summary, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	summary := s.aggregator.Aggregate(doc.Fields, doc.LineItems)
	return &summary, nil
}

// SaveDeliveryNote stores a delivery note from the listing collaborator
func (s *Service) SaveDeliveryNote(note *DeliveryNote) (*DeliveryNote, error) {
	if note.ID == "" {
		note.ID = s.idGen.Generate()
	}
	now := s.timeSource.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	for i := range note.LineItems {
		if !note.LineItems[i].VATConsistent() {
			note.LineItems[i].Flagged = true
		}
	}

	if err := s.db.SaveDeliveryNote(note); err != nil {
		return nil, fmt.Errorf("saving delivery note: %w", err)
	}
	return note, nil
}

// ListDeliveryNotes returns all delivery notes
func (s *Service) ListDeliveryNotes() ([]*DeliveryNote, error) {
	notes, err := s.db.ListDeliveryNotes()
	if err != nil {
		return nil, fmt.Errorf("listing delivery notes: %w", err)
	}
	return notes, nil
}

// SuggestPairings ranks every unpaired delivery note against the given
// invoice document
func (s *Service) SuggestPairings(invoiceID string) ([]reconcile.PairingCandidate, error) {
	doc, err := s.db.GetDocument(invoiceID)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	notes, err := s.db.ListDeliveryNotes()
	if err != nil {
		return nil, fmt.Errorf("listing delivery notes: %w", err)
	}

	candidates := make([]reconcile.Candidate, 0, len(notes))
	for _, note := range notes {
		if note.PairingID != "" {
			continue
		}
		candidates = append(candidates, reconcile.Candidate{
			ID:           note.ID,
			NoteNumber:   note.NoteNumber,
			SupplierName: note.SupplierName,
			DeliveryDate: note.DeliveryDate,
			TotalAmount:  note.TotalAmount,
		})
	}

	focal := reconcile.Focal{
		SupplierName: doc.SupplierName,
		InvoiceDate:  doc.InvoiceDate,
	}
	return s.scorer.Rank(candidates, focal), nil
}

// ConfirmPairing records a reviewer's decision to pair a delivery note with
// an invoice document and marks both sides
func (s *Service) ConfirmPairing(invoiceID, noteID string) (*Pairing, error) {
	doc, err := s.db.GetDocument(invoiceID)
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", invoiceID, err)
	}
	if doc.PairingID != "" {
		return nil, fmt.Errorf("document %s is already paired", invoiceID)
	}

	note, err := s.db.GetDeliveryNote(noteID)
	if err != nil {
		return nil, fmt.Errorf("getting delivery note %s: %w", noteID, err)
	}
	if note.PairingID != "" {
		return nil, fmt.Errorf("delivery note %s is already paired", noteID)
	}

	now := s.timeSource.Now()
	pairing := &Pairing{
		ID:        s.idGen.Generate(),
		InvoiceID: invoiceID,
		NoteID:    noteID,
		CreatedAt: now,
	}

	if err := s.db.SavePairing(pairing); err != nil {
		return nil, fmt.Errorf("saving pairing: %w", err)
	}

	doc.PairingID = pairing.ID
	doc.UpdatedAt = now
	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("updating document %s: %w", invoiceID, err)
	}

	note.PairingID = pairing.ID
	note.UpdatedAt = now
	if err := s.db.SaveDeliveryNote(note); err != nil {
		return nil, fmt.Errorf("updating delivery note %s: %w", noteID, err)
	}

	return pairing, nil
}

// CompareLines diffs an invoice document's line items against a delivery
// note's, matching lines by normalized description
func (s *Service) CompareLines(invoiceID, noteID string) ([]reconcile.LineDiff, error) {
	doc, err := s.db.GetDocument(invoiceID)
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", invoiceID, err)
	}

	note, err := s.db.GetDeliveryNote(noteID)
	if err != nil {
		return nil, fmt.Errorf("getting delivery note %s: %w", noteID, err)
	}

	return reconcile.Diff(doc.LineItems, note.LineItems, reconcile.ByDescription), nil
}
