package document

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tallyfold/invoice-desk/internal/segment"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// notFound distinguishes unknown-ID errors from internal failures
func notFound(err error) bool {
	return strings.Contains(err.Error(), "not found")
}

// handleIngestScan accepts a multipart upload with the scan file and the
// segmenter's JSON result, and opens a review session
func (s *Server) handleIngestScan(w http.ResponseWriter, r *http.Request) {
	// Max 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB."
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errorMsg})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File is too large. Maximum size is 50MB."})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	segmentation := r.FormValue("segments")
	if segmentation == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No segmentation result provided"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	view, err := s.service.IngestScan(header.Filename, data, contentType, []byte(segmentation))
	if err != nil {
		slog.Error("Error ingesting scan", "error", err, "filename", header.Filename)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// handleGetSession returns the current state of a review session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(r.PathValue("id"))
	if err != nil {
		corsError(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// segmentEdit decodes the request body, applies one segment edit and writes
// the updated session along with whether the edit had any effect
func (s *Server) segmentEdit(w http.ResponseWriter, r *http.Request, body any, edit func(sessionID, segmentID string) (bool, error)) {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sessionID := r.PathValue("id")
	applied, err := edit(sessionID, r.PathValue("segmentID"))
	if err != nil {
		corsError(w, "Session not found", http.StatusNotFound)
		return
	}

	view, err := s.service.Session(sessionID)
	if err != nil {
		corsError(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"session": view,
	})
}

// handleReclassifySegment changes a segment's document type
func (s *Server) handleReclassifySegment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DocType segment.DocType `json:"doc_type"`
	}
	s.segmentEdit(w, r, &body, func(sessionID, segmentID string) (bool, error) {
		return s.service.ReclassifySegment(sessionID, segmentID, body.DocType)
	})
}

// handleSplitSegment splits a segment's page range
func (s *Server) handleSplitSegment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Page int `json:"page"`
	}
	s.segmentEdit(w, r, &body, func(sessionID, segmentID string) (bool, error) {
		return s.service.SplitSegment(sessionID, segmentID, body.Page)
	})
}

// handleSetSegmentSupplier changes a segment's supplier guess
func (s *Server) handleSetSegmentSupplier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Supplier string `json:"supplier"`
	}
	s.segmentEdit(w, r, &body, func(sessionID, segmentID string) (bool, error) {
		return s.service.SetSegmentSupplier(sessionID, segmentID, body.Supplier)
	})
}

// handleSetSegmentConfidence changes a segment's confidence
func (s *Server) handleSetSegmentConfidence(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confidence float64 `json:"confidence"`
	}
	s.segmentEdit(w, r, &body, func(sessionID, segmentID string) (bool, error) {
		return s.service.SetSegmentConfidence(sessionID, segmentID, body.Confidence)
	})
}

// handleConfirmSession persists the session's segments as documents
func (s *Server) handleConfirmSession(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ConfirmSession(r.PathValue("id"))
	if err != nil {
		if notFound(err) {
			corsError(w, "Session not found", http.StatusNotFound)
			return
		}
		slog.Error("Error confirming session", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleDiscardSession abandons a review session
func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DiscardSession(r.PathValue("id")); err != nil {
		corsError(w, "Session not found", http.StatusNotFound)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleListDocuments returns a list of all documents
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		slog.Error("Error listing documents", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleGetDocument returns a single document
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(r.PathValue("id"))
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleDeleteDocument removes a document
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(r.PathValue("id")); err != nil {
		if notFound(err) {
			corsError(w, "Document not found", http.StatusNotFound)
			return
		}
		slog.Error("Error deleting document", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDocumentFile serves the stored scan bytes
func (s *Server) handleGetDocumentFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.DocumentFile(r.PathValue("id"))
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleAttachExtraction applies extraction output to a document
func (s *Server) handleAttachExtraction(w http.ResponseWriter, r *http.Request) {
	var extraction Extraction
	if err := json.NewDecoder(r.Body).Decode(&extraction); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := s.service.AttachExtraction(r.PathValue("id"), extraction)
	if err != nil {
		if notFound(err) {
			corsError(w, "Document not found", http.StatusNotFound)
			return
		}
		slog.Error("Error attaching extraction", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleGetConfidence returns the aggregated confidence summary
func (s *Server) handleGetConfidence(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.ConfidenceSummary(r.PathValue("id"))
	if err != nil {
		corsError(w, "Document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSuggestPairings returns ranked delivery-note candidates
func (s *Server) handleSuggestPairings(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.service.SuggestPairings(r.PathValue("id"))
	if err != nil {
		if notFound(err) {
			corsError(w, "Document not found", http.StatusNotFound)
			return
		}
		slog.Error("Error ranking pairings", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

// handleCompareLines diffs a document's lines against a delivery note's
func (s *Server) handleCompareLines(w http.ResponseWriter, r *http.Request) {
	noteID := r.URL.Query().Get("note")
	if noteID == "" {
		corsError(w, "Missing note parameter", http.StatusBadRequest)
		return
	}

	diffs, err := s.service.CompareLines(r.PathValue("id"), noteID)
	if err != nil {
		if notFound(err) {
			corsError(w, "Document or delivery note not found", http.StatusNotFound)
			return
		}
		slog.Error("Error comparing lines", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, diffs)
}

// handleListDeliveryNotes returns all delivery notes
func (s *Server) handleListDeliveryNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.service.ListDeliveryNotes()
	if err != nil {
		slog.Error("Error listing delivery notes", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// handleSaveDeliveryNote stores a delivery note from the listing collaborator
func (s *Server) handleSaveDeliveryNote(w http.ResponseWriter, r *http.Request) {
	var note DeliveryNote
	if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := s.service.SaveDeliveryNote(&note)
	if err != nil {
		slog.Error("Error saving delivery note", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleConfirmPairing pairs a delivery note with an invoice document
func (s *Server) handleConfirmPairing(w http.ResponseWriter, r *http.Request) {
	var body struct {
		InvoiceID string `json:"invoice_id"`
		NoteID    string `json:"note_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.InvoiceID == "" || body.NoteID == "" {
		corsError(w, "invoice_id and note_id are required", http.StatusBadRequest)
		return
	}

	pairing, err := s.service.ConfirmPairing(body.InvoiceID, body.NoteID)
	if err != nil {
		if notFound(err) {
			corsError(w, "Document or delivery note not found", http.StatusNotFound)
			return
		}
		if strings.Contains(err.Error(), "already paired") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("Error confirming pairing", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, pairing)
}
