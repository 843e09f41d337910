package document

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles HTTP requests for review sessions, documents and pairings
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			// Ensure CORS headers are set before error response
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Desk"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// Review sessions (most specific paths first)
	s.mux.HandleFunc("POST /api/sessions/{id}/segments/{segmentID}/reclassify", s.requireAuth(s.handleReclassifySegment))
	s.mux.HandleFunc("POST /api/sessions/{id}/segments/{segmentID}/split", s.requireAuth(s.handleSplitSegment))
	s.mux.HandleFunc("POST /api/sessions/{id}/segments/{segmentID}/supplier", s.requireAuth(s.handleSetSegmentSupplier))
	s.mux.HandleFunc("POST /api/sessions/{id}/segments/{segmentID}/confidence", s.requireAuth(s.handleSetSegmentConfidence))
	s.mux.HandleFunc("POST /api/sessions/{id}/confirm", s.requireAuth(s.handleConfirmSession))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.requireAuth(s.handleDiscardSession))
	s.mux.HandleFunc("POST /api/scans", s.requireAuth(s.handleIngestScan))

	// Documents
	s.mux.HandleFunc("GET /api/documents/{id}/file", s.requireAuth(s.handleGetDocumentFile))
	s.mux.HandleFunc("GET /api/documents/{id}/confidence", s.requireAuth(s.handleGetConfidence))
	s.mux.HandleFunc("GET /api/documents/{id}/pairings", s.requireAuth(s.handleSuggestPairings))
	s.mux.HandleFunc("GET /api/documents/{id}/diff", s.requireAuth(s.handleCompareLines))
	s.mux.HandleFunc("PUT /api/documents/{id}/extraction", s.requireAuth(s.handleAttachExtraction))
	s.mux.HandleFunc("GET /api/documents/{id}", s.requireAuth(s.handleGetDocument))
	s.mux.HandleFunc("DELETE /api/documents/{id}", s.requireAuth(s.handleDeleteDocument))
	s.mux.HandleFunc("GET /api/documents", s.requireAuth(s.handleListDocuments))

	// Delivery notes and pairings
	s.mux.HandleFunc("GET /api/delivery-notes", s.requireAuth(s.handleListDeliveryNotes))
	s.mux.HandleFunc("POST /api/delivery-notes", s.requireAuth(s.handleSaveDeliveryNote))
	s.mux.HandleFunc("POST /api/pairings", s.requireAuth(s.handleConfirmPairing))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	// Wrap the mux with CORS middleware to handle all requests including OPTIONS
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
