// Package http provides the admin HTTP server and optionally hosts the Slack
// Events API endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/usecases"
)

const (
	defaultQueryUser = "admin"
	maxQueryBytes    = 64 << 10
	shutdownTimeout  = 5 * time.Second
)

// DocumentCatalog is the part of the document store the admin API reads and reloads.
type DocumentCatalog interface {
	Metadata() []entities.DocumentMetadata
	Directory() string
	LoadedAt() time.Time
	Reload(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	Addr     string
	Provider string // reported by /api/health
	Degraded bool   // echo mode, no completion credential

	// DisableAPI leaves out the /api routes so only mounted handlers are served.
	DisableAPI bool
}

// Server is the admin HTTP server.
type Server struct {
	cfg       Config
	docs      DocumentCatalog
	responder usecases.Responder
	logger    *zap.Logger
	mounts    []func(*http.ServeMux)
}

// NewServer creates a new admin server.
func NewServer(cfg Config, docs DocumentCatalog, responder usecases.Responder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		docs:      docs,
		responder: responder,
		logger:    logger.Named("http"),
	}
}

// Mount registers extra routes, such as the Slack events endpoints.
func (s *Server) Mount(register func(*http.ServeMux)) {
	s.mounts = append(s.mounts, register)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if !s.cfg.DisableAPI {
		mux.HandleFunc("/api/health", s.handleHealth)
		mux.HandleFunc("/api/documents", s.handleDocuments)
		mux.HandleFunc("/api/documents/reload", s.handleReload)
		mux.HandleFunc("/api/query", s.handleQuery)
	}
	for _, register := range s.mounts {
		register(mux)
	}
	return corsMiddleware(s.loggingMiddleware(mux))
}

// Start runs the server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // completions can be slow
	}

	s.logger.Info("admin server starting", zap.String("addr", s.cfg.Addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type healthResponse struct {
	Status    string `json:"status"`
	Provider  string `json:"provider"`
	Mode      string `json:"mode"`
	Documents int    `json:"documents"`
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode := "live"
	if s.cfg.Degraded {
		mode = "echo"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Provider:  s.cfg.Provider,
		Mode:      mode,
		Documents: len(s.docs.Metadata()),
	})
}

type documentsResponse struct {
	Directory string                      `json:"directory"`
	Count     int                         `json:"count"`
	TotalSize string                      `json:"total_size"`
	LoadedAt  time.Time                   `json:"loaded_at"`
	Documents []entities.DocumentMetadata `json:"documents"`
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.documentStatus())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.docs.Reload(r.Context()); err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reload failed"})
		return
	}
	writeJSON(w, http.StatusOK, s.documentStatus())
}

func (s *Server) documentStatus() documentsResponse {
	meta := s.docs.Metadata()
	var total int64
	for _, m := range meta {
		total += m.SizeBytes
	}
	return documentsResponse{
		Directory: s.docs.Directory(),
		Count:     len(meta),
		TotalSize: humanize.IBytes(uint64(total)),
		LoadedAt:  s.docs.LoadedAt(),
		Documents: meta,
	}
}

type queryRequest struct {
	User  string `json:"user"`
	Query string `json:"query"`
}

type queryResponse struct {
	TurnID    string `json:"turn_id"`
	Answer    string `json:"answer"`
	Model     string `json:"model"`
	Path      string `json:"path"`
	Degraded  bool   `json:"degraded"`
	Documents int    `json:"documents"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// handleQuery runs one message through the conversation pipeline.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQueryBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	} else {
		r.ParseForm()
		req.User = r.FormValue("user")
		req.Query = r.FormValue("query")
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		http.Error(w, "Query required", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		req.User = defaultQueryUser
	}

	reply, err := s.responder.Respond(r.Context(), req.User, req.Query)
	if err != nil {
		class := entities.ClassOf(err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": class.UserMessage(),
			"class": class.String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		TurnID:    reply.TurnID,
		Answer:    reply.Text,
		Model:     reply.Model,
		Path:      string(reply.Path),
		Degraded:  reply.Degraded,
		Documents: reply.Documents,
		ElapsedMS: reply.Elapsed.Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
