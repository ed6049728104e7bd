// Package httpapi exposes the taxonomy, resolution and ingestion operations
// over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prepnexus/qbank/internal/ingest"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

const (
	maxBodyBytes    = 4 << 20
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// TopicResolver resolves a free-text label to its nearest canonical topic.
type TopicResolver interface {
	ResolveTopic(ctx context.Context, label string) *taxonomy.Match
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Config holds the server's dependencies. Readiness lists the backends that
// must answer before /readyz reports ready.
type Config struct {
	Topics    taxonomy.Store
	Resolver  TopicResolver
	Runner    *ingest.Runner
	Readiness []Pinger
}

// Server routes HTTP requests to the taxonomy and ingestion operations.
type Server struct {
	topics    taxonomy.Store
	resolver  TopicResolver
	runner    *ingest.Runner
	readiness []Pinger
	mux       *http.ServeMux
}

// New creates the HTTP API server.
func New(cfg Config) *Server {
	s := &Server{
		topics:    cfg.Topics,
		resolver:  cfg.Resolver,
		runner:    cfg.Runner,
		readiness: cfg.Readiness,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.HandleFunc("GET /v1/taxonomy/search", s.handleSearch)
	s.mux.HandleFunc("POST /v1/topics/resolve", s.handleResolve)
	s.mux.HandleFunc("POST /v1/questions/validate", s.handleValidate)
	s.mux.HandleFunc("POST /v1/questions/import", s.handleImport)
	s.mux.HandleFunc("POST /v1/batches/import", s.handleBatchImport)
	s.mux.HandleFunc("GET /v1/batches/ws", s.handleBatchWS)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.readiness {
		if err := p.HealthCheck(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := taxonomy.SearchQuery{
		Query:     q.Get("q"),
		SubjectID: q.Get("subject_id"),
		AnchorID:  q.Get("anchor_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = n
	}

	topics, err := s.topics.Search(r.Context(), query)
	if err != nil {
		slog.Error("taxonomy search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if topics == nil {
		topics = []taxonomy.Topic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": topics})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// No match is a normal outcome, reported as a null match, never an error.
	match := s.resolver.ResolveTopic(r.Context(), req.Label)
	writeJSON(w, http.StatusOK, map[string]any{"match": match})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var payload ingest.QuestionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ingest.ValidateQuestion(payload.Draft()))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var payload ingest.QuestionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := s.runner.Run(r.Context(), []ingest.QuestionDraft{payload.Draft()})
	res := results[0]
	if !res.Imported() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleBatchImport accepts a batch as JSON, as a raw XLSX body, or as a
// multipart upload with a "workbook" file field.
func (s *Server) handleBatchImport(w http.ResponseWriter, r *http.Request) {
	drafts, ok := s.readBatch(w, r)
	if !ok {
		return
	}

	results := s.runner.Run(r.Context(), drafts)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"summary": summarize(results),
	})
}

func (s *Server) readBatch(w http.ResponseWriter, r *http.Request) ([]ingest.QuestionDraft, bool) {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, contentTypeXLSX):
		drafts, err := ingest.ReadWorkbook(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		return drafts, true

	case strings.HasPrefix(ct, "multipart/form-data"):
		file, _, err := r.FormFile("workbook")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart upload needs a workbook file field")
			return nil, false
		}
		defer file.Close()

		drafts, err := ingest.ReadWorkbook(io.LimitReader(file, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		return drafts, true

	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading request body")
			return nil, false
		}
		drafts, violations, err := ingest.ParseBatch(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		if len(violations) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"violations": violations})
			return nil, false
		}
		return drafts, true
	}
}

// BatchSummary counts outcomes across a batch run.
type BatchSummary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

func summarize(results []ingest.ItemResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Imported() {
			s.Imported++
		} else {
			s.Failed++
		}
	}
	return s
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
