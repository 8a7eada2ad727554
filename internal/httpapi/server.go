// Package httpapi exposes the retrieval, workflow and audit services over
// JSON/HTTP.  The caller's role arrives in the X-Docuflow-Role header; an
// absent header falls back to the configured default role.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/docuflow/server/internal/docuflow/service"
	"github.com/docuflow/server/internal/docuflow/store"
	"github.com/docuflow/server/internal/docuflow/types"
	"github.com/docuflow/server/internal/embedding"
)

// RoleHeader carries the caller's role.  Authentication is out of scope;
// the deployment fronts this server with a proxy that sets the header.
const RoleHeader = "X-Docuflow-Role"

type Dependencies struct {
	Logger      *zap.Logger
	Addr        string
	Retrieval   *service.RetrievalService
	Workflow    *service.WorkflowService
	Audit       *service.AuditService
	DefaultRole string
}

type Server struct {
	httpServer  *http.Server
	logger      *zap.Logger
	mux         *http.ServeMux
	retrieval   *service.RetrievalService
	workflow    *service.WorkflowService
	audit       *service.AuditService
	defaultRole string
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:      d.Logger,
		mux:         mux,
		retrieval:   d.Retrieval,
		workflow:    d.Workflow,
		audit:       d.Audit,
		defaultRole: d.DefaultRole,
	}

	mux.HandleFunc("POST /v1/documents", s.handleIngest)
	mux.HandleFunc("GET /v1/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("POST /v1/workflows/execute", s.handleWorkflowExecute)
	mux.HandleFunc("POST /v1/rules/reload", s.handleRulesReload)
	mux.HandleFunc("GET /v1/audit", s.handleAuditList)
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) role(r *http.Request) string {
	if role := r.Header.Get(RoleHeader); role != "" {
		return role
	}
	return s.defaultRole
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req types.IngestRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.retrieval.Ingest(r.Context(), s.role(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	resp, err := s.retrieval.Get(r.Context(), s.role(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	resp, err := s.retrieval.Delete(r.Context(), s.role(r), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req types.SearchRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.retrieval.Search(r.Context(), s.role(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWorkflowExecute(w http.ResponseWriter, r *http.Request) {
	var req types.WorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.workflow.Execute(r.Context(), s.role(r), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRulesReload(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.ReloadRules(r.Context(), s.role(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	afterSeq, err := queryInt64(r, "after_seq")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", "after_seq must be an integer")
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query", "limit must be an integer")
		return
	}

	resp, err := s.audit.List(r.Context(), s.role(r), afterSeq, int(limit))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeServiceError maps service-layer errors onto HTTP statuses.  Unmapped
// errors are logged and become an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	var denied *service.AccessDeniedError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.As(err, &denied):
		writeError(w, http.StatusForbidden, "access_denied", denied.Reason)
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "access denied")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "document not found")
	case errors.Is(err, embedding.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "embedder_unavailable", "embedding provider unavailable")
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

func queryInt64(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
