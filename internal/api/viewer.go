package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/singleflight"

	"github.com/Hansil-Chapadiya/problems-analyzer/internal/analysis"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/catalog"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/remote"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/session"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/storage"
	"github.com/Hansil-Chapadiya/problems-analyzer/internal/workflow"
)

// AnalysisSource fetches analyses either decoded or as the raw archive.
// *analysis.Client implements it.
type AnalysisSource interface {
	FetchAnalysis(ctx context.Context, id, token string) (analysis.Bundle, error)
	FetchArchive(ctx context.Context, id, token string) ([]byte, error)
}

// ViewerDeps holds dependencies for the HTTP viewer.
type ViewerDeps struct {
	Catalogs       workflow.CatalogFetcher
	Analyses       AnalysisSource
	Session        session.Provider // fallback when a request carries no token
	Store          *storage.Store   // optional; enables history
	AllowedOrigins []string
	Logger         *slog.Logger
}

type viewer struct {
	deps   ViewerDeps
	shared *sharedAnalyses
	logger *slog.Logger
}

// NewViewerHandler returns the HTTP surface of the discovery workflow. Each
// request drives its own workflow.Controller; nothing is shared between
// requests except collapsed duplicate analysis fetches.
func NewViewerHandler(deps ViewerDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := &viewer{
		deps:   deps,
		shared: &sharedAnalyses{src: deps.Analyses},
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(v.logRequests)
	r.Use(middleware.Recoverer)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(SessionToken)
		r.Get("/problems", v.handleProblems)
		r.Get("/analysis", v.handleAnalysis)
		r.Get("/history", v.handleHistory)
		r.Get("/history/{id}", v.handleHistoryCatalog)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (v *viewer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			v.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (v *viewer) newController() *workflow.Controller {
	opts := []workflow.Option{workflow.WithLogger(v.logger)}
	if v.deps.Store != nil {
		opts = append(opts, workflow.WithHistory(v.deps.Store))
	}
	return workflow.New(v.deps.Catalogs, v.shared, v.deps.Session, opts...)
}

// GET /problems?skill=..&tags=a,b&page=N
func (v *viewer) handleProblems(w http.ResponseWriter, r *http.Request) {
	page, ok := parseIntParam(w, r, "page", 1)
	if !ok {
		return
	}

	c := v.newController()
	defer c.Close()

	q := r.URL.Query()
	if err := c.Submit(r.Context(), q.Get("skill"), q.Get("tags")); err != nil {
		workflowError(w, err)
		return
	}
	c.GotoPage(page)
	writeJSON(w, http.StatusOK, c.View())
}

// GET /analysis?id=..[&format=zip]
func (v *viewer) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		workflowError(w, workflow.ErrNoCorrelationID)
		return
	}

	if r.URL.Query().Get("format") == "zip" {
		raw, err := v.shared.FetchArchive(r.Context(), id, session.TokenFrom(r.Context(), v.deps.Session))
		if err != nil {
			workflowError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "analysis-"+id+".zip"))
		w.Write(raw)
		return
	}

	c := v.newController()
	defer c.Close()

	// The analysis view only knows the id; restore a catalog holding just that.
	if err := c.Restore(catalog.Query{}, catalog.Result{ID: id}); err != nil {
		workflowError(w, err)
		return
	}
	if err := c.Analyze(r.Context()); err != nil {
		workflowError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

// GET /history?limit=N
func (v *viewer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseIntParam(w, r, "limit", 20)
	if !ok {
		return
	}
	if v.deps.Store == nil {
		writeJSON(w, http.StatusOK, []storage.CatalogRecord{})
		return
	}
	list, err := v.deps.Store.ListCatalogs(limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "listing history: %v", err)
		return
	}
	if list == nil {
		list = []storage.CatalogRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /history/{id}?page=N pages a stored catalog without contacting the service.
func (v *viewer) handleHistoryCatalog(w http.ResponseWriter, r *http.Request) {
	page, ok := parseIntParam(w, r, "page", 1)
	if !ok {
		return
	}
	if v.deps.Store == nil {
		httpError(w, http.StatusNotFound, "not_found", "history is disabled")
		return
	}
	rec, err := v.deps.Store.GetCatalog(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "catalog not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "loading catalog: %v", err)
		return
	}

	c := v.newController()
	defer c.Close()
	q, err := catalog.Build(rec.Skill, catalog.NewTagSet(rec.Tags...).String())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "stored catalog %s: %v", rec.ID, err)
		return
	}
	if err := c.Restore(q, rec.Result()); err != nil {
		workflowError(w, err)
		return
	}
	c.GotoPage(page)
	writeJSON(w, http.StatusOK, c.View())
}

// workflowError maps a workflow error onto an HTTP status and writes the
// user-facing message.
func workflowError(w http.ResponseWriter, err error) {
	code, typ := http.StatusInternalServerError, "api_error"
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve), errors.Is(err, workflow.ErrNoCorrelationID), errors.Is(err, analysis.ErrEmptyID):
		code, typ = http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, remote.ErrUnauthenticated):
		code, typ = http.StatusUnauthorized, "authentication_error"
	case errors.Is(err, remote.ErrService), errors.Is(err, remote.ErrMissingPayload):
		code, typ = http.StatusBadGateway, "upstream_error"
	case errors.Is(err, remote.ErrDecode):
		code, typ = http.StatusUnprocessableEntity, "decode_error"
	case errors.Is(err, workflow.ErrBusy):
		code, typ = http.StatusConflict, "busy"
	}
	httpError(w, code, typ, "%s", workflow.Message(err))
}

// sharedAnalyses collapses concurrent fetches of the same analysis for the
// same token into one upstream request. The shared request runs detached
// from any one caller; each caller stops waiting when its own ctx is done.
type sharedAnalyses struct {
	src   AnalysisSource
	group singleflight.Group
}

func (s *sharedAnalyses) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *sharedAnalyses) FetchAnalysis(ctx context.Context, id, token string) (analysis.Bundle, error) {
	v, err := s.do(ctx, "bundle\x00"+token+"\x00"+id, func(ctx context.Context) (any, error) {
		return s.src.FetchAnalysis(ctx, id, token)
	})
	if err != nil {
		return analysis.Bundle{}, err
	}
	return v.(analysis.Bundle), nil
}

func (s *sharedAnalyses) FetchArchive(ctx context.Context, id, token string) ([]byte, error) {
	v, err := s.do(ctx, "zip\x00"+token+"\x00"+id, func(ctx context.Context) (any, error) {
		return s.src.FetchArchive(ctx, id, token)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func parseIntParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s must be a positive integer", name)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
