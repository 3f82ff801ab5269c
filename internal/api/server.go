package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/config"
	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/metrics"
	"github.com/JakeFAU/borsa-crawler/internal/queue"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
)

const defaultRequestTimeout = 60 * time.Second

// Submitter queues asynchronous runs.
type Submitter interface {
	Submit(ctx context.Context, kind runner.Kind) (runner.Run, error)
}

// Server wires HTTP handlers to the repository and the run dispatcher.
type Server struct {
	router chi.Router
	repo   storage.ShareRepository
	runs   runner.RunStore
	submit Submitter
	cache  *cache.Cache
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	repo storage.ShareRepository,
	runs runner.RunStore,
	submit Submitter,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		repo:   repo,
		runs:   runs,
		submit: submit,
		logger: logger.Named("api"),
	}
	if ttl := cfg.API.CacheTTL(); ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	timeout := cfg.API.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/isins", s.listIsins)
		r.Route("/shares", func(r chi.Router) {
			r.Get("/", s.listShares)
			r.Get("/search", s.searchShares)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.submitRun)
			r.Get("/{run_id}", s.getRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Invalidate drops every cached read. It is registered as a runner finish hook.
func (s *Server) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "repository unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listIsins(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.repo.QueryAllIsins(ctx)
	})
}

func (s *Server) listShares(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.repo.QueryShares(ctx, storage.ShareQuery{})
	})
}

func (s *Server) searchShares(w http.ResponseWriter, r *http.Request) {
	q, err := parseShareQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cached(w, r, func(ctx context.Context) (any, error) {
		return s.repo.QueryShares(ctx, q)
	})
}

func parseShareQuery(r *http.Request) (storage.ShareQuery, error) {
	values := r.URL.Query()
	q := storage.ShareQuery{
		Name: strings.TrimSpace(values.Get("name")),
		Lang: strings.ToUpper(strings.TrimSpace(values.Get("lang"))),
	}
	if raw := strings.ToUpper(strings.TrimSpace(values.Get("isin"))); raw != "" {
		id, err := isin.Parse(raw)
		if err != nil {
			return storage.ShareQuery{}, err
		}
		q.Isin = id.String()
	}
	if q.Lang != "" && !isCountryCode(q.Lang) {
		return storage.ShareQuery{}, errors.New("lang must be a two-letter country code")
	}
	return q, nil
}

func isCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// cached serves the result of load for the request URL, consulting the cache first.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, load func(context.Context) (any, error)) {
	key := r.URL.Path + "?" + r.URL.RawQuery
	if s.cache != nil {
		if payload, ok := s.cache.Get(key); ok {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, payload)
			return
		}
	}
	payload, err := load(r.Context())
	if err != nil {
		s.logger.Error("repository query failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if s.cache != nil {
		s.cache.Set(key, payload, cache.DefaultExpiration)
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, http.StatusOK, payload)
}

type runRequest struct {
	Kind string `json:"kind"`
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	kind, err := runner.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.submit.Submit(r.Context(), kind)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("submit run failed", zap.String("kind", string(kind)), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, runner.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case err != nil:
		s.logger.Error("get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "run lookup failed")
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
