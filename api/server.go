// Package api provides the HTTP REST API server for secfacts.
//
// It exposes statement queries, ticker resolution and dataset planning
// over the same pipeline the CLI uses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/secfacts/internal/config"
	"github.com/seenimoa/secfacts/internal/fsds"
	"github.com/seenimoa/secfacts/internal/infra"
	"github.com/seenimoa/secfacts/internal/logging"
	"github.com/seenimoa/secfacts/pkg/models"
)

// Version is reported by the health endpoint. The CLI overrides it with the
// build version.
var Version = "dev"

const (
	defaultYears      = 1
	defaultMatchLimit = 10
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	stack   *fsds.Stack
	log     logrus.FieldLogger
	started time.Time
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, stack *fsds.Stack, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	srv := &Server{
		cfg:     cfg,
		stack:   stack,
		log:     log.WithField(logging.FieldComponent, "api"),
		started: time.Now(),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server and blocks until SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.handlerTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.WithField("addr", addr).Info("api server listening")

	select {
	case err := <-errCh:
		return err
	case <-done:
	}
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// handlerTimeout bounds a request: the pipeline deadline when one is
// configured, otherwise two minutes.
func (s *Server) handlerTimeout() time.Duration {
	if d := s.cfg.Pipeline.RequestTimeout(); d > 0 {
		return d
	}
	return 120 * time.Second
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.handlerTimeout()))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Get("/statements/{ticker}", s.handleStatements)
		r.Get("/resolve/{ticker}", s.handleResolve)
		r.Get("/plan", s.handlePlan)
		r.Get("/datasets", s.handleDatasets)
		r.Get("/taxonomy", s.handleTaxonomy)
	})

	return r
}

// requestLogger logs one line per request through logrus.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			logging.FieldRequestID: middleware.GetReqID(r.Context()),
			"method":               r.Method,
			"path":                 r.URL.Path,
			"status":               ww.Status(),
			"bytes":                ww.BytesWritten(),
			"elapsed":              time.Since(start).Round(time.Millisecond),
		}).Info("request")
	})
}

// ════════════════════════════════════════════════════════════════════
// Request / Response Types
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard API response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ResolveResponse carries the exact match and similar index entries.
type ResolveResponse struct {
	Filer   *models.FilerIdentity  `json:"filer,omitempty"`
	Matches []models.FilerIdentity `json:"matches"`
}

// PlanResponse lists the archives a request would read.
type PlanResponse struct {
	Frequency models.Frequency       `json:"frequency"`
	Years     int                    `json:"years"`
	AsOf      string                 `json:"as_of"`
	Periods   []models.DatasetPeriod `json:"periods"`
	URLs      []string               `json:"urls"`
}

// TaxonomyResponse is one statement's tag list.
type TaxonomyResponse struct {
	Category models.Category      `json:"category"`
	Entries  []fsds.TaxonomyEntry `json:"entries"`
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": Version,
			"uptime":  time.Since(s.started).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	freq, years, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.stack.Service.Run(r.Context(), fsds.Request{
		Ticker:    ticker,
		Frequency: freq,
		Years:     years,
		RequestID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		status := statusFor(err)
		if res != nil {
			// No data: the envelope still carries the three empty tables.
			writeJSON(w, status, APIResponse{Success: false, Data: res, Error: err.Error()})
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	ctx := r.Context()

	var resp ResolveResponse
	filer, err := s.stack.Resolver.Resolve(ctx, ticker)
	switch {
	case err == nil:
		resp.Filer = &filer
	case !errors.Is(err, fsds.ErrTickerNotFound):
		writeError(w, statusFor(err), err.Error())
		return
	}

	matches, err := s.stack.Resolver.Lookup(ctx, ticker, defaultMatchLimit)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	resp.Matches = matches

	if resp.Filer == nil {
		writeJSON(w, http.StatusNotFound, APIResponse{
			Success: false,
			Data:    resp,
			Error:   (&fsds.TickerNotFoundError{Ticker: ticker}).Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	freq, years, err := parseWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		asOf, err = time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
	}

	periods, err := fsds.Plan(freq, years, asOf)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	urls := make([]string, len(periods))
	for i, p := range periods {
		urls[i] = s.stack.Fetcher.URL(p)
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: PlanResponse{
			Frequency: freq,
			Years:     years,
			AsOf:      asOf.Format("2006-01-02"),
			Periods:   periods,
			URLs:      urls,
		},
	})
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	if s.stack.Catalog == nil {
		writeError(w, http.StatusNotImplemented, "dataset catalog not configured")
		return
	}
	periods, err := s.stack.Catalog.Available(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: periods})
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	cats := models.Categories
	if v := r.URL.Query().Get("category"); v != "" {
		c, err := models.ParseCategory(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cats = []models.Category{c}
	}

	tax := s.stack.Taxonomy
	out := make([]TaxonomyResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, TaxonomyResponse{Category: c, Entries: tax.Entries(c)})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// parseWindow reads the frequency and years query parameters.
func parseWindow(r *http.Request) (models.Frequency, int, error) {
	q := r.URL.Query()

	freq := models.Annual
	if v := q.Get("frequency"); v != "" {
		f, err := models.ParseFrequency(v)
		if err != nil {
			return "", 0, err
		}
		freq = f
	}

	years := defaultYears
	if v := q.Get("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", 0, errors.New("years must be an integer")
		}
		years = n
	}
	return freq, years, nil
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		fe *fsds.FetchError
		se *infra.StatusError
	)
	switch {
	case errors.Is(err, fsds.ErrInvalidYears):
		return http.StatusBadRequest
	case errors.Is(err, fsds.ErrTickerNotFound), errors.Is(err, fsds.ErrNoDataFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &fe), errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
