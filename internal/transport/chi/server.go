// Package chi serves bulk correlation over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"patchdiff/internal/correlate"
	"patchdiff/internal/logger"
	"patchdiff/internal/metrics"
	"patchdiff/internal/output"
	"patchdiff/internal/program"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest       = "bad_request"
	CodeTooLarge         = "request_too_large"
	CodeValidationFailed = "validation_failed"
	CodeCanceled         = "canceled"
	CodeInternal         = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OptionsRequest overrides the server's default options field by field.
type OptionsRequest struct {
	SimilarityThreshold  *float64 `json:"similarity_threshold,omitempty"`
	ConfidenceThreshold  *float64 `json:"confidence_threshold,omitempty"`
	SymbolNamesMustMatch *bool    `json:"symbol_names_must_match,omitempty"`
}

// CorrelateRequest is the body of POST /v1/correlate.
type CorrelateRequest struct {
	Source        []*program.Func `json:"source"`
	Destination   []*program.Func `json:"destination"`
	Options       OptionsRequest  `json:"options"`
	BestPerSource bool            `json:"best_per_source,omitempty"`
}

// Server handles correlation requests.
type Server struct {
	defaults     correlate.Options
	workers      int
	maxBodyBytes int64
	gatherer     prometheus.Gatherer
	logger       *zap.Logger
}

// Config holds Server settings.
type Config struct {
	Defaults     correlate.Options
	Workers      int
	MaxBodyBytes int64
	Gatherer     prometheus.Gatherer // nil = prometheus.DefaultGatherer
}

// NewServer creates an HTTP API server.
func NewServer(cfg Config, l *zap.Logger) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		defaults:     cfg.Defaults,
		workers:      cfg.Workers,
		maxBodyBytes: cfg.MaxBodyBytes,
		gatherer:     cfg.Gatherer,
		logger:       l,
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.Health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Post("/v1/correlate", s.Correlate)
	return r
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Correlate handles POST /v1/correlate.
func (s *Server) Correlate(w http.ResponseWriter, r *http.Request) {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	var req CorrelateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	opts := s.defaults
	if v := req.Options.SimilarityThreshold; v != nil {
		opts.SimilarityThreshold = *v
	}
	if v := req.Options.ConfidenceThreshold; v != nil {
		opts.ConfidenceThreshold = *v
	}
	if v := req.Options.SymbolNamesMustMatch; v != nil {
		opts.SymbolNamesMustMatch = *v
	}

	c, err := correlate.New(opts, correlate.WithWorkers(s.workers))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	ctx := logger.With(logger.ContextWithLogger(r.Context(), s.logger),
		zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
	log := logger.FromContext(ctx)
	src, err := program.Static(compact(req.Source)).Functions(nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	dst, err := program.Static(compact(req.Destination)).Functions(nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	ms, err := c.Correlate(ctx, src, dst)
	if err != nil {
		if r.Context().Err() != nil {
			writeError(w, http.StatusServiceUnavailable, CodeCanceled, "request canceled")
			return
		}
		log.Error("correlate request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "correlation failed")
		return
	}
	if req.BestPerSource {
		ms = ms.BestPerSource()
	}

	writeJSON(w, http.StatusOK, output.Report{
		Correlator: correlate.Name,
		Options:    opts,
		Matches:    output.Records(ms),
	})
}

// compact drops null entries from a decoded function list.
func compact(fns []*program.Func) []*program.Func {
	out := fns[:0:0]
	for _, f := range fns {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
