// Package chi exposes the HTTP API: answering questions over a data
// source and rebuilding its precomputed aggregation store.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/datapilot-ai/datapilot/internal/domain"
	domagg "github.com/datapilot-ai/datapilot/internal/domain/aggregate"
	domanswer "github.com/datapilot-ai/datapilot/internal/domain/answer"
	"github.com/datapilot-ai/datapilot/internal/domain/query"
	domstrat "github.com/datapilot-ai/datapilot/internal/domain/strategy"
	logpkg "github.com/datapilot-ai/datapilot/internal/logger"
	answeruc "github.com/datapilot-ai/datapilot/internal/usecase/answer"
	aggregateuc "github.com/datapilot-ai/datapilot/internal/usecase/aggregate"
	healthuc "github.com/datapilot-ai/datapilot/internal/usecase/health"
	scanuc "github.com/datapilot-ai/datapilot/internal/usecase/scan"
)

// Error codes returned to clients.
const (
	codeBadRequest              = "bad_request"
	codeValidationFailed        = "validation_failed"
	codeSourceRequired          = "source_required"
	codeSourceNotFound          = "source_not_found"
	codeRebuildInProgress       = "rebuild_in_progress"
	codeUnknownStrategy         = "unknown_strategy"
	codeEmbeddingProviderError  = "embedding_provider_error"
	codeCompletionProviderError = "completion_provider_error"
	codeInternalError           = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Answerer runs the question pipeline.
type Answerer interface {
	Answer(ctx context.Context, text string, opts answeruc.Options) (domanswer.Answer, error)
}

// Rebuilder rebuilds a source's aggregation store.
type Rebuilder interface {
	Rebuild(ctx context.Context, sourceID string, opts aggregateuc.Options) (aggregateuc.Report, error)
}

// Server implements the HTTP API.
type Server struct {
	answers       Answerer
	builder       Rebuilder
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(answers Answerer, builder Rebuilder, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		answers: answers,
		builder: builder,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSourceRequired, http.StatusBadRequest, codeSourceRequired),
		sentinelHandler(domain.ErrSourceNotFound, http.StatusNotFound, codeSourceNotFound),
		sentinelHandler(domain.ErrRebuildInProgress, http.StatusConflict, codeRebuildInProgress),
		sentinelHandler(domain.ErrUnknownStrategy, http.StatusBadRequest, codeUnknownStrategy),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, codeCompletionProviderError),
	}
	return s
}

// Register mounts the API routes.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/sources/{sourceID}/answer", s.AnswerQuestion)
	r.Post("/v1/sources/{sourceID}/aggregations/rebuild", s.RebuildAggregations)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type answerRequest struct {
	Question string `json:"question"`
	Strategy string `json:"strategy,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Table    string `json:"table,omitempty"`
}

type sourceResponse struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type detailsResponse struct {
	Strategy     string           `json:"strategy"`
	Confidence   float64          `json:"confidence"`
	Rerouted     bool             `json:"rerouted"`
	FallbackUsed bool             `json:"fallback_used"`
	Error        string           `json:"error,omitempty"`
	TimingsMs    map[string]int64 `json:"timings_ms,omitempty"`
}

type answerResponse struct {
	Answer      string           `json:"answer"`
	Sources     []sourceResponse `json:"sources,omitempty"`
	Details     detailsResponse  `json:"details"`
	Model       string           `json:"model,omitempty"`
	TotalTokens int              `json:"total_tokens,omitempty"`
	AnsweredAt  time.Time        `json:"answered_at"`
}

// AnswerQuestion handles POST /v1/sources/{sourceID}/answer.
func (s *Server) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Question is required")
		return
	}

	force := domstrat.Type(req.Strategy)
	if req.Strategy != "" && !force.IsValid() {
		writeError(w, http.StatusBadRequest, codeUnknownStrategy, "Unknown strategy: "+req.Strategy)
		return
	}

	ans, err := s.answers.Answer(r.Context(), req.Question, answeruc.Options{
		SourceID: sourceID,
		Force:    force,
		Limit:    req.Limit,
		Table:    req.Table,
	})
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerToResponse(ans))
}

type rebuildRequest struct {
	Kinds     []string          `json:"kinds,omitempty"`
	Table     string            `json:"table,omitempty"`
	DateRange *dateRangeRequest `json:"date_range,omitempty"`
}

// dateRangeRequest bounds a rebuild to rows inside [From, To), dates in
// 2006-01-02 form.
type dateRangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

const dateRangeLayout = "2006-01-02"

func (d *dateRangeRequest) parse() (*scanuc.DateRange, error) {
	if d == nil {
		return nil, nil
	}
	from, err := time.Parse(dateRangeLayout, d.From)
	if err != nil {
		return nil, fmt.Errorf("date_range.from: %w", err)
	}
	to, err := time.Parse(dateRangeLayout, d.To)
	if err != nil {
		return nil, fmt.Errorf("date_range.to: %w", err)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("date_range.from must be before date_range.to")
	}
	return &scanuc.DateRange{From: from, To: to}, nil
}

// RebuildAggregations handles POST /v1/sources/{sourceID}/aggregations/rebuild.
func (s *Server) RebuildAggregations(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	var req rebuildRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	kinds := make([]domagg.Kind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind := domagg.Kind(k)
		if !kind.IsValid() {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "Unknown aggregation kind: "+k)
			return
		}
		kinds = append(kinds, kind)
	}

	dateRange, err := req.DateRange.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Invalid date range: "+err.Error())
		return
	}

	report, err := s.builder.Rebuild(r.Context(), sourceID, aggregateuc.Options{
		Kinds:     kinds,
		Table:     req.Table,
		DateRange: dateRange,
	})
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func answerToResponse(ans domanswer.Answer) answerResponse {
	sources := make([]sourceResponse, len(ans.Sources))
	for i, src := range ans.Sources {
		sources[i] = sourceResponse{ID: src.ID, Content: src.Content, Score: src.Score}
	}

	return answerResponse{
		Answer:      ans.Text,
		Sources:     sources,
		Details:     detailsToResponse(ans.Details),
		Model:       ans.Metadata.Model,
		TotalTokens: ans.Metadata.TotalTokens,
		AnsweredAt:  ans.Metadata.AnsweredAt,
	}
}

func detailsToResponse(d query.Details) detailsResponse {
	return detailsResponse{
		Strategy:     string(d.Strategy),
		Confidence:   d.Confidence,
		Rerouted:     d.Rerouted,
		FallbackUsed: d.FallbackUsed,
		Error:        d.Error,
		TimingsMs:    d.Timings,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSourceRequired,
		domain.ErrSourceNotFound,
		domain.ErrRebuildInProgress,
		domain.ErrUnknownStrategy,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logpkg.FromContext(ctx, s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
