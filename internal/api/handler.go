// Package api provides the HTTP handlers for the cloudsathi REST API.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cloudsathi/internal/domain"
	"cloudsathi/internal/service/cur"
	"cloudsathi/internal/service/summary"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// CostSource produces a normalized report for one provider.
type CostSource interface {
	GetCosts(ctx context.Context, r domain.DateRange) (*domain.CostReport, error)
}

// CURReporter runs the canned CUR reports.
type CURReporter interface {
	TopResources(ctx context.Context, p cur.Params) (*cur.Report, error)
	UsageByOperation(ctx context.Context, p cur.Params) (*cur.Report, error)
}

// Summarizer combines both providers.
type Summarizer interface {
	Summarize(ctx context.Context, r domain.DateRange) (*summary.Summary, error)
}

// Recommender turns cost data into a suggestion.
type Recommender interface {
	Recommend(ctx context.Context, costData map[string]any) (string, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck interface {
	Check(ctx context.Context) error
}

// Deps holds the services the handler serves from. Readiness checks are
// keyed by the name shown in the /readyz response.
type Deps struct {
	AWS       CostSource
	Azure     CostSource
	CUR       CURReporter
	Summary   Summarizer
	Recommend Recommender
	Ready     map[string]ReadinessCheck
	Logger    *slog.Logger
}

// APIHandler serves the cost endpoints.
type APIHandler struct {
	aws       CostSource
	azure     CostSource
	cur       CURReporter
	summary   Summarizer
	recommend Recommender
	ready     map[string]ReadinessCheck
	logger    *slog.Logger
}

// NewHandler creates an APIHandler.
func NewHandler(deps Deps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		aws:       deps.AWS,
		azure:     deps.Azure,
		cur:       deps.CUR,
		summary:   deps.Summary,
		recommend: deps.Recommend,
		ready:     deps.Ready,
		logger:    logger.With("component", "api"),
	}
}

// Routes registers the /api endpoints on r.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/aws/costs", h.GetAWSCosts)
	r.Get("/azure/costs", h.GetAzureCosts)
	r.Get("/aws/cur/top-resources", h.curHandler(h.cur.TopResources))
	r.Get("/aws/cur/usage-by-operation", h.curHandler(h.cur.UsageByOperation))
	r.Get("/costs/summary", h.GetCostSummary)
	r.Post("/recommendations", h.PostRecommendation)
}

// GetAWSCosts serves daily Cost Explorer costs grouped by service.
func (h *APIHandler) GetAWSCosts(w http.ResponseWriter, r *http.Request) {
	dr, err := requiredRange(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	report, err := h.aws.GetCosts(r.Context(), dr)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, awsReportToAPI(report))
}

// GetAzureCosts serves Azure actual cost grouped by resource group.
func (h *APIHandler) GetAzureCosts(w http.ResponseWriter, r *http.Request) {
	dr, err := requiredRange(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	report, err := h.azure.GetCosts(r.Context(), dr)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, azureReportToAPI(report))
}

// GetCostSummary serves both providers for one range.
func (h *APIHandler) GetCostSummary(w http.ResponseWriter, r *http.Request) {
	dr, err := requiredRange(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sum, err := h.summary.Summarize(r.Context(), dr)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryToAPI(sum))
}

func (h *APIHandler) curHandler(run func(context.Context, cur.Params) (*cur.Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, normalized, err := curParams(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		rep, err := run(r.Context(), params)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if !normalized {
			writeJSON(w, http.StatusOK, curRecordsToAPI(rep.Result))
			return
		}
		report, err := rep.Normalize()
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, curNormalizedToAPI(rep, report))
	}
}

// PostRecommendation serves a suggestion for the posted cost data.
func (h *APIHandler) PostRecommendation(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, h.logger, domain.ErrInvalidParameter("invalid request body: %v", err))
		return
	}
	rec, err := h.recommend.Recommend(r.Context(), req.CostData)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendationResponse{Recommendation: rec})
}

// Health reports liveness.
func (h *APIHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready runs every readiness check and returns 503 if any fails.
func (h *APIHandler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.ready))}
	status := http.StatusOK
	for name, check := range h.ready {
		if err := check.Check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// === Query parameter helpers ===

func requiredRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	return domain.ParseDateRange(q.Get("start_date"), q.Get("end_date"))
}

// curParams reads limit, the optional date pair and the view selector.
func curParams(r *http.Request) (cur.Params, bool, error) {
	q := r.URL.Query()
	var p cur.Params

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, false, domain.ErrInvalidParameter("limit must be an integer, got %q", raw)
		}
		if n < 1 || n > cur.MaxLimit {
			return p, false, domain.ErrInvalidParameter("limit must be between 1 and %d, got %d", cur.MaxLimit, n)
		}
		p.Limit = n
	}

	start, end := q.Get("start_date"), q.Get("end_date")
	switch {
	case start == "" && end == "":
	case start == "" || end == "":
		return p, false, domain.ErrInvalidParameter("start_date and end_date must be given together")
	default:
		dr, err := domain.ParseDateRange(start, end)
		if err != nil {
			return p, false, err
		}
		p.Range = &dr
	}

	switch view := q.Get("view"); view {
	case "", "records":
		return p, false, nil
	case "normalized":
		return p, true, nil
	default:
		return p, false, domain.ErrInvalidParameter("view must be records or normalized, got %q", view)
	}
}
