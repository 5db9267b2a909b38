package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/audit"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/dataset"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/fidelity"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/logging"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/metrics"
	"github.com/danielpatrickdp/xai-audit/go-auditor/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	maxBodyBytes     = 16 << 20
	surface          = "http"
)

// ReportStore is the read side of the audit ledger.
type ReportStore interface {
	GetReport(ctx context.Context, id string) (audit.Report, error)
	ListReports(ctx context.Context, limit int) ([]audit.Report, error)
}

// Handler serves the scoring and audit API.
type Handler struct {
	Auditor *audit.Auditor
	Reports ReportStore
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewHandler creates a Handler. m and logger may be nil.
func NewHandler(auditor *audit.Auditor, reports ReportStore, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Auditor: auditor,
		Reports: reports,
		Metrics: m,
		Logger:  logging.OrNop(logger),
	}
}

// NewRouter wires middleware and routes. origins lists allowed CORS origins.
func NewRouter(h *Handler, origins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r. /metrics is mounted only when Metrics is set.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Post("/api/fidelity", h.ScoreFidelity)
	r.Get("/api/catalog", h.GetCatalog)

	r.Post("/api/audits", h.CreateAudit)
	r.Get("/api/audits", h.ListAudits)
	r.Get("/api/audits/compare", h.CompareAudits)
	r.Get("/api/audits/{id}", h.GetAudit)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}
}

// ============================================================================
// Health
// ============================================================================

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Scoring
// ============================================================================

// ScoreFidelity scores a prediction pair without recording it.
func (h *Handler) ScoreFidelity(w http.ResponseWriter, r *http.Request) {
	var pair dataset.Pair
	if err := decodeBody(w, r, &pair); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "")
		return
	}

	res, err := fidelity.ComputeFidelity(pair.ModelOutputs, pair.SurrogateOutputs)
	if err != nil {
		kind := fidelity.Kind(err)
		h.Metrics.Observe(surface, kind, nil)
		writeError(w, http.StatusUnprocessableEntity, err.Error(), kind)
		return
	}
	h.Metrics.Observe(surface, "ok", &res)

	writeJSON(w, http.StatusOK, res)
}

// GetCatalog returns the metric targets audits are checked against.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Auditor.Catalog())
}

// ============================================================================
// Audits
// ============================================================================

// CreateAudit scores a pair, checks it against the catalog and records the report.
func (h *Handler) CreateAudit(w http.ResponseWriter, r *http.Request) {
	var req audit.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "")
		return
	}
	if req.Model == "" || req.Surrogate == "" {
		writeError(w, http.StatusBadRequest, "model and surrogate names are required", "")
		return
	}

	rep, err := h.Auditor.Run(r.Context(), req)
	if err != nil {
		if kind := fidelity.Kind(err); kind != "" {
			h.Metrics.Observe(surface, kind, nil)
			writeError(w, http.StatusUnprocessableEntity, err.Error(), kind)
			return
		}
		h.Logger.Error("audit failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "audit could not be recorded", "")
		return
	}

	outcome := logging.DecisionFail
	if rep.Passed {
		outcome = logging.DecisionPass
	}
	h.Metrics.Observe(surface, outcome, &rep.Fidelity)

	writeJSON(w, http.StatusCreated, rep)
}

// ListAudits returns the most recent reports.
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500", "")
			return
		}
		limit = n
	}

	reports, err := h.Reports.ListReports(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list reports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list reports", "")
		return
	}
	if reports == nil {
		reports = []audit.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// GetAudit returns one report.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.lookup(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// CompareAudits lines up two reports as a before/after validation table.
func (h *Handler) CompareAudits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	beforeID, afterID := q.Get("before"), q.Get("after")
	if beforeID == "" || afterID == "" {
		writeError(w, http.StatusBadRequest, "before and after report ids are required", "")
		return
	}

	before, ok := h.lookup(w, r, beforeID)
	if !ok {
		return
	}
	after, ok := h.lookup(w, r, afterID)
	if !ok {
		return
	}

	deltas := audit.Compare(before, after)
	if deltas == nil {
		deltas = []audit.Delta{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"before": before.ID,
		"after":  after.ID,
		"deltas": deltas,
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, id string) (audit.Report, bool) {
	rep, err := h.Reports.GetReport(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report "+id+" not found", "")
		return audit.Report{}, false
	}
	if err != nil {
		h.Logger.Error("get report", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load report", "")
		return audit.Report{}, false
	}
	return rep, true
}

// ============================================================================
// Helpers
// ============================================================================

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeJSON marshals before writing the header; an unencodable value is a 500.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: "response could not be encoded"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
