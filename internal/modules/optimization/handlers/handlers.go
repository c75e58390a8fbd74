// Package handlers provides HTTP handlers for the portfolio optimizer.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/charts"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/internal/modules/runs"
)

// Handler handles optimizer HTTP requests
type Handler struct {
	service *optimization.Service
	runRepo *runs.Repository
	charts  *charts.Service
	log     zerolog.Logger
}

// NewHandler creates a new optimizer handler
func NewHandler(
	service *optimization.Service,
	runRepo *runs.Repository,
	chartService *charts.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service: service,
		runRepo: runRepo,
		charts:  chartService,
		log:     log.With().Str("handler", "optimizer").Logger(),
	}
}

// RegisterRoutes registers optimizer routes on the router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimizer", func(r chi.Router) {
		r.Post("/run", h.HandleRun)
		r.Post("/frontier", h.HandleFrontier)
		r.Post("/frontier/chart", h.HandleFrontierChart)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
	})
}

type optimizeRequest struct {
	Assets          []string             `json:"assets"`
	ExpectedReturns []float64            `json:"expected_returns"`
	Covariance      [][]float64          `json:"covariance"`
	Options         optimization.Options `json:"options"`
}

func (req *optimizeRequest) stats() optimization.AssetStats {
	return optimization.AssetStats{
		Assets:          req.Assets,
		ExpectedReturns: req.ExpectedReturns,
		Covariance:      req.Covariance,
	}
}

// HandleRun runs all strategies and persists the result
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := h.service.Run(req.stats(), req.Options)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	run, err := h.runRepo.Save(req.Assets, req.Options, report)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// HandleFrontier runs only the efficient frontier sweep
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	frontier, err := h.service.Frontier(req.stats(), req.Options)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"frontier": frontier})
}

// HandleFrontierChart renders the efficient frontier as a PNG
func (h *Handler) HandleFrontierChart(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	frontier, err := h.service.Frontier(req.stats(), req.Options)
	if err != nil {
		h.writeError(w, statusForError(err), err.Error())
		return
	}

	png, err := h.charts.FrontierPNG(frontier)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart response")
	}
}

// HandleListRuns returns recent optimization runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = parsed
	}

	result, err := h.runRepo.List(limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": result})
}

// HandleGetRun returns a single optimization run by ID
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runRepo.GetByID(id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		h.writeError(w, http.StatusNotFound, "run not found: "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

// statusForError maps core error kinds onto HTTP statuses: malformed or
// degenerate statistics are client errors, everything else is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, optimization.ErrNumeric), errors.Is(err, optimization.ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, optimization.ErrOptimizationFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
