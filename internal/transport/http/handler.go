package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiniela-service/internal/app"
	"quiniela-service/internal/domain"
)

const adminSecretHeader = "X-Admin-Secret"

// LeaderboardCache is an optional read-through cache for the leaderboard
// endpoint; implemented by the redis infra.
type LeaderboardCache interface {
	Get(ctx context.Context, slug string) (domain.Leaderboard, bool)
	Set(ctx context.Context, slug string, lb domain.Leaderboard)
	Invalidate(ctx context.Context, slug string)
}

// APIHandler exposes the contest operations over HTTP, scoped per brand.
type APIHandler struct {
	service *app.ContestService
	cache   LeaderboardCache
}

// NewAPIHandler wires the service into HTTP. cache may be nil.
func NewAPIHandler(service *app.ContestService, cache LeaderboardCache) *APIHandler {
	return &APIHandler{service: service, cache: cache}
}

// Register attaches all routes to the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/{brand}/participants", h.register)
	mux.HandleFunc("GET /api/{brand}/participants", h.listParticipants)
	mux.HandleFunc("POST /api/{brand}/predictions", h.submitPredictions)
	mux.HandleFunc("GET /api/{brand}/predictions/{userId}", h.getPredictions)
	mux.HandleFunc("GET /api/{brand}/results", h.getResults)
	mux.HandleFunc("GET /api/{brand}/leaderboard", h.getLeaderboard)
	mux.HandleFunc("POST /api/{brand}/admin/results", h.submitResults)
	mux.HandleFunc("POST /api/{brand}/admin/calculate", h.calculate)
	mux.HandleFunc("GET /api/{brand}/admin/check/{userId}/{question}", h.checkPrediction)
}

type registerRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

func (h *APIHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" {
		http.Error(w, "name and email are required", http.StatusBadRequest)
		return
	}
	participant, err := h.service.Register(r.Context(), r.PathValue("brand"), req.Name, req.Email, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":     participant.ID,
		"name":   participant.Name,
		"avatar": participant.Avatar,
	})
}

func (h *APIHandler) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.Participants(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, err)
		return
	}
	// public view only, emails stay private
	out := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		out = append(out, map[string]any{
			"id":        p.ID,
			"name":      p.Name,
			"avatar":    p.Avatar,
			"score":     p.Score,
			"createdAt": p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type predictionsRequest struct {
	UserID      string                   `json:"userId"`
	Predictions map[string]domain.Answer `json:"predictions"`
}

func (h *APIHandler) submitPredictions(w http.ResponseWriter, r *http.Request) {
	var req predictionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || len(req.Predictions) == 0 {
		http.Error(w, "userId and predictions are required", http.StatusBadRequest)
		return
	}
	if err := h.service.SubmitPredictions(r.Context(), r.PathValue("brand"), req.UserID, req.Predictions); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "predictions saved"})
}

func (h *APIHandler) getPredictions(w http.ResponseWriter, r *http.Request) {
	predictions, err := h.service.Predictions(r.Context(), r.PathValue("brand"), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func (h *APIHandler) getResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), r.PathValue("brand"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("brand")
	if h.cache != nil {
		if lb, ok := h.cache.Get(r.Context(), slug); ok {
			writeJSON(w, http.StatusOK, lb)
			return
		}
	}
	lb, err := h.service.Leaderboard(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.cache != nil {
		h.cache.Set(r.Context(), slug, lb)
	}
	writeJSON(w, http.StatusOK, lb)
}

type resultsRequest struct {
	Results map[string]domain.Answer `json:"results"`
}

func (h *APIHandler) submitResults(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("brand")
	if !h.authorize(w, r, slug) {
		return
	}
	var req resultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Results) == 0 {
		http.Error(w, "results are required", http.StatusBadRequest)
		return
	}
	if err := h.service.SubmitResults(r.Context(), slug, req.Results); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "results saved"})
}

func (h *APIHandler) calculate(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("brand")
	if !h.authorize(w, r, slug) {
		return
	}
	updated, err := h.service.Recompute(r.Context(), slug)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(r.Context(), slug)
		if lb, err := h.service.Leaderboard(r.Context(), slug); err == nil {
			h.cache.Set(r.Context(), slug, lb)
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *APIHandler) checkPrediction(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("brand")
	if !h.authorize(w, r, slug) {
		return
	}
	check, err := h.service.CheckPrediction(r.Context(), slug, r.PathValue("userId"), r.PathValue("question"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *APIHandler) authorize(w http.ResponseWriter, r *http.Request, slug string) bool {
	err := h.service.AuthorizeAdmin(r.Context(), slug, r.Header.Get(adminSecretHeader))
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrNotAuthorized) {
		log.Printf("[ADMIN AUDIT] rejected admin request: brand=%s path=%s", slug, r.URL.Path)
	}
	writeError(w, err)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBrandNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrNoAnswer):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrPredictionsLocked),
		errors.Is(err, domain.ErrBrandInactive):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
