package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/leetrack/backend/internal/models"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Today(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.SelectionEntry{}
	}
	writeJSON(w, http.StatusOK, models.TodayResponse{
		Date:       h.service.today().Format("2006-01-02"),
		Selections: entries,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.SelectionEntry{}
	}
	writeJSON(w, http.StatusOK, models.TodayResponse{
		Date:       h.service.today().Format("2006-01-02"),
		Selections: entries,
	})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.ProblemID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "problem_id is required"})
		return
	}

	problem, err := h.service.RecordCompletion(r.Context(), req.ProblemID, req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var req models.ReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.ProblemID <= 0 {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "problem_id is required"})
		return
	}

	replacement, err := h.service.Replace(r.Context(), req.ProblemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ReplaceResponse{
		Replaced:    req.ProblemID,
		Replacement: *replacement,
	})
}

func (h *Handler) ManualReview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid problem ID"})
		return
	}

	var req models.ManualReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	problem, err := h.service.ManualReview(r.Context(), id, req.Outcome, req.Insight)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, problem)
}

func (h *Handler) Pools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.service.Pools()
	if err != nil {
		writeError(w, err)
		return
	}
	if pools.New == nil {
		pools.New = []models.Problem{}
	}
	if pools.Review == nil {
		pools.Review = []models.Problem{}
	}
	if pools.Mastered == nil {
		pools.Mastered = []models.Problem{}
	}
	writeJSON(w, http.StatusOK, pools)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.DailyProblemCount()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SettingsResponse{DailyProblemCount: count})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.SetDailyProblemCount(req.DailyProblemCount); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.SettingsResponse{DailyProblemCount: req.DailyProblemCount})
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidOutcome):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotInSelection):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrAlreadyCompleted), errors.Is(err, ErrNoEligibleProblem):
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
