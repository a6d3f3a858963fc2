package problems

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/leetrack/backend/internal/models"
)

// InsightGenerator produces a short written takeaway for a problem.
type InsightGenerator interface {
	Generate(ctx context.Context, p *models.Problem) (string, error)
}

type Handler struct {
	store     *Store
	generator InsightGenerator
}

func NewHandler(store *Store, generator InsightGenerator) *Handler {
	return &Handler{store: store, generator: generator}
}

// List handles GET /problems?state=low
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var state *models.MasteryState
	if raw := r.URL.Query().Get("state"); raw != "" {
		s := models.MasteryState(strings.ToLower(raw))
		if !models.ValidMasteryStates[s] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid state %q", raw))
			return
		}
		state = &s
	}

	problems, err := h.store.List(state)
	if err != nil {
		log.Printf("list problems: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list problems")
		return
	}
	if problems == nil {
		problems = []models.Problem{}
	}
	writeJSON(w, http.StatusOK, problems)
}

// Create handles POST /problems
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := h.store.Create(r.Context(), req.Name, req.Link, req.Topics)
	if err == ErrDuplicateName {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Printf("create problem: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create problem")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Get handles GET /problems/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(id)
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("get problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get problem")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Patch handles PATCH /problems/{id}
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.PatchProblemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}

	p, err := h.store.Patch(id, req)
	switch err {
	case nil:
	case ErrNotFound:
		writeError(w, http.StatusNotFound, err.Error())
		return
	case ErrDuplicateName:
		writeError(w, http.StatusConflict, err.Error())
		return
	default:
		log.Printf("patch problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to update problem")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /problems/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(id)
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("delete problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to delete problem")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTopics handles GET /topics
func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.store.ListTopics()
	if err != nil {
		log.Printf("list topics: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list topics")
		return
	}
	if topics == nil {
		topics = []models.Topic{}
	}
	writeJSON(w, http.StatusOK, topics)
}

// SetTopics handles PUT /problems/{id}/topics
func (h *Handler) SetTopics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.SetTopicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.SetTopics(r.Context(), id, req.Topics)
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("set topics for problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to set topics")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Attempts handles GET /problems/{id}/attempts
func (h *Handler) Attempts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	attempts, err := h.store.AttemptsFor(id)
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("attempts for problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get attempts")
		return
	}
	if attempts == nil {
		attempts = []models.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// GenerateInsight handles POST /problems/{id}/insight
func (h *Handler) GenerateInsight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(id)
	if err == ErrNotFound {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.Printf("get problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to get problem")
		return
	}

	insight, err := h.generator.Generate(r.Context(), p)
	if err != nil {
		log.Printf("generate insight for problem %d: %v", id, err)
		writeError(w, http.StatusBadGateway, "insight generation failed")
		return
	}

	if err := h.store.SaveInsight(id, insight); err != nil {
		log.Printf("save insight for problem %d: %v", id, err)
		writeError(w, http.StatusInternalServerError, "failed to save insight")
		return
	}
	p.Insight = &insight
	writeJSON(w, http.StatusOK, p)
}

// ExportCSV handles GET /problems/export
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	problems, err := h.store.List(nil)
	if err != nil {
		log.Printf("export problems: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to export problems")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="problems.csv"`)
	if err := WriteCSV(w, problems); err != nil {
		log.Printf("write csv: %v", err)
	}
}

// ImportCSV handles POST /problems/import
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := ParseCSV(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid csv: %v", err))
		return
	}

	result, err := h.store.Import(r.Context(), rows)
	if err != nil {
		log.Printf("import problems: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to import problems")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid problem id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
