package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/domain"
)

// ProgressHandler exposes the progress tracker and the ranking aggregator as
// JSON endpoints for the presentation layer.
type ProgressHandler struct {
	progress *app.ProgressService
	rankings *app.RankingService
}

func NewProgressHandler(progress *app.ProgressService, rankings *app.RankingService) *ProgressHandler {
	return &ProgressHandler{progress: progress, rankings: rankings}
}

// Register wires the progress routes onto mux.
func (h *ProgressHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/progress/answer", h.handleSubmitAnswer)
	mux.HandleFunc("/api/progress/finalize", h.handleFinalize)
	mux.HandleFunc("/api/progress/trail", h.handleTrailProgress)
	mux.HandleFunc("/api/progress", h.handleGetProgress)
	mux.HandleFunc("/api/rankings/accuracy", h.handleAccuracyRanking)
	mux.HandleFunc("/api/rankings/level", h.handleLevelRanking)
}

type submitAnswerRequest struct {
	UserID        string `json:"userId"`
	PhaseID       string `json:"phaseId"`
	QuestionIndex *int   `json:"questionIndex"`
	ChosenIndex   *int   `json:"chosenIndex"`
	UserName      string `json:"userName"`
}

func (h *ProgressHandler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionIndex == nil || req.ChosenIndex == nil {
		writeError(w, http.StatusBadRequest, "questionIndex and chosenIndex are required")
		return
	}
	rec, err := h.progress.SubmitAnswer(r.Context(), req.UserID, req.PhaseID, *req.QuestionIndex, *req.ChosenIndex, req.UserName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type finalizeRequest struct {
	UserID         string `json:"userId"`
	PhaseID        string `json:"phaseId"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	UserName       string `json:"userName"`
}

func (h *ProgressHandler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.progress.Finalize(r.Context(), req.UserID, req.PhaseID, req.Score, req.TotalQuestions, req.UserName)
	if errors.Is(err, domain.ErrAlreadyCompleted) {
		// The rejection carries the existing record unchanged.
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  err.Error(),
			"record": result.Record,
		})
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ProgressHandler) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	rec, err := h.progress.GetProgress(r.Context(), q.Get("userId"), q.Get("phaseId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ProgressHandler) handleTrailProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	phases, err := h.progress.GetTrailProgress(r.Context(), q.Get("userId"), q.Get("trailId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trailId": q.Get("trailId"),
		"phases":  phases,
	})
}

func (h *ProgressHandler) handleAccuracyRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := h.rankings.AccuracyLeaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *ProgressHandler) handleLevelRanking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := h.rankings.LevelLeaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps sentinel errors to HTTP statuses; anything else is a
// transient storage failure reported as 500 for the caller to retry.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPhaseNotFound), errors.Is(err, domain.ErrProgressNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
