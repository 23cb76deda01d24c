package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"trail-progress-service/internal/app"
)

// LevelingHandler exposes the experience ledger as the leveling service's
// network boundary.
type LevelingHandler struct {
	svc *app.LevelingService
}

func NewLevelingHandler(svc *app.LevelingService) *LevelingHandler {
	return &LevelingHandler{svc: svc}
}

// Register wires the leveling routes onto mux.
func (h *LevelingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/experience/credit", h.handleCredit)
	mux.HandleFunc("/api/experience/batch", h.handleBatchRead)
	mux.HandleFunc("/api/experience/convert", h.handleConvert)
	mux.HandleFunc("/api/experience", h.handleRead)
}

type creditRequest struct {
	UserID string `json:"userId"`
	Amount *int   `json:"amount"`
}

func (h *LevelingHandler) handleCredit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req creditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount == nil {
		writeError(w, http.StatusBadRequest, "amount is required")
		return
	}
	rec, err := h.svc.CreditExperience(r.Context(), req.UserID, *req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *LevelingHandler) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rec, err := h.svc.ReadExperience(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type batchReadRequest struct {
	UserIDs []string `json:"userIds"`
}

func (h *LevelingHandler) handleBatchRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req batchReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	records, err := h.svc.BatchReadExperience(r.Context(), req.UserIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (h *LevelingHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	percent, err := strconv.Atoi(r.URL.Query().Get("percent"))
	if err != nil || percent < 0 || percent > 100 {
		writeError(w, http.StatusBadRequest, "percent must be an integer in [0, 100]")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"percent":    percent,
		"experience": h.svc.PercentToExperience(percent),
	})
}
