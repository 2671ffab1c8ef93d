package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerkeep/recurring-service/internal/middleware"
	"github.com/ledgerkeep/recurring-service/internal/models"
	"github.com/ledgerkeep/recurring-service/internal/scheduler"
	"github.com/ledgerkeep/recurring-service/internal/service"
	"github.com/ledgerkeep/recurring-service/internal/system"
)

// Handler exposes the engine's result shapes over HTTP
type Handler struct {
	svc       *service.Service
	processor *service.Processor
	sched     *scheduler.Scheduler
	sys       *system.System
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, processor *service.Processor, sched *scheduler.Scheduler, sys *system.System) *Handler {
	return &Handler{svc: svc, processor: processor, sched: sched, sys: sys}
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to register: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// UpcomingSchedule returns the authenticated user's schedule preview
func (h *Handler) UpcomingSchedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	horizonDays := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		horizonDays = parsed
	}

	upcoming, err := h.processor.UpcomingSchedule(r.Context(), userID, horizonDays)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load schedule: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, upcoming)
}

// ProcessRecurring triggers a sweep of the authenticated user's due
// obligations and returns the processing result verbatim
func (h *Handler) ProcessRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}
	result := h.processor.ProcessUserRecurringPayments(r.Context(), userID)
	writeJSON(w, http.StatusOK, result)
}

// ValidateRecurring validates an obligation draft without persisting it
func (h *Handler) ValidateRecurring(w http.ResponseWriter, r *http.Request) {
	var draft models.ObligationDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.processor.ValidateRecurringPayment(draft))
}

// SchedulerStats returns scheduler runtime statistics and system status
func (h *Handler) SchedulerStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduler": h.sched.Stats(),
		"system":    h.sys.GetStatus(),
	})
}

// JobStatus returns one named job's record
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	job, ok := h.sched.JobStatus(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown job %q", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// UpdateJob toggles a job or replaces its schedule
func (h *Handler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req struct {
		Enabled  *bool   `json:"enabled,omitempty"`
		Schedule *string `json:"schedule,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Enabled == nil && req.Schedule == nil {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}

	if req.Schedule != nil {
		if err := h.sched.UpdateJobSchedule(name, *req.Schedule); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Enabled != nil {
		if err := h.sched.SetJobEnabled(name, *req.Enabled); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	job, ok := h.sched.JobStatus(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown job %q", name), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// authenticatedUserID pulls the user ID the auth middleware stored on the
// context; writes the error response itself on failure
func authenticatedUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user ID not found in context", http.StatusUnauthorized)
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
