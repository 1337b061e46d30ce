package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"draftworks/warden/pkg/admission"
	"draftworks/warden/pkg/admission/ledger"
)

// decisionResponse is the admission check payload surfaced to callers.
// ResetAt is ISO-8601.
type decisionResponse struct {
	Allowed   bool   `json:"allowed"`
	Remaining int64  `json:"remaining"`
	ResetAt   string `json:"resetAt"`
	Reason    string `json:"reason,omitempty"`
}

// adjustRequest is the admin balance-adjustment input.
type adjustRequest struct {
	Subject string `json:"subject"`
	Amount  int64  `json:"amount"`
	Actor   string `json:"actor"`
	Reason  string `json:"reason"`
}

// adjustResponse is the admin balance-adjustment output.
type adjustResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	PreviousBalance int64  `json:"previousBalance"`
	NewBalance      int64  `json:"newBalance"`
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/admission/check", a.handleCheck)
	mux.HandleFunc("POST /v1/admission/commit", a.handleCommit)
	mux.HandleFunc("POST /v1/admin/credits/adjust", a.handleAdjust)
	mux.HandleFunc("GET /v1/credits/balance", a.handleBalance)
	mux.HandleFunc("POST /v1/content/encrypt", a.handleEncrypt)
	mux.HandleFunc("POST /v1/content/decrypt", a.handleDecrypt)
	mux.HandleFunc("DELETE /v1/subjects/{subject}/key", a.handleDeleteKey)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (a *app) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Action  string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || req.Action == "" {
		http.Error(w, "subject and action are required", http.StatusBadRequest)
		return
	}

	decision, err := a.manager.CheckAdmission(r.Context(), req.Subject, req.Action)
	if err != nil {
		if errors.Is(err, admission.ErrUnknownAction) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("admission check failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// A denial is an expected outcome; it still returns 200 with the
	// structured decision so callers can render remaining and reset time.
	writeJSON(w, http.StatusOK, decisionResponse{
		Allowed:   decision.Allowed,
		Remaining: decision.Remaining,
		ResetAt:   decision.ResetAt.UTC().Format(time.RFC3339),
		Reason:    decision.Reason,
	})
}

func (a *app) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Action  string `json:"action"`
		Success bool   `json:"success"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || req.Action == "" {
		http.Error(w, "subject and action are required", http.StatusBadRequest)
		return
	}

	err := a.manager.CommitAdmission(r.Context(), req.Subject, req.Action, req.Success)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, admission.ErrUnknownAction):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		// The commit-time re-validation lost the race; surface a structured
		// denial rather than a server error.
		writeJSON(w, http.StatusConflict, map[string]string{"error": "insufficient balance"})
	default:
		slog.Error("admission commit failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (a *app) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	previous, current, err := a.creditLed.Adjust(r.Context(), req.Subject, req.Amount, req.Actor, req.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAdjustment) {
			writeJSON(w, http.StatusBadRequest, adjustResponse{
				Success: false,
				Message: err.Error(),
			})
			return
		}
		slog.Error("balance adjustment failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, adjustResponse{
		Success:         true,
		Message:         "balance adjusted",
		PreviousBalance: previous,
		NewBalance:      current,
	})
}

func (a *app) handleBalance(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	balance, err := a.creditLed.GetBalance(r.Context(), subject)
	if err != nil {
		slog.Error("balance lookup failed", "subject", subject, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject":     balance.Subject,
		"remaining":   balance.Remaining,
		"totalEarned": balance.TotalEarned,
		"resetAt":     a.creditLed.NextReset().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || req.Content == "" {
		http.Error(w, "subject and content are required", http.StatusBadRequest)
		return
	}

	stored, err := a.keeper.EncryptContent(r.Context(), req.Subject, []byte(req.Content))
	if err != nil {
		slog.Error("content encryption failed", "subject", req.Subject, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"content": stored})
}

// handleDecrypt decrypts a batch of stored values. Rows that predate
// encryption or fail decryption come back unmodified; a corrupt row never
// fails the whole read.
func (a *app) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject  string   `json:"subject"`
		Contents []string `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || len(req.Contents) == 0 {
		http.Error(w, "subject and contents are required", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"contents": a.keeper.DecryptBatch(r.Context(), req.Subject, req.Contents),
	})
}

// handleDeleteKey removes a subject's wrapped content key when the subject
// is deleted. Content encrypted under the key becomes unreadable.
func (a *app) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")
	if subject == "" {
		http.Error(w, "subject is required", http.StatusBadRequest)
		return
	}

	if err := a.keeper.DeleteKey(r.Context(), subject); err != nil {
		slog.Error("key deletion failed", "subject", subject, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
