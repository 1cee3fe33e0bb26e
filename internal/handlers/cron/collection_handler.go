package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/onchainbill/collector/internal/domain/ports"
	"github.com/onchainbill/collector/internal/services/collection"
	"go.uber.org/zap"
)

// CycleRunner runs one collection cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (collection.CycleStats, error)
}

// CollectionHandler exposes the on-demand collection trigger and stats
// endpoints. The runner loop is the normal driver; this exists for Cloud
// Scheduler style triggers and operator use.
type CollectionHandler struct {
	runner      CycleRunner
	db          ports.DBPort
	paymentRepo ports.PaymentRepository
	logger      *zap.Logger
	cronSecret  string // Secret token for authenticating cron requests
}

// NewCollectionHandler creates a new collection cron handler
func NewCollectionHandler(
	runner CycleRunner,
	db ports.DBPort,
	paymentRepo ports.PaymentRepository,
	logger *zap.Logger,
	cronSecret string,
) *CollectionHandler {
	return &CollectionHandler{
		runner:      runner,
		db:          db,
		paymentRepo: paymentRepo,
		logger:      logger,
		cronSecret:  cronSecret,
	}
}

// RunCollectionResponse represents the response from a triggered cycle
type RunCollectionResponse struct {
	Success     bool                  `json:"success"`
	Stats       collection.CycleStats `json:"stats"`
	ProcessedAt string                `json:"processed_at"`
	Error       string                `json:"error,omitempty"`
}

// RunCollection handles the POST /cron/run-collection endpoint. It runs one
// scan-and-charge cycle synchronously and reports per-status counts.
func (h *CollectionHandler) RunCollection(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Collection cron job triggered",
		zap.String("method", r.Method),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := context.Background()
	stats, err := h.runner.RunCycle(ctx)

	resp := RunCollectionResponse{
		Success:     err == nil && stats.Failed == 0,
		Stats:       stats,
		ProcessedAt: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	h.logger.Info("Collection cycle completed",
		zap.Int("due", stats.Due),
		zap.Int("reconciled", stats.Reconciled),
		zap.Int("failed", stats.Failed),
	)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
	case resp.Success:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusPartialContent) // 206 indicates partial success
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// authenticateRequest verifies the cron request is authorized
func (h *CollectionHandler) authenticateRequest(r *http.Request) bool {
	// Check X-Cron-Secret header
	cronSecret := r.Header.Get("X-Cron-Secret")
	if cronSecret != "" && cronSecret == h.cronSecret {
		return true
	}

	// Check Authorization header (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if authHeader == "Bearer "+h.cronSecret {
		return true
	}

	return false
}

// respondError sends an error response
func (h *CollectionHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := map[string]interface{}{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// HealthCheck handles GET /cron/health for monitoring
func (h *CollectionHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}

	json.NewEncoder(w).Encode(resp)
}

// Stats handles GET /cron/stats for monitoring collection volume
func (h *CollectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.authenticateRequest(r) {
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	days := 7
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		if parsed, err := strconv.Atoi(daysParam); err == nil && parsed > 0 && parsed <= 90 {
			days = parsed
		}
	}

	since := time.Now().AddDate(0, 0, -days)
	count, err := h.paymentRepo.CountSince(r.Context(), h.db.GetDB(), since)
	if err != nil {
		h.logger.Error("Failed to query payment stats", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "stats query failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := map[string]interface{}{
		"success": true,
		"period":  fmt.Sprintf("last_%d_days", days),
		"stats": map[string]interface{}{
			"payments_recorded": count,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	json.NewEncoder(w).Encode(resp)
}
