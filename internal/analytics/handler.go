package analytics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wolfman30/crystalcare-intake/pkg/logging"
)

// Computer produces snapshots; *Aggregator implements it.
type Computer interface {
	Compute(ctx context.Context) Snapshot
}

// Handler serves GET /admin/analytics.
type Handler struct {
	computer Computer
	logger   *logging.Logger
}

func NewHandler(computer Computer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{computer: computer, logger: logger}
}

func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	snap := h.computer.Compute(r.Context())
	h.logger.Debug("analytics computed", "total_leads", snap.TotalLeads)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Error("failed to encode analytics", "error", err)
	}
}
