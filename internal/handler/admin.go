package handler

import (
	"log/slog"
	"net/http"

	"github.com/magami/pmai/internal/auth"
	"github.com/magami/pmai/internal/service"
)

// AdminHandler serves the usage report.
type AdminHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(reports *service.ReportService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{reports: reports, logger: logger}
}

// HandleStats returns the usage report.
//
// HTTP: GET /api/admin/stats  (requires auth; caller must be on the admin
// allow-list, everyone else gets 403)
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	report, err := h.reports.Stats(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
