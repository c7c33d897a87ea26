package reminder

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/logger"
)

// Handler lets the admin trigger a scan by hand
type Handler struct {
	scanner *Scanner
	now     func() time.Time
	logger  *logger.Logger
}

// NewHandler creates a new reminder handler
func NewHandler(scanner *Scanner, log *logger.Logger) *Handler {
	return &Handler{scanner: scanner, now: time.Now, logger: log}
}

// AdminRoutes mounts the manual trigger. The caller applies auth.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/admin/reminders/run", h.Run)
}

// Run handles POST /admin/reminders/run
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scanner.Scan(r.Context(), h.now())
	if err != nil {
		h.logger.WithRequestID(httputil.GetRequestID(r.Context())).Error().Err(err).Msg("manual reminder scan failed")
		httputil.Error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, summary)
}
