package documents

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/logger"
)

// Handler exposes document answering over HTTP
type Handler struct {
	service *Service
	log     *logger.Logger
}

// NewHandler creates a new document answering handler
func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{service: svc, log: log}
}

// Routes mounts the ask endpoint. limiter may be nil.
func (h *Handler) Routes(r chi.Router, limiter *httputil.IPRateLimiter) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware(h.log))
		}
		r.Post("/documents/ask", h.Ask)
	})
}

// Ask handles POST /documents/ask
// Body: {"query": "...", "documentText": "..."}
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	if limit := h.service.MaxBytes(); limit > 0 {
		httputil.LimitBody(w, r, limit)
	}

	var req AskRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	answer, err := h.service.Ask(r.Context(), req)
	if err != nil {
		h.log.WithRequestID(httputil.GetRequestID(r.Context())).Warn().Err(err).Msg("document question failed")
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, answer)
}
