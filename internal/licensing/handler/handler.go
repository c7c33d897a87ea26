package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/testme/testme-backend/internal/licensing/service"
	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/logger"
)

// Handler handles HTTP requests for license extraction
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new license extraction handler
func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{
		service: svc,
		log:     log,
	}
}

// Routes mounts the extraction endpoint. limiter may be nil.
func (h *Handler) Routes(r chi.Router, limiter *httputil.IPRateLimiter) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware(h.log))
		}
		r.Post("/license/analyze", h.Analyze)
	})
}

// Analyze handles POST /license/analyze
// Body: {"imageBase64": "...", "fileType": "image/jpeg", "fileName": "license.jpg"}
// Fields that cannot be read come back as null; the form falls back to
// manual entry for those.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	httputil.LimitBase64Body(w, r, h.service.MaxBytes())

	var in service.AnalyzeInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, r, err)
		return
	}

	result, err := h.service.Analyze(r.Context(), in)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}
