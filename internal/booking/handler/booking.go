package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/internal/booking/service"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BookingHandler handles booking endpoints
type BookingHandler struct {
	service *service.BookingService
	logger  *logger.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(svc *service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the public booking form endpoint. limiter may be nil.
func (h *BookingHandler) Routes(r chi.Router, limiter *httputil.IPRateLimiter) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware(h.logger))
		}
		r.Post("/bookings", h.Create)
	})
}

// AdminRoutes mounts the dashboard endpoints. The caller applies auth.
func (h *BookingHandler) AdminRoutes(r chi.Router) {
	r.Route("/admin/bookings", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/export", h.Export)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
	})
	r.Get("/admin/settings/reminder-template", h.GetReminderTemplate)
	r.Put("/admin/settings/reminder-template", h.PutReminderTemplate)
}

// Create handles POST /bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	httputil.LimitBase64Body(w, r, h.service.MaxImageBytes())

	var req domain.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(r.Context(), &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	booking, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.logError(r, err, "failed to create booking")
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, booking)
}

// List handles GET /admin/bookings?status=&limit=&offset=
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Status: domain.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	bookings, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logError(r, err, "failed to list bookings")
		httputil.Error(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, bookings, &httputil.Meta{Total: len(bookings)})
}

// Get handles GET /admin/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	booking, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, booking)
}

// UpdateStatus handles PATCH /admin/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(r.Context(), &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.logError(r, err, "failed to update booking status")
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, booking)
}

// Export handles GET /admin/bookings/export
func (h *BookingHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{Status: domain.Status(r.URL.Query().Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		httputil.Error(w, r, errors.InvalidInput("status", "errors.invalid_status"))
		return
	}

	data, err := h.service.Export(r.Context(), filter)
	if err != nil {
		h.logError(r, err, "failed to export bookings")
		httputil.Error(w, r, err)
		return
	}

	filename := "bookings-" + time.Now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetReminderTemplate handles GET /admin/settings/reminder-template
func (h *BookingHandler) GetReminderTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.service.ReminderTemplate(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, domain.ReminderTemplate{Template: tpl})
}

// PutReminderTemplate handles PUT /admin/settings/reminder-template
func (h *BookingHandler) PutReminderTemplate(w http.ResponseWriter, r *http.Request) {
	var req domain.ReminderTemplate
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(r.Context(), &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := h.service.SetReminderTemplate(r.Context(), req.Template); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// logError logs only failures the client did not cause
func (h *BookingHandler) logError(r *http.Request, err error, msg string) {
	var appErr *errors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		return
	}
	h.logger.WithRequestID(httputil.GetRequestID(r.Context())).Error().Err(err).Msg(msg)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
