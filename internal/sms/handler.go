package sms

import (
	"net/http"

	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/logger"
)

// Authorizer reports whether a request comes from the admin
type Authorizer func(r *http.Request) bool

// Handler exposes the relay over HTTP
type Handler struct {
	relay     *Relay
	authorize Authorizer
	log       *logger.Logger
}

// NewHandler creates a new SMS relay handler. Explicit sends to an arbitrary
// number need authorize to pass; booking-shaped requests only ever reach the
// admin phone and stay public.
func NewHandler(relay *Relay, authorize Authorizer, log *logger.Logger) *Handler {
	return &Handler{relay: relay, authorize: authorize, log: log}
}

// Send handles POST /sms/send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if req.Explicit() && (h.authorize == nil || !h.authorize(r)) {
		h.log.Warn().Str("request_id", httputil.GetRequestID(r.Context())).Msg("explicit sms without admin token")
		httputil.Error(w, r, errors.Unauthorized("sending to an arbitrary number requires admin"))
		return
	}

	receipt, err := h.relay.Handle(r.Context(), req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, receipt)
}
