package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/testme/testme-backend/internal/admin/jwt"
	"github.com/testme/testme-backend/internal/admin/service"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/logger"
)

type claimsKey struct{}

// AuthHandler handles admin authentication
type AuthHandler struct {
	service *service.AuthService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts POST /admin/login. limiter may be nil.
func (h *AuthHandler) Routes(r chi.Router, limiter *httputil.IPRateLimiter) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware(h.logger))
		}
		r.Post("/admin/login", h.Login)
	})
}

// Login handles POST /admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	if err := httputil.Validate(r.Context(), &req); err != nil {
		httputil.Error(w, r, err)
		return
	}

	token, err := h.service.Login(r.Context(), &req)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, token)
}

// RequireAdmin rejects requests without a valid admin bearer token
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.authenticate(r)
		if err != nil {
			h.logger.Debug().Err(err).Msg("admin token rejected")
			httputil.Error(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IsAdmin reports whether r carries a valid admin bearer token. Public
// routes use it to unlock admin-only variants of a request.
func (h *AuthHandler) IsAdmin(r *http.Request) bool {
	_, err := h.authenticate(r)
	return err == nil
}

func (h *AuthHandler) authenticate(r *http.Request) (*jwt.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.Unauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.Unauthorized("invalid authorization header format")
	}

	return h.service.Authenticate(strings.TrimSpace(parts[1]))
}

// ClaimsFromContext returns the admin claims set by RequireAdmin
func ClaimsFromContext(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*jwt.Claims)
	return claims, ok
}
