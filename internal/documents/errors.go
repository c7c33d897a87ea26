package documents

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/testme/testme-backend/pkg/errors"
)

const service = "gemini"

// isQuota reports whether the model refused for rate or quota reasons
func isQuota(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if status.Code(err) == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

func classify(ctx context.Context, err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.Timeout(service, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
		return errors.Configuration(service + " credentials")
	}
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.Configuration(service + " credentials")
	case codes.DeadlineExceeded:
		return errors.Timeout(service, err)
	}
	return errors.Upstream(service, err)
}
