package recognizer

import (
	"context"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/testme/testme-backend/pkg/errors"
)

// classify maps a failed outbound call to the error kinds the pipeline
// understands. Errors that are already AppErrors pass through.
func classify(ctx context.Context, service string, err error) error {
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
