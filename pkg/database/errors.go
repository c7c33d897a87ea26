package database

import (
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/testme/testme-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL constraint error into an AppError.
// Returns nil for anything that is not a constraint violation.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514": // check_violation
		switch {
		case strings.Contains(pqErr.Constraint, "status"):
			return errors.InvalidInput("status", "errors.invalid_status")
		case strings.Contains(pqErr.Constraint, "license_plate"):
			return errors.InvalidInput("licensePlate", "errors.invalid_plate")
		case strings.Contains(pqErr.Constraint, "service"):
			return errors.Validation(map[string]string{"service": "unknown service"})
		}
		return errors.BadRequest("constraint violation: " + pqErr.Constraint)

	case "23505": // unique_violation
		return errors.New("CONFLICT", "record already exists", http.StatusConflict)

	case "23502": // not_null_violation
		col := pqErr.Column
		if col == "" {
			col = "field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})
	}

	return nil
}
