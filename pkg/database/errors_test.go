package database

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testme/testme-backend/pkg/errors"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   error
	}{
		{"status check", &pq.Error{Code: "23514", Constraint: "bookings_status_check"}, http.StatusBadRequest, errors.ErrValidation},
		{"plate check", &pq.Error{Code: "23514", Constraint: "bookings_license_plate_check"}, http.StatusBadRequest, errors.ErrValidation},
		{"unique", &pq.Error{Code: "23505", Constraint: "settings_pkey"}, http.StatusConflict, nil},
		{"not null wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23502", Column: "phone"}), http.StatusBadRequest, errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := MapPQError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.status, appErr.StatusCode)
			if tt.kind != nil {
				assert.True(t, errors.Is(appErr, tt.kind))
			}
		})
	}
}

func TestMapPQError_IgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, MapPQError(fmt.Errorf("connection refused")))
	assert.Nil(t, MapPQError(&pq.Error{Code: "42P01"}))
}
