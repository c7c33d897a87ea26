// Package repository persists bookings and admin settings. Two stores are
// available: PostgreSQL and Firestore. Both return errors.NotFound for a
// missing booking or setting.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/testme/testme-backend/internal/booking/domain"
)

// Store kinds accepted by storage.booking_store
const (
	KindPostgres  = "postgres"
	KindFirestore = "firestore"
)

// Store is the persistence boundary for bookings
type Store interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	// DueForReminder returns bookings whose expiry equals date (YYYY-MM-DD)
	// and whose reminder has not been sent.
	DueForReminder(ctx context.Context, date string) ([]*domain.Booking, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error

	Health(ctx context.Context) map[string]string
}

const (
	defaultListLimit = 200
	maxListLimit     = 5000
)

func listLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func validKind(kind string) error {
	switch kind {
	case KindPostgres, KindFirestore:
		return nil
	}
	return fmt.Errorf("unknown booking store %q", kind)
}
