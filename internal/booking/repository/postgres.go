package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/pkg/database"
	"github.com/testme/testme-backend/pkg/errors"
)

//go:embed schema.sql
var schema string

const bookingColumns = `id, name, phone, address, car_type, service, date, time,
	license_plate, test_date, license_expiry, license_image_key, status,
	reminder_date, reminder_queue_date, reminder_sent, reminder_sent_at,
	created_at, updated_at`

// PostgresStore keeps bookings in PostgreSQL
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new PostgreSQL booking store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist. The schema is applied
// in one transaction so a failed statement leaves nothing half created.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to apply booking schema: %w", err)
		}
		return nil
	})
}

// Create inserts a booking, assigning an ID when empty
func (s *PostgresStore) Create(ctx context.Context, b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = domain.StatusNew
	}

	query := `
		INSERT INTO bookings (
			id, name, phone, address, car_type, service, date, time,
			license_plate, test_date, license_expiry, license_image_key, status,
			reminder_date, reminder_queue_date, reminder_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowxContext(ctx, query,
		b.ID, b.Name, b.Phone, b.Address, b.CarType, b.Service, b.Date, b.Time,
		b.LicensePlate, b.TestDate, b.LicenseExpiry, b.LicenseImageKey, b.Status,
		b.ReminderDate, b.ReminderQueueDate, b.ReminderSent,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

// GetByID gets a booking by ID
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("booking")
	}

	var b domain.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := s.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("booking")
		}
		return nil, err
	}
	return &b, nil
}

// List returns bookings newest first
func (s *PostgresStore) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Booking, error) {
	args := []any{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	args = append(args, listLimit(filter.Limit))
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, max(filter.Offset, 0))
	query += ` OFFSET $` + strconv.Itoa(len(args))

	bookings := []*domain.Booking{}
	if err := s.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateStatus changes the status of a booking
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NotFound("booking")
	}

	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("booking")
	}
	return nil
}

// DueForReminder returns unsent bookings expiring on date
func (s *PostgresStore) DueForReminder(ctx context.Context, date string) ([]*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE reminder_date = $1 AND reminder_sent = FALSE
		ORDER BY created_at`

	bookings := []*domain.Booking{}
	if err := s.db.SelectContext(ctx, &bookings, query, date); err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkReminderSent flags the reminder of a booking as sent
func (s *PostgresStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE bookings SET reminder_sent = TRUE, reminder_sent_at = $2, updated_at = NOW() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("booking")
	}
	return nil
}

// GetSetting reads a setting value
func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = $1`, key); err != nil {
		if err == sql.ErrNoRows {
			return "", errors.NotFound("setting")
		}
		return "", err
	}
	return value, nil
}

// PutSetting creates or replaces a setting value
func (s *PostgresStore) PutSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// Health reports database connectivity
func (s *PostgresStore) Health(ctx context.Context) map[string]string {
	return s.db.Health(ctx)
}
