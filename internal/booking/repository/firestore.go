package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	bookingsCollection = "bookings"
	settingsCollection = "settings"
)

// FirestoreStore keeps bookings in Cloud Firestore.
// Settings keys of the form "doc.field" live in settings/{doc} under {field}.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreClient opens a Firestore client. credentialsFile may be empty
// to use application default credentials.
func NewFirestoreClient(ctx context.Context, project, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// NewFirestoreStore creates a booking store on top of client
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) bookings() *firestore.CollectionRef {
	return s.client.Collection(bookingsCollection)
}

// Create stores a booking, assigning an ID when empty
func (s *FirestoreStore) Create(ctx context.Context, b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = domain.StatusNew
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	if _, err := s.bookings().Doc(b.ID).Create(ctx, b); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.New("CONFLICT", "booking already exists", http.StatusConflict)
		}
		return fmt.Errorf("failed to store booking: %w", err)
	}
	return nil
}

// GetByID gets a booking by ID
func (s *FirestoreStore) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	snap, err := s.bookings().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound("booking")
		}
		return nil, err
	}
	return decodeBooking(snap)
}

// List returns bookings newest first
func (s *FirestoreStore) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Booking, error) {
	q := s.bookings().Query
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	q = q.OrderBy("createdAt", firestore.Desc).Limit(listLimit(filter.Limit))
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	return collect(q.Documents(ctx))
}

// UpdateStatus changes the status of a booking
func (s *FirestoreStore) UpdateStatus(ctx context.Context, id string, st domain.Status) error {
	_, err := s.bookings().Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("booking")
		}
		return err
	}
	return nil
}

// DueForReminder returns unsent bookings expiring on date
func (s *FirestoreStore) DueForReminder(ctx context.Context, date string) ([]*domain.Booking, error) {
	q := s.bookings().
		Where("reminderDate", "==", date).
		Where("reminderSent", "==", false)
	return collect(q.Documents(ctx))
}

// MarkReminderSent flags the reminder of a booking as sent
func (s *FirestoreStore) MarkReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.bookings().Doc(id).Update(ctx, []firestore.Update{
		{Path: "reminderSent", Value: true},
		{Path: "reminderSentAt", Value: at},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return errors.NotFound("booking")
		}
		return err
	}
	return nil
}

// GetSetting reads a setting value
func (s *FirestoreStore) GetSetting(ctx context.Context, key string) (string, error) {
	doc, field := settingPath(key)
	snap, err := s.client.Collection(settingsCollection).Doc(doc).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return "", errors.NotFound("setting")
		}
		return "", err
	}

	raw, err := snap.DataAt(field)
	if err != nil {
		return "", errors.NotFound("setting")
	}
	value, ok := raw.(string)
	if !ok {
		return "", errors.NotFound("setting")
	}
	return value, nil
}

// PutSetting creates or replaces a setting value
func (s *FirestoreStore) PutSetting(ctx context.Context, key, value string) error {
	doc, field := settingPath(key)
	_, err := s.client.Collection(settingsCollection).Doc(doc).Set(ctx, map[string]any{
		field:       value,
		"updatedAt": time.Now().UTC(),
	}, firestore.MergeAll)
	return err
}

// Health reports whether Firestore answers a trivial read
func (s *FirestoreStore) Health(ctx context.Context) map[string]string {
	result := map[string]string{"status": "up"}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := s.bookings().Limit(1).Documents(ctx).GetAll()
	if err != nil {
		result["status"] = "down"
		result["error"] = err.Error()
	}
	return result
}

// Close releases the client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// settingPath maps "sms.reminder_template" to the document "sms" and the
// field "reminder_template". Keys without a dot use the field "value".
func settingPath(key string) (doc, field string) {
	if i := strings.IndexByte(key, '.'); i > 0 && i < len(key)-1 {
		return key[:i], key[i+1:]
	}
	return key, "value"
}

func collect(it *firestore.DocumentIterator) ([]*domain.Booking, error) {
	defer it.Stop()

	bookings := []*domain.Booking{}
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return bookings, nil
		}
		if err != nil {
			return nil, err
		}
		b, err := decodeBooking(snap)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
}

func decodeBooking(snap *firestore.DocumentSnapshot) (*domain.Booking, error) {
	var b domain.Booking
	if err := snap.DataTo(&b); err != nil {
		return nil, fmt.Errorf("failed to decode booking %s: %w", snap.Ref.ID, err)
	}
	b.ID = snap.Ref.ID
	return &b, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
