package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/errors"
)

type memStore struct {
	mu        sync.Mutex
	bookings  map[string]*domain.Booking
	settings  map[string]string
	createErr error
	creates   int
}

func newMemStore() *memStore {
	return &memStore{bookings: map[string]*domain.Booking{}, settings: map[string]string{}}
}

func (m *memStore) Create(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	now := time.Now().UTC().Add(time.Duration(len(m.bookings)) * time.Second)
	b.CreatedAt, b.UpdatedAt = now, now
	stored := *b
	m.bookings[b.ID] = &stored
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, errors.NotFound("booking")
	}
	stored := *b
	return &stored, nil
}

func (m *memStore) List(_ context.Context, filter domain.ListFilter) ([]*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Booking{}
	for _, b := range m.bookings {
		if filter.Status == "" || b.Status == filter.Status {
			stored := *b
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return errors.NotFound("booking")
	}
	b.Status = status
	return nil
}

func (m *memStore) DueForReminder(context.Context, string) ([]*domain.Booking, error) {
	return nil, nil
}

func (m *memStore) MarkReminderSent(context.Context, string, time.Time) error {
	return nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	if !ok {
		return "", errors.NotFound("setting")
	}
	return v, nil
}

func (m *memStore) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStore) Health(context.Context) map[string]string {
	return map[string]string{"status": "up"}
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []sms.BookingDetails
	locales []string
	err     error
}

func (f *fakeNotifier) NotifyNewBooking(_ context.Context, locale string, d sms.BookingDetails) (*sms.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
	f.locales = append(f.locales, locale)
	if f.err != nil {
		return nil, f.err
	}
	return &sms.Receipt{Provider: "fake"}, nil
}

type fakeArchive struct {
	uploads   map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{uploads: map[string][]byte{}}
}

func (f *fakeArchive) Upload(_ context.Context, bookingID string, data []byte, contentType string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	key := fmt.Sprintf("licenses/%s/photo-%s", bookingID, contentType)
	f.uploads[key] = append([]byte(nil), data...)
	return key, nil
}

func (f *fakeArchive) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}
