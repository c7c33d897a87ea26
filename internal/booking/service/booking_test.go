package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/internal/booking/events"
	"github.com/testme/testme-backend/internal/booking/service"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/messaging"
	"github.com/testme/testme-backend/pkg/testutil"
	"github.com/xuri/excelize/v2"
)

const maxImage = 1 << 20

func validRequest() *domain.CreateBookingRequest {
	return &domain.CreateBookingRequest{
		Name:          "  Dana Levi ",
		Phone:         "052-123-4567",
		CarType:       "Mazda 3",
		Service:       domain.ServiceTest,
		Date:          "2025-06-01",
		Time:          "10:00",
		LicensePlate:  "12-345-678",
		LicenseExpiry: "01/07/2025",
	}
}

func pngPayload() string {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestCreate_NormalizesAndNotifies(t *testing.T) {
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := service.NewBookingService(store, nil, nil, notifier, maxImage, logger.Nop())

	ctx := i18n.WithLocale(context.Background(), "en")
	b, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "Dana Levi", b.Name)
	assert.Equal(t, "0521234567", b.Phone)
	assert.Equal(t, domain.StatusNew, b.Status)
	require.NotNil(t, b.LicensePlate)
	assert.Equal(t, "12345678", *b.LicensePlate)
	require.NotNil(t, b.LicenseExpiry)
	assert.Equal(t, "2025-07-01", *b.LicenseExpiry)
	require.NotNil(t, b.ReminderQueueDate)
	assert.Equal(t, "2025-06-17", *b.ReminderQueueDate)
	assert.False(t, b.ReminderSent)
	assert.Nil(t, b.Address)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "en", notifier.locales[0])
	assert.Equal(t, "Mazda 3", notifier.calls[0].CarType)
	assert.Equal(t, "0521234567", notifier.calls[0].Phone)
}

func TestCreate_TestDateDrivesReminderWithoutExpiry(t *testing.T) {
	svc := service.NewBookingService(newMemStore(), nil, nil, nil, maxImage, logger.Nop())

	req := validRequest()
	req.LicenseExpiry = ""
	req.TestDate = "15.8.25"

	b, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-15", *b.TestDate)
	assert.Equal(t, "2025-08-01", *b.ReminderQueueDate)
}

func TestCreate_WithoutExpiryHasNoReminder(t *testing.T) {
	svc := service.NewBookingService(newMemStore(), nil, nil, nil, maxImage, logger.Nop())

	req := validRequest()
	req.LicenseExpiry = ""
	req.LicensePlate = ""

	b, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, b.LicensePlate)
	assert.Nil(t, b.ReminderQueueDate)
}

func TestCreate_RejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CreateBookingRequest)
		field  string
	}{
		{"short plate", func(r *domain.CreateBookingRequest) { r.LicensePlate = "12345" }, "licensePlate"},
		{"long plate", func(r *domain.CreateBookingRequest) { r.LicensePlate = "1234567890" }, "licensePlate"},
		{"bad expiry", func(r *domain.CreateBookingRequest) { r.LicenseExpiry = "32/13/2025" }, "licenseExpiry"},
		{"bad test date", func(r *domain.CreateBookingRequest) { r.TestDate = "soon" }, "testDate"},
		{"bad booking date", func(r *domain.CreateBookingRequest) { r.Date = "tomorrow" }, "date"},
		{"short phone", func(r *domain.CreateBookingRequest) { r.Phone = "12345" }, "phone"},
		{"bad image", func(r *domain.CreateBookingRequest) { r.LicenseImage = "!!!not base64!!!" }, "imageBase64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			notifier := &fakeNotifier{}
			svc := service.NewBookingService(store, newFakeArchive(), nil, notifier, maxImage, logger.Nop())

			req := validRequest()
			tt.mutate(req)

			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Details, tt.field)
			assert.Zero(t, store.creates)
			assert.Empty(t, notifier.calls)
		})
	}
}

func TestCreate_NotificationFailureDoesNotFailBooking(t *testing.T) {
	notifier := &fakeNotifier{err: errors.Configuration("sms.admin_phone")}
	svc := service.NewBookingService(newMemStore(), nil, nil, notifier, maxImage, logger.Nop())

	b, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Len(t, notifier.calls, 1)
}

func TestCreate_PublishesEventInsteadOfInlineSMS(t *testing.T) {
	mock := testutil.NewMockPublisher()
	notifier := &fakeNotifier{}
	publisher := events.NewWithPublisher(mock, logger.Nop())
	svc := service.NewBookingService(newMemStore(), nil, publisher, notifier, maxImage, logger.Nop())

	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	mock.AssertEventPublished(t, messaging.EventBookingCreated)
	assert.Empty(t, notifier.calls)
}

func TestCreate_FallsBackToInlineSMSWhenPublishFails(t *testing.T) {
	mock := testutil.NewMockPublisher()
	mock.Err = fmt.Errorf("connection closed")
	notifier := &fakeNotifier{}
	publisher := events.NewWithPublisher(mock, logger.Nop())
	svc := service.NewBookingService(newMemStore(), nil, publisher, notifier, maxImage, logger.Nop())

	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Len(t, notifier.calls, 1)
}

func TestCreate_ArchivesLicenseImage(t *testing.T) {
	archive := newFakeArchive()
	svc := service.NewBookingService(newMemStore(), archive, nil, nil, maxImage, logger.Nop())

	req := validRequest()
	req.LicenseImage = pngPayload()

	b, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, b.LicenseImageKey)
	assert.True(t, strings.HasPrefix(*b.LicenseImageKey, "licenses/"+b.ID+"/"))
	assert.Contains(t, archive.uploads, *b.LicenseImageKey)
}

func TestCreate_ArchiveFailureDropsImageOnly(t *testing.T) {
	archive := newFakeArchive()
	archive.uploadErr = errors.Upstream("s3", fmt.Errorf("503"))
	svc := service.NewBookingService(newMemStore(), archive, nil, nil, maxImage, logger.Nop())

	req := validRequest()
	req.LicenseImage = pngPayload()

	b, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, b.LicenseImageKey)
}

func TestCreate_StoreFailureRemovesArchivedImage(t *testing.T) {
	store := newMemStore()
	store.createErr = fmt.Errorf("connection refused")
	archive := newFakeArchive()
	notifier := &fakeNotifier{}
	svc := service.NewBookingService(store, archive, nil, notifier, maxImage, logger.Nop())

	req := validRequest()
	req.LicenseImage = pngPayload()

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	require.Len(t, archive.deleted, 1)
	assert.Contains(t, archive.uploads, archive.deleted[0])
	assert.Empty(t, notifier.calls)
}

func TestList_AddsLabelsAndWhatsAppLink(t *testing.T) {
	store := newMemStore()
	svc := service.NewBookingService(store, nil, nil, nil, maxImage, logger.Nop())

	first, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	second := validRequest()
	second.Name = "Avi"
	second.Service = domain.ServiceBodywork
	_, err = svc.Create(context.Background(), second)
	require.NoError(t, err)

	ctx := i18n.WithLocale(context.Background(), "en")
	list, err := svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Avi", list[0].Name)
	assert.Equal(t, "Bodywork services", list[0].ServiceLabel)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "New", list[1].StatusLabel)
	assert.True(t, strings.HasPrefix(list[1].WhatsAppLink, "https://wa.me/972521234567?text="), list[1].WhatsAppLink)
	assert.Contains(t, list[1].WhatsAppLink, "Dana+Levi")
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	svc := service.NewBookingService(newMemStore(), nil, nil, nil, maxImage, logger.Nop())
	_, err := svc.List(context.Background(), domain.ListFilter{Status: "archived"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestUpdateStatus(t *testing.T) {
	store := newMemStore()
	mock := testutil.NewMockPublisher()
	svc := service.NewBookingService(store, nil, events.NewWithPublisher(mock, logger.Nop()), nil, maxImage, logger.Nop())

	b, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), b.ID, domain.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	mock.AssertEventPublished(t, messaging.EventBookingStatusChanged)

	stored, err := store.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, stored.Status)

	_, err = svc.UpdateStatus(context.Background(), b.ID, "archived")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = svc.UpdateStatus(context.Background(), "missing", domain.StatusCompleted)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReminderTemplate(t *testing.T) {
	store := newMemStore()
	svc := service.NewBookingService(store, nil, nil, nil, maxImage, logger.Nop())
	ctx := context.Background()

	tpl, err := svc.ReminderTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultReminderTemplate, tpl)

	require.NoError(t, svc.SetReminderTemplate(ctx, "  Hi [Customer Name] "))
	tpl, err = svc.ReminderTemplate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hi [Customer Name]", tpl)

	err = svc.SetReminderTemplate(ctx, "   ")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestExport(t *testing.T) {
	store := newMemStore()
	svc := service.NewBookingService(store, nil, nil, nil, maxImage, logger.Nop())
	_, err := svc.Create(context.Background(), validRequest())
	require.NoError(t, err)

	ctx := i18n.WithLocale(context.Background(), "en")
	data, err := svc.Export(ctx, domain.ListFilter{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Name", rows[0][1])
	assert.Equal(t, "License plate", rows[0][5])
	assert.Equal(t, "Dana Levi", rows[1][1])
	assert.Equal(t, "12345678", rows[1][5])
	assert.Equal(t, "Annual test", rows[1][6])
	assert.Equal(t, "2025-07-01", rows[1][9])
	assert.Equal(t, "New", rows[1][10])
}
