package service

import (
	"context"
	"fmt"
	"time"

	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/xuri/excelize/v2"
)

// exportLimit caps one workbook
const exportLimit = 5000

var exportColumns = []struct {
	key   string
	width float64
	value func(l *i18n.Localizer, b *domain.Booking) any
}{
	{"created_at", 18, func(_ *i18n.Localizer, b *domain.Booking) any { return b.CreatedAt.Format("2006-01-02 15:04") }},
	{"name", 22, func(_ *i18n.Localizer, b *domain.Booking) any { return b.Name }},
	{"phone", 14, func(_ *i18n.Localizer, b *domain.Booking) any { return b.Phone }},
	{"address", 28, func(_ *i18n.Localizer, b *domain.Booking) any { return deref(b.Address) }},
	{"car_type", 18, func(_ *i18n.Localizer, b *domain.Booking) any { return deref(b.CarType) }},
	{"license_plate", 12, func(_ *i18n.Localizer, b *domain.Booking) any { return deref(b.LicensePlate) }},
	{"service", 16, func(l *i18n.Localizer, b *domain.Booking) any { return sms.ServiceLabel(l, b.Service) }},
	{"date", 12, func(_ *i18n.Localizer, b *domain.Booking) any { return b.Date }},
	{"time", 8, func(_ *i18n.Localizer, b *domain.Booking) any { return b.Time }},
	{"license_expiry", 14, func(_ *i18n.Localizer, b *domain.Booking) any { return deref(b.ExpiryDate()) }},
	{"status", 12, func(l *i18n.Localizer, b *domain.Booking) any { return StatusLabel(l, b.Status) }},
}

// Export writes the bookings matching filter to an XLSX workbook, one row
// per booking, newest first. Headers follow the request locale.
func (s *BookingService) Export(ctx context.Context, filter domain.ListFilter) ([]byte, error) {
	start := time.Now()

	filter.Limit = exportLimit
	bookings, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}

	l := i18n.LocalizerFromContext(ctx)
	sheet := l.T("export.sheet")

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if l.Locale() == "he" {
		rtl := true
		_ = f.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &rtl})
	}

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, l.T("export.columns."+col.key))

		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, name, name, col.width)
	}

	for r, b := range bookings {
		for i, col := range exportColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = f.SetCellValue(sheet, cell, col.value(l, b))
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info().
		Int("rows", len(bookings)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("bookings exported")

	return buf.Bytes(), nil
}
