// Package reminder sends the expiry reminder SMS. A scan looks up bookings
// whose license expires exactly LeadDays from today and texts each customer
// once.
package reminder

import (
	"context"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/testme/testme-backend/internal/booking/domain"
	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/logger"
)

// Result statuses
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

const (
	placeholderName  = "[Customer Name]"
	placeholderPlate = "[License Plate]"
	fallbackName     = "לקוח"
	fallbackPlate    = "הרכב"
)

// Store is the subset of the booking store a scan needs
type Store interface {
	DueForReminder(ctx context.Context, date string) ([]*domain.Booking, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) error
	GetSetting(ctx context.Context, key string) (string, error)
}

// Sender delivers one SMS
type Sender interface {
	Send(ctx context.Context, phone, body string) (*sms.Receipt, error)
}

// Events is notified about every reminder that went out. May be nil.
type Events interface {
	PublishReminderSent(ctx context.Context, id, expiry string)
}

// Result is the outcome for one booking
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Summary is what a scan reports
type Summary struct {
	Message string   `json:"message"`
	Target  string   `json:"target"`
	Results []Result `json:"results"`
}

// Sent counts the delivered reminders
func (s *Summary) Sent() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == StatusSent {
			n++
		}
	}
	return n
}

// Scanner finds bookings that are due and sends their reminders
type Scanner struct {
	store    Store
	sender   Sender
	events   Events
	location *time.Location
	leadDays int
	logger   *logger.Logger

	// serializes scans from the scheduler and the admin trigger
	mu sync.Mutex
}

// NewScanner creates a scanner. An unknown timezone is a configuration error.
func NewScanner(store Store, sender Sender, events Events, cfg *config.ReminderConfig, log *logger.Logger) (*Scanner, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "Asia/Jerusalem"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Configuration("reminder.timezone")
	}

	lead := cfg.LeadDays
	if lead <= 0 {
		lead = domain.ReminderLeadDays
	}

	return &Scanner{
		store:    store,
		sender:   sender,
		events:   events,
		location: loc,
		leadDays: lead,
		logger:   log.WithComponent("reminder"),
	}, nil
}

// TargetDate is the expiry date that is due on the day of now
func (s *Scanner) TargetDate(now time.Time) string {
	return now.In(s.location).AddDate(0, 0, s.leadDays).Format(domain.DateLayout)
}

// Scan sends every reminder due at now. A failed recipient is recorded and
// the scan moves on; only a failed lookup aborts it.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.TargetDate(now)
	log := s.logger.With().Str("target", target).Logger()

	bookings, err := s.store.DueForReminder(ctx, target)
	if err != nil {
		log.Error().Err(err).Msg("failed to query due bookings")
		return nil, err
	}

	summary := &Summary{Message: "Job completed", Target: target, Results: []Result{}}
	if len(bookings) == 0 {
		log.Info().Msg("no reminders due")
		return summary, nil
	}

	template := s.template(ctx)
	log.Info().Int("count", len(bookings)).Msg("sending reminders")

	for _, b := range bookings {
		if ctx.Err() != nil {
			summary.Results = append(summary.Results, Result{ID: b.ID, Status: StatusFailed, Error: ctx.Err().Error()})
			continue
		}

		if _, err := s.sender.Send(ctx, b.Phone, Render(template, b)); err != nil {
			log.Error().Err(err).Str("booking_id", b.ID).Msg("reminder send failed")
			summary.Results = append(summary.Results, Result{ID: b.ID, Status: StatusFailed, Error: err.Error()})
			continue
		}

		if err := s.store.MarkReminderSent(ctx, b.ID, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("booking_id", b.ID).Msg("reminder sent but not marked")
		}
		s.publish(ctx, b)
		summary.Results = append(summary.Results, Result{ID: b.ID, Status: StatusSent})
	}

	log.Info().
		Int("sent", summary.Sent()).
		Int("failed", len(summary.Results)-summary.Sent()).
		Msg("reminder scan completed")

	return summary, nil
}

func (s *Scanner) template(ctx context.Context) string {
	tpl, err := s.store.GetSetting(ctx, domain.SettingReminderTemplate)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to read reminder template, using default")
		}
		return domain.DefaultReminderTemplate
	}
	if strings.TrimSpace(tpl) == "" {
		return domain.DefaultReminderTemplate
	}
	return tpl
}

func (s *Scanner) publish(ctx context.Context, b *domain.Booking) {
	if s.events == nil {
		return
	}
	expiry := ""
	if e := b.ExpiryDate(); e != nil {
		expiry = *e
	}
	s.events.PublishReminderSent(ctx, b.ID, expiry)
}

// Render fills the name and plate placeholders of template
func Render(template string, b *domain.Booking) string {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		name = fallbackName
	}
	plate := fallbackPlate
	if b.LicensePlate != nil && *b.LicensePlate != "" {
		plate = *b.LicensePlate
	}
	return strings.NewReplacer(placeholderName, name, placeholderPlate, plate).Replace(template)
}
