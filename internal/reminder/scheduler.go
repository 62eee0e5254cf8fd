// Package reminder stores monthly payment reminders and fires them.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
	"github.com/dvloznov/finance-bot/internal/store"
)

// DefaultInterval is how often Run checks for due reminders.
const DefaultInterval = time.Hour

const monthKey = "2006-01"

// Notifier delivers a reminder to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Scheduler manages reminders. A reminder fires at most once per calendar
// month, on the first check at or after its day.
type Scheduler struct {
	store    store.Store
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

// NewScheduler creates a Scheduler. notifier may be nil when the scheduler
// only manages reminders (API, CLI).
func NewScheduler(s store.Store, notifier Notifier, logger zerolog.Logger) *Scheduler {
	return &Scheduler{store: s, notifier: notifier, now: time.Now, logger: logger}
}

// WithNotifier sets where due reminders are delivered.
func (s *Scheduler) WithNotifier(n Notifier) *Scheduler {
	s.notifier = n
	return s
}

// WithClock replaces the time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Add stores a reminder for chatID. If its day has already passed this
// month the first notification goes out next month.
func (s *Scheduler) Add(ctx context.Context, chatID int64, day int, amount int64, note string) (domain.Reminder, error) {
	if day < 1 || day > domain.MaxReminderDay {
		return domain.Reminder{}, fmt.Errorf("Add: day %d: %w", day, domain.ErrInvalidFormat)
	}
	if amount <= 0 {
		return domain.Reminder{}, fmt.Errorf("Add: amount %d: %w", amount, domain.ErrInvalidAmount)
	}

	now := s.now()
	r := domain.Reminder{
		ID:         uuid.New().String(),
		ChatID:     chatID,
		DayOfMonth: day,
		Amount:     amount,
		Note:       note,
		CreatedAt:  now,
	}
	if now.Day() >= day {
		r.LastFired = now.Format(monthKey)
	}

	err := s.store.Update(ctx, func(tx store.Tx) error {
		return tx.PutReminder(r)
	})
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("Add: %w", err)
	}
	return r, nil
}

// List returns the reminders of chatID in creation order. A zero chatID
// lists every reminder.
func (s *Scheduler) List(ctx context.Context, chatID int64) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = listIn(tx, chatID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return out, nil
}

func listIn(tx store.Tx, chatID int64) ([]domain.Reminder, error) {
	all, err := tx.ListReminders()
	if err != nil {
		return nil, err
	}
	if chatID == 0 {
		return all, nil
	}
	var out []domain.Reminder
	for _, r := range all {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Delete removes the reminder at 1-based position pos of chatID's list.
func (s *Scheduler) Delete(ctx context.Context, chatID int64, pos int) (domain.Reminder, error) {
	var deleted domain.Reminder
	err := s.store.Update(ctx, func(tx store.Tx) error {
		list, err := listIn(tx, chatID)
		if err != nil {
			return err
		}
		if pos < 1 || pos > len(list) {
			return fmt.Errorf("position %d of %d: %w", pos, len(list), domain.ErrIndexOutOfRange)
		}
		deleted = list[pos-1]
		return tx.DeleteReminder(deleted.ID)
	})
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("Delete: %w", err)
	}
	return deleted, nil
}

// Due reports whether r should fire at now.
func Due(r domain.Reminder, now time.Time) bool {
	return now.Day() >= r.DayOfMonth && r.LastFired != now.Format(monthKey)
}

// Message renders the notification text for r.
func Message(r domain.Reminder) string {
	return fmt.Sprintf("⏰ Nhắc nhở: %s - %s (ngày %d hằng tháng)", r.Note, money.Format(r.Amount), r.DayOfMonth)
}

// Tick fires every due reminder and returns how many were delivered. A
// reminder whose delivery fails stays due for the next tick.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, fmt.Errorf("Tick: no notifier configured")
	}

	now := s.now()
	all, err := s.List(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("Tick: %w", err)
	}

	var fired int
	for _, r := range all {
		if !Due(r, now) {
			continue
		}
		if err := s.notifier.Notify(ctx, r.ChatID, Message(r)); err != nil {
			s.logger.Warn().Err(err).Str("reminder_id", r.ID).Int64("chat_id", r.ChatID).Msg("Failed to deliver reminder")
			continue
		}
		if err := s.markFired(ctx, r.ID, now.Format(monthKey)); err != nil {
			return fired, fmt.Errorf("Tick: %w", err)
		}
		fired++
		s.logger.Info().Str("reminder_id", r.ID).Int64("chat_id", r.ChatID).Msg("Reminder fired")
	}
	return fired, nil
}

// markFired records the month, unless the reminder was deleted meanwhile.
func (s *Scheduler) markFired(ctx context.Context, id, month string) error {
	return s.store.Update(ctx, func(tx store.Tx) error {
		all, err := tx.ListReminders()
		if err != nil {
			return err
		}
		for _, r := range all {
			if r.ID == id {
				r.LastFired = month
				return tx.PutReminder(r)
			}
		}
		return nil
	})
}

// Run calls Tick every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Reminder tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
