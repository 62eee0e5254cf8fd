package domain

import "time"

// Reminder is a recurring monthly payment reminder for one chat.
type Reminder struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chat_id"`
	DayOfMonth int       `json:"day_of_month"` // 1..28
	Amount     int64     `json:"amount"`
	Note       string    `json:"note"`
	LastFired  string    `json:"last_fired,omitempty"` // "2006-01" of the last notification
	CreatedAt  time.Time `json:"created_at"`
}

// MaxReminderDay keeps reminders valid in every month.
const MaxReminderDay = 28
