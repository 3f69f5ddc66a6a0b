package domain

import "time"

// MedicationReminder is a daily reminder a user configured for a medication.
// RemindAt is the minute of the day, in UTC, the reminder becomes due.
type MedicationReminder struct {
	ID             string
	UserID         string
	Medication     string
	Dosage         string
	RemindAt       time.Duration
	Active         bool
	LastNotifiedAt *time.Time
}

// DueAt returns the moment on day's date at which the reminder is due.
func (m MedicationReminder) DueAt(day time.Time) time.Time {
	y, mo, d := day.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).Add(m.RemindAt)
}

// Due reports whether the reminder should fire at now and has not fired today.
func (m MedicationReminder) Due(now time.Time) bool {
	if !m.Active {
		return false
	}
	dueAt := m.DueAt(now)
	if now.UTC().Before(dueAt) {
		return false
	}
	if m.LastNotifiedAt != nil && !m.LastNotifiedAt.UTC().Before(dueAt) {
		return false
	}
	return true
}

// Notification is the payload published for a due reminder.
type Notification struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
