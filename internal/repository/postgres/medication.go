package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
)

const (
	reminderSelectActive = `SELECT id, user_id, medication, dosage, remind_at_minute, active, last_notified_at
		FROM medication_reminders WHERE active ORDER BY id`
	reminderMarkNotified = `UPDATE medication_reminders SET last_notified_at = $2 WHERE id = $1`
)

// ListActiveReminders returns every active medication reminder.
func (r *Repository) ListActiveReminders(ctx context.Context) ([]domain.MedicationReminder, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	rows, err := r.db.Query(ctx, reminderSelectActive)
	if err != nil {
		return nil, translate("list reminders", err)
	}
	defer rows.Close()

	reminders := make([]domain.MedicationReminder, 0)
	for rows.Next() {
		var (
			reminder domain.MedicationReminder
			minute   int
			notified sql.NullTime
		)
		if err := rows.Scan(&reminder.ID, &reminder.UserID, &reminder.Medication, &reminder.Dosage, &minute, &reminder.Active, &notified); err != nil {
			return nil, translate("scan reminder", err)
		}
		reminder.RemindAt = time.Duration(minute) * time.Minute
		if notified.Valid {
			value := notified.Time.UTC()
			reminder.LastNotifiedAt = &value
		}
		reminders = append(reminders, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list reminders", err)
	}
	return reminders, nil
}

// MarkReminderNotified stamps the delivery time on a reminder.
func (r *Repository) MarkReminderNotified(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()
	tag, err := r.db.Exec(ctx, reminderMarkNotified, id, at.UTC())
	if err != nil {
		return translate("mark reminder notified", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
