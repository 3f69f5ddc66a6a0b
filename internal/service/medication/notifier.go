// Package medication publishes reminders for medications that are due.
package medication

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository"
	"github.com/splax/carebase/internal/service/periodic"
)

const (
	defaultInterval = time.Minute
	scanTimeout     = 20 * time.Second

	// KindMedicationReminder tags notifications produced by the notifier.
	KindMedicationReminder = "medication_reminder"
)

// Publisher delivers notifications to users.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// Notifier scans reminders on a fixed interval.
type Notifier struct {
	repo      repository.MedicationRepository
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time
	loop      periodic.Loop
}

// NewNotifier constructs a Notifier.
func NewNotifier(repo repository.MedicationRepository, publisher Publisher, logger *slog.Logger, interval time.Duration) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Notifier{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "medication"),
		interval:  interval,
		now:       time.Now,
	}
}

// Name identifies the service in bootstrap logs and health output.
func (n *Notifier) Name() string { return "medication" }

// Start begins scanning. Calling it again while running is a no-op.
func (n *Notifier) Start(ctx context.Context) error {
	if n.repo == nil {
		return fmt.Errorf("medication notifier: repository required")
	}
	if n.loop.Start(ctx, n.interval, n.tick) {
		n.logger.Info("medication notifier started", "interval", n.interval)
	}
	return nil
}

// Stop halts scanning and waits for an in-flight scan.
func (n *Notifier) Stop() {
	if n.loop.Running() {
		n.loop.Stop()
		n.logger.Info("medication notifier stopped")
	}
}

func (n *Notifier) tick(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()
	sent, err := n.RunOnce(opCtx)
	if err != nil {
		n.logger.Warn("medication scan failed", "error", err)
		return
	}
	if sent > 0 {
		n.logger.Info("medication reminders sent", "count", sent)
	}
}

// RunOnce publishes every reminder due at the current time that has not
// fired today and returns how many were sent. A reminder whose publish fails
// stays unmarked and is retried on the next scan.
func (n *Notifier) RunOnce(ctx context.Context) (int, error) {
	reminders, err := n.repo.ListActiveReminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminders: %w", err)
	}
	now := n.now().UTC()
	sent := 0
	for _, reminder := range reminders {
		if !reminder.Due(now) {
			continue
		}
		if err := n.publisher.Publish(ctx, notificationFor(reminder, now)); err != nil {
			n.logger.Warn("publish reminder failed", "reminder_id", reminder.ID, "error", err)
			continue
		}
		if err := n.repo.MarkReminderNotified(ctx, reminder.ID, now); err != nil {
			n.logger.Warn("mark reminder notified failed", "reminder_id", reminder.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

func notificationFor(r domain.MedicationReminder, now time.Time) domain.Notification {
	body := "Time to take " + r.Medication
	if r.Dosage != "" {
		body += " (" + r.Dosage + ")"
	}
	return domain.Notification{
		Kind:      KindMedicationReminder,
		UserID:    r.UserID,
		Title:     "Medication reminder",
		Body:      body,
		CreatedAt: now,
	}
}
