package medication

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/splax/carebase/internal/domain"
	"github.com/splax/carebase/internal/repository/memory"
)

func TestRunOncePublishesDueReminders(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, time.April, 10, 9, 30, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	store.PutReminder(domain.MedicationReminder{ID: "due", UserID: "u1", Medication: "Metformin", Dosage: "500mg", RemindAt: 9 * time.Hour, Active: true})
	store.PutReminder(domain.MedicationReminder{ID: "later", UserID: "u1", Medication: "Statin", RemindAt: 21 * time.Hour, Active: true})
	store.PutReminder(domain.MedicationReminder{ID: "stale", UserID: "u2", Medication: "Vitamin D", RemindAt: 8 * time.Hour, Active: true, LastNotifiedAt: &yesterday})
	store.PutReminder(domain.MedicationReminder{ID: "off", UserID: "u3", Medication: "Aspirin", RemindAt: time.Hour, Active: false})

	pub := &recordingPublisher{}
	n := NewNotifier(store, pub, newLogger(), time.Minute)
	n.now = func() time.Time { return now }

	sent, err := n.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sent != 2 || len(pub.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d/%d", sent, len(pub.sent))
	}
	if pub.sent[0].Body != "Time to take Metformin (500mg)" || pub.sent[0].Kind != KindMedicationReminder {
		t.Fatalf("unexpected notification: %+v", pub.sent[0])
	}

	sent, err = n.RunOnce(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("expected no repeats on the same day, got %d (%v)", sent, err)
	}
}

func TestRunOnceRetriesFailedPublish(t *testing.T) {
	store := memory.New()
	now := time.Date(2026, time.April, 10, 9, 30, 0, 0, time.UTC)
	store.PutReminder(domain.MedicationReminder{ID: "r1", UserID: "u1", Medication: "Metformin", RemindAt: 9 * time.Hour, Active: true})

	pub := &recordingPublisher{err: errors.New("broker down")}
	n := NewNotifier(store, pub, newLogger(), time.Minute)
	n.now = func() time.Time { return now }

	if sent, _ := n.RunOnce(context.Background()); sent != 0 {
		t.Fatalf("expected nothing sent, got %d", sent)
	}
	if r, _ := store.Reminder("r1"); r.LastNotifiedAt != nil {
		t.Fatalf("failed publish must not mark the reminder")
	}
	pub.err = nil
	if sent, _ := n.RunOnce(context.Background()); sent != 1 {
		t.Fatalf("expected retry to send, got %d", sent)
	}
}

func TestNotifierStartIsIdempotent(t *testing.T) {
	n := NewNotifier(memory.New(), nil, newLogger(), time.Hour)
	for i := 0; i < 3; i++ {
		if err := n.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	defer n.Stop()
	if n.loop.Starts() != 1 {
		t.Fatalf("expected one timer, got %d", n.loop.Starts())
	}
}

func TestRedisPublisher(t *testing.T) {
	client := &fakeRedis{}
	p := newRedisPublisher(client, "")
	note := domain.Notification{Kind: KindMedicationReminder, UserID: "u1", Title: "t", Body: "b"}
	if err := p.Publish(context.Background(), note); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if client.channel != defaultChannel {
		t.Fatalf("unexpected channel %q", client.channel)
	}
	var decoded domain.Notification
	if err := json.Unmarshal(client.payload, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.UserID != "u1" || decoded.Kind != KindMedicationReminder {
		t.Fatalf("unexpected payload: %+v", decoded)
	}

	client.err = errors.New("connection refused")
	if err := p.Publish(context.Background(), note); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestNewRedisPublisherRequiresClient(t *testing.T) {
	if _, err := NewRedisPublisher(nil, "x"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	sent []domain.Notification
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, n domain.Notification) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}
