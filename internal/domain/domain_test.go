package domain

import (
	"testing"
	"time"
)

func TestSessionValidIsStrictlyBeforeExpiry(t *testing.T) {
	expires := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s := Session{ID: "s", UserID: "u", ExpiresAt: expires}
	if !s.Valid(expires.Add(-time.Nanosecond)) {
		t.Fatalf("expected session valid just before expiry")
	}
	if s.Valid(expires) {
		t.Fatalf("expected session invalid at expiry")
	}
	if s.Valid(expires.Add(time.Hour)) {
		t.Fatalf("expected session invalid after expiry")
	}
}

func TestGuestIdentity(t *testing.T) {
	if !IsGuestID(GuestUserID) || !IsGuestID("guest-1b4e28ba") {
		t.Fatalf("expected guest ids to be recognised")
	}
	if IsGuestID("4f1c2d7e-0000-4000-8000-000000000000") {
		t.Fatalf("uuid user id must not be a guest id")
	}
	p := GuestPrincipal("")
	if p.UserID != GuestUserID || !p.IsGuest() {
		t.Fatalf("unexpected guest principal %+v", p)
	}
}

func TestMedicationReminderDue(t *testing.T) {
	now := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	r := MedicationReminder{Active: true, RemindAt: 9 * time.Hour}
	if !r.Due(now) {
		t.Fatalf("expected reminder due after 09:00")
	}
	if r.Due(now.Add(-time.Hour)) {
		t.Fatalf("expected reminder not due before 09:00")
	}
	notified := now.Add(-10 * time.Minute)
	r.LastNotifiedAt = &notified
	if r.Due(now) {
		t.Fatalf("expected reminder not due twice on the same day")
	}
	yesterday := now.Add(-24 * time.Hour)
	r.LastNotifiedAt = &yesterday
	if !r.Due(now) {
		t.Fatalf("expected reminder due again the next day")
	}
	r.Active = false
	if r.Due(now) {
		t.Fatalf("inactive reminder must never be due")
	}
}
