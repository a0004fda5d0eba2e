package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkwithmentor/service/domain"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) *Store {
	t.Helper()
	c := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithNow(c.now))
}

func mustUser(t *testing.T, s *Store, uid string) domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.NewUser{ExternalUID: uid, Email: uid + "@x.com", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create user %s: %v", uid, err)
	}
	return u
}

func TestStore_CreateAndGetUser(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "u1")

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil || byID.Email != "u1@x.com" {
		t.Fatalf("GetUserByID: %+v, %v", byID, err)
	}
	byUID, err := s.GetUserByExternalUID(ctx, "u1")
	if err != nil || byUID.ID != u.ID {
		t.Fatalf("GetUserByExternalUID: %+v, %v", byUID, err)
	}
	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DuplicateExternalUIDConflicts(t *testing.T) {
	s := newStore(t)
	mustUser(t, s, "u1")

	_, err := s.CreateUser(context.Background(), domain.NewUser{ExternalUID: "u1", Email: "other@x.com"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if s.UserCount() != 1 {
		t.Fatalf("expected 1 user, got %d", s.UserCount())
	}
}

func TestStore_SessionsListedNewestScheduledFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	student := mustUser(t, s, "student")
	mentor := mustUser(t, s, "mentor")
	other := mustUser(t, s, "other")

	base := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{base, base.Add(48 * time.Hour), base.Add(24 * time.Hour)} {
		_, err := s.CreateSession(ctx, domain.NewSession{
			UserID: student.ID, MentorID: mentor.ID, Title: "s", ScheduledAt: at,
			DurationMinutes: 60, Status: domain.SessionStatusScheduled,
		})
		if err != nil {
			t.Fatalf("create session %d: %v", i, err)
		}
	}

	for _, id := range []int64{student.ID, mentor.ID} {
		got, err := s.ListSessionsByParticipant(ctx, id)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 sessions for %d, got %d", id, len(got))
		}
		if !got[0].ScheduledAt.Equal(base.Add(48*time.Hour)) || !got[2].ScheduledAt.Equal(base) {
			t.Fatalf("unexpected order: %v, %v, %v", got[0].ScheduledAt, got[1].ScheduledAt, got[2].ScheduledAt)
		}
	}

	got, _ := s.ListSessionsByParticipant(ctx, other.ID)
	if len(got) != 0 {
		t.Fatalf("expected no sessions for non-participant, got %d", len(got))
	}
}

func TestStore_SessionWithUnknownMentorIsNotFound(t *testing.T) {
	s := newStore(t)
	student := mustUser(t, s, "student")

	_, err := s.CreateSession(context.Background(), domain.NewSession{UserID: student.ID, MentorID: 42, Title: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UnreadNotificationsAndMarkRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "u1")

	first, _ := s.CreateNotification(ctx, domain.NewNotification{UserID: u.ID, Title: "a", Body: "a", Type: "plain"})
	second, _ := s.CreateNotification(ctx, domain.NewNotification{UserID: u.ID, Title: "b", Body: "b", Type: "plain"})

	unread, err := s.ListUnreadNotifications(ctx, u.ID)
	if err != nil || len(unread) != 2 || unread[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v (%v)", unread, err)
	}

	if err := s.MarkNotificationRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := s.MarkNotificationRead(ctx, first.ID); err != nil {
		t.Fatalf("mark read must be idempotent: %v", err)
	}
	if err := s.MarkNotificationRead(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	unread, _ = s.ListUnreadNotifications(ctx, u.ID)
	if len(unread) != 1 || unread[0].ID != second.ID {
		t.Fatalf("expected only the second notification unread, got %+v", unread)
	}
}

func TestStore_UpsertDeviceTokenKeepsOneRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u := mustUser(t, s, "u1")

	a, err := s.UpsertDeviceToken(ctx, domain.NewDeviceToken{UserID: u.ID, Token: "tok", DeviceType: "android"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	b, err := s.UpsertDeviceToken(ctx, domain.NewDeviceToken{UserID: u.ID, Token: "tok", DeviceType: "ios"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	if a.ID != b.ID {
		t.Fatalf("expected same row, got ids %d and %d", a.ID, b.ID)
	}
	if !b.UpdatedAt.After(a.UpdatedAt) {
		t.Fatalf("expected updated_at to move forward: %v -> %v", a.UpdatedAt, b.UpdatedAt)
	}
	if b.DeviceType != "ios" || !b.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("unexpected upserted row: %+v", b)
	}
	if s.DeviceTokenCount() != 1 {
		t.Fatalf("expected exactly one token row, got %d", s.DeviceTokenCount())
	}
}
