// Package memory implementa domain.Store em memória, atrás de um único RWMutex.
//
// Usado quando DATABASE_URL não está configurada e pelos testes dos transportes.
// Segue as mesmas regras do store Postgres: external_uid e token únicos,
// referências a usuários inexistentes devolvem domain.ErrNotFound.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"linkwithmentor/service/domain"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	nextID int64

	users         map[int64]domain.User
	usersByUID    map[string]int64
	sessions      map[int64]domain.Session
	notifications map[int64]domain.Notification
	tokens        map[string]domain.DeviceToken
}

type Option func(*Store)

// WithNow troca a fonte de tempo dos created_at/updated_at.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		users:         make(map[int64]domain.User),
		usersByUID:    make(map[string]int64),
		sessions:      make(map[int64]domain.Session),
		notifications: make(map[int64]domain.Notification),
		tokens:        make(map[string]domain.DeviceToken),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) requireUser(id int64) error {
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, in domain.NewUser) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByUID[in.ExternalUID]; ok {
		return domain.User{}, fmt.Errorf("user %q: %w", in.ExternalUID, domain.ErrConflict)
	}
	now := s.now().UTC()
	u := domain.User{
		ID:          s.id(),
		ExternalUID: in.ExternalUID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		PhotoURL:    in.PhotoURL,
		Role:        in.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.users[u.ID] = u
	s.usersByUID[u.ExternalUID] = u.ID
	return u, nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByExternalUID(_ context.Context, uid string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByUID[uid]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) CreateSession(_ context.Context, in domain.NewSession) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUser(in.UserID); err != nil {
		return domain.Session{}, err
	}
	if err := s.requireUser(in.MentorID); err != nil {
		return domain.Session{}, err
	}
	now := s.now().UTC()
	sess := domain.Session{
		ID:              s.id(),
		UserID:          in.UserID,
		MentorID:        in.MentorID,
		Title:           in.Title,
		Description:     in.Description,
		ScheduledAt:     in.ScheduledAt,
		DurationMinutes: in.DurationMinutes,
		Status:          in.Status,
		MeetingLink:     in.MeetingLink,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *Store) ListSessionsByParticipant(_ context.Context, userID int64) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Session, 0)
	for _, sess := range s.sessions {
		if sess.UserID == userID || sess.MentorID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.After(out[j].ScheduledAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateNotification(_ context.Context, in domain.NewNotification) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUser(in.UserID); err != nil {
		return domain.Notification{}, err
	}
	n := domain.Notification{
		ID:        s.id(),
		UserID:    in.UserID,
		Title:     in.Title,
		Body:      in.Body,
		Type:      in.Type,
		Data:      in.Data,
		CreatedAt: s.now().UTC(),
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) ListUnreadNotifications(_ context.Context, userID int64) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) UpsertDeviceToken(_ context.Context, in domain.NewDeviceToken) (domain.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireUser(in.UserID); err != nil {
		return domain.DeviceToken{}, err
	}
	now := s.now().UTC()
	dt, ok := s.tokens[in.Token]
	if !ok {
		dt = domain.DeviceToken{ID: s.id(), Token: in.Token, CreatedAt: now}
	}
	dt.UserID = in.UserID
	dt.DeviceType = in.DeviceType
	dt.UpdatedAt = now
	s.tokens[in.Token] = dt
	return dt, nil
}

func (s *Store) ListDeviceTokens(_ context.Context, userID int64) ([]domain.DeviceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.DeviceToken, 0)
	for _, dt := range s.tokens {
		if dt.UserID == userID {
			out = append(out, dt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeviceTokenCount devolve o total de tokens registrados (todas as contas).
func (s *Store) DeviceTokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// UserCount devolve quantos usuários existem.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
