// Package postgres implementa domain.Store sobre pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"linkwithmentor/service/domain"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect abre o pool; maxConns <= 0 mantém o default do pgxpool.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return pool, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// classify traduz erros do driver para os sentinelas do domínio.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

const userColumns = `id, external_uid, email, display_name, photo_url, role, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ExternalUID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, in domain.NewUser) (domain.User, error) {
	query := `
		INSERT INTO users (external_uid, email, display_name, photo_url, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, in.ExternalUID, in.Email, in.DisplayName, in.PhotoURL, in.Role))
	if err != nil {
		return domain.User{}, classify("create user", err)
	}
	return u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, classify("get user", err)
	}
	return u, nil
}

func (s *Store) GetUserByExternalUID(ctx context.Context, uid string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_uid = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, uid))
	if err != nil {
		return domain.User{}, classify("get user", err)
	}
	return u, nil
}

const sessionColumns = `id, user_id, mentor_id, title, description, scheduled_at, duration_minutes, status, meeting_link, created_at, updated_at`

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.MentorID, &s.Title, &s.Description, &s.ScheduledAt,
		&s.DurationMinutes, &s.Status, &s.MeetingLink, &s.CreatedAt, &s.UpdatedAt)
	if err == nil {
		s.ScheduledAt = s.ScheduledAt.UTC()
	}
	return s, err
}

func (s *Store) CreateSession(ctx context.Context, in domain.NewSession) (domain.Session, error) {
	query := `
		INSERT INTO sessions (user_id, mentor_id, title, description, scheduled_at, duration_minutes, status, meeting_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + sessionColumns

	sess, err := scanSession(s.pool.QueryRow(ctx, query,
		in.UserID, in.MentorID, in.Title, in.Description, in.ScheduledAt, in.DurationMinutes, in.Status, in.MeetingLink))
	if err != nil {
		return domain.Session{}, classify("create session", err)
	}
	return sess, nil
}

func (s *Store) ListSessionsByParticipant(ctx context.Context, userID int64) ([]domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 OR mentor_id = $1
		ORDER BY scheduled_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify("list sessions", err)
	}
	defer rows.Close()

	out := make([]domain.Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, classify("scan session", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list sessions", err)
	}
	return out, nil
}

const notificationColumns = `id, user_id, title, body, notification_type, data, is_read, created_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Type, &n.Data, &n.IsRead, &n.CreatedAt)
	return n, err
}

func (s *Store) CreateNotification(ctx context.Context, in domain.NewNotification) (domain.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, title, body, notification_type, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + notificationColumns

	n, err := scanNotification(s.pool.QueryRow(ctx, query, in.UserID, in.Title, in.Body, in.Type, in.Data))
	if err != nil {
		return domain.Notification{}, classify("create notification", err)
	}
	return n, nil
}

func (s *Store) ListUnreadNotifications(ctx context.Context, userID int64) ([]domain.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND NOT is_read
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify("list notifications", err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, classify("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list notifications", err)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	result, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return classify("mark notification read", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const deviceTokenColumns = `id, user_id, token, device_type, created_at, updated_at`

func scanDeviceToken(row pgx.Row) (domain.DeviceToken, error) {
	var dt domain.DeviceToken
	err := row.Scan(&dt.ID, &dt.UserID, &dt.Token, &dt.DeviceType, &dt.CreatedAt, &dt.UpdatedAt)
	return dt, err
}

func (s *Store) UpsertDeviceToken(ctx context.Context, in domain.NewDeviceToken) (domain.DeviceToken, error) {
	query := `
		INSERT INTO device_tokens (user_id, token, device_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			device_type = EXCLUDED.device_type,
			updated_at = clock_timestamp()
		RETURNING ` + deviceTokenColumns

	dt, err := scanDeviceToken(s.pool.QueryRow(ctx, query, in.UserID, in.Token, in.DeviceType))
	if err != nil {
		return domain.DeviceToken{}, classify("upsert device token", err)
	}
	return dt, nil
}

func (s *Store) ListDeviceTokens(ctx context.Context, userID int64) ([]domain.DeviceToken, error) {
	query := `SELECT ` + deviceTokenColumns + ` FROM device_tokens WHERE user_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify("list device tokens", err)
	}
	defer rows.Close()

	out := make([]domain.DeviceToken, 0)
	for rows.Next() {
		dt, err := scanDeviceToken(rows)
		if err != nil {
			return nil, classify("scan device token", err)
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list device tokens", err)
	}
	return out, nil
}
