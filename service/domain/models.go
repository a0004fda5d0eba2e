package domain

import "time"

const (
	RoleUser   = "user"
	RoleMentor = "mentor"
	RoleAdmin  = "admin"
)

const SessionStatusScheduled = "scheduled"

// DefaultSessionMinutes é a duração usada quando a sessão não informa uma.
const DefaultSessionMinutes = 60

type User struct {
	ID          int64     `json:"id"`
	ExternalUID string    `json:"external_uid"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"display_name,omitempty"`
	PhotoURL    *string   `json:"photo_url,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewUser struct {
	ExternalUID string
	Email       string
	DisplayName *string
	PhotoURL    *string
	Role        string
}

type Session struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	MentorID        int64     `json:"mentor_id"`
	Title           string    `json:"title"`
	Description     *string   `json:"description,omitempty"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	MeetingLink     *string   `json:"meeting_link,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type NewSession struct {
	UserID          int64
	MentorID        int64
	Title           string
	Description     *string
	ScheduledAt     time.Time
	DurationMinutes int
	Status          string
	MeetingLink     *string
}

type Notification struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Type   string `json:"notification_type"`
	// Data é o payload tipado serializado em JSON (objeto de strings).
	Data      *string   `json:"data,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type NewNotification struct {
	UserID int64
	Title  string
	Body   string
	Type   string
	Data   *string
}

type DeviceToken struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Token      string    `json:"token"`
	DeviceType string    `json:"device_type"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type NewDeviceToken struct {
	UserID     int64
	Token      string
	DeviceType string
}
