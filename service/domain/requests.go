package domain

// Op nomeia cada operação. É também o nome da rota RPC (POST /v1/<Op>) e o
// campo "op" do envelope de stream.
type Op string

const (
	OpPing                    Op = "Ping"
	OpHealth                  Op = "Health"
	OpReadiness               Op = "Readiness"
	OpMetrics                 Op = "Metrics"
	OpCreateUser              Op = "CreateUser"
	OpGetUser                 Op = "GetUser"
	OpCreateSession           Op = "CreateSession"
	OpListSessions            Op = "ListSessions"
	OpSendNotification        Op = "SendNotification"
	OpListUnreadNotifications Op = "ListUnreadNotifications"
	OpMarkRead                Op = "MarkRead"
	OpRegisterDeviceToken     Op = "RegisterDeviceToken"
)

// Metadata acompanha cada requisição, independente do transporte.
type Metadata struct {
	// Authorization é o valor bruto do header/campo ("Bearer <token>").
	Authorization string
	Transport     string
	RequestID     string
}

type PingRequest struct {
	Message string `json:"message"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type ReadinessResponse struct {
	Ready bool `json:"ready"`
}

type CreateUserRequest struct {
	ExternalUID string  `json:"external_uid"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name,omitempty"`
	PhotoURL    *string `json:"photo_url,omitempty"`
	Role        string  `json:"role,omitempty"`
}

// GetUserRequest: exatamente um de ID ou ExternalUID.
type GetUserRequest struct {
	ID          *int64 `json:"id,omitempty"`
	ExternalUID string `json:"external_uid,omitempty"`
}

type CreateSessionRequest struct {
	UserID      int64   `json:"user_id"`
	MentorID    int64   `json:"mentor_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	// ScheduledAt no formato "YYYY-MM-DD HH:MM:SS".
	ScheduledAt     string  `json:"scheduled_at"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	MeetingLink     *string `json:"meeting_link,omitempty"`
}

type ListSessionsRequest struct {
	UserID int64 `json:"user_id"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type SendNotificationRequest struct {
	UserID  int64    `json:"user_id"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Payload *Payload `json:"payload,omitempty"`
}

type SendNotificationResponse struct {
	Notification Notification `json:"notification"`
	// Delivered/Failed contam o fan-out por device token.
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

type ListUnreadNotificationsRequest struct {
	UserID int64 `json:"user_id"`
}

type ListUnreadNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

type MarkReadRequest struct {
	NotificationID int64 `json:"notification_id"`
}

type MarkReadResponse struct {
	NotificationID int64 `json:"notification_id"`
	IsRead         bool  `json:"is_read"`
}

type RegisterDeviceTokenRequest struct {
	UserID     int64  `json:"user_id"`
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}
