package domain

import "context"

// Store é o colaborador de persistência. Implementações devem ser seguras para
// uso concorrente (pool de conexões próprio).
//
// Leituras de entidade ausente devolvem ErrNotFound; violação de unicidade
// devolve ErrConflict.
type Store interface {
	CreateUser(ctx context.Context, in NewUser) (User, error)
	GetUserByID(ctx context.Context, id int64) (User, error)
	GetUserByExternalUID(ctx context.Context, uid string) (User, error)

	CreateSession(ctx context.Context, in NewSession) (Session, error)
	// ListSessionsByParticipant: userID como aluno ou mentor, mais recente agendada primeiro.
	ListSessionsByParticipant(ctx context.Context, userID int64) ([]Session, error)

	CreateNotification(ctx context.Context, in NewNotification) (Notification, error)
	// ListUnreadNotifications: só não lidas, mais recente criada primeiro.
	ListUnreadNotifications(ctx context.Context, userID int64) ([]Notification, error)
	// MarkNotificationRead é idempotente; id inexistente devolve ErrNotFound.
	MarkNotificationRead(ctx context.Context, id int64) error

	// UpsertDeviceToken reaproveita a linha do mesmo token, atualizando updated_at.
	UpsertDeviceToken(ctx context.Context, in NewDeviceToken) (DeviceToken, error)
	ListDeviceTokens(ctx context.Context, userID int64) ([]DeviceToken, error)

	Prober
}

// Prober é a sonda de vida usada pelo health check.
type Prober interface {
	Ping(ctx context.Context) error
}

// Notifier entrega uma notificação a um device token (best-effort, sem retry).
type Notifier interface {
	Send(ctx context.Context, token, title, body string, payload Payload) error
}

type Principal struct {
	Subject string
	Role    string
}

// TokenVerifier valida a credencial bearer e devolve quem está chamando.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}
