package application

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	rldomain "linkwithmentor/middleware/ratelimit/domain"
	"linkwithmentor/service/domain"
	"linkwithmentor/service/metrics"
)

// ScheduledAtLayout é o formato aceito em create-session (UTC).
const ScheduledAtLayout = "2006-01-02 15:04:05"

func uidKey(uid string) rldomain.Key { return rldomain.Key("uid:" + uid) }
func userKey(id int64) rldomain.Key  { return rldomain.Key("user:" + strconv.FormatInt(id, 10)) }
func notifKey(id int64) rldomain.Key {
	return rldomain.Key("notification:" + strconv.FormatInt(id, 10))
}

func invalid(format string, args ...any) error {
	return domain.NewError(domain.KindInvalidArgument, format, args...)
}

func requireID(name string, id int64) error {
	if id <= 0 {
		return invalid("%s is required", name)
	}
	return nil
}

func (o *Orchestrator) Ping(ctx context.Context, md domain.Metadata, req domain.PingRequest) (domain.PingResponse, error) {
	return run(ctx, o, md, call[domain.PingResponse]{
		op:     domain.OpPing,
		public: true,
		exec: func(context.Context) (domain.PingResponse, error) {
			return domain.PingResponse{Message: "Pong: " + req.Message}, nil
		},
	})
}

func (o *Orchestrator) Health(ctx context.Context, md domain.Metadata) (domain.HealthStatus, error) {
	return run(ctx, o, md, call[domain.HealthStatus]{
		op:     domain.OpHealth,
		public: true,
		exec: func(ctx context.Context) (domain.HealthStatus, error) {
			return o.health.CheckHealth(ctx), nil
		},
	})
}

func (o *Orchestrator) Readiness(ctx context.Context, md domain.Metadata) (domain.ReadinessResponse, error) {
	return run(ctx, o, md, call[domain.ReadinessResponse]{
		op:     domain.OpReadiness,
		public: true,
		exec: func(ctx context.Context) (domain.ReadinessResponse, error) {
			return domain.ReadinessResponse{Ready: o.health.CheckReadiness(ctx)}, nil
		},
	})
}

func (o *Orchestrator) MetricsReport(ctx context.Context, md domain.Metadata) (metrics.Report, error) {
	return run(ctx, o, md, call[metrics.Report]{
		op:     domain.OpMetrics,
		public: true,
		exec: func(context.Context) (metrics.Report, error) {
			return o.metrics.Snapshot().Report(), nil
		},
	})
}

func (o *Orchestrator) CreateUser(ctx context.Context, md domain.Metadata, req domain.CreateUserRequest) (domain.User, error) {
	in := domain.NewUser{
		ExternalUID: strings.TrimSpace(req.ExternalUID),
		Email:       strings.TrimSpace(req.Email),
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Role:        strings.TrimSpace(req.Role),
	}
	return run(ctx, o, md, call[domain.User]{
		op: domain.OpCreateUser,
		prepare: func(p domain.Principal) (rldomain.Key, error) {
			if in.ExternalUID == "" {
				return "", invalid("external_uid is required")
			}
			if in.Email == "" {
				return "", invalid("email is required")
			}
			switch in.Role {
			case "":
				in.Role = domain.RoleUser
			case domain.RoleUser:
			case domain.RoleMentor, domain.RoleAdmin:
				if !CheckRole(p, domain.RoleAdmin) {
					return "", domain.NewError(domain.KindPermissionDenied, "role %q requires admin", in.Role)
				}
			default:
				return "", invalid("unknown role %q", in.Role)
			}
			return uidKey(in.ExternalUID), nil
		},
		exec: func(ctx context.Context) (domain.User, error) {
			u, err := o.store.CreateUser(ctx, in)
			if err != nil {
				return domain.User{}, storeErr("user", err)
			}
			return u, nil
		},
		created: o.metrics.IncUsersCreated,
	})
}

func (o *Orchestrator) GetUser(ctx context.Context, md domain.Metadata, req domain.GetUserRequest) (domain.User, error) {
	uid := strings.TrimSpace(req.ExternalUID)
	return run(ctx, o, md, call[domain.User]{
		op: domain.OpGetUser,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			switch {
			case req.ID != nil && uid != "":
				return "", invalid("exactly one of id or external_uid must be set")
			case req.ID != nil:
				if err := requireID("id", *req.ID); err != nil {
					return "", err
				}
				return userKey(*req.ID), nil
			case uid != "":
				return uidKey(uid), nil
			default:
				return "", invalid("exactly one of id or external_uid must be set")
			}
		},
		exec: func(ctx context.Context) (domain.User, error) {
			var (
				u   domain.User
				err error
			)
			if req.ID != nil {
				u, err = o.store.GetUserByID(ctx, *req.ID)
			} else {
				u, err = o.store.GetUserByExternalUID(ctx, uid)
			}
			if err != nil {
				return domain.User{}, storeErr("user", err)
			}
			return u, nil
		},
	})
}

func (o *Orchestrator) CreateSession(ctx context.Context, md domain.Metadata, req domain.CreateSessionRequest) (domain.Session, error) {
	var in domain.NewSession
	return run(ctx, o, md, call[domain.Session]{
		op: domain.OpCreateSession,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			if err := requireID("user_id", req.UserID); err != nil {
				return "", err
			}
			if err := requireID("mentor_id", req.MentorID); err != nil {
				return "", err
			}
			title := strings.TrimSpace(req.Title)
			if title == "" {
				return "", invalid("title is required")
			}
			if strings.TrimSpace(req.ScheduledAt) == "" {
				return "", invalid("scheduled_at is required")
			}
			at, err := time.ParseInLocation(ScheduledAtLayout, strings.TrimSpace(req.ScheduledAt), time.UTC)
			if err != nil {
				return "", invalid("scheduled_at must be formatted as YYYY-MM-DD HH:MM:SS")
			}
			duration := domain.DefaultSessionMinutes
			if req.DurationMinutes != nil {
				if *req.DurationMinutes <= 0 {
					return "", invalid("duration_minutes must be positive")
				}
				duration = *req.DurationMinutes
			}
			in = domain.NewSession{
				UserID:          req.UserID,
				MentorID:        req.MentorID,
				Title:           title,
				Description:     req.Description,
				ScheduledAt:     at,
				DurationMinutes: duration,
				Status:          domain.SessionStatusScheduled,
				MeetingLink:     req.MeetingLink,
			}
			return userKey(req.UserID), nil
		},
		exec: func(ctx context.Context) (domain.Session, error) {
			s, err := o.store.CreateSession(ctx, in)
			if err != nil {
				return domain.Session{}, storeErr("session participant", err)
			}
			return s, nil
		},
		created: o.metrics.IncSessionsCreated,
	})
}

func (o *Orchestrator) ListSessions(ctx context.Context, md domain.Metadata, req domain.ListSessionsRequest) (domain.ListSessionsResponse, error) {
	return run(ctx, o, md, call[domain.ListSessionsResponse]{
		op: domain.OpListSessions,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			if err := requireID("user_id", req.UserID); err != nil {
				return "", err
			}
			return userKey(req.UserID), nil
		},
		exec: func(ctx context.Context) (domain.ListSessionsResponse, error) {
			sessions, err := o.store.ListSessionsByParticipant(ctx, req.UserID)
			if err != nil {
				return domain.ListSessionsResponse{}, storeErr("sessions", err)
			}
			return domain.ListSessionsResponse{Sessions: sessions}, nil
		},
	})
}

func (o *Orchestrator) SendNotification(ctx context.Context, md domain.Metadata, req domain.SendNotificationRequest) (domain.SendNotificationResponse, error) {
	var (
		in      domain.NewNotification
		payload domain.Payload
	)
	entry := o.log.WithFields(logrus.Fields{"op": string(domain.OpSendNotification), "user_id": req.UserID})
	return run(ctx, o, md, call[domain.SendNotificationResponse]{
		op: domain.OpSendNotification,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			if err := requireID("user_id", req.UserID); err != nil {
				return "", err
			}
			title, body := strings.TrimSpace(req.Title), strings.TrimSpace(req.Body)
			if title == "" {
				return "", invalid("title is required")
			}
			if body == "" {
				return "", invalid("body is required")
			}
			if req.Payload != nil {
				payload = *req.Payload
			}
			if err := payload.Validate(); err != nil {
				return "", invalid("%s", err.Error())
			}
			in = domain.NewNotification{UserID: req.UserID, Title: title, Body: body, Type: payload.Type()}
			if data := payload.Data(); len(data) > 0 {
				raw, err := json.Marshal(data)
				if err != nil {
					return "", invalid("payload: %s", err.Error())
				}
				s := string(raw)
				in.Data = &s
			}
			return userKey(req.UserID), nil
		},
		exec: func(ctx context.Context) (domain.SendNotificationResponse, error) {
			n, err := o.store.CreateNotification(ctx, in)
			if err != nil {
				return domain.SendNotificationResponse{}, storeErr("notification recipient", err)
			}
			resp := domain.SendNotificationResponse{Notification: n}
			if o.notifier == nil {
				return resp, nil
			}

			// Fan-out best-effort: o registro já está gravado, falhas de push não voltam ao chamador.
			tokens, err := o.store.ListDeviceTokens(ctx, req.UserID)
			if err != nil {
				entry.WithError(err).Error("list device tokens failed, skipping push")
				return resp, nil
			}
			for _, dt := range tokens {
				if err := o.notifier.Send(ctx, dt.Token, n.Title, n.Body, payload); err != nil {
					resp.Failed++
					entry.WithError(err).WithField("device_token_id", dt.ID).Warn("push delivery failed")
					continue
				}
				resp.Delivered++
			}
			return resp, nil
		},
		created: o.metrics.IncNotificationsSent,
	})
}

func (o *Orchestrator) ListUnreadNotifications(ctx context.Context, md domain.Metadata, req domain.ListUnreadNotificationsRequest) (domain.ListUnreadNotificationsResponse, error) {
	return run(ctx, o, md, call[domain.ListUnreadNotificationsResponse]{
		op: domain.OpListUnreadNotifications,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			if err := requireID("user_id", req.UserID); err != nil {
				return "", err
			}
			return userKey(req.UserID), nil
		},
		exec: func(ctx context.Context) (domain.ListUnreadNotificationsResponse, error) {
			ns, err := o.store.ListUnreadNotifications(ctx, req.UserID)
			if err != nil {
				return domain.ListUnreadNotificationsResponse{}, storeErr("notifications", err)
			}
			return domain.ListUnreadNotificationsResponse{Notifications: ns}, nil
		},
	})
}

func (o *Orchestrator) MarkRead(ctx context.Context, md domain.Metadata, req domain.MarkReadRequest) (domain.MarkReadResponse, error) {
	return run(ctx, o, md, call[domain.MarkReadResponse]{
		op: domain.OpMarkRead,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			if err := requireID("notification_id", req.NotificationID); err != nil {
				return "", err
			}
			return notifKey(req.NotificationID), nil
		},
		exec: func(ctx context.Context) (domain.MarkReadResponse, error) {
			if err := o.store.MarkNotificationRead(ctx, req.NotificationID); err != nil {
				return domain.MarkReadResponse{}, storeErr("notification", err)
			}
			return domain.MarkReadResponse{NotificationID: req.NotificationID, IsRead: true}, nil
		},
	})
}

func (o *Orchestrator) RegisterDeviceToken(ctx context.Context, md domain.Metadata, req domain.RegisterDeviceTokenRequest) (domain.DeviceToken, error) {
	in := domain.NewDeviceToken{
		UserID:     req.UserID,
		Token:      strings.TrimSpace(req.Token),
		DeviceType: strings.TrimSpace(req.DeviceType),
	}
	return run(ctx, o, md, call[domain.DeviceToken]{
		op: domain.OpRegisterDeviceToken,
		prepare: func(domain.Principal) (rldomain.Key, error) {
			if err := requireID("user_id", in.UserID); err != nil {
				return "", err
			}
			if in.Token == "" {
				return "", invalid("token is required")
			}
			if in.DeviceType == "" {
				return "", invalid("device_type is required")
			}
			return userKey(in.UserID), nil
		},
		exec: func(ctx context.Context) (domain.DeviceToken, error) {
			dt, err := o.store.UpsertDeviceToken(ctx, in)
			if err != nil {
				return domain.DeviceToken{}, storeErr("device token owner", err)
			}
			return dt, nil
		},
	})
}
