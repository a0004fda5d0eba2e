//go:build cucumber

package application

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/sirupsen/logrus"

	rlapp "linkwithmentor/middleware/ratelimit/application"
	rlinfra "linkwithmentor/middleware/ratelimit/infra"
	"linkwithmentor/service/domain"
	"linkwithmentor/service/infra/memory"
)

// TestOrchestratorFeatures executa os cenários de features/orchestrator.feature.
func TestOrchestratorFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "orchestrator",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("features", "orchestrator.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

type scenarioState struct {
	max    int
	window time.Duration
	md     domain.Metadata

	orch  *Orchestrator
	store *memory.Store

	users   map[string]domain.User
	created domain.User
	fetched domain.User
	session domain.Session
	lastErr error
}

func initializeScenario(sc *godog.ScenarioContext) {
	s := &scenarioState{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*s = scenarioState{max: 100, window: time.Minute, users: map[string]domain.User{}}
		return ctx, nil
	})

	sc.Step(`^a rate limit of (\d+) requests per (\d+) seconds$`, s.rateLimit)
	sc.Step(`^I am authenticated as a regular user$`, s.authenticated)
	sc.Step(`^I am not authenticated$`, s.anonymous)
	sc.Step(`^I create user "([^"]+)" with email "([^"]+)"$`, s.createUser)
	sc.Step(`^I create user "([^"]+)" with email "([^"]+)" (\d+) times$`, s.createUserTimes)
	sc.Step(`^I get user by external uid "([^"]+)"$`, s.getUserByUID)
	sc.Step(`^the user has email "([^"]+)" and role "([^"]+)"$`, s.userHas)
	sc.Step(`^the fetched user has the same id as the created one$`, s.sameID)
	sc.Step(`^users "([^"]+)" and "([^"]+)" exist$`, s.usersExist)
	sc.Step(`^user "([^"]+)" exists$`, s.userExists)
	sc.Step(`^"([^"]+)" books a session with "([^"]+)" at "([^"]+)" without a duration$`, s.bookSession)
	sc.Step(`^the session lasts (\d+) minutes with status "([^"]+)"$`, s.sessionIs)
	sc.Step(`^"([^"]+)" registers device token "([^"]+)" twice$`, s.registerTwice)
	sc.Step(`^exactly (\d+) device token rows? exists?$`, s.tokenRows)
	sc.Step(`^exactly (\d+) user rows? exists?$`, s.userRows)
	sc.Step(`^the last call fails with "([^"]+)"$`, s.lastFails)
	sc.Step(`^the last call succeeds$`, s.lastSucceeds)
	sc.Step(`^I send a notification "([^"]+)" to "([^"]+)"$`, s.sendNotification)
	sc.Step(`^"([^"]+)" has (\d+) unread notifications?$`, s.unreadCount)
	sc.Step(`^the metrics report (\d+) total and (\d+) failed requests$`, s.metricsReport)
	sc.Step(`^the success rate is (\d+)$`, s.successRate)
}

func (s *scenarioState) ensure() error {
	if s.orch != nil {
		return nil
	}
	limiter, err := rlinfra.NewSlidingWindow(s.max, s.window)
	if err != nil {
		return err
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s.store = memory.New()
	s.orch, err = New(Config{
		Store:   s.store,
		Limiter: rlapp.Service{Limiter: limiter},
		Logger:  logger,
	})
	return err
}

func (s *scenarioState) rateLimit(max, seconds int) error {
	s.max, s.window = max, time.Duration(seconds)*time.Second
	return nil
}

func (s *scenarioState) authenticated() error {
	s.md = domain.Metadata{Authorization: "Bearer cucumber", Transport: "test"}
	return nil
}

func (s *scenarioState) anonymous() error {
	s.md = domain.Metadata{Transport: "test"}
	return nil
}

func (s *scenarioState) createUser(uid, email string) error {
	if err := s.ensure(); err != nil {
		return err
	}
	u, err := s.orch.CreateUser(context.Background(), s.md, domain.CreateUserRequest{ExternalUID: uid, Email: email})
	s.lastErr = err
	if err == nil {
		s.created = u
		s.users[uid] = u
	}
	return nil
}

func (s *scenarioState) createUserTimes(uid, email string, n int) error {
	for i := 0; i < n; i++ {
		if err := s.createUser(uid, email); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenarioState) getUserByUID(uid string) error {
	if err := s.ensure(); err != nil {
		return err
	}
	u, err := s.orch.GetUser(context.Background(), s.md, domain.GetUserRequest{ExternalUID: uid})
	s.lastErr = err
	s.fetched = u
	return err
}

func (s *scenarioState) userHas(email, role string) error {
	if s.fetched.Email != email || s.fetched.Role != role {
		return fmt.Errorf("expected %s/%s, got %s/%s", email, role, s.fetched.Email, s.fetched.Role)
	}
	return nil
}

func (s *scenarioState) sameID() error {
	if s.fetched.ID != s.created.ID {
		return fmt.Errorf("expected id %d, got %d", s.created.ID, s.fetched.ID)
	}
	return nil
}

func (s *scenarioState) userExists(uid string) error {
	if err := s.createUser(uid, uid+"@x.com"); err != nil {
		return err
	}
	return s.lastErr
}

func (s *scenarioState) usersExist(a, b string) error {
	if err := s.userExists(a); err != nil {
		return err
	}
	return s.userExists(b)
}

func (s *scenarioState) bookSession(student, mentor, at string) error {
	sess, err := s.orch.CreateSession(context.Background(), s.md, domain.CreateSessionRequest{
		UserID:      s.users[student].ID,
		MentorID:    s.users[mentor].ID,
		Title:       "mentoring",
		ScheduledAt: at,
	})
	s.lastErr = err
	s.session = sess
	return err
}

func (s *scenarioState) sessionIs(minutes int, status string) error {
	if s.session.DurationMinutes != minutes || s.session.Status != status {
		return fmt.Errorf("expected %d/%s, got %d/%s", minutes, status, s.session.DurationMinutes, s.session.Status)
	}
	return nil
}

func (s *scenarioState) registerTwice(uid, token string) error {
	req := domain.RegisterDeviceTokenRequest{UserID: s.users[uid].ID, Token: token, DeviceType: "android"}
	for i := 0; i < 2; i++ {
		if _, err := s.orch.RegisterDeviceToken(context.Background(), s.md, req); err != nil {
			return err
		}
	}
	return nil
}

func (s *scenarioState) tokenRows(n int) error {
	if got := s.store.DeviceTokenCount(); got != n {
		return fmt.Errorf("expected %d device tokens, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) userRows(n int) error {
	if got := s.store.UserCount(); got != n {
		return fmt.Errorf("expected %d users, got %d", n, got)
	}
	return nil
}

func (s *scenarioState) lastFails(kind string) error {
	if got := domain.KindOf(s.lastErr); string(got) != kind {
		return fmt.Errorf("expected %s, got %q (%v)", kind, got, s.lastErr)
	}
	return nil
}

func (s *scenarioState) lastSucceeds() error { return s.lastErr }

func (s *scenarioState) sendNotification(title, uid string) error {
	_, err := s.orch.SendNotification(context.Background(), s.md, domain.SendNotificationRequest{
		UserID: s.users[uid].ID, Title: title, Body: title,
	})
	s.lastErr = err
	return nil
}

func (s *scenarioState) unreadCount(uid string, n int) error {
	resp, err := s.orch.ListUnreadNotifications(context.Background(), s.md, domain.ListUnreadNotificationsRequest{UserID: s.users[uid].ID})
	if err != nil {
		return err
	}
	if len(resp.Notifications) != n {
		return fmt.Errorf("expected %d unread, got %d", n, len(resp.Notifications))
	}
	return nil
}

func (s *scenarioState) metricsReport(total, failed int) error {
	snap := s.orch.Metrics().Snapshot()
	if snap.TotalRequests != uint64(total) || snap.FailedRequests != uint64(failed) {
		return fmt.Errorf("expected %d/%d, got %d/%d", total, failed, snap.TotalRequests, snap.FailedRequests)
	}
	return nil
}

func (s *scenarioState) successRate(rate int) error {
	if err := s.ensure(); err != nil {
		return err
	}
	if got := s.orch.Metrics().Snapshot().SuccessRate(); got != float64(rate) {
		return fmt.Errorf("expected success rate %d, got %v", rate, got)
	}
	return nil
}
