package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	rlapp "linkwithmentor/middleware/ratelimit/application"
	rldomain "linkwithmentor/middleware/ratelimit/domain"
	"linkwithmentor/service/domain"
	"linkwithmentor/service/metrics"
)

const outcomeOK = "ok"

type Config struct {
	Store domain.Store
	// Notifier nil desliga o fan-out de push (o registro ainda é criado).
	Notifier domain.Notifier
	// LogOnlyNotifier marca um Notifier que não fala com gateway real;
	// o health reporta notification_gateway=false.
	LogOnlyNotifier bool
	Verifier        domain.TokenVerifier

	// Limiter decide por identidade alvo. Limiter.Limiter nil desliga o limite.
	Limiter rlapp.Service
	Metrics *metrics.Collector
	// Stats é best-effort: erro de gravação só vira log.
	Stats rldomain.StatsStore

	Logger       logrus.FieldLogger
	ProbeTimeout time.Duration
	Now          func() time.Time
}

type Orchestrator struct {
	store    domain.Store
	notifier domain.Notifier
	verifier domain.TokenVerifier
	limiter  rlapp.Service
	metrics  *metrics.Collector
	stats    rldomain.StatsStore
	health   HealthChecker
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("application: store is required")
	}
	if cfg.Verifier == nil {
		cfg.Verifier = PermissiveVerifier{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		store:    cfg.Store,
		notifier: cfg.Notifier,
		verifier: cfg.Verifier,
		limiter:  cfg.Limiter,
		metrics:  cfg.Metrics,
		stats:    cfg.Stats,
		health: HealthChecker{
			Prober:             cfg.Store,
			NotifierConfigured: cfg.Notifier != nil && !cfg.LogOnlyNotifier,
			Timeout:            cfg.ProbeTimeout,
			StartedAt:          cfg.Now(),
			Now:                cfg.Now,
		},
		log: cfg.Logger,
		now: cfg.Now,
	}, nil
}

func (o *Orchestrator) Metrics() *metrics.Collector { return o.metrics }

// call descreve uma operação para o pipeline.
//
// prepare roda depois da autenticação: valida a entrada, aplica regras de papel e
// devolve a chave de rate limit ("" = sem limite). exec é a chamada de negócio.
type call[T any] struct {
	op      domain.Op
	public  bool
	prepare func(p domain.Principal) (rldomain.Key, error)
	exec    func(ctx context.Context) (T, error)
	created func()
}

func run[T any](ctx context.Context, o *Orchestrator, md domain.Metadata, c call[T]) (T, error) {
	var zero T
	start := o.now()
	o.metrics.IncRequests()

	if md.RequestID == "" {
		md.RequestID = uuid.NewString()
	}
	entry := o.log.WithFields(logrus.Fields{
		"op":         string(c.op),
		"transport":  md.Transport,
		"request_id": md.RequestID,
	})

	var key rldomain.Key
	out, err := func() (T, error) {
		var p domain.Principal
		if !c.public {
			token, err := ExtractBearer(md.Authorization)
			if err != nil {
				return zero, err
			}
			p, err = o.verifier.Verify(ctx, token)
			if err != nil {
				if domain.KindOf(err) == domain.KindInternal {
					return zero, &domain.Error{Kind: domain.KindUnauthenticated, Message: "invalid token", Err: err}
				}
				return zero, err
			}
		}

		if c.prepare != nil {
			k, err := c.prepare(p)
			if err != nil {
				return zero, err
			}
			key = k
		}

		if key != "" {
			d := o.limiter.Decide(key)
			if !d.Allowed {
				return zero, &domain.Error{
					Kind:       domain.KindResourceExhausted,
					Message:    "rate limit exceeded",
					RetryAfter: d.RetryAfter,
				}
			}
		}

		// O trabalho já despachado não é cancelado quando a conexão cai.
		return c.exec(context.WithoutCancel(ctx))
	}()

	outcome := outcomeOK
	if err != nil {
		o.metrics.IncFailed()
		outcome = string(domain.KindOf(err))
	} else {
		o.metrics.IncSuccessful()
		if c.created != nil {
			c.created()
		}
	}

	o.record(ctx, entry, rldomain.StatsEvent{
		Key:       key,
		Allowed:   outcome != string(domain.KindResourceExhausted),
		Op:        string(c.op),
		Transport: md.Transport,
		Outcome:   outcome,
		At:        start,
	})

	entry = entry.WithFields(logrus.Fields{
		"identity": string(key),
		"outcome":  outcome,
		"duration": o.now().Sub(start).String(),
	})
	switch domain.KindOf(err) {
	case "":
		entry.Debug("request handled")
	case domain.KindInternal:
		entry.WithError(err).Error("request failed")
	default:
		entry.WithError(err).Info("request rejected")
	}

	if err != nil {
		return zero, err
	}
	return out, nil
}

func (o *Orchestrator) record(ctx context.Context, entry logrus.FieldLogger, ev rldomain.StatsEvent) {
	if o.stats == nil {
		return
	}
	if err := o.stats.Record(context.WithoutCancel(ctx), ev); err != nil {
		entry.WithError(err).Warn("stats record failed")
	}
}

// storeErr traduz erros de persistência para a taxonomia pública.
// Qualquer coisa fora de not-found/conflict vira internal (com a causa só no log).
func storeErr(what string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.Error{Kind: domain.KindNotFound, Message: what + " not found", Err: err}
	case errors.Is(err, domain.ErrConflict):
		return &domain.Error{Kind: domain.KindAlreadyExists, Message: what + " already exists", Err: err}
	default:
		return &domain.Error{Kind: domain.KindInternal, Message: what + ": storage failure", Err: err}
	}
}
