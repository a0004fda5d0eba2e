package main

import (
	"context"
	"crypto/tls"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"linkwithmentor/internal/certs"
	"linkwithmentor/middleware/ratelimit"
	rlapp "linkwithmentor/middleware/ratelimit/application"
	rldomain "linkwithmentor/middleware/ratelimit/domain"
	"linkwithmentor/middleware/ratelimit/infra"
	"linkwithmentor/migrations"
	"linkwithmentor/service/application"
	"linkwithmentor/service/domain"
	"linkwithmentor/service/infra/fcm"
	"linkwithmentor/service/infra/memory"
	"linkwithmentor/service/infra/postgres"
	"linkwithmentor/service/metrics"
	"linkwithmentor/transport/rpc"
	"linkwithmentor/transport/stream"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Fatal("error while loading .env file")
	}

	cfg, err := readConfig()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	generated, err := certs.Ensure(cfg.tlsCertFile, cfg.tlsKeyFile, certs.DefaultHosts)
	if err != nil {
		log.Fatalf("certificate error: %v", err)
	}
	if generated {
		log.Infof("generated self-signed certificate %s", cfg.tlsCertFile)
	}
	cert, err := certs.Load(cfg.tlsCertFile, cfg.tlsKeyFile)
	if err != nil {
		log.Fatalf("certificate error: %v", err)
	}

	store, closeStore, err := initStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer closeStore()

	notifier, logOnly, err := initNotifier(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to init notification gateway: %v", err)
	}

	verifier, err := initVerifier(cfg, log)
	if err != nil {
		log.Fatalf("invalid AUTH_TOKENS: %v", err)
	}

	statsStore, closeStats, err := initStats(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to init stats: %v", err)
	}
	defer closeStats()

	window, err := infra.NewSlidingWindow(cfg.rateMaxRequests, cfg.rateWindow,
		infra.WithWindowCleanupEvery(cfg.rateCleanupEvery))
	if err != nil {
		log.Fatalf("rate limiter error: %v", err)
	}
	window.StartJanitor(ctx)

	orch, err := application.New(application.Config{
		Store:           store,
		Notifier:        notifier,
		LogOnlyNotifier: logOnly,
		Verifier:        verifier,
		Limiter:         rlapp.Service{Limiter: window, RetryAfter: cfg.retryAfter},
		Metrics:         metrics.NewCollector(),
		Stats:           statsStore,
		Logger:          log,
	})
	if err != nil {
		log.Fatalf("orchestrator error: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.rpcAddr,
		Handler:           rpc.NewRouter(rpc.Options{Dispatcher: orch, Logger: log, Middlewares: httpMiddlewares(ctx, cfg, statsStore)}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	acceptor, err := stream.NewAcceptor(stream.Options{
		Addrs:       cfg.streamAddrs,
		TLSConfig:   &tls.Config{Certificates: []tls.Certificate{cert}},
		Dispatcher:  orch,
		Logger:      log,
		IdleTimeout: cfg.idleTimeout,
		Conns:       connLimit(cfg),
		HostGuard:   hostGuard(ctx, cfg),
		Stats:       statsStore,
	})
	if err != nil {
		log.Fatalf("stream transport error: %v", err)
	}
	if err := acceptor.Listen(); err != nil {
		log.Fatalf("stream transport error: %v", err)
	}

	log.Infof("rpc listening on %s", cfg.rpcAddr)
	log.Infof("rate: max=%d window=%s cleanupEvery=%s fallbackRetryAfter=%s", window.Max(), window.Window(), window.CleanupEvery(), cfg.retryAfter)
	log.Infof("connections: max=%d acquireTimeout=%s perHostRps=%.3f burst=%d idle=%s", cfg.connMax, cfg.connAcquireTimeout, cfg.connRateRPS, cfg.connRateBurst, cfg.idleTimeout)
	log.Infof("http guard: rps=%.3f burst=%d concurrency=%d trustXFF=%v", cfg.httpRateRPS, cfg.httpRateBurst, cfg.httpConcurrent, cfg.trustXFF)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return acceptor.Serve(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("server error: %v", err)
		closeStats()
		closeStore()
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func newLogger(cfg config) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(cfg.logLevel)
	if cfg.logFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func initStore(ctx context.Context, cfg config, log logrus.FieldLogger) (domain.Store, func(), error) {
	if cfg.databaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Connect(ctx, cfg.databaseURL, int32(cfg.dbMaxConns))
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = pool.Ping(pingCtx)
	cancel()
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	applied, err := migrations.Up(ctx, db)
	_ = db.Close()
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Infof("database ready (%d migrations applied)", applied)
	return postgres.NewStore(pool), pool.Close, nil
}

func initNotifier(ctx context.Context, cfg config, log logrus.FieldLogger) (domain.Notifier, bool, error) {
	if cfg.fcmCredentialsFile == "" {
		log.Warn("FCM_CREDENTIALS_FILE not set, push deliveries are only logged")
		return fcm.LogNotifier{Logger: log}, true, nil
	}
	client, err := fcm.NewFromFile(ctx, cfg.fcmCredentialsFile)
	if err != nil {
		return nil, false, err
	}
	log.Infof("fcm gateway ready (project=%s)", client.ProjectID())
	return client, false, nil
}

func initVerifier(cfg config, log logrus.FieldLogger) (domain.TokenVerifier, error) {
	if cfg.authTokens == "" {
		log.Warn("AUTH_TOKENS not set, accepting any bearer token")
		return application.PermissiveVerifier{}, nil
	}
	tokens, err := application.ParseTokens(cfg.authTokens)
	if err != nil {
		return nil, err
	}
	log.Infof("auth: %d static tokens", len(tokens))
	return application.NewStaticVerifier(tokens), nil
}

func initStats(ctx context.Context, cfg config, log logrus.FieldLogger) (rldomain.StatsStore, func(), error) {
	if cfg.statsRedisAddr == "" {
		log.Info("stats: in-memory")
		return infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys)), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.statsRedisAddr,
		Password: cfg.statsRedisPassword,
		DB:       cfg.statsRedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}

	stats := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.statsPrefix),
		infra.WithStatsTTL(cfg.statsTTL),
		infra.WithStatsTrackKeys(cfg.statsTrackKeys),
	)
	log.Infof("stats: redis addr=%s db=%d prefix=%s ttl=%s", cfg.statsRedisAddr, cfg.statsRedisDB, stats.Prefix(), cfg.statsTTL)
	return stats, func() { _ = rdb.Close() }, nil
}

func httpMiddlewares(ctx context.Context, cfg config, stats rldomain.StatsStore) []func(http.Handler) http.Handler {
	var mws []func(http.Handler) http.Handler
	if cfg.httpRateRPS > 0 {
		store := infra.NewStore(cfg.httpRateRPS, cfg.httpRateBurst)
		store.StartJanitor(ctx)
		mws = append(mws, ratelimit.Middleware(ratelimit.Options{
			Limiter:             store,
			Stats:               stats,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		}))
	}
	mws = append(mws, ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.httpConcurrent,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.connAcquireTimeout,
	}))
	return mws
}

func connLimit(cfg config) rlapp.ConcurrencyService {
	if cfg.connMax <= 0 {
		return rlapp.ConcurrencyService{}
	}
	return rlapp.ConcurrencyService{Pool: infra.NewChanPool(cfg.connMax), AcquireTimeout: cfg.connAcquireTimeout}
}

func hostGuard(ctx context.Context, cfg config) rlapp.Service {
	if cfg.connRateRPS <= 0 {
		return rlapp.Service{}
	}
	store := infra.NewStore(cfg.connRateRPS, cfg.connRateBurst)
	store.StartJanitor(ctx)
	return rlapp.Service{Limiter: store, RetryAfter: cfg.retryAfter}
}
