package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type config struct {
	host        string
	port        int
	rpcAddr     string
	streamAddrs []string

	rateMaxRequests  int
	rateWindow       time.Duration
	rateCleanupEvery time.Duration
	retryAfter       time.Duration

	databaseURL string
	dbMaxConns  int

	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsTrackKeys     bool

	fcmCredentialsFile string
	authTokens         string

	tlsCertFile string
	tlsKeyFile  string

	connMax            int
	connAcquireTimeout time.Duration
	connRateRPS        float64
	connRateBurst      int
	idleTimeout        time.Duration

	httpRateRPS    float64
	httpRateBurst  int
	httpConcurrent int
	trustXFF       bool
	addHeaders     bool

	logLevel  logrus.Level
	logFormat string
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.host = getenvDefault("HOST", "127.0.0.1")
	cfg.port = getenvIntDefault("PORT", 8080)
	cfg.rpcAddr = getenvDefault("RPC_ADDR", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port+1)))
	cfg.streamAddrs = splitList(getenvDefault("STREAM_ADDRS", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))))

	cfg.rateMaxRequests = getenvIntDefault("RATE_MAX_REQUESTS", 100)
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", 60*time.Second)
	cfg.rateCleanupEvery = getenvDurationDefault("RATE_CLEANUP_EVERY", time.Minute)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)

	cfg.databaseURL = os.Getenv("DATABASE_URL")
	cfg.dbMaxConns = getenvIntDefault("DB_MAX_CONNS", 0)

	cfg.statsRedisAddr = getenvDefault("REDIS_STATS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("REDIS_STATS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("REDIS_STATS_DB", 0)
	cfg.statsPrefix = getenvDefault("REDIS_STATS_PREFIX", "lwm:stats")
	cfg.statsTTL = getenvDurationDefault("REDIS_STATS_TTL", 24*time.Hour)
	cfg.statsTrackKeys = getenvBoolDefault("REDIS_STATS_TRACK_KEYS", false)

	cfg.fcmCredentialsFile = os.Getenv("FCM_CREDENTIALS_FILE")
	cfg.authTokens = os.Getenv("AUTH_TOKENS")

	cfg.tlsCertFile = getenvDefault("TLS_CERT_FILE", "cert.crt")
	cfg.tlsKeyFile = getenvDefault("TLS_KEY_FILE", "cert.key")

	cfg.connMax = getenvIntDefault("CONN_MAX", 1000)
	cfg.connAcquireTimeout = getenvDurationDefault("CONN_ACQUIRE_TIMEOUT", 2*time.Second)
	cfg.connRateRPS = getenvFloatDefault("CONN_RATE_RPS", 20)
	cfg.connRateBurst = getenvIntDefault("CONN_RATE_BURST", 40)
	cfg.idleTimeout = getenvDurationDefault("IDLE_TIMEOUT", 30*time.Second)

	cfg.httpRateRPS = getenvFloatDefault("HTTP_RATE_RPS", 50)
	// Mesma ressalva do gateway: com RPS < 1 o burst padrão mascara o limite.
	if burst, ok := getenvInt("HTTP_RATE_BURST"); ok {
		cfg.httpRateBurst = burst
	} else {
		cfg.httpRateBurst = 100
		if getenvIsSet("HTTP_RATE_RPS") && cfg.httpRateRPS > 0 && cfg.httpRateRPS < 1 {
			cfg.httpRateBurst = 1
		}
	}
	cfg.httpConcurrent = getenvIntDefault("HTTP_CONCURRENCY_MAX", 200)
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	level, err := logrus.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.logLevel = level
	cfg.logFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))

	if cfg.port <= 0 || cfg.port > 65534 {
		return config{}, errors.New("PORT must be in 1..65534")
	}
	if len(cfg.streamAddrs) == 0 {
		return config{}, errors.New("STREAM_ADDRS must list at least one address")
	}
	if cfg.rateMaxRequests <= 0 {
		return config{}, errors.New("RATE_MAX_REQUESTS must be > 0")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.connMax < 0 {
		return config{}, errors.New("CONN_MAX must be >= 0")
	}
	if cfg.connRateRPS < 0 || cfg.httpRateRPS < 0 {
		return config{}, errors.New("CONN_RATE_RPS and HTTP_RATE_RPS must be >= 0")
	}
	if cfg.connRateRPS > 0 && cfg.connRateBurst <= 0 {
		return config{}, errors.New("CONN_RATE_BURST must be > 0")
	}
	if cfg.httpRateRPS > 0 && cfg.httpRateBurst <= 0 {
		return config{}, errors.New("HTTP_RATE_BURST must be > 0")
	}
	if cfg.dbMaxConns < 0 {
		return config{}, errors.New("DB_MAX_CONNS must be >= 0")
	}
	if cfg.logFormat != "text" && cfg.logFormat != "json" {
		return config{}, errors.New(`LOG_FORMAT must be "text" or "json"`)
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
