// Command lwmctl envia um único request pelo transporte de stream (QUIC)
// e imprime o payload da resposta. Serve para testes manuais.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"linkwithmentor/service/domain"
	"linkwithmentor/transport/stream"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("LWM_ADDR", "127.0.0.1:8080"), "stream address (host:port)")
	token := flag.String("token", os.Getenv("LWM_TOKEN"), "bearer token")
	op := flag.String("op", string(domain.OpPing), "operation name (e.g. CreateUser)")
	data := flag.String("data", "", "JSON payload")
	caFile := flag.String("ca", envOr("TLS_CERT_FILE", "cert.crt"), "PEM certificate trusted as server root")
	insecure := flag.Bool("insecure", false, "skip server certificate verification")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "log the response envelope")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	tlsConf, err := clientTLS(*caFile, *insecure)
	if err != nil {
		log.WithError(err).Error("tls setup failed")
		return 1
	}

	var payload json.RawMessage
	if *data != "" {
		if !json.Valid([]byte(*data)) {
			log.Error("payload is not valid JSON")
			return 2
		}
		payload = json.RawMessage(*data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := stream.Dial(ctx, *addr, tlsConf)
	if err != nil {
		log.WithError(err).Error("dial failed")
		return 1
	}
	defer client.Close()

	if *token != "" {
		client.Authorization = "Bearer " + *token
	}
	resp, err := client.RoundTrip(ctx, stream.Request{
		ID:            uuid.NewString(),
		Op:            domain.Op(*op),
		Authorization: client.Authorization,
		Payload:       payload,
	})
	if err != nil {
		log.WithError(err).Error("request failed")
		return 1
	}
	log.WithFields(logrus.Fields{
		"id":   resp.ID,
		"ok":   resp.OK,
		"code": resp.Code,
	}).Debug("response received")

	if err := resp.Err(); err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) && derr.RetryAfter > 0 {
			log.WithField("retry_after", derr.RetryAfter).Warn("rate limited")
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if len(resp.Payload) > 0 {
		fmt.Fprintln(os.Stdout, string(resp.Payload))
	}
	return 0
}

func clientTLS(caFile string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS13}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
