package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getsentry/relay-go/envelope"
	"github.com/getsentry/relay-go/infrastructure/config"
	icrypto "github.com/getsentry/relay-go/infrastructure/crypto"
	"github.com/getsentry/relay-go/infrastructure/logging"
	"github.com/getsentry/relay-go/infrastructure/metrics"
	"github.com/getsentry/relay-go/infrastructure/middleware"
	"github.com/getsentry/relay-go/outcome"
	"github.com/getsentry/relay-go/ratelimit"
	"github.com/getsentry/relay-go/store"
	"github.com/getsentry/relay-go/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewFromEnv("relay")
	var m *metrics.Metrics
	if metrics.Enabled() {
		m = metrics.Init("relay")
	}

	identity, err := relayIdentity(cfg.RelayID)
	if err != nil {
		log.Fatal(context.Background(), "deriving relay identity", err)
	}

	aorta, err := upstream.NewAortaClient(cfg.UpstreamURL, cfg.RelayID, identity)
	if err != nil {
		log.Fatal(context.Background(), "constructing aorta client", err)
	}

	projectCache := upstream.NewProjectCache(upstream.Config{
		TTL:                  cfg.SnapshotExpiry,
		MissTTL:              cfg.MissExpiry,
		GracePeriod:          cfg.ProjectGracePeriod,
		BatchInterval:        cfg.BatchInterval,
		BatchSize:            cfg.BatchSize,
		HTTPMaxRetryInterval: cfg.HTTPMaxRetryInterval,
	}, aorta, log)

	relayCache := upstream.NewRelayCache(upstream.Config{
		TTL:                  cfg.RelayExpiry,
		MissTTL:              cfg.MissExpiry,
		BatchInterval:        cfg.BatchInterval,
		BatchSize:            cfg.BatchSize,
		HTTPMaxRetryInterval: cfg.HTTPMaxRetryInterval,
	}, aorta, log)

	evictor, err := upstream.NewEvictor(cfg.EvictionCron, projectCache, relayCache, log)
	if err != nil {
		log.Fatal(context.Background(), "scheduling eviction sweep", err)
	}
	evictor.Start()
	defer evictor.Stop()

	checker := newQuotaChecker(cfg, log)

	pipeline := &Pipeline{
		Projects: projectCache,
		Checker:  checker,
		Outcomes: outcome.NoopProducer,
		Forward:  ForwarderFunc(logForward(log)),
		Metrics:  m,
		Log:      log,
	}

	ingest := buildIngestRouter(cfg, m, log, pipeline)
	admin := NewAdminRouter(projectCache, relayCache, log)

	ingestServer := &http.Server{
		Addr:              cfg.IngestAddr,
		Handler:           ingest,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	adminServer := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           admin,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(context.Background(), "relay: ingestion listening on "+cfg.IngestAddr, nil)
		if err := ingestServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(context.Background(), "ingestion server error", err)
		}
	}()
	go func() {
		log.Info(context.Background(), "relay: admin listening on "+cfg.AdminAddr, nil)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(context.Background(), "admin server error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info(context.Background(), "relay: shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = ingestServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
}

// buildIngestRouter wires the chi envelope-ingestion edge: recovery ->
// logging -> body-limit -> CORS -> metrics -> IP throttle -> the envelope
// handler, grounded on the teacher's cmd/gateway middleware chain order
// (recovery/logging first, CORS and rate limiting closest to the handler).
func buildIngestRouter(cfg *config.Config, m *metrics.Metrics, log *logging.Logger, pipeline *Pipeline) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecovery(log).Handler)
	r.Use(middleware.Logging(log))
	r.Use(middleware.NewBodyLimit(cfg.MaxEnvelopeSize).Handler)
	r.Use(middleware.NewCORS(nil).Handler)
	if m != nil {
		r.Use(middleware.Metrics("relay", m))
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Use(middleware.NewIPLimiter(50, 100, log).Handler)

	r.Get("/health", HealthHandler())
	r.Post("/api/{projectID}/envelope/", pipeline.IngestHandler())
	return r
}

// logForward is the default Forwarder: it logs the accepted envelope
// instead of producing to Kafka, since no wire-protocol client for the
// upstream store/processing bus is owned by this module (spec.md
// Non-goals).
func logForward(log *logging.Logger) func(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error {
	return func(ctx context.Context, scoping outcome.Scoping, env *envelope.Envelope) error {
		if log != nil {
			log.Info(ctx, fmt.Sprintf("relay: forwarding envelope project=%s items=%d", scoping.ProjectID, len(env.Items)), nil)
		}
		return nil
	}
}

// relayIdentity derives this relay's Ed25519 signing identity from
// RELAY_MASTER_KEY (hex-encoded). In development, a random key is generated
// so the binary can still start without one configured.
func relayIdentity(relayID string) (*icrypto.RelayIdentity, error) {
	raw := strings.TrimSpace(os.Getenv("RELAY_MASTER_KEY"))
	var masterKey []byte
	if raw != "" {
		key, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("RELAY_MASTER_KEY must be hex-encoded: %w", err)
		}
		masterKey = key
	} else {
		masterKey = make([]byte, 32)
		if _, err := rand.Read(masterKey); err != nil {
			return nil, fmt.Errorf("generating development master key: %w", err)
		}
	}
	return icrypto.DeriveRelayIdentity(masterKey, relayID)
}

// newQuotaChecker builds the ratelimit.Checker backend: Redis-backed when
// RELAY_REDIS_ADDR is configured (shared across instances), otherwise an
// in-process token-bucket store.
func newQuotaChecker(cfg *config.Config, log *logging.Logger) ratelimit.Checker {
	rules := defaultQuotaRules()
	if cfg.RedisAddr == "" {
		return store.NewMemQuota(rules)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Info(context.Background(), "relay: quota backend is redis at "+cfg.RedisAddr, nil)
	return store.NewRedisQuota(client, "relay:quota", rules)
}

// defaultQuotaRules is a conservative per-category budget; production
// deployments are expected to source these from the same project-state
// response that carries PiiConfig rather than a fixed table, but no such
// quota-config wire shape is part of spec.md's data model.
func defaultQuotaRules() []store.QuotaRule {
	return []store.QuotaRule{
		{Category: envelope.CategoryError, Limit: 1000, Window: time.Minute, RetryAfter: 60, Reason: "project_quota"},
		{Category: envelope.CategoryTransaction, Limit: 1000, Window: time.Minute, RetryAfter: 60, Reason: "project_quota"},
		{Category: envelope.CategorySecurity, Limit: 1000, Window: time.Minute, RetryAfter: 60, Reason: "project_quota"},
		{Category: envelope.CategoryAttachment, Limit: 100 * 1024 * 1024, Window: time.Minute, RetryAfter: 60, Reason: "project_quota"},
		{Category: envelope.CategorySession, Limit: 5000, Window: time.Minute, RetryAfter: 60, Reason: "project_quota"},
	}
}
