package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"derisk/internal/asset"
	assethandler "derisk/internal/asset/handler"
	"derisk/internal/attestation"
	"derisk/internal/authority"
	"derisk/internal/claimtoken"
	claimtokenhandler "derisk/internal/claimtoken/handler"
	"derisk/internal/platform/accesstoken"
	"derisk/internal/platform/config"
	"derisk/internal/platform/idempotency"
	"derisk/internal/platform/kafka"
	"derisk/internal/platform/metrics"
	"derisk/internal/platform/postgres"
	"derisk/internal/platform/redis"
	policyhandler "derisk/internal/policy/handler"
	policymetrics "derisk/internal/policy/metrics"
	policyservice "derisk/internal/policy/service"
	policystore "derisk/internal/policy/store"
	registryhandler "derisk/internal/registry/handler"
	registrymetrics "derisk/internal/registry/metrics"
	registryservice "derisk/internal/registry/service"
	registrystore "derisk/internal/registry/store"
	httptransport "derisk/internal/transport/http"
	vaulthandler "derisk/internal/vault/handler"
	vaultmetrics "derisk/internal/vault/metrics"
	vaultservice "derisk/internal/vault/service"
	vaultstore "derisk/internal/vault/store"
	"derisk/pkg/domain"
	"derisk/pkg/platform/audit"
	"derisk/pkg/platform/audit/publisher"
	auditmemory "derisk/pkg/platform/audit/store/memory"
	auditpostgres "derisk/pkg/platform/audit/store/postgres"
	"derisk/pkg/platform/audit/worker"
	"derisk/pkg/platform/tx"
)

const tokenLeeway = 30 * time.Second

// app is the assembled process: the router plus whatever must run beside it
// and be released after it.
type app struct {
	router     http.Handler
	background []func(ctx context.Context) error
	closers    []func()

	registry *registryservice.Service
	vault    *vaultservice.Service
	policy   *policyservice.Service
	assets   *asset.Service
	claims   *claimtoken.Service
	tokens   *accesstoken.Service
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type stores struct {
	registry registryservice.Store
	vault    vaultservice.Store
	policy   policyservice.Store
	assets   asset.Store
	claims   claimtoken.Store
	audit    audit.Store
}

func memoryStores() stores {
	return stores{
		registry: registrystore.NewInMemoryStore(),
		vault:    vaultstore.NewInMemoryStore(),
		policy:   policystore.NewInMemoryStore(),
		assets:   asset.NewInMemoryStore(),
		claims:   claimtoken.NewInMemoryStore(),
		audit:    auditmemory.NewInMemoryStore(),
	}
}

func postgresStores(db *sql.DB, outbox *auditpostgres.Store) stores {
	return stores{
		registry: registrystore.NewPostgresStore(db),
		vault:    vaultstore.NewPostgresStore(db),
		policy:   policystore.NewPostgresStore(db),
		assets:   asset.NewPostgresStore(db),
		claims:   claimtoken.NewPostgresStore(db),
		audit:    outbox,
	}
}

type appOption func(*appOptions)

type appOptions struct {
	clock func() time.Time
}

// withClock replaces the wall clock requests are stamped with.
func withClock(now func() time.Time) appOption {
	return func(o *appOptions) { o.clock = now }
}

// buildApp wires every component for cfg. An empty DATABASE_URL runs the
// whole ledger in memory; an empty REDIS_URL keeps idempotency keys in memory.
func buildApp(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...appOption) (_ *app, err error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	health := map[string]httptransport.HealthCheck{}

	guardOpts := []tx.GuardOption{tx.WithTimeout(cfg.TxTimeout)}
	st := memoryStores()
	var outbox *auditpostgres.Store
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		guardOpts = append(guardOpts, tx.WithDB(db))
		outbox = auditpostgres.New(db)
		st = postgresStores(db, outbox)
		health["postgres"] = db.PingContext
		logger.InfoContext(ctx, "ledger persisted in postgres")
	}
	guard := func(name string) *tx.Guard { return tx.NewGuard(name, guardOpts...) }

	auditPublisher := publisher.NewPublisher(st.audit, publisher.WithLogger(logger))
	a.closers = append(a.closers, auditPublisher.Close)

	ledger := cfg.Ledger
	adminAccount, err := domain.ParseAccountID(ledger.AdminAccount)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_ACCOUNT: %w", err)
	}
	engineAccount, err := domain.ParseAccountID(ledger.EngineAccount)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_ACCOUNT: %w", err)
	}
	vaultAccount, err := domain.ParseAccountID(ledger.VaultAccount)
	if err != nil {
		return nil, fmt.Errorf("VAULT_ACCOUNT: %w", err)
	}
	poolAsset, err := domain.ParseAssetID(ledger.PoolAsset)
	if err != nil {
		return nil, fmt.Errorf("POOL_ASSET: %w", err)
	}

	roles := authority.NewTable()
	roles.Grant(authority.RoleAdmin, adminAccount)

	verifier, err := selectVerifier(cfg.Verifier)
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		logger.WarnContext(ctx, "no attestation verifier configured; proof-gated updates are rejected until one is set")
	}

	a.assets = asset.New(st.assets, roles,
		asset.WithLogger(logger),
		asset.WithAuditPublisher(auditPublisher),
		asset.WithGuard(guard("asset")),
	)
	a.claims = claimtoken.New(st.claims, roles,
		claimtoken.WithLogger(logger),
		claimtoken.WithGuard(guard("claimtoken")),
	)
	a.registry = registryservice.New(st.registry, roles,
		registryservice.WithLogger(logger),
		registryservice.WithAuditPublisher(auditPublisher),
		registryservice.WithMetrics(registrymetrics.New(reg)),
		registryservice.WithGuard(guard("registry")),
		registryservice.WithVerifier(verifier),
	)
	a.vault = vaultservice.New(st.vault, a.assets, roles,
		vaultservice.Config{Account: vaultAccount, PoolAsset: poolAsset},
		vaultservice.WithLogger(logger),
		vaultservice.WithAuditPublisher(auditPublisher),
		vaultservice.WithMetrics(vaultmetrics.New(reg)),
		vaultservice.WithGuard(guard("vault")),
	)
	if err := bindEngine(ctx, st.vault, a.vault, adminAccount, engineAccount); err != nil {
		return nil, err
	}
	a.policy = policyservice.New(st.policy, a.registry, a.vault, a.assets, a.claims,
		policyservice.Config{Account: engineAccount, MinPremium: ledger.MinPremium},
		policyservice.WithLogger(logger),
		policyservice.WithAuditPublisher(auditPublisher),
		policyservice.WithMetrics(policymetrics.New(reg)),
		policyservice.WithGuard(guard("engine")),
	)

	idem, err := idempotencyStore(ctx, cfg.Redis, a, health)
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(cfg.Kafka, logger)
	if err != nil {
		return nil, err
	}
	if producer != nil {
		a.closers = append(a.closers, producer.Close)
		health["kafka"] = producer.Health
		if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
			logger.WarnContext(ctx, "could not ensure settlement topic", "error", err)
		}
		if outbox != nil {
			relay := worker.NewWorker(outbox, producer, logger)
			a.background = append(a.background, relay.Run)
		} else {
			logger.WarnContext(ctx, "kafka configured without postgres; settlement events stay local")
		}
	}

	a.tokens = accesstoken.NewService(cfg.JWTSigningKey, accesstoken.Issuer, accesstoken.Audience, accesstoken.WithLeeway(tokenLeeway))
	a.router = httptransport.NewRouter(httptransport.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         logger,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		JWT:            a.tokens,
		AdminTokenHash: cfg.AdminTokenHash,
		AdminAccount:   adminAccount,
		Idempotency:    idem,
		IdempotencyTTL: config.IdempotencyTTL,
		Handlers: []httptransport.PublicRoutes{
			registryhandler.New(a.registry, logger),
			vaulthandler.New(a.vault, logger),
			policyhandler.New(a.policy, logger),
			assethandler.New(a.assets, logger),
			claimtokenhandler.New(a.claims, logger),
		},
		Health: health,
		Events: st.audit,
		Clock:  o.clock,
	})
	return a, nil
}

// bindEngine binds the configured engine on first start. A persisted binding
// wins, so an operator rebinding through the admin API survives restarts.
func bindEngine(ctx context.Context, store vaultservice.Store, vault *vaultservice.Service, admin, engine domain.AccountID) error {
	bound, err := store.Engine(ctx)
	if err != nil {
		return fmt.Errorf("load vault engine: %w", err)
	}
	if bound.IsZero() {
		return vault.SetEngine(ctx, authority.As(admin), engine)
	}
	return vault.Restore(ctx)
}

func idempotencyStore(ctx context.Context, cfg config.RedisConfig, a *app, health map[string]httptransport.HealthCheck) (idempotency.Store, error) {
	client, err := redis.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return idempotency.NewInMemoryStore(), nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	health["redis"] = client.Health
	return idempotency.NewRedisStore(client), nil
}

func selectVerifier(cfg config.VerifierConfig) (attestation.Verifier, error) {
	switch {
	case cfg.URL != "":
		return attestation.NewHTTPVerifier(cfg.URL), nil
	case cfg.Ed25519Key != "":
		key, err := attestation.ParseEd25519PublicKey(cfg.Ed25519Key)
		if err != nil {
			return nil, fmt.Errorf("VERIFIER_ED25519_KEY: %w", err)
		}
		return attestation.NewEd25519Verifier(key), nil
	default:
		return nil, nil
	}
}
