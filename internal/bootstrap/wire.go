package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/holdfast/auth-service/internal/application/auth"
	"github.com/holdfast/auth-service/internal/audit"
	"github.com/holdfast/auth-service/internal/config"
	"github.com/holdfast/auth-service/internal/domain"
	"github.com/holdfast/auth-service/internal/infrastructure/db/postgres"
	"github.com/holdfast/auth-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/holdfast/auth-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/holdfast/auth-service/internal/infrastructure/oidc"
	"github.com/holdfast/auth-service/internal/infrastructure/redis"
	"github.com/holdfast/auth-service/internal/infrastructure/security"
	"github.com/holdfast/auth-service/internal/logger"
	"github.com/holdfast/auth-service/internal/provider"
	http_handlers "github.com/holdfast/auth-service/internal/transport/http/handlers"
	"github.com/holdfast/auth-service/internal/transport/http/middleware"
	"github.com/holdfast/auth-service/internal/transport/http/response"
	"github.com/holdfast/auth-service/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(dsn string, debug bool) (*sql.DB, error)

	NewRedis func(opts redis.Options) *redis.Client

	NewPublisher func(url, exchange string) (Publisher, error)

	// NewKeySource builds the provider signing-key lookup; it must stop its
	// background work when ctx is cancelled.
	NewKeySource func(ctx context.Context, cfg *config.Config) (oidc.KeySource, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

type Publisher interface {
	auth.AccountEvents
	Close() error
}

// devSeeds are linked to fixed provider subjects so a local client can log in
// as an admin without a real provider account.
var devSeeds = []memory.DevAccount{
	{Nickname: "devadmin", Role: string(domain.RoleAdmin), Provider: string(provider.Kakao), ProviderSubject: "dev-admin"},
	{Nickname: "devsetter", Role: string(domain.RoleSetter), Provider: string(provider.Kakao), ProviderSubject: "dev-setter"},
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	checks := map[string]http_handlers.Check{}

	// 1) account + stat stores
	var (
		accounts auth.AccountStore
		stats    auth.StatStore
	)
	if cfg.DBAddr != "" {
		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return fail(err)
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			return fail(fmt.Errorf("bootstrap: ensure schema: %w", err))
		}
		accounts = postgres.NewAccountRepo(db)
		stats = postgres.NewStatRepo(db)
		checks["postgres"] = db.PingContext
		logger.Logger.Info().Msg("postgres account store ready")
	} else {
		memAccounts := memory.NewAccountStore()
		memStats := memory.NewStatStore()
		if cfg.IsDev() {
			memory.SeedAccounts(context.Background(), memAccounts, memStats, devSeeds)
		}
		accounts, stats = memAccounts, memStats
		logger.Logger.Warn().Msg("DB_ADDR not set; using in-memory account store")
	}

	// 2) redis (best-effort in dev)
	var (
		guard  oidc.NonceGuard
		ledger auth.RefreshLedger
	)
	var redisCli *redis.Client
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := c.Ping(context.Background()); err != nil {
			_ = c.Close()
			if !cfg.IsDev() {
				return fail(fmt.Errorf("bootstrap: redis: %w", err))
			}
			logger.Logger.Warn().Err(err).Msg("redis unavailable; using in-memory replay guard and ledger")
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	if redisCli != nil {
		guard = redis.NewNonceStore(redisCli, cfg.NonceTTL)
		ledger = redis.NewRefreshBlacklist(redisCli, cfg.RefreshLedgerTTL)
		checks["redis"] = redisCli.Ping
	} else {
		guard = memory.NewReplayGuard(memory.DefaultNonceCapacity, cfg.NonceTTL)
		ledger = memory.NewRefreshLedger(memory.DefaultLedgerCapacity, cfg.RefreshLedgerTTL)
	}

	// 3) publisher
	var events auth.AccountEvents = memory.NewNoopPublisher()
	if cfg.RabbitURL != "" {
		pub, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		switch {
		case err == nil:
			events = pub
			cleanupFns = append(cleanupFns, func() { _ = pub.Close() })
		case cfg.IsDev():
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
		default:
			return fail(err)
		}
	}

	// 4) identity providers
	registry, err := provider.NewRegistry(cfg.Providers...)
	if err != nil {
		return fail(err)
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	cleanupFns = append(cleanupFns, cancelRoot)

	keys, err := deps.NewKeySource(rootCtx, cfg)
	if err != nil {
		return fail(err)
	}

	logger.Logger.Info().Strs("providers", registry.IDs()).Msg("identity providers configured")

	// 5) security + service
	issuer := security.NewSessionIssuer(security.SessionConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	verifier := oidc.NewVerifier(registry, keys, guard)

	authSvc := auth.NewService(
		verifier,
		accounts,
		stats,
		issuer,
		ledger,
		auth.Config{
			AccessTTL:        cfg.AccessTokenTTL,
			NicknameAttempts: cfg.NicknameAttempts,
		},
	).
		WithEvents(events).
		WithAudit(audit.New(logger.Logger).Record)

	// 6) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc)
	healthH := http_handlers.NewHealthHandler(checks)

	mux, err := deps.NewRouter(router.Deps{
		Health:         healthH,
		Auth:           authH,
		AuthenticateMW: middleware.Authenticate(issuer),
		RequireAuthMW:  middleware.RequireAuth(response.WriteError),
		AdminMW:        middleware.RequireAtLeast(string(domain.RoleAdmin), response.WriteError),
	})
	if err != nil {
		return fail(err)
	}

	// 7) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange)
		},
		NewKeySource: func(ctx context.Context, cfg *config.Config) (oidc.KeySource, error) {
			return oidc.NewJWKSCache(ctx, oidc.JWKSOptions{
				HTTPClient:      &http.Client{Timeout: cfg.JWKSHTTPTimeout},
				RegisterTimeout: cfg.JWKSHTTPTimeout,
			})
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
