package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/sourcehub/internal/auth"
	"github.com/MrSnakeDoc/sourcehub/internal/cache"
	"github.com/MrSnakeDoc/sourcehub/internal/config"
	"github.com/MrSnakeDoc/sourcehub/internal/credentials"
	"github.com/MrSnakeDoc/sourcehub/internal/httpclient"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver"
	"github.com/MrSnakeDoc/sourcehub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
	"github.com/MrSnakeDoc/sourcehub/internal/manager"
	"github.com/MrSnakeDoc/sourcehub/internal/redis"
	"github.com/MrSnakeDoc/sourcehub/internal/scheduler"
	"github.com/MrSnakeDoc/sourcehub/internal/sources"
	"github.com/MrSnakeDoc/sourcehub/internal/sources/legacy"
	redisstore "github.com/MrSnakeDoc/sourcehub/internal/store/redis"
	"github.com/MrSnakeDoc/sourcehub/internal/version"
)

// Core is the source registry with everything it needs, without the HTTP surface.
// The one-shot CLI commands use it directly.
type Core struct {
	Manager     *manager.Manager
	Cache       *cache.Cache
	RedisClient *goredis.Client
	logger      logger.Logger
}

// NewCore connects to Redis, wires the registry and initializes it.
func NewCore(ctx context.Context, cfg *config.Config, log logger.Logger) (*Core, error) {
	redisClient, err := redis.Connect(ctx, redis.OptionsFromConfig(cfg), log)
	if err != nil {
		return nil, err
	}

	creds, err := credentialStore(cfg, redisClient)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	store := redisstore.NewStore(redisClient)
	client := httpclient.New(nil)
	authAdapter := auth.NewAdapter(creds, auth.StaticPlatform{Secret: cfg.LocalSecret, BaseURL: cfg.LocalURL}, client, log)
	resourceCache := cache.New(cache.Options{TTL: cfg.CacheTTL, MaxEntries: cfg.CacheMaxEntries, Logger: log})

	m, err := manager.New(manager.Options{
		Store:          store,
		Credentials:    creds,
		Auth:           authAdapter,
		Cache:          resourceCache,
		Logger:         log,
		AdapterFactory: sources.NewFactory(sources.Deps{Auth: authAdapter, Client: client, Logger: log}),
		Legacy:         legacy.MultiReader{store, legacy.NewLoader(cfg.LegacyFile)},
		Strict:         cfg.Strict,
	})
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create source manager: %w", err)
	}
	if err := m.Initialize(ctx); err != nil {
		m.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to initialize source manager: %w", err)
	}

	return &Core{Manager: m, Cache: resourceCache, RedisClient: redisClient, logger: log}, nil
}

func credentialStore(cfg *config.Config, client *goredis.Client) (credentials.Store, error) {
	switch cfg.CredentialBackend {
	case config.CredentialBackendRedis:
		return credentials.NewRedisStore(client), nil
	case config.CredentialBackendKeyring:
		return credentials.NewKeyringStore(cfg.KeyringService), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}

// Close stops background work and closes Redis.
func (c *Core) Close() {
	c.Manager.Close()
	if err := c.RedisClient.Close(); err != nil {
		c.logger.Warn("failed to close redis", logger.Error(err))
	} else {
		c.logger.Info("✅ Redis closed cleanly")
	}
}

type App struct {
	cfg    *config.Config
	logger logger.Logger
	core   *Core
	server *httpserver.Server
	poller *scheduler.HealthPoller
}

func New(cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// fail fast if Redis is unavailable
	core, err := NewCore(context.Background(), cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	var (
		poller      *scheduler.HealthPoller
		pollTrigger chan struct{}
	)
	if cfg.HealthPollInterval > 0 {
		pollTrigger = make(chan struct{}, 1)
		poller = scheduler.NewHealthPoller(core.Manager, loggerClient, cfg.HealthPollInterval, pollTrigger)
	} else {
		loggerClient.Info("health polling disabled")
	}

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		TestRateBurst:     cfg.TestRateBurst,
		TestRatePerMinute: cfg.TestRatePerMinute,
		Manager:           core.Manager,
		Cache:             core.Cache,
		RedisClient:       core.RedisClient,
		HealthPollTrigger: pollTrigger,
	}

	return &App{
		cfg:    cfg,
		logger: loggerClient,
		core:   core,
		server: httpserver.New(cfg.ListenPort, loggerClient, d),
		poller: poller,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting sourcehub v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("sourcehub %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.poller != nil {
		a.poller.Start(ctx)
		a.logger.Info("health poller started",
			logger.Duration("interval", a.cfg.HealthPollInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.poller != nil {
		a.poller.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.core.Close()
	if runErr != nil {
		return runErr
	}

	a.logger.Info("✅ sourcehub stopped cleanly")
	return nil
}
