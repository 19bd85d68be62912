package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth"
	"github.com/gokatarajesh/career-assessment/internal/catalog"
	"github.com/gokatarajesh/career-assessment/internal/config"
	"github.com/gokatarajesh/career-assessment/internal/logging"
	"github.com/gokatarajesh/career-assessment/internal/question"
	"github.com/gokatarajesh/career-assessment/internal/quiz"
	"github.com/gokatarajesh/career-assessment/internal/result"
	"github.com/gokatarajesh/career-assessment/internal/server"
	"github.com/gokatarajesh/career-assessment/internal/wordpress"
	ws "github.com/gokatarajesh/career-assessment/pkg/http/ws"
)

// Application aggregates shared infrastructure (cache, backend client, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis *redis.Client
	http  *http.Server

	resultBroadcaster *result.Broadcaster
	sessionSweeper    *quiz.Sweeper
	bgCancels         []context.CancelFunc
}

// New bootstraps configs, logger, Redis, the WordPress client and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable at startup")
	}

	wpClient := wordpress.NewClient(wordpress.Config{
		BaseURL:       cfg.WordPress.BaseURL,
		APINamespace:  cfg.WordPress.APINamespace,
		AuthNamespace: cfg.WordPress.AuthNamespace,
		Timeout:       cfg.WordPress.RequestTimeout,
	}, &http.Client{}, logger)

	tokenStore := auth.NewRedisTokenStore(redisClient)
	authSvc := auth.NewService(wpClient, tokenStore, cfg.Security.TokenValidationTTL, logger)

	// A 401 from the backend means the token is dead there too; stop trusting it locally.
	wpClient.OnUnauthorized(func(ctx context.Context, token string) {
		if err := authSvc.Revoke(context.WithoutCancel(ctx), token); err != nil {
			logger.Warn().Err(err).Msg("failed to revoke token rejected by backend")
		}
	})

	wsHub := ws.NewHub(logger)

	resultStore := result.NewRedisStore(redisClient, result.RedisOptions{TTL: cfg.Results.CacheTTL})
	recorder := result.NewRecorder(resultStore, logger)

	manager, err := quiz.NewManager(catalog.Definitions(), quiz.Deps{
		Loader:    question.NewLoader(wpClient, logger),
		Submitter: wpClient,
		Results:   recorder,
		Observers: []quiz.Observer{quiz.HubObserver(wsHub, logger)},
		Logger:    logger,
		IdleTTL:   cfg.Sessions.IdleTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build quiz manager: %w", err)
	}

	loginURL := cfg.WordPress.LoginURL
	handlers := server.Handlers{
		Auth: auth.NewHTTPHandlers(authSvc, manager, loginURL, logger),
		Quiz: quiz.NewHTTPHandlers(manager, wpClient, loginURL, logger),
		Results: result.NewHTTPHandler(resultStore, func(test string) bool {
			_, ok := manager.Definition(test)
			return ok
		}, logger),
		WS:          quiz.NewWSHandler(manager, wsHub, ws.NewUpgrader(cfg.CORS.AllowedOrigins), logger),
		RequireAuth: auth.RequireAuth(authSvc, loginURL, logger),
	}

	apiServer := server.NewHTTPServer(cfg, logger, redisClient, handlers)

	return &Application{
		cfg:               cfg,
		logger:            logger,
		redis:             redisClient,
		http:              apiServer,
		resultBroadcaster: result.NewBroadcaster(redisClient, wsHub, resultStore.Channel(), logger),
		sessionSweeper:    quiz.NewSweeper(manager, cfg.Sessions.SweepInterval, logger),
		bgCancels:         make([]context.CancelFunc, 0, 2),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.resultBroadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.resultBroadcaster.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("result broadcaster stopped")
			}
		}()
	}

	if a.sessionSweeper != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.sessionSweeper.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("session sweeper stopped")
			}
		}()
	}
}
