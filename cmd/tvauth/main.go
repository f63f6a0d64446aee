package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumeview/tvauth/internal/authflow"
	"github.com/lumeview/tvauth/internal/device"
	"github.com/lumeview/tvauth/internal/dropbox"
	"github.com/lumeview/tvauth/internal/securetoken"
)

// Version is set by the build process
var Version = "dev"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Load configuration from environment
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = cfg.BaseURL + "/api/auth/callback"
	}

	// Create Redis client and verify connectivity
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("parsing Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("connecting to Redis", zap.Error(err))
	}

	// One owned HTTP client for all outbound provider calls
	providerHTTP := &http.Client{Timeout: cfg.ProviderTimeout}

	oauthClient, err := dropbox.NewOAuthClient(dropbox.OAuthConfig{
		AppKey:      cfg.DropboxAppKey,
		AppSecret:   cfg.DropboxAppSecret,
		AuthURL:     cfg.DropboxAuthURL,
		TokenURL:    cfg.DropboxTokenURL,
		RedirectURL: cfg.RedirectURL,
		HTTPClient:  providerHTTP,
	})
	if err != nil {
		logger.Fatal("creating provider client", zap.Error(err))
	}

	// Wire up the flow and device services over Redis
	codec := securetoken.NewCodec([]byte(cfg.TokenPepper))
	devices := device.NewManager(device.NewRedisStore(redisClient), codec, oauthClient, logger)
	flows := authflow.NewService(authflow.NewRedisStore(redisClient), codec, devices, cfg.BaseURL, logger)

	srv := newServer(cfg, flows, devices, oauthClient, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Port), zap.String("version", Version))
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("starting shutdown", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutting down server", zap.Error(err))
			if err := httpServer.Close(); err != nil {
				logger.Error("closing server", zap.Error(err))
			}
		}

		if err := redisClient.Close(); err != nil {
			logger.Error("closing Redis connection", zap.Error(err))
		}
	}
}
