// Command tokens-api runs the account/device/token gateway.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/jerome-fosse/tokens-api/internal/api/httpserver"
	app "github.com/jerome-fosse/tokens-api/internal/app"
	"github.com/jerome-fosse/tokens-api/internal/app/httpapi"
	"github.com/jerome-fosse/tokens-api/internal/app/storage/mongodb"
	redisstore "github.com/jerome-fosse/tokens-api/internal/app/storage/redis"
	"github.com/jerome-fosse/tokens-api/internal/auth"
	"github.com/jerome-fosse/tokens-api/internal/config"
	"github.com/jerome-fosse/tokens-api/internal/middleware"
	"github.com/jerome-fosse/tokens-api/internal/partner"
	"github.com/jerome-fosse/tokens-api/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Fatal("load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stdout,
	})

	pem, err := cfg.Auth.PublicKey()
	if err != nil {
		log.WithError(err).Fatal("load id token public key")
	}
	verifier, err := auth.NewVerifier(pem)
	if err != nil {
		log.WithError(err).Fatal("parse id token public key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, disconnect, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout.Std())
	if err != nil {
		log.WithError(err).Fatal("connect to mongodb")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := disconnect(shutdownCtx); err != nil {
			log.WithError(err).Warn("disconnect mongodb")
		}
	}()

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable at startup; profile cache degraded")
	}

	partnerClient := partner.NewHTTPClient(partner.Config{
		AccountAPIURL:     cfg.Partner.AccountAPIURL,
		OpenAMAPIURL:      cfg.Partner.OpenAMAPIURL,
		User:              cfg.Partner.User,
		Password:          cfg.Partner.Password,
		Timeout:           cfg.Partner.Timeout.Std(),
		CallbackURL:       cfg.Partner.CallbackURL,
		CallbackMobileURL: cfg.Partner.CallbackMobileURL,
		SendNotifEmail:    cfg.Partner.SendNotifEmail,
	}, log.WithField("component", "partner"))

	application := app.New(verifier, partnerClient, app.Stores{
		Accounts: mongodb.New(db, cfg.Mongo.Timeout.Std(), log.WithField("component", "mongodb")),
		Profiles: redisstore.New(redisClient, cfg.Redis.ProfileTTL.Std(), log.WithField("component", "profile-cache")),
	}, app.Options{
		AccessTokenValidation: cfg.Features.AccessTokenValidation,
	}, log)

	router := httpapi.NewHandler(application, log.WithField("component", "httpapi"))
	router.Use(
		middleware.Logging(log.WithField("component", "http")),
		middleware.Metrics(),
		middleware.RequireIDToken("POST /token/maas", "GET /connect/accounts", "GET /accounts"),
		middleware.AccessTokenValidation(partnerClient, cfg.Features.AccessTokenValidationOnReads,
			log.WithField("component", "tokenfilter"), "GET /connect/accounts"),
	)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
		limiter.StartCleanup(time.Minute, ctx.Done())
		router.Use(limiter.Handler)
	}

	server := httpserver.New(httpserver.Config{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("http server failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
