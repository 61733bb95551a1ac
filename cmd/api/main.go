package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"sasto-kinmel-api/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	repos := core.NewPgRepositories(db)

	if err := core.BootstrapAdmin(ctx, repos.Users, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	codec := core.NewTokenCodec(cfg.JWTSecret)
	authService := core.NewRepositoryAuthService(repos.Users)
	issuer := core.NewTokenIssuer(codec, cfg.AccessTokenTTL())
	verifier := core.NewTokenVerifier(codec, repos.Users)
	limiter := core.NewLoginLimiter(redisClient, cfg.LoginRateLimit, time.Duration(cfg.LoginRateWindowSeconds)*time.Second)

	router := core.NewRouter(cfg, authService, issuer, verifier, repos, limiter)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
