package main

import (
	"context"
	"fmt"
	"log"

	"exercises-api/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	codec, err := core.NewTokenCodec(cfg.JWTSecret, cfg.TokenLifetime)
	if err != nil {
		log.Fatalf("invalid token configuration: %v", err)
	}

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

	userRepo := core.NewPgUserRepository(db)
	authService := core.NewRepositoryAuthService(userRepo, codec)
	stats := core.NewStatsService(redisClient)

	if err := core.BootstrapAdmin(ctx, userRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	if cfg.CatalogSeedPath != "" {
		groupRepo := core.NewPgMuscleGroupRepository(db)
		exerciseRepo := core.NewPgExerciseRepository(db)
		if err := core.SeedCatalog(ctx, cfg.CatalogSeedPath, groupRepo, exerciseRepo); err != nil {
			log.Fatalf("catalog seed failed: %v", err)
		}
	}

	router := core.NewRouter(cfg, authService, codec, db, stats)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
