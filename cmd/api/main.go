package main

import (
	"context"
	"log"
	"time"

	"github.com/craftlink/marketplace-backend/config"
	"github.com/craftlink/marketplace-backend/internal/bootstrap"
	"github.com/craftlink/marketplace-backend/internal/gateway"
	"github.com/craftlink/marketplace-backend/internal/ranking"
	"github.com/craftlink/marketplace-backend/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := bootstrap.OpenDB(ctx, cfg.DB, bootstrap.DBOptions{})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	var ranker *ranking.Client
	if cfg.Ranking.Enabled {
		ranker = ranking.New(cfg.Ranking.BaseURL, cfg.Ranking.Timeout)
	}

	wired := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "marketplace-backend",
		Version:     cfg.App.Version,
		DB:          db,
		Redis:       rdb,
		Gateway:     gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout),
		Ranking:     ranker,
		UseRanking:  cfg.Ranking.Enabled,
		RetryPolicy: retry.Policy{MaxAttempts: cfg.Matcher.MaxAttempts, Delay: cfg.Matcher.RetryDelay},
	})

	log.Printf("listening on :%s", cfg.Server.Port)
	if err := wired.Router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
