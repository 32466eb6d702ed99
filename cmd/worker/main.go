package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftlink/marketplace-backend/config"
	"github.com/craftlink/marketplace-backend/internal/agreements/repository"
	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/bootstrap"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/gateway"
	cronjob "github.com/craftlink/marketplace-backend/internal/payouts/cron"
	payoutrepo "github.com/craftlink/marketplace-backend/internal/payouts/repository"
	payoutservice "github.com/craftlink/marketplace-backend/internal/payouts/service"
	projrepo "github.com/craftlink/marketplace-backend/internal/projects/repository"
	wrepo "github.com/craftlink/marketplace-backend/internal/workers/repository"
)

// The worker binary runs the payout sweeper on its own schedule, retrying
// transfers that failed or were deferred when the balance payment confirmed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

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

	engine := payoutservice.NewEngine(
		payoutrepo.NewPayoutRepository(db),
		projrepo.NewProjectRepository(db),
		repository.NewAgreementRepository(db),
		wrepo.NewWorkerRepository(db),
		gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout),
		audit.NewRepository(db),
		events.NewPublisher(rdb),
	)

	sched := cronjob.NewScheduler(engine)
	sched.Start()
	defer sched.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("payout sweeper shutting down")
}
