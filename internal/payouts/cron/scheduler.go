package cronjob

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftlink/marketplace-backend/internal/payouts/service"
)

const sweepBatchSize = 50

type Scheduler struct {
	engine *service.Engine
	cron   *cron.Cron
}

func NewScheduler(engine *service.Engine) *Scheduler {
	return &Scheduler{engine: engine}
}

// Start schedules the payout sweep every 15 minutes. The sweep retries
// transfers that failed or were deferred at confirmation time.
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc("0 */15 * * * *", func() {
		s.sweep()
	})
	if err != nil {
		log.Printf("Failed to create payout sweep job: %v", err)
		return
	}

	log.Println("Payout sweeper started (every 15 minutes)")
	c.Start()
	s.cron = c
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s.engine.RetryPending(ctx, sweepBatchSize)
}
