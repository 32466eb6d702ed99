package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	agrhttp "github.com/craftlink/marketplace-backend/internal/agreements/http"
	agrrepo "github.com/craftlink/marketplace-backend/internal/agreements/repository"
	agrservice "github.com/craftlink/marketplace-backend/internal/agreements/service"
	httpapi "github.com/craftlink/marketplace-backend/internal/api/http"
	"github.com/craftlink/marketplace-backend/internal/api/http/middleware"
	"github.com/craftlink/marketplace-backend/internal/audit"
	"github.com/craftlink/marketplace-backend/internal/chat"
	"github.com/craftlink/marketplace-backend/internal/events"
	"github.com/craftlink/marketplace-backend/internal/gateway"
	"github.com/craftlink/marketplace-backend/internal/matcher"
	matchservice "github.com/craftlink/marketplace-backend/internal/matcher/service"
	payhttp "github.com/craftlink/marketplace-backend/internal/payments/http"
	payrepo "github.com/craftlink/marketplace-backend/internal/payments/repository"
	payservice "github.com/craftlink/marketplace-backend/internal/payments/service"
	payouthttp "github.com/craftlink/marketplace-backend/internal/payouts/http"
	payoutrepo "github.com/craftlink/marketplace-backend/internal/payouts/repository"
	payoutservice "github.com/craftlink/marketplace-backend/internal/payouts/service"
	projhttp "github.com/craftlink/marketplace-backend/internal/projects/http"
	projrepo "github.com/craftlink/marketplace-backend/internal/projects/repository"
	projservice "github.com/craftlink/marketplace-backend/internal/projects/service"
	"github.com/craftlink/marketplace-backend/internal/ranking"
	"github.com/craftlink/marketplace-backend/internal/retry"
	wrepo "github.com/craftlink/marketplace-backend/internal/workers/repository"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	DB          *pgxpool.Pool
	Redis       *goredis.Client
	Gateway     *gateway.Client
	Ranking     *ranking.Client
	UseRanking  bool
	RetryPolicy retry.Policy
}

// Wired exposes the long-lived services the router builds, so main can hand
// them to the sweeper without re-wiring.
type Wired struct {
	Router *gin.Engine
	Payout *payoutservice.Engine
}

func BuildRouter(dep RouterDeps) *Wired {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		MaxAge:       12 * time.Hour,
	}))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	projectRepo := projrepo.NewProjectRepository(dep.DB)
	workerRepo := wrepo.NewWorkerRepository(dep.DB)
	agreementRepo := agrrepo.NewAgreementRepository(dep.DB)
	paymentRepo := payrepo.NewPaymentRepository(dep.DB)
	payoutRepo := payoutrepo.NewPayoutRepository(dep.DB)
	auditRepo := audit.NewRepository(dep.DB)
	chatRepo := chat.NewRepository(dep.DB)
	publisher := events.NewPublisher(dep.Redis)

	var selector matcher.Selector = matcher.RotationSelector{}
	if dep.UseRanking && dep.Ranking != nil {
		selector = &matcher.RankedSelector{Ranker: dep.Ranking}
	}

	assigner := matchservice.NewAssigner(projectRepo, workerRepo, selector,
		chatRepo, auditRepo, publisher, dep.RetryPolicy)
	negotiator := agrservice.NewNegotiator(agreementRepo, projectRepo, auditRepo, publisher)
	payoutEngine := payoutservice.NewEngine(payoutRepo, projectRepo, agreementRepo,
		workerRepo, dep.Gateway, auditRepo, publisher)
	gate := payservice.NewGate(paymentRepo, projectRepo, agreementRepo,
		dep.Gateway, payoutEngine, auditRepo, publisher)
	projectSvc := projservice.NewService(projectRepo, assigner, auditRepo, publisher)

	api := r.Group("/api/v1")

	projectsGroup := api.Group("/projects")
	projhttp.Register(projectsGroup, projectSvc, auditRepo)

	agreementsGroup := api.Group("/agreements")
	agrhttp.Register(projectsGroup, agreementsGroup, negotiator)

	paymentsGroup := api.Group("/payments")
	payhttp.Register(paymentsGroup, gate)

	payoutsGroup := api.Group("/payouts")
	payouthttp.Register(payoutsGroup, payoutEngine, payoutRepo)

	return &Wired{Router: r, Payout: payoutEngine}
}
