package jobservice

import (
	"log/slog"
	"time"

	httpadapter "revuhub/contexts/campaign-ops/job-service/adapters/http"
	"revuhub/contexts/campaign-ops/job-service/adapters/memory"
	"revuhub/contexts/campaign-ops/job-service/application"
	"revuhub/contexts/campaign-ops/job-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Jobs           ports.JobRepository
	Budget         ports.BudgetGateway
	Payout         ports.PayoutGateway
	Prices         ports.PriceSource
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Jobs:           deps.Jobs,
		Budget:         deps.Budget,
		Payout:         deps.Payout,
		Prices:         deps.Prices,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
		Service: service,
	}
}

func NewInMemoryModule(budget ports.BudgetGateway, payout ports.PayoutGateway, prices ports.PriceSource, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Jobs:           store,
		Budget:         budget,
		Payout:         payout,
		Prices:         prices,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
