package payoutengine

import (
	"log/slog"
	"time"

	httpadapter "revuhub/contexts/finance-core/payout-engine/adapters/http"
	"revuhub/contexts/finance-core/payout-engine/adapters/memory"
	"revuhub/contexts/finance-core/payout-engine/application"
	"revuhub/contexts/finance-core/payout-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Payouts        ports.PayoutRepository
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	CommissionRate float64
	HoldDuration   time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Payouts:        deps.Payouts,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		CommissionRate: deps.CommissionRate,
		HoldDuration:   deps.HoldDuration,
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

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Payouts:        store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		CommissionRate: 0.20,
		HoldDuration:   7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
