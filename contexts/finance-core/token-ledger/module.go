package tokenledger

import (
	"log/slog"
	"time"

	httpadapter "revuhub/contexts/finance-core/token-ledger/adapters/http"
	"revuhub/contexts/finance-core/token-ledger/adapters/memory"
	"revuhub/contexts/finance-core/token-ledger/application"
	"revuhub/contexts/finance-core/token-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Store   *memory.Store
}

type Dependencies struct {
	Wallet         ports.WalletRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	DefaultExpiry  time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Wallet:         deps.Wallet,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		DefaultExpiry:  deps.DefaultExpiry,
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
		Wallet:         store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		DefaultExpiry:  90 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
