package campaignservice

import (
	"log/slog"
	"time"

	httpadapter "revuhub/contexts/campaign-ops/campaign-service/adapters/http"
	"revuhub/contexts/campaign-ops/campaign-service/adapters/memory"
	"revuhub/contexts/campaign-ops/campaign-service/application/commands"
	"revuhub/contexts/campaign-ops/campaign-service/application/queries"
	"revuhub/contexts/campaign-ops/campaign-service/ports"
)

type Module struct {
	Handler httpadapter.Handler

	// Budget use cases are exported for the job-service gateway glue:
	// job transitions reserve and release through these, never through
	// the repository directly.
	ReserveBudget commands.ReserveBudgetUseCase
	ReleaseBudget commands.ReleaseBudgetUseCase
	SettleBudget  commands.SettleBudgetUseCase

	Store *memory.Store
}

type Dependencies struct {
	Campaigns      ports.CampaignRepository
	Budget         ports.BudgetRepository
	History        ports.HistoryRepository
	Funding        ports.WalletFunding
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	openCampaign := commands.OpenCampaignUseCase{
		Campaigns:      deps.Campaigns,
		History:        deps.History,
		Funding:        deps.Funding,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	changeStatus := commands.ChangeStatusUseCase{
		Campaigns: deps.Campaigns,
		History:   deps.History,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGenerator,
		Logger:    deps.Logger,
	}
	reserveBudget := commands.ReserveBudgetUseCase{
		Budget: deps.Budget,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	releaseBudget := commands.ReleaseBudgetUseCase{
		Budget: deps.Budget,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	settleBudget := commands.SettleBudgetUseCase{
		Budget: deps.Budget,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGenerator,
		Logger: deps.Logger,
	}
	getCampaign := queries.GetCampaignUseCase{
		Campaigns: deps.Campaigns,
		Logger:    deps.Logger,
	}
	listCampaigns := queries.ListCampaignsUseCase{
		Campaigns: deps.Campaigns,
		Logger:    deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			OpenCampaign:  openCampaign,
			ChangeStatus:  changeStatus,
			GetCampaign:   getCampaign,
			ListCampaigns: listCampaigns,
			Logger:        deps.Logger,
		},
		ReserveBudget: reserveBudget,
		ReleaseBudget: releaseBudget,
		SettleBudget:  settleBudget,
	}
}

func NewInMemoryModule(funding ports.WalletFunding, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Campaigns:      store,
		Budget:         store,
		History:        store,
		Funding:        funding,
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
