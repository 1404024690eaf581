package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	campaignservice "revuhub/contexts/campaign-ops/campaign-service"
	campaignpostgres "revuhub/contexts/campaign-ops/campaign-service/adapters/postgres"
	campaignworkers "revuhub/contexts/campaign-ops/campaign-service/application/workers"
	jobservice "revuhub/contexts/campaign-ops/job-service"
	jobpostgres "revuhub/contexts/campaign-ops/job-service/adapters/postgres"
	jobworkers "revuhub/contexts/campaign-ops/job-service/application/workers"
	pricingservice "revuhub/contexts/creator-network/pricing-service"
	pricingpostgres "revuhub/contexts/creator-network/pricing-service/adapters/postgres"
	pricingworkers "revuhub/contexts/creator-network/pricing-service/application/workers"
	payoutengine "revuhub/contexts/finance-core/payout-engine"
	payoutpostgres "revuhub/contexts/finance-core/payout-engine/adapters/postgres"
	payoutworkers "revuhub/contexts/finance-core/payout-engine/application/workers"
	tokenledger "revuhub/contexts/finance-core/token-ledger"
	walletpostgres "revuhub/contexts/finance-core/token-ledger/adapters/postgres"
	walletworkers "revuhub/contexts/finance-core/token-ledger/application/workers"
	"revuhub/internal/platform/config"
	"revuhub/internal/platform/db"
	"revuhub/internal/platform/httpserver"
	"revuhub/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	walletRelay     walletworkers.OutboxRelay
	campaignRelay   campaignworkers.OutboxRelay
	jobRelay        jobworkers.OutboxRelay
	payoutRelay     payoutworkers.OutboxRelay
	pricingRelay    pricingworkers.OutboxRelay
	batchCompactor  walletworkers.BatchCompactor
	earningReleaser payoutworkers.EarningReleaser
	pollInterval    time.Duration
	logger          *slog.Logger
}

// Platform bundles the five modules wired against in-memory adapters with the
// cross-context glue in place. Tests and local development run against it.
type Platform struct {
	Wallet    tokenledger.Module
	Campaigns campaignservice.Module
	Jobs      jobservice.Module
	Payouts   payoutengine.Module
	Pricing   pricingservice.Module
}

func NewInMemoryPlatform(logger *slog.Logger) Platform {
	wallet := tokenledger.NewInMemoryModule(logger)
	campaigns := campaignservice.NewInMemoryModule(walletFunding{wallet: wallet.Service}, logger)
	payouts := payoutengine.NewInMemoryModule(logger)
	pricing := pricingservice.NewInMemoryModule(logger)
	jobs := jobservice.NewInMemoryModule(
		budgetGateway{
			reserve: campaigns.ReserveBudget,
			release: campaigns.ReleaseBudget,
			settle:  campaigns.SettleBudget,
		},
		payoutGateway{payouts: payouts.Service},
		priceGateway{pricing: pricing.Service},
		logger,
	)

	return Platform{
		Wallet:    wallet,
		Campaigns: campaigns,
		Jobs:      jobs,
		Payouts:   payouts,
		Pricing:   pricing,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	walletRepo := walletpostgres.NewRepository(pg.DB, logger)
	campaignRepo := campaignpostgres.NewRepository(pg.DB, logger)
	jobRepo := jobpostgres.NewRepository(pg.DB, logger)
	payoutRepo := payoutpostgres.NewRepository(pg.DB, logger)
	pricingRepo := pricingpostgres.NewRepository(pg.DB, logger)
	for _, migrate := range []func() error{
		walletRepo.AutoMigrate,
		campaignRepo.AutoMigrate,
		jobRepo.AutoMigrate,
		payoutRepo.AutoMigrate,
		pricingRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			return nil, err
		}
	}

	idempotencyTTL := time.Duration(cfg.IdempotencyTTLHours) * time.Hour

	wallet := tokenledger.NewModule(tokenledger.Dependencies{
		Wallet:         walletRepo,
		Idempotency:    walletRepo,
		Outbox:         walletRepo,
		Clock:          walletpostgres.SystemClock{},
		IDGenerator:    walletpostgres.UUIDGenerator{},
		IdempotencyTTL: idempotencyTTL,
		DefaultExpiry:  time.Duration(cfg.TokenExpiryDays) * 24 * time.Hour,
		Logger:         logger,
	})

	campaigns := campaignservice.NewModule(campaignservice.Dependencies{
		Campaigns:      campaignRepo,
		Budget:         campaignRepo,
		History:        campaignRepo,
		Funding:        walletFunding{wallet: wallet.Service},
		Idempotency:    campaignRepo,
		Outbox:         campaignRepo,
		Clock:          campaignpostgres.SystemClock{},
		IDGenerator:    campaignpostgres.UUIDGenerator{},
		IdempotencyTTL: idempotencyTTL,
		Logger:         logger,
	})

	payouts := payoutengine.NewModule(payoutengine.Dependencies{
		Payouts:        payoutRepo,
		Outbox:         payoutRepo,
		Clock:          payoutpostgres.SystemClock{},
		IDGenerator:    payoutpostgres.UUIDGenerator{},
		CommissionRate: cfg.CommissionRate,
		HoldDuration:   time.Duration(cfg.EarningHoldDays) * 24 * time.Hour,
		Logger:         logger,
	})

	pricing := pricingservice.NewModule(pricingservice.Dependencies{
		Pricing:     pricingRepo,
		Outbox:      pricingRepo,
		Clock:       pricingpostgres.SystemClock{},
		IDGenerator: pricingpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	jobs := jobservice.NewModule(jobservice.Dependencies{
		Jobs: jobRepo,
		Budget: budgetGateway{
			reserve: campaigns.ReserveBudget,
			release: campaigns.ReleaseBudget,
			settle:  campaigns.SettleBudget,
		},
		Payout:         payoutGateway{payouts: payouts.Service},
		Prices:         priceGateway{pricing: pricing.Service},
		Idempotency:    jobRepo,
		Outbox:         jobRepo,
		Clock:          jobpostgres.SystemClock{},
		IDGenerator:    jobpostgres.UUIDGenerator{},
		IdempotencyTTL: idempotencyTTL,
		Logger:         logger,
	})

	server := httpserver.New(wallet, campaigns, jobs, payouts, pricing, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	walletRepo := walletpostgres.NewRepository(pg.DB, logger)
	campaignRepo := campaignpostgres.NewRepository(pg.DB, logger)
	jobRepo := jobpostgres.NewRepository(pg.DB, logger)
	payoutRepo := payoutpostgres.NewRepository(pg.DB, logger)
	pricingRepo := pricingpostgres.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		walletRelay: walletworkers.OutboxRelay{
			Outbox:    walletRepo,
			Publisher: kafka,
			Clock:     walletpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		campaignRelay: campaignworkers.OutboxRelay{
			Outbox:    campaignRepo,
			Publisher: kafka,
			Clock:     campaignpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		jobRelay: jobworkers.OutboxRelay{
			Outbox:    jobRepo,
			Publisher: kafka,
			Clock:     jobpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		payoutRelay: payoutworkers.OutboxRelay{
			Outbox:    payoutRepo,
			Publisher: kafka,
			Clock:     payoutpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pricingRelay: pricingworkers.OutboxRelay{
			Outbox:    pricingRepo,
			Publisher: kafka,
			Clock:     pricingpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		batchCompactor: walletworkers.BatchCompactor{
			Wallet:    walletRepo,
			Clock:     walletpostgres.SystemClock{},
			BatchSize: 200,
			Logger:    logger,
		},
		earningReleaser: payoutworkers.EarningReleaser{
			Payouts:   payoutRepo,
			Clock:     payoutpostgres.SystemClock{},
			BatchSize: 200,
			Logger:    logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.batchCompactor.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.earningReleaser.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.walletRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.campaignRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.jobRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.payoutRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.pricingRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
