package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"revuhub/contexts/creator-network/pricing-service/domain/entities"
	domainerrors "revuhub/contexts/creator-network/pricing-service/domain/errors"
	"revuhub/contexts/creator-network/pricing-service/ports"
	"revuhub/internal/shared/events"
)

const sourceService = "pricing-service"

type Service struct {
	Pricing ports.PricingRepository
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Logger  *slog.Logger
}

type OpenRangeInput struct {
	PriceMin  int64
	PriceMax  int64
	ChangedBy string
	Reason    string
}

// OpenRange closes the creator's open price range and appends a new one
// starting now. Re-opening the same min/max bounds is a no-op that returns
// the open range unchanged.
func (s Service) OpenRange(ctx context.Context, creatorID string, input OpenRangeInput) (entities.PriceHistoryEntry, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return entities.PriceHistoryEntry{}, domainerrors.ErrInvalidPriceInput
	}
	if input.PriceMin < 0 || input.PriceMax <= 0 || input.PriceMax < input.PriceMin {
		return entities.PriceHistoryEntry{}, domainerrors.ErrInvalidPriceRange
	}

	current, found, err := s.Pricing.CurrentRange(ctx, creatorID)
	if err != nil {
		return entities.PriceHistoryEntry{}, err
	}
	if found && current.SameRange(input.PriceMin, input.PriceMax) {
		return current, nil
	}

	now := s.now()
	entryID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.PriceHistoryEntry{}, err
	}
	entry := entities.PriceHistoryEntry{
		EntryID:       entryID,
		CreatorID:     creatorID,
		PriceMin:      input.PriceMin,
		PriceMax:      input.PriceMax,
		EffectiveFrom: now,
		ChangedBy:     strings.TrimSpace(input.ChangedBy),
		Reason:        strings.TrimSpace(input.Reason),
		CreatedAt:     now,
	}
	if err := s.Pricing.AppendRange(ctx, entry); err != nil {
		return entities.PriceHistoryEntry{}, err
	}

	if err := s.appendPricingOutbox(ctx, entry); err != nil {
		return entities.PriceHistoryEntry{}, err
	}

	ResolveLogger(s.Logger).Info("creator price range opened",
		"event", "creator_price_range_opened",
		"module", "creator-network/pricing-service",
		"layer", "application",
		"creator_id", creatorID,
		"price_min", input.PriceMin,
		"price_max", input.PriceMax,
	)
	return entry, nil
}

func (s Service) CurrentRange(ctx context.Context, creatorID string) (entities.PriceHistoryEntry, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return entities.PriceHistoryEntry{}, domainerrors.ErrInvalidPriceInput
	}
	entry, found, err := s.Pricing.CurrentRange(ctx, creatorID)
	if err != nil {
		return entities.PriceHistoryEntry{}, err
	}
	if !found {
		return entities.PriceHistoryEntry{}, domainerrors.ErrNoPriceSet
	}
	return entry, nil
}

// RangeAt answers what the creator charged at a past instant, which is what
// dispute handling needs when an old job's agreed price is questioned.
func (s Service) RangeAt(ctx context.Context, creatorID string, at time.Time) (entities.PriceHistoryEntry, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return entities.PriceHistoryEntry{}, domainerrors.ErrInvalidPriceInput
	}
	entry, found, err := s.Pricing.RangeAt(ctx, creatorID, at.UTC())
	if err != nil {
		return entities.PriceHistoryEntry{}, err
	}
	if !found {
		return entities.PriceHistoryEntry{}, domainerrors.ErrNoPriceSet
	}
	return entry, nil
}

func (s Service) History(ctx context.Context, creatorID string) ([]entities.PriceHistoryEntry, error) {
	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return nil, domainerrors.ErrInvalidPriceInput
	}
	return s.Pricing.ListHistory(ctx, creatorID)
}

func (s Service) appendPricingOutbox(ctx context.Context, entry entities.PriceHistoryEntry) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := events.New(eventID, "pricing.range_opened", sourceService, "creator_id", entry.CreatorID, entry.EffectiveFrom, map[string]any{
		"creator_id":     entry.CreatorID,
		"entry_id":       entry.EntryID,
		"price_min":      entry.PriceMin,
		"price_max":      entry.PriceMax,
		"changed_by":     entry.ChangedBy,
		"effective_from": entry.EffectiveFrom.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
