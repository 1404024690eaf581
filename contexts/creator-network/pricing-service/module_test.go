package pricingservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"revuhub/contexts/creator-network/pricing-service/adapters/memory"
	"revuhub/contexts/creator-network/pricing-service/application"
	domainerrors "revuhub/contexts/creator-network/pricing-service/domain/errors"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestModule(now time.Time) (Module, *stubClock) {
	store := memory.NewStore()
	clock := &stubClock{now: now}
	module := NewModule(Dependencies{
		Pricing:     store,
		Outbox:      store,
		Clock:       clock,
		IDGenerator: store,
	})
	module.Store = store
	return module, clock
}

func priceRange(min, max int64) application.OpenRangeInput {
	return application.OpenRangeInput{
		PriceMin:  min,
		PriceMax:  max,
		ChangedBy: "creator-1",
	}
}

func TestOpenRangeStartsNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _ := newTestModule(now)
	ctx := context.Background()

	entry, err := module.Service.OpenRange(ctx, "creator-1", priceRange(500, 900))
	if err != nil {
		t.Fatalf("open range failed: %v", err)
	}
	if !entry.IsOpen() {
		t.Fatalf("expected an open range")
	}
	if !entry.EffectiveFrom.Equal(now) {
		t.Fatalf("expected range effective from now, got %s", entry.EffectiveFrom)
	}

	current, err := module.Service.CurrentRange(ctx, "creator-1")
	if err != nil {
		t.Fatalf("current range failed: %v", err)
	}
	if current.PriceMin != 500 || current.PriceMax != 900 {
		t.Fatalf("expected current range 500-900, got %d-%d", current.PriceMin, current.PriceMax)
	}
}

func TestReopenSameRangeIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, clock := newTestModule(now)
	ctx := context.Background()

	first, err := module.Service.OpenRange(ctx, "creator-1", priceRange(500, 900))
	if err != nil {
		t.Fatalf("open range failed: %v", err)
	}

	clock.Advance(time.Hour)
	second, err := module.Service.OpenRange(ctx, "creator-1", priceRange(500, 900))
	if err != nil {
		t.Fatalf("repeat open range failed: %v", err)
	}
	if second.EntryID != first.EntryID {
		t.Fatalf("expected unchanged open range, got new entry %s", second.EntryID)
	}

	history, err := module.Service.History(ctx, "creator-1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected single history entry after no-op, got %d", len(history))
	}
}

func TestRangeChangeClosesPreviousRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, clock := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(500, 900)); err != nil {
		t.Fatalf("open range failed: %v", err)
	}
	clock.Advance(48 * time.Hour)
	changed, err := module.Service.OpenRange(ctx, "creator-1", priceRange(800, 1200))
	if err != nil {
		t.Fatalf("range change failed: %v", err)
	}
	if !changed.IsOpen() || changed.PriceMin != 800 {
		t.Fatalf("expected new open range at 800-1200, got %+v", changed)
	}

	history, err := module.Service.History(ctx, "creator-1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two ranges, got %d", len(history))
	}

	open := 0
	for _, entry := range history {
		if entry.IsOpen() {
			open++
		} else if !entry.EffectiveTo.Equal(changed.EffectiveFrom) {
			t.Fatalf("expected closed range to end where the new one starts, got %s", entry.EffectiveTo)
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open range, got %d", open)
	}
}

func TestRangeAtHonorsHalfOpenRanges(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, clock := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(500, 900)); err != nil {
		t.Fatalf("open range failed: %v", err)
	}
	clock.Advance(48 * time.Hour)
	changeAt := clock.Now()
	if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(800, 1200)); err != nil {
		t.Fatalf("range change failed: %v", err)
	}

	old, err := module.Service.RangeAt(ctx, "creator-1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("range at failed: %v", err)
	}
	if old.PriceMin != 500 {
		t.Fatalf("expected historical range 500-900, got %d-%d", old.PriceMin, old.PriceMax)
	}

	// The boundary instant belongs to the new range.
	boundary, err := module.Service.RangeAt(ctx, "creator-1", changeAt)
	if err != nil {
		t.Fatalf("range at boundary failed: %v", err)
	}
	if boundary.PriceMin != 800 {
		t.Fatalf("expected boundary to resolve to the new range, got %d", boundary.PriceMin)
	}

	if _, err := module.Service.RangeAt(ctx, "creator-1", now.Add(-time.Hour)); !errors.Is(err, domainerrors.ErrNoPriceSet) {
		t.Fatalf("expected no price before the first range, got %v", err)
	}
}

func TestPricingValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _ := newTestModule(now)
	ctx := context.Background()

	if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(0, 0)); !errors.Is(err, domainerrors.ErrInvalidPriceRange) {
		t.Fatalf("expected invalid range for zero max, got %v", err)
	}
	if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(900, 500)); !errors.Is(err, domainerrors.ErrInvalidPriceRange) {
		t.Fatalf("expected invalid range for max below min, got %v", err)
	}
	if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(-100, 500)); !errors.Is(err, domainerrors.ErrInvalidPriceRange) {
		t.Fatalf("expected invalid range for negative min, got %v", err)
	}
	if _, err := module.Service.OpenRange(ctx, " ", priceRange(100, 200)); !errors.Is(err, domainerrors.ErrInvalidPriceInput) {
		t.Fatalf("expected invalid creator id, got %v", err)
	}
	if _, err := module.Service.CurrentRange(ctx, "creator-unpriced"); !errors.Is(err, domainerrors.ErrNoPriceSet) {
		t.Fatalf("expected no price set, got %v", err)
	}
}

func TestConcurrentRangeChangesKeepOneOpenRange(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	module, _ := newTestModule(now)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		min := int64(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := module.Service.OpenRange(ctx, "creator-1", priceRange(min, min+400)); err != nil {
				t.Errorf("open range %d failed: %v", min, err)
			}
		}()
	}
	wg.Wait()

	history, err := module.Service.History(ctx, "creator-1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	open := 0
	for _, entry := range history {
		if entry.IsOpen() {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open range under concurrent writers, got %d", open)
	}
}
