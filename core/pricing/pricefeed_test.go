package pricing

import (
	"errors"
	"math"
	"testing"
)

func TestFeedConversions(t *testing.T) {
	feed := NewFeed(Guard{})
	if err := feed.Update(Quote{Asset: "gem", Numerator: 3, Denominator: 2, Window: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	value, err := feed.PriceInStableUnit("GEM", 101)
	if err != nil || value != 151 {
		t.Fatalf("price = %d, err %v", value, err)
	}
	amount, err := feed.StableUnitToAsset(" gem ", 151)
	if err != nil || amount != 100 {
		t.Fatalf("asset amount = %d, err %v", amount, err)
	}
	if _, err := feed.PriceInStableUnit("ETH", 1); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected unknown asset, got %v", err)
	}
}

func TestFeedStaleness(t *testing.T) {
	feed := NewFeed(Guard{MaxAgeWindows: 3})
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 2, Denominator: 1, Window: 10}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := feed.At(13).PriceInStableUnit("GEM", 1); err != nil {
		t.Fatalf("quote inside window rejected: %v", err)
	}
	late := feed.At(14)
	if _, status, _ := late.Quote("GEM"); status != PriceStatusStale {
		t.Fatalf("expected stale status, got %s", status)
	}
	if _, err := late.StableUnitToAsset("GEM", 1); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price, got %v", err)
	}
	if _, err := feed.At(2).PriceInStableUnit("GEM", 1); err != nil {
		t.Fatalf("earlier window judged stale: %v", err)
	}
}

func TestFeedViewLeavesClockAlone(t *testing.T) {
	feed := NewFeed(Guard{MaxAgeWindows: 3})
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 2, Denominator: 1, Window: 10}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := feed.At(1 << 62).PriceInStableUnit("GEM", 1); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected stale price far ahead, got %v", err)
	}
	if _, status, _ := feed.Quote("GEM"); status != PriceStatusOK {
		t.Fatalf("far window leaked into feed clock: %s", status)
	}
	if _, err := feed.At(11).PriceInStableUnit("GEM", 1); err != nil {
		t.Fatalf("view at window 11: %v", err)
	}
}

func TestFeedClockFollowsUpdates(t *testing.T) {
	feed := NewFeed(Guard{MaxAgeWindows: 3})
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 2, Denominator: 1, Window: 10}); err != nil {
		t.Fatalf("update gem: %v", err)
	}
	if err := feed.Update(Quote{Asset: "ETH", Numerator: 5, Denominator: 1, Window: 20}); err != nil {
		t.Fatalf("update eth: %v", err)
	}
	if _, err := feed.PriceInStableUnit("GEM", 1); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected gem stale once eth moved the clock, got %v", err)
	}
	if _, err := feed.At(2).PriceInStableUnit("GEM", 1); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("view rewound the clock")
	}
}

func TestFeedDeviationGuard(t *testing.T) {
	feed := NewFeed(Guard{MaxDeviationBps: 500})
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 100, Denominator: 1, Window: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 106, Denominator: 1, Window: 2}); !errors.Is(err, ErrDeviantPrice) {
		t.Fatalf("expected deviant price, got %v", err)
	}
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 105, Denominator: 1, Window: 2}); err != nil {
		t.Fatalf("update within threshold: %v", err)
	}
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 105, Denominator: 1, Window: 1}); !errors.Is(err, ErrInvalidQuote) {
		t.Fatalf("expected out-of-order rejection, got %v", err)
	}
	if err := feed.Update(Quote{Asset: "GEM", Numerator: 0, Denominator: 1}); !errors.Is(err, ErrInvalidQuote) {
		t.Fatalf("expected invalid quote, got %v", err)
	}
}

func TestFeedOverflow(t *testing.T) {
	feed := NewFeed(Guard{})
	if err := feed.Update(Quote{Asset: "GEM", Numerator: math.MaxUint64, Denominator: 1}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := feed.PriceInStableUnit("GEM", 2); !errors.Is(err, ErrPriceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
