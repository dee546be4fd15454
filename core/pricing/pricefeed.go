package pricing

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/holiman/uint256"
)

// PriceStatus captures the health classification assigned to a quote.
type PriceStatus string

const (
	// PriceStatusOK indicates the quote passed all configured guardrails.
	PriceStatusOK PriceStatus = "ok"
	// PriceStatusStale signals the quote exceeded the configured freshness window.
	PriceStatusStale PriceStatus = "stale"
	// PriceStatusDeviant indicates an update moved too far from the previous quote.
	PriceStatusDeviant PriceStatus = "deviant"
)

var (
	ErrUnknownAsset  = errors.New("pricing: no quote for asset")
	ErrStalePrice    = errors.New("pricing: quote is stale")
	ErrDeviantPrice  = errors.New("pricing: quote deviates beyond threshold")
	ErrInvalidQuote  = errors.New("pricing: invalid quote")
	ErrPriceOverflow = errors.New("pricing: conversion exceeds uint64")
)

// Quote prices one unit of an asset at Numerator/Denominator stable units,
// observed at Window.
type Quote struct {
	Asset       string
	Numerator   uint64
	Denominator uint64
	Window      uint64
}

func (q Quote) rat() *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(q.Numerator), new(big.Int).SetUint64(q.Denominator))
}

// Guard configures the freshness and deviation checks.
type Guard struct {
	// MaxAgeWindows rejects quotes older than this many windows. Zero disables
	// the check.
	MaxAgeWindows uint64
	// MaxDeviationBps rejects updates that move the price further than this
	// from the previous quote. Zero disables the check.
	MaxDeviationBps uint32
}

// Feed is a window-clocked price service. Its clock only moves with quote
// updates; callers evaluating at a later window use At. Conversions floor in
// the protocol's favour: assets are valued down and stable value converts
// into fewer asset units.
type Feed struct {
	mu     sync.RWMutex
	guard  Guard
	quotes map[string]Quote
	now    uint64
}

// NewFeed constructs an empty feed.
func NewFeed(guard Guard) *Feed {
	return &Feed{guard: guard, quotes: make(map[string]Quote)}
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// Update records a new observation for the asset.
func (f *Feed) Update(q Quote) error {
	q.Asset = normalizeAsset(q.Asset)
	if q.Asset == "" || q.Numerator == 0 || q.Denominator == 0 {
		return ErrInvalidQuote
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.quotes[q.Asset]; ok {
		if q.Window < prev.Window {
			return fmt.Errorf("%w: observation window %d precedes %d", ErrInvalidQuote, q.Window, prev.Window)
		}
		if f.guard.MaxDeviationBps > 0 && deviatesBeyondThreshold(q.rat(), prev.rat(), f.guard.MaxDeviationBps) {
			return ErrDeviantPrice
		}
	}
	f.quotes[q.Asset] = q
	if q.Window > f.now {
		f.now = q.Window
	}
	return nil
}

// Quote returns the latest observation and its status.
func (f *Feed) Quote(asset string) (Quote, PriceStatus, error) {
	return f.quoteAt(asset, 0)
}

// At returns a read-only view judging freshness at window. The feed itself is
// left untouched.
func (f *Feed) At(window uint64) *View {
	return &View{feed: f, window: window}
}

func (f *Feed) quoteAt(asset string, window uint64) (Quote, PriceStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.quotes[normalizeAsset(asset)]
	if !ok {
		return Quote{}, "", fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	now := max(f.now, window)
	if f.guard.MaxAgeWindows > 0 && now > q.Window && now-q.Window > f.guard.MaxAgeWindows {
		return q, PriceStatusStale, nil
	}
	return q, PriceStatusOK, nil
}

func (f *Feed) fresh(asset string, window uint64) (Quote, error) {
	q, status, err := f.quoteAt(asset, window)
	if err != nil {
		return Quote{}, err
	}
	if status == PriceStatusStale {
		return Quote{}, fmt.Errorf("%w: %s observed at window %d", ErrStalePrice, q.Asset, q.Window)
	}
	return q, nil
}

// PriceInStableUnit values amount of asset in stable units.
func (f *Feed) PriceInStableUnit(asset string, amount uint64) (uint64, error) {
	return f.At(0).PriceInStableUnit(asset, amount)
}

// StableUnitToAsset converts a stable-unit value into asset units.
func (f *Feed) StableUnitToAsset(asset string, value uint64) (uint64, error) {
	return f.At(0).StableUnitToAsset(asset, value)
}

// View prices against the feed as seen from one window.
type View struct {
	feed   *Feed
	window uint64
}

// Window reports the window the view evaluates freshness at.
func (v *View) Window() uint64 { return v.window }

// Quote returns the latest observation and its status at the view's window.
func (v *View) Quote(asset string) (Quote, PriceStatus, error) {
	return v.feed.quoteAt(asset, v.window)
}

// PriceInStableUnit values amount of asset in stable units.
func (v *View) PriceInStableUnit(asset string, amount uint64) (uint64, error) {
	q, err := v.feed.fresh(asset, v.window)
	if err != nil {
		return 0, err
	}
	return mulDiv(amount, q.Numerator, q.Denominator)
}

// StableUnitToAsset converts a stable-unit value into asset units.
func (v *View) StableUnitToAsset(asset string, value uint64) (uint64, error) {
	q, err := v.feed.fresh(asset, v.window)
	if err != nil {
		return 0, err
	}
	return mulDiv(value, q.Denominator, q.Numerator)
}

func mulDiv(a, b, d uint64) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Div(product, uint256.NewInt(d))
	if !product.IsUint64() {
		return 0, ErrPriceOverflow
	}
	return product.Uint64(), nil
}

func deviatesBeyondThreshold(spot, average *big.Rat, thresholdBps uint32) bool {
	if spot == nil || average == nil {
		return false
	}
	if average.Sign() <= 0 {
		return false
	}
	diff := new(big.Rat).Sub(spot, average)
	if diff.Sign() < 0 {
		diff.Neg(diff)
	}
	if diff.Sign() == 0 {
		return false
	}
	ratio := new(big.Rat).Quo(diff, average)
	ratio.Mul(ratio, big.NewRat(10000, 1))
	threshold := big.NewRat(int64(thresholdBps), 1)
	return ratio.Cmp(threshold) == 1
}
