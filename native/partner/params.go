package partner

import "strings"

// Protocol-wide constants. They are not configurable per capability.
const (
	// BasisPoints is the denominator for every bps ratio in this package.
	BasisPoints uint64 = 10_000
	// NativeLTVBps counts native vault collateral at its full price.
	NativeLTVBps uint64 = 10_000
	// StableLTVBps counts stable collateral at face value.
	StableLTVBps uint64 = 10_000
	// NFTLTVBps discounts NFT floor estimates for price volatility.
	NFTLTVBps uint64 = 7_000
	// PointsPerUnit is the lifetime quota granted per unit of effective value.
	PointsPerUnit uint64 = 1_000
	// DailyThrottleBps is the share of effective value that renews each window.
	DailyThrottleBps uint64 = 300
	// BackingRatio is the number of minted points one unit of collateral value
	// secures.
	BackingRatio uint64 = 1_000
)

const (
	DefaultMinimumAgingWindows    uint64 = 7
	DefaultMaxWithdrawalPerWindow uint64 = 1_000_000_000_000
	DefaultReinvestBps            uint64 = 1_000
)

// Params holds the configurable knobs of the partner engine.
type Params struct {
	// MinimumAgingWindows is copied into every withdrawal control record when
	// it is attached.
	MinimumAgingWindows uint64
	// MaxWithdrawalPerWindow caps withdrawals per window, in the asset's own
	// unit.
	MaxWithdrawalPerWindow uint64
	// ReinvestBps is the share of perk revenue converted into collateral.
	ReinvestBps uint64
	// ReinvestAsset names the native vault that receives reinvested revenue.
	ReinvestAsset string
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MinimumAgingWindows:    DefaultMinimumAgingWindows,
		MaxWithdrawalPerWindow: DefaultMaxWithdrawalPerWindow,
		ReinvestBps:            DefaultReinvestBps,
	}
}

// Normalize fills zero values with defaults and canonicalises asset names.
func (p Params) Normalize() Params {
	if p.MaxWithdrawalPerWindow == 0 {
		p.MaxWithdrawalPerWindow = DefaultMaxWithdrawalPerWindow
	}
	if p.ReinvestBps > BasisPoints {
		p.ReinvestBps = BasisPoints
	}
	p.ReinvestAsset = normalizeAsset(p.ReinvestAsset)
	return p
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
