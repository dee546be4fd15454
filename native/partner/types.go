package partner

import (
	"fmt"
	"strings"

	nativecommon "pointsvault/native/common"
)

// AssetClass tags the collateral variants.
type AssetClass uint8

const (
	ClassNative AssetClass = iota + 1
	ClassStable
	ClassNFT
)

func (c AssetClass) String() string {
	switch c {
	case ClassNative:
		return "native"
	case ClassStable:
		return "stable"
	case ClassNFT:
		return "nft"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// ParseAssetClass resolves a class name.
func ParseAssetClass(raw string) (AssetClass, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "native", "vault":
		return ClassNative, nil
	case "stable":
		return ClassStable, nil
	case "nft", "nft_floor":
		return ClassNFT, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollateralClass, raw)
	}
}

// CollateralKey identifies a record within a capability. A capability holds at
// most one record per key.
type CollateralKey struct {
	Class AssetClass
	Asset string
}

func (k CollateralKey) String() string {
	return k.Class.String() + "/" + k.Asset
}

// Collateral is the sealed set of collateral variants.
type Collateral interface {
	Key() CollateralKey
	// Raw is the locked quantity: asset units for native and stable records,
	// the floor estimate for NFTs.
	Raw() uint64
	EffectiveValue() uint64
	isCollateral()
}

// NativeVault holds the native asset. Value caches price(LockedBalance) as of
// the last mutation.
type NativeVault struct {
	Asset         string
	LockedBalance uint64
	Value         uint64
}

func (v *NativeVault) Key() CollateralKey { return CollateralKey{Class: ClassNative, Asset: v.Asset} }
func (v *NativeVault) Raw() uint64        { return v.LockedBalance }
func (v *NativeVault) isCollateral()      {}

// EffectiveValue applies NativeLTVBps to the cached price.
func (v *NativeVault) EffectiveValue() uint64 {
	return applyLTV(v.Value, NativeLTVBps)
}

// StableAsset holds a stable asset counted at face value.
type StableAsset struct {
	Asset  string
	Amount uint64
}

func (s *StableAsset) Key() CollateralKey { return CollateralKey{Class: ClassStable, Asset: s.Asset} }
func (s *StableAsset) Raw() uint64        { return s.Amount }
func (s *StableAsset) isCollateral()      {}

// EffectiveValue applies StableLTVBps.
func (s *StableAsset) EffectiveValue() uint64 {
	return applyLTV(s.Amount, StableLTVBps)
}

// NFTFloor holds an NFT valued at an estimated collection floor.
type NFTFloor struct {
	Collection          string
	EstimatedFloorValue uint64
}

func (n *NFTFloor) Key() CollateralKey { return CollateralKey{Class: ClassNFT, Asset: n.Collection} }
func (n *NFTFloor) Raw() uint64        { return n.EstimatedFloorValue }
func (n *NFTFloor) isCollateral()      {}

// EffectiveValue applies NFTLTVBps.
func (n *NFTFloor) EffectiveValue() uint64 {
	return applyLTV(n.EstimatedFloorValue, NFTLTVBps)
}

func applyLTV(value, bps uint64) uint64 {
	// bps never exceeds BasisPoints so the quotient fits.
	out, _ := nativecommon.MulDiv(value, bps, BasisPoints)
	return out
}

// CloneCollateral returns a deep copy of rec.
func CloneCollateral(rec Collateral) Collateral {
	switch r := rec.(type) {
	case *NativeVault:
		clone := *r
		return &clone
	case *StableAsset:
		clone := *r
		return &clone
	case *NFTFloor:
		clone := *r
		return &clone
	default:
		return nil
	}
}

// Capability is a partner's accreditation to mint points against collateral.
type Capability struct {
	Partner               [20]byte
	CurrentEffectiveValue uint64
	TotalLifetimeQuota    uint64
	TotalMintedLifetime   uint64
	DailyThrottle         uint64
	MintedToday           uint64
	LastResetWindow       uint64
	Paused                bool
	CreatedWindow         uint64
	HasMinted             bool
	FirstMintWindow       uint64
	// Collateral indexes the attached records in insertion order.
	Collateral []CollateralKey
}

// Clone returns a deep copy.
func (c *Capability) Clone() *Capability {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Collateral = append([]CollateralKey(nil), c.Collateral...)
	return &clone
}

// RemainingDailyQuota reports how much may still be minted in the current
// window, without applying a window reset.
func (c *Capability) RemainingDailyQuota() uint64 {
	if c == nil {
		return 0
	}
	return nativecommon.SaturatingSub(c.DailyThrottle, c.MintedToday)
}

// RemainingLifetimeQuota reports the unused lifetime allowance.
func (c *Capability) RemainingLifetimeQuota() uint64 {
	if c == nil {
		return 0
	}
	return nativecommon.SaturatingSub(c.TotalLifetimeQuota, c.TotalMintedLifetime)
}

// AgingAnchor is the window aging is measured from: the first mint if any,
// otherwise the issuance window.
func (c *Capability) AgingAnchor() uint64 {
	if c == nil {
		return 0
	}
	if c.HasMinted {
		return c.FirstMintWindow
	}
	return c.CreatedWindow
}

// RequiredBacking is the collateral value, in stable units, that must remain
// locked for the points minted so far.
func (c *Capability) RequiredBacking() uint64 {
	if c == nil {
		return 0
	}
	return c.TotalMintedLifetime / BackingRatio
}

func (c *Capability) hasKey(key CollateralKey) bool {
	for _, existing := range c.Collateral {
		if existing == key {
			return true
		}
	}
	return false
}

func (c *Capability) addKey(key CollateralKey) {
	if !c.hasKey(key) {
		c.Collateral = append(c.Collateral, key)
	}
}

func (c *Capability) removeKey(key CollateralKey) {
	out := c.Collateral[:0]
	for _, existing := range c.Collateral {
		if existing != key {
			out = append(out, existing)
		}
	}
	c.Collateral = out
}

// WithdrawalControl gates collateral removal for a capability. It is attached
// on the first withdrawal attempt.
type WithdrawalControl struct {
	TotalWithdrawnLifetime uint64
	LastWithdrawalWindow   uint64
	WithdrawnThisWindow    uint64
	FirstMintWindow        uint64
	MinimumAgingWindows    uint64
	MaxWithdrawalPerWindow uint64
	EmergencyPause         bool
}

// Clone returns a copy.
func (w *WithdrawalControl) Clone() *WithdrawalControl {
	if w == nil {
		return nil
	}
	clone := *w
	return &clone
}

func (w *WithdrawalControl) usage() nativecommon.WindowUsage {
	return nativecommon.WindowUsage{Window: w.LastWithdrawalWindow, Used: w.WithdrawnThisWindow}
}

// Aged reports whether the aging requirement is met at window.
func (w *WithdrawalControl) Aged(window uint64) bool {
	if w == nil {
		return false
	}
	if window < w.FirstMintWindow {
		return false
	}
	return window-w.FirstMintWindow >= w.MinimumAgingWindows
}
