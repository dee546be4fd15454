package partner

import (
	"pointsvault/core/events"
	nativecommon "pointsvault/native/common"
)

// CalculateQuotaAndThrottle derives the lifetime quota and the renewable
// per-window throttle from an effective value:
//
//	lifetime = ev * PointsPerUnit
//	daily    = ev * DailyThrottleBps / BasisPoints * PointsPerUnit
func CalculateQuotaAndThrottle(effectiveValue uint64) (uint64, uint64, error) {
	lifetime, err := nativecommon.MulDiv(effectiveValue, PointsPerUnit, 1)
	if err != nil {
		return 0, 0, ErrOverflow
	}
	throttleValue, err := nativecommon.MulDiv(effectiveValue, DailyThrottleBps, BasisPoints)
	if err != nil {
		return 0, 0, ErrOverflow
	}
	daily, err := nativecommon.MulDiv(throttleValue, PointsPerUnit, 1)
	if err != nil {
		return 0, 0, ErrOverflow
	}
	return lifetime, daily, nil
}

// refreshQuotas re-derives both quotas from CurrentEffectiveValue. Neither
// quota is lowered below what has already been consumed against it.
func (c *Capability) refreshQuotas() error {
	lifetime, daily, err := CalculateQuotaAndThrottle(c.CurrentEffectiveValue)
	if err != nil {
		return err
	}
	if lifetime < c.TotalMintedLifetime {
		lifetime = c.TotalMintedLifetime
	}
	if daily < c.MintedToday {
		daily = c.MintedToday
	}
	c.TotalLifetimeQuota = lifetime
	c.DailyThrottle = daily
	return nil
}

// ResetIfNewWindow starts a new throttle window when window is later than the
// last reset: the throttle is recomputed from the current effective value and
// the per-window counter is zeroed. Calling it again in the same window is a
// no-op. It reports whether a reset happened.
func (c *Capability) ResetIfNewWindow(window uint64) (bool, error) {
	if window <= c.LastResetWindow {
		return false, nil
	}
	_, daily, err := CalculateQuotaAndThrottle(c.CurrentEffectiveValue)
	if err != nil {
		return false, err
	}
	c.DailyThrottle = daily
	c.MintedToday = 0
	c.LastResetWindow = window
	return true, nil
}

// RecordMint consumes amount from both quotas. On any failure the capability
// is left untouched, including the window reset.
func (c *Capability) RecordMint(amount, window uint64) (bool, error) {
	if c.Paused {
		return false, ErrCapabilityPaused
	}
	if amount == 0 {
		return false, ErrInvalidAmount
	}
	next := c.Clone()
	reset, err := next.ResetIfNewWindow(window)
	if err != nil {
		return false, err
	}
	if next.RemainingDailyQuota() < amount {
		return false, ErrInsufficientDailyQuota
	}
	minted, err := nativecommon.AddUint64(next.TotalMintedLifetime, amount)
	if err != nil || minted > next.TotalLifetimeQuota {
		return false, ErrLifetimeQuotaExceeded
	}
	next.MintedToday += amount
	next.TotalMintedLifetime = minted
	if !next.HasMinted {
		next.HasMinted = true
		next.FirstMintWindow = window
	}
	*c = *next
	return reset, nil
}

// ResetIfNewWindow applies a window reset to the stored capability.
func (e *Engine) ResetIfNewWindow(st State, partner [20]byte, window uint64) (*Capability, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, err
	}
	reset, err := c.ResetIfNewWindow(window)
	if err != nil {
		return nil, err
	}
	if !reset {
		return c, nil
	}
	if err := st.PutCapability(c); err != nil {
		return nil, err
	}
	e.emitReset(st, c)
	return c, nil
}

// RecordMint charges a partner mint against its quotas. Crediting the
// recipient's ledger account is left to the caller within the same
// transaction.
func (e *Engine) RecordMint(st State, auth *nativecommon.Authority, partner, recipient [20]byte, amount, window uint64) (*Capability, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	if err := nativecommon.RequirePartner(auth, partner); err != nil {
		return nil, err
	}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, err
	}
	reset, err := c.RecordMint(amount, window)
	if err != nil {
		return nil, err
	}
	if err := st.PutCapability(c); err != nil {
		return nil, err
	}
	if reset {
		e.emitReset(st, c)
	}
	st.AppendEvent(events.PartnerPointsMinted{
		Partner:       partner,
		Recipient:     recipient,
		Amount:        amount,
		MintedToday:   c.MintedToday,
		DailyThrottle: c.DailyThrottle,
		TotalMinted:   c.TotalMintedLifetime,
		LifetimeQuota: c.TotalLifetimeQuota,
		Window:        window,
	}.Event())
	return c, nil
}

// ReinvestRevenue converts the configured share of a partner's perk revenue,
// denominated in points, into native collateral through the price service.
// The consumed points, always a whole number of stable units, are charged
// through debit before any collateral enters custody. When the conversion
// rounds to zero a zero-delta event is emitted and nothing is consumed.
func (e *Engine) ReinvestRevenue(st State, auth *nativecommon.Authority, partner [20]byte, revenuePoints uint64, debit func(points uint64) error) (*Capability, uint64, error) {
	if err := e.guard(st); err != nil {
		return nil, 0, err
	}
	if err := nativecommon.RequirePartner(auth, partner); err != nil {
		return nil, 0, err
	}
	asset := e.params.ReinvestAsset
	if asset == "" {
		return nil, 0, ErrReinvestAssetMissing
	}
	if e.prices == nil {
		return nil, 0, ErrPriceServiceMissing
	}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, 0, err
	}

	reinvestPoints, err := nativecommon.MulDiv(revenuePoints, e.params.ReinvestBps, BasisPoints)
	if err != nil {
		return nil, 0, ErrOverflow
	}
	stableValue := reinvestPoints / PointsPerUnit
	var assetAmount uint64
	if stableValue > 0 {
		assetAmount, err = e.prices.StableUnitToAsset(asset, stableValue)
		if err != nil {
			return nil, 0, err
		}
	}
	evt := events.PartnerRevenueReinvested{
		Partner:        partner,
		RevenuePoints:  revenuePoints,
		Asset:          asset,
		EffectiveValue: c.CurrentEffectiveValue,
	}
	if assetAmount == 0 {
		st.AppendEvent(evt.Event())
		return c, 0, nil
	}
	consumed := stableValue * PointsPerUnit

	key := CollateralKey{Class: ClassNative, Asset: asset}
	existing, err := st.GetCollateral(partner, key)
	if err != nil {
		return nil, 0, err
	}
	var locked uint64
	if vault, ok := existing.(*NativeVault); ok {
		locked = vault.LockedBalance
	}
	locked, err = nativecommon.AddUint64(locked, assetAmount)
	if err != nil {
		return nil, 0, ErrOverflow
	}
	value, err := e.valueNative(asset, locked)
	if err != nil {
		return nil, 0, err
	}
	next := &NativeVault{Asset: asset, LockedBalance: locked, Value: value}
	if err := c.applyRecord(existing, next); err != nil {
		return nil, 0, err
	}
	if debit == nil {
		return nil, 0, ErrDebitMissing
	}
	if err := debit(consumed); err != nil {
		return nil, 0, err
	}
	receipt, err := e.lock(partner, key, assetAmount)
	if err != nil {
		return nil, 0, err
	}
	if err := st.PutCollateral(partner, next); err != nil {
		return nil, 0, err
	}
	if err := st.PutCapability(c); err != nil {
		return nil, 0, err
	}
	evt.ReinvestedPoints = consumed
	evt.AssetAmount = assetAmount
	evt.EffectiveDelta = effectiveDelta(existing, next)
	evt.EffectiveValue = c.CurrentEffectiveValue
	evt.Receipt = receipt
	st.AppendEvent(evt.Event())
	return c, consumed, nil
}
