package partner

import (
	"pointsvault/core/events"
	nativecommon "pointsvault/native/common"
)

// Deposit describes collateral being locked into a capability. For NFT
// collateral Amount carries the estimated floor value.
type Deposit struct {
	Class  AssetClass
	Asset  string
	Amount uint64
}

func (d Deposit) key() CollateralKey {
	return CollateralKey{Class: d.Class, Asset: normalizeAsset(d.Asset)}
}

func (e *Engine) valueNative(asset string, locked uint64) (uint64, error) {
	if locked == 0 {
		return 0, nil
	}
	if e.prices == nil {
		return 0, ErrPriceServiceMissing
	}
	return e.prices.PriceInStableUnit(asset, locked)
}

// applyRecord swaps old for next in the capability totals and re-derives the
// quotas. Either side may be nil.
func (c *Capability) applyRecord(old, next Collateral) error {
	var oldValue, nextValue uint64
	if old != nil {
		oldValue = old.EffectiveValue()
	}
	if next != nil {
		nextValue = next.EffectiveValue()
	}
	if c.CurrentEffectiveValue < oldValue {
		return ErrAccountingMismatch
	}
	total, err := nativecommon.AddUint64(c.CurrentEffectiveValue-oldValue, nextValue)
	if err != nil {
		return ErrOverflow
	}
	c.CurrentEffectiveValue = total
	switch {
	case next != nil:
		c.addKey(next.Key())
	case old != nil:
		c.removeKey(old.Key())
	}
	return c.refreshQuotas()
}

func effectiveDelta(old, next Collateral) uint64 {
	var oldValue, nextValue uint64
	if old != nil {
		oldValue = old.EffectiveValue()
	}
	if next != nil {
		nextValue = next.EffectiveValue()
	}
	if nextValue >= oldValue {
		return nextValue - oldValue
	}
	return oldValue - nextValue
}

// AddCollateral locks collateral for a partner and re-derives its quotas.
func (e *Engine) AddCollateral(st State, auth *nativecommon.Authority, partner [20]byte, dep Deposit, window uint64) (*Capability, Collateral, error) {
	if err := e.guard(st); err != nil {
		return nil, nil, err
	}
	if err := nativecommon.RequirePartner(auth, partner); err != nil {
		return nil, nil, err
	}
	key := dep.key()
	if key.Asset == "" {
		return nil, nil, ErrInvalidAsset
	}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, nil, err
	}
	existing, err := st.GetCollateral(partner, key)
	if err != nil {
		return nil, nil, err
	}

	var next Collateral
	switch key.Class {
	case ClassNative:
		if dep.Amount == 0 {
			return nil, nil, ErrInvalidAmount
		}
		var locked uint64
		if vault, ok := existing.(*NativeVault); ok {
			locked = vault.LockedBalance
		}
		locked, err = nativecommon.AddUint64(locked, dep.Amount)
		if err != nil {
			return nil, nil, ErrOverflow
		}
		value, err := e.valueNative(key.Asset, locked)
		if err != nil {
			return nil, nil, err
		}
		next = &NativeVault{Asset: key.Asset, LockedBalance: locked, Value: value}
	case ClassStable:
		if dep.Amount == 0 {
			return nil, nil, ErrInvalidAmount
		}
		var amount uint64
		if stable, ok := existing.(*StableAsset); ok {
			amount = stable.Amount
		}
		amount, err = nativecommon.AddUint64(amount, dep.Amount)
		if err != nil {
			return nil, nil, ErrOverflow
		}
		next = &StableAsset{Asset: key.Asset, Amount: amount}
	case ClassNFT:
		if existing != nil {
			return nil, nil, ErrDuplicateNFTCollateral
		}
		if dep.Amount == 0 {
			return nil, nil, ErrInvalidFloorValue
		}
		next = &NFTFloor{Collection: key.Asset, EstimatedFloorValue: dep.Amount}
	default:
		return nil, nil, ErrUnknownCollateralClass
	}

	if err := c.applyRecord(existing, next); err != nil {
		return nil, nil, err
	}
	units := dep.Amount
	if key.Class == ClassNFT {
		units = 1
	}
	receipt, err := e.lock(partner, key, units)
	if err != nil {
		return nil, nil, err
	}
	if err := st.PutCollateral(partner, next); err != nil {
		return nil, nil, err
	}
	if err := st.PutCapability(c); err != nil {
		return nil, nil, err
	}
	e.emitCollateral(st, events.TypePartnerCollateralAdded, c, key, dep.Amount, effectiveDelta(existing, next), receipt, "", window)
	return c, next, nil
}

// lock moves units of the deposited asset into custody. NFT collateral is
// locked as a single unit.
func (e *Engine) lock(partner [20]byte, key CollateralKey, units uint64) (string, error) {
	if e.custodian == nil {
		return "", ErrCustodianMissing
	}
	return e.custodian.Lock(partner, key, units)
}

// withdrawCollateral is the unguarded registry primitive. It lowers the raw
// amount of a fungible record, deletes NFT records outright, and re-derives
// the capability totals. Callers enforce the withdrawal-security checks.
func (e *Engine) withdrawCollateral(st State, c *Capability, key CollateralKey, amount uint64) (Collateral, Collateral, error) {
	old, err := st.GetCollateral(c.Partner, key)
	if err != nil {
		return nil, nil, err
	}
	if old == nil {
		return nil, nil, ErrCollateralNotFound
	}

	next, err := e.shrink(old, amount)
	if err != nil {
		return nil, nil, err
	}

	if err := c.applyRecord(old, next); err != nil {
		return nil, nil, err
	}
	if next == nil {
		err = st.DeleteCollateral(c.Partner, key)
	} else {
		err = st.PutCollateral(c.Partner, next)
	}
	if err != nil {
		return nil, nil, err
	}
	return old, next, nil
}

// shrink returns rec after amount has left it, or nil when nothing remains.
func (e *Engine) shrink(rec Collateral, amount uint64) (Collateral, error) {
	switch r := rec.(type) {
	case *NativeVault:
		if amount > r.LockedBalance {
			return nil, ErrInsufficientCollateralForWithdrawal
		}
		remaining := r.LockedBalance - amount
		if remaining == 0 {
			return nil, nil
		}
		value, err := e.valueNative(r.Asset, remaining)
		if err != nil {
			return nil, err
		}
		return &NativeVault{Asset: r.Asset, LockedBalance: remaining, Value: value}, nil
	case *StableAsset:
		if amount > r.Amount {
			return nil, ErrInsufficientCollateralForWithdrawal
		}
		if remaining := r.Amount - amount; remaining > 0 {
			return &StableAsset{Asset: r.Asset, Amount: remaining}, nil
		}
		return nil, nil
	case *NFTFloor:
		// NFTs leave whole.
		return nil, nil
	default:
		return nil, ErrUnknownCollateralClass
	}
}

// TotalEffectiveValue sums the effective value of every record attached to
// the partner's capability.
func (e *Engine) TotalEffectiveValue(st State, partner [20]byte) (uint64, error) {
	if st == nil {
		return 0, ErrNilState
	}
	records, err := e.Collateral(st, partner)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, rec := range records {
		total, err = nativecommon.AddUint64(total, rec.EffectiveValue())
		if err != nil {
			return 0, ErrOverflow
		}
	}
	return total, nil
}

// Collateral lists the partner's records in insertion order.
func (e *Engine) Collateral(st State, partner [20]byte) ([]Collateral, error) {
	if st == nil {
		return nil, ErrNilState
	}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, err
	}
	out := make([]Collateral, 0, len(c.Collateral))
	for _, key := range c.Collateral {
		rec, err := st.GetCollateral(partner, key)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, ErrAccountingMismatch
		}
		out = append(out, rec)
	}
	return out, nil
}
