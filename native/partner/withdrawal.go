package partner

import (
	"github.com/google/uuid"

	"pointsvault/core/events"
	nativecommon "pointsvault/native/common"
)

// Withdrawal summarises a completed collateral withdrawal.
type Withdrawal struct {
	Capability *Capability
	Control    *WithdrawalControl
	Key        CollateralKey
	Amount     uint64
	Remaining  Collateral
	Ticket     string
}

// CalculateMaxWithdrawable returns how much of a collateral record, in the
// asset's own unit, may leave the capability at window:
//
//  1. nothing until MinimumAgingWindows have passed since the aging anchor;
//  2. the value above the backing required by minted points, converted back
//     into the asset unit;
//  3. capped by what is left of the per-window allowance.
//
// vaultValue is the record's current value in stable units.
func CalculateMaxWithdrawable(c *Capability, vaultValue uint64, control *WithdrawalControl, window uint64, asset string, prices PriceService) (uint64, error) {
	if c == nil || control == nil {
		return 0, nil
	}
	if !control.Aged(window) {
		return 0, nil
	}
	excess := nativecommon.SaturatingSub(vaultValue, c.RequiredBacking())
	var economic uint64
	if excess > 0 {
		if prices == nil {
			return 0, ErrPriceServiceMissing
		}
		converted, err := prices.StableUnitToAsset(asset, excess)
		if err != nil {
			return 0, err
		}
		economic = converted
	}
	windowLimit := control.usage().Remaining(control.MaxWithdrawalPerWindow, window)
	return min(economic, windowLimit), nil
}

func (e *Engine) newControl(c *Capability) *WithdrawalControl {
	return &WithdrawalControl{
		FirstMintWindow:        c.AgingAnchor(),
		MinimumAgingWindows:    e.params.MinimumAgingWindows,
		MaxWithdrawalPerWindow: e.params.MaxWithdrawalPerWindow,
	}
}

// loadControl returns the stored control, or a provisional one when none is
// attached yet. The aging anchor follows the capability's first mint if that
// happened after the control was attached.
func (e *Engine) loadControl(st State, c *Capability) (*WithdrawalControl, bool, error) {
	control, err := st.GetWithdrawalControl(c.Partner)
	if err != nil {
		return nil, false, err
	}
	if control == nil {
		return e.newControl(c), true, nil
	}
	control = control.Clone()
	if anchor := c.AgingAnchor(); anchor > control.FirstMintWindow {
		control.FirstMintWindow = anchor
	}
	return control, false, nil
}

// attachControl loads the control and persists it when this is the first
// withdrawal attempt.
func (e *Engine) attachControl(st State, c *Capability) (*WithdrawalControl, error) {
	control, created, err := e.loadControl(st, c)
	if err != nil {
		return nil, err
	}
	if !created {
		return control, nil
	}
	if err := st.PutWithdrawalControl(c.Partner, control); err != nil {
		return nil, err
	}
	st.AppendEvent(events.PartnerWithdrawalInitialized{
		Partner:                c.Partner,
		FirstMintWindow:        control.FirstMintWindow,
		MinimumAgingWindows:    control.MinimumAgingWindows,
		MaxWithdrawalPerWindow: control.MaxWithdrawalPerWindow,
	}.Event())
	return control, nil
}

func (e *Engine) converter(class AssetClass) PriceService {
	if class == ClassStable {
		return stableParity{}
	}
	return e.prices
}

// recordValue returns the current stable-unit value of a fungible record.
// Native vaults are re-priced rather than trusting the cached valuation.
func (e *Engine) recordValue(rec Collateral) (uint64, error) {
	switch r := rec.(type) {
	case *NativeVault:
		return e.valueNative(r.Asset, r.LockedBalance)
	case *StableAsset:
		return r.EffectiveValue(), nil
	default:
		return 0, ErrUnsupportedWithdrawal
	}
}

// MaxWithdrawable evaluates CalculateMaxWithdrawable for a stored record
// without mutating anything.
func (e *Engine) MaxWithdrawable(st State, partner [20]byte, key CollateralKey, window uint64) (uint64, error) {
	if st == nil {
		return 0, ErrNilState
	}
	key.Asset = normalizeAsset(key.Asset)
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return 0, err
	}
	control, _, err := e.loadControl(st, c)
	if err != nil {
		return 0, err
	}
	if control.EmergencyPause {
		return 0, nil
	}
	rec, err := st.GetCollateral(partner, key)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, ErrCollateralNotFound
	}
	value, err := e.recordValue(rec)
	if err != nil {
		return 0, err
	}
	limit, err := CalculateMaxWithdrawable(c, value, control, window, key.Asset, e.converter(key.Class))
	if err != nil {
		return 0, err
	}
	return min(limit, rec.Raw()), nil
}

// WithdrawPartial removes amount of a native or stable record from the
// partner's capability once the aging, per-window and backing checks pass,
// then lowers the effective value and quotas and releases the collateral.
func (e *Engine) WithdrawPartial(st State, auth *nativecommon.Authority, partner [20]byte, key CollateralKey, amount, window uint64) (*Withdrawal, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	if err := nativecommon.RequirePartner(auth, partner); err != nil {
		return nil, err
	}
	key.Asset = normalizeAsset(key.Asset)
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, err
	}
	control, err := e.attachControl(st, c)
	if err != nil {
		return nil, err
	}
	if control.EmergencyPause {
		return nil, ErrWithdrawalPaused
	}
	switch key.Class {
	case ClassNative, ClassStable:
	case ClassNFT:
		return nil, ErrUnsupportedWithdrawal
	default:
		return nil, ErrUnknownCollateralClass
	}
	rec, err := st.GetCollateral(partner, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCollateralNotFound
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > rec.Raw() {
		return nil, ErrInsufficientCollateralForWithdrawal
	}
	value, err := e.recordValue(rec)
	if err != nil {
		return nil, err
	}
	limit, err := CalculateMaxWithdrawable(c, value, control, window, key.Asset, e.converter(key.Class))
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return nil, ErrPointsTooYoung
	}
	if amount > limit {
		return nil, ErrWithdrawalExceedsLimit
	}
	usage, err := nativecommon.CheckWindowQuota(control.MaxWithdrawalPerWindow, window, control.usage(), amount)
	if err != nil {
		return nil, ErrWithdrawalExceedsLimit
	}
	total, err := nativecommon.AddUint64(control.TotalWithdrawnLifetime, amount)
	if err != nil {
		return nil, ErrOverflow
	}
	// Price rounding in the asset conversion must never leave the record
	// under-backed.
	preview, err := e.shrink(rec, amount)
	if err != nil {
		return nil, err
	}
	var remainingValue uint64
	if preview != nil {
		remainingValue = preview.EffectiveValue()
	}
	if remainingValue < c.RequiredBacking() {
		return nil, ErrWithdrawalExceedsLimit
	}

	_, next, err := e.withdrawCollateral(st, c, key, amount)
	if err != nil {
		return nil, err
	}
	control.LastWithdrawalWindow = usage.Window
	control.WithdrawnThisWindow = usage.Used
	control.TotalWithdrawnLifetime = total

	ticket, err := e.release(st, partner, key, amount)
	if err != nil {
		return nil, err
	}
	if err := st.PutWithdrawalControl(partner, control); err != nil {
		return nil, err
	}
	if err := st.PutCapability(c); err != nil {
		return nil, err
	}
	e.emitCollateral(st, events.TypePartnerCollateralWithdrawn, c, key, amount, effectiveDelta(rec, next), "", ticket, window)
	return &Withdrawal{
		Capability: c,
		Control:    control,
		Key:        key,
		Amount:     amount,
		Remaining:  next,
		Ticket:     ticket,
	}, nil
}

// ReleaseNFT returns an NFT to the partner. The record leaves whole, so the
// check is that the remaining effective value still covers the required
// backing.
func (e *Engine) ReleaseNFT(st State, auth *nativecommon.Authority, partner [20]byte, collection string, window uint64) (*Withdrawal, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	if err := nativecommon.RequirePartner(auth, partner); err != nil {
		return nil, err
	}
	key := CollateralKey{Class: ClassNFT, Asset: normalizeAsset(collection)}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, err
	}
	control, err := e.attachControl(st, c)
	if err != nil {
		return nil, err
	}
	if control.EmergencyPause {
		return nil, ErrWithdrawalPaused
	}
	rec, err := st.GetCollateral(partner, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCollateralNotFound
	}
	if !control.Aged(window) {
		return nil, ErrPointsTooYoung
	}
	remaining := nativecommon.SaturatingSub(c.CurrentEffectiveValue, rec.EffectiveValue())
	if remaining < c.RequiredBacking() {
		return nil, ErrWithdrawalExceedsLimit
	}
	if _, _, err := e.withdrawCollateral(st, c, key, 0); err != nil {
		return nil, err
	}
	ticket, err := e.release(st, partner, key, 1)
	if err != nil {
		return nil, err
	}
	if err := st.PutCapability(c); err != nil {
		return nil, err
	}
	e.emitCollateral(st, events.TypePartnerCollateralWithdrawn, c, key, rec.Raw(), rec.EffectiveValue(), "", ticket, window)
	return &Withdrawal{Capability: c, Control: control, Key: key, Amount: 1, Ticket: ticket}, nil
}

// SetWithdrawalPaused toggles the emergency pause. Attaches the control
// record if the partner never attempted a withdrawal.
func (e *Engine) SetWithdrawalPaused(st State, auth *nativecommon.Authority, partner [20]byte, paused bool) (*WithdrawalControl, error) {
	if st == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return nil, err
	}
	c, err := e.loadCapability(st, partner)
	if err != nil {
		return nil, err
	}
	control, err := e.attachControl(st, c)
	if err != nil {
		return nil, err
	}
	if control.EmergencyPause == paused {
		return control, nil
	}
	control.EmergencyPause = paused
	if err := st.PutWithdrawalControl(partner, control); err != nil {
		return nil, err
	}
	kind := events.TypePartnerWithdrawalResumed
	if paused {
		kind = events.TypePartnerWithdrawalPaused
	}
	st.AppendEvent(events.PartnerToggle{Kind: kind, Partner: partner, Caller: auth.Caller()}.Event())
	return control, nil
}

// WithdrawalControl returns the attached control, or nil when the partner
// never attempted a withdrawal.
func (e *Engine) WithdrawalControl(st State, partner [20]byte) (*WithdrawalControl, error) {
	if st == nil {
		return nil, ErrNilState
	}
	return st.GetWithdrawalControl(partner)
}

// release assigns the payout ticket and hands the transfer to the custodian
// once the withdrawal has committed.
func (e *Engine) release(st State, partner [20]byte, key CollateralKey, amount uint64) (string, error) {
	if e.custodian == nil {
		return "", ErrCustodianMissing
	}
	custodian := e.custodian
	ticket := uuid.NewString()
	st.AfterCommit(func() error {
		return custodian.Release(ticket, partner, key, amount)
	})
	return ticket, nil
}
