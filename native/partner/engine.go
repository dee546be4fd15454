package partner

import (
	"pointsvault/core/events"
	"pointsvault/core/types"
	nativecommon "pointsvault/native/common"
)

const moduleName = "partner"

// PriceService converts between an asset's own unit and stable units.
type PriceService interface {
	PriceInStableUnit(asset string, amount uint64) (uint64, error)
	StableUnitToAsset(asset string, value uint64) (uint64, error)
}

// Custodian holds partner collateral. Lock takes amount into custody and
// returns an opaque receipt. Release pays collateral back out under a ticket
// the engine assigns; it runs only after the withdrawal commits and must be
// idempotent per ticket.
type Custodian interface {
	Lock(partner [20]byte, key CollateralKey, amount uint64) (string, error)
	Release(ticket string, partner [20]byte, key CollateralKey, amount uint64) error
}

// State is the persistence surface required by the partner engine. Getters
// return nil, nil when the record does not exist.
type State interface {
	GetCapability(partner [20]byte) (*Capability, error)
	PutCapability(c *Capability) error
	GetCollateral(partner [20]byte, key CollateralKey) (Collateral, error)
	PutCollateral(partner [20]byte, rec Collateral) error
	DeleteCollateral(partner [20]byte, key CollateralKey) error
	GetWithdrawalControl(partner [20]byte) (*WithdrawalControl, error)
	PutWithdrawalControl(partner [20]byte, control *WithdrawalControl) error
	AppendEvent(evt *types.Event)
	// AfterCommit defers fn until the surrounding writes are durable.
	AfterCommit(fn func() error)
}

// Engine implements the collateral registry, the quota engine and the
// withdrawal-security checks for partner capabilities.
type Engine struct {
	params    Params
	prices    PriceService
	custodian Custodian
	pauses    nativecommon.PauseView
}

// NewEngine constructs an engine with normalised parameters.
func NewEngine(params Params, prices PriceService) *Engine {
	return &Engine{params: params.Normalize(), prices: prices}
}

// SetCustodian wires the custody backend used to release withdrawn collateral.
func (e *Engine) SetCustodian(custodian Custodian) {
	if e == nil {
		return
	}
	e.custodian = custodian
}

// WithPrices returns a copy of the engine converting through prices.
func (e *Engine) WithPrices(prices PriceService) *Engine {
	if e == nil {
		return nil
	}
	cp := *e
	cp.prices = prices
	return &cp
}

// SetPauses wires the pause view consulted before mutating operations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Params returns the active parameters.
func (e *Engine) Params() Params {
	if e == nil {
		return DefaultParams()
	}
	return e.params
}

func (e *Engine) guard(st State) error {
	if st == nil {
		return ErrNilState
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) loadCapability(st State, partner [20]byte) (*Capability, error) {
	c, err := st.GetCapability(partner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCapabilityNotFound
	}
	return c.Clone(), nil
}

// IssueCapability accredits partner with an empty capability. The first
// throttle window starts at window.
func (e *Engine) IssueCapability(st State, auth *nativecommon.Authority, partner [20]byte, window uint64) (*Capability, error) {
	if err := e.guard(st); err != nil {
		return nil, err
	}
	if err := nativecommon.RequireAdmin(auth); err != nil {
		return nil, err
	}
	existing, err := st.GetCapability(partner)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrCapabilityExists
	}
	c := &Capability{
		Partner:         partner,
		LastResetWindow: window,
		CreatedWindow:   window,
	}
	if err := st.PutCapability(c); err != nil {
		return nil, err
	}
	st.AppendEvent(events.PartnerCapabilityIssued{Partner: partner, Caller: auth.Caller(), Window: window}.Event())
	return c, nil
}

// SetCapabilityPaused halts or resumes minting for a partner.
func (e *Engine) SetCapabilityPaused(st State, auth *nativecommon.Authority, partner [20]byte, paused bool) (*Capability, error) {
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
	if c.Paused == paused {
		return c, nil
	}
	c.Paused = paused
	if err := st.PutCapability(c); err != nil {
		return nil, err
	}
	kind := events.TypePartnerCapabilityResumed
	if paused {
		kind = events.TypePartnerCapabilityPaused
	}
	st.AppendEvent(events.PartnerToggle{Kind: kind, Partner: partner, Caller: auth.Caller()}.Event())
	return c, nil
}

// Capability returns the partner's capability.
func (e *Engine) Capability(st State, partner [20]byte) (*Capability, error) {
	if st == nil {
		return nil, ErrNilState
	}
	return e.loadCapability(st, partner)
}

func (e *Engine) emitCollateral(st State, kind string, c *Capability, key CollateralKey, amount, delta uint64, receipt, ticket string, window uint64) {
	st.AppendEvent(events.PartnerCollateralChanged{
		Kind:           kind,
		Partner:        c.Partner,
		Class:          key.Class.String(),
		Asset:          key.Asset,
		Amount:         amount,
		EffectiveDelta: delta,
		EffectiveValue: c.CurrentEffectiveValue,
		LifetimeQuota:  c.TotalLifetimeQuota,
		DailyThrottle:  c.DailyThrottle,
		Receipt:        receipt,
		Ticket:         ticket,
		Window:         window,
	}.Event())
}

func (e *Engine) emitReset(st State, c *Capability) {
	st.AppendEvent(events.PartnerQuotaReset{
		Partner:        c.Partner,
		Window:         c.LastResetWindow,
		DailyThrottle:  c.DailyThrottle,
		EffectiveValue: c.CurrentEffectiveValue,
	}.Event())
}

// stableParity prices stable collateral one-to-one with the stable unit.
type stableParity struct{}

func (stableParity) PriceInStableUnit(_ string, amount uint64) (uint64, error) { return amount, nil }
func (stableParity) StableUnitToAsset(_ string, value uint64) (uint64, error)  { return value, nil }
