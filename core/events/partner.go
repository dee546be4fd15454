package events

import (
	"strings"

	"pointsvault/core/types"
)

const (
	// TypePartnerCapabilityIssued is emitted when an administrator accredits a
	// partner.
	TypePartnerCapabilityIssued = "partner.capability.issued"
	// TypePartnerCapabilityPaused is emitted when minting is halted for a
	// partner.
	TypePartnerCapabilityPaused = "partner.capability.paused"
	// TypePartnerCapabilityResumed is emitted when minting is re-enabled.
	TypePartnerCapabilityResumed = "partner.capability.resumed"
	// TypePartnerCollateralAdded is emitted when collateral is locked.
	TypePartnerCollateralAdded = "partner.collateral.added"
	// TypePartnerCollateralWithdrawn is emitted when collateral leaves the
	// capability.
	TypePartnerCollateralWithdrawn = "partner.collateral.withdrawn"
	// TypePartnerQuotaReset is emitted when a new throttle window begins.
	TypePartnerQuotaReset = "partner.quota.reset"
	// TypePartnerPointsMinted is emitted when a partner mints points against
	// its quota.
	TypePartnerPointsMinted = "partner.points.minted"
	// TypePartnerRevenueReinvested is emitted when perk revenue is converted
	// into collateral. A zero delta is still reported.
	TypePartnerRevenueReinvested = "partner.revenue.reinvested"
	// TypePartnerWithdrawalInitialized is emitted when the withdrawal control
	// record is attached on the first withdrawal attempt.
	TypePartnerWithdrawalInitialized = "partner.withdrawal.initialized"
	// TypePartnerWithdrawalPaused is emitted when an administrator freezes
	// collateral withdrawals.
	TypePartnerWithdrawalPaused = "partner.withdrawal.paused"
	// TypePartnerWithdrawalResumed is emitted when withdrawals are re-enabled.
	TypePartnerWithdrawalResumed = "partner.withdrawal.resumed"
)

// PartnerCapabilityIssued records the accreditation of a partner.
type PartnerCapabilityIssued struct {
	Partner [20]byte
	Caller  [20]byte
	Window  uint64
}

// EventType implements the Event interface.
func (PartnerCapabilityIssued) EventType() string { return TypePartnerCapabilityIssued }

// Event converts the issuance into the generic event payload.
func (e PartnerCapabilityIssued) Event() *types.Event {
	attrs := map[string]string{
		"partner": formatAddress(e.Partner),
		"window":  formatUint(e.Window),
	}
	if !zeroAddress(e.Caller) {
		attrs["caller"] = formatAddress(e.Caller)
	}
	return &types.Event{Type: TypePartnerCapabilityIssued, Attributes: attrs}
}

// PartnerToggle captures pause and resume operations for minting or
// withdrawals.
type PartnerToggle struct {
	Kind    string
	Partner [20]byte
	Caller  [20]byte
}

// EventType implements the Event interface.
func (e PartnerToggle) EventType() string { return e.Kind }

// Event converts the toggle into the generic event payload.
func (e PartnerToggle) Event() *types.Event {
	attrs := map[string]string{"partner": formatAddress(e.Partner)}
	if !zeroAddress(e.Caller) {
		attrs["caller"] = formatAddress(e.Caller)
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// PartnerCollateralChanged captures collateral deposits and withdrawals along
// with the capability totals after the change.
type PartnerCollateralChanged struct {
	Kind           string
	Partner        [20]byte
	Class          string
	Asset          string
	Amount         uint64
	EffectiveDelta uint64
	EffectiveValue uint64
	LifetimeQuota  uint64
	DailyThrottle  uint64
	Receipt        string
	Ticket         string
	Window         uint64
}

// EventType implements the Event interface.
func (e PartnerCollateralChanged) EventType() string { return e.Kind }

// Event converts the change into the generic event payload.
func (e PartnerCollateralChanged) Event() *types.Event {
	attrs := map[string]string{
		"partner":        formatAddress(e.Partner),
		"class":          strings.ToLower(strings.TrimSpace(e.Class)),
		"asset":          normalizeAsset(e.Asset),
		"amount":         formatUint(e.Amount),
		"effectiveDelta": formatUint(e.EffectiveDelta),
		"effectiveValue": formatUint(e.EffectiveValue),
		"lifetimeQuota":  formatUint(e.LifetimeQuota),
		"dailyThrottle":  formatUint(e.DailyThrottle),
		"window":         formatUint(e.Window),
	}
	if e.Receipt != "" {
		attrs["receipt"] = e.Receipt
	}
	if e.Ticket != "" {
		attrs["ticket"] = e.Ticket
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// PartnerQuotaReset captures the start of a new throttle window.
type PartnerQuotaReset struct {
	Partner        [20]byte
	Window         uint64
	DailyThrottle  uint64
	EffectiveValue uint64
}

// EventType implements the Event interface.
func (PartnerQuotaReset) EventType() string { return TypePartnerQuotaReset }

// Event converts the reset into the generic event payload.
func (e PartnerQuotaReset) Event() *types.Event {
	return &types.Event{
		Type: TypePartnerQuotaReset,
		Attributes: map[string]string{
			"partner":        formatAddress(e.Partner),
			"window":         formatUint(e.Window),
			"dailyThrottle":  formatUint(e.DailyThrottle),
			"effectiveValue": formatUint(e.EffectiveValue),
		},
	}
}

// PartnerPointsMinted captures a successful quota-backed mint.
type PartnerPointsMinted struct {
	Partner       [20]byte
	Recipient     [20]byte
	Amount        uint64
	MintedToday   uint64
	DailyThrottle uint64
	TotalMinted   uint64
	LifetimeQuota uint64
	Window        uint64
}

// EventType implements the Event interface.
func (PartnerPointsMinted) EventType() string { return TypePartnerPointsMinted }

// Event converts the mint into the generic event payload.
func (e PartnerPointsMinted) Event() *types.Event {
	attrs := map[string]string{
		"partner":       formatAddress(e.Partner),
		"amount":        formatUint(e.Amount),
		"mintedToday":   formatUint(e.MintedToday),
		"dailyThrottle": formatUint(e.DailyThrottle),
		"totalMinted":   formatUint(e.TotalMinted),
		"lifetimeQuota": formatUint(e.LifetimeQuota),
		"window":        formatUint(e.Window),
	}
	if !zeroAddress(e.Recipient) {
		attrs["recipient"] = formatAddress(e.Recipient)
	}
	return &types.Event{Type: TypePartnerPointsMinted, Attributes: attrs}
}

// PartnerRevenueReinvested captures the conversion of perk revenue into
// native collateral.
type PartnerRevenueReinvested struct {
	Partner          [20]byte
	RevenuePoints    uint64
	ReinvestedPoints uint64
	Asset            string
	AssetAmount      uint64
	EffectiveDelta   uint64
	EffectiveValue   uint64
	Receipt          string
}

// EventType implements the Event interface.
func (PartnerRevenueReinvested) EventType() string { return TypePartnerRevenueReinvested }

// Event converts the reinvestment into the generic event payload.
func (e PartnerRevenueReinvested) Event() *types.Event {
	attrs := map[string]string{
		"partner":          formatAddress(e.Partner),
		"revenuePoints":    formatUint(e.RevenuePoints),
		"reinvestedPoints": formatUint(e.ReinvestedPoints),
		"asset":            normalizeAsset(e.Asset),
		"assetAmount":      formatUint(e.AssetAmount),
		"effectiveDelta":   formatUint(e.EffectiveDelta),
		"effectiveValue":   formatUint(e.EffectiveValue),
	}
	if e.Receipt != "" {
		attrs["receipt"] = e.Receipt
	}
	return &types.Event{Type: TypePartnerRevenueReinvested, Attributes: attrs}
}

// PartnerWithdrawalInitialized captures the parameters the withdrawal control
// record was attached with.
type PartnerWithdrawalInitialized struct {
	Partner                [20]byte
	FirstMintWindow        uint64
	MinimumAgingWindows    uint64
	MaxWithdrawalPerWindow uint64
}

// EventType implements the Event interface.
func (PartnerWithdrawalInitialized) EventType() string {
	return TypePartnerWithdrawalInitialized
}

// Event converts the initialisation into the generic event payload.
func (e PartnerWithdrawalInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypePartnerWithdrawalInitialized,
		Attributes: map[string]string{
			"partner":                formatAddress(e.Partner),
			"firstMintWindow":        formatUint(e.FirstMintWindow),
			"minimumAgingWindows":    formatUint(e.MinimumAgingWindows),
			"maxWithdrawalPerWindow": formatUint(e.MaxWithdrawalPerWindow),
		},
	}
}
