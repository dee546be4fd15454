package server

import (
	"encoding/hex"

	"pointsvault/core"
	"pointsvault/crypto"
	"pointsvault/native/partner"
	"pointsvault/native/points"
	"pointsvault/native/stake"
)

type accountView struct {
	Address   string `json:"address"`
	Available uint64 `json:"available"`
	Locked    uint64 `json:"locked"`
	BadDebt   uint64 `json:"badDebt"`
}

func newAccountView(addr [20]byte, acct *points.Account, debt uint64) accountView {
	view := accountView{Address: crypto.FromRaw(addr).String(), BadDebt: debt}
	if acct != nil {
		view.Available = acct.Available
		view.Locked = acct.Locked
	}
	return view
}

type capabilityView struct {
	Partner               string `json:"partner"`
	CurrentEffectiveValue uint64 `json:"currentEffectiveValue"`
	TotalLifetimeQuota    uint64 `json:"totalLifetimeQuota"`
	TotalMintedLifetime   uint64 `json:"totalMintedLifetime"`
	DailyThrottle         uint64 `json:"dailyThrottle"`
	MintedToday           uint64 `json:"mintedToday"`
	LastResetWindow       uint64 `json:"lastResetWindow"`
	Paused                bool   `json:"paused"`
	CreatedWindow         uint64 `json:"createdWindow"`
	FirstMintWindow       uint64 `json:"firstMintWindow,omitempty"`
}

func newCapabilityView(c *partner.Capability) *capabilityView {
	if c == nil {
		return nil
	}
	view := &capabilityView{
		Partner:               crypto.FromRaw(c.Partner).String(),
		CurrentEffectiveValue: c.CurrentEffectiveValue,
		TotalLifetimeQuota:    c.TotalLifetimeQuota,
		TotalMintedLifetime:   c.TotalMintedLifetime,
		DailyThrottle:         c.DailyThrottle,
		MintedToday:           c.MintedToday,
		LastResetWindow:       c.LastResetWindow,
		Paused:                c.Paused,
		CreatedWindow:         c.CreatedWindow,
	}
	if c.HasMinted {
		view.FirstMintWindow = c.FirstMintWindow
	}
	return view
}

type collateralView struct {
	Class          string `json:"class"`
	Asset          string `json:"asset"`
	Raw            uint64 `json:"raw"`
	EffectiveValue uint64 `json:"effectiveValue"`
}

type controlView struct {
	TotalWithdrawnLifetime uint64 `json:"totalWithdrawnLifetime"`
	LastWithdrawalWindow   uint64 `json:"lastWithdrawalWindow"`
	WithdrawnThisWindow    uint64 `json:"withdrawnThisWindow"`
	FirstMintWindow        uint64 `json:"firstMintWindow"`
	MinimumAgingWindows    uint64 `json:"minimumAgingWindows"`
	MaxWithdrawalPerWindow uint64 `json:"maxWithdrawalPerWindow"`
	EmergencyPause         bool   `json:"emergencyPause"`
}

func newControlView(c *partner.WithdrawalControl) *controlView {
	if c == nil {
		return nil
	}
	return &controlView{
		TotalWithdrawnLifetime: c.TotalWithdrawnLifetime,
		LastWithdrawalWindow:   c.LastWithdrawalWindow,
		WithdrawnThisWindow:    c.WithdrawnThisWindow,
		FirstMintWindow:        c.FirstMintWindow,
		MinimumAgingWindows:    c.MinimumAgingWindows,
		MaxWithdrawalPerWindow: c.MaxWithdrawalPerWindow,
		EmergencyPause:         c.EmergencyPause,
	}
}

type partnerView struct {
	Capability *capabilityView  `json:"capability"`
	Collateral []collateralView `json:"collateral"`
	Withdrawal *controlView     `json:"withdrawal,omitempty"`
}

func newPartnerView(v *core.PartnerView) partnerView {
	out := partnerView{
		Capability: newCapabilityView(v.Capability),
		Collateral: make([]collateralView, 0, len(v.Collateral)),
		Withdrawal: newControlView(v.Control),
	}
	for _, rec := range v.Collateral {
		key := rec.Key()
		out.Collateral = append(out.Collateral, collateralView{
			Class:          key.Class.String(),
			Asset:          key.Asset,
			Raw:            rec.Raw(),
			EffectiveValue: rec.EffectiveValue(),
		})
	}
	return out
}

type withdrawalView struct {
	Class     string          `json:"class"`
	Asset     string          `json:"asset"`
	Amount    uint64          `json:"amount"`
	Remaining uint64          `json:"remaining"`
	Ticket    string          `json:"ticket,omitempty"`
	Partner   *capabilityView `json:"capability"`
	Control   *controlView    `json:"withdrawal"`
}

func newWithdrawalView(w *partner.Withdrawal) withdrawalView {
	view := withdrawalView{
		Class:   w.Key.Class.String(),
		Asset:   w.Key.Asset,
		Amount:  w.Amount,
		Ticket:  w.Ticket,
		Partner: newCapabilityView(w.Capability),
		Control: newControlView(w.Control),
	}
	if w.Remaining != nil {
		view.Remaining = w.Remaining.Raw()
	}
	return view
}

type positionView struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	Principal       uint64 `json:"principal"`
	Duration        uint64 `json:"duration"`
	StartWindow     uint64 `json:"startWindow"`
	UnlockWindow    uint64 `json:"unlockWindow"`
	LastClaimWindow uint64 `json:"lastClaimWindow"`
	Encumbered      bool   `json:"encumbered"`
	Receipt         string `json:"receipt"`
	Status          string `json:"status,omitempty"`
	Pending         uint64 `json:"pending,omitempty"`
}

func newPositionView(p *stake.Position) *positionView {
	if p == nil {
		return nil
	}
	return &positionView{
		ID:              hex.EncodeToString(p.ID[:]),
		Owner:           crypto.FromRaw(p.Owner).String(),
		Principal:       p.Principal,
		Duration:        p.Duration,
		StartWindow:     p.StartWindow,
		UnlockWindow:    p.UnlockWindow,
		LastClaimWindow: p.LastClaimWindow,
		Encumbered:      p.Encumbered,
		Receipt:         p.NativeReceiptRef,
	}
}
