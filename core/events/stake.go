package events

import "pointsvault/core/types"

const (
	// TypeStakeOpened is emitted when a deposit creates a stake position.
	TypeStakeOpened = "stake.opened"
	// TypeStakeClaimed is emitted when accrued points are paid out.
	TypeStakeClaimed = "stake.claimed"
	// TypeStakeRedeemed is emitted when a mature position is closed by its
	// owner.
	TypeStakeRedeemed = "stake.redeemed"
	// TypeStakeForfeited is emitted when an administrator forfeits an expired
	// position.
	TypeStakeForfeited = "stake.forfeited"
	// TypeStakeEncumbered is emitted when a position is pledged as loan
	// collateral.
	TypeStakeEncumbered = "stake.encumbered"
	// TypeStakeReleased is emitted when a pledge is lifted.
	TypeStakeReleased = "stake.released"
)

// StakeOpened captures the creation of a stake position.
type StakeOpened struct {
	ID           [32]byte
	Owner        [20]byte
	Principal    uint64
	Duration     uint64
	StartWindow  uint64
	UnlockWindow uint64
	Receipt      string
}

// EventType implements the Event interface.
func (StakeOpened) EventType() string { return TypeStakeOpened }

// Event converts the payload into the generic event.
func (e StakeOpened) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeOpened,
		Attributes: map[string]string{
			"id":           formatID(e.ID),
			"owner":        formatAddress(e.Owner),
			"principal":    formatUint(e.Principal),
			"duration":     formatUint(e.Duration),
			"startWindow":  formatUint(e.StartWindow),
			"unlockWindow": formatUint(e.UnlockWindow),
			"receipt":      e.Receipt,
		},
	}
}

// StakeClaimed captures an accrual payout.
type StakeClaimed struct {
	ID              [32]byte
	Owner           [20]byte
	Points          uint64
	LastClaimWindow uint64
	Available       uint64
}

// EventType implements the Event interface.
func (StakeClaimed) EventType() string { return TypeStakeClaimed }

// Event converts the payload into the generic event.
func (e StakeClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeClaimed,
		Attributes: map[string]string{
			"id":              formatID(e.ID),
			"owner":           formatAddress(e.Owner),
			"points":          formatUint(e.Points),
			"lastClaimWindow": formatUint(e.LastClaimWindow),
			"available":       formatUint(e.Available),
		},
	}
}

// StakeClosed captures redemption and forfeiture of a position.
type StakeClosed struct {
	Kind      string
	ID        [32]byte
	Owner     [20]byte
	Caller    [20]byte
	Principal uint64
	Ticket    string
	Window    uint64
}

// EventType implements the Event interface.
func (e StakeClosed) EventType() string { return e.Kind }

// Event converts the payload into the generic event.
func (e StakeClosed) Event() *types.Event {
	attrs := map[string]string{
		"id":        formatID(e.ID),
		"owner":     formatAddress(e.Owner),
		"principal": formatUint(e.Principal),
		"window":    formatUint(e.Window),
	}
	if e.Ticket != "" {
		attrs["ticket"] = e.Ticket
	}
	if !zeroAddress(e.Caller) {
		attrs["caller"] = formatAddress(e.Caller)
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}

// StakeEncumbrance captures loan pledges and releases.
type StakeEncumbrance struct {
	Kind  string
	ID    [32]byte
	Owner [20]byte
}

// EventType implements the Event interface.
func (e StakeEncumbrance) EventType() string { return e.Kind }

// Event converts the payload into the generic event.
func (e StakeEncumbrance) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"id":    formatID(e.ID),
			"owner": formatAddress(e.Owner),
		},
	}
}
