package events

import "pointsvault/core/types"

const (
	// TypePointsEarned is emitted when points are credited to an account.
	TypePointsEarned = "points.earned"
	// TypePointsSpent is emitted when available points are debited.
	TypePointsSpent = "points.spent"
	// TypePointsLocked is emitted when available points move into the locked
	// bucket.
	TypePointsLocked = "points.locked"
	// TypePointsUnlocked is emitted when locked points return to the available
	// bucket.
	TypePointsUnlocked = "points.unlocked"
	// TypeBadDebtAdded is emitted when an obligation is recorded against an
	// account.
	TypeBadDebtAdded = "points.badDebt.added"
	// TypeBadDebtRepaid is emitted when an outstanding obligation is reduced.
	TypeBadDebtRepaid = "points.badDebt.repaid"
)

// PointsBalanceChanged captures a single ledger mutation along with the
// resulting balances.
type PointsBalanceChanged struct {
	Kind      string
	Account   [20]byte
	Amount    uint64
	Available uint64
	Locked    uint64
}

// EventType implements the Event interface.
func (e PointsBalanceChanged) EventType() string { return e.Kind }

// Event converts the mutation into the generic event payload.
func (e PointsBalanceChanged) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"account":   formatAddress(e.Account),
			"amount":    formatUint(e.Amount),
			"available": formatUint(e.Available),
			"locked":    formatUint(e.Locked),
		},
	}
}

// BadDebtChanged captures an update to an account's outstanding obligation.
type BadDebtChanged struct {
	Kind        string
	Account     [20]byte
	Amount      uint64
	Outstanding uint64
}

// EventType implements the Event interface.
func (e BadDebtChanged) EventType() string { return e.Kind }

// Event converts the update into the generic event payload.
func (e BadDebtChanged) Event() *types.Event {
	attrs := map[string]string{
		"account":     formatAddress(e.Account),
		"amount":      formatUint(e.Amount),
		"outstanding": formatUint(e.Outstanding),
	}
	if e.Outstanding == 0 {
		attrs["cleared"] = "true"
	}
	return &types.Event{Type: e.Kind, Attributes: attrs}
}
