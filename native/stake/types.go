package stake

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"pointsvault/native/accrual"
)

// Status is the lifecycle phase of a position at a given window.
type Status uint8

const (
	StatusActive Status = iota
	StatusMature
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusMature:
		return "mature"
	default:
		return "expired"
	}
}

// Position is a user's locked native stake earning points.
type Position struct {
	ID               [32]byte
	Owner            [20]byte
	Principal        uint64
	Duration         uint64
	StartWindow      uint64
	UnlockWindow     uint64
	LastClaimWindow  uint64
	Encumbered       bool
	NativeReceiptRef string
}

// Clone returns a copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Status reports the phase at window given the redemption grace period.
func (p *Position) Status(window, graceWindows uint64) Status {
	if window < p.UnlockWindow {
		return StatusActive
	}
	if window-p.UnlockWindow <= graceWindows {
		return StatusMature
	}
	return StatusExpired
}

// Params configures the lifecycle.
type Params struct {
	Schedule     accrual.Schedule
	MinDuration  uint64
	GraceWindows uint64
}

const (
	DefaultMinDuration  uint64 = 1
	DefaultGraceWindows uint64 = 30
)

// DefaultParams returns the flat per-window schedule with the default
// duration and grace settings.
func DefaultParams() Params {
	return Params{
		Schedule:     accrual.DefaultSchedule(),
		MinDuration:  DefaultMinDuration,
		GraceWindows: DefaultGraceWindows,
	}
}

// PositionID derives the identifier of the nonce-th position opened by owner.
func PositionID(owner [20]byte, nonce uint64) [32]byte {
	var buf [len("stake") + 20 + 8]byte
	n := copy(buf[:], "stake")
	n += copy(buf[n:], owner[:])
	binary.BigEndian.PutUint64(buf[n:], nonce)
	return blake3.Sum256(buf[:])
}
