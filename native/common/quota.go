package common

import (
	"errors"
	"math"
)

var (
	ErrWindowCapExceeded    = errors.New("window cap exceeded")
	ErrQuotaCounterOverflow = errors.New("quota counter overflow")
)

// WindowUsage captures how much of a renewable allowance has been consumed in
// a given window.
type WindowUsage struct {
	Window uint64
	Used   uint64
}

// Remaining reports the unused allowance for nowWindow. Usage recorded in an
// earlier window does not count against the current one.
func (u WindowUsage) Remaining(limit, nowWindow uint64) uint64 {
	used := u.Used
	if u.Window != nowWindow {
		used = 0
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// CheckWindowQuota verifies whether amount fits within the per-window limit.
// The returned usage reflects the updated counter when the limit is not
// exceeded; on failure prev is returned unchanged.
func CheckWindowQuota(limit, nowWindow uint64, prev WindowUsage, amount uint64) (WindowUsage, error) {
	next := prev
	if prev.Window != nowWindow {
		next = WindowUsage{Window: nowWindow}
	}
	if amount > 0 {
		if next.Used > math.MaxUint64-amount {
			return prev, ErrQuotaCounterOverflow
		}
		next.Used += amount
	}
	if next.Used > limit {
		return prev, ErrWindowCapExceeded
	}
	return next, nil
}
