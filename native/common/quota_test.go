package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckWindowQuotaLimit(t *testing.T) {
	prev := WindowUsage{Window: 1}

	next, err := CheckWindowQuota(10, 1, prev, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Used != 10 {
		t.Fatalf("unexpected usage: %d", next.Used)
	}

	denied, err := CheckWindowQuota(10, 1, next, 1)
	if !errors.Is(err, ErrWindowCapExceeded) {
		t.Fatalf("expected ErrWindowCapExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckWindowQuota(10, 2, next, 1)
	if err != nil {
		t.Fatalf("unexpected error after window rollover: %v", err)
	}
	if rollover.Window != 2 || rollover.Used != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckWindowQuotaOverflow(t *testing.T) {
	prev := WindowUsage{Window: 3, Used: math.MaxUint64 - 1}
	if _, err := CheckWindowQuota(math.MaxUint64, 3, prev, 2); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
}

func TestWindowUsageRemaining(t *testing.T) {
	usage := WindowUsage{Window: 4, Used: 7}
	if got := usage.Remaining(10, 4); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
	if got := usage.Remaining(10, 5); got != 10 {
		t.Fatalf("expected full allowance in new window, got %d", got)
	}
	if got := usage.Remaining(5, 4); got != 0 {
		t.Fatalf("expected remaining floored at zero, got %d", got)
	}
}
