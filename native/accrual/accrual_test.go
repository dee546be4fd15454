package accrual

import (
	"errors"
	"math"
	"testing"
)

func TestAccruedScenarioD(t *testing.T) {
	got, err := Accrued(1_000_000_000, 100, 0, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 700 {
		t.Fatalf("expected 700 points, got %d", got)
	}
}

func TestAccruedNoElapsedWindows(t *testing.T) {
	for _, tc := range []struct{ last, current uint64 }{{5, 5}, {6, 5}} {
		got, err := Accrued(1_000_000_000, 100, tc.last, tc.current)
		if err != nil || got != 0 {
			t.Fatalf("last=%d current=%d: got %d err %v", tc.last, tc.current, got, err)
		}
	}
}

func TestAccruedWidensIntermediate(t *testing.T) {
	// principal*rate overflows uint64 but the final quotient fits.
	got, err := Accrued(math.MaxUint64, 1_000, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := uint64(math.MaxUint64 / 1_000_000); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
	if _, err := Accrued(math.MaxUint64, math.MaxUint64, 0, math.MaxUint64); !errors.Is(err, ErrAccrualOverflow) {
		t.Fatalf("expected ErrAccrualOverflow, got %v", err)
	}
}

func TestScheduleModesDiffer(t *testing.T) {
	principal := uint64(1_000_000_000)

	flat := DefaultSchedule()
	flatPoints, err := flat.Accrued(principal, 0, 365)
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	if flatPoints != 36_500 {
		t.Fatalf("expected flat yearly payout 36500, got %d", flatPoints)
	}

	annual := Schedule{Mode: ModeAnnualized, AprBps: 500, WindowsPerYear: 365}
	annualPoints, err := annual.Accrued(principal, 0, 365)
	if err != nil {
		t.Fatalf("annualized: %v", err)
	}
	if annualPoints != 50_000_000 {
		t.Fatalf("expected 5%% of principal, got %d", annualPoints)
	}
	if annualPoints == flatPoints {
		t.Fatalf("modes must be distinguishable")
	}
}

func TestScheduleValidation(t *testing.T) {
	bad := Schedule{Mode: ModeAnnualized, AprBps: 100}
	if _, err := bad.Accrued(1, 0, 1); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	if _, err := (Schedule{Mode: Mode(9)}).Accrued(1, 0, 1); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for unknown mode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": ModeFlatPerWindow, "flat": ModeFlatPerWindow, " APY ": ModeAnnualized, "annualized": ModeAnnualized}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseMode("compound"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
