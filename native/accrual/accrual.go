// Package accrual converts staked principal and elapsed windows into points.
//
// Two formulas are supported. ModeFlatPerWindow pays
// principal*rate*elapsed/UnitDenominator and is the formula deployed to date:
// with the default rate it yields a flat per-window reward rather than an
// annualised yield, producing far larger payouts than an APY schedule would.
// ModeAnnualized pays principal*aprBps*elapsed/(10000*windowsPerYear). Which
// one a deployment runs is a product decision made in configuration.
package accrual

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// UnitDenominator scales the per-window rate in flat mode.
	UnitDenominator uint64 = 1_000_000_000
	// DefaultRatePerWindow is the flat-mode rate.
	DefaultRatePerWindow uint64 = 100
	// BasisPoints is the denominator for annualised rates.
	BasisPoints uint64 = 10_000
	// DefaultWindowsPerYear assumes one throttle window per day.
	DefaultWindowsPerYear uint64 = 365
)

var (
	ErrAccrualOverflow = errors.New("accrual: result exceeds uint64")
	ErrInvalidSchedule = errors.New("accrual: invalid schedule")
)

// Mode selects the accrual formula.
type Mode uint8

const (
	ModeFlatPerWindow Mode = iota
	ModeAnnualized
)

func (m Mode) String() string {
	switch m {
	case ModeAnnualized:
		return "annualized"
	default:
		return "flat_per_window"
	}
}

// ParseMode resolves a configured mode name. An empty name selects the flat
// formula.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "flat", "flat_per_window":
		return ModeFlatPerWindow, nil
	case "annualized", "apy", "apr":
		return ModeAnnualized, nil
	default:
		return 0, fmt.Errorf("accrual: unknown mode %q", raw)
	}
}

// Accrued computes floor(principal*rate*(current-last)/UnitDenominator) using
// 256-bit intermediates. It returns 0 when current <= last.
func Accrued(principal, ratePerWindow, lastClaimWindow, currentWindow uint64) (uint64, error) {
	if currentWindow <= lastClaimWindow {
		return 0, nil
	}
	return mulDiv(principal, ratePerWindow, currentWindow-lastClaimWindow, UnitDenominator)
}

// Schedule is a fully parameterised accrual formula.
type Schedule struct {
	Mode           Mode
	RatePerWindow  uint64
	AprBps         uint64
	WindowsPerYear uint64
}

// DefaultSchedule returns the flat formula with the default rate.
func DefaultSchedule() Schedule {
	return Schedule{
		Mode:           ModeFlatPerWindow,
		RatePerWindow:  DefaultRatePerWindow,
		WindowsPerYear: DefaultWindowsPerYear,
	}
}

// Validate checks the schedule can be evaluated.
func (s Schedule) Validate() error {
	switch s.Mode {
	case ModeFlatPerWindow:
		return nil
	case ModeAnnualized:
		if s.WindowsPerYear == 0 {
			return fmt.Errorf("%w: windows per year must be positive", ErrInvalidSchedule)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidSchedule, s.Mode)
	}
}

// Accrued evaluates the schedule for the elapsed windows.
func (s Schedule) Accrued(principal, lastClaimWindow, currentWindow uint64) (uint64, error) {
	if currentWindow <= lastClaimWindow {
		return 0, nil
	}
	if err := s.Validate(); err != nil {
		return 0, err
	}
	elapsed := currentWindow - lastClaimWindow
	switch s.Mode {
	case ModeAnnualized:
		denominator := new(uint256.Int).Mul(uint256.NewInt(BasisPoints), uint256.NewInt(s.WindowsPerYear))
		return mulDivWide(principal, s.AprBps, elapsed, denominator)
	default:
		return Accrued(principal, s.RatePerWindow, lastClaimWindow, currentWindow)
	}
}

func mulDiv(a, b, c, d uint64) (uint64, error) {
	return mulDivWide(a, b, c, uint256.NewInt(d))
}

func mulDivWide(a, b, c uint64, d *uint256.Int) (uint64, error) {
	if d.IsZero() {
		return 0, ErrInvalidSchedule
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	product.Mul(product, uint256.NewInt(c))
	product.Div(product, d)
	if !product.IsUint64() {
		return 0, ErrAccrualOverflow
	}
	return product.Uint64(), nil
}
