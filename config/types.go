package config

// Accrual selects the stake accrual formula.
type Accrual struct {
	// Mode is "flat_per_window" or "annualized".
	Mode           string `toml:"Mode"`
	RatePerWindow  uint64 `toml:"RatePerWindow"`
	AprBps         uint64 `toml:"AprBps"`
	WindowsPerYear uint64 `toml:"WindowsPerYear"`
}

// Stake bounds the position lifecycle.
type Stake struct {
	MinDurationWindows uint64 `toml:"MinDurationWindows"`
	GraceWindows       uint64 `toml:"GraceWindows"`
}

// Withdrawal seeds every newly attached withdrawal control record.
type Withdrawal struct {
	MinimumAgingWindows    uint64 `toml:"MinimumAgingWindows"`
	MaxWithdrawalPerWindow uint64 `toml:"MaxWithdrawalPerWindow"`
}

// Reinvest controls revenue reinvestment into native collateral.
type Reinvest struct {
	Bps   uint64 `toml:"Bps"`
	Asset string `toml:"Asset"`
}

// PriceQuote seeds the static price feed: one unit of Asset is worth
// Numerator/Denominator stable units.
type PriceQuote struct {
	Asset       string `toml:"Asset"`
	Numerator   uint64 `toml:"Numerator"`
	Denominator uint64 `toml:"Denominator"`
}

// Prices configures the price feed guardrails and initial quotes.
type Prices struct {
	MaxAgeWindows   uint64       `toml:"MaxAgeWindows"`
	MaxDeviationBps uint32       `toml:"MaxDeviationBps"`
	Quotes          []PriceQuote `toml:"Quotes"`
}
