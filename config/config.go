package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"pointsvault/core/pricing"
	"pointsvault/crypto"
	"pointsvault/native/accrual"
	"pointsvault/native/partner"
	"pointsvault/native/stake"
)

// Config holds the protocol settings of a points node.
type Config struct {
	DataDir      string `toml:"DataDir"`
	NetworkName  string `toml:"NetworkName"`
	AllowMigrate bool   `toml:"AllowMigrate"`
	// Treasury receives forfeited stake principal (bech32).
	Treasury string `toml:"Treasury"`
	// PausedModules lists modules whose mutating operations are rejected.
	PausedModules []string `toml:"PausedModules"`

	Accrual    Accrual    `toml:"accrual"`
	Stake      Stake      `toml:"stake"`
	Withdrawal Withdrawal `toml:"withdrawal"`
	Reinvest   Reinvest   `toml:"reinvest"`
	Prices     Prices     `toml:"prices"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown field %s", path, undecoded[0])
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "points-local"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in protocol defaults.
func Default() *Config {
	return &Config{
		DataDir:       "./points-data",
		NetworkName:   "points-local",
		PausedModules: []string{},
		Accrual: Accrual{
			Mode:           accrual.ModeFlatPerWindow.String(),
			RatePerWindow:  accrual.DefaultRatePerWindow,
			WindowsPerYear: accrual.DefaultWindowsPerYear,
		},
		Stake: Stake{
			MinDurationWindows: stake.DefaultMinDuration,
			GraceWindows:       stake.DefaultGraceWindows,
		},
		Withdrawal: Withdrawal{
			MinimumAgingWindows:    partner.DefaultMinimumAgingWindows,
			MaxWithdrawalPerWindow: partner.DefaultMaxWithdrawalPerWindow,
		},
		Reinvest: Reinvest{Bps: partner.DefaultReinvestBps, Asset: "PTS"},
		Prices: Prices{
			Quotes: []PriceQuote{{Asset: "PTS", Numerator: 1, Denominator: 1}},
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Schedule returns the configured accrual schedule.
func (c *Config) Schedule() (accrual.Schedule, error) {
	mode, err := accrual.ParseMode(c.Accrual.Mode)
	if err != nil {
		return accrual.Schedule{}, err
	}
	schedule := accrual.Schedule{
		Mode:           mode,
		RatePerWindow:  c.Accrual.RatePerWindow,
		AprBps:         c.Accrual.AprBps,
		WindowsPerYear: c.Accrual.WindowsPerYear,
	}
	return schedule, schedule.Validate()
}

// PartnerParams returns the partner engine parameters.
func (c *Config) PartnerParams() partner.Params {
	return partner.Params{
		MinimumAgingWindows:    c.Withdrawal.MinimumAgingWindows,
		MaxWithdrawalPerWindow: c.Withdrawal.MaxWithdrawalPerWindow,
		ReinvestBps:            c.Reinvest.Bps,
		ReinvestAsset:          c.Reinvest.Asset,
	}.Normalize()
}

// StakeParams returns the stake lifecycle parameters.
func (c *Config) StakeParams() (stake.Params, error) {
	schedule, err := c.Schedule()
	if err != nil {
		return stake.Params{}, err
	}
	return stake.Params{
		Schedule:     schedule,
		MinDuration:  c.Stake.MinDurationWindows,
		GraceWindows: c.Stake.GraceWindows,
	}, nil
}

// PriceFeed builds the guarded feed seeded with the configured quotes.
func (c *Config) PriceFeed() (*pricing.Feed, error) {
	feed := pricing.NewFeed(pricing.Guard{
		MaxAgeWindows:   c.Prices.MaxAgeWindows,
		MaxDeviationBps: c.Prices.MaxDeviationBps,
	})
	for _, q := range c.Prices.Quotes {
		if err := feed.Update(pricing.Quote{Asset: q.Asset, Numerator: q.Numerator, Denominator: q.Denominator}); err != nil {
			return nil, fmt.Errorf("prices: %s: %w", q.Asset, err)
		}
	}
	return feed, nil
}

// TreasuryAddress decodes the treasury address. An empty value yields the
// zero address.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	if strings.TrimSpace(c.Treasury) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.Treasury))
	if err != nil {
		return [20]byte{}, fmt.Errorf("treasury: %w", err)
	}
	return addr.Raw(), nil
}
