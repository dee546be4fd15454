package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pointsvault/crypto"
	"pointsvault/native/accrual"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "points.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default file to be written: %v", err)
	}
	if cfg.Stake.GraceWindows != 30 {
		t.Fatalf("unexpected grace windows %d", cfg.Stake.GraceWindows)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Accrual.Mode != cfg.Accrual.Mode || reloaded.Reinvest.Asset != "PTS" {
		t.Fatalf("round trip mismatch: %+v", reloaded)
	}
}

func TestLoadParsesSections(t *testing.T) {
	var raw [20]byte
	raw[0] = 0x42
	treasury := crypto.MustNewAddress(crypto.PointsPrefix, raw[:]).String()

	path := filepath.Join(t.TempDir(), "points.toml")
	contents := `DataDir = "./data"
Treasury = "` + treasury + `"
PausedModules = ["stake"]

[accrual]
Mode = "annualized"
AprBps = 500
WindowsPerYear = 365

[stake]
MinDurationWindows = 7
GraceWindows = 10

[withdrawal]
MinimumAgingWindows = 3
MaxWithdrawalPerWindow = 1000

[reinvest]
Bps = 2500
Asset = "GEM"

[prices]
MaxAgeWindows = 2
MaxDeviationBps = 500

[[prices.Quotes]]
Asset = "GEM"
Numerator = 3
Denominator = 2
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	stakeParams, err := cfg.StakeParams()
	if err != nil {
		t.Fatalf("stake params: %v", err)
	}
	if stakeParams.Schedule.Mode != accrual.ModeAnnualized || stakeParams.Schedule.AprBps != 500 {
		t.Fatalf("unexpected schedule %+v", stakeParams.Schedule)
	}
	if stakeParams.MinDuration != 7 || stakeParams.GraceWindows != 10 {
		t.Fatalf("unexpected stake params %+v", stakeParams)
	}

	partnerParams := cfg.PartnerParams()
	if partnerParams.MinimumAgingWindows != 3 || partnerParams.MaxWithdrawalPerWindow != 1000 || partnerParams.ReinvestBps != 2500 {
		t.Fatalf("unexpected partner params %+v", partnerParams)
	}

	addr, err := cfg.TreasuryAddress()
	if err != nil {
		t.Fatalf("treasury: %v", err)
	}
	if addr != raw {
		t.Fatalf("treasury mismatch")
	}

	feed, err := cfg.PriceFeed()
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	value, err := feed.PriceInStableUnit("GEM", 10)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if value != 15 {
		t.Fatalf("expected 15, got %d", value)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.toml")
	if err := os.WriteFile(path, []byte("DataDir = \"x\"\nBogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "Bogus") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty data dir":   func(c *Config) { c.DataDir = " " },
		"unknown mode":     func(c *Config) { c.Accrual.Mode = "compound" },
		"zero min stake":   func(c *Config) { c.Stake.MinDurationWindows = 0 },
		"zero window cap":  func(c *Config) { c.Withdrawal.MaxWithdrawalPerWindow = 0 },
		"reinvest overrun": func(c *Config) { c.Reinvest.Bps = 10_001 },
		"zero denominator": func(c *Config) { c.Prices.Quotes = []PriceQuote{{Asset: "GEM", Numerator: 1}} },
		"duplicate quote": func(c *Config) {
			c.Prices.Quotes = []PriceQuote{{Asset: "gem", Numerator: 1, Denominator: 1}, {Asset: "GEM", Numerator: 2, Denominator: 1}}
		},
		"unknown module": func(c *Config) { c.PausedModules = []string{"swap"} },
		"bad treasury":   func(c *Config) { c.Treasury = "pts1invalid" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
