package config

import (
	"fmt"
	"strings"

	"pointsvault/native/partner"
)

var knownModules = map[string]struct{}{
	"points":  {},
	"partner": {},
	"stake":   {},
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if _, err := c.Schedule(); err != nil {
		return fmt.Errorf("accrual: %w", err)
	}
	if c.Stake.MinDurationWindows == 0 {
		return fmt.Errorf("stake: MinDurationWindows must be positive")
	}
	if c.Withdrawal.MaxWithdrawalPerWindow == 0 {
		return fmt.Errorf("withdrawal: MaxWithdrawalPerWindow must be positive")
	}
	if c.Reinvest.Bps > partner.BasisPoints {
		return fmt.Errorf("reinvest: Bps %d exceeds %d", c.Reinvest.Bps, partner.BasisPoints)
	}
	seen := make(map[string]struct{}, len(c.Prices.Quotes))
	for _, q := range c.Prices.Quotes {
		asset := strings.ToUpper(strings.TrimSpace(q.Asset))
		if asset == "" {
			return fmt.Errorf("prices: quote asset must not be empty")
		}
		if q.Numerator == 0 || q.Denominator == 0 {
			return fmt.Errorf("prices: %s: numerator and denominator must be positive", asset)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("prices: duplicate quote for %s", asset)
		}
		seen[asset] = struct{}{}
	}
	for _, module := range c.PausedModules {
		if _, ok := knownModules[strings.ToLower(strings.TrimSpace(module))]; !ok {
			return fmt.Errorf("config: unknown paused module %q", module)
		}
	}
	if _, err := c.TreasuryAddress(); err != nil {
		return err
	}
	return nil
}
