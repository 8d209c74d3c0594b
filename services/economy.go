package services

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// SessionRates are the per-unit ICR rates applied when a session closes.
type SessionRates struct {
	MinuteRate  decimal.Decimal `toml:"minute_rate"`
	TrackerRate decimal.Decimal `toml:"tracker_rate"`
	AdRate      decimal.Decimal `toml:"ad_rate"`
}

// Bonuses are the fixed one-off ICR grants.
type Bonuses struct {
	Welcome  decimal.Decimal `toml:"welcome"`
	Referrer decimal.Decimal `toml:"referrer"`
	Referred decimal.Decimal `toml:"referred"`
}

// Economy is a versioned set of reward rates and bonus amounts.
// Closed sessions record the version they were settled under.
type Economy struct {
	Version string       `toml:"version"`
	Session SessionRates `toml:"session"`
	Bonuses Bonuses      `toml:"bonuses"`
}

// DefaultEconomy is the reference economy: 0.1 ICR per minute, 0.01 per
// tracker or ad blocked, 10 welcome, 50/25 referral.
var DefaultEconomy = Economy{
	Version: "2024.1",
	Session: SessionRates{
		MinuteRate:  decimal.RequireFromString("0.1"),
		TrackerRate: decimal.RequireFromString("0.01"),
		AdRate:      decimal.RequireFromString("0.01"),
	},
	Bonuses: Bonuses{
		Welcome:  decimal.NewFromInt(10),
		Referrer: decimal.NewFromInt(50),
		Referred: decimal.NewFromInt(25),
	},
}

// LoadEconomy reads a TOML economy file on top of DefaultEconomy.
// Amounts are quoted strings so they parse as exact decimals:
//
//	version = "2025.2"
//	[session]
//	minute_rate = "0.12"
func LoadEconomy(path string) (Economy, error) {
	e := DefaultEconomy
	if path == "" {
		return e, nil
	}
	if _, err := toml.DecodeFile(path, &e); err != nil {
		return Economy{}, fmt.Errorf("decode economy file %s: %w", path, err)
	}
	if err := e.Validate(); err != nil {
		return Economy{}, err
	}
	return e, nil
}

// Validate rejects negative rates and an empty version.
func (e Economy) Validate() error {
	if e.Version == "" {
		return fmt.Errorf("economy version is required")
	}
	for name, v := range map[string]decimal.Decimal{
		"session.minute_rate":  e.Session.MinuteRate,
		"session.tracker_rate": e.Session.TrackerRate,
		"session.ad_rate":      e.Session.AdRate,
		"bonuses.welcome":      e.Bonuses.Welcome,
		"bonuses.referrer":     e.Bonuses.Referrer,
		"bonuses.referred":     e.Bonuses.Referred,
	} {
		if v.IsNegative() {
			return fmt.Errorf("economy %s must be non-negative, got %s", name, v)
		}
	}
	return nil
}

// SessionReward computes minutes*R_time + trackers*R_tracker + ads*R_ad.
func (e Economy) SessionReward(minutes, trackers, ads int64) decimal.Decimal {
	if minutes < 0 {
		minutes = 0
	}
	if trackers < 0 {
		trackers = 0
	}
	if ads < 0 {
		ads = 0
	}
	return e.Session.MinuteRate.Mul(decimal.NewFromInt(minutes)).
		Add(e.Session.TrackerRate.Mul(decimal.NewFromInt(trackers))).
		Add(e.Session.AdRate.Mul(decimal.NewFromInt(ads)))
}
