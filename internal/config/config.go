// Package config loads the analytics tunables that adjust report
// computation per deployment.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/TracklensDev/tracklens/internal/analytics"
)

// Tunables are the business assumptions baked into report computation.
// Deployments override them with a TOML file; everything not set in the
// file keeps its default.
type Tunables struct {
	// LaborCostPercentage scales billing rates into internal labor cost
	// for detailed entries. Must be in (0, 1].
	LaborCostPercentage float64 `toml:"labor_cost_percentage"`

	// ExpectedHoursPerPerson is one member's full-time capacity for a
	// reporting period.
	ExpectedHoursPerPerson float64 `toml:"expected_hours_per_person"`

	// HourCapThreshold and HourCapCeiling bound implausible per-entity
	// hour totals: totals above the threshold are capped to the ceiling.
	HourCapThreshold float64 `toml:"hour_cap_threshold"`
	HourCapCeiling   float64 `toml:"hour_cap_ceiling"`

	Billing BillingTunables `toml:"billing"`
}

// BillingTunables are the boundaries of the billing analyzer.
type BillingTunables struct {
	LowRateMax         float64 `toml:"low_rate_max"`
	HighRateMin        float64 `toml:"high_rate_min"`
	RateGapCeiling     float64 `toml:"rate_gap_ceiling"`
	AdjustMarginBelow  float64 `toml:"adjust_margin_below"`
	RateIncreaseFactor float64 `toml:"rate_increase_factor"`
	HighValueRevenue   float64 `toml:"high_value_revenue"`
	AtRiskMaxHours     float64 `toml:"at_risk_max_hours"`
	AtRiskMarginBelow  float64 `toml:"at_risk_margin_below"`
}

// Defaults mirrors the analytics package defaults.
func Defaults() Tunables {
	return Tunables{
		LaborCostPercentage:    0.6,
		ExpectedHoursPerPerson: analytics.DefaultExpectedHoursPerPerson,
		HourCapThreshold:       analytics.DefaultHourCapThreshold,
		HourCapCeiling:         analytics.DefaultHourCapCeiling,
		Billing: BillingTunables{
			LowRateMax:         50,
			HighRateMin:        100,
			RateGapCeiling:     10,
			AdjustMarginBelow:  20,
			RateIncreaseFactor: 1.15,
			HighValueRevenue:   10000,
			AtRiskMaxHours:     20,
			AtRiskMarginBelow:  30,
		},
	}
}

// Load reads tunables from a TOML file, layered over the defaults. An
// empty path returns the defaults unchanged. Unknown keys are rejected
// so typos do not silently keep a default.
func Load(path string) (Tunables, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}

	md, err := toml.DecodeFile(path, &t)
	if err != nil {
		return Tunables{}, fmt.Errorf("load tunables %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Tunables{}, fmt.Errorf("load tunables %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := t.Validate(); err != nil {
		return Tunables{}, fmt.Errorf("load tunables %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects tunable combinations that would corrupt reports.
func (t Tunables) Validate() error {
	if t.LaborCostPercentage <= 0 || t.LaborCostPercentage > 1 {
		return fmt.Errorf("labor_cost_percentage %v outside (0, 1]", t.LaborCostPercentage)
	}
	if t.ExpectedHoursPerPerson <= 0 {
		return fmt.Errorf("expected_hours_per_person %v must be positive", t.ExpectedHoursPerPerson)
	}
	if t.HourCapCeiling <= 0 {
		return fmt.Errorf("hour_cap_ceiling %v must be positive", t.HourCapCeiling)
	}
	if t.HourCapThreshold < t.HourCapCeiling {
		return fmt.Errorf("hour_cap_threshold %v below hour_cap_ceiling %v", t.HourCapThreshold, t.HourCapCeiling)
	}
	if t.Billing.LowRateMax <= 0 || t.Billing.HighRateMin <= t.Billing.LowRateMax {
		return fmt.Errorf("billing rate tiers (%v, %v) must be increasing", t.Billing.LowRateMax, t.Billing.HighRateMin)
	}
	if t.Billing.RateIncreaseFactor < 1 {
		return fmt.Errorf("billing rate_increase_factor %v below 1", t.Billing.RateIncreaseFactor)
	}
	return nil
}

// LaborPercentage is the labor cost share as a decimal multiplier.
func (t Tunables) LaborPercentage() decimal.Decimal {
	return decimal.NewFromFloat(t.LaborCostPercentage)
}

// HourCap is the outlier guard configured by these tunables.
func (t Tunables) HourCap() analytics.HourCap {
	return analytics.HourCap{Threshold: t.HourCapThreshold, Ceiling: t.HourCapCeiling}
}

// BillingThresholds is the billing analyzer configuration.
func (t Tunables) BillingThresholds() analytics.BillingThresholds {
	return analytics.BillingThresholds{
		LowRateMax:         decimal.NewFromFloat(t.Billing.LowRateMax),
		HighRateMin:        decimal.NewFromFloat(t.Billing.HighRateMin),
		RateGapCeiling:     decimal.NewFromFloat(t.Billing.RateGapCeiling),
		AdjustMarginBelow:  t.Billing.AdjustMarginBelow,
		RateIncreaseFactor: decimal.NewFromFloat(t.Billing.RateIncreaseFactor),
		HighValueRevenue:   decimal.NewFromFloat(t.Billing.HighValueRevenue),
		AtRiskMaxHours:     t.Billing.AtRiskMaxHours,
		AtRiskMarginBelow:  t.Billing.AtRiskMarginBelow,
	}
}
