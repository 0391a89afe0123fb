package analytics

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Rate tier labels used in BillingAnalysis.RateUtilization.
const (
	RateTierLow    = "low"
	RateTierMedium = "medium"
	RateTierHigh   = "high"
)

// BillingThresholds are the boundaries the billing analyzer classifies
// against. All of them are tunable per deployment.
type BillingThresholds struct {
	LowRateMax         decimal.Decimal // below this a rate is "low" tier
	HighRateMin        decimal.Decimal // at or above this a rate is "high" tier
	RateGapCeiling     decimal.Decimal // rates at or below this count as unset
	AdjustMarginBelow  float64         // margins below this get a rate suggestion
	RateIncreaseFactor decimal.Decimal // multiplier for suggested rates
	HighValueRevenue   decimal.Decimal // client revenue above this is high value
	AtRiskMaxHours     float64         // client hours below this flag risk
	AtRiskMarginBelow  float64         // combined with low hours flags risk
}

// DefaultBillingThresholds returns the standard boundaries: $50/$100
// rate tiers, $10 gap ceiling, 15% suggested increases below 20%
// margin, $10k high-value clients, at-risk under 20h and 30% margin.
func DefaultBillingThresholds() BillingThresholds {
	return BillingThresholds{
		LowRateMax:         decimal.NewFromInt(50),
		HighRateMin:        decimal.NewFromInt(100),
		RateGapCeiling:     decimal.NewFromInt(10),
		AdjustMarginBelow:  20,
		RateIncreaseFactor: decimal.NewFromFloat(1.15),
		HighValueRevenue:   decimal.NewFromInt(10000),
		AtRiskMaxHours:     20,
		AtRiskMarginBelow:  30,
	}
}

// BillingAnalyzer flags rate problems across projects and risk across
// clients.
type BillingAnalyzer struct {
	Thresholds BillingThresholds
}

// NewBillingAnalyzer returns an analyzer with default thresholds.
func NewBillingAnalyzer() BillingAnalyzer {
	return BillingAnalyzer{Thresholds: DefaultBillingThresholds()}
}

// Analyze classifies project rates into tiers weighted by hours, lists
// projects with missing or token rates, suggests increases for
// low-margin projects with a known rate, and splits clients into
// high-value and at-risk sets.
func (a BillingAnalyzer) Analyze(projects, clients []ProfitabilityRecord, workspaceID int64, period string) *BillingAnalysis {
	t := a.Thresholds

	totalBillable := lo.Reduce(projects, func(sum decimal.Decimal, p ProfitabilityRecord, _ int) decimal.Decimal {
		return sum.Add(p.Revenue)
	}, decimal.Zero)

	rateGaps := lo.FilterMap(projects, func(p ProfitabilityRecord, _ int) (string, bool) {
		return p.Name, p.BillableRate == nil || p.BillableRate.LessThanOrEqual(t.RateGapCeiling)
	})

	var totalHours float64
	tierHours := map[string]float64{RateTierLow: 0, RateTierMedium: 0, RateTierHigh: 0}
	for _, p := range projects {
		totalHours += p.TotalHours
		if p.BillableRate == nil {
			continue
		}
		switch {
		case p.BillableRate.LessThan(t.LowRateMax):
			tierHours[RateTierLow] += p.TotalHours
		case p.BillableRate.GreaterThanOrEqual(t.HighRateMin):
			tierHours[RateTierHigh] += p.TotalHours
		default:
			tierHours[RateTierMedium] += p.TotalHours
		}
	}
	rateUtilization := make(map[string]float64, len(tierHours))
	for tier, hours := range tierHours {
		rateUtilization[tier] = Percent(hours, totalHours)
	}

	suggestions := make(map[string]decimal.Decimal)
	for _, p := range projects {
		if p.ProfitMargin < t.AdjustMarginBelow && p.BillableRate != nil {
			suggestions[p.Name] = p.BillableRate.Mul(t.RateIncreaseFactor).Round(2)
		}
	}

	highValue := lo.FilterMap(clients, func(c ProfitabilityRecord, _ int) (string, bool) {
		return c.Name, c.Revenue.GreaterThan(t.HighValueRevenue)
	})
	atRisk := lo.FilterMap(clients, func(c ProfitabilityRecord, _ int) (string, bool) {
		return c.Name, c.TotalHours < t.AtRiskMaxHours && c.ProfitMargin < t.AtRiskMarginBelow
	})

	return &BillingAnalysis{
		WorkspaceID:              workspaceID,
		Period:                   period,
		TotalBillableAmount:      totalBillable,
		RateUtilization:          rateUtilization,
		RateGaps:                 rateGaps,
		SuggestedRateAdjustments: suggestions,
		HighValueClients:         highValue,
		AtRiskClients:            atRisk,
	}
}
