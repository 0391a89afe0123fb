package analytics

import (
	"math"

	"github.com/shopspring/decimal"
)

// Currency amounts are fixed at two decimal places the moment they enter
// the system. Everything downstream works on decimals, never on raw
// floats, so repeated aggregation cannot accumulate binary float error.

// SafeDecimal converts a raw payload amount to a currency decimal,
// quantized to two places with half-up rounding. Zero for NaN or
// infinite inputs, mirroring how missing upstream numerics default.
func SafeDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// DecimalFromCents converts an integer cents amount to a currency
// decimal exactly, with no float intermediate.
func DecimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a currency decimal back to integer cents, rounding
// half up at the second decimal place.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// MillisecondsToHours converts tracked milliseconds to hours rounded to
// two decimals, the resolution the grouped report payloads carry.
func MillisecondsToHours(ms int64) float64 {
	return math.Round(float64(ms)/3600000*100) / 100
}

// SecondsToHours converts tracked seconds to hours without rounding;
// detailed entries keep full resolution for labor-cost math.
func SecondsToHours(seconds int64) float64 {
	return float64(seconds) / 3600
}

// RatePerHour derives an hourly rate from an amount over a number of
// hours, rounded to two places. Nil when hours is not positive: "no
// billable time" must stay distinguishable from a genuine $0/hr rate.
func RatePerHour(amount decimal.Decimal, hours float64) *decimal.Decimal {
	if hours <= 0 {
		return nil
	}
	rate := amount.Div(decimal.NewFromFloat(hours)).Round(2)
	return &rate
}

// MarginPercent is profit over revenue as a percentage, zero when
// revenue is not positive so empty periods report 0 instead of NaN.
func MarginPercent(profit, revenue decimal.Decimal) float64 {
	if !revenue.IsPositive() {
		return 0
	}
	return profit.Div(revenue).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Percent is part over whole as a percentage, zero when whole is zero.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// laborContribution is one entry's share of labor cost. Labor-basis
// rates apply directly; billing-basis rates are scaled by the labor
// cost percentage first.
func laborContribution(e CanonicalEntry, laborCostPercentage decimal.Decimal) decimal.Decimal {
	cost := decimal.NewFromFloat(e.Hours).Mul(e.Rate)
	if e.RateBasis == RateBasisBilling {
		cost = cost.Mul(laborCostPercentage)
	}
	return cost
}
