package analytics

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultLaborCostPercentage is the assumed labor share of a billing
// rate when no cost data exists: 60%.
var DefaultLaborCostPercentage = decimal.NewFromFloat(0.6)

// SortKey selects the ordering of aggregated records.
type SortKey string

const (
	SortByProfit  SortKey = "profit"
	SortByRevenue SortKey = "revenue"
	SortByMargin  SortKey = "margin"
	SortByHours   SortKey = "hours"
)

// ParseSortKey validates a sort key parameter; empty selects profit.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortByProfit, nil
	}
	switch SortKey(s) {
	case SortByProfit, SortByRevenue, SortByMargin, SortByHours:
		return SortKey(s), nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// AggregateOptions tunes one aggregation pass. The zero value is not
// usable; start from DefaultAggregateOptions.
type AggregateOptions struct {
	LaborCostPercentage decimal.Decimal
	Cap                 HourCap
	SortBy              SortKey
	MinHours            float64
	MinRevenue          decimal.Decimal
	Currency            string
	Log                 *slog.Logger
}

// DefaultAggregateOptions returns the standard knobs: 60% labor share,
// the default hour cap, profit-descending order, no minimums.
func DefaultAggregateOptions(currency string) AggregateOptions {
	return AggregateOptions{
		LaborCostPercentage: DefaultLaborCostPercentage,
		Cap:                 DefaultHourCap(),
		SortBy:              SortByProfit,
		Currency:            currency,
	}
}

type entityBucket struct {
	id       int64
	name     string
	client   string
	hours    float64
	billable float64
	revenue  decimal.Decimal
	labor    decimal.Decimal
	entries  int
}

// Aggregate groups canonical entries by entity and derives one
// profitability record per entity. Hours and revenue are summed; labor
// cost is summed per entry from each entry's own rate, so mixed rates
// inside one entity stay accurate. The hour cap applies to the grouped
// totals before any ratio is computed, and the min filters apply after
// capping, before sorting.
//
// An entity whose accumulated totals are invalid is dropped with a
// warning; the remaining entities aggregate normally.
func Aggregate(entries []CanonicalEntry, opts AggregateOptions) []ProfitabilityRecord {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.SortBy == "" {
		opts.SortBy = SortByProfit
	}

	// Buckets keep first-seen order so records with tied sort keys
	// stay in a deterministic, input-derived order.
	order := make([]int64, 0)
	buckets := make(map[int64]*entityBucket)
	for _, e := range entries {
		b, ok := buckets[e.EntityID]
		if !ok {
			b = &entityBucket{id: e.EntityID}
			buckets[e.EntityID] = b
			order = append(order, e.EntityID)
		}
		b.hours += e.Hours
		b.billable += e.BillableHours
		b.revenue = b.revenue.Add(e.Revenue)
		b.labor = b.labor.Add(laborContribution(e, opts.LaborCostPercentage))
		b.entries += e.Entries
		if b.name == "" {
			b.name = e.EntityName
		}
		if b.client == "" {
			b.client = e.ClientName
		}
	}

	records := make([]ProfitabilityRecord, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		if b.hours < 0 || b.billable < 0 {
			log.Warn("dropping entity with invalid hour totals",
				"entity_id", id, "total_hours", b.hours, "billable_hours", b.billable)
			continue
		}
		total, billable, nonBillable, capped := opts.Cap.Apply(b.hours, b.billable)
		if capped {
			log.Warn("implausible hour total capped",
				"entity_id", id, "raw_hours", b.hours, "capped_hours", total)
		}
		labor := b.labor.Round(2)
		profit := b.revenue.Sub(labor)
		rec := ProfitabilityRecord{
			ID:               id,
			Name:             b.name,
			ClientName:       b.client,
			TotalHours:       total,
			BillableHours:    billable,
			NonBillableHours: nonBillable,
			Revenue:          b.revenue,
			LaborCost:        labor,
			Profit:           profit,
			ProfitMargin:     MarginPercent(profit, b.revenue),
			BillableRate:     RatePerHour(b.revenue, billable),
			ActiveUsers:      1,
			EntriesCount:     b.entries,
			Currency:         opts.Currency,
		}
		if rec.TotalHours < opts.MinHours {
			continue
		}
		if rec.Revenue.LessThan(opts.MinRevenue) {
			continue
		}
		records = append(records, rec)
	}

	SortRecords(records, opts.SortBy)
	return records
}

// SortRecords orders records descending by the given key. The sort is
// stable: ties keep their existing relative order.
func SortRecords(records []ProfitabilityRecord, key SortKey) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch key {
		case SortByRevenue:
			return a.Revenue.GreaterThan(b.Revenue)
		case SortByMargin:
			return a.ProfitMargin > b.ProfitMargin
		case SortByHours:
			return a.TotalHours > b.TotalHours
		default:
			return a.Profit.GreaterThan(b.Profit)
		}
	})
}

// ComputeDetailedProfitability rolls detailed v3 entries up to one
// workspace-level profitability block. Hours keep full second
// resolution here; the average rate divides revenue by total (not
// billable) hours, matching how the detailed source reports it.
func ComputeDetailedProfitability(entries []CanonicalEntry, opts AggregateOptions) *DetailedProfitability {
	var revenue, labor decimal.Decimal
	var hours float64
	for _, e := range entries {
		revenue = revenue.Add(e.Revenue)
		labor = labor.Add(laborContribution(e, opts.LaborCostPercentage))
		hours += e.Hours
	}
	labor = labor.Round(2)
	profit := revenue.Sub(labor)
	avg := decimal.Zero
	if hours > 0 {
		avg = revenue.Div(decimal.NewFromFloat(hours)).Round(2)
	}
	return &DetailedProfitability{
		TotalRevenue:        revenue,
		TotalLaborCost:      labor,
		TotalProfit:         profit,
		ProfitMargin:        MarginPercent(profit, revenue),
		TotalHours:          hours,
		AverageHourlyRate:   avg,
		Currency:            opts.Currency,
		LaborCostPercentage: opts.LaborCostPercentage.InexactFloat64(),
	}
}
