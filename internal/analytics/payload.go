package analytics

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Raw payload shapes for the three supported schemas. Fields not needed
// by any computation are left undeclared so schema drift upstream cannot
// break decoding.

// ReportPayload is the grouped report shape shared by the summary and
// insights schemas: workspace totals plus one group per entity.
type ReportPayload struct {
	TotalGrand      int64           `json:"total_grand"`
	TotalBillable   int64           `json:"total_billable"`
	TotalCurrencies []CurrencyTotal `json:"total_currencies"`
	Data            []ReportGroup   `json:"data"`
}

// CurrencyAmount returns the payload-level total for one currency code,
// zero when the currency is absent.
func (p *ReportPayload) CurrencyAmount(currency string) decimal.Decimal {
	return currencyAmount(p.TotalCurrencies, currency)
}

// ReportGroup is one grouped row: a project, client, or user depending
// on the grouping the payload was requested with. A nil ID marks time
// not attributed to any entity.
type ReportGroup struct {
	ID              *int64          `json:"id"`
	Title           GroupTitle      `json:"title"`
	Time            int64           `json:"time"`
	TotalCurrencies []CurrencyTotal `json:"total_currencies"`
	Items           []ReportItem    `json:"items"`
}

// CurrencyAmount returns the group's total for one currency code.
func (g *ReportGroup) CurrencyAmount(currency string) decimal.Decimal {
	return currencyAmount(g.TotalCurrencies, currency)
}

// CurrencySum returns the group's total across every listed currency.
// Single-currency workspaces are the norm, so summing is the pragmatic
// reading when no target currency applies.
func (g *ReportGroup) CurrencySum() decimal.Decimal {
	total := decimal.Zero
	for _, c := range g.TotalCurrencies {
		total = total.Add(SafeDecimal(c.Amount))
	}
	return total
}

// GroupTitle carries the display names for a group or sub-entry. Some
// payload variants flatten the title to a bare string, which lands in
// Name.
type GroupTitle struct {
	Project   string `json:"project"`
	Client    string `json:"client"`
	User      string `json:"user"`
	TimeEntry string `json:"time_entry"`
	Name      string `json:"name"`
}

// UnmarshalJSON accepts both the object form and the flattened string
// form of a title.
func (t *GroupTitle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = GroupTitle{Name: s}
		return nil
	}
	type plain GroupTitle
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = GroupTitle(p)
	return nil
}

// ReportItem is one sub-entry inside a group: tracked milliseconds and
// the labor-cost rate in effect for that slice of time. Items carry
// their revenue under "currencies", unlike the group-level
// "total_currencies".
type ReportItem struct {
	Title      GroupTitle      `json:"title"`
	Time       int64           `json:"time"`
	Rate       float64         `json:"rate"`
	Currencies []CurrencyTotal `json:"currencies"`
}

// CurrencySum returns the item's revenue across every listed currency.
func (i *ReportItem) CurrencySum() decimal.Decimal {
	total := decimal.Zero
	for _, c := range i.Currencies {
		total = total.Add(SafeDecimal(c.Amount))
	}
	return total
}

// CurrencyTotal is one currency's share of a revenue total.
type CurrencyTotal struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

func currencyAmount(totals []CurrencyTotal, currency string) decimal.Decimal {
	for _, c := range totals {
		if c.Currency == currency {
			return SafeDecimal(c.Amount)
		}
	}
	return decimal.Zero
}

// DetailedEntry is one row of the detailed v3 schema: a flat entry with
// billing amounts in cents and the underlying time entries in seconds.
type DetailedEntry struct {
	UserID              int64               `json:"user_id"`
	Username            string              `json:"username"`
	ProjectID           *int64              `json:"project_id"`
	ProjectName         string              `json:"project_name"`
	ClientID            *int64              `json:"client_id"`
	ClientName          string              `json:"client_name"`
	Description         string              `json:"description"`
	Billable            bool                `json:"billable"`
	BillableAmountCents int64               `json:"billable_amount_in_cents"`
	HourlyRateCents     int64               `json:"hourly_rate_in_cents"`
	Currency            string              `json:"currency"`
	TimeEntries         []DetailedTimeEntry `json:"time_entries"`
}

// DetailedTimeEntry is one concrete tracked interval of a DetailedEntry.
type DetailedTimeEntry struct {
	ID      int64     `json:"id"`
	Start   time.Time `json:"start"`
	Stop    time.Time `json:"stop"`
	Seconds int64     `json:"seconds"`
}
