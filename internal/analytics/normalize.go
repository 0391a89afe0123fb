package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
)

// Normalizer reduces raw report payloads to canonical entries. It is the
// only place that understands raw payload shapes: every unit conversion,
// currency fixing, and name fallback happens here, once, and nothing
// downstream re-derives them.
//
// Dropped counts sub-entries discarded for missing grouping ids, for
// callers that surface skip totals.
type Normalizer struct {
	Currency string       // reporting currency for revenue extraction
	Log      *slog.Logger // skip diagnostics; nil falls back to slog.Default
	Dropped  int
}

// Normalize decodes a raw payload of the given schema and reduces it to
// canonical entries grouped along dim. Decode failures are terminal; a
// malformed sub-entry inside an otherwise valid payload is skipped with
// a warning instead.
func (n *Normalizer) Normalize(raw []byte, schema Schema, dim Dimension) ([]CanonicalEntry, error) {
	switch schema {
	case SchemaSummary, SchemaInsights:
		var p ReportPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", schema, err)
		}
		return n.NormalizeReport(&p, schema, dim), nil
	case SchemaDetailedV3:
		entries, err := DecodeDetailedPayload(raw)
		if err != nil {
			return nil, err
		}
		return n.NormalizeDetailed(entries, dim), nil
	}
	return nil, fmt.Errorf("unknown payload schema %q", schema)
}

// DecodeDetailedPayload accepts detailed v3 rows either as a bare array
// or wrapped in an object's data field.
func DecodeDetailedPayload(raw []byte) ([]DetailedEntry, error) {
	var entries []DetailedEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}
	var wrapped struct {
		Data []DetailedEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode detailed_v3 payload: %w", err)
	}
	return wrapped.Data, nil
}

// NormalizeReport converts a grouped summary or insights payload. Each
// group item becomes one canonical entry carrying the item's hours and
// labor rate; the group's revenue (insights only) rides on the first
// entry so per-entity revenue sums stay exact. A group without items
// still emits one group-level entry so its time and revenue survive.
func (n *Normalizer) NormalizeReport(p *ReportPayload, schema Schema, dim Dimension) []CanonicalEntry {
	out := make([]CanonicalEntry, 0, len(p.Data))
	for i, g := range p.Data {
		if g.ID == nil {
			n.skip("skipping group without id", "schema", schema, "dimension", dim, "group_index", i)
			continue
		}
		name := groupEntityName(g, dim)
		var clientName string
		if dim == DimensionProject {
			clientName = g.Title.Client
		}
		revenue := decimal.Zero
		if schema == SchemaInsights {
			revenue = g.CurrencyAmount(n.Currency)
		}

		if len(g.Items) == 0 {
			hours := MillisecondsToHours(g.Time)
			out = append(out, CanonicalEntry{
				EntityID:      *g.ID,
				EntityName:    name,
				ClientName:    clientName,
				Hours:         hours,
				BillableHours: hours,
				RateBasis:     RateBasisLabor,
				Revenue:       revenue,
			})
			continue
		}

		for j, item := range g.Items {
			hours := MillisecondsToHours(item.Time)
			e := CanonicalEntry{
				EntityID:      *g.ID,
				EntityName:    name,
				ClientName:    clientName,
				Hours:         hours,
				BillableHours: hours,
				Rate:          SafeDecimal(item.Rate),
				RateBasis:     RateBasisLabor,
				Entries:       1,
			}
			if j == 0 {
				e.Revenue = revenue
			}
			out = append(out, e)
		}
	}
	return out
}

// NormalizeDetailed converts detailed v3 rows. Each underlying time
// entry becomes one canonical entry at full second resolution with the
// row's billing rate; the row's billable amount rides on the first.
func (n *Normalizer) NormalizeDetailed(entries []DetailedEntry, dim Dimension) []CanonicalEntry {
	out := make([]CanonicalEntry, 0, len(entries))
	for i, de := range entries {
		id, name, ok := detailedEntity(de, dim)
		if !ok {
			n.skip("skipping detailed entry without grouping id", "dimension", dim, "row", i)
			continue
		}
		rate := DecimalFromCents(de.HourlyRateCents)
		amount := DecimalFromCents(de.BillableAmountCents)
		project := projectLabel(de)

		if len(de.TimeEntries) == 0 {
			out = append(out, CanonicalEntry{
				EntityID:    id,
				EntityName:  name,
				ClientName:  de.ClientName,
				ProjectName: project,
				Rate:        rate,
				RateBasis:   RateBasisBilling,
				Revenue:     amount,
			})
			continue
		}

		for j, te := range de.TimeEntries {
			e := CanonicalEntry{
				EntityID:    id,
				EntityName:  name,
				ClientName:  de.ClientName,
				ProjectName: project,
				Start:       te.Start,
				DurationMS:  te.Seconds * 1000,
				Hours:       SecondsToHours(te.Seconds),
				Rate:        rate,
				RateBasis:   RateBasisBilling,
				Entries:     1,
			}
			if de.Billable {
				e.BillableHours = e.Hours
			}
			if j == 0 {
				e.Revenue = amount
			}
			out = append(out, e)
		}
	}
	return out
}

func (n *Normalizer) skip(msg string, args ...any) {
	n.Dropped++
	n.logger().Warn(msg, args...)
}

func (n *Normalizer) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

// groupEntityName resolves a group's display name: the dimension's title
// field first, then the generic name field, then the id as a string.
// Callers guarantee a non-nil id.
func groupEntityName(g ReportGroup, dim Dimension) string {
	var titled string
	switch dim {
	case DimensionProject:
		titled = g.Title.Project
	case DimensionClient:
		titled = g.Title.Client
	case DimensionUser:
		titled = g.Title.User
	}
	if titled != "" {
		return titled
	}
	if g.Title.Name != "" {
		return g.Title.Name
	}
	return strconv.FormatInt(*g.ID, 10)
}

func detailedEntity(de DetailedEntry, dim Dimension) (int64, string, bool) {
	switch dim {
	case DimensionProject:
		if de.ProjectID == nil {
			return 0, "", false
		}
		return *de.ProjectID, fallbackName(de.ProjectName, *de.ProjectID), true
	case DimensionClient:
		if de.ClientID == nil {
			return 0, "", false
		}
		return *de.ClientID, fallbackName(de.ClientName, *de.ClientID), true
	default:
		if de.UserID == 0 {
			return 0, "", false
		}
		return de.UserID, fallbackName(de.Username, de.UserID), true
	}
}

func fallbackName(name string, id int64) string {
	if name != "" {
		return name
	}
	return strconv.FormatInt(id, 10)
}

// projectLabel names the project bucket for pattern analysis. Entries
// without a project share one explicit bucket.
func projectLabel(de DetailedEntry) string {
	if de.ProjectName != "" {
		return de.ProjectName
	}
	if de.ProjectID != nil {
		return strconv.FormatInt(*de.ProjectID, 10)
	}
	return "No Project"
}
