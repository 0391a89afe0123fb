package analytics

import (
	"math"
	"sort"
)

// Session length boundaries in minutes.
const (
	deepWorkMinutes   = 120.0
	fragmentedMinutes = 30.0
)

// TimePatternAnalyzer extracts temporal work patterns from canonical
// entries that carry start timestamps (detailed v3 sources). Entries
// without a timestamp cannot contribute and are ignored.
type TimePatternAnalyzer struct{}

// Analyze builds time tracking insights for one workspace and period.
// Histograms are weighted by accumulated duration, not entry count, so
// one long afternoon session outweighs many short morning ones. Empty
// input yields zeroed metrics and empty lists.
func (TimePatternAnalyzer) Analyze(entries []CanonicalEntry, workspaceID int64, dateRange string) *TimeTrackingInsights {
	insights := &TimeTrackingInsights{
		WorkspaceID:             workspaceID,
		DateRange:               dateRange,
		PeakProductivityHours:   []int{},
		PeakProductivityDays:    []string{},
		ProjectTimeDistribution: map[string]float64{},
		MostProductiveProjects:  []string{},
	}

	hourWeights := newWeightedCounter[int]()
	dayWeights := newWeightedCounter[string]()
	projectHours := newWeightedCounter[string]()
	days := make(map[string]struct{})

	var sessions int
	var totalMinutes float64
	var deepWork, fragmented int

	for _, e := range entries {
		if e.Start.IsZero() {
			continue
		}
		duration := MillisecondsToHours(e.DurationMS)
		hourWeights.add(e.Start.Hour(), duration)
		dayWeights.add(e.Start.Weekday().String(), duration)
		projectHours.add(e.ProjectName, duration)
		days[e.Start.Format("2006-01-02")] = struct{}{}

		minutes := float64(e.DurationMS) / 60000
		totalMinutes += minutes
		sessions++
		if minutes >= deepWorkMinutes {
			deepWork++
		}
		if minutes < fragmentedMinutes {
			fragmented++
		}
	}

	if sessions == 0 {
		return insights
	}

	insights.PeakProductivityHours = hourWeights.top(8)
	insights.PeakProductivityDays = dayWeights.top(3)
	insights.AverageSessionLength = totalMinutes / float64(sessions)
	insights.DeepWorkSessions = deepWork
	insights.FragmentedTimePercentage = Percent(float64(fragmented), float64(sessions))
	insights.ContextSwitchingFrequency = float64(sessions) / float64(len(days))

	totalProjectHours := projectHours.total()
	if totalProjectHours > 0 {
		for _, project := range projectHours.order {
			share := projectHours.totals[project] / totalProjectHours * 100
			insights.ProjectTimeDistribution[project] = math.Round(share*10) / 10
		}
	}
	insights.MostProductiveProjects = projectHours.top(5)

	return insights
}

// weightedCounter accumulates float weights per key and remembers key
// insertion order, so ranking ties resolve by first appearance the way
// insertion-ordered counters do.
type weightedCounter[K comparable] struct {
	order  []K
	totals map[K]float64
}

func newWeightedCounter[K comparable]() *weightedCounter[K] {
	return &weightedCounter[K]{totals: make(map[K]float64)}
}

func (c *weightedCounter[K]) add(key K, weight float64) {
	if _, ok := c.totals[key]; !ok {
		c.order = append(c.order, key)
	}
	c.totals[key] += weight
}

func (c *weightedCounter[K]) total() float64 {
	var sum float64
	for _, v := range c.totals {
		sum += v
	}
	return sum
}

// top returns up to n keys ranked by descending weight, ties in
// insertion order.
func (c *weightedCounter[K]) top(n int) []K {
	ranked := make([]K, len(c.order))
	copy(ranked, c.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.totals[ranked[i]] > c.totals[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
