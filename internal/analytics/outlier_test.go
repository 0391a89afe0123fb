package analytics

import "testing"

func TestHourCap_PassThroughBelowThreshold(t *testing.T) {
	guard := DefaultHourCap()

	total, billable, nonBillable, capped := guard.Apply(100, 60)
	if capped {
		t.Error("Apply(100, 60) reported capped, want pass-through")
	}
	if total != 100 || billable != 60 || nonBillable != 40 {
		t.Errorf("Apply(100, 60) = (%v, %v, %v), want (100, 60, 40)", total, billable, nonBillable)
	}

	// Exactly the threshold is still plausible.
	total, _, _, capped = guard.Apply(168, 168)
	if capped || total != 168 {
		t.Errorf("Apply(168, 168) = (%v, capped=%v), want (168, false)", total, capped)
	}
}

func TestHourCap_CapsImplausibleTotals(t *testing.T) {
	guard := DefaultHourCap()

	total, billable, nonBillable, capped := guard.Apply(200, 150)
	if !capped {
		t.Fatal("Apply(200, 150) did not cap")
	}
	if total != 80 {
		t.Errorf("capped total = %v, want 80", total)
	}
	if billable != 80 {
		t.Errorf("capped billable = %v, want 80", billable)
	}
	if nonBillable != 0 {
		t.Errorf("capped non-billable = %v, want 0", nonBillable)
	}
}

func TestHourCap_BillableNeverExceedsTotal(t *testing.T) {
	guard := DefaultHourCap()

	_, billable, _, _ := guard.Apply(500, 40)
	if billable != 40 {
		t.Errorf("billable = %v, want 40 (below ceiling, unchanged)", billable)
	}

	total, billable, _, _ := guard.Apply(500, 499)
	if billable > total {
		t.Errorf("billable %v exceeds total %v after capping", billable, total)
	}
}

func TestHourCap_CustomBoundaries(t *testing.T) {
	guard := HourCap{Threshold: 40, Ceiling: 35}

	total, billable, nonBillable, capped := guard.Apply(50, 45)
	if !capped || total != 35 || billable != 35 || nonBillable != 0 {
		t.Errorf("Apply(50, 45) = (%v, %v, %v, %v), want (35, 35, 0, true)",
			total, billable, nonBillable, capped)
	}
}
