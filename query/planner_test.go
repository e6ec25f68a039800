package query

import (
	"testing"

	"gdbx/catalog"
	"gdbx/filter"
	"gdbx/keyenc"
)

func mustFilter(t *testing.T, fieldName string, ft keyenc.FieldType, indexed bool, op filter.Op, v keyenc.Value) *filter.Filter {
	t.Helper()
	f, err := filter.New(fieldName, ft, indexed, op, v)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	return f
}

func TestPlannerPicksPrimaryKeyRange(t *testing.T) {
	coll := catalog.CollectionEntry{Name: "u"}
	f := mustFilter(t, "Id", keyenc.Int32, false, filter.GreaterThanOrEqual, keyenc.Value{Type: keyenc.Int32, I64: 10})

	p := NewPlanner()
	plan := p.Plan([]*filter.Filter{f}, coll)

	if plan.Kind != PrimaryKeyRange {
		t.Fatalf("expected PrimaryKeyRange, got %s", plan.Kind)
	}
	if plan.LoDocID == nil || *plan.LoDocID != 10 || plan.HiDocID != nil {
		t.Fatalf("expected [10, MAX), got lo=%v hi=%v", plan.LoDocID, plan.HiDocID)
	}
	if plan.ConsumedFilterIndex != 0 {
		t.Fatalf("expected filter 0 consumed, got %d", plan.ConsumedFilterIndex)
	}
}

func TestPlannerPrimaryKeyBetween(t *testing.T) {
	coll := catalog.CollectionEntry{Name: "u"}
	lo := keyenc.Value{Type: keyenc.Int32, I64: 10}
	hi := keyenc.Value{Type: keyenc.Int32, I64: 12}
	f, err := filter.NewBetween("Id", keyenc.Int32, false, lo, hi)
	if err != nil {
		t.Fatalf("NewBetween: %v", err)
	}

	plan := NewPlanner().Plan([]*filter.Filter{f}, coll)
	if plan.Kind != PrimaryKeyRange || *plan.LoDocID != 10 || *plan.HiDocID != 12 {
		t.Fatalf("expected PrimaryKeyRange [10,12], got %+v", plan)
	}
}

func TestPlannerPrefersBestPriorityIndex(t *testing.T) {
	coll := catalog.CollectionEntry{
		Name: "docs",
		Indexes: []catalog.IndexDefinition{
			{Name: "age_idx", FieldPath: "Age"},
			{Name: "name_idx", FieldPath: "Name"},
		},
	}
	ageRange := mustFilter(t, "Age", keyenc.Int32, true, filter.GreaterThan, keyenc.Value{Type: keyenc.Int32, I64: 5})
	nameEq := mustFilter(t, "Name", keyenc.String, true, filter.Equals, keyenc.Value{Type: keyenc.String, Str: "Bob"})

	plan := NewPlanner().Plan([]*filter.Filter{ageRange, nameEq}, coll)
	if plan.Kind != SecondaryIndex {
		t.Fatalf("expected SecondaryIndex, got %s", plan.Kind)
	}
	if plan.ConsumedFilterIndex != 1 {
		t.Fatalf("expected Equals (priority 1) to beat GreaterThan (priority 5), got filter %d", plan.ConsumedFilterIndex)
	}
	if plan.Explain != "SecondaryIndex/Equals" {
		t.Fatalf("unexpected explain: %s", plan.Explain)
	}
}

func TestPlannerFallsBackToFullScan(t *testing.T) {
	coll := catalog.CollectionEntry{Name: "docs"}
	f := mustFilter(t, "Name", keyenc.String, false, filter.Contains, keyenc.Value{Type: keyenc.String, Str: "x"})

	plan := NewPlanner().Plan([]*filter.Filter{f}, coll)
	if plan.Kind != FullScan {
		t.Fatalf("expected FullScan, got %s", plan.Kind)
	}
	if plan.ConsumedFilterIndex != -1 {
		t.Fatalf("expected no filter consumed on a full scan")
	}
}

func TestPlannerIgnoresUnindexedField(t *testing.T) {
	coll := catalog.CollectionEntry{Name: "docs"} // no indexes at all
	f := mustFilter(t, "Age", keyenc.Int32, true, filter.Equals, keyenc.Value{Type: keyenc.Int32, I64: 5})

	plan := NewPlanner().Plan([]*filter.Filter{f}, coll)
	if plan.Kind != FullScan {
		t.Fatalf("expected FullScan when no catalog index backs the field, got %s", plan.Kind)
	}
}
