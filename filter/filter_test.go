package filter

import (
	"testing"

	"gdbx/keyenc"
)

func i32(n int64) keyenc.Value { return keyenc.Value{Type: keyenc.Int32, I64: n} }
func nullI32() keyenc.Value    { return keyenc.NullValue(keyenc.Int32) }
func str(s string) keyenc.Value {
	return keyenc.Value{Type: keyenc.String, Str: s}
}

func TestNewRejectsBetweenInNotIn(t *testing.T) {
	for _, op := range []Op{Between, In, NotIn} {
		if _, err := New("age", keyenc.Int32, true, op, i32(1)); err == nil {
			t.Fatalf("expected New to reject op %s", op)
		}
	}
}

func TestNewRejectsStringOnlyOpsOnNonStringField(t *testing.T) {
	for _, op := range []Op{StartsWith, EndsWith, Contains} {
		if _, err := New("age", keyenc.Int32, false, op, i32(1)); err == nil {
			t.Fatalf("expected New to reject %s on a non-String field", op)
		}
	}
}

func TestEvaluateCoreOrderingOps(t *testing.T) {
	f, err := New("age", keyenc.Int32, true, GreaterThanOrEqual, i32(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !evaluateCore(f, i32(10), true) {
		t.Fatalf("expected 10 >= 10 to match")
	}
	if evaluateCore(f, i32(9), true) {
		t.Fatalf("expected 9 >= 10 to not match")
	}
	if evaluateCore(f, nullI32(), true) {
		t.Fatalf("expected null >= 10 to not match (null sorts least)")
	}
}

func TestEvaluateCoreNullSortsLeastForLessThan(t *testing.T) {
	f, err := New("age", keyenc.Int32, true, LessThan, i32(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !evaluateCore(f, nullI32(), true) {
		t.Fatalf("expected null < 10 to match: null sorts strictly least")
	}
}

func TestEvaluateCoreMissingFieldNeverMatches(t *testing.T) {
	f, err := New("age", keyenc.Int32, true, NotEquals, i32(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if evaluateCore(f, keyenc.Value{}, false) {
		t.Fatalf("expected a missing field to never match, even NotEquals")
	}
}

func TestEvaluateCoreBetween(t *testing.T) {
	f, err := NewBetween("age", keyenc.Int32, true, i32(100), i32(300))
	if err != nil {
		t.Fatalf("NewBetween: %v", err)
	}
	cases := []struct {
		v    keyenc.Value
		want bool
	}{
		{i32(99), false},
		{i32(100), true},
		{i32(200), true},
		{i32(300), true},
		{i32(301), false},
	}
	for _, c := range cases {
		if got := evaluateCore(f, c.v, true); got != c.want {
			t.Fatalf("Between(100,300) on %v = %v, want %v", c.v.I64, got, c.want)
		}
	}
}

func TestEvaluateCoreInNotIn(t *testing.T) {
	in, err := NewIn("status", keyenc.Int32, true, []keyenc.Value{i32(1), i32(3), i32(5)})
	if err != nil {
		t.Fatalf("NewIn: %v", err)
	}
	if !evaluateCore(in, i32(3), true) {
		t.Fatalf("expected 3 in {1,3,5}")
	}
	if evaluateCore(in, i32(4), true) {
		t.Fatalf("expected 4 not in {1,3,5}")
	}

	notIn, err := NewNotIn("status", keyenc.Int32, []keyenc.Value{i32(1), i32(3), i32(5)})
	if err != nil {
		t.Fatalf("NewNotIn: %v", err)
	}
	if evaluateCore(notIn, i32(3), true) {
		t.Fatalf("expected NotIn to reject a member")
	}
	if !evaluateCore(notIn, i32(4), true) {
		t.Fatalf("expected NotIn to accept a non-member")
	}
}

func TestEvaluateCoreStringOps(t *testing.T) {
	sw, _ := New("name", keyenc.String, true, StartsWith, str("Ali"))
	if !evaluateCore(sw, str("Alice"), true) {
		t.Fatalf("expected StartsWith match")
	}
	if evaluateCore(sw, str("Bob"), true) {
		t.Fatalf("expected StartsWith non-match")
	}

	contains, _ := New("name", keyenc.String, false, Contains, str("lic"))
	if !evaluateCore(contains, str("Alice"), true) {
		t.Fatalf("expected Contains match")
	}
}

func TestIndexKeyBytesAndPriority(t *testing.T) {
	eq, _ := New("age", keyenc.Int32, true, Equals, i32(42))
	if !eq.Op.IndexEligible() || eq.Op.Priority() != 1 {
		t.Fatalf("Equals should be index-eligible with priority 1")
	}
	if _, ok := eq.IndexKeyBytes(); !ok {
		t.Fatalf("expected IndexKeyBytes for Equals")
	}

	between, _ := NewBetween("age", keyenc.Int32, true, i32(1), i32(9))
	lo, ok := between.IndexKeyBytes()
	if !ok {
		t.Fatalf("expected IndexKeyBytes for Between")
	}
	hi, ok := between.IndexKeyEndBytes()
	if !ok {
		t.Fatalf("expected IndexKeyEndBytes for Between")
	}
	if keyenc.Compare(lo, hi) >= 0 {
		t.Fatalf("expected Between lo < hi key bytes")
	}

	notEq, _ := New("age", keyenc.Int32, true, NotEquals, i32(1))
	if notEq.Op.IndexEligible() {
		t.Fatalf("NotEquals must never be index-eligible")
	}
}

func TestAllIndexKeyBytesPreservesOrder(t *testing.T) {
	in, _ := NewIn("status", keyenc.Int32, true, []keyenc.Value{i32(5), i32(1), i32(3)})
	keys, ok := in.AllIndexKeyBytes()
	if !ok || len(keys) != 3 {
		t.Fatalf("expected 3 index keys, got %d ok=%v", len(keys), ok)
	}
	want, _ := keyenc.Encode(i32(5))
	if keyenc.Compare(keys[0], want) != 0 {
		t.Fatalf("expected input order preserved, first key should encode 5")
	}
}
