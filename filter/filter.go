// Package filter implements the tagged filter variant of spec.md §4.8 and
// §9's design note: a single Filter carries its operation kind and a typed
// payload, replacing the source's runtime-reflected dispatch. Two parallel
// families build on this core — Typed (typed.go) and Dynamic (dynamic.go) —
// plus collection-valued "any match" mirrors (collection.go).
//
// Null handling: a field's value and a filter's comparison payload are
// always encoded through keyenc before comparing, so null sorts strictly
// least for every operation (GreaterThan/LessThan included), matching
// keyenc's own "null always least" invariant. This resolves spec.md §9's
// open question on null consistency: one rule, shared by both families,
// rather than a per-family special case.
package filter

import (
	"fmt"
	"strings"

	"gdbx/keyenc"
)

// Filter is the shared tagged representation: field identity, operation,
// and a typed payload (single value, range, or set). It carries no
// document-access behavior itself — TypedFilter and DynamicFilter wrap it
// with the two ways of resolving a document's field value.
type Filter struct {
	FieldName string
	FieldType keyenc.FieldType
	IsIndexed bool
	Op        Op

	value keyenc.Value
	lo    keyenc.Value
	hi    keyenc.Value
	set   []keyenc.Value
}

// New builds a single-value filter for every op except Between/In/NotIn,
// which have dedicated constructors (§4.8 validation: "constructed via
// dedicated filter variants, not the generic single-value one").
func New(fieldName string, fieldType keyenc.FieldType, isIndexed bool, op Op, value keyenc.Value) (*Filter, error) {
	switch op {
	case Between, In, NotIn:
		return nil, fmt.Errorf("filter: %s must be constructed via its dedicated constructor", op)
	}
	if err := validateStringOnlyOp(op, fieldType); err != nil {
		return nil, err
	}
	if !fieldType.Indexable() {
		return nil, fmt.Errorf("filter: field type %s cannot be filtered", fieldType)
	}
	return &Filter{FieldName: fieldName, FieldType: fieldType, IsIndexed: isIndexed, Op: op, value: value}, nil
}

// NewBetween builds an inclusive-both-ends range filter.
func NewBetween(fieldName string, fieldType keyenc.FieldType, isIndexed bool, lo, hi keyenc.Value) (*Filter, error) {
	if !fieldType.Indexable() {
		return nil, fmt.Errorf("filter: field type %s cannot be filtered", fieldType)
	}
	return &Filter{FieldName: fieldName, FieldType: fieldType, IsIndexed: isIndexed, Op: Between, lo: lo, hi: hi}, nil
}

// NewIn builds a set-membership filter.
func NewIn(fieldName string, fieldType keyenc.FieldType, isIndexed bool, values []keyenc.Value) (*Filter, error) {
	if !fieldType.Indexable() {
		return nil, fmt.Errorf("filter: field type %s cannot be filtered", fieldType)
	}
	return &Filter{FieldName: fieldName, FieldType: fieldType, IsIndexed: isIndexed, Op: In, set: values}, nil
}

// NewNotIn builds a set-exclusion filter. Never index-eligible (§4.9).
func NewNotIn(fieldName string, fieldType keyenc.FieldType, values []keyenc.Value) (*Filter, error) {
	if !fieldType.Indexable() {
		return nil, fmt.Errorf("filter: field type %s cannot be filtered", fieldType)
	}
	return &Filter{FieldName: fieldName, FieldType: fieldType, Op: NotIn, set: values}, nil
}

func validateStringOnlyOp(op Op, t keyenc.FieldType) error {
	switch op {
	case StartsWith, EndsWith, Contains:
		if t != keyenc.String {
			return fmt.Errorf("filter: %s is only valid for String fields, got %s", op, t)
		}
	}
	return nil
}

// compareValue orders two values of the same FieldType via their
// order-preserving key encoding, so comparison semantics always agree with
// what the secondary index itself would return for a range scan.
func compareValue(a, b keyenc.Value) int {
	ae, erra := keyenc.Encode(a)
	be, errb := keyenc.Encode(b)
	if erra != nil || errb != nil {
		return 0
	}
	return keyenc.Compare(ae, be)
}

// evaluateCore applies f's operation to an already-resolved value. ok
// false means the accessor/resolver found no value at all (the field is
// absent from the document, distinct from an explicit null) — such a
// document never matches, for any operation.
func evaluateCore(f *Filter, v keyenc.Value, ok bool) bool {
	if !ok {
		return false
	}
	switch f.Op {
	case Equals:
		return compareValue(v, f.value) == 0
	case NotEquals:
		return compareValue(v, f.value) != 0
	case GreaterThan:
		return compareValue(v, f.value) > 0
	case GreaterThanOrEqual:
		return compareValue(v, f.value) >= 0
	case LessThan:
		return compareValue(v, f.value) < 0
	case LessThanOrEqual:
		return compareValue(v, f.value) <= 0
	case StartsWith:
		return !v.Null && strings.HasPrefix(v.Str, f.value.Str)
	case EndsWith:
		return !v.Null && strings.HasSuffix(v.Str, f.value.Str)
	case Contains:
		return !v.Null && strings.Contains(v.Str, f.value.Str)
	case Between:
		return compareValue(v, f.lo) >= 0 && compareValue(v, f.hi) <= 0
	case In:
		for _, c := range f.set {
			if compareValue(v, c) == 0 {
				return true
			}
		}
		return false
	case NotIn:
		for _, c := range f.set {
			if compareValue(v, c) == 0 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IndexKeyBytes returns the encoded lower-bound key an index lookup should
// start from for this filter, when one exists (Equals/Between's low end/
// the ordered-comparison ops/StartsWith's prefix). ok is false for ops an
// index lookup can't drive from a single bound (NotEquals, In, NotIn,
// EndsWith, Contains).
func (f *Filter) IndexKeyBytes() ([]byte, bool) {
	switch f.Op {
	case Equals, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		enc, err := keyenc.Encode(f.value)
		if err != nil {
			return nil, false
		}
		return enc, true
	case Between:
		enc, err := keyenc.Encode(f.lo)
		if err != nil {
			return nil, false
		}
		return enc, true
	case StartsWith:
		return keyenc.EncodePrefix(f.value.Str), true
	default:
		return nil, false
	}
}

// IndexKeyEndBytes returns the encoded exclusive upper-bound key for
// range-shaped filters, when a finite one exists.
func (f *Filter) IndexKeyEndBytes() ([]byte, bool) {
	switch f.Op {
	case Between:
		enc, err := keyenc.Encode(f.hi)
		if err != nil {
			return nil, false
		}
		return enc, true
	case StartsWith:
		return keyenc.PrefixEnd(keyenc.EncodePrefix(f.value.Str))
	default:
		return nil, false
	}
}

// AllIndexKeyBytes returns every encoded value key for an In filter, in
// input order, for the executor's "one SearchByFieldValue per value"
// lookup (§4.10). ok is false for every other op.
func (f *Filter) AllIndexKeyBytes() ([][]byte, bool) {
	if f.Op != In {
		return nil, false
	}
	out := make([][]byte, 0, len(f.set))
	for _, v := range f.set {
		enc, err := keyenc.Encode(v)
		if err != nil {
			return nil, false
		}
		out = append(out, enc)
	}
	return out, true
}

// Bounds exposes a Between filter's raw low/high values, for callers
// composing a compound range alongside other fields.
func (f *Filter) Bounds() (lo, hi keyenc.Value, ok bool) {
	if f.Op != Between {
		return keyenc.Value{}, keyenc.Value{}, false
	}
	return f.lo, f.hi, true
}

// Value exposes the single comparison value carried by a non-Between,
// non-set filter.
func (f *Filter) Value() (keyenc.Value, bool) {
	switch f.Op {
	case Between, In, NotIn:
		return keyenc.Value{}, false
	default:
		return f.value, true
	}
}

// Values exposes the set carried by an In/NotIn filter.
func (f *Filter) Values() ([]keyenc.Value, bool) {
	switch f.Op {
	case In, NotIn:
		return f.set, true
	default:
		return nil, false
	}
}

// EncodedSize returns the byte length of this filter's single comparison
// value once encoded as an index-key component, for sizing a compound key
// buffer before writing it (§4.8's encoded_size hook).
func (f *Filter) EncodedSize() (int, error) {
	v, ok := f.Value()
	if !ok {
		return 0, fmt.Errorf("filter: EncodedSize requires a single-value filter, got %s", f.Op)
	}
	enc, err := keyenc.Encode(v)
	if err != nil {
		return 0, err
	}
	return len(enc), nil
}

// EncodedSizeForPrefix returns the size of a StartsWith filter's prefix
// component (excluding any terminator), for sizing the variable-length
// tail of a compound key (§4.8's encoded_size_for_prefix hook).
func (f *Filter) EncodedSizeForPrefix() (int, error) {
	if f.Op != StartsWith {
		return 0, fmt.Errorf("filter: EncodedSizeForPrefix requires a StartsWith filter, got %s", f.Op)
	}
	return len(keyenc.EncodePrefix(f.value.Str)), nil
}

// EncodedSizeMax returns the largest encoded size any value of fieldType
// can produce, or -1 when the type is variable-length (String) and must be
// sized from the actual value instead (§4.8's encoded_size_max hook).
func EncodedSizeMax(fieldType keyenc.FieldType) int {
	switch fieldType {
	case keyenc.Int8, keyenc.UInt8, keyenc.Bool:
		return 2
	case keyenc.Int16, keyenc.UInt16, keyenc.Char:
		return 3
	case keyenc.Int32, keyenc.UInt32, keyenc.Single, keyenc.DateOnly:
		return 5
	case keyenc.Int64, keyenc.UInt64, keyenc.Double, keyenc.DateTime, keyenc.TimeOnly, keyenc.TimeSpan:
		return 9
	case keyenc.Decimal, keyenc.Guid:
		return 17
	case keyenc.DateTimeOffset:
		return 17
	case keyenc.String:
		return -1
	default:
		return -1
	}
}

// WriteEncoded appends this filter's single comparison value's encoding to
// buf, for composing a compound index key across several filters in
// sequence (§4.8's compound-encoding writer hooks).
func (f *Filter) WriteEncoded(buf []byte) ([]byte, error) {
	v, ok := f.Value()
	if !ok {
		return buf, fmt.Errorf("filter: WriteEncoded requires a single-value filter, got %s", f.Op)
	}
	enc, err := keyenc.Encode(v)
	if err != nil {
		return buf, err
	}
	return append(buf, enc...), nil
}
