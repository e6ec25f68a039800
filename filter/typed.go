package filter

import "gdbx/keyenc"

// Accessor resolves a field's value out of a caller's document type. The
// caller supplies this once per field at construction time instead of the
// source's runtime type tests (§9 design note) — typically a small closure
// over a generated or hand-written TypeInfo accessor table.
type Accessor func(doc any) (keyenc.Value, bool)

// TypedFilter pairs a Filter with the accessor that resolves it against a
// caller's concrete document type.
type TypedFilter struct {
	*Filter
	accessor Accessor
}

// NewTyped builds a single-value Typed filter.
func NewTyped(fieldName string, fieldType keyenc.FieldType, isIndexed bool, op Op, value keyenc.Value, accessor Accessor) (*TypedFilter, error) {
	base, err := New(fieldName, fieldType, isIndexed, op, value)
	if err != nil {
		return nil, err
	}
	return &TypedFilter{Filter: base, accessor: accessor}, nil
}

// NewTypedBetween builds a Between Typed filter.
func NewTypedBetween(fieldName string, fieldType keyenc.FieldType, isIndexed bool, lo, hi keyenc.Value, accessor Accessor) (*TypedFilter, error) {
	base, err := NewBetween(fieldName, fieldType, isIndexed, lo, hi)
	if err != nil {
		return nil, err
	}
	return &TypedFilter{Filter: base, accessor: accessor}, nil
}

// NewTypedIn builds an In Typed filter.
func NewTypedIn(fieldName string, fieldType keyenc.FieldType, isIndexed bool, values []keyenc.Value, accessor Accessor) (*TypedFilter, error) {
	base, err := NewIn(fieldName, fieldType, isIndexed, values)
	if err != nil {
		return nil, err
	}
	return &TypedFilter{Filter: base, accessor: accessor}, nil
}

// NewTypedNotIn builds a NotIn Typed filter.
func NewTypedNotIn(fieldName string, fieldType keyenc.FieldType, values []keyenc.Value, accessor Accessor) (*TypedFilter, error) {
	base, err := NewNotIn(fieldName, fieldType, values)
	if err != nil {
		return nil, err
	}
	return &TypedFilter{Filter: base, accessor: accessor}, nil
}

// Evaluate reports whether doc satisfies the filter.
func (f *TypedFilter) Evaluate(doc any) bool {
	v, ok := f.accessor(doc)
	return evaluateCore(f.Filter, v, ok)
}
