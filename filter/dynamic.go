package filter

import "gdbx/keyenc"

// ValueResolver resolves a named field's value (and, for collection-valued
// fields, every element's value) out of a self-describing document's raw
// bytes — the Dynamic filter family's counterpart to the Typed family's
// caller-supplied Accessor. Implemented by whatever JsonCodec the caller
// plugs into the root package (§6's try_get_value hook).
type ValueResolver interface {
	TryGetValue(doc []byte, fieldName string) (keyenc.Value, bool)
	TryGetValues(doc []byte, fieldName string) ([]keyenc.Value, bool)
}

// DynamicFilter pairs a Filter with the field name and type tag a
// ValueResolver uses to pull the comparison value out of opaque document
// bytes at evaluation time, rather than a construction-time closure.
type DynamicFilter struct {
	*Filter
}

// NewDynamic builds a single-value Dynamic filter.
func NewDynamic(fieldName string, fieldType keyenc.FieldType, isIndexed bool, op Op, value keyenc.Value) (*DynamicFilter, error) {
	base, err := New(fieldName, fieldType, isIndexed, op, value)
	if err != nil {
		return nil, err
	}
	return &DynamicFilter{Filter: base}, nil
}

// NewDynamicBetween builds a Between Dynamic filter.
func NewDynamicBetween(fieldName string, fieldType keyenc.FieldType, isIndexed bool, lo, hi keyenc.Value) (*DynamicFilter, error) {
	base, err := NewBetween(fieldName, fieldType, isIndexed, lo, hi)
	if err != nil {
		return nil, err
	}
	return &DynamicFilter{Filter: base}, nil
}

// NewDynamicIn builds an In Dynamic filter.
func NewDynamicIn(fieldName string, fieldType keyenc.FieldType, isIndexed bool, values []keyenc.Value) (*DynamicFilter, error) {
	base, err := NewIn(fieldName, fieldType, isIndexed, values)
	if err != nil {
		return nil, err
	}
	return &DynamicFilter{Filter: base}, nil
}

// NewDynamicNotIn builds a NotIn Dynamic filter.
func NewDynamicNotIn(fieldName string, fieldType keyenc.FieldType, values []keyenc.Value) (*DynamicFilter, error) {
	base, err := NewNotIn(fieldName, fieldType, values)
	if err != nil {
		return nil, err
	}
	return &DynamicFilter{Filter: base}, nil
}

// Evaluate reports whether doc, resolved through r, satisfies the filter.
func (f *DynamicFilter) Evaluate(doc []byte, r ValueResolver) bool {
	v, ok := r.TryGetValue(doc, f.FieldName)
	return evaluateCore(f.Filter, v, ok)
}
