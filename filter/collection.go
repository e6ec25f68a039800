package filter

import "gdbx/keyenc"

// Collection-valued fields have mirrored filter variants whose Evaluate
// returns true iff any element satisfies the inner predicate (§4.8). They
// never drive an index lookup: IsIndexed is forced false regardless of
// what the caller passes, since no index over an element-wise predicate
// exists in this design.

// ElementsAccessor resolves every element of a collection-valued field out
// of a caller's document type, for TypedCollectionFilter.
type ElementsAccessor func(doc any) ([]keyenc.Value, bool)

// TypedCollectionFilter is the any-match mirror of TypedFilter.
type TypedCollectionFilter struct {
	*Filter
	elements ElementsAccessor
}

// NewTypedCollection builds an any-match Typed collection filter. op must
// not be Between/In/NotIn; use the per-element single-value operations.
func NewTypedCollection(fieldName string, fieldType keyenc.FieldType, op Op, value keyenc.Value, elements ElementsAccessor) (*TypedCollectionFilter, error) {
	base, err := New(fieldName, fieldType, false, op, value)
	if err != nil {
		return nil, err
	}
	return &TypedCollectionFilter{Filter: base, elements: elements}, nil
}

// Evaluate reports whether any element of doc's collection field satisfies
// the predicate.
func (f *TypedCollectionFilter) Evaluate(doc any) bool {
	values, ok := f.elements(doc)
	if !ok {
		return false
	}
	for _, v := range values {
		if evaluateCore(f.Filter, v, true) {
			return true
		}
	}
	return false
}

// DynamicCollectionFilter is the any-match mirror of DynamicFilter,
// collapsing what the source expressed as several distinct
// "Dynamic...Filter" shapes into one wrapper (§9 design note).
type DynamicCollectionFilter struct {
	*Filter
}

// NewDynamicCollection builds an any-match Dynamic collection filter.
func NewDynamicCollection(fieldName string, fieldType keyenc.FieldType, op Op, value keyenc.Value) (*DynamicCollectionFilter, error) {
	base, err := New(fieldName, fieldType, false, op, value)
	if err != nil {
		return nil, err
	}
	return &DynamicCollectionFilter{Filter: base}, nil
}

// Evaluate reports whether any element of doc's collection field, resolved
// through r, satisfies the predicate.
func (f *DynamicCollectionFilter) Evaluate(doc []byte, r ValueResolver) bool {
	values, ok := r.TryGetValues(doc, f.FieldName)
	if !ok {
		return false
	}
	for _, v := range values {
		if evaluateCore(f.Filter, v, true) {
			return true
		}
	}
	return false
}
