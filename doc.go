package gdbx

import "gdbx/keyenc"

// FieldWriter collects a document's indexed field values during
// extraction. TypeInfo.ExtractIndexedFields writes one entry per indexed
// or compound-indexed field path it finds present on the document.
type FieldWriter interface {
	WriteField(fieldPath string, value keyenc.Value)
}

// TypeInfo is the static metadata descriptor a caller registers for one
// document type (§6). This package never generates or inspects a
// concrete document struct — every document stays an opaque `any` to
// the engine, extracted only through the four hooks below.
type TypeInfo interface {
	// CollectionName is the collection this type maps to.
	CollectionName() string

	// IndexedFields lists the single-field paths EnsureCollection should
	// back with a secondary index.
	IndexedFields() []string

	// UniqueIndexFields lists the subset of IndexedFields that also
	// enforce a uniqueness constraint.
	UniqueIndexFields() []string

	// CompoundIndexes lists groups of field paths that together back one
	// compound secondary index, encoded via keyenc.EncodeCompound.
	CompoundIndexes() [][]string

	// ExtractIndexedFields writes every indexed (and compound-indexed)
	// field path present on doc into w. A field absent from doc is
	// simply never written — see DESIGN.md's "missing field never
	// matches" filter decision, which this extraction feeds.
	ExtractIndexedFields(doc any, w FieldWriter)

	// GetID returns doc's assigned DocId, or 0 if it has none yet.
	GetID(doc any) int32

	// SetID stamps id onto doc, called once after Insert assigns it.
	SetID(doc any, id int32)
}

// JsonCodec is the caller-supplied (de)serializer for one document type
// (§6). It also satisfies filter.ValueResolver directly — TryGetValue and
// TryGetValues both operate on the same raw, codec-specific bytes the
// heap stores, so a DynamicFilter can evaluate straight off a document's
// wire bytes without a full Deserialize round-trip.
type JsonCodec interface {
	// Deserialize decodes data into a document value of the codec's type.
	Deserialize(data []byte) (any, error)

	// Serialize encodes doc into the bytes the heap stores.
	Serialize(doc any) ([]byte, error)

	// TryGetValue resolves fieldName directly out of data, for Dynamic
	// filter evaluation and ORDER BY extraction without a full decode.
	TryGetValue(data []byte, fieldName string) (keyenc.Value, bool)

	// TryGetValues resolves every element of a collection-valued field
	// directly out of data, for DynamicCollectionFilter's any-match
	// evaluation.
	TryGetValues(data []byte, fieldName string) ([]keyenc.Value, bool)
}

// fieldMap is the map-backed FieldWriter Insert/Replace/CreateIndex use
// to collect a document's indexed values from TypeInfo.
type fieldMap map[string]keyenc.Value

func (m fieldMap) WriteField(fieldPath string, value keyenc.Value) { m[fieldPath] = value }
