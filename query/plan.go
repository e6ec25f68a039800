// Package query implements the planner and executor of spec.md §4.9–4.10:
// turning an ordered filter list into one of three plan shapes, then
// running that plan over a collection's primary tree, secondary indexes,
// and heap. Predicates and order-by extractors are supplied by the caller
// as plain functions over raw document bytes, so this package never needs
// to know whether a filter came from the Typed or Dynamic family (§9
// design note: one executor body, not duplicated per document model).
package query

import (
	"fmt"

	"gdbx/catalog"
	"gdbx/filter"
)

// Kind is the closed set of plan shapes the planner can choose (§4.9).
type Kind uint8

const (
	FullScan Kind = iota + 1
	PrimaryKeyRange
	SecondaryIndex
)

func (k Kind) String() string {
	switch k {
	case FullScan:
		return "FullScan"
	case PrimaryKeyRange:
		return "PrimaryKeyRange"
	case SecondaryIndex:
		return "SecondaryIndex"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Plan is the planner's output: what the executor should iterate, and
// which filter (if any) iterating that shape already satisfies in full.
type Plan struct {
	Kind Kind

	// PrimaryKeyRange bounds, already normalized to inclusive-both-ends
	// (the planner folds GT/LT's open side into a +1/-1 adjustment on the
	// int32 DocId domain, since ptree.Range only expresses inclusive
	// bounds). nil means unbounded on that side.
	LoDocID *int32
	HiDocID *int32

	// SecondaryIndex selection.
	Index       *catalog.IndexDefinition
	IndexFilter *filter.Filter

	// ConsumedFilterIndex is the index into the original filter list this
	// plan shape already fully evaluates, so the executor's residual pass
	// doesn't redundantly re-check it. -1 for FullScan, which evaluates
	// every filter residually.
	ConsumedFilterIndex int

	// Explain is a short human-readable label for diagnostics and tests
	// (spec.md's seed scenarios assert on exactly this shape, e.g.
	// "SecondaryIndex/Between").
	Explain string
}
