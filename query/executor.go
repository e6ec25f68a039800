package query

import (
	"context"
	"fmt"
	"sort"

	"gdbx/filter"
	"gdbx/heap"
	"gdbx/keyenc"
	"gdbx/loc"
	"gdbx/ptree"
	"gdbx/stree"
)

// Predicate evaluates one filter against a candidate document: its DocId
// and raw bytes. The caller builds these from either a filter.TypedFilter
// (closing over a decoded document) or a filter.DynamicFilter plus a
// resolver — the executor itself never needs to know which (§9 design
// note). docID is threaded through so a residual filter on the
// primary-key field (e.g. a second "Id" filter the planner didn't
// consume) can still be evaluated.
type Predicate func(docID int32, data []byte) bool

// OrderSpec extracts one ORDER BY field's sort key from a candidate's DocId
// and raw bytes, for the caller to supply per field name the same way
// Predicate resolves a filter.
type OrderSpec struct {
	Extract    func(docID int32, data []byte) (keyenc.Value, bool)
	Descending bool
}

// Candidate is one surviving row: its DocId and raw document bytes.
type Candidate struct {
	DocID int32
	Data  []byte
}

// IndexSet resolves a secondary index's backing tree by the field path it
// is defined over.
type IndexSet map[string]*stree.Tree

// Executor runs a Plan against one collection's primary tree, secondary
// indexes, and heap (§4.10). A single instance is reused across queries
// against the same collection.
type Executor struct {
	primary *ptree.Tree
	heap    *heap.Heap
	indexes IndexSet
}

// NewExecutor builds an Executor over one collection's open trees and heap.
func NewExecutor(primary *ptree.Tree, h *heap.Heap, indexes IndexSet) *Executor {
	return &Executor{primary: primary, heap: h, indexes: indexes}
}

// Run executes plan: iterates the shape the plan selected, applies every
// predicate the plan didn't already consume, then orders and paginates.
// When order is empty and limit > 0, Run early-exits as soon as enough
// matches are collected (§4.10's FullScan/PrimaryKeyRange early-exit);
// ordering requires the full result set first, so no early exit applies
// when order is non-empty.
//
// ctx is checked once per candidate document — the suspension point an
// async caller's cooperative scheduler would yield at (§5). A synchronous
// caller passes context.Background() via RunSync. Suspension between
// individual index-leaf page fetches within one Scan is not exposed by the
// underlying B+tree engine; the per-candidate check is the coarser
// granularity this implementation settles for.
func (e *Executor) Run(ctx context.Context, plan Plan, predicates []Predicate, order []OrderSpec, skip, limit int) ([]Candidate, error) {
	var out []Candidate
	canEarlyExit := len(order) == 0 && limit > 0

	visit := func(docID int32, l loc.Location) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		data, err := e.heap.Get(l)
		if err != nil {
			return false, err
		}
		if matchesResidual(docID, data, predicates, plan.ConsumedFilterIndex) {
			out = append(out, Candidate{DocID: docID, Data: data})
			if canEarlyExit && len(out) >= skip+limit {
				return false, nil
			}
		}
		return true, nil
	}

	if err := e.visitPlan(plan, visit); err != nil {
		return nil, err
	}

	if len(order) > 0 {
		sortCandidates(out, order)
	}
	return paginate(out, skip, limit), nil
}

// RunSync is Run with a context that never cancels, for callers that never
// suspend (§5: "Synchronous executors never suspend").
func (e *Executor) RunSync(plan Plan, predicates []Predicate, order []OrderSpec, skip, limit int) ([]Candidate, error) {
	return e.Run(context.Background(), plan, predicates, order, skip, limit)
}

// Count returns the number of matching documents. When every filter was
// already consumed by the plan, this counts tree/index entries directly
// without fetching a single document's payload (§4.10's Count
// optimization); otherwise it falls back to Run's residual-filtering path.
func (e *Executor) Count(ctx context.Context, plan Plan, predicates []Predicate) (int, error) {
	if allConsumed(predicates, plan.ConsumedFilterIndex) {
		count := 0
		visit := func(docID int32, l loc.Location) (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			count++
			return true, nil
		}
		if err := e.visitPlan(plan, visit); err != nil {
			return 0, err
		}
		return count, nil
	}

	count := 0
	visit := func(docID int32, l loc.Location) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		data, err := e.heap.Get(l)
		if err != nil {
			return false, err
		}
		if matchesResidual(docID, data, predicates, plan.ConsumedFilterIndex) {
			count++
		}
		return true, nil
	}
	if err := e.visitPlan(plan, visit); err != nil {
		return 0, err
	}
	return count, nil
}

func (e *Executor) visitPlan(plan Plan, visit func(int32, loc.Location) (bool, error)) error {
	switch plan.Kind {
	case FullScan:
		return e.primary.Range(nil, nil, visit)
	case PrimaryKeyRange:
		return e.primary.Range(plan.LoDocID, plan.HiDocID, visit)
	case SecondaryIndex:
		return e.runSecondaryIndex(plan, visit)
	default:
		return fmt.Errorf("query: plan has unknown kind %v", plan.Kind)
	}
}

// runSecondaryIndex dispatches on the consumed filter's operation to the
// index lookup shape §4.10 specifies for it. An index-eligible op this
// switch doesn't recognize falls back to scanning the whole index.
func (e *Executor) runSecondaryIndex(plan Plan, visit func(int32, loc.Location) (bool, error)) error {
	idx, ok := e.indexes[plan.Index.FieldPath]
	if !ok {
		return fmt.Errorf("query: no open secondary tree for index %q", plan.Index.Name)
	}
	f := plan.IndexFilter

	switch f.Op {
	case filter.Equals:
		key, _ := f.IndexKeyBytes()
		return idx.Range(key, key, true, true, visit)
	case filter.In:
		keys, _ := f.AllIndexKeyBytes()
		for _, key := range keys {
			if err := idx.Range(key, key, true, true, visit); err != nil {
				return err
			}
		}
		return nil
	case filter.StartsWith:
		lo, _ := f.IndexKeyBytes()
		hi, hasHi := f.IndexKeyEndBytes()
		if !hasHi {
			return idx.Range(lo, nil, true, false, visit)
		}
		return idx.Range(lo, hi, true, false, visit)
	case filter.Between:
		lo, _ := f.IndexKeyBytes()
		hi, _ := f.IndexKeyEndBytes()
		return idx.Range(lo, hi, true, true, visit)
	case filter.GreaterThan:
		lo, _ := f.IndexKeyBytes()
		return idx.Range(lo, nil, false, false, visit)
	case filter.GreaterThanOrEqual:
		lo, _ := f.IndexKeyBytes()
		return idx.Range(lo, nil, true, false, visit)
	case filter.LessThan:
		hi, _ := f.IndexKeyBytes()
		return idx.Range(nil, hi, false, false, visit)
	case filter.LessThanOrEqual:
		hi, _ := f.IndexKeyBytes()
		return idx.Range(nil, hi, false, true, visit)
	default:
		return idx.Range(nil, nil, true, true, visit)
	}
}

func matchesResidual(docID int32, data []byte, predicates []Predicate, consumed int) bool {
	for i, p := range predicates {
		if i == consumed {
			continue
		}
		if !p(docID, data) {
			return false
		}
	}
	return true
}

func allConsumed(predicates []Predicate, consumed int) bool {
	for i := range predicates {
		if i != consumed {
			return false
		}
	}
	return true
}

// sortCandidates orders by each field in turn, null-last ascending /
// null-first descending, breaking every remaining tie by DocId (§4.10).
func sortCandidates(out []Candidate, order []OrderSpec) {
	sort.SliceStable(out, func(i, j int) bool {
		for _, spec := range order {
			vi, oki := spec.Extract(out[i].DocID, out[i].Data)
			vj, okj := spec.Extract(out[j].DocID, out[j].Data)
			if cmp := compareOrderValues(vi, oki, vj, okj, spec.Descending); cmp != 0 {
				return cmp < 0
			}
		}
		return out[i].DocID < out[j].DocID
	})
}

func compareOrderValues(a keyenc.Value, aOk bool, b keyenc.Value, bOk bool, descending bool) int {
	aNull := !aOk || a.Null
	bNull := !bOk || b.Null
	if aNull && bNull {
		return 0
	}
	if aNull {
		if descending {
			return -1
		}
		return 1
	}
	if bNull {
		if descending {
			return 1
		}
		return -1
	}
	ae, erra := keyenc.Encode(a)
	be, errb := keyenc.Encode(b)
	cmp := 0
	if erra == nil && errb == nil {
		cmp = keyenc.Compare(ae, be)
	}
	if descending {
		return -cmp
	}
	return cmp
}

func paginate(out []Candidate, skip, limit int) []Candidate {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(out) {
		return nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
