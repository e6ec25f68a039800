package gdbx

import (
	"context"

	"gdbx/filter"
	"gdbx/keyenc"
	"gdbx/query"
)

// QueryBuilder accumulates filters, ordering, and pagination for one
// collection, then runs them through the query package's planner and
// executor. Every filter is built as a Dynamic filter (§9): codec
// already satisfies filter.ValueResolver directly, since both resolve a
// named field straight out of the same raw document bytes the heap
// stores.
type QueryBuilder struct {
	db    *Database
	name  string
	codec JsonCodec

	filters []*filter.DynamicFilter
	order   []orderTerm
	skip    int
	limit   int
	err     error
}

type orderTerm struct {
	field      string
	descending bool
}

// Query begins building a query over collectionName, decoding results
// with codec.
func (db *Database) Query(collectionName string, codec JsonCodec) *QueryBuilder {
	return &QueryBuilder{db: db, name: collectionName, codec: codec}
}

func (qb *QueryBuilder) handle() (*collectionHandle, error) {
	qb.db.mu.Lock()
	defer qb.db.mu.Unlock()
	h, ok := qb.db.collections[qb.name]
	if !ok {
		return nil, NewError(ErrKindDocumentNotFound, "collection "+qb.name, nil)
	}
	return h, nil
}

func (qb *QueryBuilder) isIndexed(fieldName string) bool {
	h, err := qb.handle()
	if err != nil {
		return false
	}
	_, ok := h.entry.IndexOnField(fieldName)
	return ok
}

// Where adds a single-value comparison filter.
func (qb *QueryBuilder) Where(fieldName string, fieldType keyenc.FieldType, op filter.Op, value keyenc.Value) *QueryBuilder {
	if qb.err != nil {
		return qb
	}
	f, err := filter.NewDynamic(fieldName, fieldType, qb.isIndexed(fieldName), op, value)
	if err != nil {
		qb.err = NewError(ErrKindInvalidFilter, err.Error(), err)
		return qb
	}
	qb.filters = append(qb.filters, f)
	return qb
}

// WhereBetween adds an inclusive-range filter.
func (qb *QueryBuilder) WhereBetween(fieldName string, fieldType keyenc.FieldType, lo, hi keyenc.Value) *QueryBuilder {
	if qb.err != nil {
		return qb
	}
	f, err := filter.NewDynamicBetween(fieldName, fieldType, qb.isIndexed(fieldName), lo, hi)
	if err != nil {
		qb.err = NewError(ErrKindInvalidFilter, err.Error(), err)
		return qb
	}
	qb.filters = append(qb.filters, f)
	return qb
}

// WhereIn adds a set-membership filter.
func (qb *QueryBuilder) WhereIn(fieldName string, fieldType keyenc.FieldType, values []keyenc.Value) *QueryBuilder {
	if qb.err != nil {
		return qb
	}
	f, err := filter.NewDynamicIn(fieldName, fieldType, qb.isIndexed(fieldName), values)
	if err != nil {
		qb.err = NewError(ErrKindInvalidFilter, err.Error(), err)
		return qb
	}
	qb.filters = append(qb.filters, f)
	return qb
}

// OrderBy appends one ascending (or, if descending is true, descending)
// sort term. Multiple calls compose into a multi-key sort in call order.
func (qb *QueryBuilder) OrderBy(fieldName string, descending bool) *QueryBuilder {
	qb.order = append(qb.order, orderTerm{field: fieldName, descending: descending})
	return qb
}

// Skip sets how many leading matches to discard before Limit applies.
func (qb *QueryBuilder) Skip(n int) *QueryBuilder { qb.skip = n; return qb }

// Limit caps the number of returned matches; 0 means unbounded.
func (qb *QueryBuilder) Limit(n int) *QueryBuilder { qb.limit = n; return qb }

func (qb *QueryBuilder) buildPlan(h *collectionHandle) query.Plan {
	cores := make([]*filter.Filter, len(qb.filters))
	for i, f := range qb.filters {
		cores[i] = f.Filter
	}
	return query.NewPlanner().Plan(cores, h.entry)
}

func (qb *QueryBuilder) predicates(plan query.Plan) []query.Predicate {
	preds := make([]query.Predicate, len(qb.filters))
	for i, f := range qb.filters {
		f := f
		preds[i] = func(docID int32, data []byte) bool { return f.Evaluate(data, qb.codec) }
	}
	return preds
}

func (qb *QueryBuilder) orderSpecs() []query.OrderSpec {
	specs := make([]query.OrderSpec, len(qb.order))
	for i, term := range qb.order {
		term := term
		specs[i] = query.OrderSpec{
			Descending: term.descending,
			Extract: func(docID int32, data []byte) (keyenc.Value, bool) {
				return qb.codec.TryGetValue(data, term.field)
			},
		}
	}
	return specs
}

// Explain returns the planner's chosen shape for this query's current
// filters, without running it — e.g. "SecondaryIndex/Between" or
// "PrimaryKeyRange" (§4.9's diagnostic label).
func (qb *QueryBuilder) Explain() (string, error) {
	if qb.err != nil {
		return "", qb.err
	}
	qb.db.mu.Lock()
	defer qb.db.mu.Unlock()
	h, ok := qb.db.collections[qb.name]
	if !ok {
		return "", NewError(ErrKindDocumentNotFound, "collection "+qb.name, nil)
	}
	return qb.buildPlan(h).Explain, nil
}

// Execute runs the query and decodes every surviving document with the
// builder's codec. Like GetByID, it holds the same mutex
// Insert/Replace/DeleteByID hold for their whole call (see the isolation
// note on Database), so a query started mid-transaction on this handle
// observes that transaction's own uncommitted writes.
func (qb *QueryBuilder) Execute(ctx context.Context) ([]any, error) {
	if qb.err != nil {
		return nil, qb.err
	}
	qb.db.mu.Lock()
	defer qb.db.mu.Unlock()
	h, ok := qb.db.collections[qb.name]
	if !ok {
		return nil, NewError(ErrKindDocumentNotFound, "collection "+qb.name, nil)
	}
	plan := qb.buildPlan(h)
	exec := query.NewExecutor(h.primary, h.heap, h.indexes)
	candidates, err := exec.Run(ctx, plan, qb.predicates(plan), qb.orderSpecs(), qb.skip, qb.limit)
	if err != nil {
		return nil, NewError(ErrKindIoError, "query", err)
	}
	out := make([]any, 0, len(candidates))
	for _, c := range candidates {
		doc, err := qb.codec.Deserialize(c.Data)
		if err != nil {
			return nil, NewError(ErrKindEncodeUnsupported, "deserialize result", err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// ExecuteSync is Execute with a context that never cancels.
func (qb *QueryBuilder) ExecuteSync() ([]any, error) {
	return qb.Execute(context.Background())
}

// Count returns the number of matching documents without decoding them.
func (qb *QueryBuilder) Count(ctx context.Context) (int, error) {
	if qb.err != nil {
		return 0, qb.err
	}
	qb.db.mu.Lock()
	defer qb.db.mu.Unlock()
	h, ok := qb.db.collections[qb.name]
	if !ok {
		return 0, NewError(ErrKindDocumentNotFound, "collection "+qb.name, nil)
	}
	plan := qb.buildPlan(h)
	exec := query.NewExecutor(h.primary, h.heap, h.indexes)
	n, err := exec.Count(ctx, plan, qb.predicates(plan))
	if err != nil {
		return 0, NewError(ErrKindIoError, "count", err)
	}
	return n, nil
}
