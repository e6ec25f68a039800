package filter

import "fmt"

// Op is the closed set of filter operations (spec.md §4.8).
type Op uint8

const (
	Equals Op = iota + 1
	NotEquals
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
	StartsWith
	EndsWith
	Contains
	Between
	In
	NotIn
)

func (o Op) String() string {
	switch o {
	case Equals:
		return "Equals"
	case NotEquals:
		return "NotEquals"
	case GreaterThan:
		return "GreaterThan"
	case GreaterThanOrEqual:
		return "GreaterThanOrEqual"
	case LessThan:
		return "LessThan"
	case LessThanOrEqual:
		return "LessThanOrEqual"
	case StartsWith:
		return "StartsWith"
	case EndsWith:
		return "EndsWith"
	case Contains:
		return "Contains"
	case Between:
		return "Between"
	case In:
		return "In"
	case NotIn:
		return "NotIn"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// IndexEligible reports whether the planner may ever satisfy this op from
// an index lookup rather than a residual scan (§4.9). NotEquals, EndsWith,
// Contains and NotIn are never index-driven: none of them can be expressed
// as a single ordered-key range or point lookup against an index sorted by
// value.
func (o Op) IndexEligible() bool {
	switch o {
	case Equals, In, StartsWith, Between, GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return true
	default:
		return false
	}
}

// Priority ranks an index-eligible op by the planner's selectivity
// preference (§4.9): lower wins, ties break by earlier filter position.
// Zero means the op never drives an index choice.
func (o Op) Priority() int {
	switch o {
	case Equals:
		return 1
	case In:
		return 2
	case StartsWith:
		return 3
	case Between:
		return 4
	case GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual:
		return 5
	default:
		return 0
	}
}
