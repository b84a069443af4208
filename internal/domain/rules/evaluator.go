package rules

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Outcome is the result of evaluating a rule set against one context.
type Outcome struct {
	Matched bool
	RuleID  int64
	Type    RuleType
	Value   decimal.Decimal
}

// IsVeto reports whether the matched effect vetoes the layer.
func (o Outcome) IsVeto() bool {
	return o.Matched && o.Type == TypeVeto
}

// Evaluate runs the candidate rules against the context in ascending
// priority order (ties broken by lowest rule id) and returns the effect of
// the first rule whose every condition matches. Evaluation never fails on
// malformed data; rules with unparsable conditions simply never match.
func Evaluate(ctx Context, candidates []*Rule) Outcome {
	if len(candidates) == 0 {
		return Outcome{}
	}

	ordered := make([]*Rule, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, r := range ordered {
		if r.MatchesContext(ctx) {
			out := Outcome{Matched: true, RuleID: r.ID, Type: r.Type}
			if r.Value.Valid {
				out.Value = r.Value.Decimal
			}
			return out
		}
	}
	return Outcome{}
}
