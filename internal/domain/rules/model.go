package rules

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RuleType names the effect a matching rule applies to one insurance layer.
type RuleType string

const (
	// TypeCoveragePercent overrides the layer's coverage percent.
	TypeCoveragePercent RuleType = "coverage_percent"
	// TypeFixedAmount makes the insurer pay exactly the rule value, capped
	// at the remaining amount.
	TypeFixedAmount RuleType = "fixed_amount"
	// TypeDeductible subtracts the rule value from the payable amount before
	// coverage applies.
	TypeDeductible RuleType = "deductible"
	// TypeVeto makes the layer contribute nothing.
	TypeVeto RuleType = "veto"
)

// ValidRuleType reports whether t is a known rule type.
func ValidRuleType(t RuleType) bool {
	switch t {
	case TypeCoveragePercent, TypeFixedAmount, TypeDeductible, TypeVeto:
		return true
	}
	return false
}

// Field names a condition operand taken from the calculation context.
type Field string

const (
	FieldServiceAmount   Field = "service_amount"
	FieldServiceID       Field = "service_id"
	FieldPatientID       Field = "patient_id"
	FieldPlanID          Field = "plan_id"
	FieldCalculationDate Field = "calculation_date"
)

// Operator names a condition comparison.
type Operator string

const (
	OpEquals    Operator = "eq"
	OpNotEquals Operator = "ne"
	OpGreater   Operator = "gt"
	OpLess      Operator = "lt"
	OpBetween   Operator = "between"
	OpIn        Operator = "in"
)

const dateLayout = "2006-01-02"

// Context is the immutable input a rule is evaluated against. It is built
// fresh for each (service, layer) pair.
type Context struct {
	PatientID     int64
	ServiceID     int64
	PlanID        int64
	ServiceAmount decimal.Decimal
	Date          time.Time
}

// Condition is one predicate clause of a rule. Operand values are parsed
// when the rule is loaded; a clause whose field, operator, or value cannot
// be parsed is marked invalid and never matches.
type Condition struct {
	ID       int64    `json:"id"`
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	RawValue string   `json:"value"`

	nums    []decimal.Decimal
	dates   []time.Time
	invalid bool
}

// Invalid reports whether the condition failed to parse at load time.
func (c *Condition) Invalid() bool {
	return c.invalid
}

// ParseCondition builds a condition from its stored representation, parsing
// the operand values for the field's type. Unknown fields or operators, and
// malformed values, yield an invalid condition rather than an error.
func ParseCondition(id int64, field Field, op Operator, rawValue string) Condition {
	c := Condition{ID: id, Field: field, Operator: op, RawValue: rawValue}

	wantOperands := 1
	switch op {
	case OpEquals, OpNotEquals, OpGreater, OpLess:
	case OpBetween:
		wantOperands = 2
	case OpIn:
		wantOperands = -1 // one or more
	default:
		c.invalid = true
		return c
	}

	parts := strings.Split(rawValue, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if wantOperands > 0 && len(parts) != wantOperands {
		c.invalid = true
		return c
	}
	if len(parts) == 0 || parts[0] == "" {
		c.invalid = true
		return c
	}

	switch field {
	case FieldCalculationDate:
		for _, p := range parts {
			d, err := time.Parse(dateLayout, p)
			if err != nil {
				c.invalid = true
				return c
			}
			c.dates = append(c.dates, d)
		}
	case FieldServiceAmount, FieldServiceID, FieldPatientID, FieldPlanID:
		for _, p := range parts {
			n, err := decimal.NewFromString(p)
			if err != nil {
				c.invalid = true
				return c
			}
			c.nums = append(c.nums, n)
		}
	default:
		c.invalid = true
	}

	return c
}

// Matches evaluates the condition against the context. Invalid conditions
// never match.
func (c *Condition) Matches(ctx Context) bool {
	if c.invalid {
		return false
	}
	if c.Field == FieldCalculationDate {
		return c.matchesDate(ctx.Date)
	}

	var v decimal.Decimal
	switch c.Field {
	case FieldServiceAmount:
		v = ctx.ServiceAmount
	case FieldServiceID:
		v = decimal.NewFromInt(ctx.ServiceID)
	case FieldPatientID:
		v = decimal.NewFromInt(ctx.PatientID)
	case FieldPlanID:
		v = decimal.NewFromInt(ctx.PlanID)
	default:
		return false
	}
	return c.matchesNumeric(v)
}

func (c *Condition) matchesNumeric(v decimal.Decimal) bool {
	switch c.Operator {
	case OpEquals:
		return v.Equal(c.nums[0])
	case OpNotEquals:
		return !v.Equal(c.nums[0])
	case OpGreater:
		return v.GreaterThan(c.nums[0])
	case OpLess:
		return v.LessThan(c.nums[0])
	case OpBetween:
		return v.GreaterThanOrEqual(c.nums[0]) && v.LessThanOrEqual(c.nums[1])
	case OpIn:
		for _, n := range c.nums {
			if v.Equal(n) {
				return true
			}
		}
	}
	return false
}

func (c *Condition) matchesDate(d time.Time) bool {
	d = d.Truncate(24 * time.Hour)
	switch c.Operator {
	case OpEquals:
		return d.Equal(c.dates[0])
	case OpNotEquals:
		return !d.Equal(c.dates[0])
	case OpGreater:
		return d.After(c.dates[0])
	case OpLess:
		return d.Before(c.dates[0])
	case OpBetween:
		return !d.Before(c.dates[0]) && !d.After(c.dates[1])
	case OpIn:
		for _, x := range c.dates {
			if d.Equal(x) {
				return true
			}
		}
	}
	return false
}

// Rule is a configurable condition-to-effect pair. Conditions are
// conjunctive; disjunction is expressed as separate rules. Lower priority
// evaluates first.
type Rule struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	Type       RuleType            `json:"rule_type"`
	Value      decimal.NullDecimal `json:"value,omitempty"`
	Conditions []Condition         `json:"conditions"`
	Priority   int                 `json:"priority"`
	Active     bool                `json:"active"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// HasInvalidCondition reports whether any clause failed to parse. Such a
// rule can never match and should be surfaced as a data-quality warning.
func (r *Rule) HasInvalidCondition() bool {
	for i := range r.Conditions {
		if r.Conditions[i].invalid {
			return true
		}
	}
	return false
}

// MatchesContext reports whether every condition clause matches.
func (r *Rule) MatchesContext(ctx Context) bool {
	if !r.Active || !ValidRuleType(r.Type) {
		return false
	}
	for i := range r.Conditions {
		if !r.Conditions[i].Matches(ctx) {
			return false
		}
	}
	return true
}
