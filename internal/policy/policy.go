// Package policy evaluates acceptance rules against a checkout attempt
// before any gateway call is made. Rules are govaluate expressions over the
// attempt's amount, currency, card type and billing country; a matching rule
// rejects the attempt, so a rejected card never generates network traffic.
package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"
)

// Rule is one reject-rule. Expression is a boolean govaluate expression;
// when it evaluates to true the attempt is rejected with Message. Lower
// Priority values are evaluated first.
type Rule struct {
	ID         string
	Expression string
	Message    string
	Priority   int
}

// Decision is the outcome of evaluating all rules for one attempt.
type Decision struct {
	Allowed bool
	RuleID  string // rule that rejected the attempt, when not allowed
	Reason  string
}

// Params are the attempt attributes rules may reference.
type Params struct {
	Amount   int64
	Currency string
	CardType string
	Country  string
}

type compiledRule struct {
	rule Rule
	expr *govaluate.EvaluableExpression
}

// Enforcer holds compiled rules. Compile once at startup, evaluate per
// attempt.
type Enforcer struct {
	rules []compiledRule
}

// NewEnforcer compiles the rule set. An empty or nil set is valid and
// allows everything.
func NewEnforcer(rules []Rule) (*Enforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule %q has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("compile policy rule %q: %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{rule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].rule.Priority < compiled[j].rule.Priority
	})
	return &Enforcer{rules: compiled}, nil
}

// AcceptedCardTypesRule builds a reject-rule from a card-type allow list,
// the common case configured per merchant account.
func AcceptedCardTypesRule(types []string) Rule {
	quoted := ""
	for i, t := range types {
		if i > 0 {
			quoted += ", "
		}
		quoted += "'" + t + "'"
	}
	return Rule{
		ID:         "accepted_card_types",
		Expression: fmt.Sprintf("!(cardType IN (%s))", quoted),
		Message:    "card type not accepted",
		Priority:   0,
	}
}

// Evaluate runs the rules in priority order and returns the first rejection,
// or an allowing decision when no rule matches.
func (e *Enforcer) Evaluate(p Params) (Decision, error) {
	params := map[string]interface{}{
		"amount":   float64(p.Amount),
		"currency": p.Currency,
		"cardType": p.CardType,
		"country":  p.Country,
	}

	for _, cr := range e.rules {
		result, err := cr.expr.Evaluate(params)
		if err != nil {
			return Decision{}, fmt.Errorf("evaluate policy rule %q: %w", cr.rule.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return Decision{}, fmt.Errorf("policy rule %q is not a boolean expression", cr.rule.ID)
		}
		if matched {
			return Decision{Allowed: false, RuleID: cr.rule.ID, Reason: cr.rule.Message}, nil
		}
	}
	return Decision{Allowed: true}, nil
}
