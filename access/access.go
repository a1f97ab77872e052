// Package access evaluates serialized access rules against request
// inputs. Evaluation is partial: rules that depend only on provided
// context values collapse to an allow/deny decision, while anything
// touching unavailable data (typically `self` rows) survives as a
// residual predicate for the data layer to enforce.
package access

import (
	"fmt"
	"strconv"

	"github.com/latticeql/lattice/ir"
)

// Operation selects which rule of an AccessRules table applies.
type Operation int

const (
	OpQuery Operation = iota
	OpMutation
	OpCreate
	OpUpdate
	OpDelete
)

var operationNames = [...]string{"query", "mutation", "create", "update", "delete"}

// String returns the operation's rule-key spelling.
func (op Operation) String() string {
	if op < 0 || int(op) >= len(operationNames) {
		return "unknown"
	}
	return operationNames[op]
}

// RuleFor returns the rule governing op. Specific mutation kinds were
// already folded onto the generic mutation rule when the artifact was
// built; a nil table or rule denies.
func RuleFor(rules *ir.AccessRules, op Operation) *ir.Expr {
	if rules == nil {
		return nil
	}
	switch op {
	case OpQuery:
		return rules.Query
	case OpMutation:
		return rules.Mutation
	case OpCreate:
		return rules.Create
	case OpUpdate:
		return rules.Update
	case OpDelete:
		return rules.Delete
	}
	return nil
}

// Input is the request-time data available to evaluation. Context values
// are nested maps keyed by field name; Self, when non-nil, is the row
// the rule is judged against.
type Input struct {
	Contexts map[string]map[string]any
	Self     map[string]any
}

// Decision is the tri-state outcome.
type Decision int

const (
	// Deny rejects the operation outright.
	Deny Decision = iota
	// Allow grants the operation unconditionally.
	Allow
	// Residual grants the operation subject to a predicate the data
	// layer must apply.
	Residual
)

// String returns "deny", "allow", or "residual".
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Residual:
		return "residual"
	}
	return "deny"
}

// Result is an evaluation outcome. Predicate is set only for Residual.
type Result struct {
	Decision  Decision
	Predicate *ir.Expr
}

// Evaluate partially evaluates rule against in. A nil rule denies. The
// returned error marks malformed input values, never a legitimate deny.
func Evaluate(rule *ir.Expr, in Input) (Result, error) {
	if rule == nil {
		return Result{Decision: Deny}, nil
	}
	ev := &evaluator{in: in}
	v, err := ev.eval(rule, nil)
	if err != nil {
		return Result{}, err
	}
	if !v.known {
		return Result{Decision: Residual, Predicate: v.residual}, nil
	}
	b, ok := v.v.(bool)
	if !ok {
		return Result{}, fmt.Errorf("lattice: access rule evaluated to %T, want bool", v.v)
	}
	if b {
		return Result{Decision: Allow}, nil
	}
	return Result{Decision: Deny}, nil
}

// value is a partially evaluated node: either a known Go value or the
// residual expression standing in for it.
type value struct {
	known    bool
	v        any
	residual *ir.Expr
}

func known(v any) value         { return value{known: true, v: v} }
func residual(e *ir.Expr) value { return value{residual: e} }

// expr renders the value back into expression form for residual
// reconstruction.
func (v value) expr() *ir.Expr {
	if !v.known {
		return v.residual
	}
	return literal(v.v)
}

func literal(v any) *ir.Expr {
	switch v := v.(type) {
	case nil:
		return &ir.Expr{Kind: ir.ExprNull}
	case bool:
		return &ir.Expr{Kind: ir.ExprBoolean, BoolValue: &v}
	case string:
		return &ir.Expr{Kind: ir.ExprString, StringValue: &v}
	case int64:
		return &ir.Expr{Kind: ir.ExprNumber, Number: strconv.FormatInt(v, 10)}
	case float64:
		return &ir.Expr{Kind: ir.ExprNumber, Number: strconv.FormatFloat(v, 'g', -1, 64)}
	case []any:
		out := &ir.Expr{Kind: ir.ExprList}
		for _, el := range v {
			out.Elems = append(out.Elems, literal(el))
		}
		return out
	default:
		return &ir.Expr{Kind: ir.ExprNull}
	}
}

type evaluator struct {
	in Input
}

// eval reduces e under the bound predicate variables in vars.
func (ev *evaluator) eval(e *ir.Expr, vars map[string]any) (value, error) {
	switch e.Kind {
	case ir.ExprString:
		return known(*e.StringValue), nil
	case ir.ExprBoolean:
		return known(*e.BoolValue), nil
	case ir.ExprNull:
		return known(nil), nil
	case ir.ExprNumber:
		return known(parseNumber(e.Number)), nil
	case ir.ExprList:
		out := make([]any, 0, len(e.Elems))
		for _, el := range e.Elems {
			v, err := ev.eval(el, vars)
			if err != nil {
				return value{}, err
			}
			if !v.known {
				return residual(e), nil
			}
			out = append(out, v.v)
		}
		return known(out), nil
	case ir.ExprChain:
		return ev.evalChain(e, vars)
	case ir.ExprLogical:
		return ev.evalLogical(e, vars)
	case ir.ExprRelational:
		return ev.evalRelational(e, vars)
	}
	return value{}, fmt.Errorf("lattice: unknown expression kind %q", e.Kind)
}

func parseNumber(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	f, _ := strconv.ParseFloat(raw, 64)
	return f
}

func (ev *evaluator) evalChain(e *ir.Expr, vars map[string]any) (value, error) {
	head := e.Chain[0]
	var cur any
	switch {
	case head.Kind != ir.StepField:
		return residual(e), nil
	case head.Name == "self":
		if ev.in.Self == nil {
			return residual(e), nil
		}
		cur = ev.in.Self
	default:
		if v, bound := vars[head.Name]; bound {
			cur = v
		} else if ctx, ok := ev.in.Contexts[head.Name]; ok {
			cur = ctx
		} else {
			return residual(e), nil
		}
	}

	for _, step := range e.Chain[1:] {
		switch step.Kind {
		case ir.StepField:
			m, ok := cur.(map[string]any)
			if !ok {
				return value{}, fmt.Errorf("lattice: selecting %q from non-record value %T", step.Name, cur)
			}
			cur = m[step.Name]
		case ir.StepSome:
			list, ok := cur.([]any)
			if !ok {
				return value{}, fmt.Errorf("lattice: %s(...) over non-collection value %T", step.Name, cur)
			}
			matched := false
			for _, el := range list {
				inner := map[string]any{step.Param: el}
				for k, v := range vars {
					inner[k] = v
				}
				v, err := ev.eval(step.Body, inner)
				if err != nil {
					return value{}, err
				}
				if !v.known {
					return residual(e), nil
				}
				if b, ok := v.v.(bool); ok && b {
					matched = true
					break
				}
			}
			cur = matched
		case ir.StepContains:
			list, ok := cur.([]any)
			if !ok {
				return value{}, fmt.Errorf("lattice: contains(...) over non-collection value %T", cur)
			}
			arg, err := ev.eval(step.Args[0], vars)
			if err != nil {
				return value{}, err
			}
			if !arg.known {
				return residual(e), nil
			}
			found := false
			for _, el := range list {
				if equal(el, arg.v) {
					found = true
					break
				}
			}
			cur = found
		}
	}
	return known(cur), nil
}

func (ev *evaluator) evalLogical(e *ir.Expr, vars map[string]any) (value, error) {
	left, err := ev.eval(e.Left, vars)
	if err != nil {
		return value{}, err
	}
	if e.Op == "!" {
		if !left.known {
			return residual(&ir.Expr{Kind: ir.ExprLogical, Op: "!", Left: left.expr()}), nil
		}
		b, ok := left.v.(bool)
		if !ok {
			return value{}, fmt.Errorf("lattice: ! applied to %T", left.v)
		}
		return known(!b), nil
	}

	right, err := ev.eval(e.Right, vars)
	if err != nil {
		return value{}, err
	}
	// Short-circuit on whichever side is known.
	if left.known {
		b, ok := left.v.(bool)
		if !ok {
			return value{}, fmt.Errorf("lattice: %s applied to %T", e.Op, left.v)
		}
		if e.Op == "&&" {
			if !b {
				return known(false), nil
			}
			return right, nil
		}
		if b {
			return known(true), nil
		}
		return right, nil
	}
	if right.known {
		b, ok := right.v.(bool)
		if !ok {
			return value{}, fmt.Errorf("lattice: %s applied to %T", e.Op, right.v)
		}
		if e.Op == "&&" {
			if !b {
				return known(false), nil
			}
			return left, nil
		}
		if b {
			return known(true), nil
		}
		return left, nil
	}
	return residual(&ir.Expr{Kind: ir.ExprLogical, Op: e.Op, Left: left.expr(), Right: right.expr()}), nil
}

func (ev *evaluator) evalRelational(e *ir.Expr, vars map[string]any) (value, error) {
	left, err := ev.eval(e.Left, vars)
	if err != nil {
		return value{}, err
	}
	right, err := ev.eval(e.Right, vars)
	if err != nil {
		return value{}, err
	}
	if !left.known || !right.known {
		return residual(&ir.Expr{Kind: ir.ExprRelational, Op: e.Op, Left: left.expr(), Right: right.expr()}), nil
	}

	switch e.Op {
	case "==":
		return known(equal(left.v, right.v)), nil
	case "!=":
		return known(!equal(left.v, right.v)), nil
	case "in":
		list, ok := right.v.([]any)
		if !ok {
			return value{}, fmt.Errorf("lattice: in over non-list value %T", right.v)
		}
		for _, el := range list {
			if equal(left.v, el) {
				return known(true), nil
			}
		}
		return known(false), nil
	default:
		c, err := compare(left.v, right.v)
		if err != nil {
			return value{}, err
		}
		switch e.Op {
		case "<":
			return known(c < 0), nil
		case "<=":
			return known(c <= 0), nil
		case ">":
			return known(c > 0), nil
		case ">=":
			return known(c >= 0), nil
		}
	}
	return value{}, fmt.Errorf("lattice: unknown relational operator %q", e.Op)
}

// equal compares two known values, letting numeric kinds cross.
func equal(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func compare(a, b any) (int, error) {
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, fmt.Errorf("lattice: ordering %T against %T", a, b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("lattice: values of %T are not ordered", a)
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
