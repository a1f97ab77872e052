package access_test

import (
	"testing"

	"github.com/latticeql/lattice/access"
	"github.com/latticeql/lattice/ir"
	"github.com/latticeql/lattice/parser"
	"github.com/latticeql/lattice/typecheck"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentModel = `
context AuthContext {
	@jwt("sub") id: Int
	@jwt role: String
}

@database
module Docs {
	@access(
		query = AuthContext.role == "admin" || self.documentUsers.some(du => du.read),
		mutation = AuthContext.role == "admin"
	)
	type Document {
		@pk id: Int = autoIncrement()
		content: String
		documentUsers: Set<DocumentUser>
	}

	type DocumentUser {
		@pk id: Int = autoIncrement()
		document: Document
		userId: Int
		read: Boolean
		write: Boolean
	}
}
`

func documentRules(t *testing.T) *ir.AccessRules {
	t.Helper()
	parsed, err := parser.Parse("model.lat", documentModel)
	require.NoError(t, err)
	checked, err := typecheck.Check(parsed)
	require.NoError(t, err)
	sys := ir.Snapshot(checked)
	rules := sys.Types.Slot("Docs.Document").Composite.Access
	require.NotNil(t, rules)
	return rules
}

func adminContext(role string) map[string]map[string]any {
	return map[string]map[string]any{
		"AuthContext": {"id": int64(7), "role": role},
	}
}

func TestEvaluate_AdminShortCircuits(t *testing.T) {
	rules := documentRules(t)
	rule := access.RuleFor(rules, access.OpQuery)

	res, err := access.Evaluate(rule, access.Input{Contexts: adminContext("admin")})
	require.NoError(t, err)
	assert.Equal(t, access.Allow, res.Decision)
	assert.Nil(t, res.Predicate)
}

func TestEvaluate_NonAdminLeavesResidual(t *testing.T) {
	rules := documentRules(t)
	rule := access.RuleFor(rules, access.OpQuery)

	res, err := access.Evaluate(rule, access.Input{Contexts: adminContext("user")})
	require.NoError(t, err)
	require.Equal(t, access.Residual, res.Decision)
	assert.Equal(t, "self.documentUsers.some(du => du.read)", res.Predicate.String())
}

func TestEvaluate_SelfRowDecidesPredicate(t *testing.T) {
	rules := documentRules(t)
	rule := access.RuleFor(rules, access.OpQuery)

	in := access.Input{
		Contexts: adminContext("user"),
		Self: map[string]any{
			"documentUsers": []any{
				map[string]any{"userId": int64(1), "read": false},
				map[string]any{"userId": int64(7), "read": true},
			},
		},
	}
	res, err := access.Evaluate(rule, in)
	require.NoError(t, err)
	assert.Equal(t, access.Allow, res.Decision)

	in.Self["documentUsers"] = []any{
		map[string]any{"userId": int64(1), "read": false},
	}
	res, err = access.Evaluate(rule, in)
	require.NoError(t, err)
	assert.Equal(t, access.Deny, res.Decision)
}

func TestEvaluate_MutationFallbacks(t *testing.T) {
	rules := documentRules(t)

	for _, op := range []access.Operation{access.OpCreate, access.OpUpdate, access.OpDelete} {
		t.Run(op.String(), func(t *testing.T) {
			res, err := access.Evaluate(access.RuleFor(rules, op), access.Input{Contexts: adminContext("admin")})
			require.NoError(t, err)
			assert.Equal(t, access.Allow, res.Decision)

			res, err = access.Evaluate(access.RuleFor(rules, op), access.Input{Contexts: adminContext("viewer")})
			require.NoError(t, err)
			assert.Equal(t, access.Deny, res.Decision)
		})
	}
}

func TestEvaluate_NilRuleDenies(t *testing.T) {
	res, err := access.Evaluate(access.RuleFor(nil, access.OpQuery), access.Input{})
	require.NoError(t, err)
	assert.Equal(t, access.Deny, res.Decision)
}

func strExpr(s string) *ir.Expr { return &ir.Expr{Kind: ir.ExprString, StringValue: &s} }
func numExpr(n string) *ir.Expr { return &ir.Expr{Kind: ir.ExprNumber, Number: n} }
func chainExpr(names ...string) *ir.Expr {
	e := &ir.Expr{Kind: ir.ExprChain}
	for _, n := range names {
		e.Chain = append(e.Chain, &ir.Step{Kind: ir.StepField, Name: n})
	}
	return e
}

func TestEvaluate_Operators(t *testing.T) {
	in := access.Input{Contexts: map[string]map[string]any{
		"Ctx": {"n": int64(5), "name": "kim", "roles": []any{"editor", "viewer"}},
	}}

	t.Run("numeric_ordering", func(t *testing.T) {
		rule := &ir.Expr{Kind: ir.ExprRelational, Op: "<", Left: chainExpr("Ctx", "n"), Right: numExpr("10")}
		res, err := access.Evaluate(rule, in)
		require.NoError(t, err)
		assert.Equal(t, access.Allow, res.Decision)
	})

	t.Run("in_list", func(t *testing.T) {
		rule := &ir.Expr{
			Kind: ir.ExprRelational, Op: "in",
			Left:  strExpr("editor"),
			Right: chainExpr("Ctx", "roles"),
		}
		res, err := access.Evaluate(rule, in)
		require.NoError(t, err)
		assert.Equal(t, access.Allow, res.Decision)
	})

	t.Run("contains", func(t *testing.T) {
		rule := &ir.Expr{Kind: ir.ExprChain, Chain: []*ir.Step{
			{Kind: ir.StepField, Name: "Ctx"},
			{Kind: ir.StepField, Name: "roles"},
			{Kind: ir.StepContains, Name: "contains", Args: []*ir.Expr{strExpr("viewer")}},
		}}
		res, err := access.Evaluate(rule, in)
		require.NoError(t, err)
		assert.Equal(t, access.Allow, res.Decision)
	})

	t.Run("negation", func(t *testing.T) {
		rule := &ir.Expr{Kind: ir.ExprLogical, Op: "!", Left: &ir.Expr{
			Kind: ir.ExprRelational, Op: "==", Left: chainExpr("Ctx", "name"), Right: strExpr("kim"),
		}}
		res, err := access.Evaluate(rule, in)
		require.NoError(t, err)
		assert.Equal(t, access.Deny, res.Decision)
	})

	t.Run("unknown_context_is_residual", func(t *testing.T) {
		rule := &ir.Expr{Kind: ir.ExprRelational, Op: "==", Left: chainExpr("Other", "x"), Right: numExpr("1")}
		res, err := access.Evaluate(rule, in)
		require.NoError(t, err)
		assert.Equal(t, access.Residual, res.Decision)
		assert.Equal(t, "Other.x == 1", res.Predicate.String())
	})
}

func TestEvaluate_ResidualSubstitutesKnownSides(t *testing.T) {
	in := access.Input{Contexts: map[string]map[string]any{"Ctx": {"limit": int64(3)}}}
	rule := &ir.Expr{
		Kind: ir.ExprRelational, Op: "<=",
		Left:  chainExpr("self", "rank"),
		Right: chainExpr("Ctx", "limit"),
	}
	res, err := access.Evaluate(rule, in)
	require.NoError(t, err)
	require.Equal(t, access.Residual, res.Decision)
	assert.Equal(t, "self.rank <= 3", res.Predicate.String())
}
