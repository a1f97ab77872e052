package parser_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
	"github.com/latticeql/lattice/parser"
)

func TestParse_Declarations(t *testing.T) {
	sys, err := parser.Parse("model.lat", `
context AuthContext {
	@jwt("sub") id: Int
	@jwt role: String
}

@database
module Docs {
	enum Visibility { private, shared }

	type Document {
		@pk id: Int = autoIncrement()
		content: String
		visibility: Visibility = "private"
	}
}
`)
	require.NoError(t, err)

	require.Len(t, sys.Types, 1)
	ctx := sys.Types[0]
	assert.Equal(t, "AuthContext", ctx.Name)
	assert.Equal(t, ast.KindContext, ctx.Kind)
	require.Len(t, ctx.Fields, 2)
	assert.Equal(t, "jwt", ctx.Fields[0].Annotations[0].Name)

	require.Len(t, sys.Modules, 1)
	mod := sys.Modules[0]
	assert.Equal(t, "Docs", mod.Name)
	assert.Equal(t, "database", mod.Annotations[0].Name)
	require.Len(t, mod.Enums, 1)
	assert.Equal(t, []string{"private", "shared"}, caseNames(mod.Enums[0]))

	require.Len(t, mod.Types, 1)
	doc := mod.Types[0]
	assert.Equal(t, ast.KindType, doc.Kind)
	require.Len(t, doc.Fields, 3)
	require.NotNil(t, doc.Fields[0].Default)
	assert.Equal(t, "autoIncrement", doc.Fields[0].Default.FuncName)
	require.NotNil(t, doc.Fields[2].Default)
	assert.Equal(t, "", doc.Fields[2].Default.FuncName)
	assert.IsType(t, &ast.StringLit{}, doc.Fields[2].Default.Value)
}

func caseNames(e *ast.Enum) []string {
	var names []string
	for _, c := range e.Cases {
		names = append(names, c.Name)
	}
	return names
}

func TestParse_TypeShapes(t *testing.T) {
	sys, err := parser.Parse("model.lat", `
type T {
	tags: Array<String>
	users: Set<Users.DocumentUser>
	note: String?
}
`)
	require.NoError(t, err)
	fields := sys.Types[0].Fields

	tags := fields[0].Type.(*ast.PlainType)
	assert.Equal(t, "Array", tags.Base)
	require.Len(t, tags.Args, 1)
	assert.Equal(t, "String", tags.Args[0].(*ast.PlainType).Base)

	users := fields[1].Type.(*ast.PlainType)
	assert.Equal(t, "Set", users.Base)
	inner := users.Args[0].(*ast.PlainType)
	assert.Equal(t, "Users", inner.Module)
	assert.Equal(t, "DocumentUser", inner.Base)

	note := fields[2].Type.(*ast.OptionalType)
	assert.Equal(t, "String", note.Inner.Name())
}

func TestParse_AnnotationShapes(t *testing.T) {
	sys, err := parser.Parse("model.lat", `
@database
@table("documents")
@access(query = true, mutation = AuthContext.role == "admin", query = false)
module Docs {
	type Document {
		@pk id: Int = autoIncrement()
		@range(min = 0, max = 100) score: Int
	}
}
`)
	require.NoError(t, err)
	anns := sys.Modules[0].Annotations
	require.Len(t, anns, 3)

	assert.IsType(t, ast.NoParams{}, anns[0].Params)

	table := anns[1].Params.(*ast.SingleParam)
	assert.Equal(t, "documents", table.Value.(*ast.StringLit).Value)

	access := anns[2].Params.(*ast.MapParams)
	assert.Len(t, access.Values, 2)
	// The first occurrence of a duplicate key wins; every occurrence is
	// recorded for diagnostics.
	assert.Equal(t, true, access.Values["query"].(*ast.BooleanLit).Value)
	assert.Len(t, access.Spans["query"], 2)
	assert.IsType(t, &ast.RelationalExpr{}, access.Values["mutation"])
}

func TestParse_AnnotationListSugar(t *testing.T) {
	sys, err := parser.Parse("model.lat", `
type T {
	@index("a", "b") x: Int
}
`)
	require.NoError(t, err)
	param := sys.Types[0].Fields[0].Annotations[0].Params.(*ast.SingleParam)
	list := param.Value.(*ast.ListLit)
	require.Len(t, list.Elems, 2)
	assert.Equal(t, "b", list.Elems[1].(*ast.StringLit).Value)
}

// accessExpr parses src as a single-parameter access annotation and
// returns the expression tree.
func accessExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	sys, err := parser.Parse("model.lat", "@access("+src+") type T { x: Int }")
	require.NoError(t, err)
	return sys.Types[0].Annotations[0].Params.(*ast.SingleParam).Value
}

func TestParse_ExpressionPrecedence(t *testing.T) {
	t.Run("relational_binds_tighter_than_and", func(t *testing.T) {
		e := accessExpr(t, "a == b && c > d").(*ast.LogicalExpr)
		assert.Equal(t, ast.And, e.Op)
		assert.Equal(t, ast.Eq, e.Left.(*ast.RelationalExpr).Op)
		assert.Equal(t, ast.Gt, e.Right.(*ast.RelationalExpr).Op)
	})

	t.Run("and_binds_tighter_than_or", func(t *testing.T) {
		e := accessExpr(t, "a || b && c").(*ast.LogicalExpr)
		assert.Equal(t, ast.Or, e.Op)
		assert.Equal(t, ast.And, e.Right.(*ast.LogicalExpr).Op)
	})

	t.Run("not_binds_tightest", func(t *testing.T) {
		e := accessExpr(t, "!a == b").(*ast.RelationalExpr)
		assert.Equal(t, ast.Eq, e.Op)
		not := e.Left.(*ast.LogicalExpr)
		assert.Equal(t, ast.Not, not.Op)
		assert.Nil(t, not.Right)
	})

	t.Run("parentheses_override", func(t *testing.T) {
		e := accessExpr(t, "(a || b) && c").(*ast.LogicalExpr)
		assert.Equal(t, ast.And, e.Op)
		assert.Equal(t, ast.Or, e.Left.(*ast.LogicalExpr).Op)
	})

	t.Run("in_list", func(t *testing.T) {
		e := accessExpr(t, `a in ["x", "y"]`).(*ast.RelationalExpr)
		assert.Equal(t, ast.In, e.Op)
		assert.Len(t, e.Right.(*ast.ListLit).Elems, 2)
	})
}

func TestParse_SelectionChain(t *testing.T) {
	e := accessExpr(t, `self.documentUsers.some(du => du.read)`)
	chain := e.(*ast.Selection)
	path := chain.Path()
	require.Len(t, path, 3)
	assert.Equal(t, "self", path[0].(*ast.Ident).Name)
	assert.Equal(t, "documentUsers", path[1].(*ast.Ident).Name)

	hof := path[2].(*ast.HofCall)
	assert.Equal(t, "some", hof.Name)
	assert.Equal(t, "du", hof.Param)
	body := hof.Expr.(*ast.Selection).Path()
	assert.Equal(t, "read", body[1].(*ast.Ident).Name)

	e = accessExpr(t, `self.tags.contains("draft")`)
	path = e.(*ast.Selection).Path()
	call := path[2].(*ast.NormalCall)
	assert.Equal(t, "contains", call.Name)
	require.Len(t, call.Args, 1)
}

func TestParse_ModuleMembers(t *testing.T) {
	sys, err := parser.Parse("model.lat", `
@script("report.ts")
module Reports {
	export query usage(days: Int): Json
	mutation purge(before: LocalDate): Boolean

	@before("*")
	interceptor trace(@inject op: Operation)
}
`)
	require.NoError(t, err)
	mod := sys.Modules[0]

	require.Len(t, mod.Methods, 2)
	usage := mod.Methods[0]
	assert.True(t, usage.Exported)
	assert.Equal(t, ast.Query, usage.Kind)
	require.Len(t, usage.Arguments, 1)
	assert.Equal(t, "days", usage.Arguments[0].Name)
	assert.Equal(t, "Json", usage.ReturnType.(*ast.PlainType).Base)

	purge := mod.Methods[1]
	assert.False(t, purge.Exported)
	assert.Equal(t, ast.Mutation, purge.Kind)

	require.Len(t, mod.Interceptors, 1)
	trace := mod.Interceptors[0]
	assert.Equal(t, "before", trace.Annotations[0].Name)
	assert.Equal(t, "inject", trace.Arguments[0].Annotations[0].Name)
}

func TestParse_Errors(t *testing.T) {
	for name, src := range map[string]string{
		"stray_token":           `type T { x: Int } }`,
		"missing_field_type":    `type T { x }`,
		"annotated_enum":        `@table("x") enum E { a }`,
		"annotated_import":      `@database import "other.lat"`,
		"unclosed_module":       `module M {`,
		"bad_expression":        `@access(&&) type T { x: Int }`,
		"method_outside_module": `query usage(): Int`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parser.Parse("model.lat", src)
			require.Error(t, err)
			assert.True(t, lattice.IsKind(err, lattice.KindSyntax))
		})
	}
}

const importFixture = `
-- main.lat --
import "users.lat"
import "docs.lat"

context AuthContext {
	@jwt("sub") id: Int
}
-- users.lat --
import "docs.lat"

@database
module Users {
	type User {
		@pk id: Int = autoIncrement()
	}
}
-- docs.lat --
@database
module Docs {
	type Document {
		@pk id: Int = autoIncrement()
	}
}
`

func TestParseFile_ImportsMerge(t *testing.T) {
	dir := t.TempDir()
	for _, f := range txtar.Parse([]byte(importFixture)).Files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644))
	}

	sys, err := parser.ParseFile(filepath.Join(dir, "main.lat"))
	require.NoError(t, err)

	// Depth-first load order; the diamond import of docs.lat loads once.
	assert.Equal(t, []string{
		filepath.Join(dir, "main.lat"),
		filepath.Join(dir, "users.lat"),
		filepath.Join(dir, "docs.lat"),
	}, sys.Imports)

	require.Len(t, sys.Modules, 2)
	assert.Equal(t, "Docs", sys.Modules[0].Name)
	assert.Equal(t, "Users", sys.Modules[1].Name)
	require.Len(t, sys.Types, 1)
	assert.Equal(t, "AuthContext", sys.Types[0].Name)
}

func TestParseFile_MissingImport(t *testing.T) {
	dir := t.TempDir()
	src := []byte("import \"gone.lat\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lat"), src, 0o644))

	_, err := parser.ParseFile(filepath.Join(dir, "main.lat"))
	require.Error(t, err)
}
