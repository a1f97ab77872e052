package typecheck

import (
	"strings"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// Expr is a type-annotated expression node. Each node starts with a Defer
// type; pass drives it toward a resolved type, returning whether anything
// changed so the fixpoint loop knows when to stop.
type Expr interface {
	Typ() Type
	Pos() lattice.Position
	pass(scope Scope, cx *passContext) bool
}

// newExpr converts a parsed expression into its typed mirror. Literal
// types are known immediately; everything else defers to pass.
func newExpr(e ast.Expr) Expr {
	switch e := e.(type) {
	case *ast.StringLit:
		return &StringLit{Value: e.Value, pos: e.Span}
	case *ast.BooleanLit:
		return &BooleanLit{Value: e.Value, pos: e.Span}
	case *ast.NumberLit:
		return &NumberLit{Raw: e.Raw, pos: e.Span}
	case *ast.NullLit:
		return &NullLit{pos: e.Span}
	case *ast.ListLit:
		elems := make([]Expr, len(e.Elems))
		for i, el := range e.Elems {
			elems[i] = newExpr(el)
		}
		return &ListLit{Elems: elems, pos: e.Span, typ: Defer{}}
	case *ast.Selection:
		return newSelection(e)
	case *ast.LogicalExpr:
		return newLogicalExpr(e)
	case *ast.RelationalExpr:
		return newRelationalExpr(e)
	default:
		// Parser bug if reached.
		panic("typecheck: unknown expression form")
	}
}

// StringLit is a checked string literal.
type StringLit struct {
	Value string
	pos   lattice.Position
}

// Typ returns String.
func (e *StringLit) Typ() Type { return Primitive{Kind: KindString} }

// Pos returns the literal's source position.
func (e *StringLit) Pos() lattice.Position { return e.pos }

func (e *StringLit) pass(Scope, *passContext) bool { return false }

// BooleanLit is a checked boolean literal.
type BooleanLit struct {
	Value bool
	pos   lattice.Position
}

// Typ returns Boolean.
func (e *BooleanLit) Typ() Type { return boolean }

// Pos returns the literal's source position.
func (e *BooleanLit) Pos() lattice.Position { return e.pos }

func (e *BooleanLit) pass(Scope, *passContext) bool { return false }

// NumberLit is a checked numeric literal. A spelling without a fraction
// or exponent types as Int, anything else as Float; Decimal contexts
// accept either, validated where the literal is used.
type NumberLit struct {
	Raw string
	pos lattice.Position
}

// IsInt reports whether the literal spells an integer.
func (e *NumberLit) IsInt() bool {
	return !strings.ContainsAny(e.Raw, ".eE")
}

// Typ returns Int or Float by spelling.
func (e *NumberLit) Typ() Type {
	if e.IsInt() {
		return Primitive{Kind: KindInt}
	}
	return Primitive{Kind: KindFloat}
}

// Pos returns the literal's source position.
func (e *NumberLit) Pos() lattice.Position { return e.pos }

func (e *NumberLit) pass(Scope, *passContext) bool { return false }

// NullLit is the checked null literal.
type NullLit struct {
	pos lattice.Position
}

// Typ returns the null type.
func (e *NullLit) Typ() Type { return Null{} }

// Pos returns the literal's source position.
func (e *NullLit) Pos() lattice.Position { return e.pos }

func (e *NullLit) pass(Scope, *passContext) bool { return false }

// ListLit is a checked literal list. Its type is Array of the common
// element type; mixed element types are a mismatch.
type ListLit struct {
	Elems []Expr
	pos   lattice.Position
	typ   Type
}

// Typ returns the resolved Array type, or a placeholder.
func (e *ListLit) Typ() Type { return e.typ }

// Pos returns the list's source position.
func (e *ListLit) Pos() lattice.Position { return e.pos }

func (e *ListLit) pass(scope Scope, cx *passContext) bool {
	if isComplete(e.typ) {
		return false
	}
	changed := false
	for _, el := range e.Elems {
		if el.pass(scope, cx) {
			changed = true
		}
	}
	for _, el := range e.Elems {
		if !isComplete(el.Typ()) {
			return changed
		}
	}
	if len(e.Elems) == 0 {
		cx.errorf(lattice.KindTypeMismatch, e.pos, "empty list literal has no element type")
		e.typ = ErrorType{}
		return changed
	}
	elem := e.Elems[0].Typ()
	for _, el := range e.Elems[1:] {
		if !sameType(elem, el.Typ(), cx.types) {
			cx.errorf(lattice.KindTypeMismatch, el.Pos(),
				"list elements must share one type, got %s and %s", elem, el.Typ())
			e.typ = ErrorType{}
			return changed
		}
	}
	e.typ = Array{Elem: elem}
	return true
}
