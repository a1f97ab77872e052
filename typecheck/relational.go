package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// RelationalExpr is a checked comparison. Its type is always Boolean once
// the operands agree.
type RelationalExpr struct {
	Op    ast.RelationalOpKind
	Left  Expr
	Right Expr
	pos   lattice.Position
	typ   Type
}

func newRelationalExpr(e *ast.RelationalExpr) *RelationalExpr {
	return &RelationalExpr{
		Op:    e.Op,
		Left:  newExpr(e.Left),
		Right: newExpr(e.Right),
		pos:   e.Span,
		typ:   Defer{},
	}
}

// Typ returns Boolean, or a placeholder.
func (e *RelationalExpr) Typ() Type { return e.typ }

// Pos returns the operator's source position.
func (e *RelationalExpr) Pos() lattice.Position { return e.pos }

func (e *RelationalExpr) pass(scope Scope, cx *passContext) bool {
	if isComplete(e.typ) {
		return false
	}
	changed := e.Left.pass(scope, cx)
	if e.Right.pass(scope, cx) {
		changed = true
	}
	left, right := e.Left.Typ(), e.Right.Typ()
	if !isComplete(left) || !isComplete(right) {
		return changed
	}

	switch e.Op {
	case ast.Eq, ast.Neq:
		if !identityComparable(left, right, cx) {
			cx.errorf(lattice.KindTypeMismatch, e.pos,
				"mismatched types: cannot compare %s %s %s", left, e.Op, right)
			e.typ = ErrorType{}
			return changed
		}
	case ast.Lt, ast.Lte, ast.Gt, ast.Gte:
		if !orderComparable(left, right, cx) {
			cx.errorf(lattice.KindTypeMismatch, e.pos,
				"mismatched types: cannot order %s %s %s", left, e.Op, right)
			e.typ = ErrorType{}
			return changed
		}
	case ast.In:
		if !inComparable(left, right, cx) {
			cx.errorf(lattice.KindTypeMismatch, e.pos,
				"mismatched types: %s cannot be a member of %s", left, right)
			e.typ = ErrorType{}
			return changed
		}
	}
	e.typ = boolean
	return true
}

// identityComparable admits == and != operands: identical types, any two
// numeric kinds, or null against an optional.
func identityComparable(left, right Type, cx *passContext) bool {
	l, r := deref(left, cx.types), deref(right, cx.types)
	if sameType(l, r, cx.types) {
		return true
	}
	if numericPair(l, r) {
		return true
	}
	if _, isNull := l.(Null); isNull {
		_, opt := r.(Optional)
		return opt
	}
	if _, isNull := r.(Null); isNull {
		_, opt := l.(Optional)
		return opt
	}
	// An optional compares against its own element type.
	if lo, ok := l.(Optional); ok {
		return identityComparable(lo.Elem, r, cx)
	}
	if ro, ok := r.(Optional); ok {
		return identityComparable(l, ro.Elem, cx)
	}
	return false
}

// orderComparable admits < <= > >= operands: both sides ordered
// primitives of the same kind, or any numeric mix.
func orderComparable(left, right Type, cx *passContext) bool {
	lp, lok := deref(left, cx.types).(Primitive)
	rp, rok := deref(right, cx.types).(Primitive)
	if !lok || !rok {
		return false
	}
	if numericPair(lp, rp) {
		return true
	}
	return lp.Kind == rp.Kind && isOrdered(lp.Kind)
}

// inComparable admits `x in xs`: the right side is a list or collection
// whose element type matches the left side.
func inComparable(left, right Type, cx *passContext) bool {
	var elem Type
	switch r := deref(right, cx.types).(type) {
	case Array:
		elem = r.Elem
	case Set:
		elem = r.Elem
	default:
		return false
	}
	l, e := deref(left, cx.types), deref(elem, cx.types)
	return sameType(l, e, cx.types) || numericPair(l, e)
}

func numericPair(a, b Type) bool {
	ap, aok := a.(Primitive)
	bp, bok := b.(Primitive)
	return aok && bok && isNumeric(ap.Kind) && isNumeric(bp.Kind)
}
