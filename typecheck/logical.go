package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// LogicalExpr is a checked boolean connective. Operands must be Boolean;
// there is no truthiness.
type LogicalExpr struct {
	Op   ast.LogicalOpKind
	Left Expr
	// Right is nil for Not.
	Right Expr
	pos   lattice.Position
	typ   Type
}

func newLogicalExpr(e *ast.LogicalExpr) *LogicalExpr {
	le := &LogicalExpr{Op: e.Op, Left: newExpr(e.Left), pos: e.Span, typ: Defer{}}
	if e.Right != nil {
		le.Right = newExpr(e.Right)
	}
	return le
}

// Typ returns Boolean, or a placeholder.
func (e *LogicalExpr) Typ() Type { return e.typ }

// Pos returns the operator's source position.
func (e *LogicalExpr) Pos() lattice.Position { return e.pos }

func (e *LogicalExpr) pass(scope Scope, cx *passContext) bool {
	if isComplete(e.typ) {
		return false
	}
	changed := e.Left.pass(scope, cx)
	if e.Right != nil && e.Right.pass(scope, cx) {
		changed = true
	}
	operands := []Expr{e.Left}
	if e.Right != nil {
		operands = append(operands, e.Right)
	}
	for _, op := range operands {
		if !isComplete(op.Typ()) {
			return changed
		}
	}
	for _, op := range operands {
		if !isBoolean(op.Typ(), cx.types) {
			cx.errorf(lattice.KindTypeMismatch, op.Pos(),
				"operand of %s must be Boolean, got %s", e.Op, op.Typ())
			e.typ = ErrorType{}
			return changed
		}
	}
	e.typ = boolean
	return true
}
