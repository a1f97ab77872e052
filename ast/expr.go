package ast

import "github.com/latticeql/lattice"

// Expr is the closed set of expression forms accepted in annotation
// parameters and default values. The checker matches on the concrete
// types exhaustively; adding a variant means extending every switch.
type Expr interface {
	exprNode()
	Pos() lattice.Position
}

// StringLit is a double-quoted string literal.
type StringLit struct {
	Value string
	Span  lattice.Position
}

// BooleanLit is `true` or `false`.
type BooleanLit struct {
	Value bool
	Span  lattice.Position
}

// NumberLit keeps the source spelling of a numeric literal. The target
// type decides later whether it parses as Int, Float, or Decimal.
type NumberLit struct {
	Raw  string
	Span lattice.Position
}

// NullLit is the `null` literal.
type NullLit struct {
	Span lattice.Position
}

// ListLit is a bracketed literal list, the right-hand side of `in`.
type ListLit struct {
	Elems []Expr
	Span  lattice.Position
}

// Selection is a field-selection chain. A chain with a nil Prefix is a
// single head element (`self`, a context name, or a bound parameter);
// otherwise Elem is applied to the value the prefix selects.
type Selection struct {
	Prefix *Selection
	Elem   SelectionElem
	Span   lattice.Position
}

// SelectionElem is one step of a selection chain.
type SelectionElem interface {
	selectionElem()
	Pos() lattice.Position
}

// Ident is a plain identifier step such as `self` or `documentUsers`.
type Ident struct {
	Name string
	Span lattice.Position
}

// HofCall is a higher-order predicate step such as
// `some(du => du.read)`.
type HofCall struct {
	// Name of the function, such as "some".
	Name string
	// Param is the bound parameter name, such as "du".
	Param string
	// Expr is the predicate body, checked with Param in scope.
	Expr Expr
	Span lattice.Position
}

// NormalCall is a plain function step such as `contains("admin")`.
type NormalCall struct {
	Name string
	Args []Expr
	Span lattice.Position
}

// LogicalOpKind enumerates the boolean connectives.
type LogicalOpKind int

const (
	Not LogicalOpKind = iota
	And
	Or
)

// String returns the source spelling of the operator.
func (k LogicalOpKind) String() string {
	switch k {
	case Not:
		return "!"
	case And:
		return "&&"
	default:
		return "||"
	}
}

// LogicalExpr is `!x`, `x && y`, or `x || y`. Right is nil for Not.
type LogicalExpr struct {
	Op    LogicalOpKind
	Left  Expr
	Right Expr
	Span  lattice.Position
}

// RelationalOpKind enumerates the comparison operators.
type RelationalOpKind int

const (
	Eq RelationalOpKind = iota
	Neq
	Lt
	Lte
	Gt
	Gte
	In
)

// String returns the source spelling of the operator.
func (k RelationalOpKind) String() string {
	switch k {
	case Eq:
		return "=="
	case Neq:
		return "!="
	case Lt:
		return "<"
	case Lte:
		return "<="
	case Gt:
		return ">"
	case Gte:
		return ">="
	default:
		return "in"
	}
}

// RelationalExpr is a binary comparison.
type RelationalExpr struct {
	Op    RelationalOpKind
	Left  Expr
	Right Expr
	Span  lattice.Position
}

func (*StringLit) exprNode()      {}
func (*BooleanLit) exprNode()     {}
func (*NumberLit) exprNode()      {}
func (*NullLit) exprNode()        {}
func (*ListLit) exprNode()        {}
func (*Selection) exprNode()      {}
func (*LogicalExpr) exprNode()    {}
func (*RelationalExpr) exprNode() {}

func (*Ident) selectionElem()      {}
func (*HofCall) selectionElem()    {}
func (*NormalCall) selectionElem() {}

// Pos returns the literal's source position.
func (e *StringLit) Pos() lattice.Position { return e.Span }

// Pos returns the literal's source position.
func (e *BooleanLit) Pos() lattice.Position { return e.Span }

// Pos returns the literal's source position.
func (e *NumberLit) Pos() lattice.Position { return e.Span }

// Pos returns the literal's source position.
func (e *NullLit) Pos() lattice.Position { return e.Span }

// Pos returns the list's source position.
func (e *ListLit) Pos() lattice.Position { return e.Span }

// Pos returns the chain's source position.
func (e *Selection) Pos() lattice.Position { return e.Span }

// Pos returns the operator's source position.
func (e *LogicalExpr) Pos() lattice.Position { return e.Span }

// Pos returns the operator's source position.
func (e *RelationalExpr) Pos() lattice.Position { return e.Span }

// Pos returns the identifier's source position.
func (e *Ident) Pos() lattice.Position { return e.Span }

// Pos returns the call's source position.
func (e *HofCall) Pos() lattice.Position { return e.Span }

// Pos returns the call's source position.
func (e *NormalCall) Pos() lattice.Position { return e.Span }

// Path flattens the chain into its elements, head first.
func (e *Selection) Path() []SelectionElem {
	if e.Prefix == nil {
		return []SelectionElem{e.Elem}
	}
	return append(e.Prefix.Path(), e.Elem)
}

// Annotation is an `@name` or `@name(params)` attachment.
type Annotation struct {
	Name   string
	Params AnnotationParams
	Pos    lattice.Position
}

// AnnotationParams is the fixed set of parameter shapes: none, a single
// expression, or named parameters. The shape accepted by each annotation
// name is validated during type-checking.
type AnnotationParams interface {
	annotationParams()
}

// NoParams is the bare `@name` form.
type NoParams struct{}

// SingleParam is the `@name(expr)` form.
type SingleParam struct {
	Value Expr
	Span  lattice.Position
}

// MapParams is the `@name(key = expr, ...)` form. Spans keeps every
// occurrence of each key so duplicates can be diagnosed with both sites.
type MapParams struct {
	Values map[string]Expr
	Spans  map[string][]lattice.Position
}

func (NoParams) annotationParams()     {}
func (*SingleParam) annotationParams() {}
func (*MapParams) annotationParams()   {}
