package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// Selection is a checked field-selection chain. The head binds through
// the scope (`self` or a predicate parameter) or names a context type;
// every later step selects into the type the prefix resolved to.
type Selection struct {
	Prefix *Selection
	Elem   SelectionElem
	pos    lattice.Position
	typ    Type
}

// SelectionElem is one checked step of a chain.
type SelectionElem interface {
	selectionElem()
	Pos() lattice.Position
}

// Ident is a plain identifier step.
type Ident struct {
	Name string
	pos  lattice.Position
}

// HofCall is a higher-order predicate step over a to-many field.
type HofCall struct {
	Name  string
	Param string
	Expr  Expr
	pos   lattice.Position
}

// NormalCall is a plain function step such as `contains(x)`.
type NormalCall struct {
	Name string
	Args []Expr
	pos  lattice.Position
}

func (*Ident) selectionElem()      {}
func (*HofCall) selectionElem()    {}
func (*NormalCall) selectionElem() {}

// Pos returns the identifier's source position.
func (e *Ident) Pos() lattice.Position { return e.pos }

// Pos returns the call's source position.
func (e *HofCall) Pos() lattice.Position { return e.pos }

// Pos returns the call's source position.
func (e *NormalCall) Pos() lattice.Position { return e.pos }

func newSelection(e *ast.Selection) *Selection {
	s := &Selection{pos: e.Span, typ: Defer{}}
	if e.Prefix != nil {
		s.Prefix = newSelection(e.Prefix)
	}
	switch el := e.Elem.(type) {
	case *ast.Ident:
		s.Elem = &Ident{Name: el.Name, pos: el.Span}
	case *ast.HofCall:
		s.Elem = &HofCall{Name: el.Name, Param: el.Param, Expr: newExpr(el.Expr), pos: el.Span}
	case *ast.NormalCall:
		args := make([]Expr, len(el.Args))
		for i, a := range el.Args {
			args[i] = newExpr(a)
		}
		s.Elem = &NormalCall{Name: el.Name, Args: args, pos: el.Span}
	}
	return s
}

// Typ returns the chain's resolved type, or a placeholder.
func (e *Selection) Typ() Type { return e.typ }

// Pos returns the chain's source position.
func (e *Selection) Pos() lattice.Position { return e.pos }

// Head returns the chain's head identifier, or nil when the head is a
// call form.
func (e *Selection) Head() *Ident {
	s := e
	for s.Prefix != nil {
		s = s.Prefix
	}
	id, _ := s.Elem.(*Ident)
	return id
}

func (e *Selection) pass(scope Scope, cx *passContext) bool {
	if isComplete(e.typ) {
		return false
	}
	if e.Prefix == nil {
		return e.passHead(scope, cx)
	}
	changed := e.Prefix.pass(scope, cx)
	prefix := e.Prefix.typ
	if _, failed := prefix.(ErrorType); failed {
		e.typ = ErrorType{}
		return changed
	}
	if !isComplete(prefix) {
		return changed
	}
	if e.passStep(prefix, scope, cx) {
		changed = true
	}
	return changed
}

// passHead resolves the first chain element. `self` and predicate
// parameters come from the scope; a bare name otherwise must be a
// globally declared context.
func (e *Selection) passHead(scope Scope, cx *passContext) bool {
	id, ok := e.Elem.(*Ident)
	if !ok {
		cx.errorf(lattice.KindTypeMismatch, e.pos,
			"a predicate call needs a collection field to apply to")
		e.typ = ErrorType{}
		return false
	}
	if typeName, bound := scope.TypeNameOf(id.Name); bound {
		if ix, ok := cx.types.NameLookup(typeName); ok {
			e.typ = Reference{Index: ix, Name: typeName}
			return true
		}
		cx.errorf(lattice.KindUnresolvedType, e.pos, "reference to unresolved type `%s`", typeName)
		e.typ = ErrorType{}
		return false
	}
	if ix, ok := cx.types.NameLookup(id.Name); ok {
		if v, got := cx.types.Get(ix); got {
			if c, isComposite := v.(Composite); isComposite && c.Model.Kind == ast.KindContext {
				e.typ = Reference{Index: ix, Name: id.Name}
				return true
			}
		}
	}
	cx.errorf(lattice.KindUnknownIdentifier, e.pos, "unknown identifier `%s`", id.Name)
	e.typ = ErrorType{}
	return false
}

// passStep applies the chain element to the prefix type. Optional
// wrappers are looked through; nullability is a runtime concern.
func (e *Selection) passStep(prefix Type, scope Scope, cx *passContext) bool {
	base := deref(prefix, cx.types)
	for {
		o, ok := base.(Optional)
		if !ok {
			break
		}
		base = deref(o.Elem, cx.types)
	}

	switch el := e.Elem.(type) {
	case *Ident:
		switch base := base.(type) {
		case Composite:
			f := base.Model.FieldByName(el.Name)
			if f == nil {
				cx.errorf(lattice.KindUnknownIdentifier, el.pos,
					"no such field `%s` on type %s", el.Name, base.Model.Name)
				e.typ = ErrorType{}
				return false
			}
			ft := f.Type.Typ()
			if !isComplete(ft) {
				return false
			}
			e.typ = ft
			return true
		case Set:
			cx.errorf(lattice.KindMissingHofOnSetField, el.pos,
				"cannot select `%s` from a collection without a predicate", el.Name)
		case Array:
			cx.errorf(lattice.KindSelectOnNonComposite, el.pos,
				"cannot select `%s` from an array; only contains(...) applies", el.Name)
		default:
			cx.errorf(lattice.KindSelectOnNonComposite, el.pos,
				"cannot select `%s` from non-composite type %s", el.Name, base)
		}
		e.typ = ErrorType{}
		return false

	case *HofCall:
		set, ok := base.(Set)
		if !ok {
			cx.errorf(lattice.KindTypeMismatch, el.pos,
				"%s(...) applies to collection fields, not %s", el.Name, base)
			e.typ = ErrorType{}
			return false
		}
		if el.Name != "some" {
			cx.errorf(lattice.KindUnknownIdentifier, el.pos,
				"unknown predicate function `%s`; only some(...) is supported", el.Name)
			e.typ = ErrorType{}
			return false
		}
		elemName, ok := underlyingName(set.Elem, cx.types)
		if !ok {
			e.typ = ErrorType{}
			return false
		}
		changed := el.Expr.pass(scope.WithVar(el.Param, elemName), cx)
		body := el.Expr.Typ()
		if !isComplete(body) {
			return changed
		}
		if !isBoolean(body, cx.types) {
			cx.errorf(lattice.KindNonBooleanHofBody, el.Expr.Pos(),
				"predicate body must be Boolean, got %s", body)
			e.typ = ErrorType{}
			return changed
		}
		e.typ = boolean
		return true

	case *NormalCall:
		arr, ok := base.(Array)
		if !ok {
			cx.errorf(lattice.KindTypeMismatch, el.pos,
				"%s(...) applies to array fields, not %s", el.Name, base)
			e.typ = ErrorType{}
			return false
		}
		if el.Name != "contains" || len(el.Args) != 1 {
			cx.errorf(lattice.KindUnknownIdentifier, el.pos,
				"arrays support only contains(value)")
			e.typ = ErrorType{}
			return false
		}
		arg := el.Args[0]
		changed := arg.pass(scope, cx)
		if !isComplete(arg.Typ()) {
			return changed
		}
		if !sameType(arr.Elem, arg.Typ(), cx.types) {
			cx.errorf(lattice.KindTypeMismatch, arg.Pos(),
				"contains argument must be %s, got %s", arr.Elem, arg.Typ())
			e.typ = ErrorType{}
			return changed
		}
		e.typ = boolean
		return true
	}
	return false
}
