package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// FieldType is a checked type expression. Resolution turns the syntactic
// name into a Type whose leaves are arena references; it never allocates
// new slots, so an unresolvable name is a hard error, not a forward
// declaration.
type FieldType struct {
	// Module qualifies the base name; empty for bare names.
	Module string
	Base   string
	Args   []*FieldType
	// Optional records a trailing `?`.
	Optional bool
	Pos      lattice.Position

	typ Type
}

// wrapperKinds are the generic type constructors accepted in type
// expressions.
var wrapperKinds = map[string]struct{}{"Set": {}, "Array": {}, "Optional": {}}

func newFieldType(t ast.FieldType) *FieldType {
	if opt, ok := t.(*ast.OptionalType); ok {
		ft := newFieldType(opt.Inner)
		ft.Optional = true
		return ft
	}
	plain := t.(*ast.PlainType)
	ft := &FieldType{
		Module: plain.Module,
		Base:   plain.Base,
		Pos:    plain.Span,
		typ:    Defer{},
	}
	for _, arg := range plain.Args {
		ft.Args = append(ft.Args, newFieldType(arg))
	}
	return ft
}

// Typ returns the resolved type, or a placeholder.
func (ft *FieldType) Typ() Type { return ft.typ }

func (ft *FieldType) pass(scope Scope, cx *passContext) bool {
	if isComplete(ft.typ) {
		return false
	}
	base, changed := ft.resolveBase(scope, cx)
	if _, failed := base.(ErrorType); failed {
		ft.typ = base
		return changed
	}
	if ft.Optional {
		base = Optional{Elem: base}
	}
	ft.typ = base
	return true
}

func (ft *FieldType) resolveBase(scope Scope, cx *passContext) (Type, bool) {
	if _, isWrapper := wrapperKinds[ft.Base]; isWrapper && ft.Module == "" {
		if len(ft.Args) != 1 {
			cx.errorf(lattice.KindUnresolvedType, ft.Pos,
				"%s takes exactly one type parameter", ft.Base)
			return ErrorType{}, false
		}
		changed := ft.Args[0].pass(scope, cx)
		elem := ft.Args[0].typ
		if _, failed := elem.(ErrorType); failed {
			return ErrorType{}, changed
		}
		switch ft.Base {
		case "Set":
			return Set{Elem: elem}, changed
		case "Array":
			return Array{Elem: elem}, changed
		default:
			return Optional{Elem: elem}, changed
		}
	}
	if len(ft.Args) != 0 {
		cx.errorf(lattice.KindUnresolvedType, ft.Pos,
			"type %s takes no type parameters", ft.display())
		return ErrorType{}, false
	}
	ix, ok := cx.resolveName(ft.Module, ft.Base, scope)
	if !ok {
		cx.errorf(lattice.KindUnresolvedType, ft.Pos,
			"reference to unknown type `%s`", ft.display())
		return ErrorType{}, false
	}
	return Reference{Index: ix, Name: referenceName(ft.Module, ft.Base, scope, cx)}, false
}

// referenceName is the arena key the resolved index was registered under.
func referenceName(module, base string, scope Scope, cx *passContext) string {
	if module != "" {
		return module + "." + base
	}
	if _, ok := primitiveByName[base]; ok {
		return base
	}
	if scope.Module != "" {
		qualified := scope.Module + "." + base
		if _, ok := cx.types.NameLookup(qualified); ok {
			return qualified
		}
	}
	return base
}

func (ft *FieldType) display() string {
	if ft.Module != "" {
		return ft.Module + "." + ft.Base
	}
	return ft.Base
}
