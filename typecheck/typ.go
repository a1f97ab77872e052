// Package typecheck resolves and type-checks a parsed model system.
//
// Checking follows a declare-then-resolve discipline over a generational
// type arena: every composite, enum, and module skeleton is registered by
// name first (phase 1), then repeated passes resolve field types and
// annotation expressions in place until a fixpoint (phase 2), so forward
// and mutually-recursive references across modules need no ordering. A
// final builder stage validates structural invariants (annotation shapes,
// default values, context constraints) and produces the checked system
// handed to the ir package.
package typecheck

import (
	"fmt"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/arena"
	"github.com/latticeql/lattice/ast"
)

// Type is the closed union stored in the type arena. A value is either a
// resolved type (primitive, composite, enum, wrapper, reference) or one
// of the two checking placeholders: Defer (not yet resolved) and Error
// (resolution failed; the diagnostic was already recorded).
type Type interface {
	isType()
	String() string
}

// Primitive is a built-in scalar kind.
type Primitive struct {
	Kind PrimitiveKind
}

// Composite is a user-declared record type held in the arena. The Model
// pointer is shared: in-place field resolution is visible to every
// reference captured during declaration.
type Composite struct {
	Model *Model
}

// EnumType is a declared enum.
type EnumType struct {
	Enum *Enum
}

// Reference points at another arena slot. Field types and checked
// expressions never embed composites directly; they reference slots, so
// the IR remains a flat, serializable graph.
type Reference struct {
	Index arena.Index
	// Name is the registered name of the slot, kept for display.
	Name string
}

// Set is the unordered to-many wrapper type.
type Set struct {
	Elem Type
}

// Array is the ordered list wrapper type.
type Array struct {
	Elem Type
}

// Optional is the nullable wrapper type.
type Optional struct {
	Elem Type
}

// Null is the type of the null literal. It compares only against
// Optional-typed operands.
type Null struct{}

// Defer marks a node the checker has not resolved yet.
type Defer struct{}

// ErrorType marks a node whose resolution failed.
type ErrorType struct{}

func (Primitive) isType() {}
func (Composite) isType() {}
func (EnumType) isType()  {}
func (Reference) isType() {}
func (Set) isType()       {}
func (Array) isType()     {}
func (Optional) isType()  {}
func (Null) isType()      {}
func (Defer) isType()     {}
func (ErrorType) isType() {}

// String returns the primitive's declared name.
func (t Primitive) String() string { return t.Kind.String() }

// String returns the composite's declared name.
func (t Composite) String() string { return t.Model.Name }

// String returns the enum's declared name.
func (t EnumType) String() string { return t.Enum.Name }

// String returns the referenced slot's name.
func (t Reference) String() string { return t.Name }

// String returns Set<Elem>.
func (t Set) String() string { return fmt.Sprintf("Set<%s>", t.Elem) }

// String returns Array<Elem>.
func (t Array) String() string { return fmt.Sprintf("Array<%s>", t.Elem) }

// String returns Elem?.
func (t Optional) String() string { return fmt.Sprintf("%s?", t.Elem) }

// String returns "null".
func (Null) String() string { return "null" }

// String returns a placeholder marker.
func (Defer) String() string { return "<defer>" }

// String returns a placeholder marker.
func (ErrorType) String() string { return "<error>" }

// isIncomplete reports whether t still needs (or failed) resolution.
// Wrapper types are incomplete when their element is.
func isIncomplete(t Type) bool {
	switch t := t.(type) {
	case Defer, ErrorType, nil:
		return true
	case Set:
		return isIncomplete(t.Elem)
	case Array:
		return isIncomplete(t.Elem)
	case Optional:
		return isIncomplete(t.Elem)
	default:
		return false
	}
}

// isComplete is the usable-result complement of isIncomplete.
func isComplete(t Type) bool { return !isIncomplete(t) }

// deref follows a Reference to its arena value. A stale or missing slot
// dereferences to ErrorType; callers report it, they never read through
// it.
func deref(t Type, env *arena.Arena[Type]) Type {
	if r, ok := t.(Reference); ok {
		v, ok := env.Get(r.Index)
		if !ok {
			return ErrorType{}
		}
		return v
	}
	return t
}

// underlyingName returns the declared name of t's element type, looking
// through wrappers and references. Higher-order parameter binding uses it
// to enter the element type into scope.
func underlyingName(t Type, env *arena.Arena[Type]) (string, bool) {
	switch t := t.(type) {
	case Set:
		return underlyingName(t.Elem, env)
	case Array:
		return underlyingName(t.Elem, env)
	case Optional:
		return underlyingName(t.Elem, env)
	case Reference:
		return t.Name, true
	case Primitive:
		return t.Kind.String(), true
	case Composite:
		return t.Model.Name, true
	case EnumType:
		return t.Enum.Name, true
	default:
		return "", false
	}
}

// sameType reports whether two fully-dereferenced types are identical for
// comparison purposes.
func sameType(a, b Type, env *arena.Arena[Type]) bool {
	a, b = deref(a, env), deref(b, env)
	switch a := a.(type) {
	case Primitive:
		bp, ok := b.(Primitive)
		return ok && a.Kind == bp.Kind
	case Composite:
		bc, ok := b.(Composite)
		return ok && a.Model == bc.Model
	case EnumType:
		be, ok := b.(EnumType)
		return ok && a.Enum == be.Enum
	case Set:
		bs, ok := b.(Set)
		return ok && sameType(a.Elem, bs.Elem, env)
	case Array:
		ba, ok := b.(Array)
		return ok && sameType(a.Elem, ba.Elem, env)
	case Optional:
		bo, ok := b.(Optional)
		return ok && sameType(a.Elem, bo.Elem, env)
	case Null:
		_, ok := b.(Null)
		return ok
	default:
		return false
	}
}

// boolean is the stable Boolean type value used by operators.
var boolean = Primitive{Kind: KindBoolean}

func isBoolean(t Type, env *arena.Arena[Type]) bool {
	p, ok := deref(t, env).(Primitive)
	return ok && p.Kind == KindBoolean
}

// Model is a type-checked composite declaration.
type Model struct {
	Name        string
	Kind        ast.ModelKind
	Fields      []*Field
	Annotations *AnnotationMap
	// Module is the declaring module name; empty for root contexts.
	Module string
	Pos    lattice.Position
}

// FieldByName returns the named field, or nil.
func (m *Model) FieldByName(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field is a type-checked composite member.
type Field struct {
	Name        string
	Type        *FieldType
	Annotations *AnnotationMap
	Default     *FieldDefault
	Pos         lattice.Position
}

// FieldDefault is a checked `= ...` clause.
type FieldDefault struct {
	Value    Expr
	FuncName string
	Args     []Expr
	Pos      lattice.Position
}

// IsFunction reports whether the default is a function-call form.
func (d *FieldDefault) IsFunction() bool { return d.FuncName != "" }

// Enum is a type-checked enum declaration.
type Enum struct {
	Name  string
	Cases []string
	Pos   lattice.Position
}

// Module is a type-checked module. Types holds arena indices: the
// composites themselves live once, in the type arena.
type Module struct {
	Name         string
	Annotations  *AnnotationMap
	Types        []arena.Index
	Enums        []arena.Index
	Methods      []*Method
	Interceptors []*Interceptor
	BaseFile     string
	Pos          lattice.Position
}

// Method is a checked query/mutation signature.
type Method struct {
	Name        string
	Kind        ast.MethodKind
	Arguments   []*Argument
	ReturnType  *FieldType
	Exported    bool
	Annotations *AnnotationMap
	Pos         lattice.Position
}

// Interceptor is a checked interceptor declaration.
type Interceptor struct {
	Name        string
	Arguments   []*Argument
	Annotations *AnnotationMap
	Pos         lattice.Position
}

// Argument is a checked method/interceptor parameter.
type Argument struct {
	Name        string
	Type        *FieldType
	Annotations *AnnotationMap
	Pos         lattice.Position
}
