// Package ast defines the untyped syntax tree produced by the parser.
//
// The tree is plain data: the parser fills it in and the typecheck package
// walks it, producing its own typed mirror. Nothing here resolves names or
// carries type information.
package ast

import "github.com/latticeql/lattice"

// System is the parsed contents of a compilation unit: one root model file
// plus everything it imports, merged.
type System struct {
	// Types holds top-level declarations (contexts, and any stray types
	// the checker will reject as misplaced).
	Types   []*Model
	Enums   []*Enum
	Modules []*Module
	// Imports are the files merged into this system, in load order.
	Imports []string
}

// ModelKind distinguishes persistable types from request-synthesized
// contexts.
type ModelKind int

const (
	// KindType is a persistable business entity declared with `type`.
	KindType ModelKind = iota
	// KindContext is a composite synthesized from request metadata (JWT
	// claims, headers, client IP) declared with `context`.
	KindContext
)

// String returns "type" or "context".
func (k ModelKind) String() string {
	if k == KindContext {
		return "context"
	}
	return "type"
}

// Model is a composite type declaration.
type Model struct {
	Name        string
	Kind        ModelKind
	Fields      []*Field
	Annotations []*Annotation
	Pos         lattice.Position
}

// Enum is a closed set of named cases.
type Enum struct {
	Name  string
	Cases []*EnumCase
	Pos   lattice.Position
}

// EnumCase is a single enum member.
type EnumCase struct {
	Name string
	Pos  lattice.Position
}

// Module is the unit of source-file-to-declaration mapping. A bare type
// name resolves first against types declared in the same module, then
// against the globally visible set.
type Module struct {
	Name         string
	Annotations  []*Annotation
	Types        []*Model
	Enums        []*Enum
	Methods      []*Method
	Interceptors []*Interceptor
	// BaseFile is the model file this module was declared in. Relative
	// imports and script sources resolve against it.
	BaseFile string
	Pos      lattice.Position
}

// MethodKind is the operation class of a module method.
type MethodKind int

const (
	Query MethodKind = iota
	Mutation
)

// String returns "query" or "mutation".
func (k MethodKind) String() string {
	if k == Mutation {
		return "mutation"
	}
	return "query"
}

// Method is a query or mutation signature declared in a module body.
type Method struct {
	Name        string
	Kind        MethodKind
	Arguments   []*Argument
	ReturnType  FieldType
	Exported    bool
	Annotations []*Annotation
	Pos         lattice.Position
}

// Interceptor is an operation-interception declaration. One of the
// @before/@after/@around annotations selects when it runs.
type Interceptor struct {
	Name        string
	Arguments   []*Argument
	Annotations []*Annotation
	Pos         lattice.Position
}

// Argument is a method or interceptor parameter.
type Argument struct {
	Name        string
	Type        FieldType
	Annotations []*Annotation
	Pos         lattice.Position
}

// Field is a single named member of a composite type.
type Field struct {
	Name        string
	Type        FieldType
	Annotations []*Annotation
	Default     *FieldDefault
	Pos         lattice.Position
}

// FieldDefault is a field's `= ...` clause: either a literal/expression
// value or a call to one of the recognized default functions such as
// autoIncrement().
type FieldDefault struct {
	// Value is set for `= expr` defaults; nil for function defaults.
	Value Expr
	// FuncName and Args are set for `= name(args)` defaults.
	FuncName string
	Args     []Expr
	Pos      lattice.Position
}

// IsFunction reports whether the default is a function call form.
func (d *FieldDefault) IsFunction() bool { return d.FuncName != "" }

// FieldType is a type expression appearing in a field, argument, or
// return-type position: `Name`, `Module.Name`, `Name<Arg>`, or a trailing
// `?` wrapping any of those.
type FieldType interface {
	typeNode()
	// Name returns the base type name, looking through Optional.
	Name() string
	Pos() lattice.Position
}

// PlainType is a (possibly module-qualified, possibly parameterized)
// type-name reference.
type PlainType struct {
	// Module is the qualifying module name; empty means unqualified.
	Module string
	Base   string
	Args   []FieldType
	Span   lattice.Position
}

// OptionalType marks a `T?` type expression.
type OptionalType struct {
	Inner FieldType
}

func (*PlainType) typeNode()    {}
func (*OptionalType) typeNode() {}

// Name returns the base type name.
func (t *PlainType) Name() string { return t.Base }

// Pos returns the source position of the type name.
func (t *PlainType) Pos() lattice.Position { return t.Span }

// Name returns the base type name of the wrapped type.
func (t *OptionalType) Name() string { return t.Inner.Name() }

// Pos returns the source position of the wrapped type.
func (t *OptionalType) Pos() lattice.Position { return t.Inner.Pos() }
