// Package ir is the serializable intermediate representation produced
// from a checked system. It is the compiler's output contract: the build
// artifact consumed by the schema emitter, the code generator, and the
// runtime's access evaluator.
//
// Every structure here is flat data with stable field tags and no Go
// maps, so identical input bytes produce identical artifact bytes in
// every encoding.
package ir

import (
	"fmt"
	"strings"

	"github.com/latticeql/lattice/arena"
)

// System is the root of an artifact.
type System struct {
	Types   *TypeTable `msgpack:"types" json:"types" yaml:"types"`
	Modules []*Module  `msgpack:"modules" json:"modules" yaml:"modules"`
}

// TypeTable is the serialized type arena: the slot vector plus the
// name-to-slot entries in registration order.
type TypeTable struct {
	Slots []*Type     `msgpack:"slots" json:"slots" yaml:"slots"`
	Names []NameEntry `msgpack:"names" json:"names" yaml:"names"`
}

// NameEntry maps a registered type name to its slot.
type NameEntry struct {
	Name string `msgpack:"name" json:"name" yaml:"name"`
	Slot int    `msgpack:"slot" json:"slot" yaml:"slot"`
}

// Slot returns the named type, or nil.
func (t *TypeTable) Slot(name string) *Type {
	for _, e := range t.Names {
		if e.Name == name {
			return t.Slots[e.Slot]
		}
	}
	return nil
}

// TypeKind discriminates the Type union.
type TypeKind string

const (
	KindPrimitive TypeKind = "primitive"
	KindComposite TypeKind = "composite"
	KindEnum      TypeKind = "enum"
	KindReference TypeKind = "reference"
	KindSet       TypeKind = "set"
	KindArray     TypeKind = "array"
	KindOptional  TypeKind = "optional"
)

// Type is the flattened type union: Kind selects which of the payload
// fields is set.
type Type struct {
	Kind TypeKind `msgpack:"kind" json:"kind" yaml:"kind"`

	Primitive string     `msgpack:"primitive,omitempty" json:"primitive,omitempty" yaml:"primitive,omitempty"`
	Composite *Composite `msgpack:"composite,omitempty" json:"composite,omitempty" yaml:"composite,omitempty"`
	Enum      *Enum      `msgpack:"enum,omitempty" json:"enum,omitempty" yaml:"enum,omitempty"`
	// Elem is the element of set, array, and optional types.
	Elem *Type `msgpack:"elem,omitempty" json:"elem,omitempty" yaml:"elem,omitempty"`
	// Ref and RefName identify the slot a reference points at.
	Ref     *arena.Index `msgpack:"ref,omitempty" json:"ref,omitempty" yaml:"ref,omitempty"`
	RefName string       `msgpack:"refName,omitempty" json:"refName,omitempty" yaml:"refName,omitempty"`
}

// String renders the type for display.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive
	case KindComposite:
		return t.Composite.Name
	case KindEnum:
		return t.Enum.Name
	case KindReference:
		return t.RefName
	case KindSet:
		return fmt.Sprintf("Set<%s>", t.Elem)
	case KindArray:
		return fmt.Sprintf("Array<%s>", t.Elem)
	case KindOptional:
		return fmt.Sprintf("%s?", t.Elem)
	}
	return string(t.Kind)
}

// Composite is a serialized model declaration.
type Composite struct {
	Name        string        `msgpack:"name" json:"name" yaml:"name"`
	Kind        string        `msgpack:"kind" json:"kind" yaml:"kind"`
	Module      string        `msgpack:"module,omitempty" json:"module,omitempty" yaml:"module,omitempty"`
	Fields      []*Field      `msgpack:"fields" json:"fields" yaml:"fields"`
	Access      *AccessRules  `msgpack:"access,omitempty" json:"access,omitempty" yaml:"access,omitempty"`
	Annotations []*Annotation `msgpack:"annotations,omitempty" json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// IsContext reports whether the composite is request-synthesized.
func (c *Composite) IsContext() bool { return c.Kind == "context" }

// FieldByName returns the named field, or nil.
func (c *Composite) FieldByName(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field is a serialized composite member.
type Field struct {
	Name        string        `msgpack:"name" json:"name" yaml:"name"`
	Type        *Type         `msgpack:"type" json:"type" yaml:"type"`
	Pk          bool          `msgpack:"pk,omitempty" json:"pk,omitempty" yaml:"pk,omitempty"`
	Access      *AccessRules  `msgpack:"access,omitempty" json:"access,omitempty" yaml:"access,omitempty"`
	Default     *DefaultValue `msgpack:"default,omitempty" json:"default,omitempty" yaml:"default,omitempty"`
	Annotations []*Annotation `msgpack:"annotations,omitempty" json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// DefaultValue is a serialized `= ...` clause: a literal value or a
// default-function call.
type DefaultValue struct {
	Value    *Expr   `msgpack:"value,omitempty" json:"value,omitempty" yaml:"value,omitempty"`
	Function string  `msgpack:"function,omitempty" json:"function,omitempty" yaml:"function,omitempty"`
	Args     []*Expr `msgpack:"args,omitempty" json:"args,omitempty" yaml:"args,omitempty"`
}

// Enum is a serialized enum declaration.
type Enum struct {
	Name  string   `msgpack:"name" json:"name" yaml:"name"`
	Cases []string `msgpack:"cases" json:"cases" yaml:"cases"`
}

// Annotation is a serialized annotation attachment. Exactly one of
// Single and Params is set for parameterized annotations; both are empty
// for the bare form.
type Annotation struct {
	Name   string  `msgpack:"name" json:"name" yaml:"name"`
	Single *Expr   `msgpack:"single,omitempty" json:"single,omitempty" yaml:"single,omitempty"`
	Params []Param `msgpack:"params,omitempty" json:"params,omitempty" yaml:"params,omitempty"`
}

// Param is one named annotation parameter.
type Param struct {
	Name  string `msgpack:"name" json:"name" yaml:"name"`
	Value *Expr  `msgpack:"value" json:"value" yaml:"value"`
}

// AccessRules is the per-operation authorization table of a composite,
// field, or method. A nil rule denies the operation.
type AccessRules struct {
	Query    *Expr `msgpack:"query,omitempty" json:"query,omitempty" yaml:"query,omitempty"`
	Mutation *Expr `msgpack:"mutation,omitempty" json:"mutation,omitempty" yaml:"mutation,omitempty"`
	Create   *Expr `msgpack:"create,omitempty" json:"create,omitempty" yaml:"create,omitempty"`
	Update   *Expr `msgpack:"update,omitempty" json:"update,omitempty" yaml:"update,omitempty"`
	Delete   *Expr `msgpack:"delete,omitempty" json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Module is a serialized module declaration. Types and Enums reference
// slots in the system's type table.
type Module struct {
	Name      string `msgpack:"name" json:"name" yaml:"name"`
	Subsystem string `msgpack:"subsystem" json:"subsystem" yaml:"subsystem"`
	// Script is the script source path for script modules.
	Script       string         `msgpack:"script,omitempty" json:"script,omitempty" yaml:"script,omitempty"`
	Types        []arena.Index  `msgpack:"types,omitempty" json:"types,omitempty" yaml:"types,omitempty"`
	Enums        []arena.Index  `msgpack:"enums,omitempty" json:"enums,omitempty" yaml:"enums,omitempty"`
	Methods      []*Method      `msgpack:"methods,omitempty" json:"methods,omitempty" yaml:"methods,omitempty"`
	Interceptors []*Interceptor `msgpack:"interceptors,omitempty" json:"interceptors,omitempty" yaml:"interceptors,omitempty"`
	BaseFile     string         `msgpack:"baseFile,omitempty" json:"baseFile,omitempty" yaml:"baseFile,omitempty"`
}

// Method is a serialized query or mutation signature.
type Method struct {
	Name       string       `msgpack:"name" json:"name" yaml:"name"`
	Kind       string       `msgpack:"kind" json:"kind" yaml:"kind"`
	Exported   bool         `msgpack:"exported,omitempty" json:"exported,omitempty" yaml:"exported,omitempty"`
	Arguments  []*Argument  `msgpack:"arguments,omitempty" json:"arguments,omitempty" yaml:"arguments,omitempty"`
	ReturnType *Type        `msgpack:"returnType" json:"returnType" yaml:"returnType"`
	Access     *AccessRules `msgpack:"access,omitempty" json:"access,omitempty" yaml:"access,omitempty"`
}

// Argument is a serialized method or interceptor parameter.
type Argument struct {
	Name        string        `msgpack:"name" json:"name" yaml:"name"`
	Type        *Type         `msgpack:"type" json:"type" yaml:"type"`
	Annotations []*Annotation `msgpack:"annotations,omitempty" json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Interceptor is a serialized interceptor with its timing and operation
// pattern.
type Interceptor struct {
	Name      string      `msgpack:"name" json:"name" yaml:"name"`
	Timing    string      `msgpack:"timing" json:"timing" yaml:"timing"`
	Pattern   string      `msgpack:"pattern" json:"pattern" yaml:"pattern"`
	Arguments []*Argument `msgpack:"arguments,omitempty" json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ExprKind discriminates the Expr union.
type ExprKind string

const (
	ExprString     ExprKind = "string"
	ExprBoolean    ExprKind = "boolean"
	ExprNumber     ExprKind = "number"
	ExprNull       ExprKind = "null"
	ExprList       ExprKind = "list"
	ExprChain      ExprKind = "chain"
	ExprLogical    ExprKind = "logical"
	ExprRelational ExprKind = "relational"
)

// Expr is the flattened expression union carried by access rules,
// defaults, and annotation parameters.
type Expr struct {
	Kind ExprKind `msgpack:"kind" json:"kind" yaml:"kind"`

	StringValue *string `msgpack:"string,omitempty" json:"string,omitempty" yaml:"string,omitempty"`
	BoolValue   *bool   `msgpack:"bool,omitempty" json:"bool,omitempty" yaml:"bool,omitempty"`
	// Number keeps the source spelling; consumers parse it against the
	// target type.
	Number string  `msgpack:"number,omitempty" json:"number,omitempty" yaml:"number,omitempty"`
	Elems  []*Expr `msgpack:"elems,omitempty" json:"elems,omitempty" yaml:"elems,omitempty"`
	// Chain is a selection chain, head first.
	Chain []*Step `msgpack:"chain,omitempty" json:"chain,omitempty" yaml:"chain,omitempty"`
	// Op is the operator spelling for logical and relational nodes.
	Op    string `msgpack:"op,omitempty" json:"op,omitempty" yaml:"op,omitempty"`
	Left  *Expr  `msgpack:"left,omitempty" json:"left,omitempty" yaml:"left,omitempty"`
	Right *Expr  `msgpack:"right,omitempty" json:"right,omitempty" yaml:"right,omitempty"`
}

// StepKind discriminates chain steps.
type StepKind string

const (
	StepField    StepKind = "field"
	StepSome     StepKind = "some"
	StepContains StepKind = "contains"
)

// Step is one element of a selection chain.
type Step struct {
	Kind StepKind `msgpack:"kind" json:"kind" yaml:"kind"`
	Name string   `msgpack:"name,omitempty" json:"name,omitempty" yaml:"name,omitempty"`
	// Param and Body carry a some(param => body) predicate.
	Param string `msgpack:"param,omitempty" json:"param,omitempty" yaml:"param,omitempty"`
	Body  *Expr  `msgpack:"body,omitempty" json:"body,omitempty" yaml:"body,omitempty"`
	// Args carry contains(...) arguments.
	Args []*Expr `msgpack:"args,omitempty" json:"args,omitempty" yaml:"args,omitempty"`
}

// String renders the expression in source form.
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprString:
		return fmt.Sprintf("%q", *e.StringValue)
	case ExprBoolean:
		return fmt.Sprintf("%t", *e.BoolValue)
	case ExprNumber:
		return e.Number
	case ExprNull:
		return "null"
	case ExprList:
		parts := make([]string, len(e.Elems))
		for i, el := range e.Elems {
			parts[i] = el.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ExprChain:
		var sb strings.Builder
		for i, s := range e.Chain {
			if i > 0 {
				sb.WriteByte('.')
			}
			switch s.Kind {
			case StepField:
				sb.WriteString(s.Name)
			case StepSome:
				fmt.Fprintf(&sb, "%s(%s => %s)", s.Name, s.Param, s.Body)
			case StepContains:
				parts := make([]string, len(s.Args))
				for j, a := range s.Args {
					parts[j] = a.String()
				}
				fmt.Fprintf(&sb, "%s(%s)", s.Name, strings.Join(parts, ", "))
			}
		}
		return sb.String()
	case ExprLogical:
		if e.Op == "!" {
			return "!" + parenthesize(e.Left)
		}
		return parenthesize(e.Left) + " " + e.Op + " " + parenthesize(e.Right)
	case ExprRelational:
		return parenthesize(e.Left) + " " + e.Op + " " + parenthesize(e.Right)
	}
	return string(e.Kind)
}

// parenthesize wraps compound operands so the rendering re-parses with
// the same grouping.
func parenthesize(e *Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprLogical, ExprRelational:
		return "(" + e.String() + ")"
	}
	return e.String()
}
