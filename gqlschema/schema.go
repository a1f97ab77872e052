// Package gqlschema emits the GraphQL SDL a built system exposes: object
// and enum types for every persistable declaration, generated query and
// mutation fields for database modules, and the exported methods of
// script modules.
package gqlschema

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
	gql "github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"

	"github.com/latticeql/lattice/ir"
)

// customScalars maps primitives without a built-in GraphQL type to the
// scalar name declared for them.
var customScalars = map[string]string{
	"Decimal":       "Decimal",
	"LocalTime":     "LocalTime",
	"LocalDateTime": "LocalDateTime",
	"LocalDate":     "LocalDate",
	"Instant":       "Instant",
	"Json":          "Json",
	"Blob":          "Blob",
	"Uuid":          "Uuid",
	"Vector":        "Vector",
}

// Emit writes the SDL for sys.
func Emit(w io.Writer, sys *ir.System) error {
	e := &emitter{sys: sys, scalars: map[string]bool{}}
	doc, err := e.build()
	if err != nil {
		return err
	}
	formatter.NewFormatter(w).FormatSchemaDocument(doc)
	return nil
}

type emitter struct {
	sys     *ir.System
	scalars map[string]bool

	queries   gql.FieldList
	mutations gql.FieldList
	defs      gql.DefinitionList
}

func (e *emitter) build() (*gql.SchemaDocument, error) {
	for _, mod := range e.sys.Modules {
		for _, ix := range mod.Enums {
			t := e.sys.Types.Slots[ix.Slot]
			e.defs = append(e.defs, enumDef(t.Enum))
		}
		for _, ix := range mod.Types {
			t := e.sys.Types.Slots[ix.Slot]
			if t == nil || t.Kind != ir.KindComposite {
				continue
			}
			if err := e.composite(t.Composite, mod); err != nil {
				return nil, err
			}
		}
		if mod.Subsystem == "script" {
			if err := e.methods(mod); err != nil {
				return nil, err
			}
		}
	}

	doc := &gql.SchemaDocument{}
	names := make([]string, 0, len(e.scalars))
	for s := range e.scalars {
		names = append(names, s)
	}
	sort.Strings(names)
	for _, s := range names {
		doc.Definitions = append(doc.Definitions, &gql.Definition{Kind: gql.Scalar, Name: s})
	}
	doc.Definitions = append(doc.Definitions, e.defs...)
	if len(e.queries) > 0 {
		doc.Definitions = append(doc.Definitions, &gql.Definition{
			Kind: gql.Object, Name: "Query", Fields: e.queries,
		})
	}
	if len(e.mutations) > 0 {
		doc.Definitions = append(doc.Definitions, &gql.Definition{
			Kind: gql.Object, Name: "Mutation", Fields: e.mutations,
		})
	}
	return doc, nil
}

func enumDef(en *ir.Enum) *gql.Definition {
	def := &gql.Definition{Kind: gql.Enum, Name: gqlName(en.Name)}
	for _, c := range en.Cases {
		def.EnumValues = append(def.EnumValues, &gql.EnumValueDefinition{Name: c})
	}
	return def
}

// composite emits the object type plus the generated operations of a
// persistable type.
func (e *emitter) composite(c *ir.Composite, mod *ir.Module) error {
	obj := &gql.Definition{Kind: gql.Object, Name: gqlName(c.Name)}
	var pk *ir.Field
	for _, f := range c.Fields {
		t, err := e.fieldType(f.Type)
		if err != nil {
			return fmt.Errorf("lattice: field %s.%s: %w", c.Name, f.Name, err)
		}
		obj.Fields = append(obj.Fields, &gql.FieldDefinition{Name: f.Name, Type: t})
		if f.Pk {
			pk = f
		}
	}
	e.defs = append(e.defs, obj)

	if mod.Subsystem != "database" {
		return nil
	}

	single := inflect.CamelizeDownFirst(gqlName(c.Name))
	plural := inflect.CamelizeDownFirst(inflect.Pluralize(gqlName(c.Name)))
	if a := pluralOverride(c); a != "" {
		plural = inflect.CamelizeDownFirst(a)
	}

	if pk != nil {
		pkType, err := e.fieldType(pk.Type)
		if err != nil {
			return err
		}
		e.queries = append(e.queries, &gql.FieldDefinition{
			Name:      single,
			Arguments: gql.ArgumentDefinitionList{{Name: pk.Name, Type: pkType}},
			Type:      gql.NamedType(gqlName(c.Name), nil),
		})
	}
	e.queries = append(e.queries, &gql.FieldDefinition{
		Name: plural,
		Type: gql.NonNullListType(gql.NonNullNamedType(gqlName(c.Name), nil), nil),
	})

	input := e.creationInput(c)
	e.defs = append(e.defs, input)
	e.mutations = append(e.mutations, &gql.FieldDefinition{
		Name: "create" + gqlName(c.Name),
		Arguments: gql.ArgumentDefinitionList{
			{Name: "data", Type: gql.NonNullNamedType(input.Name, nil)},
		},
		Type: gql.NonNullNamedType(gqlName(c.Name), nil),
	})
	if pk != nil {
		pkType, err := e.fieldType(pk.Type)
		if err != nil {
			return err
		}
		e.mutations = append(e.mutations,
			&gql.FieldDefinition{
				Name: "update" + gqlName(c.Name),
				Arguments: gql.ArgumentDefinitionList{
					{Name: pk.Name, Type: pkType},
					{Name: "data", Type: gql.NamedType(input.Name, nil)},
				},
				Type: gql.NamedType(gqlName(c.Name), nil),
			},
			&gql.FieldDefinition{
				Name:      "delete" + gqlName(c.Name),
				Arguments: gql.ArgumentDefinitionList{{Name: pk.Name, Type: pkType}},
				Type:      gql.NamedType(gqlName(c.Name), nil),
			})
	}
	return nil
}

// creationInput builds the input object for create/update mutations:
// scalar and enum fields only, primary keys and relation fields are
// server-populated.
func (e *emitter) creationInput(c *ir.Composite) *gql.Definition {
	input := &gql.Definition{Kind: gql.InputObject, Name: gqlName(c.Name) + "CreationInput"}
	for _, f := range c.Fields {
		if f.Pk || !scalarLike(e.sys, f.Type) {
			continue
		}
		t, err := e.fieldType(f.Type)
		if err != nil {
			continue
		}
		input.Fields = append(input.Fields, &gql.FieldDefinition{Name: f.Name, Type: t})
	}
	return input
}

func (e *emitter) methods(mod *ir.Module) error {
	for _, m := range mod.Methods {
		if !m.Exported {
			continue
		}
		ret, err := e.fieldType(m.ReturnType)
		if err != nil {
			return fmt.Errorf("lattice: method %s.%s: %w", mod.Name, m.Name, err)
		}
		def := &gql.FieldDefinition{Name: m.Name, Type: ret}
		for _, a := range m.Arguments {
			if hasAnnotation(a.Annotations, "inject") {
				continue
			}
			t, err := e.fieldType(a.Type)
			if err != nil {
				return err
			}
			def.Arguments = append(def.Arguments, &gql.ArgumentDefinition{Name: a.Name, Type: t})
		}
		if m.Kind == "mutation" {
			e.mutations = append(e.mutations, def)
		} else {
			e.queries = append(e.queries, def)
		}
	}
	return nil
}

// fieldType maps an IR type onto a GraphQL type reference. Types are
// non-null unless declared optional.
func (e *emitter) fieldType(t *ir.Type) (*gql.Type, error) {
	switch t.Kind {
	case ir.KindOptional:
		inner, err := e.fieldType(t.Elem)
		if err != nil {
			return nil, err
		}
		inner.NonNull = false
		return inner, nil
	case ir.KindSet, ir.KindArray:
		inner, err := e.fieldType(t.Elem)
		if err != nil {
			return nil, err
		}
		return gql.NonNullListType(inner, nil), nil
	case ir.KindReference:
		name := gqlName(t.RefName)
		if scalar, ok := customScalars[name]; ok {
			e.scalars[scalar] = true
			name = scalar
		}
		return gql.NonNullNamedType(name, nil), nil
	case ir.KindPrimitive:
		name := t.Primitive
		if scalar, ok := customScalars[name]; ok {
			e.scalars[scalar] = true
			name = scalar
		}
		return gql.NonNullNamedType(name, nil), nil
	case ir.KindComposite:
		return gql.NonNullNamedType(gqlName(t.Composite.Name), nil), nil
	case ir.KindEnum:
		return gql.NonNullNamedType(gqlName(t.Enum.Name), nil), nil
	}
	return nil, fmt.Errorf("unmappable type %s", t)
}

// scalarLike reports whether the type resolves to a primitive or enum,
// looking through wrappers and references.
func scalarLike(sys *ir.System, t *ir.Type) bool {
	switch t.Kind {
	case ir.KindPrimitive, ir.KindEnum:
		return true
	case ir.KindOptional, ir.KindArray:
		return scalarLike(sys, t.Elem)
	case ir.KindSet:
		return false
	case ir.KindReference:
		ref := sys.Types.Slots[t.Ref.Slot]
		if ref == nil {
			return false
		}
		return ref.Kind == ir.KindPrimitive || ref.Kind == ir.KindEnum
	}
	return false
}

func hasAnnotation(anns []*ir.Annotation, name string) bool {
	for _, a := range anns {
		if a.Name == name {
			return true
		}
	}
	return false
}

// pluralOverride returns the @plural_name value, if attached.
func pluralOverride(c *ir.Composite) string {
	for _, a := range c.Annotations {
		if a.Name == "plural_name" && a.Single != nil && a.Single.StringValue != nil {
			return *a.Single.StringValue
		}
	}
	return ""
}

// gqlName strips a module qualifier down to the declared type name.
func gqlName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
