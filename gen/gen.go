// Package gen renders Go source for the request-context bindings of a
// built system. The generated structs are what a Go resolver host embeds
// to receive JWT claims, headers, and the other request-synthesized
// values a model's contexts declare.
package gen

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"

	"github.com/latticeql/lattice/ir"
)

// Contexts renders one Go file containing a struct per context type plus
// its source-binding table.
func Contexts(sys *ir.System, pkg string) (string, error) {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by lattice. DO NOT EDIT.")

	for _, entry := range sys.Types.Names {
		t := sys.Types.Slots[entry.Slot]
		if t == nil || t.Kind != ir.KindComposite || !t.Composite.IsContext() {
			continue
		}
		if err := contextStruct(f, sys, t.Composite); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return "", fmt.Errorf("lattice: rendering context bindings: %w", err)
	}
	return buf.String(), nil
}

func contextStruct(f *jen.File, sys *ir.System, c *ir.Composite) error {
	var fields []jen.Code
	sources := jen.Dict{}
	for _, field := range c.Fields {
		goType, err := fieldGoType(sys, field.Type)
		if err != nil {
			return fmt.Errorf("lattice: context %s.%s: %w", c.Name, field.Name, err)
		}
		fields = append(fields, jen.Id(inflect.Camelize(field.Name)).Add(goType).
			Tag(map[string]string{"json": field.Name}))
		sources[jen.Lit(field.Name)] = jen.Lit(sourceBinding(field))
	}

	f.Commentf("%s mirrors the `context %s` declaration.", c.Name, c.Name)
	f.Type().Id(c.Name).Struct(fields...)
	f.Line()

	// ContextSources maps field names to their request-metadata bindings
	// in source:key form.
	f.Func().Params(jen.Id(c.Name)).Id("ContextSources").Params().
		Map(jen.String()).String().Block(
		jen.Return(jen.Map(jen.String()).String().Values(sources)),
	)
	f.Line()
	return nil
}

// sourceBinding renders the field's source annotation as source or
// source:key.
func sourceBinding(f *ir.Field) string {
	for _, a := range f.Annotations {
		switch a.Name {
		case "jwt", "env", "header", "cookie", "clientIp":
			if a.Single != nil && a.Single.StringValue != nil {
				return a.Name + ":" + *a.Single.StringValue
			}
			return a.Name
		}
	}
	return ""
}

func fieldGoType(sys *ir.System, t *ir.Type) (jen.Code, error) {
	switch t.Kind {
	case ir.KindOptional:
		inner, err := fieldGoType(sys, t.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(inner), nil
	case ir.KindSet, ir.KindArray:
		inner, err := fieldGoType(sys, t.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(inner), nil
	case ir.KindPrimitive:
		return primitiveGoType(t.Primitive)
	case ir.KindReference:
		ref := sys.Types.Slots[t.Ref.Slot]
		if ref == nil {
			return nil, fmt.Errorf("dangling reference %s", t.RefName)
		}
		switch ref.Kind {
		case ir.KindPrimitive:
			return primitiveGoType(ref.Primitive)
		case ir.KindComposite:
			return jen.Id(ref.Composite.Name), nil
		case ir.KindEnum:
			return jen.String(), nil
		}
		return nil, fmt.Errorf("unmappable reference %s", t.RefName)
	}
	return nil, fmt.Errorf("unmappable type %s", t)
}

func primitiveGoType(name string) (jen.Code, error) {
	switch name {
	case "Boolean":
		return jen.Bool(), nil
	case "Int":
		return jen.Int64(), nil
	case "Float":
		return jen.Float64(), nil
	case "Decimal", "String":
		return jen.String(), nil
	case "LocalTime", "LocalDateTime", "LocalDate", "Instant":
		return jen.Qual("time", "Time"), nil
	case "Json":
		return jen.Qual("encoding/json", "RawMessage"), nil
	case "Blob":
		return jen.Index().Byte(), nil
	case "Uuid":
		return jen.Qual("github.com/google/uuid", "UUID"), nil
	case "Vector":
		return jen.Index().Float32(), nil
	}
	return nil, fmt.Errorf("primitive %s has no Go mapping", name)
}
