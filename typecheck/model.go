package typecheck

import (
	"github.com/latticeql/lattice/ast"
)

// newModel builds the typed skeleton of a composite declaration. Field
// types and annotation expressions stay unresolved until the fixpoint
// passes run.
func newModel(m *ast.Model, module string) *Model {
	model := &Model{
		Name:        m.Name,
		Kind:        m.Kind,
		Annotations: newAnnotationMap(m.Annotations),
		Module:      module,
		Pos:         m.Pos,
	}
	for _, f := range m.Fields {
		model.Fields = append(model.Fields, newField(f))
	}
	return model
}

func newField(f *ast.Field) *Field {
	field := &Field{
		Name:        f.Name,
		Type:        newFieldType(f.Type),
		Annotations: newAnnotationMap(f.Annotations),
		Pos:         f.Pos,
	}
	if f.Default != nil {
		field.Default = newFieldDefault(f.Default)
	}
	return field
}

func newFieldDefault(d *ast.FieldDefault) *FieldDefault {
	def := &FieldDefault{FuncName: d.FuncName, Pos: d.Pos}
	if d.Value != nil {
		def.Value = newExpr(d.Value)
	}
	for _, a := range d.Args {
		def.Args = append(def.Args, newExpr(a))
	}
	return def
}

func newEnum(e *ast.Enum) *Enum {
	enum := &Enum{Name: e.Name, Pos: e.Pos}
	for _, c := range e.Cases {
		enum.Cases = append(enum.Cases, c.Name)
	}
	return enum
}

// pass runs one resolution round over the composite: its annotations,
// then every field's type, annotations, and default expressions. The
// composite's own name is bound to `self` for its annotation expressions.
func (m *Model) pass(cx *passContext) bool {
	// Self binds the arena key, qualified for module types, so lookups
	// cannot cross into a same-named type from another module.
	selfKey := m.Name
	if m.Module != "" {
		selfKey = m.Module + "." + m.Name
	}
	scope := Scope{Self: selfKey, Module: m.Module}
	changed := m.Annotations.pass(targetType, scope, cx)
	for _, f := range m.Fields {
		if f.pass(scope, cx) {
			changed = true
		}
	}
	return changed
}

func (f *Field) pass(scope Scope, cx *passContext) bool {
	changed := f.Type.pass(scope, cx)
	if f.Annotations.pass(targetField, scope, cx) {
		changed = true
	}
	if f.Default != nil {
		if f.Default.Value != nil && f.Default.Value.pass(scope, cx) {
			changed = true
		}
		for _, a := range f.Default.Args {
			if a.pass(scope, cx) {
				changed = true
			}
		}
	}
	return changed
}
