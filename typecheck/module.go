package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// newModule builds the typed skeleton of a module. The Types and Enums
// index lists are filled during registration, once the contained
// declarations have arena slots.
func newModule(m *ast.Module) *Module {
	mod := &Module{
		Name:        m.Name,
		Annotations: newAnnotationMap(m.Annotations),
		BaseFile:    m.BaseFile,
		Pos:         m.Pos,
	}
	for _, meth := range m.Methods {
		mod.Methods = append(mod.Methods, newMethod(meth))
	}
	for _, ic := range m.Interceptors {
		mod.Interceptors = append(mod.Interceptors, newInterceptor(ic))
	}
	return mod
}

func newMethod(m *ast.Method) *Method {
	meth := &Method{
		Name:        m.Name,
		Kind:        m.Kind,
		ReturnType:  newFieldType(m.ReturnType),
		Exported:    m.Exported,
		Annotations: newAnnotationMap(m.Annotations),
		Pos:         m.Pos,
	}
	for _, a := range m.Arguments {
		meth.Arguments = append(meth.Arguments, newArgument(a))
	}
	return meth
}

func newInterceptor(i *ast.Interceptor) *Interceptor {
	ic := &Interceptor{
		Name:        i.Name,
		Annotations: newAnnotationMap(i.Annotations),
		Pos:         i.Pos,
	}
	for _, a := range i.Arguments {
		ic.Arguments = append(ic.Arguments, newArgument(a))
	}
	return ic
}

func newArgument(a *ast.Argument) *Argument {
	return &Argument{
		Name:        a.Name,
		Type:        newFieldType(a.Type),
		Annotations: newAnnotationMap(a.Annotations),
		Pos:         a.Pos,
	}
}

// pass runs one resolution round over the module's own declarations.
// Contained composites are passed through the type arena, not here.
func (m *Module) pass(cx *passContext) bool {
	scope := Scope{Module: m.Name}
	changed := m.Annotations.pass(targetModule, scope, cx)
	for _, meth := range m.Methods {
		if meth.pass(scope, cx) {
			changed = true
		}
	}
	for _, ic := range m.Interceptors {
		if ic.pass(scope, cx) {
			changed = true
		}
	}
	return changed
}

func (m *Method) pass(scope Scope, cx *passContext) bool {
	changed := m.ReturnType.pass(scope, cx)
	if m.Annotations.pass(targetMethod, scope, cx) {
		changed = true
	}
	for _, a := range m.Arguments {
		if a.pass(scope, cx) {
			changed = true
		}
	}
	return changed
}

func (i *Interceptor) pass(scope Scope, cx *passContext) bool {
	changed := i.Annotations.pass(targetInterceptor, scope, cx)
	for _, a := range i.Arguments {
		if a.pass(scope, cx) {
			changed = true
		}
	}
	return changed
}

func (a *Argument) pass(scope Scope, cx *passContext) bool {
	changed := a.Type.pass(scope, cx)
	if a.Annotations.pass(targetArgument, scope, cx) {
		changed = true
	}
	return changed
}

// validate checks the module's structural rules after the fixpoint: a
// subsystem annotation must select its backend, and every interceptor
// needs exactly one timing annotation.
func (m *Module) validate(cx *passContext) {
	db, script := m.Annotations.Has("database"), m.Annotations.Has("script")
	switch {
	case db && script:
		cx.errorf(lattice.KindAnnotation, m.Pos,
			"module %s declares both @database and @script", m.Name)
	case !db && !script:
		cx.errorf(lattice.KindAnnotation, m.Pos,
			"module %s needs a subsystem annotation (@database or @script)", m.Name)
	}

	for _, ic := range m.Interceptors {
		n := 0
		for _, name := range []string{"before", "after", "around"} {
			if ic.Annotations.Has(name) {
				n++
			}
		}
		if n != 1 {
			cx.errorf(lattice.KindAnnotation, ic.Pos,
				"interceptor %s needs exactly one of @before, @after, @around", ic.Name)
		}
	}

	if script && len(m.Interceptors) == 0 && len(m.Methods) == 0 {
		cx.errorf(lattice.KindPlacement, m.Pos,
			"script module %s declares no methods or interceptors", m.Name)
	}
	if db {
		for _, meth := range m.Methods {
			cx.errorf(lattice.KindPlacement, meth.Pos,
				"database module %s cannot declare method %s; queries are generated", m.Name, meth.Name)
		}
	}
}
