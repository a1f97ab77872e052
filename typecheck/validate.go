package typecheck

import (
	"github.com/google/uuid"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/arena"
	"github.com/latticeql/lattice/ast"
)

// validateNoDuplicates rejects name collisions before anything is
// registered: sibling declarations of the same kind must be uniquely
// named.
func validateNoDuplicates(sys *ast.System) lattice.Diagnostics {
	var errs lattice.Diagnostics
	report := func(what, name string, pos lattice.Position) {
		errs = append(errs, lattice.Errorf(lattice.KindDuplicateName, pos,
			"duplicate %s `%s`", what, name))
	}

	checkModels := func(models []*ast.Model) {
		for _, m := range models {
			seen := make(map[string]bool, len(m.Fields))
			for _, f := range m.Fields {
				if seen[f.Name] {
					report("field", m.Name+"."+f.Name, f.Pos)
				}
				seen[f.Name] = true
			}
		}
	}
	checkEnums := func(enums []*ast.Enum) {
		for _, e := range enums {
			seen := make(map[string]bool, len(e.Cases))
			for _, c := range e.Cases {
				if seen[c.Name] {
					report("enum case", e.Name+"."+c.Name, c.Pos)
				}
				seen[c.Name] = true
			}
		}
	}

	rootNames := make(map[string]lattice.Position)
	declareRoot := func(name string, pos lattice.Position) {
		if _, dup := rootNames[name]; dup {
			report("declaration", name, pos)
		}
		rootNames[name] = pos
	}
	for _, m := range sys.Types {
		declareRoot(m.Name, m.Pos)
	}
	for _, e := range sys.Enums {
		declareRoot(e.Name, e.Pos)
	}
	checkModels(sys.Types)
	checkEnums(sys.Enums)

	moduleNames := make(map[string]bool)
	for _, mod := range sys.Modules {
		if moduleNames[mod.Name] {
			report("module", mod.Name, mod.Pos)
		}
		moduleNames[mod.Name] = true

		local := make(map[string]bool)
		for _, m := range mod.Types {
			if local[m.Name] {
				report("declaration", mod.Name+"."+m.Name, m.Pos)
			}
			local[m.Name] = true
		}
		for _, e := range mod.Enums {
			if local[e.Name] {
				report("declaration", mod.Name+"."+e.Name, e.Pos)
			}
			local[e.Name] = true
		}
		checkModels(mod.Types)
		checkEnums(mod.Enums)

		ops := make(map[string]bool)
		for _, meth := range mod.Methods {
			if ops[meth.Name] {
				report("method", mod.Name+"."+meth.Name, meth.Pos)
			}
			ops[meth.Name] = true
			checkArguments(meth.Name, meth.Arguments, &errs)
		}
		for _, ic := range mod.Interceptors {
			if ops[ic.Name] {
				report("interceptor", mod.Name+"."+ic.Name, ic.Pos)
			}
			ops[ic.Name] = true
			checkArguments(ic.Name, ic.Arguments, &errs)
		}
	}
	return errs
}

func checkArguments(owner string, args []*ast.Argument, errs *lattice.Diagnostics) {
	seen := make(map[string]bool, len(args))
	for _, a := range args {
		if seen[a.Name] {
			*errs = append(*errs, lattice.Errorf(lattice.KindDuplicateName, a.Pos,
				"duplicate argument `%s` of %s", a.Name, owner))
		}
		seen[a.Name] = true
	}
}

// contextSourceAnnotations are the request-metadata sources a context
// field may bind to.
var contextSourceAnnotations = []string{"jwt", "env", "header", "cookie", "clientIp"}

// validate runs the post-fixpoint structural rules over the fully
// resolved system.
func validate(sys *ast.System, checked *System, cx *passContext) {
	// Placement: persistable types live in modules, contexts at the root.
	for _, m := range sys.Types {
		if m.Kind == ast.KindType {
			cx.errorf(lattice.KindPlacement, m.Pos,
				"type %s must be declared inside a module", m.Name)
		}
	}
	for _, astMod := range sys.Modules {
		for _, m := range astMod.Types {
			if m.Kind == ast.KindContext {
				cx.errorf(lattice.KindPlacement, m.Pos,
					"context %s cannot be declared inside a module", m.Name)
			}
		}
	}

	checked.EachComposite(func(_ string, _ arena.Index, m *Model) {
		validateModel(m, cx)
	})
	checked.Modules.Values(func(_ string, _ arena.Index, mod *Module) {
		mod.validate(cx)
		for _, meth := range mod.Methods {
			if access := meth.Annotations.Get("access"); access != nil {
				requireBooleanAccess(access, cx)
			}
		}
	})
}

// requireBooleanAccess enforces that every access rule is a Boolean
// expression. A rule typed as anything else (a bare Set field, a string)
// would have no evaluation semantics.
func requireBooleanAccess(a *Annotation, cx *passContext) {
	checkRule := func(e Expr) {
		if e == nil || !isComplete(e.Typ()) {
			return
		}
		if !isBoolean(e.Typ(), cx.types) {
			cx.errorf(lattice.KindTypeMismatch, e.Pos(),
				"access rule must be Boolean, got %s", e.Typ())
		}
	}
	switch p := a.Params.(type) {
	case *SingleParam:
		checkRule(p.Value)
	case *MapParams:
		for _, key := range p.Keys {
			checkRule(p.Values[key])
		}
	}
}

func validateModel(m *Model, cx *passContext) {
	for _, f := range m.Fields {
		if m.Kind == ast.KindContext {
			validateContextField(m, f, cx)
		}
		if f.Annotations.Has("pk") && m.Kind != ast.KindType {
			cx.errorf(lattice.KindPrimaryKey, f.Pos,
				"field %s.%s: primary keys apply to persistable types only", m.Name, f.Name)
		}
		if f.Default != nil {
			validateDefault(m, f, cx)
		}
		if access := f.Annotations.Get("access"); access != nil {
			rejectSelfInParams(m, f, access.Params, cx)
			requireBooleanAccess(access, cx)
		}
	}
	if access := m.Annotations.Get("access"); access != nil {
		requireBooleanAccess(access, cx)
	}
}

// validateContextField enforces the context shape: fields carry exactly
// one request-metadata source and resolve to primitives or nested
// contexts.
func validateContextField(m *Model, f *Field, cx *passContext) {
	sources := 0
	for _, name := range contextSourceAnnotations {
		if f.Annotations.Has(name) {
			sources++
		}
	}
	if sources != 1 {
		cx.errorf(lattice.KindAnnotation, f.Pos,
			"context field %s.%s needs exactly one source annotation (%s)",
			m.Name, f.Name, "@jwt, @env, @header, @cookie, or @clientIp")
	}

	t := f.Type.Typ()
	for {
		switch inner := deref(t, cx.types).(type) {
		case Optional:
			t = inner.Elem
			continue
		case Set:
			t = inner.Elem
			continue
		case Array:
			t = inner.Elem
			continue
		case Primitive, EnumType:
			return
		case Composite:
			if inner.Model.Kind == ast.KindContext {
				return
			}
			cx.errorf(lattice.KindTypeMismatch, f.Pos,
				"context field %s.%s cannot reference persistable type %s",
				m.Name, f.Name, inner.Model.Name)
			return
		default:
			return
		}
	}
}

// defaultFunctions is the closed set of recognized default-value
// functions, each tied to the field types it can populate.
var defaultFunctions = map[string]string{
	"autoIncrement": "an Int primary-key field",
	"generateUuid":  "a Uuid field",
	"now":           "a date or time field",
}

func validateDefault(m *Model, f *Field, cx *passContext) {
	d := f.Default
	fieldType := deref(f.Type.Typ(), cx.types)
	if opt, ok := fieldType.(Optional); ok {
		fieldType = deref(opt.Elem, cx.types)
	}
	if !isComplete(fieldType) {
		return
	}
	where := m.Name + "." + f.Name

	if d.IsFunction() {
		if _, known := defaultFunctions[d.FuncName]; !known {
			cx.errorf(lattice.KindIncompatibleDefaultValue, d.Pos,
				"unknown default function `%s` on %s", d.FuncName, where)
			return
		}
		if len(d.Args) != 0 {
			cx.errorf(lattice.KindIncompatibleDefaultValue, d.Pos,
				"default function `%s` takes no arguments", d.FuncName)
			return
		}
		p, isPrimitive := fieldType.(Primitive)
		ok := false
		switch d.FuncName {
		case "autoIncrement":
			ok = isPrimitive && p.Kind == KindInt && f.Annotations.Has("pk")
		case "generateUuid":
			ok = isPrimitive && p.Kind == KindUuid
		case "now":
			ok = isPrimitive && isTemporal(p.Kind)
		}
		if !ok {
			cx.errorf(lattice.KindIncompatibleDefaultValue, d.Pos,
				"default `%s()` requires %s; %s is %s",
				d.FuncName, defaultFunctions[d.FuncName], where, f.Type.Typ())
		}
		return
	}

	switch v := d.Value.(type) {
	case *StringLit:
		switch ft := fieldType.(type) {
		case Primitive:
			switch ft.Kind {
			case KindString:
				return
			case KindUuid:
				if _, err := uuid.Parse(v.Value); err != nil {
					cx.errorf(lattice.KindIncompatibleDefaultValue, v.Pos(),
						"default for %s is not a valid UUID: %q", where, v.Value)
				}
				return
			}
		case EnumType:
			for _, c := range ft.Enum.Cases {
				if c == v.Value {
					return
				}
			}
			cx.errorf(lattice.KindIncompatibleDefaultValue, v.Pos(),
				"default %q is not a case of enum %s", v.Value, ft.Enum.Name)
			return
		}
	case *NumberLit:
		if p, ok := fieldType.(Primitive); ok && isNumeric(p.Kind) {
			if p.Kind == KindInt && !v.IsInt() {
				cx.errorf(lattice.KindIncompatibleDefaultValue, v.Pos(),
					"default for Int field %s must be an integer literal", where)
			}
			return
		}
	case *BooleanLit:
		if p, ok := fieldType.(Primitive); ok && p.Kind == KindBoolean {
			return
		}
	case *NullLit:
		if _, ok := f.Type.Typ().(Optional); ok {
			return
		}
		cx.errorf(lattice.KindIncompatibleDefaultValue, v.Pos(),
			"null default requires an optional field, %s is %s", where, f.Type.Typ())
		return
	default:
		cx.errorf(lattice.KindIncompatibleDefaultValue, d.Pos,
			"default value of %s must be a literal", where)
		return
	}
	cx.errorf(lattice.KindIncompatibleDefaultValue, d.Pos,
		"default value does not fit %s of type %s", where, f.Type.Typ())
}

// rejectSelfInParams enforces the field-level access restriction: a
// field's own access expression may depend on request contexts but never
// on the enclosing instance.
func rejectSelfInParams(m *Model, f *Field, params AnnotationParams, cx *passContext) {
	report := func(pos lattice.Position) {
		cx.errorf(lattice.KindInvalidSelfUsage, pos,
			"field %s.%s: `self` cannot appear in a field-level access expression", m.Name, f.Name)
	}
	switch p := params.(type) {
	case *SingleParam:
		walkExpr(p.Value, func(e Expr) {
			if s, ok := e.(*Selection); ok && s.Prefix == nil {
				if id, ok := s.Elem.(*Ident); ok && id.Name == "self" {
					report(id.pos)
				}
			}
		})
	case *MapParams:
		for _, key := range p.Keys {
			walkExpr(p.Values[key], func(e Expr) {
				if s, ok := e.(*Selection); ok && s.Prefix == nil {
					if id, ok := s.Elem.(*Ident); ok && id.Name == "self" {
						report(id.pos)
					}
				}
			})
		}
	}
}

// walkExpr visits every node of a checked expression, including predicate
// bodies.
func walkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch e := e.(type) {
	case *ListLit:
		for _, el := range e.Elems {
			walkExpr(el, fn)
		}
	case *LogicalExpr:
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	case *RelationalExpr:
		walkExpr(e.Left, fn)
		walkExpr(e.Right, fn)
	case *Selection:
		if e.Prefix != nil {
			walkExpr(e.Prefix, fn)
		}
		switch el := e.Elem.(type) {
		case *HofCall:
			walkExpr(el.Expr, fn)
		case *NormalCall:
			for _, a := range el.Args {
				walkExpr(a, fn)
			}
		}
	}
}
