package ir

import (
	"github.com/latticeql/lattice/arena"
	"github.com/latticeql/lattice/typecheck"
)

// Snapshot serializes a checked system. The result depends only on the
// checked declarations: slots appear in arena order, names in
// registration order, and no map iteration leaks into the output, so two
// builds of the same source produce byte-identical artifacts.
func Snapshot(sys *typecheck.System) *System {
	out := &System{Types: &TypeTable{}}

	slotOf := make(map[string]int)
	sys.Types.Values(func(name string, ix arena.Index, t typecheck.Type) {
		out.Types.Slots = append(out.Types.Slots, convType(t))
		if name != "" {
			slotOf[name] = ix.Slot
		}
	})
	for _, name := range sys.Types.Names() {
		out.Types.Names = append(out.Types.Names, NameEntry{Name: name, Slot: slotOf[name]})
	}

	sys.Modules.Values(func(_ string, _ arena.Index, m *typecheck.Module) {
		out.Modules = append(out.Modules, convModule(m))
	})
	return out
}

func convType(t typecheck.Type) *Type {
	switch t := t.(type) {
	case typecheck.Primitive:
		return &Type{Kind: KindPrimitive, Primitive: t.Kind.String()}
	case typecheck.Composite:
		return &Type{Kind: KindComposite, Composite: convComposite(t.Model)}
	case typecheck.EnumType:
		return &Type{Kind: KindEnum, Enum: &Enum{Name: t.Enum.Name, Cases: t.Enum.Cases}}
	case typecheck.Reference:
		ix := t.Index
		return &Type{Kind: KindReference, Ref: &ix, RefName: t.Name}
	case typecheck.Set:
		return &Type{Kind: KindSet, Elem: convType(t.Elem)}
	case typecheck.Array:
		return &Type{Kind: KindArray, Elem: convType(t.Elem)}
	case typecheck.Optional:
		return &Type{Kind: KindOptional, Elem: convType(t.Elem)}
	default:
		return nil
	}
}

func convComposite(m *typecheck.Model) *Composite {
	c := &Composite{
		Name:        m.Name,
		Kind:        m.Kind.String(),
		Module:      m.Module,
		Access:      convAccess(m.Annotations.Get("access")),
		Annotations: convAnnotations(m.Annotations),
	}
	for _, f := range m.Fields {
		c.Fields = append(c.Fields, convField(f))
	}
	return c
}

func convField(f *typecheck.Field) *Field {
	out := &Field{
		Name:        f.Name,
		Type:        convType(f.Type.Typ()),
		Pk:          f.Annotations.Has("pk"),
		Access:      convAccess(f.Annotations.Get("access")),
		Annotations: convAnnotations(f.Annotations),
	}
	if f.Default != nil {
		out.Default = &DefaultValue{Function: f.Default.FuncName}
		if f.Default.Value != nil {
			out.Default.Value = convExpr(f.Default.Value)
		}
		for _, a := range f.Default.Args {
			out.Default.Args = append(out.Default.Args, convExpr(a))
		}
	}
	return out
}

func convAnnotations(m *typecheck.AnnotationMap) []*Annotation {
	var out []*Annotation
	for _, name := range m.Names() {
		a := m.Get(name)
		conv := &Annotation{Name: a.Name}
		switch p := a.Params.(type) {
		case *typecheck.SingleParam:
			conv.Single = convExpr(p.Value)
		case *typecheck.MapParams:
			for _, key := range p.Keys {
				conv.Params = append(conv.Params, Param{Name: key, Value: convExpr(p.Values[key])})
			}
		}
		out = append(out, conv)
	}
	return out
}

// convAccess folds an @access annotation into the per-operation table. A
// single anonymous rule applies to every operation; in the mapped form
// the specific mutation kinds fall back to the generic mutation rule,
// and absent rules stay nil, which denies.
func convAccess(a *typecheck.Annotation) *AccessRules {
	if a == nil {
		return nil
	}
	switch p := a.Params.(type) {
	case *typecheck.SingleParam:
		e := convExpr(p.Value)
		return &AccessRules{Query: e, Mutation: e, Create: e, Update: e, Delete: e}
	case *typecheck.MapParams:
		rules := &AccessRules{}
		if v := p.Get("query"); v != nil {
			rules.Query = convExpr(v)
		}
		if v := p.Get("mutation"); v != nil {
			rules.Mutation = convExpr(v)
		}
		rules.Create = fallback(p.Get("create"), rules.Mutation)
		rules.Update = fallback(p.Get("update"), rules.Mutation)
		rules.Delete = fallback(p.Get("delete"), rules.Mutation)
		return rules
	default:
		return nil
	}
}

func fallback(specific typecheck.Expr, generic *Expr) *Expr {
	if specific != nil {
		return convExpr(specific)
	}
	return generic
}

func convModule(m *typecheck.Module) *Module {
	out := &Module{
		Name:     m.Name,
		Types:    m.Types,
		Enums:    m.Enums,
		BaseFile: m.BaseFile,
	}
	switch {
	case m.Annotations.Has("database"):
		out.Subsystem = "database"
	case m.Annotations.Has("script"):
		out.Subsystem = "script"
		if p, ok := m.Annotations.Get("script").Params.(*typecheck.SingleParam); ok {
			if s, ok := p.Value.(*typecheck.StringLit); ok {
				out.Script = s.Value
			}
		}
	}
	for _, meth := range m.Methods {
		out.Methods = append(out.Methods, &Method{
			Name:       meth.Name,
			Kind:       meth.Kind.String(),
			Exported:   meth.Exported,
			Arguments:  convArguments(meth.Arguments),
			ReturnType: convType(meth.ReturnType.Typ()),
			Access:     convAccess(meth.Annotations.Get("access")),
		})
	}
	for _, ic := range m.Interceptors {
		conv := &Interceptor{Name: ic.Name, Arguments: convArguments(ic.Arguments)}
		for _, timing := range []string{"before", "after", "around"} {
			a := ic.Annotations.Get(timing)
			if a == nil {
				continue
			}
			conv.Timing = timing
			if p, ok := a.Params.(*typecheck.SingleParam); ok {
				if s, ok := p.Value.(*typecheck.StringLit); ok {
					conv.Pattern = s.Value
				}
			}
		}
		out.Interceptors = append(out.Interceptors, conv)
	}
	return out
}

func convArguments(args []*typecheck.Argument) []*Argument {
	var out []*Argument
	for _, a := range args {
		out = append(out, &Argument{
			Name:        a.Name,
			Type:        convType(a.Type.Typ()),
			Annotations: convAnnotations(a.Annotations),
		})
	}
	return out
}

func convExpr(e typecheck.Expr) *Expr {
	switch e := e.(type) {
	case *typecheck.StringLit:
		v := e.Value
		return &Expr{Kind: ExprString, StringValue: &v}
	case *typecheck.BooleanLit:
		v := e.Value
		return &Expr{Kind: ExprBoolean, BoolValue: &v}
	case *typecheck.NumberLit:
		return &Expr{Kind: ExprNumber, Number: e.Raw}
	case *typecheck.NullLit:
		return &Expr{Kind: ExprNull}
	case *typecheck.ListLit:
		out := &Expr{Kind: ExprList}
		for _, el := range e.Elems {
			out.Elems = append(out.Elems, convExpr(el))
		}
		return out
	case *typecheck.Selection:
		return &Expr{Kind: ExprChain, Chain: convChain(e)}
	case *typecheck.LogicalExpr:
		out := &Expr{Kind: ExprLogical, Op: e.Op.String(), Left: convExpr(e.Left)}
		if e.Right != nil {
			out.Right = convExpr(e.Right)
		}
		return out
	case *typecheck.RelationalExpr:
		return &Expr{
			Kind: ExprRelational, Op: e.Op.String(),
			Left: convExpr(e.Left), Right: convExpr(e.Right),
		}
	default:
		return nil
	}
}

func convChain(s *typecheck.Selection) []*Step {
	var steps []*Step
	if s.Prefix != nil {
		steps = convChain(s.Prefix)
	}
	switch el := s.Elem.(type) {
	case *typecheck.Ident:
		steps = append(steps, &Step{Kind: StepField, Name: el.Name})
	case *typecheck.HofCall:
		steps = append(steps, &Step{Kind: StepSome, Name: el.Name, Param: el.Param, Body: convExpr(el.Expr)})
	case *typecheck.NormalCall:
		step := &Step{Kind: StepContains, Name: el.Name}
		for _, a := range el.Args {
			step.Args = append(step.Args, convExpr(a))
		}
		steps = append(steps, step)
	}
	return steps
}
