package typecheck

import (
	"sort"
	"strings"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/ast"
)

// annotationTarget is a declaration position an annotation may attach to.
type annotationTarget int

const (
	targetType annotationTarget = iota
	targetField
	targetMethod
	targetModule
	targetInterceptor
	targetArgument
)

var targetNames = [...]string{
	targetType: "type", targetField: "field", targetMethod: "method",
	targetModule: "module", targetInterceptor: "interceptor",
	targetArgument: "argument",
}

func (t annotationTarget) String() string { return targetNames[t] }

// annotationSpec declares where an annotation may appear and which
// parameter shapes it accepts. An annotation with mapped parameters lists
// them with their optionality; any other key is rejected.
type annotationSpec struct {
	targets      []annotationTarget
	noParams     bool
	singleParams bool
	mappedParams []mappedParam
}

type mappedParam struct {
	name     string
	optional bool
}

func (s *annotationSpec) allowsTarget(t annotationTarget) bool {
	for _, have := range s.targets {
		if have == t {
			return true
		}
	}
	return false
}

func (s *annotationSpec) mapped(name string) (mappedParam, bool) {
	for _, p := range s.mappedParams {
		if p.name == name {
			return p, true
		}
	}
	return mappedParam{}, false
}

// expectedShapes renders the accepted shapes for diagnostics.
func (s *annotationSpec) expectedShapes() string {
	var shapes []string
	if s.noParams {
		shapes = append(shapes, "no parameters")
	}
	if s.singleParams {
		shapes = append(shapes, "a single parameter")
	}
	if len(s.mappedParams) > 0 {
		names := make([]string, len(s.mappedParams))
		for i, p := range s.mappedParams {
			names[i] = p.name
		}
		shapes = append(shapes, "mapped parameters ("+strings.Join(names, ", ")+")")
	}
	return strings.Join(shapes, " or ")
}

// defaultAnnotations is the built-in annotation registry.
func defaultAnnotations() map[string]*annotationSpec {
	return map[string]*annotationSpec{
		"access": {
			targets:      []annotationTarget{targetType, targetField, targetMethod},
			singleParams: true,
			mappedParams: []mappedParam{
				{name: "query", optional: true},
				{name: "mutation", optional: true},
				{name: "create", optional: true},
				{name: "update", optional: true},
				{name: "delete", optional: true},
			},
		},
		"pk":          {targets: []annotationTarget{targetField}, noParams: true},
		"column":      {targets: []annotationTarget{targetField}, singleParams: true},
		"dbtype":      {targets: []annotationTarget{targetField}, singleParams: true},
		"precision":   {targets: []annotationTarget{targetField}, singleParams: true},
		"scale":       {targets: []annotationTarget{targetField}, singleParams: true},
		"table": {
			targets:      []annotationTarget{targetType},
			singleParams: true,
			mappedParams: []mappedParam{
				{name: "name", optional: true},
				{name: "schema", optional: true},
				{name: "managed", optional: true},
			},
		},
		"plural_name": {targets: []annotationTarget{targetType}, singleParams: true},
		"unique":      {targets: []annotationTarget{targetField}, noParams: true, singleParams: true},
		"index":       {targets: []annotationTarget{targetField}, noParams: true, singleParams: true},
		"range": {
			targets: []annotationTarget{targetField},
			mappedParams: []mappedParam{
				{name: "min"},
				{name: "max"},
			},
		},
		"jwt":      {targets: []annotationTarget{targetField, targetArgument}, noParams: true, singleParams: true},
		"env":      {targets: []annotationTarget{targetField}, singleParams: true},
		"header":   {targets: []annotationTarget{targetField}, singleParams: true},
		"cookie":   {targets: []annotationTarget{targetField}, singleParams: true},
		"clientIp": {targets: []annotationTarget{targetField}, noParams: true},
		"inject":   {targets: []annotationTarget{targetArgument}, noParams: true},
		"before":   {targets: []annotationTarget{targetInterceptor}, singleParams: true},
		"after":    {targets: []annotationTarget{targetInterceptor}, singleParams: true},
		"around":   {targets: []annotationTarget{targetInterceptor}, singleParams: true},
		"database": {targets: []annotationTarget{targetModule}, noParams: true},
		"script":   {targets: []annotationTarget{targetModule}, singleParams: true},
	}
}

// Annotation is a checked annotation attachment.
type Annotation struct {
	Name   string
	Params AnnotationParams
	Pos    lattice.Position
}

// AnnotationParams is the checked parameter payload.
type AnnotationParams interface {
	annotationParams()
}

// NoParams is a bare `@name`.
type NoParams struct{}

// SingleParam is `@name(expr)`.
type SingleParam struct {
	Value Expr
}

// MapParams is `@name(key=expr, ...)`. Keys is sorted so iteration and
// serialization stay deterministic.
type MapParams struct {
	Keys   []string
	Values map[string]Expr
	Spans  map[string][]lattice.Position
}

func (NoParams) annotationParams()     {}
func (*SingleParam) annotationParams() {}
func (*MapParams) annotationParams()   {}

// Get returns the mapped value for key, or nil.
func (p *MapParams) Get(key string) Expr { return p.Values[key] }

// AnnotationMap indexes a declaration's annotations by name. Duplicate
// attachments are recorded during construction and reported once, at
// validation.
type AnnotationMap struct {
	byName map[string]*Annotation
	// order is the first-occurrence source order of names.
	order []string
	// duplicates maps an annotation name to every position it appeared at,
	// for names attached more than once.
	duplicates map[string][]lattice.Position
}

// newAnnotationMap converts parsed annotations, folding parameter shapes
// into the typed representation. Expressions stay unresolved until pass.
func newAnnotationMap(anns []*ast.Annotation) *AnnotationMap {
	m := &AnnotationMap{byName: make(map[string]*Annotation, len(anns))}
	seen := make(map[string][]lattice.Position)
	for _, a := range anns {
		seen[a.Name] = append(seen[a.Name], a.Pos)
		if _, dup := m.byName[a.Name]; dup {
			continue
		}
		m.byName[a.Name] = &Annotation{Name: a.Name, Params: newAnnotationParams(a.Params), Pos: a.Pos}
		m.order = append(m.order, a.Name)
	}
	for name, positions := range seen {
		if len(positions) > 1 {
			if m.duplicates == nil {
				m.duplicates = make(map[string][]lattice.Position)
			}
			m.duplicates[name] = positions
		}
	}
	return m
}

func newAnnotationParams(p ast.AnnotationParams) AnnotationParams {
	switch p := p.(type) {
	case *ast.SingleParam:
		return &SingleParam{Value: newExpr(p.Value)}
	case *ast.MapParams:
		keys := make([]string, 0, len(p.Values))
		for k := range p.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		values := make(map[string]Expr, len(p.Values))
		for k, v := range p.Values {
			values[k] = newExpr(v)
		}
		return &MapParams{Keys: keys, Values: values, Spans: p.Spans}
	default:
		return NoParams{}
	}
}

// Get returns the named annotation, or nil.
func (m *AnnotationMap) Get(name string) *Annotation {
	if m == nil {
		return nil
	}
	return m.byName[name]
}

// Has reports whether the named annotation is attached.
func (m *AnnotationMap) Has(name string) bool { return m.Get(name) != nil }

// Names returns attached annotation names in source order.
func (m *AnnotationMap) Names() []string {
	if m == nil {
		return nil
	}
	return m.order
}

// Len returns the number of distinct annotations attached.
func (m *AnnotationMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byName)
}

// pass validates registry membership, target, parameter shape, and
// duplicate attachment, then passes the parameter expressions. It reports
// whether any expression's type changed.
func (m *AnnotationMap) pass(target annotationTarget, scope Scope, cx *passContext) bool {
	if m == nil {
		return false
	}
	for name, positions := range m.duplicates {
		cx.errorf(lattice.KindAnnotation, positions[1],
			"annotation `@%s` attached more than once", name)
	}
	changed := false
	for _, name := range m.order {
		a := m.byName[name]
		spec, ok := cx.annotations[a.Name]
		if !ok {
			cx.errorf(lattice.KindAnnotation, a.Pos, "unknown annotation `@%s`", a.Name)
			continue
		}
		if !spec.allowsTarget(target) {
			cx.errorf(lattice.KindAnnotation, a.Pos,
				"annotation `@%s` cannot be attached to a %s", a.Name, target)
			continue
		}
		switch p := a.Params.(type) {
		case NoParams:
			if !spec.noParams {
				cx.errorf(lattice.KindAnnotation, a.Pos,
					"annotation `@%s` takes %s", a.Name, spec.expectedShapes())
			}
		case *SingleParam:
			if !spec.singleParams {
				cx.errorf(lattice.KindAnnotation, a.Pos,
					"annotation `@%s` takes %s", a.Name, spec.expectedShapes())
				continue
			}
			if p.Value.pass(scope, cx) {
				changed = true
			}
		case *MapParams:
			if len(spec.mappedParams) == 0 {
				cx.errorf(lattice.KindAnnotation, a.Pos,
					"annotation `@%s` takes %s", a.Name, spec.expectedShapes())
				continue
			}
			for _, key := range p.Keys {
				if _, known := spec.mapped(key); !known {
					cx.errorf(lattice.KindAnnotation, a.Pos,
						"unknown parameter `%s` for annotation `@%s`", key, a.Name)
					continue
				}
				if spans := p.Spans[key]; len(spans) > 1 {
					cx.errorf(lattice.KindAnnotation, spans[1],
						"parameter `%s` given more than once for annotation `@%s`", key, a.Name)
				}
				if p.Values[key].pass(scope, cx) {
					changed = true
				}
			}
			for _, mp := range spec.mappedParams {
				if !mp.optional && p.Values[mp.name] == nil {
					cx.errorf(lattice.KindAnnotation, a.Pos,
						"annotation `@%s` is missing required parameter `%s`", a.Name, mp.name)
				}
			}
		}
	}
	return changed
}
