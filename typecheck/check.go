package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/arena"
	"github.com/latticeql/lattice/ast"
)

// System is the checked output handed to the ir package: the type arena
// (primitives, enums, composites) and the module arena.
type System struct {
	Types   *arena.Arena[Type]
	Modules *arena.Arena[*Module]
}

// EachComposite visits every composite slot in arena order.
func (s *System) EachComposite(fn func(name string, ix arena.Index, m *Model)) {
	s.Types.Values(func(name string, ix arena.Index, t Type) {
		if c, ok := t.(Composite); ok {
			fn(name, ix, c.Model)
		}
	})
}

// Composite returns the named composite's model, or nil.
func (s *System) Composite(name string) *Model {
	if t, ok := s.Types.GetByName(name); ok {
		if c, ok := t.(Composite); ok {
			return c.Model
		}
	}
	return nil
}

// registered pairs a composite with its arena index for the pass loop.
type registered struct {
	ix    arena.Index
	model *Model
}

// Check resolves and type-checks a parsed system. On failure it returns
// the accumulated lattice.Diagnostics.
//
// Checking proceeds in three stages. Declaration: every enum, composite,
// and module is converted to its typed skeleton and registered by name,
// so later stages resolve forward and cross-module references freely.
// Resolution: passes run over all composites and modules until a full
// round changes nothing; expression and field types move monotonically
// from deferred to resolved, so the loop terminates. Errors found during
// a round are discarded while progress is still being made and surfaced
// only at the fixpoint. Validation: structural rules that need fully
// resolved types (placement, defaults, access restrictions) run last.
func Check(sys *ast.System) (*System, error) {
	if errs := validateNoDuplicates(sys); len(errs) > 0 {
		return nil, errs
	}

	types := arena.New[Type]()
	seedPrimitives(types)
	modules := arena.New[*Module]()

	var errs lattice.Diagnostics
	cx := &passContext{types: types, annotations: defaultAnnotations(), errs: &errs}

	composites := register(sys, types, modules, cx)
	if len(errs) > 0 {
		return nil, errs
	}

	for {
		errs = errs[:0]
		changed := false
		for _, r := range composites {
			if r.model.pass(cx) {
				changed = true
				// Write the slot back so captured indexes observe this
				// round's progress.
				if err := types.Replace(r.ix, Composite{Model: r.model}); err != nil {
					return nil, err
				}
			}
		}
		modules.Values(func(_ string, _ arena.Index, m *Module) {
			if m.pass(cx) {
				changed = true
			}
		})
		if !changed {
			break
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	checked := &System{Types: types, Modules: modules}
	validate(sys, checked, cx)
	if len(errs) > 0 {
		return nil, errs
	}
	return checked, nil
}

// register enters every declaration into the arenas and returns the
// composite pass list in declaration order. Root declarations register
// under their bare name. Module declarations always register qualified
// as Module.Name, and additionally under the bare name when it is still
// free, which gives same-module references precedence without hiding the
// type from other modules.
func register(sys *ast.System, types *arena.Arena[Type], modules *arena.Arena[*Module], cx *passContext) []registered {
	var composites []registered

	addType := func(name string, t Type, pos lattice.Position) (arena.Index, bool) {
		if _, isPrimitive := primitiveByName[name]; isPrimitive {
			cx.errorf(lattice.KindDuplicateName, pos, "%s shadows a built-in type", name)
			return arena.Index{}, false
		}
		ix, added := types.Add(name, t)
		if !added {
			cx.errorf(lattice.KindDuplicateName, pos, "type name %s is already declared", name)
			return arena.Index{}, false
		}
		return ix, true
	}

	for _, e := range sys.Enums {
		addType(e.Name, EnumType{Enum: newEnum(e)}, e.Pos)
	}
	for _, m := range sys.Types {
		model := newModel(m, "")
		if ix, ok := addType(m.Name, Composite{Model: model}, m.Pos); ok {
			composites = append(composites, registered{ix: ix, model: model})
		}
	}

	for _, astMod := range sys.Modules {
		mod := newModule(astMod)
		if _, added := modules.Add(astMod.Name, mod); !added {
			cx.errorf(lattice.KindDuplicateName, astMod.Pos,
				"module name %s is already declared", astMod.Name)
			continue
		}
		for _, e := range astMod.Enums {
			ix, ok := addType(astMod.Name+"."+e.Name, EnumType{Enum: newEnum(e)}, e.Pos)
			if !ok {
				continue
			}
			types.Alias(e.Name, ix)
			mod.Enums = append(mod.Enums, ix)
		}
		for _, m := range astMod.Types {
			model := newModel(m, astMod.Name)
			ix, ok := addType(astMod.Name+"."+m.Name, Composite{Model: model}, m.Pos)
			if !ok {
				continue
			}
			types.Alias(m.Name, ix)
			mod.Types = append(mod.Types, ix)
			composites = append(composites, registered{ix: ix, model: model})
		}
	}
	return composites
}
