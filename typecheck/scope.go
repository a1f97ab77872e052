package typecheck

import (
	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/arena"
)

// Scope is the lexical environment of an expression pass: the enclosing
// composite bound to `self`, the enclosing module for bare-name
// resolution, and any higher-order predicate parameters in force.
type Scope struct {
	// Self is the enclosing composite's type name; empty outside a type
	// body (for instance in module-level annotations).
	Self string
	// Module is the declaring module name; bare type names resolve against
	// it before the global set.
	Module string
	vars   map[string]string
}

// WithVar returns a copy of the scope with a predicate parameter bound to
// a type name. The receiver is unchanged; nested predicates shadow
// naturally.
func (s Scope) WithVar(name, typeName string) Scope {
	vars := make(map[string]string, len(s.vars)+1)
	for k, v := range s.vars {
		vars[k] = v
	}
	vars[name] = typeName
	s.vars = vars
	return s
}

// TypeNameOf resolves a chain-head identifier: `self` binds to the
// enclosing composite, anything else must be a predicate parameter.
func (s Scope) TypeNameOf(ident string) (string, bool) {
	if ident == "self" && s.Self != "" {
		return s.Self, true
	}
	name, ok := s.vars[ident]
	return name, ok
}

// passContext carries the shared state of one checking pass.
type passContext struct {
	types       *arena.Arena[Type]
	annotations map[string]*annotationSpec
	errs        *lattice.Diagnostics
}

func (cx *passContext) errorf(kind lattice.ErrorKind, pos lattice.Position, format string, args ...any) {
	*cx.errs = append(*cx.errs, lattice.Errorf(kind, pos, format, args...))
}

// resolveName maps a (possibly module-qualified) type name to an arena
// index. Resolution order for bare names: primitive catalog, the current
// module's declarations, then the global set. Resolution never allocates.
func (cx *passContext) resolveName(module, name string, scope Scope) (arena.Index, bool) {
	if module == "" {
		if kind, ok := primitiveByName[name]; ok {
			return PrimitiveIndex(kind), true
		}
		if scope.Module != "" {
			if ix, ok := cx.types.NameLookup(scope.Module + "." + name); ok {
				return ix, true
			}
		}
		return cx.types.NameLookup(name)
	}
	return cx.types.NameLookup(module + "." + name)
}
