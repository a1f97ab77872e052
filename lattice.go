// Package lattice is a declarative-model compiler for a GraphQL-generating
// application platform. Authors describe their domain in the Lattice
// modeling language (types, contexts, modules, access rules); the compiler
// parses the model, resolves every name into an interned type arena,
// type-checks the access-control expression sub-language, and emits a
// serializable intermediate representation consumed by downstream query
// planners and schema generators.
//
// The compilation pipeline is:
//
//	parser.ParseFile -> typecheck.Check -> ir.Snapshot
//
// The root package holds the pieces shared by every stage: source
// positions and the compile diagnostics model.
package lattice

import "fmt"

// Position is a location in a model source file. Line and Column are
// 1-based; a zero Position means "no position available".
type Position struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty" msgpack:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty" msgpack:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty" msgpack:"column,omitempty"`
}

// IsZero reports whether p carries no location.
func (p Position) IsZero() bool {
	return p.File == "" && p.Line == 0 && p.Column == 0
}

// String returns the position in file:line:column form.
func (p Position) String() string {
	if p.IsZero() {
		return "<unknown>"
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}
