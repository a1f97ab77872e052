package lattice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a compile diagnostic. Every diagnostic produced by
// the compiler carries exactly one kind; downstream tooling (the CLI, the
// language server) switches on it rather than parsing messages.
type ErrorKind int

const (
	// KindSyntax marks a malformed declaration or expression. No arena is
	// constructed when a syntax error is present.
	KindSyntax ErrorKind = iota

	// KindUnresolvedType marks a type name that does not exist in any
	// visible scope.
	KindUnresolvedType

	// KindUnknownIdentifier marks an expression identifier (context name,
	// field, higher-order parameter) that does not resolve.
	KindUnknownIdentifier

	// KindTypeMismatch marks a well-formed but semantically inconsistent
	// expression, such as comparing a String with an Int.
	KindTypeMismatch

	// KindInvalidSelfUsage marks a self-rooted selection in a position
	// where self is not available, such as a field-level access rule.
	KindInvalidSelfUsage

	// KindNonBooleanHofBody marks a higher-order predicate whose body does
	// not type-check to Boolean.
	KindNonBooleanHofBody

	// KindSelectOnNonComposite marks a .field step applied to a value that
	// has no fields.
	KindSelectOnNonComposite

	// KindMissingHofOnSetField marks a bare field selection applied to a
	// Set-typed value, which requires a higher-order call instead.
	KindMissingHofOnSetField

	// KindIncompatibleDefaultValue marks a default-value function applied
	// to a field whose type it cannot produce.
	KindIncompatibleDefaultValue

	// KindDuplicateName marks duplicate modules, types, fields, enum
	// cases, methods, or annotation parameters.
	KindDuplicateName

	// KindPrimaryKey marks an invalid primary-key declaration, such as
	// @pk on a non-persistable field.
	KindPrimaryKey

	// KindAnnotation marks an unknown annotation, an annotation on an
	// invalid target, or parameters of the wrong shape.
	KindAnnotation

	// KindStaleReference marks a generational-index dereference whose
	// generation no longer matches the arena slot.
	KindStaleReference

	// KindPlacement marks a declaration in an invalid position, such as a
	// persistable type outside a module or a context inside one.
	KindPlacement
)

var errorKindNames = map[ErrorKind]string{
	KindSyntax:                   "syntax",
	KindUnresolvedType:           "unresolved-type",
	KindUnknownIdentifier:        "unknown-identifier",
	KindTypeMismatch:             "type-mismatch",
	KindInvalidSelfUsage:         "invalid-self-usage",
	KindNonBooleanHofBody:        "non-boolean-hof-body",
	KindSelectOnNonComposite:     "select-on-non-composite",
	KindMissingHofOnSetField:     "missing-hof-on-set-field",
	KindIncompatibleDefaultValue: "incompatible-default-value",
	KindDuplicateName:            "duplicate-name",
	KindPrimaryKey:               "primary-key",
	KindAnnotation:               "annotation",
	KindStaleReference:           "stale-reference",
	KindPlacement:                "placement",
}

// String returns the stable name of the kind used in CLI output.
func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Diagnostic is a single compile error with enough context to report
// precisely: position, classification, and an optional secondary label
// (for example, the first definition site of a duplicate).
type Diagnostic struct {
	Kind    ErrorKind
	Pos     Position
	Message string
	Labels  []Label
}

// Label is a secondary position attached to a diagnostic.
type Label struct {
	Pos     Position
	Message string
}

// Error returns the diagnostic in file:line:column: message form.
func (d *Diagnostic) Error() string {
	if d.Pos.IsZero() {
		return fmt.Sprintf("lattice: %s", d.Message)
	}
	return fmt.Sprintf("lattice: %s: %s", d.Pos, d.Message)
}

// Errorf builds a diagnostic at pos with a formatted message.
func Errorf(kind ErrorKind, pos Position, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// WithLabel returns d with an extra secondary label attached.
func (d *Diagnostic) WithLabel(pos Position, format string, args ...any) *Diagnostic {
	d.Labels = append(d.Labels, Label{Pos: pos, Message: fmt.Sprintf(format, args...)})
	return d
}

// Diagnostics is the batched error set of a failed build. The compiler
// collects all diagnostics for the current module before surfacing them;
// a non-empty set always aborts the build.
type Diagnostics []*Diagnostic

// Error joins all diagnostics, one per line.
func (ds Diagnostics) Error() string {
	switch len(ds) {
	case 0:
		return "lattice: no errors"
	case 1:
		return ds[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "lattice: %d errors:", len(ds))
	for _, d := range ds {
		sb.WriteString("\n\t")
		sb.WriteString(d.Error())
	}
	return sb.String()
}

// HasKind reports whether any diagnostic in the set has the given kind.
func (ds Diagnostics) HasKind(kind ErrorKind) bool {
	for _, d := range ds {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// AsDiagnostics unwraps err into a Diagnostics set. A bare *Diagnostic is
// returned as a one-element set.
func AsDiagnostics(err error) (Diagnostics, bool) {
	var ds Diagnostics
	if errors.As(err, &ds) {
		return ds, true
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return Diagnostics{d}, true
	}
	return nil, false
}

// IsKind reports whether err is (or contains) a diagnostic of the given
// kind.
func IsKind(err error, kind ErrorKind) bool {
	ds, ok := AsDiagnostics(err)
	if !ok {
		return false
	}
	return ds.HasKind(kind)
}
