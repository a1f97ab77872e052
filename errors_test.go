package lattice_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticeql/lattice"
)

func TestPosition_String(t *testing.T) {
	assert.Equal(t, "<unknown>", lattice.Position{}.String())
	assert.Equal(t, "3:7", lattice.Position{Line: 3, Column: 7}.String())
	assert.Equal(t, "model.lat:3:7",
		lattice.Position{File: "model.lat", Line: 3, Column: 7}.String())
}

func TestDiagnostic_Error(t *testing.T) {
	d := lattice.Errorf(lattice.KindTypeMismatch,
		lattice.Position{File: "model.lat", Line: 2, Column: 5},
		"cannot compare %s with %s", "String", "Int")
	assert.Equal(t, "lattice: model.lat:2:5: cannot compare String with Int", d.Error())

	bare := lattice.Errorf(lattice.KindSyntax, lattice.Position{}, "oops")
	assert.Equal(t, "lattice: oops", bare.Error())
}

func TestDiagnostic_WithLabel(t *testing.T) {
	first := lattice.Position{File: "model.lat", Line: 1, Column: 1}
	d := lattice.Errorf(lattice.KindDuplicateName, lattice.Position{Line: 4, Column: 1},
		"duplicate type Document").
		WithLabel(first, "first declared here")
	require.Len(t, d.Labels, 1)
	assert.Equal(t, first, d.Labels[0].Pos)
}

func TestDiagnostics_Error(t *testing.T) {
	one := lattice.Diagnostics{
		lattice.Errorf(lattice.KindSyntax, lattice.Position{}, "first"),
	}
	assert.Equal(t, "lattice: first", one.Error())

	two := append(one, lattice.Errorf(lattice.KindSyntax, lattice.Position{}, "second"))
	assert.Equal(t, "lattice: 2 errors:\n\tlattice: first\n\tlattice: second", two.Error())
}

func TestAsDiagnostics(t *testing.T) {
	ds := lattice.Diagnostics{
		lattice.Errorf(lattice.KindUnresolvedType, lattice.Position{}, "no such type"),
	}

	got, ok := lattice.AsDiagnostics(ds)
	require.True(t, ok)
	assert.Len(t, got, 1)

	// Wrapped sets unwrap; bare diagnostics come back as one-element sets.
	wrapped := fmt.Errorf("building model: %w", ds)
	got, ok = lattice.AsDiagnostics(wrapped)
	require.True(t, ok)
	assert.Len(t, got, 1)

	got, ok = lattice.AsDiagnostics(ds[0])
	require.True(t, ok)
	assert.Len(t, got, 1)

	_, ok = lattice.AsDiagnostics(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestIsKind(t *testing.T) {
	ds := lattice.Diagnostics{
		lattice.Errorf(lattice.KindUnknownIdentifier, lattice.Position{}, "a"),
		lattice.Errorf(lattice.KindTypeMismatch, lattice.Position{}, "b"),
	}
	assert.True(t, lattice.IsKind(ds, lattice.KindTypeMismatch))
	assert.False(t, lattice.IsKind(ds, lattice.KindSyntax))
	assert.False(t, lattice.IsKind(fmt.Errorf("plain"), lattice.KindSyntax))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "type-mismatch", lattice.KindTypeMismatch.String())
	assert.Equal(t, "kind(99)", lattice.ErrorKind(99).String())
}
