package gqlschema_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/latticeql/lattice/gqlschema"
	"github.com/latticeql/lattice/ir"
	"github.com/latticeql/lattice/parser"
	"github.com/latticeql/lattice/typecheck"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emit(t *testing.T, src string) string {
	t.Helper()
	parsed, err := parser.Parse("model.lat", src)
	require.NoError(t, err)
	checked, err := typecheck.Check(parsed)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gqlschema.Emit(&buf, ir.Snapshot(checked)))
	return buf.String()
}

func TestEmit_ObjectAndOperations(t *testing.T) {
	sdl := emit(t, `
@database
module Music {
	enum Genre { metal, rock }

	type Concert {
		@pk id: Int = autoIncrement()
		title: String
		genre: Genre
		venue: Venue
	}

	@plural_name("venueList")
	type Venue {
		@pk id: Int = autoIncrement()
		name: String
		concerts: Set<Concert>
	}
}
`)

	assert.Contains(t, sdl, "type Concert {")
	assert.Contains(t, sdl, "title: String!")
	assert.Contains(t, sdl, "genre: Genre!")
	assert.Contains(t, sdl, "venue: Venue!")
	assert.Contains(t, sdl, "concerts: [Concert!]!")

	assert.Contains(t, sdl, "enum Genre {")
	assert.Contains(t, sdl, "metal")

	// Generated operations: by-pk and pluralized collection queries.
	assert.Contains(t, sdl, "concert(id: Int!): Concert")
	assert.Contains(t, sdl, "concerts: [Concert!]!")
	assert.Contains(t, sdl, "venueList: [Venue!]!")

	assert.Contains(t, sdl, "createConcert(data: ConcertCreationInput!): Concert!")
	assert.Contains(t, sdl, "updateConcert(id: Int!, data: ConcertCreationInput): Concert")
	assert.Contains(t, sdl, "deleteConcert(id: Int!): Concert")

	// Inputs carry scalar fields only.
	start := strings.Index(sdl, "input ConcertCreationInput {")
	require.GreaterOrEqual(t, start, 0)
	input := sdl[start:]
	input = input[:strings.Index(input, "}")]
	assert.Contains(t, input, "title")
	assert.Contains(t, input, "genre")
	assert.NotContains(t, input, "venue")
	assert.NotContains(t, input, "id")
}

func TestEmit_CustomScalarsAndOptionals(t *testing.T) {
	sdl := emit(t, `
@database
module Files {
	type Upload {
		@pk id: Uuid = generateUuid()
		name: String
		payload: Blob
		note: String?
		createdAt: Instant = now()
	}
}
`)

	assert.Contains(t, sdl, "scalar Blob")
	assert.Contains(t, sdl, "scalar Instant")
	assert.Contains(t, sdl, "scalar Uuid")
	assert.Contains(t, sdl, "id: Uuid!")
	// Optional fields drop the non-null marker.
	assert.Contains(t, sdl, "note: String\n")
}

func TestEmit_ScriptModuleMethods(t *testing.T) {
	sdl := emit(t, `
@script("report.ts")
module Reports {
	export query usage(days: Int): Json
	export mutation purge(before: LocalDate): Boolean
	query internalOnly(): Int

	@before("*")
	interceptor trace(@inject op: Operation)
}
`)

	assert.Contains(t, sdl, "usage(days: Int!): Json!")
	assert.Contains(t, sdl, "purge(before: LocalDate!): Boolean!")
	// Unexported methods and interceptors stay off the schema.
	assert.NotContains(t, sdl, "internalOnly")
	assert.NotContains(t, sdl, "trace")
}
