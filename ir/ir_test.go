package ir_test

import (
	"bytes"
	"testing"

	"github.com/latticeql/lattice/ir"
	"github.com/latticeql/lattice/parser"
	"github.com/latticeql/lattice/typecheck"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const documentModel = `
context AuthContext {
	@jwt("sub") id: Int
	@jwt role: String
}

@database
module Docs {
	@access(
		query = AuthContext.role == "admin" || self.documentUsers.some(du => du.read),
		mutation = AuthContext.role == "admin"
	)
	type Document {
		@pk id: Int = autoIncrement()
		content: String
		documentUsers: Set<DocumentUser>
	}

	type DocumentUser {
		@pk id: Int = autoIncrement()
		document: Document
		userId: Int
		read: Boolean
		write: Boolean
	}
}
`

func snapshot(t *testing.T, src string) *ir.System {
	t.Helper()
	parsed, err := parser.Parse("model.lat", src)
	require.NoError(t, err)
	checked, err := typecheck.Check(parsed)
	require.NoError(t, err)
	return ir.Snapshot(checked)
}

func TestSnapshot_PrimitiveSlotsAreStable(t *testing.T) {
	sys := snapshot(t, documentModel)

	require.Greater(t, len(sys.Types.Slots), 16)
	assert.Equal(t, "Boolean", sys.Types.Slots[0].Primitive)
	assert.Equal(t, "Int", sys.Types.Slots[1].Primitive)
	assert.Equal(t, "String", sys.Types.Slots[4].Primitive)
	assert.Equal(t, "Operation", sys.Types.Slots[15].Primitive)

	// User declarations follow the primitive block.
	auth := sys.Types.Slot("AuthContext")
	require.NotNil(t, auth)
	assert.Equal(t, ir.KindComposite, auth.Kind)
	assert.True(t, auth.Composite.IsContext())
}

func TestSnapshot_AccessRules(t *testing.T) {
	sys := snapshot(t, documentModel)

	doc := sys.Types.Slot("Docs.Document").Composite
	require.NotNil(t, doc.Access)
	require.NotNil(t, doc.Access.Query)
	assert.Equal(t,
		`(AuthContext.role == "admin") || self.documentUsers.some(du => du.read)`,
		doc.Access.Query.String())

	// create/update/delete fall back to the generic mutation rule.
	require.NotNil(t, doc.Access.Mutation)
	assert.Same(t, doc.Access.Mutation, doc.Access.Create)
	assert.Same(t, doc.Access.Mutation, doc.Access.Delete)

	// DocumentUser has no access annotation at all.
	assert.Nil(t, sys.Types.Slot("Docs.DocumentUser").Composite.Access)
}

func TestSnapshot_FieldsAndDefaults(t *testing.T) {
	sys := snapshot(t, documentModel)

	doc := sys.Types.Slot("Docs.Document").Composite
	id := doc.FieldByName("id")
	require.NotNil(t, id)
	assert.True(t, id.Pk)
	require.NotNil(t, id.Default)
	assert.Equal(t, "autoIncrement", id.Default.Function)

	users := doc.FieldByName("documentUsers")
	require.NotNil(t, users)
	assert.Equal(t, ir.KindSet, users.Type.Kind)
	assert.Equal(t, ir.KindReference, users.Type.Elem.Kind)
	assert.Equal(t, "Docs.DocumentUser", users.Type.Elem.RefName)
}

func TestSnapshot_ModuleLayout(t *testing.T) {
	sys := snapshot(t, `
@script("notify.ts")
module Notify {
	export query pending(limit: Int): Int

	@around("mutation *")
	interceptor audit(@inject op: Operation)
}
`)
	require.Len(t, sys.Modules, 1)
	mod := sys.Modules[0]
	assert.Equal(t, "script", mod.Subsystem)
	assert.Equal(t, "notify.ts", mod.Script)
	require.Len(t, mod.Methods, 1)
	assert.Equal(t, "query", mod.Methods[0].Kind)
	assert.True(t, mod.Methods[0].Exported)
	require.Len(t, mod.Interceptors, 1)
	assert.Equal(t, "around", mod.Interceptors[0].Timing)
	assert.Equal(t, "mutation *", mod.Interceptors[0].Pattern)
}

// TestSnapshot_Deterministic builds the same source twice and expects
// byte-identical serialized artifacts.
func TestSnapshot_Deterministic(t *testing.T) {
	first := snapshot(t, documentModel)
	second := snapshot(t, documentModel)

	firstYaml, err := yaml.Marshal(first)
	require.NoError(t, err)
	secondYaml, err := yaml.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstYaml, secondYaml)

	var firstPack, secondPack bytes.Buffer
	require.NoError(t, ir.EncodeArtifact(&firstPack, first))
	require.NoError(t, ir.EncodeArtifact(&secondPack, second))
	assert.Equal(t, firstPack.Bytes(), secondPack.Bytes())
}

func TestArtifactRoundtrip(t *testing.T) {
	sys := snapshot(t, documentModel)

	var buf bytes.Buffer
	require.NoError(t, ir.EncodeArtifact(&buf, sys))

	decoded, err := ir.DecodeArtifact(&buf)
	require.NoError(t, err)

	want, err := yaml.Marshal(sys)
	require.NoError(t, err)
	got, err := yaml.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestDecodeArtifact_RejectsForeignBytes(t *testing.T) {
	_, err := ir.DecodeArtifact(bytes.NewReader([]byte("not msgpack at all")))
	assert.Error(t, err)
}

func TestExprString_Precedence(t *testing.T) {
	sys := snapshot(t, `
context C {
	@jwt a: Boolean
	@jwt b: Boolean
	@jwt c: Boolean
}

@database
module M {
	@access(C.a || C.b && !C.c)
	type T {
		@pk id: Int = autoIncrement()
	}
}
`)
	rule := sys.Types.Slot("M.T").Composite.Access.Query
	// && binds tighter than ||, ! tighter than both.
	assert.Equal(t, "C.a || (C.b && (!C.c))", rule.String())
}
