package typecheck_test

import (
	"testing"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/parser"
	"github.com/latticeql/lattice/typecheck"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, src string) (*typecheck.System, error) {
	t.Helper()
	sys, err := parser.Parse("model.lat", src)
	require.NoError(t, err)
	return typecheck.Check(sys)
}

func mustCheck(t *testing.T, src string) *typecheck.System {
	t.Helper()
	checked, err := check(t, src)
	require.NoError(t, err)
	return checked
}

func checkErr(t *testing.T, src string, kind lattice.ErrorKind) {
	t.Helper()
	_, err := check(t, src)
	require.Error(t, err)
	assert.True(t, lattice.IsKind(err, kind), "want kind %s, got: %v", kind, err)
}

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

func TestCheck_DocumentAccessChain(t *testing.T) {
	checked := mustCheck(t, documentModel)

	doc := checked.Composite("Docs.Document")
	require.NotNil(t, doc)
	assert.Equal(t, "Docs", doc.Module)
	require.NotNil(t, doc.FieldByName("documentUsers"))

	// The bare name resolves to the same slot as the qualified one.
	assert.Same(t, doc, checked.Composite("Document"))

	access := doc.Annotations.Get("access")
	require.NotNil(t, access)
	params, ok := access.Params.(*typecheck.MapParams)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"query", "mutation"}, params.Keys)
}

func TestCheck_ForwardReferenceAcrossModules(t *testing.T) {
	// Venue is declared after Concert and in a different module; the
	// fixpoint resolves both directions.
	checked := mustCheck(t, `
@database
module Events {
	type Concert {
		@pk id: Int = autoIncrement()
		venue: Places.Venue
	}
}

@database
module Places {
	type Venue {
		@pk id: Int = autoIncrement()
		concerts: Set<Events.Concert>
	}
}
`)
	concert := checked.Composite("Events.Concert")
	require.NotNil(t, concert)
	venue := concert.FieldByName("venue")
	require.NotNil(t, venue)
	assert.Equal(t, "Places.Venue", venue.Type.Typ().String())
}

func TestCheck_SameModuleNameShadowsOtherModule(t *testing.T) {
	checked := mustCheck(t, `
@database
module A {
	type Item {
		@pk id: Int = autoIncrement()
	}
	type Holder {
		@pk id: Int = autoIncrement()
		item: Item
	}
}

@database
module B {
	type Item {
		@pk id: Int = autoIncrement()
		label: String
	}
	type Holder {
		@pk id: Int = autoIncrement()
		item: Item
	}
}
`)
	holder := checked.Composite("B.Holder")
	require.NotNil(t, holder)
	assert.Equal(t, "B.Item", holder.FieldByName("item").Type.Typ().String())
}

func TestCheck_EnumDefault(t *testing.T) {
	checked := mustCheck(t, `
@database
module Music {
	enum Genre { metal, rock, jazz }

	type Concert {
		@pk id: Int = autoIncrement()
		genre: Genre = "metal"
	}
}
`)
	concert := checked.Composite("Music.Concert")
	require.NotNil(t, concert)
	assert.Equal(t, "Music.Genre", concert.FieldByName("genre").Type.Typ().String())
}

func TestCheck_Errors(t *testing.T) {
	t.Run("unresolved_type", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: Int = autoIncrement()
		x: Missing
	}
}
`, lattice.KindUnresolvedType)
	})

	t.Run("unknown_identifier_in_access", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(Nope.role == "admin")
	type T {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindUnknownIdentifier)
	})

	t.Run("unknown_field_in_chain", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(self.missing == 1)
	type T {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindUnknownIdentifier)
	})

	t.Run("set_field_needs_predicate", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(self.users.read)
	type T {
		@pk id: Int = autoIncrement()
		users: Set<U>
	}
	type U {
		@pk id: Int = autoIncrement()
		read: Boolean
	}
}
`, lattice.KindMissingHofOnSetField)
	})

	t.Run("non_boolean_predicate_body", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(self.users.some(u => u.id))
	type T {
		@pk id: Int = autoIncrement()
		users: Set<U>
	}
	type U {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindNonBooleanHofBody)
	})

	t.Run("select_through_primitive", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(self.content.length == 1)
	type T {
		@pk id: Int = autoIncrement()
		content: String
	}
}
`, lattice.KindSelectOnNonComposite)
	})

	t.Run("logical_operand_not_boolean", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(self.content && true)
	type T {
		@pk id: Int = autoIncrement()
		content: String
	}
}
`, lattice.KindTypeMismatch)
	})

	t.Run("relational_operand_mismatch", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	@access(self.content == 42)
	type T {
		@pk id: Int = autoIncrement()
		content: String
	}
}
`, lattice.KindTypeMismatch)
	})

	t.Run("self_in_field_access", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: Int = autoIncrement()
		@access(self.hidden == false) secret: String
		hidden: Boolean
	}
}
`, lattice.KindInvalidSelfUsage)
	})

	t.Run("duplicate_field", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: Int = autoIncrement()
		name: String
		name: Int
	}
}
`, lattice.KindDuplicateName)
	})

	t.Run("root_type_placement", func(t *testing.T) {
		checkErr(t, `
type Stray {
	@pk id: Int = autoIncrement()
}
`, lattice.KindPlacement)
	})

	t.Run("context_inside_module", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	context C {
		@jwt id: Int
	}
}
`, lattice.KindPlacement)
	})

	t.Run("module_without_subsystem", func(t *testing.T) {
		checkErr(t, `
module M {
	type T {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindAnnotation)
	})

	t.Run("pk_on_context_field", func(t *testing.T) {
		checkErr(t, `
context C {
	@pk @jwt id: Int
}
`, lattice.KindPrimaryKey)
	})

	t.Run("context_field_without_source", func(t *testing.T) {
		checkErr(t, `
context C {
	id: Int
}
`, lattice.KindAnnotation)
	})
}

func TestCheck_Defaults(t *testing.T) {
	t.Run("auto_increment_requires_int_pk", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: String = autoIncrement()
	}
}
`, lattice.KindIncompatibleDefaultValue)
	})

	t.Run("unknown_default_function", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: Int = sequence()
	}
}
`, lattice.KindIncompatibleDefaultValue)
	})

	t.Run("uuid_string_default_must_parse", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: Uuid = "not-a-uuid"
	}
}
`, lattice.KindIncompatibleDefaultValue)
	})

	t.Run("valid_defaults", func(t *testing.T) {
		mustCheck(t, `
@database
module M {
	type T {
		@pk id: Uuid = generateUuid()
		createdAt: Instant = now()
		count: Int = 0
		ratio: Float = 0.5
		active: Boolean = true
		label: String = "untitled"
		token: Uuid = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
		note: String? = null
	}
}
`)
	})

	t.Run("null_needs_optional", func(t *testing.T) {
		checkErr(t, `
@database
module M {
	type T {
		@pk id: Int = autoIncrement()
		note: String = null
	}
}
`, lattice.KindIncompatibleDefaultValue)
	})
}

func TestCheck_InOperator(t *testing.T) {
	mustCheck(t, `
context AuthContext {
	@jwt role: String
}

@database
module M {
	@access("admin" in [ "admin", "owner" ] && AuthContext.role in [ "admin" ])
	type T {
		@pk id: Int = autoIncrement()
	}
}
`)

	checkErr(t, `
context AuthContext {
	@jwt role: String
}

@database
module M {
	@access(AuthContext.role in [ 1, 2 ])
	type T {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindTypeMismatch)
}

func TestCheck_ContextConstraints(t *testing.T) {
	t.Run("nested_context_ok", func(t *testing.T) {
		mustCheck(t, `
context Inner {
	@jwt sub: String
}
context Outer {
	@jwt claims: Inner
}
`)
	})

	t.Run("context_referencing_persistable", func(t *testing.T) {
		checkErr(t, `
context C {
	@jwt doc: M.T
}

@database
module M {
	type T {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindTypeMismatch)
	})
}

func TestCheck_Methods(t *testing.T) {
	checked := mustCheck(t, `
context AuthContext {
	@jwt role: String
}

@script("auth.ts")
module Auth {
	@access(AuthContext.role == "admin")
	export query adminReport(limit: Int): String

	mutation rotateKeys(): Boolean

	@before("*")
	interceptor logAll(@inject op: Operation)
}
`)
	mod, ok := checked.Modules.GetByName("Auth")
	require.True(t, ok)
	require.Len(t, mod.Methods, 2)
	assert.True(t, mod.Methods[0].Exported)
	assert.Equal(t, "String", mod.Methods[0].ReturnType.Typ().String())
	require.Len(t, mod.Interceptors, 1)
	assert.Equal(t, "Operation", mod.Interceptors[0].Arguments[0].Type.Typ().String())
}

func TestCheck_InterceptorNeedsTiming(t *testing.T) {
	checkErr(t, `
@script("auth.ts")
module Auth {
	interceptor logAll(@inject op: Operation)
}
`, lattice.KindAnnotation)
}

func TestCheck_DatabaseModuleRejectsMethods(t *testing.T) {
	checkErr(t, `
@database
module M {
	type T {
		@pk id: Int = autoIncrement()
	}
	query extra(): Int
}
`, lattice.KindPlacement)
}

func TestCheck_DuplicateAnnotation(t *testing.T) {
	checkErr(t, `
@database
@database
module M {
	type T {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindAnnotation)
}

func TestCheck_TableAnnotationShapes(t *testing.T) {
	// @table takes either a bare name or the named schema/name/managed form.
	checked := mustCheck(t, `
@database
module Docs {
	@table(schema = "app", name = "documents")
	type Document {
		@pk id: Int = autoIncrement()
	}

	@table("document_users")
	type DocumentUser {
		@pk id: Int = autoIncrement()
	}
}
`)
	doc := checked.Composite("Docs.Document")
	require.NotNil(t, doc)
	table := doc.Annotations.Get("table")
	require.NotNil(t, table)
	params, ok := table.Params.(*typecheck.MapParams)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "schema"}, params.Keys)

	t.Run("unknown_key", func(t *testing.T) {
		checkErr(t, `
@database
module Docs {
	@table(catalog = "app")
	type Document {
		@pk id: Int = autoIncrement()
	}
}
`, lattice.KindAnnotation)
	})
}
