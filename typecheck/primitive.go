package typecheck

import "github.com/latticeql/lattice/arena"

// PrimitiveKind enumerates the built-in scalar types. The declaration
// order here is the seeding order of the type arena, so int(kind) is the
// kind's stable arena slot.
type PrimitiveKind int

const (
	KindBoolean PrimitiveKind = iota
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindLocalTime
	KindLocalDateTime
	KindLocalDate
	KindInstant
	KindJson
	KindBlob
	KindUuid
	KindVector
	// KindLattice and KindLatticePriv are platform-injected marker types;
	// they cannot be named by user field declarations but participate in
	// context-source annotations.
	KindLattice
	KindLatticePriv
	// KindOperation is the interception marker type taken by interceptor
	// arguments.
	KindOperation
)

var primitiveNames = [...]string{
	KindBoolean:       "Boolean",
	KindInt:           "Int",
	KindFloat:         "Float",
	KindDecimal:       "Decimal",
	KindString:        "String",
	KindLocalTime:     "LocalTime",
	KindLocalDateTime: "LocalDateTime",
	KindLocalDate:     "LocalDate",
	KindInstant:       "Instant",
	KindJson:          "Json",
	KindBlob:          "Blob",
	KindUuid:          "Uuid",
	KindVector:        "Vector",
	KindLattice:       "Lattice",
	KindLatticePriv:   "LatticePriv",
	KindOperation:     "Operation",
}

// String returns the primitive's source-language name.
func (k PrimitiveKind) String() string {
	if k < 0 || int(k) >= len(primitiveNames) {
		return "Unknown"
	}
	return primitiveNames[k]
}

var primitiveByName = func() map[string]PrimitiveKind {
	m := make(map[string]PrimitiveKind, len(primitiveNames))
	for k, name := range primitiveNames {
		m[name] = PrimitiveKind(k)
	}
	return m
}()

// PrimitiveIndex returns the arena index of a built-in kind. Primitives
// occupy the first slots of every type arena in declaration order, so the
// index needs no name lookup.
func PrimitiveIndex(k PrimitiveKind) arena.Index {
	return arena.Index{Slot: int(k), Gen: 1}
}

// seedPrimitives registers every built-in kind, in order, into a fresh
// arena.
func seedPrimitives(env *arena.Arena[Type]) {
	for k := range primitiveNames {
		kind := PrimitiveKind(k)
		env.Add(kind.String(), Primitive{Kind: kind})
	}
}

func isNumeric(k PrimitiveKind) bool {
	return k == KindInt || k == KindFloat || k == KindDecimal
}

func isTemporal(k PrimitiveKind) bool {
	switch k {
	case KindLocalTime, KindLocalDateTime, KindLocalDate, KindInstant:
		return true
	}
	return false
}

// isOrdered reports whether < <= > >= apply to the kind.
func isOrdered(k PrimitiveKind) bool {
	return isNumeric(k) || isTemporal(k) || k == KindString
}
