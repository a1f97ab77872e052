// Package arena provides the generational-index arena backing the type and
// module registries. Entities are referenced by stable Index values rather
// than pointers, which makes mutually-recursive composite types expressible
// without shared-mutable cycles and keeps the whole registry serializable.
//
// Composite slots have a two-phase lifecycle: a skeleton is allocated and
// named before its fields are resolved, and Replace later fills the fields
// in place. An Index captured during phase 1 dereferences to the final
// value after phase 2 without re-resolving.
package arena

import (
	"errors"
	"fmt"
)

// ErrStaleReference is returned when an Index pins a generation that no
// longer matches its slot. A stale reference is always an error, never a
// read of unrelated data.
var ErrStaleReference = errors.New("arena: stale reference")

// Index identifies a slot. Gen zero means "current generation": the
// reference follows in-place replacements. Slots are created at
// generation 1, so a zero Gen never pins a real generation.
type Index struct {
	Slot int    `json:"slot" yaml:"slot" msgpack:"slot"`
	Gen  uint64 `json:"gen,omitempty" yaml:"gen,omitempty" msgpack:"gen,omitempty"`
}

// Pinned reports whether the index pins a specific generation.
func (ix Index) Pinned() bool { return ix.Gen != 0 }

// String returns the index in slot@gen form.
func (ix Index) String() string {
	if !ix.Pinned() {
		return fmt.Sprintf("#%d", ix.Slot)
	}
	return fmt.Sprintf("#%d@%d", ix.Slot, ix.Gen)
}

type slot[T any] struct {
	value    T
	gen      uint64
	occupied bool
}

// Arena is an owning, name-mapped slot vector. The zero value is not
// usable; construct with New.
type Arena[T any] struct {
	slots []slot[T]
	names map[string]int
	// order keeps the name registration order so that iteration and
	// serialization are deterministic given deterministic input.
	order []string
}

// New returns an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{names: make(map[string]int)}
}

// Len returns the number of allocated slots, including superseded ones.
func (a *Arena[T]) Len() int { return len(a.slots) }

// Allocate adds an anonymous value and returns its index pinned to the
// new slot's generation.
func (a *Arena[T]) Allocate(v T) Index {
	a.slots = append(a.slots, slot[T]{value: v, gen: 1, occupied: true})
	return Index{Slot: len(a.slots) - 1, Gen: 1}
}

// Add allocates a value and registers name for it. Registering a name
// twice returns the existing index and false.
func (a *Arena[T]) Add(name string, v T) (Index, bool) {
	if i, ok := a.names[name]; ok {
		return Index{Slot: i, Gen: a.slots[i].gen}, false
	}
	ix := a.Allocate(v)
	a.names[name] = ix.Slot
	a.order = append(a.order, name)
	return ix, true
}

// Get dereferences ix. It returns ok=false when the slot does not exist,
// is unoccupied, or the pinned generation is stale.
func (a *Arena[T]) Get(ix Index) (T, bool) {
	var zero T
	if ix.Slot < 0 || ix.Slot >= len(a.slots) {
		return zero, false
	}
	s := a.slots[ix.Slot]
	if !s.occupied {
		return zero, false
	}
	if ix.Pinned() && ix.Gen != s.gen {
		return zero, false
	}
	return s.value, true
}

// Replace rewrites the slot's value in place, keeping its generation, so
// indices captured before the replacement still dereference to the new
// value. This is the phase-2 fill of the declare-then-resolve discipline.
// A pinned index must match the slot's current generation.
func (a *Arena[T]) Replace(ix Index, v T) error {
	if ix.Slot < 0 || ix.Slot >= len(a.slots) || !a.slots[ix.Slot].occupied {
		return fmt.Errorf("arena: replace of unallocated slot %s", ix)
	}
	if ix.Pinned() && ix.Gen != a.slots[ix.Slot].gen {
		return fmt.Errorf("%w: slot %d is at generation %d, reference pins %d",
			ErrStaleReference, ix.Slot, a.slots[ix.Slot].gen, ix.Gen)
	}
	a.slots[ix.Slot].value = v
	return nil
}

// Supersede replaces the slot's value under a new generation, invalidating
// every pinned index captured before the call. It returns the new index.
func (a *Arena[T]) Supersede(ix Index, v T) (Index, error) {
	if ix.Slot < 0 || ix.Slot >= len(a.slots) || !a.slots[ix.Slot].occupied {
		return Index{}, fmt.Errorf("arena: supersede of unallocated slot %s", ix)
	}
	if ix.Pinned() && ix.Gen != a.slots[ix.Slot].gen {
		return Index{}, fmt.Errorf("%w: slot %d is at generation %d, reference pins %d",
			ErrStaleReference, ix.Slot, a.slots[ix.Slot].gen, ix.Gen)
	}
	a.slots[ix.Slot].value = v
	a.slots[ix.Slot].gen++
	return Index{Slot: ix.Slot, Gen: a.slots[ix.Slot].gen}, nil
}

// Alias registers an additional lookup name for an existing slot. It
// reports whether the name was free; an already-registered name is left
// untouched, so the first registration wins. Aliases resolve through
// NameLookup but do not appear in Names or Values.
func (a *Arena[T]) Alias(name string, ix Index) bool {
	if _, taken := a.names[name]; taken {
		return false
	}
	if ix.Slot < 0 || ix.Slot >= len(a.slots) || !a.slots[ix.Slot].occupied {
		return false
	}
	a.names[name] = ix.Slot
	return true
}

// NameLookup resolves a registered name to its index, pinned to the
// slot's current generation.
func (a *Arena[T]) NameLookup(name string) (Index, bool) {
	i, ok := a.names[name]
	if !ok {
		return Index{}, false
	}
	return Index{Slot: i, Gen: a.slots[i].gen}, true
}

// GetByName dereferences a registered name.
func (a *Arena[T]) GetByName(name string) (T, bool) {
	var zero T
	ix, ok := a.NameLookup(name)
	if !ok {
		return zero, false
	}
	return a.Get(ix)
}

// Names returns the registered names in registration order.
func (a *Arena[T]) Names() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Values calls fn for every occupied slot in slot order. Anonymous slots
// are visited with an empty name.
func (a *Arena[T]) Values(fn func(name string, ix Index, v T)) {
	byslot := make(map[int]string, len(a.order))
	for _, name := range a.order {
		byslot[a.names[name]] = name
	}
	for i, s := range a.slots {
		if !s.occupied {
			continue
		}
		fn(byslot[i], Index{Slot: i, Gen: s.gen}, s.value)
	}
}
