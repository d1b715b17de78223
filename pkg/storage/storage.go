// Package storage provides the entity arena used by the node graph: a dense
// container that hands out stable, recyclable identifiers with O(1) insert,
// remove and lookup.
package storage

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// ErrNotLive is wrapped by the panic value raised when an identifier that is
// not currently live is dereferenced. Using a removed or foreign ID is a
// caller bug, not a recoverable condition.
var ErrNotLive = errors.New("storage: identifier is not live")

// ID names an entry in a Storage. The low 32 bits hold the slot index and
// the high 32 bits the slot generation. Generations start at 1, so the zero
// ID never names a live entry.
type ID uint64

func newID(index, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index. Slots are reused after removal.
func (id ID) Index() uint32 { return uint32(id) }

// Generation returns the slot generation the ID was issued for.
func (id ID) Generation() uint32 { return uint32(id >> 32) }

// IsZero reports whether id is the zero ID ("no identifier").
func (id ID) IsZero() bool { return id == 0 }

func (id ID) String() string {
	if id.IsZero() {
		return "#none"
	}
	return fmt.Sprintf("#%d.%d", id.Index(), id.Generation())
}

// MarshalText encodes id in its String form, which survives JSON consumers
// that cannot hold a full uint64.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the String form of an ID.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseID parses "#index.generation" or "#none".
func ParseID(s string) (ID, error) {
	if s == "#none" || s == "" {
		return 0, nil
	}
	idx, gen, ok := strings.Cut(strings.TrimPrefix(s, "#"), ".")
	if !ok || !strings.HasPrefix(s, "#") {
		return 0, fmt.Errorf("storage: malformed id %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("storage: malformed id %q: %w", s, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return 0, fmt.Errorf("storage: malformed id %q", s)
	}
	return newID(uint32(i), uint32(g)), nil
}

// slot tracks one index: its current generation and, while live, the
// position of its entry in the dense sequences.
type slot struct {
	generation uint32
	pos        int
	live       bool
}

// Storage is a generic arena. Entries live in a dense slice; removal swaps
// the last entry into the hole so iteration never sees gaps.
//
// The zero value is ready to use. Storage is not safe for concurrent use.
type Storage[T any] struct {
	entries []T
	ids     []ID
	slots   []slot
	free    []uint32
}

// New returns an empty Storage.
func New[T any]() *Storage[T] {
	return &Storage[T]{}
}

func (s *Storage[T]) nextID() ID {
	if n := len(s.free); n > 0 {
		index := s.free[n-1]
		s.free = s.free[:n-1]
		return newID(index, s.slots[index].generation)
	}
	index := uint32(len(s.slots))
	s.slots = append(s.slots, slot{generation: 1})
	return newID(index, 1)
}

// Create inserts v and returns a pointer to the stored value together with
// its identifier. The identifier is never one that is currently live. The
// pointer stays valid until the next Create or Remove.
func (s *Storage[T]) Create(v T) (*T, ID) {
	id := s.nextID()
	s.entries = append(s.entries, v)
	s.ids = append(s.ids, id)
	pos := len(s.entries) - 1
	sl := &s.slots[id.Index()]
	sl.pos = pos
	sl.live = true
	return &s.entries[pos], id
}

// position returns the dense position of id, or -1 when id is not live.
func (s *Storage[T]) position(id ID) int {
	index := id.Index()
	if id.IsZero() || int(index) >= len(s.slots) {
		return -1
	}
	sl := s.slots[index]
	if !sl.live || sl.generation != id.Generation() {
		return -1
	}
	return sl.pos
}

func (s *Storage[T]) mustPosition(id ID) int {
	pos := s.position(id)
	if pos < 0 {
		panic(fmt.Errorf("%w: %s", ErrNotLive, id))
	}
	return pos
}

// Remove deletes the entry named by id in O(1) and recycles its slot.
// It panics if id is not live.
func (s *Storage[T]) Remove(id ID) {
	pos := s.mustPosition(id)
	last := len(s.entries) - 1

	if pos != last {
		moved := s.ids[last]
		s.entries[pos] = s.entries[last]
		s.ids[pos] = moved
		s.slots[moved.Index()].pos = pos
	}

	var zero T
	s.entries[last] = zero
	s.entries = s.entries[:last]
	s.ids = s.ids[:last]

	sl := &s.slots[id.Index()]
	sl.live = false
	sl.generation++
	if sl.generation == 0 {
		sl.generation = 1
	}
	s.free = append(s.free, id.Index())
}

// Get returns the entry named by id. The returned pointer may be used to
// mutate the entry in place and stays valid until the next Create or
// Remove. It panics if id is not live.
func (s *Storage[T]) Get(id ID) *T {
	return &s.entries[s.mustPosition(id)]
}

// Lookup is the non-panicking form of Get.
func (s *Storage[T]) Lookup(id ID) (*T, bool) {
	pos := s.position(id)
	if pos < 0 {
		return nil, false
	}
	return &s.entries[pos], true
}

// Exists reports whether id names a live entry.
func (s *Storage[T]) Exists(id ID) bool {
	return s.position(id) >= 0
}

// Len returns the number of live entries.
func (s *Storage[T]) Len() int {
	return len(s.entries)
}

// IDs returns a copy of the live identifiers in arena order.
func (s *Storage[T]) IDs() []ID {
	out := make([]ID, len(s.ids))
	copy(out, s.ids)
	return out
}

// All iterates live entries paired with their identifiers in arena order.
// The order is whatever swap-removal left and carries no meaning. The arena
// must not be mutated during iteration.
func (s *Storage[T]) All() iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		for i := range s.entries {
			if !yield(s.ids[i], &s.entries[i]) {
				return
			}
		}
	}
}

// Values iterates live entries in arena order.
func (s *Storage[T]) Values() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		for i := range s.entries {
			if !yield(&s.entries[i]) {
				return
			}
		}
	}
}
