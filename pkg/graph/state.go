package graph

import (
	"fmt"
	"maps"
)

// ValueKind tags the variant held by a StateValue.
type ValueKind int

const (
	KindFloat ValueKind = iota + 1
	KindChar
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// StateValue is one tagged entry of a node's state.
type StateValue struct {
	kind ValueKind
	f    float64
	c    rune
	s    string
}

// Float returns a numeric state value.
func Float(v float64) StateValue { return StateValue{kind: KindFloat, f: v} }

// Char returns a single-character state value.
func Char(v rune) StateValue { return StateValue{kind: KindChar, c: v} }

// String returns a text state value.
func String(v string) StateValue { return StateValue{kind: KindString, s: v} }

// Kind reports which variant v holds. The zero StateValue has kind 0.
func (v StateValue) Kind() ValueKind { return v.kind }

// Any returns the held value as float64, rune or string.
func (v StateValue) Any() any {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindChar:
		return v.c
	case KindString:
		return v.s
	}
	return nil
}

func (v StateValue) String() string {
	switch v.kind {
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindChar:
		return string(v.c)
	case KindString:
		return fmt.Sprintf("%q", v.s)
	}
	return "<none>"
}

// State is a node's mutable named values.
type State map[string]StateValue

// Float returns the numeric value stored under name. It is false when name
// is missing or holds another kind.
func (s State) Float(name string) (float64, bool) {
	v, ok := s[name]
	if !ok || v.kind != KindFloat {
		return 0, false
	}
	return v.f, true
}

// Char returns the character stored under name.
func (s State) Char(name string) (rune, bool) {
	v, ok := s[name]
	if !ok || v.kind != KindChar {
		return 0, false
	}
	return v.c, true
}

// String returns the text stored under name.
func (s State) String(name string) (string, bool) {
	v, ok := s[name]
	if !ok || v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// SetFloat overwrites an existing numeric entry. It reports false and
// leaves s untouched when name is missing or holds another kind.
func (s State) SetFloat(name string, v float64) bool {
	return s.set(name, Float(v))
}

// SetChar overwrites an existing character entry.
func (s State) SetChar(name string, v rune) bool {
	return s.set(name, Char(v))
}

// SetString overwrites an existing text entry.
func (s State) SetString(name string, v string) bool {
	return s.set(name, String(v))
}

func (s State) set(name string, v StateValue) bool {
	old, ok := s[name]
	if !ok || old.kind != v.kind {
		return false
	}
	s[name] = v
	return true
}

// Put stores v under name regardless of what was there before.
func (s State) Put(name string, v StateValue) {
	s[name] = v
}

// Kind returns the kind stored under name, telling a missing key apart
// from a kind mismatch.
func (s State) Kind(name string) (ValueKind, bool) {
	v, ok := s[name]
	return v.kind, ok
}

// Clone returns an independent copy. Cloning a nil State yields an empty one.
func (s State) Clone() State {
	out := make(State, len(s))
	maps.Copy(out, s)
	return out
}
