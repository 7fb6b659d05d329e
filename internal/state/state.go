// Package state holds the values stages hand forward to each other during a
// single review run.
//
// A [State] is append-only: every key is written at most once and is never
// removed. Stages never see the State itself, only a [View] restricted to the
// keys they declared as inputs.
package state

import (
	"errors"
	"fmt"
	"sort"
)

// Key names a value in the shared state.
type Key string

// Keys written during a run.
const (
	KeyChangeSet      Key = "change_set"
	KeyBaseClusters   Key = "base_clusters"
	KeyReviewedReview Key = "reviewed_review"
	KeyOutput         Key = "output"
)

// ClusterKey is the key holding the i-th parsed cluster.
func ClusterKey(i int) Key { return Key(fmt.Sprintf("cluster_%d", i)) }

// ReviewKey is the key holding the review of the i-th cluster.
func ReviewKey(i int) Key { return Key(fmt.Sprintf("review_%d", i)) }

// ErrKeyExists is returned when a key is written twice.
var ErrKeyExists = errors.New("state key already written")

// ErrNotVisible is returned by View lookups for keys outside the projection.
var ErrNotVisible = errors.New("state key not visible")

// State is the append-only store owned by the orchestrator. It is not safe for
// concurrent writers; only the orchestrator goroutine calls Put.
type State struct {
	values map[Key]any
	order  []Key
}

// New returns an empty State.
func New() *State {
	return &State{values: make(map[Key]any)}
}

// Put stores v under k. Writing an existing key fails and leaves the original
// value in place.
func (s *State) Put(k Key, v any) error {
	if _, ok := s.values[k]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, k)
	}
	s.values[k] = v
	s.order = append(s.order, k)
	return nil
}

// Has reports whether every key is present.
func (s *State) Has(keys ...Key) bool {
	for _, k := range keys {
		if _, ok := s.values[k]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the subset of keys that are not present, sorted.
func (s *State) Missing(keys ...Key) []Key {
	var out []Key
	for _, k := range keys {
		if _, ok := s.values[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Keys returns keys in write order.
func (s *State) Keys() []Key {
	return append([]Key(nil), s.order...)
}

// View returns a read-only projection exposing only keys. Keys not yet present
// are simply absent from the view.
func (s *State) View(keys ...Key) View {
	v := View{values: make(map[Key]any, len(keys))}
	for _, k := range keys {
		if val, ok := s.values[k]; ok {
			v.values[k] = val
		}
	}
	return v
}

// View is a read-only slice of a State.
type View struct {
	values map[Key]any
}

// Get returns the value for k if it is part of the view.
func (v View) Get(k Key) (any, bool) {
	val, ok := v.values[k]
	return val, ok
}

// Keys returns the visible keys, sorted.
func (v View) Keys() []Key {
	out := make([]Key, 0, len(v.values))
	for k := range v.values {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lookup returns the value for k typed as T.
func Lookup[T any](v View, k Key) (T, error) {
	var zero T
	raw, ok := v.values[k]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotVisible, k)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("state key %s holds %T, want %T", k, raw, zero)
	}
	return typed, nil
}
