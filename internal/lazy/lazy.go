// Package lazy provides a compute-once value cell that can be overridden.
//
// A Value starts unset. The first successful Get stores the computed result;
// later calls return it without calling the compute function again. Set fixes
// the value regardless of state. Failed computations are not stored, so the
// next Get retries.
package lazy

import "sync"

type state int

const (
	unset state = iota
	computed
	overridden
)

// Value is a memoized value of type T. The zero value is not usable; create
// cells with By.
type Value[T any] struct {
	mu      sync.Mutex
	state   state
	value   T
	compute func() (T, error)
}

// By returns an unset cell that computes its value with fn on first access.
func By[T any](fn func() (T, error)) *Value[T] {
	return &Value[T]{compute: fn}
}

// Get returns the cached value, computing it first if the cell is unset.
// Holding the lock across the computation keeps concurrent callers from
// computing twice.
func (v *Value[T]) Get() (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state != unset {
		return v.value, nil
	}

	val, err := v.compute()
	if err != nil {
		var zero T
		return zero, err
	}
	v.value = val
	v.state = computed
	return val, nil
}

// Set replaces the value with a fixed one. Subsequent Get calls return val and
// never invoke the compute function.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = val
	v.state = overridden
}

// Reset discards any cached or overridden value so the next Get recomputes.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.value = zero
	v.state = unset
}

// IsOverridden reports whether the value was fixed by Set.
func (v *Value[T]) IsOverridden() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == overridden
}

// IsComputed reports whether Get has stored a computed value.
func (v *Value[T]) IsComputed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == computed
}
