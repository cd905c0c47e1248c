// Package arrays provides contiguous growable storage for simulation state.
//
// Constraints and spatial structures address particles by index, never by
// pointer, so storage may be reallocated between steps without invalidating
// references.
package arrays

import "github.com/go-gl/mathgl/mgl64"

// Array is a dynamically sized array with amortized doubling growth.
type Array[T any] struct {
	data []T
}

// New creates an array of n zero values.
func New[T any](n int) *Array[T] {
	return &Array[T]{data: make([]T, n)}
}

// FromSlice wraps an existing slice without copying.
func FromSlice[T any](s []T) *Array[T] {
	return &Array[T]{data: s}
}

// Len returns the number of elements.
func (a *Array[T]) Len() int { return len(a.data) }

// Cap returns the current capacity.
func (a *Array[T]) Cap() int { return cap(a.data) }

// At returns the element at index i.
func (a *Array[T]) At(i int) T { return a.data[i] }

// Ptr returns a pointer to the element at index i.
func (a *Array[T]) Ptr(i int) *T { return &a.data[i] }

// Set stores v at index i.
func (a *Array[T]) Set(i int, v T) { a.data[i] = v }

// Data returns the backing slice. The view is invalidated by growth.
func (a *Array[T]) Data() []T { return a.data }

// Resize changes the length to n, preserving existing elements. New
// elements are zero valued. Capacity at least doubles when growing past it.
func (a *Array[T]) Resize(n int) {
	if n <= cap(a.data) {
		// Zero the tail when shrinking then re-growing within capacity.
		if n > len(a.data) {
			var zero T
			grown := a.data[len(a.data):n]
			for i := range grown {
				grown[i] = zero
			}
		}
		a.data = a.data[:n]
		return
	}
	newCap := cap(a.data) * 2
	if newCap < n {
		newCap = n
	}
	grown := make([]T, n, newCap)
	copy(grown, a.data)
	a.data = grown
}

// Reserve grows capacity to at least n without changing the length.
func (a *Array[T]) Reserve(n int) {
	if n <= cap(a.data) {
		return
	}
	grown := make([]T, len(a.data), n)
	copy(grown, a.data)
	a.data = grown
}

// Append adds values to the end of the array.
func (a *Array[T]) Append(vs ...T) {
	if len(a.data)+len(vs) > cap(a.data) {
		a.Reserve(max(cap(a.data)*2, len(a.data)+len(vs)))
	}
	a.data = append(a.data, vs...)
}

// Fill sets every element to v.
func (a *Array[T]) Fill(v T) {
	for i := range a.data {
		a.data[i] = v
	}
}

// Clone returns a deep copy.
func (a *Array[T]) Clone() *Array[T] {
	c := make([]T, len(a.data))
	copy(c, a.data)
	return &Array[T]{data: c}
}

// Scalars is a growable array of float64 values.
type Scalars = Array[float64]

// Vec3s is a growable array of 3-vectors.
type Vec3s = Array[mgl64.Vec3]

// Mat3s is a growable array of 3x3 matrices.
type Mat3s = Array[mgl64.Mat3]
