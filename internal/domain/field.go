package domain

import "fmt"

// Field is an optional record slot. The zero value is absent: the source
// never carried the field. A declared field is either a value or missing,
// where missing means the source carried the field but with no data.
type Field[T any] struct {
	value    T
	valid    bool
	declared bool
}

// Value returns a declared field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{value: v, valid: true, declared: true}
}

// Missing returns a declared field with no data.
func Missing[T any]() Field[T] {
	return Field[T]{declared: true}
}

// Declared reports whether the source carried the field at all.
func (f Field[T]) Declared() bool { return f.declared }

// Valid reports whether the field holds data.
func (f Field[T]) Valid() bool { return f.valid }

// Get returns the value and whether it is valid.
func (f Field[T]) Get() (T, bool) { return f.value, f.valid }

// Or returns the value, or def when the field holds no data.
func (f Field[T]) Or(def T) T {
	if !f.valid {
		return def
	}
	return f.value
}

func (f Field[T]) String() string {
	switch {
	case f.valid:
		return fmt.Sprint(f.value)
	case f.declared:
		return "<missing>"
	default:
		return "<absent>"
	}
}

// mapField applies fn to a valid value and keeps the declared state otherwise.
func mapField[T, U any](f Field[T], fn func(T) U) Field[U] {
	if v, ok := f.Get(); ok {
		return Value(fn(v))
	}
	if f.Declared() {
		return Missing[U]()
	}
	return Field[U]{}
}
