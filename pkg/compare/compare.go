// Package compare provides the value comparison strategies used by change
// detection throughout the engine.
//
// Strict behaves like an identity check: comparable values use ==, while
// slices, maps and funcs compare by reference. Shallow goes one level deeper
// and compares the elements of slices, arrays, maps, structs and pointed-to
// structs with Strict.
package compare

import (
	"reflect"
	"time"
)

// Func reports whether a and b should be considered equal.
type Func func(a, b any) bool

// Strict compares two values by identity.
func Strict(a, b any) bool {
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}

	switch ta.Kind() {
	case reflect.Slice:
		va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}

	if ta.Comparable() {
		return safeEqual(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// safeEqual guards against interface fields holding uncomparable values.
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return a == b
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Shallow compares the first level of two values.
func Shallow(a, b any) bool {
	if Strict(a, b) {
		return true
	}
	if isNil(a) || isNil(b) {
		return false
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice, reflect.Array:
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !Strict(va.Index(i).Interface(), vb.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !Strict(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	case reflect.Pointer:
		if va.Elem().Kind() == reflect.Struct {
			return Shallow(va.Elem().Interface(), vb.Elem().Interface())
		}
		return false
	case reflect.Struct:
		return shallowStruct(va, vb)
	}
	return false
}

func shallowStruct(va, vb reflect.Value) bool {
	for i := 0; i < va.NumField(); i++ {
		fa, fb := va.Field(i), vb.Field(i)
		if !fa.CanInterface() {
			// unexported fields cannot be lifted; fall back to a deep check
			return reflect.DeepEqual(va.Interface(), vb.Interface())
		}
		if !Strict(fa.Interface(), fb.Interface()) {
			return false
		}
	}
	return true
}

// ByName resolves "strict" or "shallow" to the matching strategy.
func ByName(name string) (Func, bool) {
	switch name {
	case "", "strict":
		return Strict, true
	case "shallow":
		return Shallow, true
	}
	return nil, false
}

// Resolve returns fn, or fallback when fn is nil.
func Resolve(fn, fallback Func) Func {
	if fn != nil {
		return fn
	}
	if fallback != nil {
		return fallback
	}
	return Strict
}
