package core

import (
	"reflect"
	"sort"
)

// Fields is the field-container capability.  State containers,
// character state, and host-supplied custom objects all satisfy it,
// and the engine manipulates all of them only through this interface.
//
// Get returns nil for a missing key; no Fields operation fails for a
// missing key.
type Fields interface {
	Get(key string) Value
	Set(key string, v Value)
	Exists(key string) bool
	Keys() []string
}

// OrderedFields is the engine-owned Fields backing: an associative
// map that remembers key insertion order.
type OrderedFields struct {
	keys []string
	vals map[string]Value
}

// NewOrderedFields makes an empty OrderedFields.
func NewOrderedFields() *OrderedFields {
	return &OrderedFields{
		vals: make(map[string]Value, 4),
	}
}

func (f *OrderedFields) Get(key string) Value {
	return f.vals[key]
}

func (f *OrderedFields) Set(key string, v Value) {
	if _, have := f.vals[key]; !have {
		f.keys = append(f.keys, key)
	}
	f.vals[key] = v
}

func (f *OrderedFields) Exists(key string) bool {
	_, have := f.vals[key]
	return have
}

func (f *OrderedFields) Keys() []string {
	acc := make([]string, len(f.keys))
	copy(acc, f.keys)
	return acc
}

// ReflectFields adapts a pointer to a plain struct as a Fields, using
// the struct's exported field names as keys.  Hosts can use it to
// back script-visible state with native data objects without writing
// a Fields implementation by hand.
//
// Numeric struct fields are exposed as numbers; Get of a key that
// isn't an exported field returns nil, and Set of such a key is a
// no-op, consistent with the Fields contract.
type ReflectFields struct {
	v reflect.Value // the struct (not the pointer)
}

// NewReflectFields wraps ptr, which must be a non-nil pointer to a
// struct.
func NewReflectFields(ptr interface{}) *ReflectFields {
	v := reflect.ValueOf(ptr)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return &ReflectFields{v: v}
}

func (f *ReflectFields) field(key string) (reflect.Value, bool) {
	if f.v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	fv := f.v.FieldByName(key)
	if !fv.IsValid() || !fv.CanInterface() {
		return reflect.Value{}, false
	}
	return fv, true
}

func (f *ReflectFields) Get(key string) Value {
	fv, have := f.field(key)
	if !have {
		return nil
	}
	switch fv.Kind() {
	case reflect.Bool:
		return fv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(fv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(fv.Uint())
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	case reflect.String:
		return fv.String()
	}
	if x, is := fv.Interface().(Value); is {
		return x
	}
	return nil
}

func (f *ReflectFields) Set(key string, v Value) {
	fv, have := f.field(key)
	if !have || !fv.CanSet() {
		return
	}
	switch fv.Kind() {
	case reflect.Bool:
		if b, is := v.(bool); is {
			fv.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, is := v.(float64); is {
			fv.SetInt(int64(n))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, is := v.(float64); is && 0 <= n {
			fv.SetUint(uint64(n))
		}
	case reflect.Float32, reflect.Float64:
		if n, is := v.(float64); is {
			fv.SetFloat(n)
		}
	case reflect.String:
		if s, is := v.(string); is {
			fv.SetString(s)
		}
	default:
		x := reflect.ValueOf(v)
		if x.IsValid() && x.Type().AssignableTo(fv.Type()) {
			fv.Set(x)
		}
	}
}

func (f *ReflectFields) Exists(key string) bool {
	_, have := f.field(key)
	return have
}

func (f *ReflectFields) Keys() []string {
	if f.v.Kind() != reflect.Struct {
		return nil
	}
	t := f.v.Type()
	acc := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		acc = append(acc, sf.Name)
	}
	sort.Strings(acc)
	return acc
}
