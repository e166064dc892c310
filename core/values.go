package core

import (
	"strconv"
	"strings"
)

// Value is any runtime value.  The permitted dynamic types are:
//
//	nil          null
//	bool         boolean
//	float64      number
//	string       string
//	List         array (see list.go)
//	Fields       field container (see fields.go)
//	*Character   character reference
//	*FuncRef     function reference
//
// Anything else is a host bug and is reported as kind "opaque".
type Value interface{}

// FuncRef is a resolved reference to a registered function.
type FuncRef struct {
	Name string
	F    Func
}

// KindOf names the kind of a Value for error messages.
func KindOf(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case List:
		return "array"
	case *Character:
		return "character"
	case Fields:
		return "fields"
	case *FuncRef:
		return "function"
	}
	return "opaque"
}

// Equal reports deep structural equality.
//
// Arrays are equal iff they have the same length and pairwise-equal
// elements, in order.  Field containers are equal iff they expose the
// same key set with pairwise-equal values; key order does not matter.
// Characters compare by identity, functions by name.  Everything else
// compares by value.
func Equal(a, b Value) bool {
	switch va := a.(type) {
	case nil:
		return b == nil
	case bool:
		vb, is := b.(bool)
		return is && va == vb
	case float64:
		vb, is := b.(float64)
		return is && va == vb
	case string:
		vb, is := b.(string)
		return is && va == vb
	case List:
		vb, is := b.(List)
		if !is || va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !Equal(va.At(i), vb.At(i)) {
				return false
			}
		}
		return true
	case *Character:
		vb, is := b.(*Character)
		return is && va == vb
	case Fields:
		vb, is := b.(Fields)
		if !is {
			return false
		}
		ka, kb := va.Keys(), vb.Keys()
		if len(ka) != len(kb) {
			return false
		}
		for _, k := range ka {
			if !vb.Exists(k) || !Equal(va.Get(k), vb.Get(k)) {
				return false
			}
		}
		return true
	case *FuncRef:
		vb, is := b.(*FuncRef)
		return is && va.Name == vb.Name
	}
	return false
}

// Truthy implements the engine's truthiness rule: the empty string
// and the empty array are falsy, non-empty ones truthy, and any other
// value is truthy only when it equals boolean true.
func Truthy(v Value) bool {
	switch vv := v.(type) {
	case string:
		return vv != ""
	case List:
		return 0 < vv.Len()
	}
	return Equal(v, true)
}

// ToString renders a Value as the string form used by interpolation
// and by "+" concatenation.
func ToString(v Value) string {
	switch vv := v.(type) {
	case nil:
		return "null"
	case bool:
		if vv {
			return "true"
		}
		return "false"
	case float64:
		return FormatNumber(vv)
	case string:
		return vv
	case List:
		var b strings.Builder
		b.WriteByte('[')
		for i := 0; i < vv.Len(); i++ {
			if 0 < i {
				b.WriteString(", ")
			}
			b.WriteString(ToString(vv.At(i)))
		}
		b.WriteByte(']')
		return b.String()
	case *Character:
		return vv.Name
	case Fields:
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range vv.Keys() {
			if 0 < i {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(ToString(vv.Get(k)))
		}
		b.WriteByte('}')
		return b.String()
	case *FuncRef:
		return vv.Name
	}
	return "?"
}

// FormatNumber renders a number without a trailing ".0" for integral
// values, so that interpolating 1 gives "1" and not "1.000000".
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
