package core

import (
	"testing"
)

func TestEqual(t *testing.T) {
	hero := &Character{Name: "Hero"}
	also := &Character{Name: "Hero"}

	fab := func(pairs ...interface{}) Fields {
		f := NewOrderedFields()
		for i := 0; i+1 < len(pairs); i += 2 {
			f.Set(pairs[i].(string), pairs[i+1])
		}
		return f
	}

	for _, tt := range []struct {
		name string
		a, b Value
		want bool
	}{
		{"nulls", nil, nil, true},
		{"null vs false", nil, false, false},
		{"numbers", float64(3), float64(3), true},
		{"number vs string", float64(3), "3", false},
		{"strings", "a", "a", true},
		{"arrays ordered", NewVector(float64(1), float64(2)), NewVector(float64(1), float64(2)), true},
		{"arrays reordered", NewVector(float64(1), float64(2)), NewVector(float64(2), float64(1)), false},
		{"arrays ragged", NewVector(float64(1)), NewVector(float64(1), float64(2)), false},
		{"nested arrays", NewVector(NewVector("x")), NewVector(NewVector("x")), true},
		{"fields unordered", fab("a", float64(1), "b", float64(2)), fab("b", float64(2), "a", float64(1)), true},
		{"fields differ", fab("a", float64(1)), fab("a", float64(2)), false},
		{"fields extra key", fab("a", float64(1)), fab("a", float64(1), "b", nil), false},
		{"character identity", hero, hero, true},
		{"character not by name", hero, also, false},
		{"functions by name", &FuncRef{Name: "f"}, &FuncRef{Name: "f"}, true},
		{"functions differ", &FuncRef{Name: "f"}, &FuncRef{Name: "g"}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal(%#v, %#v) = %v", tt.a, tt.b, got)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	for _, tt := range []struct {
		name string
		v    Value
		want bool
	}{
		{"true", true, true},
		{"false", false, false},
		{"null", nil, false},
		{"zero", float64(0), false},
		{"one", float64(1), false},
		{"empty string", "", false},
		{"string", "x", true},
		{"string false", "false", true},
		{"empty array", NewVector(), false},
		{"array", NewVector(false), true},
		{"fields", NewOrderedFields(), false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truthy(tt.v); got != tt.want {
				t.Fatalf("Truthy(%#v) = %v", tt.v, got)
			}
		})
	}
}

func TestToString(t *testing.T) {
	f := NewOrderedFields()
	f.Set("hp", float64(10))
	f.Set("name", "Rat")

	for _, tt := range []struct {
		name string
		v    Value
		want string
	}{
		{"null", nil, "null"},
		{"true", true, "true"},
		{"integral number", float64(3), "3"},
		{"fractional number", float64(2.5), "2.5"},
		{"negative", float64(-0.25), "-0.25"},
		{"string", "hi", "hi"},
		{"array", NewVector(float64(1), "a", nil), "[1, a, null]"},
		{"fields", f, "{hp: 10, name: Rat}"},
		{"character", &Character{Name: "Hero"}, "Hero"},
		{"function", &FuncRef{Name: "roll"}, "roll"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(tt.v); got != tt.want {
				t.Fatalf("ToString(%#v) = %q", tt.v, got)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	for _, tt := range []struct {
		v    Value
		want string
	}{
		{nil, "null"},
		{true, "boolean"},
		{float64(1), "number"},
		{"x", "string"},
		{NewVector(), "array"},
		{NewOrderedFields(), "fields"},
		{&Character{}, "character"},
		{&FuncRef{}, "function"},
		{struct{}{}, "opaque"},
	} {
		if got := KindOf(tt.v); got != tt.want {
			t.Fatalf("KindOf(%#v) = %q", tt.v, got)
		}
	}
}
