package core

import (
	"strings"
)

// List is the array capability.  Engine-owned arrays are Vectors;
// hosts can expose list-like native objects by implementing List, and
// the engine (and the built-in function layer) treats both uniformly.
//
// All mutation is in place.  At with an out-of-range index returns
// nil (see ListGet); the stricter behavior of direct expression
// indexing lives in the evaluator, not here.
type List interface {
	Len() int
	At(i int) Value
	SetAt(i int, v Value)
	Push(v Value)
	Pop() Value
	Shift() Value
	Insert(i int, v Value)
	RemoveAt(i int) Value
}

// Vector is the engine-owned List backing.
type Vector struct {
	xs []Value
}

// NewVector makes a Vector holding the given elements.
func NewVector(xs ...Value) *Vector {
	return &Vector{xs: xs}
}

func (v *Vector) Len() int {
	return len(v.xs)
}

func (v *Vector) At(i int) Value {
	if i < 0 || len(v.xs) <= i {
		return nil
	}
	return v.xs[i]
}

func (v *Vector) SetAt(i int, x Value) {
	if i < 0 || len(v.xs) <= i {
		return
	}
	v.xs[i] = x
}

func (v *Vector) Push(x Value) {
	v.xs = append(v.xs, x)
}

func (v *Vector) Pop() Value {
	if len(v.xs) == 0 {
		return nil
	}
	x := v.xs[len(v.xs)-1]
	v.xs = v.xs[:len(v.xs)-1]
	return x
}

func (v *Vector) Shift() Value {
	if len(v.xs) == 0 {
		return nil
	}
	x := v.xs[0]
	v.xs = v.xs[1:]
	return x
}

func (v *Vector) Insert(i int, x Value) {
	if i < 0 {
		i = 0
	}
	if len(v.xs) < i {
		i = len(v.xs)
	}
	v.xs = append(v.xs, nil)
	copy(v.xs[i+1:], v.xs[i:])
	v.xs[i] = x
}

func (v *Vector) RemoveAt(i int) Value {
	if i < 0 || len(v.xs) <= i {
		return nil
	}
	x := v.xs[i]
	v.xs = append(v.xs[:i], v.xs[i+1:]...)
	return x
}

// ListGet reads an element, yielding nil when the index is out of
// range.  This is the lenient read used by built-in functions, as
// opposed to direct expression indexing, which raises
// ArrayIndexOutOfBounds.
func ListGet(l List, i int) Value {
	if i < 0 || l.Len() <= i {
		return nil
	}
	return l.At(i)
}

// ListSet writes an element, reporting whether the index was in
// range.
func ListSet(l List, i int, v Value) bool {
	if i < 0 || l.Len() <= i {
		return false
	}
	l.SetAt(i, v)
	return true
}

// ListEach calls f for each element in order.  Stops early if f
// returns false.
func ListEach(l List, f func(i int, v Value) bool) {
	for i := 0; i < l.Len(); i++ {
		if !f(i, l.At(i)) {
			return
		}
	}
}

// ListCopy makes a shallow duplicate as a Vector.  This is the only
// array primitive that does not mutate in place.
func ListCopy(l List) *Vector {
	xs := make([]Value, l.Len())
	for i := range xs {
		xs[i] = l.At(i)
	}
	return NewVector(xs...)
}

// ListSort sorts in place with a stable insertion sort.  cmp is a
// 3-way comparator.  Stability matters: scripts may rely on tie
// order.
func ListSort(l List, cmp func(a, b Value) int) {
	for i := 1; i < l.Len(); i++ {
		x := l.At(i)
		j := i - 1
		for ; 0 <= j && 0 < cmp(l.At(j), x); j-- {
			l.SetAt(j+1, l.At(j))
		}
		l.SetAt(j+1, x)
	}
}

// ListReverse reverses in place.
func ListReverse(l List) {
	for i, j := 0, l.Len()-1; i < j; i, j = i+1, j-1 {
		x, y := l.At(i), l.At(j)
		l.SetAt(i, y)
		l.SetAt(j, x)
	}
}

// ListJoin renders the elements' string forms separated by sep.
func ListJoin(l List, sep string) string {
	var b strings.Builder
	for i := 0; i < l.Len(); i++ {
		if 0 < i {
			b.WriteString(sep)
		}
		b.WriteString(ToString(l.At(i)))
	}
	return b.String()
}
