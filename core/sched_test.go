package core

import (
	"testing"
)

func TestSchedSyncFireQueues(t *testing.T) {
	var (
		s   = &sched{}
		ran bool
	)
	c := s.wrap(func() { ran = true })
	s.fire(c)
	if ran {
		t.Fatal("sync fire should queue, not run")
	}
	s.flush()
	if !ran {
		t.Fatal("flush should run queued work")
	}
}

func TestSchedAsyncFireRuns(t *testing.T) {
	var (
		s   = &sched{}
		ran bool
	)
	c := s.wrap(func() { ran = true })
	c.sync = false
	s.fire(c)
	if !ran {
		t.Fatal("async fire should run immediately")
	}
}

func TestSchedFireOnce(t *testing.T) {
	var (
		s = &sched{}
		n int
	)
	c := s.wrap(func() { n++ })
	c.sync = false
	s.fire(c)
	s.fire(c)
	s.fire(c)
	if n != 1 {
		t.Fatalf("ran %d times", n)
	}
}

func TestSchedFireNil(t *testing.T) {
	s := &sched{}
	s.fire(nil)
}

func TestSchedDepthFirstSplice(t *testing.T) {
	// Work enqueued by the head runs before previously queued
	// siblings, as if evaluation had recursed eagerly.
	var (
		s     = &sched{}
		order []string
	)
	enq := func(name string) {
		c := s.wrap(func() { order = append(order, name) })
		s.fire(c)
	}

	a := s.wrap(func() {
		order = append(order, "a")
		enq("a1")
		enq("a2")
	})
	s.fire(a)
	enq("b")
	s.flush()

	want := "a a1 a2 b"
	got := ""
	for i, x := range order {
		if 0 < i {
			got += " "
		}
		got += x
	}
	if got != want {
		t.Fatalf("got order %q", got)
	}
}

func TestSchedNoNestedFlush(t *testing.T) {
	var (
		s     = &sched{}
		order []string
	)
	inner := s.wrap(func() { order = append(order, "inner") })
	outer := s.wrap(func() {
		order = append(order, "outer")
		// An async fire from inside flush must not re-enter
		// flush; the work still runs in the same drain.
		inner.sync = false
		s.fire(inner)
	})
	s.fire(outer)
	s.flush()

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Fatalf("got order %#v", order)
	}
}

func TestSchedDrop(t *testing.T) {
	var (
		s   = &sched{}
		ran bool
	)
	s.fire(s.wrap(func() { ran = true }))
	s.drop()
	s.flush()
	if ran {
		t.Fatal("dropped work should not run")
	}
}
