package core

// The scheduler is the engine's only concurrency primitive.  It turns
// continuation-passing evaluation into bounded-stack, queued work.
//
// Every suspend point is wrapped in a Cont whose sync flag starts
// true.  The caller invokes the node's evaluation with the wrapped
// thunk as its continuation and then flips sync to false.  If the
// thunk fires while sync is still true, the node completed inline and
// the thunk is queued instead of run -- that is what keeps a beat of
// 100,000 consecutive lines from recursing 100,000 native frames.  If
// the thunk fires after sync was flipped, the node genuinely
// suspended and a host callback is resuming it: the thunk runs
// immediately and the queue is then flushed.

// Cont is a pending continuation.
type Cont struct {
	sync  bool
	fired bool
	run   func()
}

type sched struct {
	q        []func()
	flushing bool
}

// wrap makes a Cont for the given thunk with sync initially true.
func (s *sched) wrap(run func()) *Cont {
	return &Cont{sync: true, run: run}
}

// fire triggers c according to the contract above.  A Cont fires at
// most once; later fires are ignored, which makes host resume
// functions safe to call more than once and makes the finish trigger
// idempotent.
func (s *sched) fire(c *Cont) {
	if c == nil || c.fired {
		return
	}
	c.fired = true
	if c.sync {
		s.q = append(s.q, c.run)
		return
	}
	c.run()
	s.flush()
}

// flush drains the queue iteratively.  Work enqueued while running
// the head is spliced in ahead of the not-yet-run remainder, so
// nested continuations behave as if evaluated eagerly depth-first
// while siblings keep their FIFO order.  flush never runs nested
// inside itself.
func (s *sched) flush() {
	if s.flushing {
		return
	}
	s.flushing = true
	for 0 < len(s.q) {
		head := s.q[0]
		rest := s.q[1:]
		s.q = nil
		head()
		s.q = append(s.q, rest...)
	}
	s.flushing = false
}

// drop discards all queued work.  Used when a run aborts.
func (s *sched) drop() {
	s.q = nil
}
