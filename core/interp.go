package core

import (
	"context"
	"log"

	"github.com/fable-lang/fable/script"
)

// Status represents where the interpreter is in its lifecycle.
type Status int

const (
	Idle     Status = iota // Created but not started.
	Running                // Inside a beat (possibly suspended at a host callback).
	Finished               // The finish trigger fired.
	Broken                 // A script error aborted the run.
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Broken:
		return "broken"
	}
	return "unknown"
}

// ChoiceOption is one option as presented to the host.  Disabled
// options are still rendered (hosts typically strike them through),
// and selecting one is explicitly allowed.
type ChoiceOption struct {
	Text    string    `json:"text" yaml:"text"`
	Tags    []TagSpan `json:"tags,omitempty" yaml:"tags,omitempty"`
	Enabled bool      `json:"enabled" yaml:"enabled"`
}

// Handler supplies the host callbacks that drive pacing.
//
// Dialogue and Choice receive a resumption function; the engine stays
// suspended until the host invokes it.  Calling a resumption function
// more than once is harmless (later calls are ignored), and replacing
// it with a no-op plus discarding the Interpreter is the supported
// abandonment path.
//
// Callbacks must not re-enter the same Interpreter from another
// goroutine without external serialization.
type Handler struct {
	// Dialogue presents a line.  speaker is "" for narration.
	Dialogue func(speaker, text string, tags []TagSpan, resume func())

	// Choice presents options.  sel accepts the selected index;
	// an out-of-range index (e.g. -1 for "cancelled") continues
	// past the choice with no effect.
	Choice func(options []ChoiceOption, sel func(int))

	// Finish is called once when the run completes.
	Finish func()

	// Error, if set, receives the error that aborted a run.  The
	// same error is available from Interpreter.Err.
	Error func(*RuntimeError)
}

// Func is a host-registered function callable from scripts.
//
// A Func may return *Async to signal that the call completes later;
// the evaluator then suspends the run until the Async's done function
// is invoked.
type Func func(ctx context.Context, args []Value) (Value, error)

// Async is the asynchronous-result wrapper.  Run is invoked with the
// engine's continuation; the operation calls done (from the same
// goroutine discipline as any other host callback) when it completes.
type Async struct {
	Run func(done func())
}

// pendingChoice remembers a choice that has been presented to the
// host but not yet answered, so that Save can record the computed
// options verbatim instead of re-running guard expressions later.
type pendingChoice struct {
	stmt  *script.Stmt
	scope *Scope
	opts  []ChoiceOption
	sel   func(int)
}

// Interpreter executes one script run.  All of its state -- the
// execution stack, state containers, characters, the scope-id counter
// -- is owned exclusively by this one instance; nothing here is a
// process-wide singleton.
type Interpreter struct {
	// Verbose enables Logf output.
	Verbose bool

	scr *script.Script
	idx *script.Index

	handler *Handler
	funcs   map[string]Func

	topState   *State
	nodeStates map[int]*State
	chars      map[string]*Character
	charOrder  []string

	stack    []*Scope
	scopeSeq int
	curBeat  *script.BeatRef

	sched  sched
	finish *Cont
	choice *pendingChoice
	resume func() // set by Restore, consumed by Resume

	status Status
	err    *RuntimeError
	ctx    context.Context
}

// New makes an Interpreter for the given script and handler.
// Building the index detects duplicate beats and characters.
func New(s *script.Script, h *Handler) (*Interpreter, error) {
	idx, err := script.NewIndex(s)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = &Handler{}
	}
	return &Interpreter{
		scr:        s,
		idx:        idx,
		handler:    h,
		funcs:      make(map[string]Func),
		topState:   newState(0),
		nodeStates: make(map[int]*State),
		chars:      make(map[string]*Character),
	}, nil
}

// Register adds a callable to the built-in function layer's
// registration map.
func (i *Interpreter) Register(name string, f Func) {
	i.funcs[name] = f
}

// RegisterAll adds every function in fs.
func (i *Interpreter) RegisterAll(fs map[string]Func) {
	for name, f := range fs {
		i.funcs[name] = f
	}
}

// Status reports the interpreter's lifecycle state.
func (i *Interpreter) Status() Status {
	return i.status
}

// Err reports the error (if any) that aborted the run.
func (i *Interpreter) Err() *RuntimeError {
	return i.err
}

// Logf logs when Verbose is set.
func (i *Interpreter) Logf(format string, args ...interface{}) {
	if i.Verbose {
		log.Printf(format, args...)
	}
}

// Start begins a run at the named beat, at the beat named "_" when
// beatName is empty, or at the first declared beat.
//
// Start returns once the run has either finished or suspended at a
// host callback.  A later error (one that occurs after a host
// resumption) is reported through Handler.Error and Err.
func (i *Interpreter) Start(ctx context.Context, beatName string) error {
	if i.status != Idle {
		return &RuntimeError{Err: &InvalidOperation{Op: "start", Left: i.status.String()}}
	}
	i.ctx = ctx

	if err := i.boot(); err != nil {
		return err
	}

	var ref *script.BeatRef
	if beatName == "" {
		r, have := i.idx.DefaultBeat()
		if !have {
			err := &RuntimeError{Err: &BeatNotFound{Name: "_"}}
			i.err = err
			i.status = Broken
			return err
		}
		ref = r
	} else {
		r, have := i.idx.TopBeats[beatName]
		if !have {
			err := &RuntimeError{Err: &BeatNotFound{Name: beatName}}
			i.err = err
			i.status = Broken
			return err
		}
		ref = r
	}

	i.enterBeat(ref)
	i.sched.flush()

	if i.err != nil {
		return i.err
	}
	return nil
}

// boot evaluates the top-level declarations: persistent state and
// characters.  Imports were already resolved by the parser; beats are
// in the index.
func (i *Interpreter) boot() error {
	for _, d := range i.scr.Decls {
		switch {
		case d.State != nil:
			if d.State.Temporary {
				err := &RuntimeError{Err: &InvalidState{}, Pos: d.Pos}
				i.err = err
				i.status = Broken
				return err
			}
			for _, f := range d.State.Fields {
				v, err := i.evalExpr(f.Value)
				if err != nil {
					return i.abort(err, d.Pos)
				}
				if !i.topState.Fields.Exists(f.Name) {
					i.topState.Fields.Set(f.Name, v)
				}
			}
		case d.Character != nil:
			c := &Character{Name: d.Character.Name, State: newState(0)}
			for _, f := range d.Character.Fields {
				v, err := i.evalExpr(f.Value)
				if err != nil {
					return i.abort(err, d.Pos)
				}
				c.State.Fields.Set(f.Name, v)
			}
			i.chars[c.Name] = c
			i.charOrder = append(i.charOrder, c.Name)
		}
	}
	return nil
}

// enterBeat is the beat transition: discard the execution stack,
// reset the scope-id counter, re-arm the finish trigger, and begin
// evaluating the beat body.  The run is driven by the scheduler.
func (i *Interpreter) enterBeat(ref *script.BeatRef) {
	i.Logf("enterBeat %s", ref.Path)
	i.stack = nil
	i.scopeSeq = 0
	i.curBeat = ref
	i.choice = nil
	i.status = Running
	i.finish = i.sched.wrap(i.finished)

	sc := i.pushScope(ref, ref.Id, "", 0, ref.Beat.Body)
	i.stepBody(sc, 0, i.finishRun)
}

// finishRun fires the finish trigger, clearing it first so the
// trigger is invoked at most once per beat epoch.
func (i *Interpreter) finishRun() {
	f := i.finish
	i.finish = nil
	i.sched.fire(f)
}

func (i *Interpreter) finished() {
	i.Logf("finished")
	i.status = Finished
	i.stack = nil
	if i.handler.Finish != nil {
		i.handler.Finish()
	}
}

// abort stops the run with a script error.  Pending queued work is
// discarded; nothing is retried.
func (i *Interpreter) abort(err error, pos script.Pos) *RuntimeError {
	re, is := err.(*RuntimeError)
	if !is {
		re = &RuntimeError{Err: err, Pos: pos}
	}
	i.Logf("abort: %s", re.Error())
	i.err = re
	i.status = Broken
	i.sched.drop()
	if i.handler.Error != nil {
		i.handler.Error(re)
	}
	return re
}

// GetCharacterField reads a field of a top-level character.
func (i *Interpreter) GetCharacterField(character, field string) (Value, error) {
	c, have := i.chars[character]
	if !have {
		return nil, &UndefinedVariable{Name: character}
	}
	return c.Get(field), nil
}

// SetCharacterField writes a field of a top-level character.
func (i *Interpreter) SetCharacterField(character, field string, v Value) error {
	c, have := i.chars[character]
	if !have {
		return &UndefinedVariable{Name: character}
	}
	c.Set(field, v)
	return nil
}

// Resume continues a run rebuilt by Restore: the pending choice is
// re-presented verbatim (guards are not re-run), or the suspended
// statement is re-executed to hand the host a fresh resumption
// function.
func (i *Interpreter) Resume() error {
	r := i.resume
	i.resume = nil
	if r == nil {
		return &RuntimeError{Err: &InvalidOperation{Op: "resume", Left: i.status.String()}}
	}
	w := i.sched.wrap(r)
	w.sync = false
	i.sched.fire(w)
	if i.err != nil {
		return i.err
	}
	return nil
}
