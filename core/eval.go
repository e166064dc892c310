package core

import (
	"fmt"
	"math"

	"github.com/fable-lang/fable/script"
)

// run executes one statement with the scheduler's wrapping contract:
// the statement's continuation is wrapped, the statement is invoked,
// and the sync flag is flipped once control returns here.  See
// sched.go.
func (i *Interpreter) run(st *script.Stmt, next func()) {
	if i.err != nil {
		return
	}
	w := i.sched.wrap(next)
	i.execStmt(st, func() { i.sched.fire(w) })
	w.sync = false
}

// stepBody advances a scope through its block: each child's
// completion moves to the next child; after the last child the scope
// is popped and the outer continuation runs.
func (i *Interpreter) stepBody(sc *Scope, at int, next func()) {
	if i.err != nil {
		return
	}
	if len(sc.Block) <= at {
		i.popScope(sc)
		next()
		return
	}
	sc.Head = at
	i.run(sc.Block[at], func() { i.stepBody(sc, at+1, next) })
}

// top is the innermost scope.
func (i *Interpreter) top() *Scope {
	return i.stack[len(i.stack)-1]
}

// execStmt dispatches on the statement kind.  Every rule either
// invokes next (possibly through the scheduler, possibly much later,
// after a host resumption) or, for a transition, discards it.
func (i *Interpreter) execStmt(st *script.Stmt, next func()) {
	switch {
	case st.State != nil:
		i.execState(st, next)
	case st.Character != nil:
		i.execCharacter(st, next)
	case st.Beat != nil:
		i.execLocalBeat(st, next)
	case st.Text != nil:
		i.execText(st, next)
	case st.Choice != nil:
		i.execChoice(st, next)
	case st.If != nil:
		i.execIf(st, next)
	case st.Assign != nil:
		if err := i.assign(st); err != nil {
			i.abort(err, st.Pos)
			return
		}
		next()
	case st.Call != nil:
		i.execCall(st, next)
	case st.Transition != nil:
		i.execTransition(st)
	default:
		i.abort(fmt.Errorf("unknown statement kind %q", st.Kind()), st.Pos)
	}
}

// execState declares state.  Temporary fields attach to the current
// scope's temporary state, created on first use.  Persistent fields
// go to the state keyed by the current scope's node identity, which
// is created on the first visit and reused on every later one; field
// expressions are evaluated on every visit but only initialize keys
// that do not exist yet, so persisted values survive re-entry.
func (i *Interpreter) execState(st *script.Stmt, next func()) {
	sc := i.top()

	var dst *State
	if st.State.Temporary {
		if sc.Temp == nil {
			sc.Temp = newState(sc.Id)
		}
		dst = sc.Temp
	} else {
		ps, have := i.nodeStates[sc.NodeId]
		if !have {
			ps = newState(0)
			i.nodeStates[sc.NodeId] = ps
		}
		sc.Perm = ps
		dst = ps
	}

	for _, f := range st.State.Fields {
		v, err := i.evalExpr(f.Value)
		if err != nil {
			i.abort(err, st.Pos)
			return
		}
		if st.State.Temporary || !dst.Fields.Exists(f.Name) {
			dst.Fields.Set(f.Name, v)
		}
	}
	next()
}

// execCharacter declares a character in the current scope.  If the
// name is already visible, the new instance extends and shadows it
// for this scope and its descendants.  The instance's fields persist
// across revisits, keyed by the declaring node.
func (i *Interpreter) execCharacter(st *script.Stmt, next func()) {
	sc := i.top()
	name := st.Character.Name

	if _, have := sc.localChars[name]; have {
		i.abort(&script.DuplicateCharacter{Name: name, Pos: st.Pos}, st.Pos)
		return
	}

	parent, _ := i.visibleCharacter(name)

	ps, have := i.nodeStates[st.Id]
	if !have {
		ps = newState(0)
		i.nodeStates[st.Id] = ps
	}
	c := &Character{Name: name, State: ps, Parent: parent}

	for _, f := range st.Character.Fields {
		v, err := i.evalExpr(f.Value)
		if err != nil {
			i.abort(err, st.Pos)
			return
		}
		if !ps.Fields.Exists(f.Name) {
			ps.Fields.Set(f.Name, v)
		}
	}

	if sc.localChars == nil {
		sc.localChars = make(map[string]*localChar, 1)
	}
	sc.localChars[name] = &localChar{declId: st.Id, char: c}
	next()
}

// execLocalBeat records a beat declared in a block: visible from this
// scope and its descendants, gone when the scope is popped.
func (i *Interpreter) execLocalBeat(st *script.Stmt, next func()) {
	sc := i.top()
	name := st.Beat.Name

	if _, have := sc.LocalBeats[name]; have {
		i.abort(&script.DuplicateBeat{Name: name, Pos: st.Pos}, st.Pos)
		return
	}

	ref, have := i.idx.Beats[st.Id]
	if !have {
		// Index and script disagree; can't happen with an index
		// built from this script.
		i.abort(fmt.Errorf("beat %q missing from index", name), st.Pos)
		return
	}

	if sc.LocalBeats == nil {
		sc.LocalBeats = make(map[string]*script.BeatRef, 1)
	}
	sc.LocalBeats[name] = ref
	next()
}

// execText presents a line and suspends until the host resumes.
func (i *Interpreter) execText(st *script.Stmt, next func()) {
	text, tags, err := i.evalTpl(st.Text.Line)
	if err != nil {
		i.abort(err, st.Pos)
		return
	}
	if i.handler.Dialogue == nil {
		next()
		return
	}
	i.handler.Dialogue(st.Text.Speaker, text, tags, next)
}

// execChoice evaluates every option's display text, and its guard
// independently of the text (disabled options are still rendered),
// then presents the options and suspends until the host selects.
func (i *Interpreter) execChoice(st *script.Stmt, next func()) {
	sc := i.top()

	opts := make([]ChoiceOption, len(st.Choice.Options))
	for n, opt := range st.Choice.Options {
		enabled := true
		if opt.If != nil {
			v, err := i.evalExpr(opt.If)
			if err != nil {
				i.abort(err, st.Pos)
				return
			}
			enabled = Truthy(v)
		}
		text, tags, err := i.evalTpl(opt.Text)
		if err != nil {
			i.abort(err, st.Pos)
			return
		}
		opts[n] = ChoiceOption{Text: text, Tags: tags, Enabled: enabled}
	}

	var chosen int
	w := i.sched.wrap(func() { i.selectOption(st, sc, chosen, next) })
	sel := func(n int) {
		chosen = n
		i.sched.fire(w)
	}

	i.choice = &pendingChoice{stmt: st, scope: sc, opts: opts, sel: sel}

	if i.handler.Choice == nil {
		// No host to answer: continue past the choice.
		i.choice = nil
		next()
		return
	}
	i.handler.Choice(opts, sel)
	w.sync = false
}

// selectOption runs the selected option's body as a nested block.  An
// out-of-range index (cancellation) continues past the choice with no
// effect.  Selecting a disabled option is explicitly allowed.
func (i *Interpreter) selectOption(st *script.Stmt, sc *Scope, n int, next func()) {
	i.choice = nil
	opts := st.Choice.Options
	if n < 0 || len(opts) <= n {
		next()
		return
	}
	body := opts[n].Body
	if len(body) == 0 {
		next()
		return
	}
	nsc := i.pushScope(sc.Beat, st.Id, "", n, body)
	i.stepBody(nsc, 0, next)
}

// execIf evaluates the condition by truthiness and runs the matching
// branch's block, or continues when that branch is empty.
func (i *Interpreter) execIf(st *script.Stmt, next func()) {
	v, err := i.evalExpr(st.If.Cond)
	if err != nil {
		i.abort(err, st.Pos)
		return
	}

	block, branch := st.If.Then, "then"
	if !Truthy(v) {
		block, branch = st.If.Else, "else"
	}
	if len(block) == 0 {
		next()
		return
	}
	nsc := i.pushScope(i.top().Beat, st.Id, branch, 0, block)
	i.stepBody(nsc, 0, next)
}

// execCall runs a beat call when the target is a bare name resolving
// to a visible beat; otherwise it invokes a registered function,
// suspending when the result is asynchronous.
func (i *Interpreter) execCall(st *script.Stmt, next func()) {
	c := st.Call

	if c.Target != nil && c.Target.Access != nil {
		if ref, err := i.resolveBeat(*c.Target.Access); err == nil {
			nsc := i.pushScope(ref, st.Id, "", 0, ref.Beat.Body)
			i.stepBody(nsc, 0, next)
			return
		}
	}

	v, err := i.invoke(c)
	if err != nil {
		i.abort(err, st.Pos)
		return
	}
	if a, is := v.(*Async); is {
		a.Run(next)
		return
	}
	next()
}

// execTransition ends the run for the "." target and otherwise hands
// control to the beat machine.  The statement's continuation is
// discarded: the next beat supplies its own.
func (i *Interpreter) execTransition(st *script.Stmt) {
	target := st.Transition.Target
	if target == script.EndTarget {
		i.finishRun()
		return
	}
	ref, err := i.resolveBeat(target)
	if err != nil {
		i.abort(err, st.Pos)
		return
	}
	i.enterBeat(ref)
}

// invoke calls a registered function synchronously.  The raw result
// is returned; callers decide what *Async means in their context.
func (i *Interpreter) invoke(c *script.Call) (Value, error) {
	tv, err := i.evalExpr(c.Target)
	if err != nil {
		return nil, err
	}
	fr, is := tv.(*FuncRef)
	if !is {
		return nil, &InvalidOperation{Op: "call", Left: KindOf(tv)}
	}
	args := make([]Value, len(c.Args))
	for n, a := range c.Args {
		if args[n], err = i.evalExpr(a); err != nil {
			return nil, err
		}
	}
	// A function reference decoded from a snapshot carries only the
	// name; bind it against the registrations of this instance.
	f := fr.F
	if f == nil {
		rf, have := i.funcs[fr.Name]
		if !have {
			return nil, &UndefinedVariable{Name: fr.Name}
		}
		f = rf
	}
	return f(i.ctx, args)
}

// assign resolves the assignment target, reads the current value
// first for compound operators, and writes through the same target
// resolution.
func (i *Interpreter) assign(st *script.Stmt) error {
	a := st.Assign

	v, err := i.evalExpr(a.Value)
	if err != nil {
		return err
	}

	read, write, name, err := i.resolveTarget(a.Target)
	if err != nil {
		return err
	}

	if a.Op != "=" {
		if len(a.Op) != 2 || a.Op[1] != '=' {
			return &InvalidOperation{Op: a.Op, Left: name}
		}
		cur, err := read()
		if err != nil {
			return err
		}
		if v, err = i.binop(a.Op[:1], cur, v); err != nil {
			return err
		}
	}

	return write(v)
}

// resolveTarget resolves an access, field, or index target into a
// read thunk and a write thunk.  Characters and functions are
// read-only bindings: assigning to one fails with InvalidAssignment,
// as does writing past the end of an array.
func (i *Interpreter) resolveTarget(t *script.Expr) (func() (Value, error), func(Value) error, string, error) {
	switch {
	case t.Access != nil:
		name := *t.Access
		r, err := i.resolveAccess(name)
		if err != nil {
			return nil, nil, name, err
		}
		if r.char != nil || r.fn != nil {
			return nil, nil, name, &InvalidAssignment{Target: name}
		}
		read := func() (Value, error) { return r.state.Fields.Get(r.key), nil }
		write := func(v Value) error { r.state.Fields.Set(r.key, v); return nil }
		return read, write, name, nil

	case t.Field != nil:
		obj, err := i.evalExpr(t.Field.Obj)
		if err != nil {
			return nil, nil, t.Field.Name, err
		}
		name := t.Field.Name
		switch vv := obj.(type) {
		case Fields:
			return func() (Value, error) { return vv.Get(name), nil },
				func(v Value) error { vv.Set(name, v); return nil }, name, nil
		case *Character:
			return func() (Value, error) { return vv.Get(name), nil },
				func(v Value) error { vv.Set(name, v); return nil }, name, nil
		}
		return nil, nil, name, &InvalidOperation{Op: ".", Left: KindOf(obj), Right: "field"}

	case t.Index != nil:
		obj, err := i.evalExpr(t.Index.Obj)
		if err != nil {
			return nil, nil, "index", err
		}
		l, is := obj.(List)
		if !is {
			return nil, nil, "index", &InvalidOperation{Op: "[]", Left: KindOf(obj), Right: "index"}
		}
		iv, err := i.evalExpr(t.Index.Index)
		if err != nil {
			return nil, nil, "index", err
		}
		f, is := iv.(float64)
		if !is {
			return nil, nil, "index", &InvalidOperation{Op: "[]", Left: KindOf(obj), Right: KindOf(iv)}
		}
		n := int(f)
		if n < 0 || l.Len() <= n {
			return nil, nil, "index", &InvalidAssignment{Target: fmt.Sprintf("array index %d", n)}
		}
		read := func() (Value, error) { return l.At(n), nil }
		write := func(v Value) error { l.SetAt(n, v); return nil }
		return read, write, "index", nil
	}

	return nil, nil, t.Kind(), &InvalidAssignment{Target: t.Kind()}
}

// evalExpr evaluates an expression.  Expressions are synchronous:
// suspension happens only at statement level.
func (i *Interpreter) evalExpr(e *script.Expr) (Value, error) {
	v, err := i.evalExprInner(e)
	if err != nil {
		if _, is := err.(*RuntimeError); !is {
			err = &RuntimeError{Err: err, Pos: e.Pos}
		}
		return nil, err
	}
	return v, nil
}

func (i *Interpreter) evalExprInner(e *script.Expr) (Value, error) {
	switch {
	case e.Null:
		return nil, nil

	case e.Bool != nil:
		return *e.Bool, nil

	case e.Num != nil:
		return *e.Num, nil

	case e.Str != nil:
		// Tag markers contribute no text; in expression context
		// the spans are discarded.
		text, _, err := i.evalTpl(e.Str)
		return text, err

	case e.Array != nil:
		xs := make([]Value, len(e.Array))
		for n, el := range e.Array {
			v, err := i.evalExpr(el)
			if err != nil {
				return nil, err
			}
			xs[n] = v
		}
		return NewVector(xs...), nil

	case e.Access != nil:
		r, err := i.resolveAccess(*e.Access)
		if err != nil {
			return nil, err
		}
		switch {
		case r.state != nil:
			return r.state.Fields.Get(r.key), nil
		case r.char != nil:
			return r.char, nil
		default:
			return r.fn, nil
		}

	case e.Field != nil:
		obj, err := i.evalExpr(e.Field.Obj)
		if err != nil {
			return nil, err
		}
		switch vv := obj.(type) {
		case Fields:
			return vv.Get(e.Field.Name), nil
		case *Character:
			return vv.Get(e.Field.Name), nil
		}
		return nil, &InvalidOperation{Op: ".", Left: KindOf(obj), Right: "field"}

	case e.Index != nil:
		obj, err := i.evalExpr(e.Index.Obj)
		if err != nil {
			return nil, err
		}
		l, is := obj.(List)
		if !is {
			return nil, &InvalidOperation{Op: "[]", Left: KindOf(obj), Right: "index"}
		}
		iv, err := i.evalExpr(e.Index.Index)
		if err != nil {
			return nil, err
		}
		f, is := iv.(float64)
		if !is {
			return nil, &InvalidOperation{Op: "[]", Left: KindOf(obj), Right: KindOf(iv)}
		}
		n := int(f)
		// Direct indexing is strict; the lenient null-yielding
		// read belongs to the built-in helpers (ListGet).
		if n < 0 || l.Len() <= n {
			return nil, &ArrayIndexOutOfBounds{Index: n, Length: l.Len()}
		}
		return l.At(n), nil

	case e.Call != nil:
		v, err := i.invoke(e.Call)
		if err != nil {
			return nil, err
		}
		if _, is := v.(*Async); is {
			return nil, fmt.Errorf("asynchronous call in expression context")
		}
		return v, nil

	case e.Binary != nil:
		a, err := i.evalExpr(e.Binary.Left)
		if err != nil {
			return nil, err
		}
		b, err := i.evalExpr(e.Binary.Right)
		if err != nil {
			return nil, err
		}
		return i.binop(e.Binary.Op, a, b)

	case e.Unary != nil:
		v, err := i.evalExpr(e.Unary.Operand)
		if err != nil {
			return nil, err
		}
		switch e.Unary.Op {
		case "-":
			if f, is := v.(float64); is {
				return -f, nil
			}
		case "!":
			if b, is := v.(bool); is {
				return !b, nil
			}
		}
		return nil, &InvalidOperation{Op: e.Unary.Op, Left: KindOf(v)}
	}

	return nil, fmt.Errorf("unknown expression kind %q", e.Kind())
}

// binop implements the binary operators.  Arithmetic needs numbers on
// both sides, except "+", which concatenates when either side is a
// string.  Comparisons need numbers; equality permits any two values;
// logic needs booleans.  Both operands of && and || are evaluated
// before the check, so a type error on the right is never masked.
func (i *Interpreter) binop(op string, a, b Value) (Value, error) {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)

	switch op {
	case "+":
		if aNum && bNum {
			return af + bf, nil
		}
		if as, is := a.(string); is {
			return as + ToString(b), nil
		}
		if bs, is := b.(string); is {
			return ToString(a) + bs, nil
		}
	case "-":
		if aNum && bNum {
			return af - bf, nil
		}
	case "*":
		if aNum && bNum {
			return af * bf, nil
		}
	case "/":
		if aNum && bNum {
			if bf == 0 {
				return nil, &DivisionByZero{}
			}
			return af / bf, nil
		}
	case "%":
		if aNum && bNum {
			if bf == 0 {
				return nil, &ModuloByZero{}
			}
			return math.Mod(af, bf), nil
		}
	case ">":
		if aNum && bNum {
			return af > bf, nil
		}
	case ">=":
		if aNum && bNum {
			return af >= bf, nil
		}
	case "<":
		if aNum && bNum {
			return af < bf, nil
		}
	case "<=":
		if aNum && bNum {
			return af <= bf, nil
		}
	case "==":
		return Equal(a, b), nil
	case "!=":
		return !Equal(a, b), nil
	case "&&":
		ab, aBool := a.(bool)
		bb, bBool := b.(bool)
		if aBool && bBool {
			return ab && bb, nil
		}
	case "||":
		ab, aBool := a.(bool)
		bb, bBool := b.(bool)
		if aBool && bBool {
			return ab || bb, nil
		}
	}

	return nil, &InvalidOperation{Op: op, Left: KindOf(a), Right: KindOf(b)}
}
