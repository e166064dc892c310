package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/fable-lang/fable/script"
)

// SnapshotVersion is the current snapshot format version.  Readers
// reject snapshots with a later version.
const SnapshotVersion = 1

// NodeRef references a node by stable id, plus a human-readable
// dotted path for diagnostics across script edits.
type NodeRef struct {
	Id   int    `json:"id" yaml:"id"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ValueSnap is the serialized form of a Value.  Character and
// function references are stored by name.
type ValueSnap struct {
	Null      bool         `json:"null,omitempty" yaml:"null,omitempty"`
	Bool      *bool        `json:"bool,omitempty" yaml:"bool,omitempty"`
	Num       *float64     `json:"num,omitempty" yaml:"num,omitempty"`
	Str       *string      `json:"str,omitempty" yaml:"str,omitempty"`
	Array     []*ValueSnap `json:"array,omitempty" yaml:"array,omitempty"`
	Fields    []*FieldSnap `json:"fields,omitempty" yaml:"fields,omitempty"`
	Character *string      `json:"character,omitempty" yaml:"character,omitempty"`
	Func      *string      `json:"func,omitempty" yaml:"func,omitempty"`
}

// FieldSnap is one serialized field of a container, in container key
// order.
type FieldSnap struct {
	Name  string     `json:"name" yaml:"name"`
	Value *ValueSnap `json:"value" yaml:"value"`
}

// NodeStateSnap is a persistent node-scoped state: the declaring
// node's id and its fields.
type NodeStateSnap struct {
	NodeId int          `json:"nodeId" yaml:"nodeId"`
	Fields []*FieldSnap `json:"fields" yaml:"fields"`
}

// CharacterSnap is a top-level character's fields, keyed by name.
type CharacterSnap struct {
	Name   string       `json:"name" yaml:"name"`
	Fields []*FieldSnap `json:"fields" yaml:"fields"`
}

// LocalBeatSnap is a beat declared in a frame's block.
type LocalBeatSnap struct {
	Name string  `json:"name" yaml:"name"`
	Beat NodeRef `json:"beat" yaml:"beat"`
}

// LocalCharSnap is a character declared in a frame's block; its
// fields are stored under NodeStates keyed by the declaring node.
type LocalCharSnap struct {
	Name   string `json:"name" yaml:"name"`
	NodeId int    `json:"nodeId" yaml:"nodeId"`
}

// FrameSnap is one entry of the execution stack.  HeadId identifies
// the child statement execution resumes from.  Branch, Option, and
// Beat locate the frame's block within the node (if branch, choice
// option, beat or callee body).
type FrameSnap struct {
	ScopeId int     `json:"scopeId" yaml:"scopeId"`
	Beat    NodeRef `json:"beat" yaml:"beat"`
	NodeId  int     `json:"nodeId" yaml:"nodeId"`
	Branch  string  `json:"branch,omitempty" yaml:"branch,omitempty"`
	Option  int     `json:"option,omitempty" yaml:"option,omitempty"`
	HeadId  int     `json:"headId" yaml:"headId"`

	Temp       []*FieldSnap     `json:"temp,omitempty" yaml:"temp,omitempty"`
	HasTemp    bool             `json:"hasTemp,omitempty" yaml:"hasTemp,omitempty"`
	LocalBeats []*LocalBeatSnap `json:"localBeats,omitempty" yaml:"localBeats,omitempty"`
	LocalChars []*LocalCharSnap `json:"localChars,omitempty" yaml:"localChars,omitempty"`
}

// ChoiceSnap records a choice whose options were computed and
// presented but not yet answered.  Restoring re-presents exactly
// these options -- guard and text expressions are not re-evaluated --
// and only the eventual selection is replayed against the option
// bodies of the restored script.
type ChoiceSnap struct {
	NodeId  int            `json:"nodeId" yaml:"nodeId"`
	Options []ChoiceOption `json:"options" yaml:"options"`
}

// Snapshot is the serialized form of a paused run: everything needed
// to reconstruct an equivalent paused Interpreter, possibly against
// an edited script whose node ids are preserved.
type Snapshot struct {
	Version int     `json:"version" yaml:"version"`
	Beat    NodeRef `json:"beat" yaml:"beat"`

	State      []*FieldSnap     `json:"state,omitempty" yaml:"state,omitempty"`
	NodeStates []*NodeStateSnap `json:"nodeStates,omitempty" yaml:"nodeStates,omitempty"`
	Characters []*CharacterSnap `json:"characters,omitempty" yaml:"characters,omitempty"`

	Stack  []*FrameSnap `json:"stack" yaml:"stack"`
	Choice *ChoiceSnap  `json:"choice,omitempty" yaml:"choice,omitempty"`
}

// Save externalizes the full paused state.  The run must be suspended
// at a dialogue, choice, or async call.
func (i *Interpreter) Save() (*Snapshot, error) {
	if i.status != Running {
		return nil, fmt.Errorf("cannot save a %s run", i.status)
	}
	if len(i.stack) == 0 {
		return nil, errors.New("cannot save between beat transitions")
	}

	snap := &Snapshot{
		Version: SnapshotVersion,
		Beat:    NodeRef{Id: i.curBeat.Id, Path: i.curBeat.Path},
		State:   encodeFields(i.topState.Fields),
	}

	for id, st := range i.nodeStates {
		snap.NodeStates = append(snap.NodeStates, &NodeStateSnap{
			NodeId: id,
			Fields: encodeFields(st.Fields),
		})
	}

	for _, name := range i.charOrder {
		c := i.chars[name]
		snap.Characters = append(snap.Characters, &CharacterSnap{
			Name:   name,
			Fields: encodeFields(c.State.Fields),
		})
	}

	for _, sc := range i.stack {
		f := &FrameSnap{
			ScopeId: sc.Id,
			Beat:    NodeRef{Id: sc.Beat.Id, Path: sc.Beat.Path},
			NodeId:  sc.NodeId,
			Branch:  sc.Branch,
			Option:  sc.Option,
			HeadId:  -1,
		}
		if sc.Head < len(sc.Block) {
			f.HeadId = sc.Block[sc.Head].Id
		}
		if sc.Temp != nil {
			f.HasTemp = true
			f.Temp = encodeFields(sc.Temp.Fields)
		}
		for name, ref := range sc.LocalBeats {
			f.LocalBeats = append(f.LocalBeats, &LocalBeatSnap{
				Name: name,
				Beat: NodeRef{Id: ref.Id, Path: ref.Path},
			})
		}
		for name, lc := range sc.localChars {
			f.LocalChars = append(f.LocalChars, &LocalCharSnap{
				Name:   name,
				NodeId: lc.declId,
			})
		}
		snap.Stack = append(snap.Stack, f)
	}

	if i.choice != nil {
		snap.Choice = &ChoiceSnap{
			NodeId:  i.choice.stmt.Id,
			Options: i.choice.opts,
		}
	}

	return snap, nil
}

// Restore reconstructs a paused Interpreter from a snapshot and a
// script -- the same script or an edited one.  Structures re-attach
// to the new tree by stable node id; an id the new tree lacks is a
// StaleReference, surfaced rather than ignored.
//
// The returned Interpreter is suspended.  Register functions, then
// call Resume to hand the host a fresh callback for the pending
// dialogue or choice.
func Restore(ctx context.Context, s *script.Script, snap *Snapshot, h *Handler) (*Interpreter, error) {
	if SnapshotVersion < snap.Version {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d",
			snap.Version, SnapshotVersion)
	}
	if len(snap.Stack) == 0 {
		return nil, errors.New("snapshot has no execution stack")
	}

	i, err := New(s, h)
	if err != nil {
		return nil, err
	}
	i.ctx = ctx

	// Boot first so declarations added by a script edit get their
	// defaults, then overlay the saved values.
	if err := i.boot(); err != nil {
		return nil, err
	}

	ref, have := i.idx.Beats[snap.Beat.Id]
	if !have {
		return nil, &StaleReference{Id: snap.Beat.Id, Path: snap.Beat.Path}
	}
	i.curBeat = ref
	i.status = Running
	i.finish = i.sched.wrap(i.finished)

	for _, f := range snap.State {
		i.topState.Fields.Set(f.Name, i.decodeValue(f.Value))
	}

	for _, ns := range snap.NodeStates {
		if !i.nodeExists(ns.NodeId) {
			return nil, &StaleReference{Id: ns.NodeId}
		}
		st := newState(0)
		for _, f := range ns.Fields {
			st.Fields.Set(f.Name, i.decodeValue(f.Value))
		}
		i.nodeStates[ns.NodeId] = st
	}

	for _, cs := range snap.Characters {
		c, have := i.chars[cs.Name]
		if !have {
			c = &Character{Name: cs.Name, State: newState(0)}
			i.chars[cs.Name] = c
			i.charOrder = append(i.charOrder, cs.Name)
		}
		for _, f := range cs.Fields {
			c.State.Fields.Set(f.Name, i.decodeValue(f.Value))
		}
	}

	// Rebuild the stack outermost first so that character chains
	// and beat resolution see their enclosing frames.
	scopes := make([]*Scope, 0, len(snap.Stack))
	for _, f := range snap.Stack {
		sc, err := i.restoreFrame(f)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
		if i.scopeSeq < sc.Id {
			i.scopeSeq = sc.Id
		}
	}

	// Chain the continuations inside out: when a frame's block
	// completes it pops and the enclosing frame continues after
	// its head statement.  The innermost head is the suspended
	// statement itself: it is re-executed on Resume -- except for
	// a pending choice, whose recorded options are re-presented
	// instead.
	next := i.finishRun
	for k := 0; k < len(scopes); k++ {
		sc := scopes[k]
		from := sc.Head + 1
		if k == len(scopes)-1 && snap.Choice == nil {
			from = sc.Head
		}
		prev, kc, kf := next, sc, from
		next = func() { i.stepBody(kc, kf, prev) }
	}

	if snap.Choice == nil {
		i.resume = next
		return i, nil
	}

	st, have := i.idx.Stmts[snap.Choice.NodeId]
	if !have || st.Choice == nil {
		return nil, &StaleReference{Id: snap.Choice.NodeId}
	}
	inner := scopes[len(scopes)-1]
	opts := snap.Choice.Options
	afterChoice := next
	i.resume = func() {
		var chosen int
		w := i.sched.wrap(func() { i.selectOption(st, inner, chosen, afterChoice) })
		sel := func(n int) {
			chosen = n
			i.sched.fire(w)
		}
		i.choice = &pendingChoice{stmt: st, scope: inner, opts: opts, sel: sel}
		if i.handler.Choice == nil {
			i.choice = nil
			afterChoice()
			return
		}
		i.handler.Choice(opts, sel)
		w.sync = false
	}

	return i, nil
}

// restoreFrame rebuilds one scope and pushes it.
func (i *Interpreter) restoreFrame(f *FrameSnap) (*Scope, error) {
	beat, have := i.idx.Beats[f.Beat.Id]
	if !have {
		return nil, &StaleReference{Id: f.Beat.Id, Path: f.Beat.Path}
	}

	block, have := i.idx.Block(f.NodeId, f.Branch, f.Option, f.Beat.Id)
	if !have {
		return nil, &StaleReference{Id: f.NodeId}
	}

	head := -1
	for at, st := range block {
		if st.Id == f.HeadId {
			head = at
			break
		}
	}
	if head < 0 {
		return nil, &StaleReference{Id: f.HeadId, Path: f.Beat.Path}
	}

	sc := &Scope{
		Id:     f.ScopeId,
		Beat:   beat,
		NodeId: f.NodeId,
		Branch: f.Branch,
		Option: f.Option,
		Block:  block,
		Head:   head,
	}
	i.stack = append(i.stack, sc)

	if f.HasTemp {
		sc.Temp = &State{Fields: NewOrderedFields(), ScopeId: sc.Id}
		for _, fd := range f.Temp {
			sc.Temp.Fields.Set(fd.Name, i.decodeValue(fd.Value))
		}
	}

	if ps, have := i.nodeStates[f.NodeId]; have {
		sc.Perm = ps
	}

	for _, lb := range f.LocalBeats {
		ref, have := i.idx.Beats[lb.Beat.Id]
		if !have {
			i.stack = i.stack[:len(i.stack)-1]
			return nil, &StaleReference{Id: lb.Beat.Id, Path: lb.Beat.Path}
		}
		if sc.LocalBeats == nil {
			sc.LocalBeats = make(map[string]*script.BeatRef, len(f.LocalBeats))
		}
		sc.LocalBeats[lb.Name] = ref
	}

	for _, lc := range f.LocalChars {
		if !i.nodeExists(lc.NodeId) {
			i.stack = i.stack[:len(i.stack)-1]
			return nil, &StaleReference{Id: lc.NodeId}
		}
		ps, have := i.nodeStates[lc.NodeId]
		if !have {
			ps = newState(0)
			i.nodeStates[lc.NodeId] = ps
		}
		// The scope being rebuilt is already on the stack, so
		// the parent search sees the enclosing frames only.
		var parent *Character
		for k := len(i.stack) - 2; 0 <= k; k-- {
			if plc, have := i.stack[k].localChars[lc.Name]; have {
				parent = plc.char
				break
			}
		}
		if parent == nil {
			parent = i.chars[lc.Name]
		}
		if sc.localChars == nil {
			sc.localChars = make(map[string]*localChar, len(f.LocalChars))
		}
		sc.localChars[lc.Name] = &localChar{
			declId: lc.NodeId,
			char:   &Character{Name: lc.Name, State: ps, Parent: parent},
		}
	}

	return sc, nil
}

func (i *Interpreter) nodeExists(id int) bool {
	if _, have := i.idx.Stmts[id]; have {
		return true
	}
	if _, have := i.idx.Decls[id]; have {
		return true
	}
	_, have := i.idx.Beats[id]
	return have
}

func encodeFields(fs Fields) []*FieldSnap {
	keys := fs.Keys()
	acc := make([]*FieldSnap, 0, len(keys))
	for _, k := range keys {
		acc = append(acc, &FieldSnap{Name: k, Value: encodeValue(fs.Get(k))})
	}
	return acc
}

func encodeValue(v Value) *ValueSnap {
	switch vv := v.(type) {
	case nil:
		return &ValueSnap{Null: true}
	case bool:
		return &ValueSnap{Bool: &vv}
	case float64:
		return &ValueSnap{Num: &vv}
	case string:
		return &ValueSnap{Str: &vv}
	case List:
		xs := make([]*ValueSnap, vv.Len())
		for n := range xs {
			xs[n] = encodeValue(vv.At(n))
		}
		if xs == nil {
			xs = []*ValueSnap{}
		}
		return &ValueSnap{Array: xs}
	case Fields:
		fs := encodeFields(vv)
		if fs == nil {
			fs = []*FieldSnap{}
		}
		return &ValueSnap{Fields: fs}
	case *Character:
		name := vv.Name
		return &ValueSnap{Character: &name}
	case *FuncRef:
		name := vv.Name
		return &ValueSnap{Func: &name}
	}
	return &ValueSnap{Null: true}
}

// decodeValue rebuilds a Value.  Character references resolve against
// top-level characters; function references resolve lazily at call
// time, so functions may be registered after Restore.
func (i *Interpreter) decodeValue(v *ValueSnap) Value {
	switch {
	case v == nil || v.Null:
		return nil
	case v.Bool != nil:
		return *v.Bool
	case v.Num != nil:
		return *v.Num
	case v.Str != nil:
		return *v.Str
	case v.Array != nil:
		xs := make([]Value, len(v.Array))
		for n, x := range v.Array {
			xs[n] = i.decodeValue(x)
		}
		return NewVector(xs...)
	case v.Fields != nil:
		fs := NewOrderedFields()
		for _, f := range v.Fields {
			fs.Set(f.Name, i.decodeValue(f.Value))
		}
		return fs
	case v.Character != nil:
		if c, have := i.chars[*v.Character]; have {
			return c
		}
		return nil
	case v.Func != nil:
		return &FuncRef{Name: *v.Func}
	}
	return nil
}
