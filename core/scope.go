package core

import (
	"github.com/fable-lang/fable/script"
)

// State is a bundle of script-visible fields.  A temporary State is
// owned by exactly one Scope (ScopeId is that scope's id) and dies
// with it.  A persistent State (ScopeId zero) is owned by the
// Interpreter and keyed either globally or by the id of the node that
// declared it.
type State struct {
	Fields  Fields
	ScopeId int
}

func newState(scopeId int) *State {
	return &State{
		Fields:  NewOrderedFields(),
		ScopeId: scopeId,
	}
}

// Character is a named persistent State.  A character re-declared
// inside a nested beat extends and shadows the outer character: Get
// walks the chain, so fields not overridden remain visible from the
// parent, while Set always writes the innermost instance.
type Character struct {
	Name   string
	State  *State
	Parent *Character
}

// Get reads a field, consulting parents for fields the innermost
// instance does not shadow.  Missing everywhere yields nil.
func (c *Character) Get(key string) Value {
	for at := c; at != nil; at = at.Parent {
		if at.State.Fields.Exists(key) {
			return at.State.Fields.Get(key)
		}
	}
	return nil
}

// Set writes a field on the innermost instance.
func (c *Character) Set(key string, v Value) {
	c.State.Fields.Set(key, v)
}

// Exists reports whether the field is visible anywhere on the chain.
func (c *Character) Exists(key string) bool {
	for at := c; at != nil; at = at.Parent {
		if at.State.Fields.Exists(key) {
			return true
		}
	}
	return false
}

// Keys lists visible fields: the innermost instance's keys in order,
// then inherited keys it does not shadow.
func (c *Character) Keys() []string {
	seen := make(map[string]bool)
	var acc []string
	for at := c; at != nil; at = at.Parent {
		for _, k := range at.State.Fields.Keys() {
			if !seen[k] {
				seen[k] = true
				acc = append(acc, k)
			}
		}
	}
	return acc
}

// localChar is a character declared in a scope's body: the instance
// plus the declaring node's id (the persistence key).
type localChar struct {
	declId int
	char   *Character
}

// Scope is one stack frame of execution.  It is tied to the block of
// a beat body, an if branch, a choice option, or a beat call, and it
// owns any temporary state and locally declared beats and characters.
//
// Scope ids are assigned from a counter that resets to 1 on every
// beat transition, so they are unique only within one execution
// epoch.
type Scope struct {
	Id   int
	Beat *script.BeatRef

	// NodeId, Branch, and Option identify the block this scope
	// runs: the body of a beat (or callee, for a beat call), one
	// branch of an if, or one option of a choice.
	NodeId int
	Branch string
	Option int

	Block []*script.Stmt
	Head  int // index of the child statement currently executing

	LocalBeats map[string]*script.BeatRef
	localChars map[string]*localChar

	Temp *State
	Perm *State // persistent state declared at this scope's node, if any
}

// ref is the result of name resolution: exactly one field is set.
type ref struct {
	state *State
	key   string
	char  *Character
	fn    *FuncRef
}

// resolveAccess resolves a name with the precedence of the language:
// innermost-first over scope-owned state (temporary, then the
// persistent state declared at that scope's node, then locally
// declared characters), then top-level state, then top-level
// characters, then registered functions.
func (i *Interpreter) resolveAccess(name string) (*ref, error) {
	for k := len(i.stack) - 1; 0 <= k; k-- {
		sc := i.stack[k]
		if sc.Temp != nil && sc.Temp.Fields.Exists(name) {
			return &ref{state: sc.Temp, key: name}, nil
		}
		if sc.Perm != nil && sc.Perm.Fields.Exists(name) {
			return &ref{state: sc.Perm, key: name}, nil
		}
		if lc, have := sc.localChars[name]; have {
			return &ref{char: lc.char}, nil
		}
	}
	if i.topState.Fields.Exists(name) {
		return &ref{state: i.topState, key: name}, nil
	}
	if c, have := i.chars[name]; have {
		return &ref{char: c}, nil
	}
	if f, have := i.funcs[name]; have {
		return &ref{fn: &FuncRef{Name: name, F: f}}, nil
	}
	return nil, &UndefinedVariable{Name: name}
}

// resolveBeat resolves a beat name for a call or transition: locally
// declared beats from innermost scope outward, then top-level beats.
func (i *Interpreter) resolveBeat(name string) (*script.BeatRef, error) {
	for k := len(i.stack) - 1; 0 <= k; k-- {
		if ref, have := i.stack[k].LocalBeats[name]; have {
			return ref, nil
		}
	}
	if ref, have := i.idx.TopBeats[name]; have {
		return ref, nil
	}
	return nil, &BeatNotFound{Name: name}
}

// visibleCharacter finds the character a nested re-declaration
// extends: the innermost local declaration, else the top-level
// character.  Reports false if the name is new.
func (i *Interpreter) visibleCharacter(name string) (*Character, bool) {
	for k := len(i.stack) - 1; 0 <= k; k-- {
		if lc, have := i.stack[k].localChars[name]; have {
			return lc.char, true
		}
	}
	c, have := i.chars[name]
	return c, have
}

func (i *Interpreter) pushScope(beat *script.BeatRef, nodeId int, branch string, option int, block []*script.Stmt) *Scope {
	i.scopeSeq++
	sc := &Scope{
		Id:     i.scopeSeq,
		Beat:   beat,
		NodeId: nodeId,
		Branch: branch,
		Option: option,
		Block:  block,
	}
	i.stack = append(i.stack, sc)
	return sc
}

// popScope removes the given scope, which must be the innermost.  The
// scope's temporary state, local beats, and local characters die with
// it.
func (i *Interpreter) popScope(sc *Scope) {
	n := len(i.stack)
	if n == 0 || i.stack[n-1] != sc {
		// A continuation from a discarded epoch; nothing to do.
		return
	}
	i.stack = i.stack[:n-1]
}
