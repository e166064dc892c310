// Package core provides the execution engine for fable scripts.
//
// A script (see package script) declares named beats containing text,
// dialogue, choices, conditionals, state, and transitions.  The
// primary type is Interpreter, and the primary method is Start().  An
// Interpreter walks a script's tree, resolving names against a stack
// of scopes, and hands control to the host at every dialogue and
// choice point.  The host supplies a Handler whose callbacks receive
// a resumption function; execution continues when (and only when) the
// host invokes it.
//
// Control flow is continuation-passing run on an explicit trampoline
// (see sched.go), so a beat of a hundred thousand consecutive lines
// runs in constant native stack depth.  There are no goroutines here:
// the engine is single-threaded and cooperative, and host callbacks
// must not re-enter one Interpreter from another goroutine without
// external serialization.
//
// At any suspension point, Save() externalizes the complete paused
// state as a versioned Snapshot.  Restore() rebuilds an equivalent
// paused Interpreter from a Snapshot and a Script -- the same script
// or a later edit of it, as long as the node ids referenced by the
// Snapshot still exist.
package core
