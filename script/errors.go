package script

// These errors describe structural problems with a script, detected
// while indexing.  The engine's own runtime errors live in the core
// package.

// DuplicateBeat occurs when two top-level beats share a name.
type DuplicateBeat struct {
	Name string
	Pos  Pos
}

func (e *DuplicateBeat) Error() string {
	return `duplicate beat "` + e.Name + `"`
}

// DuplicateCharacter occurs when two top-level characters share a
// name.
type DuplicateCharacter struct {
	Name string
	Pos  Pos
}

func (e *DuplicateCharacter) Error() string {
	return `duplicate character "` + e.Name + `"`
}
