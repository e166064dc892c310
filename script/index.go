package script

import (
	"fmt"
	"sort"
)

// BeatRef is a resolved reference to a beat: its declaring node id, a
// dotted path for diagnostics, and the beat itself.
type BeatRef struct {
	Id   int
	Path string
	Beat *Beat
}

// Index resolves stable node ids to nodes of a particular Script.
// Snapshots reference nodes by id; an Index of the (possibly edited)
// script answers those references on restore.
type Index struct {
	// Beats maps a beat's declaring node id to its reference.
	// Includes beats nested in other beats' bodies.
	Beats map[int]*BeatRef

	// BeatsByPath maps a beat's dotted path to its reference.
	BeatsByPath map[string]*BeatRef

	// TopBeats maps top-level beat names to references, in
	// declaration order (see TopBeatNames).
	TopBeats map[string]*BeatRef

	// TopBeatNames is the declaration order of TopBeats.
	TopBeatNames []string

	// Stmts maps statement ids to statements.
	Stmts map[int]*Stmt

	// Decls maps top-level declaration ids to declarations.
	Decls map[int]*Decl
}

// NewIndex walks the script and builds an Index.
//
// Returns an error for duplicate top-level beat or character names
// and for duplicate node ids, which indicate a broken parser or a
// hand-edited document.
func NewIndex(s *Script) (*Index, error) {
	idx := &Index{
		Beats:       make(map[int]*BeatRef),
		BeatsByPath: make(map[string]*BeatRef),
		TopBeats:    make(map[string]*BeatRef),
		Stmts:       make(map[int]*Stmt),
		Decls:       make(map[int]*Decl),
	}

	chars := make(map[string]bool)

	for _, d := range s.Decls {
		if _, have := idx.Decls[d.Id]; have {
			return nil, fmt.Errorf("duplicate node id %d", d.Id)
		}
		idx.Decls[d.Id] = d

		switch {
		case d.Beat != nil:
			if _, have := idx.TopBeats[d.Beat.Name]; have {
				return nil, &DuplicateBeat{Name: d.Beat.Name, Pos: d.Pos}
			}
			ref := &BeatRef{Id: d.Id, Path: d.Beat.Name, Beat: d.Beat}
			idx.TopBeats[d.Beat.Name] = ref
			idx.TopBeatNames = append(idx.TopBeatNames, d.Beat.Name)
			idx.Beats[d.Id] = ref
			idx.BeatsByPath[ref.Path] = ref
			if err := idx.addBody(ref.Path, d.Beat.Body); err != nil {
				return nil, err
			}
		case d.Character != nil:
			if chars[d.Character.Name] {
				return nil, &DuplicateCharacter{Name: d.Character.Name, Pos: d.Pos}
			}
			chars[d.Character.Name] = true
		}
	}

	return idx, nil
}

func (idx *Index) addBody(path string, body []*Stmt) error {
	for _, st := range body {
		if err := idx.addStmt(path, st); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) addStmt(path string, st *Stmt) error {
	if _, have := idx.Stmts[st.Id]; have {
		return fmt.Errorf("duplicate node id %d", st.Id)
	}
	idx.Stmts[st.Id] = st

	switch {
	case st.Beat != nil:
		ref := &BeatRef{Id: st.Id, Path: path + "." + st.Beat.Name, Beat: st.Beat}
		idx.Beats[st.Id] = ref
		idx.BeatsByPath[ref.Path] = ref
		return idx.addBody(ref.Path, st.Beat.Body)
	case st.Choice != nil:
		for _, opt := range st.Choice.Options {
			if err := idx.addBody(path, opt.Body); err != nil {
				return err
			}
		}
	case st.If != nil:
		if err := idx.addBody(path, st.If.Then); err != nil {
			return err
		}
		return idx.addBody(path, st.If.Else)
	}

	return nil
}

// Block locates the child-statement list that a snapshot frame refers
// to.  The frame's node is either a beat (its body), an if statement
// (then or else branch), a choice statement (one option's body), or a
// call statement (the callee's body, identified by beat id).
func (idx *Index) Block(nodeId int, branch string, option int, beatId int) ([]*Stmt, bool) {
	if ref, have := idx.Beats[nodeId]; have {
		return ref.Beat.Body, true
	}
	st, have := idx.Stmts[nodeId]
	if !have {
		return nil, false
	}
	switch {
	case st.If != nil:
		if branch == "else" {
			return st.If.Else, true
		}
		return st.If.Then, true
	case st.Choice != nil:
		if option < 0 || len(st.Choice.Options) <= option {
			return nil, false
		}
		return st.Choice.Options[option].Body, true
	case st.Call != nil:
		ref, have := idx.Beats[beatId]
		if !have {
			return nil, false
		}
		return ref.Beat.Body, true
	}
	return nil, false
}

// DefaultBeat resolves the initial beat when Start is given no name:
// a beat literally named "_" if present, else the first declared
// beat.
func (idx *Index) DefaultBeat() (*BeatRef, bool) {
	if ref, have := idx.TopBeats["_"]; have {
		return ref, true
	}
	if len(idx.TopBeatNames) == 0 {
		return nil, false
	}
	return idx.TopBeats[idx.TopBeatNames[0]], true
}

// Transitions reports, for each beat path, the set of transition
// targets appearing in that beat's body.  Used by the tools package
// to draw the beat graph.
func (idx *Index) Transitions() map[string][]string {
	acc := make(map[string][]string, len(idx.Beats))
	for _, ref := range idx.Beats {
		set := make(map[string]bool)
		var scan func(body []*Stmt)
		scan = func(body []*Stmt) {
			for _, st := range body {
				switch {
				case st.Transition != nil:
					set[st.Transition.Target] = true
				case st.If != nil:
					scan(st.If.Then)
					scan(st.If.Else)
				case st.Choice != nil:
					for _, opt := range st.Choice.Options {
						scan(opt.Body)
					}
				}
				// Nested beat bodies belong to the nested
				// beat's own entry.
			}
		}
		scan(ref.Beat.Body)
		targets := make([]string, 0, len(set))
		for t := range set {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		acc[ref.Path] = targets
	}
	return acc
}
