package tools

import (
	"fmt"
	"io"
	"log"

	"github.com/fable-lang/fable/script"
)

type MermaidOpts struct {
	// ShowTargets will result in an edge label naming the
	// transition target.
	ShowTargets bool `json:"showTargets"`

	// ChoiceFill is the fill color for beats that present choices.
	// Does not apply if ChoiceClass is set.
	ChoiceFill string `json:"choiceFill,omitempty"`

	// ChoiceClass will be the CSS class for choice beats.  Not yet
	// implemented.
	ChoiceClass string `json:"choiceClass,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given script's beat graph.
func Mermaid(s *script.Script, w io.WriteCloser, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowTargets: true,
			ChoiceFill:  "#bcf2db",
		}
	}

	idx, err := script.NewIndex(s)
	if err != nil {
		return err
	}
	transitions := idx.Transitions()

	log.Printf("processing %d beats", len(idx.Beats))

	fmt.Fprintf(w, "graph TB\n")

	nids := make(map[string]string)
	num := 0

	node := func(ref *script.BeatRef) (string, error) {
		if nid, already := nids[ref.Path]; already {
			return nid, nil
		}
		num++
		nid := fmt.Sprintf("n%d", num)
		nids[ref.Path] = nid

		if hasChoice(ref.Beat.Body) {
			fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, ref.Path)
			if opts.ChoiceClass == "" && opts.ChoiceFill != "" {
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.ChoiceFill)
			}
		} else {
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, ref.Path)
		}

		return nid, nil
	}

	process := func(ref *script.BeatRef) error {
		nid, err := node(ref)
		if err != nil {
			log.Printf("process error with %s: %v", ref.Path, err)
			return err
		}
		targets := transitions[ref.Path]
		log.Printf("  processing %s transitions: %d", ref.Path, len(targets))

		for _, target := range targets {
			if target == script.EndTarget {
				continue
			}
			tref, have := idx.BeatsByPath[target]
			if !have {
				tref, have = idx.TopBeats[target]
			}
			if !have {
				return fmt.Errorf("unresolved transition target '%s'", target)
			}
			to, err := node(tref)
			if err != nil {
				return err
			}

			label := ""
			if opts.ShowTargets {
				label = fmt.Sprintf(`-- "%s"`, target)
			}

			fmt.Fprintf(w, "  %s %s --> %s\n", nid, label, to)
		}

		return nil
	}

	for _, name := range idx.TopBeatNames {
		if err := process(idx.TopBeats[name]); err != nil {
			return err
		}
	}
	for _, ref := range idx.Beats {
		if _, already := nids[ref.Path]; already {
			continue
		}
		if err := process(ref); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\n")
	log.Printf("mermaid gen done")

	return w.Close()
}
