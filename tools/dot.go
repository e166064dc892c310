package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/fable-lang/fable/script"

	"gopkg.in/yaml.v2"
)

// Dot makes a Graphviz dot file for the given script's beat graph.  A
// really ugly dot file.
//
// The optional fromBeat and toBeat can be paths of beats during a
// transition.  If non-zero, then the edge between them will be red.
// Maybe.
func Dot(s *script.Script, w io.WriteCloser, fromBeat, toBeat string) error {
	idx, err := script.NewIndex(s)
	if err != nil {
		return err
	}
	transitions := idx.Transitions()

	log.Printf("processing %d beats", len(idx.Beats))

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	nids := make(map[string]string)
	num := 0
	nid := func(path string) string {
		if id, already := nids[path]; already {
			return id
		}
		num++
		id := fmt.Sprintf("n%d", num)
		nids[path] = id
		return id
	}

	seen := make(map[string]bool)
	node := func(ref *script.BeatRef) error {
		if ref == nil {
			return fmt.Errorf("unknown beat")
		}
		if seen[ref.Path] {
			return nil
		}
		seen[ref.Path] = true

		label := ref.Path
		if ref.Beat.Doc != "" {
			doc := ref.Beat.Doc
			if 40 < len(doc) {
				period := strings.Index(doc, ". ")
				if 0 < period {
					doc = doc[0 : period+1]
				}
			}
			label += "<BR/><FONT POINT-SIZE='8'>" + doc + "</FONT>"
		}

		if fields := beatStateFields(ref.Beat); 0 < len(fields) {
			ys, err := yaml.Marshal(fields)
			if err != nil {
				ys = []byte(err.Error())
			}
			src := strings.Replace(string(ys), "<", `&lt;`, -1)
			src = strings.Replace(src, ">", `&gt;`, -1)
			label += `<FONT POINT-SIZE="6">` +
				`<BR/>` + strings.Replace(src, "\n", `<BR ALIGN="LEFT"/>`, -1) + `<BR/>` +
				`</FONT>`
		}

		fillcolor := "#99ddc8"
		style := "filled"
		if hasChoice(ref.Beat.Body) {
			fillcolor = "#2d93ad"
		}
		color := "black"
		if toBeat == ref.Path {
			color = "red"
			fillcolor = "#f98b8b"
		}
		if len(transitions[ref.Path]) == 0 {
			style += ",dashed"
		}
		fmt.Fprintf(w, "  %s [shape=\"record\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			nid(ref.Path), style, color, fillcolor, label)

		return nil
	}

	process := func(ref *script.BeatRef) error {
		if err := node(ref); err != nil {
			log.Printf("process error with %s: %v", ref.Path, err)
			return err
		}
		targets := transitions[ref.Path]
		log.Printf("  processing %s transitions: %d", ref.Path, len(targets))
		for i, target := range targets {
			if target == script.EndTarget {
				end := nid("(end)")
				if !seen["(end)"] {
					seen["(end)"] = true
					fmt.Fprintf(w, "  %s [shape=\"doublecircle\", style=\"filled\", fillcolor=\"#52aa5e\", label=<end> ]\n", end)
				}
				fmt.Fprintf(w, "  %s -> %s [ label = <%d/%d> ]\n",
					nid(ref.Path), end, i+1, len(targets))
				continue
			}
			tref, have := idx.BeatsByPath[target]
			if !have {
				tref, have = idx.TopBeats[target]
			}
			if !have {
				log.Printf("process transition error with %s: unresolved", target)
				return fmt.Errorf("unresolved transition target '%s'", target)
			}
			if err := node(tref); err != nil {
				return err
			}
			color := "black"
			if fromBeat == ref.Path && toBeat == tref.Path {
				color = "red"
			}
			label := fmt.Sprintf("%d/%d %s", i+1, len(targets), target)
			fmt.Fprintf(w, "  %s -> %s [ color=\"%s\" label = <%s> ]\n",
				nid(ref.Path), nid(tref.Path), color, label)
		}
		return nil
	}

	for _, name := range idx.TopBeatNames {
		if err := process(idx.TopBeats[name]); err != nil {
			return err
		}
	}
	for _, ref := range idx.Beats {
		if seen[ref.Path] {
			continue
		}
		if err := process(ref); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "}\n")
	return w.Close()
}

// PNG generates a PNG image based on output from Dot.
//
// This function will write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(s *script.Script, basename string, fromBeat, toBeat string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	// ToDo: Use mktemp
	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(s, dotfile, fromBeat, toBeat); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng -Gstart=1 " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

// beatStateFields reports the names of state fields declared directly
// in the beat's body.
func beatStateFields(b *script.Beat) []string {
	var acc []string
	for _, st := range b.Body {
		if st.State == nil {
			continue
		}
		for _, f := range st.State.Fields {
			acc = append(acc, f.Name)
		}
	}
	return acc
}

func hasChoice(body []*script.Stmt) bool {
	for _, st := range body {
		switch {
		case st.Choice != nil:
			return true
		case st.If != nil:
			if hasChoice(st.If.Then) || hasChoice(st.If.Else) {
				return true
			}
		}
	}
	return false
}
