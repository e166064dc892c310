package tools

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/fable-lang/fable/script"

	md "github.com/russross/blackfriday/v2"
)

// RenderScriptHTML writes an HTML fragment documenting the script:
// its doc, its characters, and each beat with its dialogue, choices,
// and transitions.
func RenderScriptHTML(s *script.Script, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="scriptDoc doc">%s</div>`, md.Run([]byte(s.Doc)))

	{ // Characters
		f(`<div class="characters"><table>`)
		for _, d := range s.Decls {
			if d.Character == nil {
				continue
			}
			f(`<tr class="character"><td><span class="characterName">%s</span></td><td>`,
				html.EscapeString(d.Character.Name))
			for _, fd := range d.Character.Fields {
				f(`<div class="field"><code>%s</code></div>`, html.EscapeString(fd.Name))
			}
			f(`</td></tr>`)
		}
		f(`</table></div>`)
	}

	idx, err := script.NewIndex(s)
	if err != nil {
		return err
	}

	{ // Beats
		f(`<div class="beats"><table>`)
		fn := func(ref *script.BeatRef) {
			f(`<tr class="beat"><td><span id="%s" class="beatName">%s</span></td><td>`,
				html.EscapeString(ref.Path), html.EscapeString(ref.Path))

			if ref.Beat.Doc != "" {
				f(`<div class="beatDoc doc">%s</div>`, md.Run([]byte(ref.Beat.Doc)))
			}

			renderBody(f, ref.Beat.Body)

			f(`</td></tr>`)
		}
		for _, name := range idx.TopBeatNames {
			fn(idx.TopBeats[name])
		}
		f(`</table></div>`)
	}

	return nil
}

func renderBody(f func(string, ...interface{}), body []*script.Stmt) {
	f(`<div class="body"><table>`)
	for _, st := range body {
		switch {
		case st.Text != nil:
			speaker := "&mdash;"
			if st.Text.Speaker != "" {
				speaker = html.EscapeString(st.Text.Speaker)
			}
			f(`<tr class="line"><td class="speaker">%s</td><td>%s</td></tr>`,
				speaker, html.EscapeString(TplString(st.Text.Line)))
		case st.Choice != nil:
			f(`<tr class="choice"><td>choice</td><td><table>`)
			for i, o := range st.Choice.Options {
				f(`<tr><td><div class="optionNum">%d</div></td><td>`, i)
				f(`<div class="optionText">%s</div>`, html.EscapeString(TplString(o.Text)))
				if o.If != nil {
					f(`<div class="guard"><code>guarded</code></div>`)
				}
				renderBody(f, o.Body)
				f(`</td></tr>`)
			}
			f(`</table></td></tr>`)
		case st.If != nil:
			f(`<tr class="cond"><td>if</td><td>`)
			renderBody(f, st.If.Then)
			if 0 < len(st.If.Else) {
				f(`<div>else</div>`)
				renderBody(f, st.If.Else)
			}
			f(`</td></tr>`)
		case st.Transition != nil:
			target := st.Transition.Target
			if target == script.EndTarget {
				f(`<tr class="transition"><td>end</td><td></td></tr>`)
			} else {
				f(`<tr class="transition"><td>go</td><td><a href="#%s"><code>%s</code></a></td></tr>`,
					html.EscapeString(target), html.EscapeString(target))
			}
		case st.Beat != nil:
			f(`<tr class="nestedBeat"><td><code>%s</code></td><td>`, html.EscapeString(st.Beat.Name))
			renderBody(f, st.Beat.Body)
			f(`</td></tr>`)
		}
	}
	f(`</table></div>`)
}

// TplString flattens a template for display without evaluating it:
// interpolations render as {...} and tag markers are dropped.
func TplString(tpl *script.Tpl) string {
	if tpl == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range tpl.Parts {
		switch {
		case p.Interp != nil:
			b.WriteString("{...}")
		case p.Tag != nil:
		default:
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// RenderScriptPage writes a complete HTML page for the script.
func RenderScriptPage(s *script.Script, out io.Writer, cssFiles []string, includeGraph bool) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/script-html.css"}
	}

	js, err := json.Marshal(s)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(s.Name))

	if includeGraph {
		fmt.Fprintf(out, `
  <script src="https://cdnjs.cloudflare.com/ajax/libs/d3/4.12.2/d3.min.js"></script>
  <script src="https://cdnjs.cloudflare.com/ajax/libs/cytoscape/3.2.8/cytoscape.min.js"></script>
  <script src="/static/script-html.js"></script>
  <script>
  var thisScript = %s;
  </script>
`, js)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(s.Name))

	if includeGraph {
		fmt.Fprintf(out, `<div id="graph"></div>`)
	}

	if err = RenderScriptHTML(s, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderScriptPage reads a script file and renders its page.
func ReadAndRenderScriptPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	s, err := script.LoadFile(filename)
	if err != nil {
		return err
	}
	return RenderScriptPage(s, out, cssFiles, includeGraph)
}
