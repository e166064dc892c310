package core

import (
	"strings"

	"github.com/fable-lang/fable/script"
)

// TagSpan is an inline tag resolved against the final text: the tag
// name plus the byte offsets of the span it covers.
type TagSpan struct {
	Name  string `json:"name" yaml:"name"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// evalTpl flattens a string template: interpolations are evaluated
// and rendered, and tag markers become TagSpans with byte offsets
// into the final text.  Spans are ordered by their opening position.
// A tag left open when the template ends closes at the end of the
// text; a stray closing tag is ignored.
func (i *Interpreter) evalTpl(tpl *script.Tpl) (string, []TagSpan, error) {
	if tpl == nil {
		return "", nil, nil
	}

	var (
		b     strings.Builder
		spans []TagSpan
		open  []int // indexes into spans with End not yet known
	)

	for _, p := range tpl.Parts {
		switch {
		case p.Interp != nil:
			v, err := i.evalExpr(p.Interp)
			if err != nil {
				return "", nil, err
			}
			b.WriteString(ToString(v))
		case p.Tag != nil:
			if !p.Tag.Close {
				spans = append(spans, TagSpan{Name: p.Tag.Name, Start: b.Len(), End: -1})
				open = append(open, len(spans)-1)
				continue
			}
			for k := len(open) - 1; 0 <= k; k-- {
				at := open[k]
				if spans[at].Name == p.Tag.Name {
					spans[at].End = b.Len()
					open = append(open[:k], open[k+1:]...)
					break
				}
			}
		default:
			b.WriteString(p.Text)
		}
	}

	text := b.String()
	for _, at := range open {
		spans[at].End = len(text)
	}

	return text, spans, nil
}
