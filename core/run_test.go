package core

// Test support: a script builder that assigns node ids as it goes,
// and a recording host that drives runs.

import (
	"github.com/fable-lang/fable/script"
)

type sb struct {
	n int
}

func (b *sb) id() int {
	b.n++
	return b.n
}

func (b *sb) num(x float64) *script.Expr {
	return &script.Expr{Num: &x}
}

func (b *sb) str(s string) *script.Expr {
	return &script.Expr{Str: script.T(s)}
}

func (b *sb) boolean(x bool) *script.Expr {
	return &script.Expr{Bool: &x}
}

func (b *sb) null() *script.Expr {
	return &script.Expr{Null: true}
}

func (b *sb) acc(name string) *script.Expr {
	return &script.Expr{Access: &name}
}

func (b *sb) field(obj *script.Expr, name string) *script.Expr {
	return &script.Expr{Field: &script.FieldAccess{Obj: obj, Name: name}}
}

func (b *sb) index(obj, at *script.Expr) *script.Expr {
	return &script.Expr{Index: &script.IndexAccess{Obj: obj, Index: at}}
}

func (b *sb) array(els ...*script.Expr) *script.Expr {
	if els == nil {
		els = []*script.Expr{}
	}
	return &script.Expr{Array: els}
}

func (b *sb) bin(op string, l, r *script.Expr) *script.Expr {
	return &script.Expr{Binary: &script.Binary{Op: op, Left: l, Right: r}}
}

func (b *sb) callExpr(name string, args ...*script.Expr) *script.Expr {
	return &script.Expr{Call: &script.Call{Target: b.acc(name), Args: args}}
}

func (b *sb) fi(name string, v *script.Expr) *script.FieldInit {
	return &script.FieldInit{Name: name, Value: v}
}

func (b *sb) line(speaker, text string) *script.Stmt {
	return &script.Stmt{Id: b.id(), Text: &script.Text{Speaker: speaker, Line: script.T(text)}}
}

func (b *sb) text(speaker string, parts ...*script.Part) *script.Stmt {
	return &script.Stmt{Id: b.id(), Text: &script.Text{Speaker: speaker, Line: &script.Tpl{Parts: parts}}}
}

func (b *sb) interp(e *script.Expr) *script.Part {
	return &script.Part{Interp: e}
}

func (b *sb) lit(s string) *script.Part {
	return &script.Part{Text: s}
}

func (b *sb) tag(name string, close bool) *script.Part {
	return &script.Part{Tag: &script.Tag{Name: name, Close: close}}
}

func (b *sb) assign(target *script.Expr, op string, v *script.Expr) *script.Stmt {
	return &script.Stmt{Id: b.id(), Assign: &script.Assign{Target: target, Op: op, Value: v}}
}

func (b *sb) set(name, op string, v *script.Expr) *script.Stmt {
	return b.assign(b.acc(name), op, v)
}

func (b *sb) trans(target string) *script.Stmt {
	return &script.Stmt{Id: b.id(), Transition: &script.Transition{Target: target}}
}

func (b *sb) state(temp bool, fields ...*script.FieldInit) *script.Stmt {
	return &script.Stmt{Id: b.id(), State: &script.StateDecl{Temporary: temp, Fields: fields}}
}

func (b *sb) char(name string, fields ...*script.FieldInit) *script.Stmt {
	return &script.Stmt{Id: b.id(), Character: &script.CharacterDecl{Name: name, Fields: fields}}
}

func (b *sb) choice(opts ...*script.Option) *script.Stmt {
	return &script.Stmt{Id: b.id(), Choice: &script.Choice{Options: opts}}
}

func (b *sb) opt(text string, guard *script.Expr, body ...*script.Stmt) *script.Option {
	return &script.Option{Text: script.T(text), If: guard, Body: body}
}

func (b *sb) iff(cond *script.Expr, then, els []*script.Stmt) *script.Stmt {
	return &script.Stmt{Id: b.id(), If: &script.If{Cond: cond, Then: then, Else: els}}
}

func (b *sb) call(name string, args ...*script.Expr) *script.Stmt {
	return &script.Stmt{Id: b.id(), Call: &script.Call{Target: b.acc(name), Args: args}}
}

func (b *sb) beatStmt(name string, body ...*script.Stmt) *script.Stmt {
	return &script.Stmt{Id: b.id(), Beat: &script.Beat{Name: name, Body: body}}
}

func (b *sb) beat(name string, body ...*script.Stmt) *script.Decl {
	return &script.Decl{Id: b.id(), Beat: &script.Beat{Name: name, Body: body}}
}

func (b *sb) stateDecl(fields ...*script.FieldInit) *script.Decl {
	return &script.Decl{Id: b.id(), State: &script.StateDecl{Fields: fields}}
}

func (b *sb) charDecl(name string, fields ...*script.FieldInit) *script.Decl {
	return &script.Decl{Id: b.id(), Character: &script.CharacterDecl{Name: name, Fields: fields}}
}

func scriptOf(decls ...*script.Decl) *script.Script {
	return &script.Script{Name: "test", Decls: decls}
}

// play records a run.  Dialogue resumes immediately unless pauseAt
// matches the line number (1-based); choices answer from picks, or
// park the selection function when holdChoice is set.
type play struct {
	lines      []string
	tags       [][]TagSpan
	choices    [][]ChoiceOption
	picks      []int
	pauseAt    int
	resume     func()
	holdChoice bool
	sel        func(int)
	finished   bool
	err        *RuntimeError
}

func (p *play) handler() *Handler {
	return &Handler{
		Dialogue: func(speaker, text string, tags []TagSpan, resume func()) {
			line := text
			if speaker != "" {
				line = speaker + ": " + text
			}
			p.lines = append(p.lines, line)
			p.tags = append(p.tags, tags)
			if p.pauseAt == len(p.lines) {
				p.resume = resume
				return
			}
			resume()
		},
		Choice: func(options []ChoiceOption, sel func(int)) {
			p.choices = append(p.choices, options)
			if p.holdChoice {
				p.sel = sel
				return
			}
			n := -1
			if 0 < len(p.picks) {
				n = p.picks[0]
				p.picks = p.picks[1:]
			}
			sel(n)
		},
		Finish: func() {
			p.finished = true
		},
		Error: func(e *RuntimeError) {
			p.err = e
		},
	}
}
