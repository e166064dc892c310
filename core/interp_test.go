package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fable-lang/fable/script"
)

func TestHello(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("count", b.num(1))),
		b.beat("_",
			b.text("", b.lit("Hello "), b.interp(b.acc("count"))),
			b.trans("."),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	if !p.finished {
		t.Fatal("run should have finished")
	}
	if len(p.lines) != 1 || p.lines[0] != "Hello 1" {
		t.Fatalf("got lines %#v", p.lines)
	}
	if it.Status() != Finished {
		t.Fatalf("got status %s", it.Status())
	}
}

func TestStartingBeat(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.beat("one", b.line("", "first"), b.trans(".")),
		b.beat("two", b.line("", "second"), b.trans(".")),
	)

	t.Run("named", func(t *testing.T) {
		p := &play{}
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), "two"); err != nil {
			t.Fatal(err)
		}
		if len(p.lines) != 1 || p.lines[0] != "second" {
			t.Fatalf("got lines %#v", p.lines)
		}
	})

	t.Run("default is first declared", func(t *testing.T) {
		p := &play{}
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), ""); err != nil {
			t.Fatal(err)
		}
		if len(p.lines) != 1 || p.lines[0] != "first" {
			t.Fatalf("got lines %#v", p.lines)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		p := &play{}
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		err = it.Start(context.Background(), "nope")
		if err == nil {
			t.Fatal("expected an error")
		}
		var bnf *BeatNotFound
		if !errors.As(err, &bnf) || bnf.Name != "nope" {
			t.Fatalf("got %v", err)
		}
		if it.Status() != Broken {
			t.Fatalf("got status %s", it.Status())
		}
	})
}

func TestTransitions(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.beat("_", b.line("", "a"), b.trans("middle")),
		b.beat("middle", b.line("", "b"), b.trans("end")),
		b.beat("end", b.line("", "c"), b.trans(".")),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	want := []string{"a", "b", "c"}
	if len(p.lines) != len(want) {
		t.Fatalf("got lines %#v", p.lines)
	}
	for i, w := range want {
		if p.lines[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, p.lines[i], w)
		}
	}
	if !p.finished {
		t.Fatal("run should have finished")
	}
}

func TestFallOffEnd(t *testing.T) {
	// A beat body that ends without a transition finishes the run.
	b := &sb{}
	s := scriptOf(
		b.beat("_", b.line("", "only")),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if !p.finished {
		t.Fatal("run should have finished")
	}
}

func TestArithmetic(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("score", b.num(1))),
		b.beat("_",
			b.set("score", "+=", b.num(2)),
			b.text("", b.lit("score: "), b.interp(b.acc("score"))),
			b.trans("."),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if len(p.lines) != 1 || p.lines[0] != "score: 3" {
		t.Fatalf("got lines %#v", p.lines)
	}
}

func TestDivisionByZero(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("x", b.num(1))),
		b.beat("_",
			b.set("x", "=", b.bin("/", b.num(1), b.num(0))),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	err = it.Start(context.Background(), "")
	if err == nil {
		t.Fatal("expected an error")
	}
	var dz *DivisionByZero
	if !errors.As(err, &dz) {
		t.Fatalf("got %v", err)
	}
	if it.Status() != Broken {
		t.Fatalf("got status %s", it.Status())
	}
	if p.err == nil {
		t.Fatal("Error handler should have fired")
	}
}

func TestUndefinedVariable(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.beat("_", b.text("", b.interp(b.acc("ghost")))),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	err = it.Start(context.Background(), "")
	var uv *UndefinedVariable
	if !errors.As(err, &uv) || uv.Name != "ghost" {
		t.Fatalf("got %v", err)
	}
}

func TestChoice(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("brave", b.boolean(false))),
		b.beat("_",
			b.choice(
				b.opt("Fight", b.acc("brave"), b.line("", "you fight")),
				b.opt("Run", nil, b.line("", "you run")),
			),
			b.line("", "after"),
			b.trans("."),
		),
	)

	t.Run("selection runs the option body", func(t *testing.T) {
		p := &play{picks: []int{1}}
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), ""); err != nil {
			t.Fatal(err)
		}
		want := []string{"you run", "after"}
		if len(p.lines) != 2 || p.lines[0] != want[0] || p.lines[1] != want[1] {
			t.Fatalf("got lines %#v", p.lines)
		}
		if len(p.choices) != 1 {
			t.Fatalf("got %d choice prompts", len(p.choices))
		}
		opts := p.choices[0]
		if opts[0].Enabled || !opts[1].Enabled {
			t.Fatalf("got options %#v", opts)
		}
		if opts[0].Text != "Fight" || opts[1].Text != "Run" {
			t.Fatalf("got options %#v", opts)
		}
	})

	t.Run("selecting a disabled option is allowed", func(t *testing.T) {
		p := &play{picks: []int{0}}
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), ""); err != nil {
			t.Fatal(err)
		}
		if len(p.lines) != 2 || p.lines[0] != "you fight" {
			t.Fatalf("got lines %#v", p.lines)
		}
	})

	t.Run("cancellation continues past the choice", func(t *testing.T) {
		p := &play{} // no picks: answers -1
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), ""); err != nil {
			t.Fatal(err)
		}
		if len(p.lines) != 1 || p.lines[0] != "after" {
			t.Fatalf("got lines %#v", p.lines)
		}
	})

	t.Run("double select is ignored", func(t *testing.T) {
		p := &play{holdChoice: true}
		it, err := New(s, p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), ""); err != nil {
			t.Fatal(err)
		}
		p.sel(1)
		p.sel(0)
		if len(p.lines) != 2 || p.lines[0] != "you run" {
			t.Fatalf("got lines %#v", p.lines)
		}
		if !p.finished {
			t.Fatal("run should have finished")
		}
	})
}

func TestIf(t *testing.T) {
	mk := func(cond *script.Expr) (*script.Script, *sb) {
		b := &sb{}
		return scriptOf(
			b.beat("_",
				b.iff(cond,
					[]*script.Stmt{b.line("", "then")},
					[]*script.Stmt{b.line("", "else")}),
				b.trans("."),
			),
		), b
	}

	b := &sb{}
	tests := []struct {
		name string
		cond *script.Expr
		want string
	}{
		{"true", b.boolean(true), "then"},
		{"false", b.boolean(false), "else"},
		{"nonempty string", b.str("x"), "then"},
		{"empty string", b.str(""), "else"},
		{"empty array", b.array(), "else"},
		{"number is not truthy", b.num(1), "else"},
		{"null", b.null(), "else"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := mk(tt.cond)
			p := &play{}
			it, err := New(s, p.handler())
			if err != nil {
				t.Fatal(err)
			}
			if err = it.Start(context.Background(), ""); err != nil {
				t.Fatal(err)
			}
			if len(p.lines) != 1 || p.lines[0] != tt.want {
				t.Fatalf("got lines %#v, want %q", p.lines, tt.want)
			}
		})
	}
}

func TestScopePrecedence(t *testing.T) {
	// A temporary declaration in the beat body shadows top-level
	// state of the same name; the top-level value is untouched.
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("x", b.str("global"))),
		b.beat("_",
			b.state(true, b.fi("x", b.str("local"))),
			b.text("", b.interp(b.acc("x"))),
			b.trans("other"),
		),
		b.beat("other",
			b.text("", b.interp(b.acc("x"))),
			b.trans("."),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if len(p.lines) != 2 || p.lines[0] != "local" || p.lines[1] != "global" {
		t.Fatalf("got lines %#v", p.lines)
	}
}

func TestPersistentNodeState(t *testing.T) {
	// Persistent state in a beat body keeps its value across
	// re-entry; the initializer only fills missing fields.
	b := &sb{}
	s := scriptOf(
		b.beat("_",
			b.state(false, b.fi("visits", b.num(0))),
			b.set("visits", "+=", b.num(1)),
			b.text("", b.interp(b.acc("visits"))),
			b.iff(b.bin("<", b.acc("visits"), b.num(3)),
				[]*script.Stmt{b.trans("_")},
				[]*script.Stmt{b.trans(".")}),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	want := []string{"1", "2", "3"}
	if len(p.lines) != 3 {
		t.Fatalf("got lines %#v", p.lines)
	}
	for i, w := range want {
		if p.lines[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, p.lines[i], w)
		}
	}
}

func TestCharacterShadowing(t *testing.T) {
	// A nested declaration extends the top-level character: new
	// fields shadow, inherited fields stay visible, and writes go
	// to the innermost instance.
	b := &sb{}
	s := scriptOf(
		b.charDecl("Hero", b.fi("mood", b.str("calm")), b.fi("hp", b.num(10))),
		b.beat("_",
			b.char("Hero", b.fi("mood", b.str("angry"))),
			b.text("", b.interp(b.field(b.acc("Hero"), "mood"))),
			b.text("", b.interp(b.field(b.acc("Hero"), "hp"))),
			b.trans("after"),
		),
		b.beat("after",
			b.text("", b.interp(b.field(b.acc("Hero"), "mood"))),
			b.trans("."),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	want := []string{"angry", "10", "calm"}
	for i, w := range want {
		if p.lines[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, p.lines[i], w)
		}
	}
}

func TestCharacterFieldAccessors(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.charDecl("Hero", b.fi("hp", b.num(10))),
		b.beat("_", b.trans(".")),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	v, err := it.GetCharacterField("Hero", "hp")
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(10) {
		t.Fatalf("got %#v", v)
	}
	if err = it.SetCharacterField("Hero", "hp", float64(7)); err != nil {
		t.Fatal(err)
	}
	if v, _ = it.GetCharacterField("Hero", "hp"); v != float64(7) {
		t.Fatalf("got %#v", v)
	}
	if _, err = it.GetCharacterField("Nobody", "hp"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestLocalBeatCall(t *testing.T) {
	// A beat declared in a body is callable as a subroutine:
	// control returns to the caller.
	b := &sb{}
	s := scriptOf(
		b.beat("_",
			b.beatStmt("aside", b.line("", "aside line")),
			b.line("", "before"),
			b.call("aside"),
			b.line("", "after"),
			b.trans("."),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	want := []string{"before", "aside line", "after"}
	if len(p.lines) != 3 {
		t.Fatalf("got lines %#v", p.lines)
	}
	for i, w := range want {
		if p.lines[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, p.lines[i], w)
		}
	}
}

func TestHostFunctions(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("x", b.num(0))),
		b.beat("_",
			b.set("x", "=", b.callExpr("add", b.num(2), b.num(3))),
			b.text("", b.interp(b.acc("x"))),
			b.trans("."),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	it.Register("add", func(ctx context.Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("want 2 args")
		}
		return args[0].(float64) + args[1].(float64), nil
	})
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if len(p.lines) != 1 || p.lines[0] != "5" {
		t.Fatalf("got lines %#v", p.lines)
	}
}

func TestAsyncCall(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.beat("_",
			b.line("", "before"),
			b.call("later"),
			b.line("", "after"),
			b.trans("."),
		),
	)

	var parked func()
	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	it.Register("later", func(ctx context.Context, args []Value) (Value, error) {
		return &Async{Run: func(done func()) { parked = done }}, nil
	})
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	if len(p.lines) != 1 || p.lines[0] != "before" {
		t.Fatalf("got lines %#v", p.lines)
	}
	if it.Status() != Running {
		t.Fatalf("got status %s", it.Status())
	}
	if parked == nil {
		t.Fatal("async call should have parked its continuation")
	}

	parked()

	if len(p.lines) != 2 || p.lines[1] != "after" {
		t.Fatalf("got lines %#v", p.lines)
	}
	if !p.finished {
		t.Fatal("run should have finished")
	}
}

func TestAsyncInExpression(t *testing.T) {
	b := &sb{}
	s := scriptOf(
		b.stateDecl(b.fi("x", b.num(0))),
		b.beat("_",
			b.set("x", "=", b.callExpr("later")),
		),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	it.Register("later", func(ctx context.Context, args []Value) (Value, error) {
		return &Async{Run: func(done func()) { done() }}, nil
	})
	if err = it.Start(context.Background(), ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestArrayIndexing(t *testing.T) {
	mk := func(at float64) *script.Script {
		b := &sb{}
		return scriptOf(
			b.stateDecl(b.fi("xs", b.array(b.str("a"), b.str("b")))),
			b.beat("_",
				b.text("", b.interp(b.index(b.acc("xs"), b.num(at)))),
				b.trans("."),
			),
		)
	}

	t.Run("in bounds", func(t *testing.T) {
		p := &play{}
		it, err := New(mk(1), p.handler())
		if err != nil {
			t.Fatal(err)
		}
		if err = it.Start(context.Background(), ""); err != nil {
			t.Fatal(err)
		}
		if len(p.lines) != 1 || p.lines[0] != "b" {
			t.Fatalf("got lines %#v", p.lines)
		}
	})

	t.Run("out of bounds is an error", func(t *testing.T) {
		p := &play{}
		it, err := New(mk(2), p.handler())
		if err != nil {
			t.Fatal(err)
		}
		err = it.Start(context.Background(), "")
		var oob *ArrayIndexOutOfBounds
		if !errors.As(err, &oob) || oob.Index != 2 || oob.Length != 2 {
			t.Fatalf("got %v", err)
		}
	})
}

func TestDeepBeat(t *testing.T) {
	// A beat of 100,000 consecutive statements must not recurse
	// 100,000 native frames.
	b := &sb{}
	const n = 100000

	body := make([]*script.Stmt, 0, n+1)
	for k := 0; k < n; k++ {
		body = append(body, b.set("count", "+=", b.num(1)))
	}
	body = append(body, b.trans("."))

	s := scriptOf(
		b.stateDecl(b.fi("count", b.num(0))),
		b.beat("_", body...),
	)

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if !p.finished {
		t.Fatal("run should have finished")
	}
	if v := it.topState.Fields.Get("count"); v != float64(n) {
		t.Fatalf("got count %#v", v)
	}
}

func TestStartTwice(t *testing.T) {
	b := &sb{}
	s := scriptOf(b.beat("_", b.trans(".")))

	p := &play{}
	it, err := New(s, p.handler())
	if err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if err = it.Start(context.Background(), ""); err == nil {
		t.Fatal("second Start should fail")
	}
}
