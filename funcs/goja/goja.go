// Package goja exposes ECMAScript host functions to scripts using
// Goja, a Go implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"time"

	"github.com/fable-lang/fable/core"
	"github.com/fable-lang/fable/funcs/std"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by a compiled function if its
	// execution is interrupted by context cancellation.
	Interrupted = errors.New(InterruptedMessage)
)

// Provider compiles ECMAScript sources into host functions.
type Provider struct {
	// Testing exposes sleep() to the compiled code.
	Testing bool
}

// NewProvider makes a Provider.
func NewProvider() *Provider {
	return &Provider{}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// Compile wraps and compiles src, returning a host function.  The
// code runs in a function body, so a `return` produces the call's
// result.  The runtime exposes an environment at _:
//
//	args: the array of call arguments.
//	gensym(): generate a random string.
//	esc(s): URL query-escape the given string.
//	cronNext(expr): the next firing time of a cron expression.
//	log(x): log x as JSON.
//
// With Testing set, sleep(ms) is also available.
func (p *Provider) Compile(name, src string) (core.Func, error) {
	prog, err := goja.Compile(name, wrapSrc(src), true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + src)
	}

	return func(ctx context.Context, args []core.Value) (core.Value, error) {
		return p.run(ctx, prog, args)
	}, nil
}

// MustCompile is Compile that panics on a compilation error.  For
// libraries assembled at init time.
func (p *Provider) MustCompile(name, src string) core.Func {
	f, err := p.Compile(name, src)
	if err != nil {
		panic(err)
	}
	return f
}

// CompileLibrary compiles a name-to-source map into a registration
// map for Interpreter.RegisterAll.
func (p *Provider) CompileLibrary(srcs map[string]string) (map[string]core.Func, error) {
	fs := make(map[string]core.Func, len(srcs))
	for name, src := range srcs {
		f, err := p.Compile(name, src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		fs[name] = f
	}
	return fs, nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

func (p *Provider) run(ctx context.Context, prog *goja.Program, args []core.Value) (core.Value, error) {
	o := goja.New()

	env := map[string]interface{}{
		"args": exportArgs(args),
	}
	o.Set("_", env)

	if p.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	env["gensym"] = func() interface{} {
		return std.Gensym(32)
	}

	env["esc"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(s)
	}

	env["cronNext"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		c, err := cronexpr.Parse(s)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		js, err := json.Marshal(&x)
		if err != nil {
			log.Println("goja.log (can't marshal: " + err.Error() + ")")
		} else {
			log.Println(string(js))
		}
		return x
	}

	// Terminate this goroutine as soon as possible.  If run calls
	// cancel after RunProgram returns, the interrupt is never
	// delivered, which is the behavior we want.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(prog)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}

	return importValue(v.Export())
}

// exportArgs converts engine values to what Goja can host directly.
func exportArgs(args []core.Value) []interface{} {
	xs := make([]interface{}, len(args))
	for i, a := range args {
		xs[i] = exportValue(a)
	}
	return xs
}

func exportValue(v core.Value) interface{} {
	switch vv := v.(type) {
	case core.List:
		xs := make([]interface{}, vv.Len())
		for i := range xs {
			xs[i] = exportValue(vv.At(i))
		}
		return xs
	case core.Fields:
		m := make(map[string]interface{})
		for _, k := range vv.Keys() {
			m[k] = exportValue(vv.Get(k))
		}
		return m
	case *core.Character:
		m := make(map[string]interface{})
		for _, k := range vv.Keys() {
			m[k] = exportValue(vv.Get(k))
		}
		return m
	case *core.FuncRef:
		return vv.Name
	}
	return v
}

// importValue converts an exported Goja result back to an engine
// value.  Map keys are sorted since Goja's export order is not
// stable.
func importValue(x interface{}) (core.Value, error) {
	switch vv := x.(type) {
	case nil:
		return nil, nil
	case bool:
		return vv, nil
	case float64:
		return vv, nil
	case int64:
		return float64(vv), nil
	case string:
		return vv, nil
	case []interface{}:
		xs := make([]core.Value, len(vv))
		for i, y := range vv {
			v, err := importValue(y)
			if err != nil {
				return nil, err
			}
			xs[i] = v
		}
		return core.NewVector(xs...), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fs := core.NewOrderedFields()
		for _, k := range keys {
			v, err := importValue(vv[k])
			if err != nil {
				return nil, err
			}
			fs.Set(k, v)
		}
		return fs, nil
	}
	return nil, fmt.Errorf("%#v (%T) has no engine representation", x, x)
}
