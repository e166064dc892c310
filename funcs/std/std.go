// Package std is the standard host-function library: string, number,
// and array helpers, plus asynchronous timers.
//
// Register the whole library with Interpreter.RegisterAll, or pick
// individual entries.
package std

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/fable-lang/fable/core"

	"github.com/gorhill/cronexpr"
)

// Gensym returns a random string of length n.  Used for ad-hoc ids in
// scripts and tests.
func Gensym(n int) string {
	const symbols = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = symbols[rand.Intn(len(symbols))]
	}
	return string(b)
}

func str(v core.Value) (string, error) {
	s, is := v.(string)
	if !is {
		return "", fmt.Errorf("want a string, got %s", core.KindOf(v))
	}
	return s, nil
}

func num(v core.Value) (float64, error) {
	f, is := v.(float64)
	if !is {
		return 0, fmt.Errorf("want a number, got %s", core.KindOf(v))
	}
	return f, nil
}

func arity(args []core.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("want %d args, got %d", n, len(args))
	}
	return nil
}

// Library returns the synchronous helpers.
func Library() map[string]core.Func {
	return map[string]core.Func{
		"len": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			switch vv := args[0].(type) {
			case string:
				return float64(len(vv)), nil
			case core.List:
				return float64(vv.Len()), nil
			case core.Fields:
				return float64(len(vv.Keys())), nil
			case nil:
				return float64(0), nil
			}
			return nil, fmt.Errorf("len of %s", core.KindOf(args[0]))
		},

		"str": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			return core.ToString(args[0]), nil
		},

		"upper": stringFunc(strings.ToUpper),
		"lower": stringFunc(strings.ToLower),
		"trim":  stringFunc(strings.TrimSpace),
		"esc":   stringFunc(url.QueryEscape),

		"contains": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 2); err != nil {
				return nil, err
			}
			if xs, is := args[0].(core.List); is {
				found := false
				core.ListEach(xs, func(_ int, v core.Value) bool {
					if core.Equal(v, args[1]) {
						found = true
						return false
					}
					return true
				})
				return found, nil
			}
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			sub, err := str(args[1])
			if err != nil {
				return nil, err
			}
			return strings.Contains(s, sub), nil
		},

		"split": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 2); err != nil {
				return nil, err
			}
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			sep, err := str(args[1])
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, sep)
			xs := make([]core.Value, len(parts))
			for i, p := range parts {
				xs[i] = p
			}
			return core.NewVector(xs...), nil
		},

		"join": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 2); err != nil {
				return nil, err
			}
			xs, is := args[0].(core.List)
			if !is {
				return nil, fmt.Errorf("want an array, got %s", core.KindOf(args[0]))
			}
			sep, err := str(args[1])
			if err != nil {
				return nil, err
			}
			return core.ListJoin(xs, sep), nil
		},

		"push": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 2); err != nil {
				return nil, err
			}
			xs, is := args[0].(core.List)
			if !is {
				return nil, fmt.Errorf("want an array, got %s", core.KindOf(args[0]))
			}
			xs.Push(args[1])
			return xs, nil
		},

		"pop": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			xs, is := args[0].(core.List)
			if !is {
				return nil, fmt.Errorf("want an array, got %s", core.KindOf(args[0]))
			}
			return xs.Pop(), nil
		},

		"keys": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			var keys []string
			switch vv := args[0].(type) {
			case core.Fields:
				keys = vv.Keys()
			case *core.Character:
				keys = vv.Keys()
			default:
				return nil, fmt.Errorf("keys of %s", core.KindOf(args[0]))
			}
			xs := make([]core.Value, len(keys))
			for i, k := range keys {
				xs[i] = k
			}
			return core.NewVector(xs...), nil
		},

		"floor": numFunc(math.Floor),
		"ceil":  numFunc(math.Ceil),
		"round": numFunc(math.Round),
		"abs":   numFunc(math.Abs),

		"min": func(ctx context.Context, args []core.Value) (core.Value, error) {
			return fold(args, math.Min)
		},
		"max": func(ctx context.Context, args []core.Value) (core.Value, error) {
			return fold(args, math.Max)
		},

		"random": func(ctx context.Context, args []core.Value) (core.Value, error) {
			switch len(args) {
			case 0:
				return rand.Float64(), nil
			case 1:
				n, err := num(args[0])
				if err != nil {
					return nil, err
				}
				if n < 1 {
					return float64(0), nil
				}
				return float64(rand.Intn(int(n))), nil
			}
			return nil, fmt.Errorf("want 0 or 1 args, got %d", len(args))
		},

		"gensym": func(ctx context.Context, args []core.Value) (core.Value, error) {
			return Gensym(32), nil
		},

		"now": func(ctx context.Context, args []core.Value) (core.Value, error) {
			return time.Now().UTC().Format(time.RFC3339Nano), nil
		},

		"cronNext": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			c, err := cronexpr.Parse(s)
			if err != nil {
				return nil, err
			}
			return c.Next(time.Now()).UTC().Format(time.RFC3339Nano), nil
		},
	}
}

// Timers returns the asynchronous helpers.  sleep(ms) suspends the
// run for the given number of milliseconds; at(cronExpr) suspends it
// until the expression's next firing time.  The completion callback
// arrives on a timer goroutine, so hosts that also drive the
// interpreter from other goroutines must serialize externally.
func Timers() map[string]core.Func {
	return map[string]core.Func{
		"sleep": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			ms, err := num(args[0])
			if err != nil {
				return nil, err
			}
			d := time.Duration(ms) * time.Millisecond
			return &core.Async{
				Run: func(done func()) {
					go func() {
						select {
						case <-time.After(d):
							done()
						case <-ctx.Done():
						}
					}()
				},
			}, nil
		},

		"at": func(ctx context.Context, args []core.Value) (core.Value, error) {
			if err := arity(args, 1); err != nil {
				return nil, err
			}
			s, err := str(args[0])
			if err != nil {
				return nil, err
			}
			c, err := cronexpr.Parse(s)
			if err != nil {
				return nil, err
			}
			d := time.Until(c.Next(time.Now()))
			if d < 0 {
				d = 0
			}
			return &core.Async{
				Run: func(done func()) {
					go func() {
						select {
						case <-time.After(d):
							done()
						case <-ctx.Done():
						}
					}()
				},
			}, nil
		},
	}
}

func stringFunc(f func(string) string) core.Func {
	return func(ctx context.Context, args []core.Value) (core.Value, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		s, err := str(args[0])
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func numFunc(f func(float64) float64) core.Func {
	return func(ctx context.Context, args []core.Value) (core.Value, error) {
		if err := arity(args, 1); err != nil {
			return nil, err
		}
		n, err := num(args[0])
		if err != nil {
			return nil, err
		}
		return f(n), nil
	}
}

func fold(args []core.Value, f func(float64, float64) float64) (core.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("want at least 1 arg, got 0")
	}
	acc, err := num(args[0])
	if err != nil {
		return nil, err
	}
	for _, a := range args[1:] {
		n, err := num(a)
		if err != nil {
			return nil, err
		}
		acc = f(acc, n)
	}
	return acc, nil
}
