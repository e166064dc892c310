// A simple, single-run player that reads from stdin and writes to
// stdout.
//
// At a choice prompt, enter an option number, "save" to store the run
// in the state file, or "quit" to continue past the choice with no
// selection.  When a script file is watched (-w), edits to it are
// picked up at the next line or choice: the run is snapshotted,
// re-attached to the edited script, and resumed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fable-lang/fable/core"
	"github.com/fable-lang/fable/funcs/goja"
	"github.com/fable-lang/fable/funcs/std"
	"github.com/fable-lang/fable/script"
	"github.com/fable-lang/fable/storage/bolt"

	"github.com/fsnotify/fsnotify"
	"github.com/jsccast/yaml"
)

func main() {
	var (
		scriptFilename = flag.String("s", "", "script filename (YAML)")
		startingBeat   = flag.String("b", "", "starting beat (default per script)")
		stateFilename  = flag.String("f", "fable.db", "state filename")
		slot           = flag.String("slot", "autosave", "save-slot name")
		load           = flag.Bool("l", false, "load the save slot instead of starting fresh")
		watch          = flag.Bool("w", false, "watch the script file and hot-reload on change")
		libsFilename   = flag.String("libs", "", "ECMAScript host-function library filename (YAML)")
		diag           = flag.Bool("d", false, "print diagnostics")
	)

	flag.Parse()

	if *scriptFilename == "" {
		log.Fatal("need a script (-s)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := script.LoadFile(*scriptFilename)
	if err != nil {
		log.Fatal(err)
	}

	store, err := bolt.NewStorage(*stateFilename)
	if err != nil {
		log.Fatal(err)
	}
	if err = store.Open(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close(ctx)

	p := &player{
		ctx:   ctx,
		in:    bufio.NewReader(os.Stdin),
		scr:   s,
		story: s.Name,
		store: store,
		slot:  *slot,
		diag:  *diag,
		done:  make(chan struct{}),
	}

	if *libsFilename != "" {
		libs, err := loadLibs(*libsFilename)
		if err != nil {
			log.Fatal(err)
		}
		p.libs = libs
	}

	if *watch {
		if err := p.watchScript(*scriptFilename); err != nil {
			log.Fatal(err)
		}
	}

	if *load {
		run, err := store.ReadRun(ctx, p.story, p.slot)
		if err != nil {
			log.Fatal(err)
		}
		if run == nil {
			log.Fatalf("no saved run in slot '%s'", p.slot)
		}
		it, err := core.Restore(ctx, s, run.Snapshot, p.handler())
		if err != nil {
			log.Fatal(err)
		}
		p.register(it)
		p.it = it
		if err = it.Resume(); err != nil {
			log.Fatal(err)
		}
	} else {
		it, err := core.New(s, p.handler())
		if err != nil {
			log.Fatal(err)
		}
		p.register(it)
		p.it = it
		if err = it.Start(ctx, *startingBeat); err != nil {
			log.Fatal(err)
		}
	}

	// The run can outlive Start when a timer is pending.
	<-p.done
}

type player struct {
	ctx   context.Context
	in    *bufio.Reader
	scr   *script.Script
	story string
	store *bolt.Storage
	slot  string
	diag  bool
	libs  map[string]core.Func
	it    *core.Interpreter
	done  chan struct{}

	// edited holds a freshly loaded script after a watched file
	// change, until the next suspension point applies it.
	edited atomic.Value
}

func (p *player) register(it *core.Interpreter) {
	it.Verbose = p.diag
	it.RegisterAll(std.Library())
	it.RegisterAll(std.Timers())
	it.RegisterAll(p.libs)
}

// loadLibs reads a YAML map of function names to ECMAScript sources
// and compiles it into host functions.
func loadLibs(filename string) (map[string]core.Func, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	srcs := make(map[string]string)
	if err = yaml.Unmarshal(bs, &srcs); err != nil {
		return nil, err
	}
	return goja.NewProvider().CompileLibrary(srcs)
}

func (p *player) handler() *core.Handler {
	return &core.Handler{
		Dialogue: func(speaker, text string, tags []core.TagSpan, resume func()) {
			if p.reload() {
				return
			}
			if speaker == "" {
				fmt.Printf("%s\n", text)
			} else {
				fmt.Printf("%s: %s\n", speaker, text)
			}
			if p.diag && 0 < len(tags) {
				for _, tag := range tags {
					fmt.Printf("# tag %s [%d,%d)\n", tag.Name, tag.Start, tag.End)
				}
			}
			resume()
		},
		Choice: func(options []core.ChoiceOption, sel func(int)) {
			if p.reload() {
				return
			}
			for i, o := range options {
				mark := " "
				if !o.Enabled {
					mark = "-"
				}
				fmt.Printf("%s %d. %s\n", mark, i+1, o.Text)
			}
			sel(p.prompt(len(options)))
		},
		Finish: func() {
			fmt.Printf("(the end)\n")
			close(p.done)
		},
		Error: func(err *core.RuntimeError) {
			fmt.Printf("error: %s\n", err)
			close(p.done)
		},
	}
}

// prompt reads choice-prompt commands until it has a selection.
func (p *player) prompt(n int) int {
	for {
		fmt.Printf("> ")
		line, err := p.in.ReadString('\n')
		if err == io.EOF {
			return -1
		}
		if err != nil {
			log.Fatal(err)
		}
		line = strings.TrimSpace(line)
		switch line {
		case "quit":
			return -1
		case "save":
			if err := p.save(); err != nil {
				fmt.Printf("error: %s\n", err)
			} else {
				fmt.Printf("# saved to slot '%s'\n", p.slot)
			}
			continue
		}
		k, err := strconv.Atoi(line)
		if err != nil || k < 1 || n < k {
			fmt.Printf("# enter 1-%d, 'save', or 'quit'\n", n)
			continue
		}
		return k - 1
	}
}

func (p *player) save() error {
	snap, err := p.it.Save()
	if err != nil {
		return err
	}
	return p.store.WriteRun(p.ctx, p.story, p.slot, snap)
}

// reload applies a pending script edit: snapshot the suspended run,
// re-attach it to the edited script, and resume.  The old interpreter
// is abandoned by never resuming it.
func (p *player) reload() bool {
	x := p.edited.Swap((*script.Script)(nil))
	s, is := x.(*script.Script)
	if !is || s == nil {
		return false
	}

	snap, err := p.it.Save()
	if err != nil {
		fmt.Printf("# reload failed: %s\n", err)
		return false
	}
	it, err := core.Restore(p.ctx, s, snap, p.handler())
	if err != nil {
		fmt.Printf("# reload failed: %s\n", err)
		return false
	}
	fmt.Printf("# script reloaded\n")
	p.register(it)
	p.scr = s
	p.it = it
	if err = it.Resume(); err != nil {
		fmt.Printf("error: %s\n", err)
	}
	return true
}

// watchScript reloads the script file on change, debounced.  The
// parsed script is applied at the next suspension point.
func (p *player) watchScript(filename string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filename); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		const debounceDelay = 500 * time.Millisecond

		for {
			select {
			case <-p.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					s, err := script.LoadFile(filename)
					if err != nil {
						log.Printf("watch: can't reload: %s", err)
						return
					}
					p.edited.Store(s)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("watch error: %s", err)
			}
		}
	}()

	return nil
}
