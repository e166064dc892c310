package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/fable-lang/fable/core"
	"github.com/fable-lang/fable/funcs/std"
	"github.com/fable-lang/fable/script"
	"github.com/fable-lang/fable/storage/bolt"
	. "github.com/fable-lang/fable/util/testutil"

	"github.com/gorilla/websocket"
)

// Service hosts one run per WebSocket connection.
type Service struct {
	ScriptDir string
	Store     *bolt.Storage
}

// Op is a client request.
type Op struct {
	// Op is "start", "load", "resume", "select", or "save".
	Op string `json:"op"`

	// Script names the script file (without extension) for start
	// and load.
	Script string `json:"script,omitempty"`

	// Beat optionally names the starting beat for start.
	Beat string `json:"beat,omitempty"`

	// N is the selected option index for select.
	N *int `json:"n,omitempty"`

	// Slot is the save-slot name for save and load.
	Slot string `json:"slot,omitempty"`
}

// Msg is a server event.
type Msg struct {
	// Type is "dialogue", "choice", "finished", "error", or "ok".
	Type string `json:"type"`

	Speaker string              `json:"speaker,omitempty"`
	Text    string              `json:"text,omitempty"`
	Tags    []core.TagSpan      `json:"tags,omitempty"`
	Options []core.ChoiceOption `json:"options,omitempty"`
	Error   string              `json:"error,omitempty"`
	Op      string              `json:"op,omitempty"`
}

// session is the per-connection run state.  The engine's resumption
// functions are parked here between client ops.
type session struct {
	sync.Mutex

	service *Service
	out     chan *Msg

	script *script.Script
	it     *core.Interpreter
	resume func()
	sel    func(int)
}

func (s *Service) WebSocketService(ctx context.Context) error {
	var upgrader = websocket.Upgrader{} // use default options

	api := func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Service.WebSocketService connection")

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		ctl := make(chan bool)
		defer close(ctl)

		sess := &session{
			service: s,
			out:     make(chan *Msg, 32),
		}

		go func() {
			mt := websocket.TextMessage

		LOOP:
			for {
				select {
				case <-ctl:
					break LOOP
				case <-ctx.Done():
					break LOOP
				case m := <-sess.out:
					if m == nil {
						break LOOP
					}
					js, err := json.Marshal(m)
					if err != nil {
						log.Printf("session Marshal error %v on %#v", err, m)
						continue
					}
					if err = c.WriteMessage(mt, js); err != nil {
						log.Println("session write:", err)
					}
				}
			}
		}()

		for {
			mt, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read error", err)
				break
			}

			var op Op
			if err := json.Unmarshal(message, &op); err != nil {
				msg := fmt.Sprintf("can't parse: %v", err)
				if err = c.WriteMessage(mt, []byte(msg)); err != nil {
					log.Println("write (err)", err)
				}
				continue
			}
			if err = sess.do(ctx, &op); err != nil {
				log.Printf("op error %v on %s", err, JS(op))
				sess.out <- &Msg{Type: "error", Op: op.Op, Error: err.Error()}
			}
		}
	}

	http.HandleFunc("/ws/api", api)

	return nil
}

func (sess *session) handler() *core.Handler {
	return &core.Handler{
		Dialogue: func(speaker, text string, tags []core.TagSpan, resume func()) {
			sess.resume = resume
			sess.out <- &Msg{Type: "dialogue", Speaker: speaker, Text: text, Tags: tags}
		},
		Choice: func(options []core.ChoiceOption, sel func(int)) {
			sess.sel = sel
			sess.out <- &Msg{Type: "choice", Options: options}
		},
		Finish: func() {
			sess.out <- &Msg{Type: "finished"}
		},
		Error: func(err *core.RuntimeError) {
			sess.out <- &Msg{Type: "error", Error: err.Error()}
		},
	}
}

func (sess *session) load(name string) (*script.Script, error) {
	return script.LoadFile(filepath.Join(sess.service.ScriptDir, name+".yaml"))
}

func (sess *session) register(it *core.Interpreter) {
	it.RegisterAll(std.Library())
	it.RegisterAll(std.Timers())
}

func (sess *session) do(ctx context.Context, op *Op) error {
	sess.Lock()
	defer sess.Unlock()

	switch op.Op {
	case "start":
		s, err := sess.load(op.Script)
		if err != nil {
			return err
		}
		it, err := core.New(s, sess.handler())
		if err != nil {
			return err
		}
		sess.register(it)
		sess.script = s
		sess.it = it
		return it.Start(ctx, op.Beat)

	case "load":
		s, err := sess.load(op.Script)
		if err != nil {
			return err
		}
		slot := op.Slot
		if slot == "" {
			slot = "autosave"
		}
		run, err := sess.service.Store.ReadRun(ctx, s.Name, slot)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no saved run in slot '%s'", slot)
		}
		it, err := core.Restore(ctx, s, run.Snapshot, sess.handler())
		if err != nil {
			return err
		}
		sess.register(it)
		sess.script = s
		sess.it = it
		return it.Resume()

	case "resume":
		r := sess.resume
		sess.resume = nil
		if r == nil {
			return fmt.Errorf("nothing to resume")
		}
		r()
		return nil

	case "select":
		sel := sess.sel
		sess.sel = nil
		if sel == nil {
			return fmt.Errorf("no pending choice")
		}
		n := -1
		if op.N != nil {
			n = *op.N
		}
		sel(n)
		return nil

	case "save":
		if sess.it == nil {
			return fmt.Errorf("no run")
		}
		snap, err := sess.it.Save()
		if err != nil {
			return err
		}
		slot := op.Slot
		if slot == "" {
			slot = "autosave"
		}
		if err = sess.service.Store.WriteRun(ctx, sess.script.Name, slot, snap); err != nil {
			return err
		}
		sess.out <- &Msg{Type: "ok", Op: "save"}
		return nil
	}

	return fmt.Errorf("unknown op '%s'", op.Op)
}
