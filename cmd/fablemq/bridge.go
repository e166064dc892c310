package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/fable-lang/fable/core"
	"github.com/fable-lang/fable/funcs/std"
	"github.com/fable-lang/fable/script"
	"github.com/fable-lang/fable/storage/bolt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Op is an incoming command, as JSON on the command topic.
type Op struct {
	// Op is "start", "load", "resume", "select", or "save".
	Op     string `json:"op"`
	Script string `json:"script,omitempty"`
	Beat   string `json:"beat,omitempty"`
	N      *int   `json:"n,omitempty"`
	Slot   string `json:"slot,omitempty"`
}

// Msg is an outgoing event, as JSON on the output topic.
type Msg struct {
	Type    string              `json:"type"`
	Speaker string              `json:"speaker,omitempty"`
	Text    string              `json:"text,omitempty"`
	Tags    []core.TagSpan      `json:"tags,omitempty"`
	Options []core.ChoiceOption `json:"options,omitempty"`
	Error   string              `json:"error,omitempty"`
	Op      string              `json:"op,omitempty"`
}

// Bridge couples one scripted run to an MQTT session.
type Bridge struct {
	sync.Mutex

	Client mqtt.Client

	scriptDir string
	store     *bolt.Storage
	outTopic  string
	outQoS    byte

	scr    *script.Script
	it     *core.Interpreter
	resume func()
	sel    func(int)
}

func NewBridge(ctx context.Context, scriptDir, stateFilename, outTopic string, outQoS byte) (*Bridge, error) {
	store, err := bolt.NewStorage(stateFilename)
	if err != nil {
		return nil, err
	}
	if err = store.Open(ctx); err != nil {
		return nil, err
	}
	return &Bridge{
		scriptDir: scriptDir,
		store:     store,
		outTopic:  outTopic,
		outQoS:    outQoS,
	}, nil
}

func (b *Bridge) Close(ctx context.Context) error {
	return b.store.Close(ctx)
}

// publish sends an event to the output topic.
func (b *Bridge) publish(m *Msg) {
	js, err := json.Marshal(m)
	if err != nil {
		log.Printf("Failed to marshal %#v", m)
		return
	}
	log.Printf("Publishing %s %s", b.outTopic, js)
	token := b.Client.Publish(b.outTopic, b.outQoS, false, js)
	token.Wait()
	if token.Error() != nil {
		log.Printf("Publish error: %s", token.Error())
	}
}

// inHandler is a Paho publish handler, which is used to handle
// messages sent to us from the MQTT broker due to our subscriptions.
func (b *Bridge) inHandler(ctx context.Context, client mqtt.Client, msg mqtt.Message) {
	log.Printf("incoming: %s %s\n", msg.Topic(), msg.Payload())

	var op Op
	if err := json.Unmarshal(msg.Payload(), &op); err != nil {
		log.Printf("Couldn't JSON-parse payload: %s", msg.Payload())
		return
	}
	if err := b.do(ctx, &op); err != nil {
		log.Printf("op error %v", err)
		b.publish(&Msg{Type: "error", Op: op.Op, Error: err.Error()})
	}
}

func (b *Bridge) handler() *core.Handler {
	return &core.Handler{
		Dialogue: func(speaker, text string, tags []core.TagSpan, resume func()) {
			b.resume = resume
			b.publish(&Msg{Type: "dialogue", Speaker: speaker, Text: text, Tags: tags})
		},
		Choice: func(options []core.ChoiceOption, sel func(int)) {
			b.sel = sel
			b.publish(&Msg{Type: "choice", Options: options})
		},
		Finish: func() {
			b.publish(&Msg{Type: "finished"})
		},
		Error: func(err *core.RuntimeError) {
			b.publish(&Msg{Type: "error", Error: err.Error()})
		},
	}
}

func (b *Bridge) load(name string) (*script.Script, error) {
	return script.LoadFile(filepath.Join(b.scriptDir, name+".yaml"))
}

func (b *Bridge) register(it *core.Interpreter) {
	it.RegisterAll(std.Library())
	it.RegisterAll(std.Timers())
}

func (b *Bridge) do(ctx context.Context, op *Op) error {
	b.Lock()
	defer b.Unlock()

	switch op.Op {
	case "start":
		s, err := b.load(op.Script)
		if err != nil {
			return err
		}
		it, err := core.New(s, b.handler())
		if err != nil {
			return err
		}
		b.register(it)
		b.scr = s
		b.it = it
		return it.Start(ctx, op.Beat)

	case "load":
		s, err := b.load(op.Script)
		if err != nil {
			return err
		}
		slot := op.Slot
		if slot == "" {
			slot = "autosave"
		}
		run, err := b.store.ReadRun(ctx, s.Name, slot)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no saved run in slot '%s'", slot)
		}
		it, err := core.Restore(ctx, s, run.Snapshot, b.handler())
		if err != nil {
			return err
		}
		b.register(it)
		b.scr = s
		b.it = it
		return it.Resume()

	case "resume":
		r := b.resume
		b.resume = nil
		if r == nil {
			return fmt.Errorf("nothing to resume")
		}
		r()
		return nil

	case "select":
		sel := b.sel
		b.sel = nil
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
		if b.it == nil {
			return fmt.Errorf("no run")
		}
		snap, err := b.it.Save()
		if err != nil {
			return err
		}
		slot := op.Slot
		if slot == "" {
			slot = "autosave"
		}
		if err = b.store.WriteRun(ctx, b.scr.Name, slot, snap); err != nil {
			return err
		}
		b.publish(&Msg{Type: "ok", Op: "save"})
		return nil
	}

	return fmt.Errorf("unknown op '%s'", op.Op)
}
