package script

import (
	"io/ioutil"
	"path/filepath"
	"testing"
)

var marketYAML = `
name: market
decls:
  - id: 1
    state:
      fields:
        - name: gold
          value: {id: 2, num: 5}
  - id: 3
    character:
      name: Merchant
      fields:
        - name: mood
          value: {id: 4, str: {parts: [{text: wary}]}}
  - id: 5
    beat:
      name: _
      body:
        - id: 6
          text:
            speaker: Merchant
            line:
              parts:
                - text: "You have "
                - interp: {id: 7, access: gold}
                - text: " gold."
        - id: 8
          choice:
            options:
              - text: {parts: [{text: Buy}]}
                if: {id: 9, binary: {op: ">", left: {id: 10, access: gold}, right: {id: 11, num: 0}}}
                body:
                  - id: 12
                    assign:
                      target: {id: 13, access: gold}
                      op: "-="
                      value: {id: 14, num: 1}
              - text: {parts: [{text: Leave}]}
        - id: 15
          transition:
            target: "."
`

func TestLoad(t *testing.T) {
	s, err := Load([]byte(marketYAML))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "market" {
		t.Fatalf("got name %q", s.Name)
	}
	if len(s.Decls) != 3 {
		t.Fatalf("got %d decls", len(s.Decls))
	}
	if s.Decls[1].Kind() != "character" || s.Decls[1].Character.Name != "Merchant" {
		t.Fatalf("got decl %#v", s.Decls[1])
	}

	idx, err := NewIndex(s)
	if err != nil {
		t.Fatal(err)
	}
	st, have := idx.Stmts[6]
	if !have || st.Text == nil || st.Text.Speaker != "Merchant" {
		t.Fatalf("got stmt %#v", st)
	}
	if len(st.Text.Line.Parts) != 3 || st.Text.Line.Parts[1].Interp == nil {
		t.Fatalf("got parts %#v", st.Text.Line.Parts)
	}

	ch := idx.Stmts[8].Choice
	if ch == nil || len(ch.Options) != 2 {
		t.Fatalf("got choice %#v", ch)
	}
	if ch.Options[0].If == nil || ch.Options[0].If.Binary.Op != ">" {
		t.Fatalf("got guard %#v", ch.Options[0].If)
	}
	if ch.Options[1].If != nil || ch.Options[1].Body != nil {
		t.Fatalf("got option %#v", ch.Options[1])
	}
}

func TestEnsureIds(t *testing.T) {
	s := &Script{
		Decls: []*Decl{
			{Beat: &Beat{Name: "a", Body: []*Stmt{
				{Text: &Text{Line: T("x")}},
				{Id: 7, Transition: &Transition{Target: "."}},
			}}},
		},
	}
	EnsureIds(s)

	if s.Decls[0].Id == 0 {
		t.Fatal("decl id not assigned")
	}
	body := s.Decls[0].Beat.Body
	if body[0].Id == 0 {
		t.Fatal("stmt id not assigned")
	}
	if body[1].Id != 7 {
		t.Fatalf("existing id changed to %d", body[1].Id)
	}
	// Assigned ids start above the largest existing id.
	if s.Decls[0].Id <= 7 || body[0].Id <= 7 {
		t.Fatalf("got ids %d %d", s.Decls[0].Id, body[0].Id)
	}
	if s.Decls[0].Id == body[0].Id {
		t.Fatal("assigned ids collide")
	}
}

func TestLoadFileNameDefault(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "chapter-one.yaml")
	doc := "decls:\n  - id: 1\n    beat:\n      name: _\n      body: []\n"
	if err := ioutil.WriteFile(fn, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "chapter-one" {
		t.Fatalf("got name %q", s.Name)
	}
}

func TestScriptId(t *testing.T) {
	a, err := Load([]byte(marketYAML))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load([]byte(marketYAML))
	if err != nil {
		t.Fatal(err)
	}

	ida, err := ScriptId(a)
	if err != nil {
		t.Fatal(err)
	}
	idb, err := ScriptId(b)
	if err != nil {
		t.Fatal(err)
	}
	if ida != idb {
		t.Fatal("same script should get the same id")
	}

	b.Name = "other"
	idb, err = ScriptId(b)
	if err != nil {
		t.Fatal(err)
	}
	if ida == idb {
		t.Fatal("different scripts should get different ids")
	}
}
