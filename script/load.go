package script

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/jsccast/yaml"
)

// Load parses a YAML (or JSON) script.  Node ids the source does not
// carry are assigned.
func Load(bs []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return nil, err
	}
	EnsureIds(&s)
	return &s, nil
}

// LoadFile reads and parses a script file.  A script without a name
// gets one from the filename.
func LoadFile(filename string) (*Script, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	s, err := Load(bs)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		name := filepath.Base(filename)
		if i := strings.LastIndex(name, "."); 0 < i {
			name = name[0:i]
		}
		s.Name = name
	}
	return s, nil
}

// EnsureIds assigns ids to declarations and statements that have
// none, starting above the largest id already present.  Authoring
// tools should emit stable ids so snapshots survive edits; assigned
// ids are stable only for an unedited script.
func EnsureIds(s *Script) {
	max := 0
	eachNode(s, func(id *int) {
		if max < *id {
			max = *id
		}
	})
	eachNode(s, func(id *int) {
		if *id == 0 {
			max++
			*id = max
		}
	})
}

func eachNode(s *Script, f func(id *int)) {
	for _, d := range s.Decls {
		f(&d.Id)
		if d.Beat != nil {
			eachBody(d.Beat.Body, f)
		}
	}
}

func eachBody(body []*Stmt, f func(id *int)) {
	for _, st := range body {
		f(&st.Id)
		switch {
		case st.Beat != nil:
			eachBody(st.Beat.Body, f)
		case st.If != nil:
			eachBody(st.If.Then, f)
			eachBody(st.If.Else, f)
		case st.Choice != nil:
			for _, o := range st.Choice.Options {
				eachBody(o.Body, f)
			}
		}
	}
}

// Hash computes the Base64-encoded SHA256 hash of the given data.
func Hash(data []byte) string {
	h := sha256.New()
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ScriptId computes an id for the script from a canonical (?) JSON
// representation.  Useful as a cache or storage key.
func ScriptId(s *Script) (string, error) {
	js, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return Hash(js), nil
}
