// fabletool reads a script on stdin (or from a file) and converts or
// renders it.
//
//	fabletool yamltojson [-p] < script.yaml
//	fabletool jsontoyaml < script.json
//	fabletool ids < script.yaml
//	fabletool dot < script.yaml > script.dot
//	fabletool mermaid < script.yaml
//	fabletool html < script.yaml > script.html
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/fable-lang/fable/script"
	"github.com/fable-lang/fable/tools"

	"github.com/jsccast/yaml"
)

func main() {
	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	read := func() *script.Script {
		bs, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		s, err := script.Load(bs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return s
	}

	switch os.Args[1] {
	case "yamltojson":
		pretty := false
		if 2 < len(os.Args) {
			switch os.Args[2] {
			case "-p":
				pretty = true
			default:
				fmt.Fprintf(os.Stderr, "unsupported args: %v\n", os.Args[1:])
				os.Exit(1)
			}
		}

		s := read()

		var (
			bs  []byte
			err error
		)
		if pretty {
			bs, err = json.MarshalIndent(s, "  ", "  ")
		} else {
			bs, err = json.Marshal(s)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if _, err = os.Stdout.Write(bs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "jsontoyaml":
		s := read()

		bs, err := yaml.Marshal(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if _, err = os.Stdout.Write(bs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "ids":
		// Load assigns missing node ids; write the result back
		// out so the ids become part of the document.
		s := read()

		bs, err := yaml.Marshal(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

		if _, err = os.Stdout.Write(bs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "dot":
		if err := tools.Dot(read(), os.Stdout, "", ""); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "mermaid":
		if err := tools.Mermaid(read(), os.Stdout, nil); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	case "html":
		if err := tools.RenderScriptPage(read(), os.Stdout, nil, false); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Printf("Unknown subcommand \"%s\"\n", os.Args[1])
		Usage()
		os.Exit(1)
	}
}

func Usage() {
	fmt.Printf("Subcommands:\n\n")
	fmt.Printf("  yamltojson [-p]  convert a YAML script to JSON (-p to pretty-print)\n")
	fmt.Printf("  jsontoyaml       convert a JSON script to YAML\n")
	fmt.Printf("  ids              assign missing node ids\n")
	fmt.Printf("  dot              render the beat graph as Graphviz dot\n")
	fmt.Printf("  mermaid          render the beat graph as Mermaid\n")
	fmt.Printf("  html             render the script as an HTML page\n")
}
