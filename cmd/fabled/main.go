// fabled serves scripted runs over WebSockets.  Each connection gets
// its own run of a script from the script directory; the client
// drives pacing with resume and select ops.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"

	"github.com/fable-lang/fable/storage/bolt"
)

func main() {
	var (
		port          = flag.String("p", ":8383", "port for the WebSocket service")
		scriptDir     = flag.String("s", ".", "directory containing script files")
		stateFilename = flag.String("f", "fabled.db", "state filename")
	)

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bolt.NewStorage(*stateFilename)
	if err != nil {
		log.Fatal(err)
	}
	if err = store.Open(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close(ctx)

	s := &Service{
		ScriptDir: *scriptDir,
		Store:     store,
	}

	if err := s.WebSocketService(ctx); err != nil {
		log.Fatal(err)
	}

	log.Printf("fabled listening on %s", *port)
	log.Fatal(http.ListenAndServe(*port, nil))
}
