// cmd/kumircd is the HTTP compile service: an explicitly out-of-scope
// "external collaborator" per SPEC_FULL.md §1, kept here only as a
// thin wrapper around the core. Grounded on the retrieved pack's
// termfx-morfx CLI for its spf13/cobra command-tree convention (closer
// in shape to a server entry point than cmd/sentra's REPL dispatcher),
// and on the teacher's internal/network/websocket_server.go for the
// gorilla/websocket upgrade pattern.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"kumirc/internal/module"
	"kumirc/internal/parser"
	"kumirc/internal/pipeline"
	"kumirc/internal/types"
)

func main() {
	var addr string

	root := &cobra.Command{
		Use:   "kumircd",
		Short: "HTTP compile service for the KuMir compiler mid-end",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP compile service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", ":8777", "listen address")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/compile", handleCompileBatch)
	mux.HandleFunc("/watch", handleWatch)

	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// compileUnitResult is one translation unit's check result, the wire
// shape both /compile and /watch report.
type compileUnitResult struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	Diag string `json:"diagnostic,omitempty"`
}

type compileBatchRequest struct {
	Units map[string]string `json:"units"` // name -> source text
}

// handleCompileBatch compiles every unit in the request body
// concurrently with errgroup, the natural home for the fan-out the
// single-threaded core (§5) forbids internally.
func handleCompileBatch(w http.ResponseWriter, r *http.Request) {
	var req compileBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := make([]compileUnitResult, len(req.Units))
	names := make([]string, 0, len(req.Units))
	for name := range req.Units {
		names = append(names, name)
	}

	g, _ := errgroup.WithContext(r.Context())
	for i, name := range names {
		i, name := i, name
		source := req.Units[name]
		g.Go(func() error {
			results[i] = checkUnit(name, source)
			return nil
		})
	}
	g.Wait() // each checkUnit reports its own failure in-band; nothing to propagate

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func checkUnit(name, source string) compileUnitResult {
	tab := types.NewTable()
	root, perr := parser.Parse(source, name, tab)
	if perr == nil {
		_, perr = pipeline.Run(root, tab, module.NewRegistry())
	}
	if perr != nil {
		return compileUnitResult{Name: name, OK: false, Diag: perr.Error()}
	}
	return compileUnitResult{Name: name, OK: true}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWatch upgrades to a websocket and, each time a unit is sent
// over it, recompiles and streams back the diagnostic result —
// recompilation-on-change with the client driving "change" by sending
// a fresh source body, rather than this service watching a filesystem
// itself (out of scope, §1's external-collaborator boundary).
func handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req struct {
			Name   string `json:"name"`
			Source string `json:"source"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		result := checkUnit(req.Name, req.Source)
		if err := conn.WriteJSON(result); err != nil {
			return
		}
	}
}
