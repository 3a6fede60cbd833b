package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/toastate/toastpipe/internal/metrics"
	"github.com/toastate/toastpipe/internal/runner"
	"github.com/toastate/toastpipe/internal/tlogger"

	_ "embed"
)

//go:embed livereload.html
var liveReloadScript []byte

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		w.WriteHeader(500)
	},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// BuildTask is run once before serving when the builder is enabled.
const BuildTask = "dist"

type Server struct {
	runner       *runner.Runner
	metrics      *metrics.Recorder
	buildDir     string
	port         string
	override404  string
	livereload   bool
	reloadBroker *Broker

	ready chan string
}

func (s *Server) TriggerReload() {
	s.reloadBroker.Publish(struct{}{})
}

// NewServer serves the destination root of r's configuration. m may be nil.
func NewServer(r *runner.Runner, m *metrics.Recorder, port string, override404 string) *Server {
	return &Server{
		runner:       r,
		metrics:      m,
		buildDir:     r.Config().DistDir(),
		port:         port,
		override404:  override404,
		reloadBroker: newBroker(),
		ready:        make(chan string, 1),
	}
}

// Start serves until ctx is done. With the builder enabled it first runs
// BuildTask, then re-runs the bound tasks on change and tells connected
// pages to reload after every successful rebuild.
func (s *Server) Start(ctx context.Context, withBuilder bool, bindings []runner.WatchBinding) error {
	if withBuilder {
		err := s.runner.Run(ctx, BuildTask)
		if err != nil {
			return err
		}
		s.livereload = true
	}

	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return eris.Wrapf(err, "failed to listen on port %s", s.port)
	}

	srv := &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.reloadBroker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "http server stopped")
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withBuilder && len(bindings) > 0 {
		g.Go(func() error {
			return s.runner.Watch(gctx, bindings, runner.WatchOptions{
				AfterRun: func(res runner.Result) {
					if res.Err == nil {
						s.TriggerReload()
					}
				},
			})
		})
	}

	addr := ln.Addr().(*net.TCPAddr)
	// We use println here so the address can be copied or opened directly from the terminal
	fmt.Println("Listening on http://localhost:" + fmt.Sprint(addr.Port))
	s.ready <- fmt.Sprintf("localhost:%d", addr.Port)

	return g.Wait()
}

// Ready yields the listening address once Start is serving.
func (s *Server) Ready() <-chan string {
	return s.ready
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/__internal/livereload", s.livereloadHandler)
	if s.metrics != nil {
		r.Handle("/__internal/metrics", s.metrics.Handler())
	}
	r.PathPrefix("/").HandlerFunc(s.fileServer(s.buildDir, s.override404))
	return r
}

func (s *Server) fileServer(dir string, override404 string) func(http.ResponseWriter, *http.Request) {
	if override404 != "" && !strings.HasPrefix(override404, "/") {
		override404 = "/" + override404
	}

	return func(w http.ResponseWriter, r *http.Request) {
		fullName, found, err := resolveFile(dir, r.URL.Path)
		if err == nil && !found && override404 != "" {
			fullName, found, err = resolveFile(dir, override404)
		}
		if err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Internal error: can't open file: " + err.Error()))
			return
		}
		if !found {
			w.WriteHeader(404)
			w.Write([]byte("404 page not found"))
			return
		}

		content, err := os.Open(fullName)
		if err != nil {
			w.WriteHeader(500)
			w.Write([]byte("Internal error: can't open file"))
			return
		}
		defer content.Close()

		ctype := mime.TypeByExtension(filepath.Ext(fullName))
		if ctype == "" {
			// read a chunk to decide between utf-8 text and binary
			var buf [512]byte
			n, _ := io.ReadFull(content, buf[:])
			ctype = http.DetectContentType(buf[:n])
			_, err := content.Seek(0, io.SeekStart)
			if err != nil {
				w.WriteHeader(500)
				w.Write([]byte("Internal error: can't seek file: " + err.Error()))
				return
			}
		}
		w.Header().Set("Content-Type", ctype)
		io.Copy(w, content)

		if s.livereload && strings.HasPrefix(ctype, "text/html") {
			_, err = w.Write(liveReloadScript)
			if err != nil {
				tlogger.Error("msg", "could not live reload", "error", err)
			}
		}
	}
}

// resolveFile maps a URL path onto dir, trying the path itself, then with
// an .html suffix, then as a folder holding index.html.
func resolveFile(dir, upath string) (string, bool, error) {
	const indexPage = "index.html"

	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean(upath)))

	for _, candidate := range []string{fullName, fullName + ".html", filepath.Join(fullName, indexPage)} {
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
				continue
			}
			return "", false, err
		}
		if !info.IsDir() {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

func (s *Server) livereloadHandler(w http.ResponseWriter, r *http.Request) {
	tlogger.Debug("msg", "WS Established")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		tlogger.Warn("msg", "Reload socket upgrade failed", "error", err)
		return
	}
	defer c.Close()

	waitCh := s.reloadBroker.Subscribe()
	defer s.reloadBroker.Unsubscribe(waitCh)

	// the page never writes, a read error means it went away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case _, ok := <-waitCh:
		if !ok {
			return
		}
		err = c.WriteMessage(websocket.TextMessage, []byte("reload"))
		if err != nil {
			tlogger.Warn("msg", "Reload socket error", "error", err)
		}
	case <-gone:
	}
}
