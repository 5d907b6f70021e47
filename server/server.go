// Package server exposes Intcode machines over HTTP and program files
// over the Language Server Protocol.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/intcode/manifest"
)

var log = commonlog.GetLogger("intcode.server")

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// MachineServer serves the machine session API, both as REST routes and
// as Connect procedures. Request and response bodies are JSON by default
// and CBOR when the client asks for application/cbor.
type MachineServer struct {
	worker   *Worker
	sessions *SessionStore
	mux      *http.ServeMux

	maxSteps      int
	maxPhases     int
	searchWorkers int

	stopSweeper func()
	stopOnce    sync.Once

	mu         sync.Mutex
	httpServer *http.Server
	stopped    bool
}

// ServerOption configures a MachineServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxSteps      int
	maxPhases     int
	sessionTTL    time.Duration
	sweepInterval time.Duration
	searchWorkers int
}

// WithMaxSteps caps the instructions a single execute or pipeline request
// may run. Zero removes the cap.
func WithMaxSteps(n int) ServerOption {
	return func(c *serverConfig) { c.maxSteps = n }
}

// WithMaxPhases caps the number of phase settings a search request may
// carry, since a search tries every ordering. Zero removes the cap.
func WithMaxPhases(n int) ServerOption {
	return func(c *serverConfig) { c.maxPhases = n }
}

// WithSessionTTL sets how long an idle session survives.
func WithSessionTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) { c.sessionTTL = ttl }
}

// WithSweepInterval sets how often idle sessions are swept.
func WithSweepInterval(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.sweepInterval = d }
}

// WithSearchWorkers bounds the goroutines used by phase searches.
func WithSearchWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.searchWorkers = n }
}

// New creates a MachineServer and starts its session sweeper.
func New(opts ...ServerOption) *MachineServer {
	cfg := &serverConfig{
		maxSteps:      manifest.DefaultMaxSteps,
		maxPhases:     manifest.DefaultMaxPhases,
		sessionTTL:    manifest.DefaultSessionTTL,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &MachineServer{
		worker:        NewWorker(),
		sessions:      NewSessionStore(),
		mux:           http.NewServeMux(),
		maxSteps:      cfg.maxSteps,
		maxPhases:     cfg.maxPhases,
		searchWorkers: cfg.searchWorkers,
	}

	s.mux.HandleFunc("POST /machines", s.handleCreate)
	s.mux.HandleFunc("GET /machines/{id}", s.handleInspect)
	s.mux.HandleFunc("DELETE /machines/{id}", s.handleDestroy)
	s.mux.HandleFunc("POST /machines/{id}/execute", s.handleExecute)
	s.mux.HandleFunc("POST /pipelines", s.handleAmplify)
	s.mountProcedures()

	s.stopSweeper = s.sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL)

	return s
}

// Handler returns the HTTP handler serving the API.
func (s *MachineServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *MachineServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port". It returns
// nil once Stop has closed the server.
func (s *MachineServer) ListenAndServe(addr string) error {
	srv := s.newHTTPServer(addr)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = srv
	s.mu.Unlock()

	log.Noticef("intcode server listening on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *MachineServer) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// Stop shuts down the server. It is safe to call more than once.
func (s *MachineServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		if s.httpServer != nil {
			if err := s.httpServer.Close(); err != nil {
				log.Warningf("close http server: %v", err)
			}
		}
		s.mu.Unlock()

		if s.stopSweeper != nil {
			s.stopSweeper()
		}
		s.worker.Stop()
	})
}
