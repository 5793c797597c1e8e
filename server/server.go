package server

import (
	"context"
	"net/http"
	"time"

	"github.com/lumahq/chainmesh/batch"
	"github.com/lumahq/chainmesh/chain"
	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/logging"
)

// Options configures the HTTP server.
type Options struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string

	// Logger receives request-level diagnostics. Defaults to NoOp.
	Logger logging.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server hosts the orchestrator HTTP API.
type Server struct {
	handlers   *Handlers
	httpServer *http.Server
	logger     logging.Logger
}

// New builds a Server around the orchestrator components.
func New(registry core.Registry, executor *chain.Executor, scheduler *batch.Scheduler, caller core.AgentCaller, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:         ":8080",
		Logger:       logging.NoOpLogger{},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	handlers := NewHandlers(registry, executor, scheduler, caller, opts.Logger)

	return &Server{
		handlers: handlers,
		logger:   opts.Logger,
		httpServer: &http.Server{
			Addr:         opts.Addr,
			Handler:      Routes(handlers),
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
	}
}

// Routes registers the API on a fresh mux using method routing.
func Routes(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /chains", h.HandleListChains)
	mux.HandleFunc("GET /chains/{name}", h.HandleGetChain)
	mux.HandleFunc("GET /agents", h.HandleListAgents)
	mux.HandleFunc("GET /agents/{name}", h.HandleGetAgent)

	mux.HandleFunc("POST /execute", h.HandleExecute)
	mux.HandleFunc("POST /execute-parallel", h.HandleExecuteParallel)
	mux.HandleFunc("GET /batch/{id}/status", h.HandleBatchStatus)
	mux.HandleFunc("GET /batch/{id}/results", h.HandleBatchResults)
	mux.HandleFunc("POST /batch/{id}/cancel", h.HandleBatchCancel)

	mux.HandleFunc("POST /call", h.HandleCall)
	mux.HandleFunc("POST /registry/reload", h.HandleReload)

	return mux
}

// Start blocks serving the API until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
