package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeusync/docsync/internal/core/observability/log"
)

// Server runs an in-memory document store over HTTP.
type Server struct {
	store   *Store
	handler *HTTPHandler
	server  *http.Server
	addr    atomic.Value // string

	running int32 // atomic bool

	config Config
	logger log.Log
}

// Config holds server configuration
type Config struct {
	ListenAddr      string
	// PathPrefix is stripped before routing, so clients can use a versioned
	// base URL such as http://host:1337/1.
	PathPrefix      string
	Shards          int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:1337",
		PathPrefix:      "/1",
		Shards:          16,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func NewServer(config Config, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	logger = logger.With(log.String("component", "server"))

	store := NewStore(config.Shards)
	return &Server{
		store:   store,
		handler: NewHTTPHandler(store, logger),
		config:  config,
		logger:  logger,
	}
}

// Handler returns the routes of the server, for mounting under a prefix or in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Store() *Store {
	return s.store
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return err
	}
	s.addr.Store(listener.Addr().String())

	var handler http.Handler = s.handler
	if prefix := strings.TrimRight(s.config.PathPrefix, "/"); prefix != "" {
		mux := http.NewServeMux()
		mux.Handle(prefix+"/", http.StripPrefix(prefix, s.handler))
		handler = mux
	}

	s.server = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", log.Error(err))
		}
	}()

	s.logger.Info("Server started", log.String("addr", s.Addr()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("Server stopping", log.Int("documents", s.store.Len()))
	return s.server.Shutdown(ctx)
}
