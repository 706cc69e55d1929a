// Package httpapi implements the thin connection-admitting HTTP surface:
// the `/ws` upgrade route that hands sockets into C6, `/healthz` and
// `/metrics`, and stub handlers for the out-of-scope external HTTP
// surface (spec §6's login/register/profile endpoints, which a
// reverse-proxy-fronted service owns in production). Grounded on the
// teacher's internal/interfaces/http server.go: a mux.Router, a
// middleware chain, and a ServerConfig with the same shape.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/velotype/velotype/internal/auth"
	"github.com/velotype/velotype/internal/daily"
	"github.com/velotype/velotype/internal/match"
	"github.com/velotype/velotype/internal/matchmaking"
	"github.com/velotype/velotype/internal/storage"
	"github.com/velotype/velotype/internal/telemetry"
	"github.com/velotype/velotype/internal/wire"
)

// ServerConfig mirrors the teacher's ServerConfig: host/port/timeouts,
// plus the queue-tick cadence that drives matchmaking.Service.Tick.
type ServerConfig struct {
	Host             string
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	QueueTickInterval time.Duration

	// AllowedOrigin is a comma-separated allow list ("*" for any origin),
	// the same format config.AppConfig.CORSOrigin accepts; empty allows
	// any origin, for local dev.
	AllowedOrigin string
}

// originAllowed reports whether origin matches the comma-separated allow
// list, supporting a "*" wildcard entry — mirrors
// config.AppConfig.CORSAllowed's matching rule for the one surface
// (the websocket upgrade) that needs it inside this package.
func originAllowed(allowList, origin string) bool {
	if allowList == "" {
		return true
	}
	for _, pattern := range strings.Split(allowList, ",") {
		pattern = strings.TrimSpace(pattern)
		if pattern == "*" || pattern == origin {
			return true
		}
	}
	return false
}

// DefaultServerConfig mirrors the teacher's DefaultServerConfig.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "0.0.0.0",
		Port:              4000,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		QueueTickInterval: 250 * time.Millisecond,
	}
}

// Server is the process's single HTTP/WS listener.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	config     ServerConfig
	upgrader   websocket.Upgrader

	verifier  *auth.Verifier
	mm        *matchmaking.Service
	manager   *match.Manager
	gateway   storage.Gateway
	telem     *telemetry.Registry
	daily     *daily.Service

	registry *connRegistry

	tickerDone chan struct{}
}

// NewServer wires the connection-admitting surface over already
// constructed C3-C9 services; any of daily/telem may be nil in a reduced
// deployment (e.g. a test server without the daily challenge mounted).
func NewServer(cfg ServerConfig, verifier *auth.Verifier, mm *matchmaking.Service, manager *match.Manager, gateway storage.Gateway, telem *telemetry.Registry, dailySvc *daily.Service) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		verifier: verifier,
		mm:       mm,
		manager:  manager,
		gateway:  gateway,
		telem:    telem,
		daily:    dailySvc,
		registry: newConnRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(cfg.AllowedOrigin, r.Header.Get("Origin"))
			},
		},
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.telem != nil {
		s.router.Handle("/metrics", s.telem.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	s.registerStubRoutes()

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()[:8]
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("httpapi: request")
	})
}

type requestIDKey struct{}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok"}`)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `{"error":"not_found","message":"the requested endpoint does not exist"}`)
}

// Start runs the queue-pairing ticker and blocks on ListenAndServe.
func (s *Server) Start() error {
	s.tickerDone = make(chan struct{})
	go s.runQueueTicker()

	log.Info().Str("addr", s.httpServer.Addr).Msg("httpapi: listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the queue ticker and drains the HTTP server within ctx's
// deadline, same graceful-shutdown shape as the teacher's Server.Shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.tickerDone != nil {
		close(s.tickerDone)
	}
	return s.httpServer.Shutdown(ctx)
}

// runQueueTicker periodically drives matchmaking.Service.Tick and hands
// every produced MatchConfig to the match manager plus a MATCH_FOUND
// frame to each waiter still connected (spec §4.4 item 4).
func (s *Server) runQueueTicker() {
	ticker := time.NewTicker(s.config.QueueTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.tickerDone:
			return
		case <-ticker.C:
			for _, cfg := range s.mm.Tick() {
				s.manager.Start(cfg)
				s.notifyMatchFound(cfg)
			}
		}
	}
}

func (s *Server) notifyMatchFound(cfg matchmaking.MatchConfig) {
	if connA, ok := s.registry.get(cfg.UserIDA); ok {
		connA.Send(wire.NewGeneric(wire.OutMatchFound, match.MatchFoundPayload{
			MatchID:          cfg.MatchID,
			OpponentUserID:   cfg.UserIDB,
			Seed:             cfg.Seed,
			Mode:             cfg.Mode,
			RoundTimeSeconds: cfg.RoundTimeSeconds,
			TextLength:       cfg.TextLength,
			Difficulty:       string(cfg.Difficulty),
			Punctuation:      cfg.Punctuation,
			StartAtMs:        cfg.StartAt.UnixMilli(),
		}))
	}
	if connB, ok := s.registry.get(cfg.UserIDB); ok {
		connB.Send(wire.NewGeneric(wire.OutMatchFound, match.MatchFoundPayload{
			MatchID:          cfg.MatchID,
			OpponentUserID:   cfg.UserIDA,
			Seed:             cfg.Seed,
			Mode:             cfg.Mode,
			RoundTimeSeconds: cfg.RoundTimeSeconds,
			TextLength:       cfg.TextLength,
			Difficulty:       string(cfg.Difficulty),
			Punctuation:      cfg.Punctuation,
			StartAtMs:        cfg.StartAt.UnixMilli(),
		}))
	}
}
