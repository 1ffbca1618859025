package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andy6609/chatlite/internal/config"
	"github.com/andy6609/chatlite/internal/netutil"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	hub    *Hub

	mu        sync.Mutex
	listeners []net.Listener
	httpSrv   *http.Server
	httpAddr  net.Addr

	upgrader websocket.Upgrader
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewServer(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	return &Server{
		cfg:    cfg,
		logger: logger,
		hub:    NewHub(cfg.MaxConns, 128, cfg.WriteTimeout, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		stopCh: make(chan struct{}),
	}
}

// Start binds the chat listener (and the HTTP listener, when configured),
// starts the hub and begins accepting. Bind failures are returned; they are
// the only fatal errors.
func (s *Server) Start() error {
	ln, err := netutil.Listen(s.cfg.Addr, s.cfg.Backlog)
	if err != nil {
		return err
	}

	var httpLn net.Listener
	if s.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
		}
	}

	go s.hub.Run()
	s.AcceptFrom(ln)

	if httpLn != nil {
		srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		s.mu.Lock()
		s.httpSrv = srv
		s.httpAddr = httpLn.Addr()
		s.mu.Unlock()
		go func() {
			if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("http server failed", "error", err)
			}
		}()
		s.logger.Info("http listening", "addr", httpLn.Addr().String())
	}

	s.logger.Info("server started", "addr", ln.Addr().String(), "max_conns", s.cfg.MaxConns)
	return nil
}

// AcceptFrom runs an accept loop for ln in the background. It can be called
// for extra listeners after Start, such as a tunnel.
func (s *Server) AcceptFrom(ln net.Listener) {
	s.mu.Lock()
	if s.stopping() {
		s.mu.Unlock()
		ln.Close()
		return
	}
	s.listeners = append(s.listeners, ln)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
}

// Addr is the address of the first chat listener.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// HTTPAddr is the address of the metrics/WebSocket listener, if any.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("shutting down")

		// Closing stopCh under mu orders it against every wg.Add.
		s.mu.Lock()
		close(s.stopCh)
		for _, ln := range s.listeners {
			ln.Close()
		}
		srv := s.httpSrv
		s.mu.Unlock()

		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				s.logger.Warn("http shutdown", "error", err)
			}
		}

		s.hub.Stop()
		s.hub.Wait()
		s.wg.Wait()

		s.logger.Info("shutdown complete")
	})
}

func (s *Server) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	retry := &backoff.Backoff{
		Min:    5 * time.Millisecond,
		Max:    time.Second,
		Factor: 2,
		Jitter: true,
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// A failed accept only costs that one connection.
			d := retry.Duration()
			s.logger.Warn("accept failed", "error", err, "retry_in", d)
			select {
			case <-time.After(d):
			case <-s.stopCh:
				return
			}
			continue
		}
		retry.Reset()

		s.logger.Info("client connected", "addr", conn.RemoteAddr().String())
		s.Attach(conn)
	}
}

// Attach starts a session for an already established transport. Once Stop
// has begun the transport is closed instead.
func (s *Server) Attach(t Transport) {
	s.mu.Lock()
	if s.stopping() {
		s.mu.Unlock()
		t.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	c := NewConn(t, s.cfg.OutboundQueue)
	go func() {
		defer s.wg.Done()
		HandleSession(c, s.hub)
	}()
}

// Handler serves /metrics, /members and the /ws WebSocket entry point.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/members", s.handleMembers)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Members()); err != nil {
		s.logger.Warn("encode members", "error", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.stopping() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}
	s.logger.Info("client connected", "addr", ws.RemoteAddr().String(), "transport", "websocket")
	s.Attach(NewWebSocketTransport(ws))
}
