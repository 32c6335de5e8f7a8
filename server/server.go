// Package server is the loopback HTTP listener that receives provider login callbacks for the
// CLI. Each registered flow's callback is consumed once and its outcome handed to Wait.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/auth/oauth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of a completed callback.
type Result struct {
	Login *auth.LoginResult
	Err   error
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	addr       string
	mux        *http.ServeMux
	routes     []string
	listener   net.Listener
	httpServer *http.Server

	results  chan Result
	consumed map[string]bool
	mu       sync.Mutex
}

// New creates a callback server that will listen on addr (host:port; port 0 picks a free one).
func New(env, addr string) *Server {
	s := &Server{
		env:      strings.ToUpper(env),
		addr:     addr,
		mux:      http.NewServeMux(),
		results:  make(chan Result, 1),
		consumed: make(map[string]bool),
	}
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Handle serves flow's callback path.
func (s *Server) Handle(flow oauth.Flow) {
	s.RegisterRouteFunc("GET "+flow.CallbackPath(), ChainMiddleware(s.callbackHandler(flow), s.CallbackMiddleware()...))
}

// Listen binds the listener so the callback URL is known before the flow starts.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "[Server.Listen] %s", s.addr)
	}
	s.listener = l
	return nil
}

// CallbackURL is the absolute URL of path on the bound listener.
func (s *Server) CallbackURL(path string) string {
	addr := s.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	return "http://" + addr + path
}

// Serve accepts connections until Shutdown. It binds first if Listen was not called.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logRoutes()
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()
	log.Info().Str("addr", s.listener.Addr().String()).Msg("Callback server listening")
	if err := httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "[Server.Serve]")
	}
	return nil
}

// Wait blocks until a callback completes or ctx ends.
func (s *Server) Wait(ctx context.Context) (*auth.LoginResult, error) {
	select {
	case res := <-s.results:
		return res.Login, res.Err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "[Server.Wait] no callback received")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()
	if httpServer == nil {
		if s.listener != nil {
			return s.listener.Close()
		}
		return nil
	}
	return httpServer.Shutdown(ctx)
}

// consume marks path as used and reports whether this was the first use.
func (s *Server) consume(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed[path] {
		return false
	}
	s.consumed[path] = true
	return true
}

func (s *Server) publish(res Result) {
	select {
	case s.results <- res:
	default:
		log.Warn().Msg("Dropping callback result, one is already pending")
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
