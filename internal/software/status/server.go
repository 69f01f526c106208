// Package status serves a read-only HTTP view of the running screen.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ride-convoy/internal/general/logger"
	"ride-convoy/internal/software/session"
)

// Source is a screen that can report its state.
type Source interface {
	Snapshot() session.Snapshot
}

// Registry maps ride ids to the screens currently showing them.
type Registry struct {
	mu      sync.RWMutex
	screens map[string]entry
	seq     uint64
}

type entry struct {
	src Source
	seq uint64
}

func NewRegistry() *Registry {
	return &Registry{screens: make(map[string]entry)}
}

// Set publishes src under rideID and returns a func that removes it, as
// long as it has not been replaced since.
func (registry *Registry) Set(rideID string, src Source) func() {
	registry.mu.Lock()
	registry.seq++
	seq := registry.seq
	registry.screens[rideID] = entry{src: src, seq: seq}
	registry.mu.Unlock()

	return func() {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		if current, ok := registry.screens[rideID]; ok && current.seq == seq {
			delete(registry.screens, rideID)
		}
	}
}

func (registry *Registry) Get(rideID string) (Source, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	current, ok := registry.screens[rideID]
	return current.src, ok
}

// Rides lists the ride ids with a live screen.
func (registry *Registry) Rides() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]string, 0, len(registry.screens))
	for id := range registry.screens {
		out = append(out, id)
	}
	return out
}

type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

func NewServer(addr string, registry *Registry, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(registry, log),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log,
	}
}

// NewRouter builds the status routes.
func NewRouter(registry *Registry, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth())
	r.Get("/rides", handleRides(registry))
	r.Get("/rides/{rideID}/state", handleRideState(registry))

	return r
}

// Run serves until Shutdown. A closed server is not an error.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	s.logger.Info(ctx, "status_listening", "Status API listening", map[string]any{"addr": ln.Addr().String()})

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := log.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))

			defer func() {
				log.Debug(ctx, "http_request", "Served request", map[string]any{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"duration_ms": time.Since(start).Milliseconds(),
				})
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
