package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"parking-allocator/internal/logging"
	"parking-allocator/internal/parking"
)

type Options struct {
	Port        string
	ServiceName string
}

type Server struct {
	httpServer *http.Server
	handler    *Handler
	hub        *Hub
}

func NewServer(lot *parking.InstrumentedParkingLot, opts Options) *Server {
	if opts.ServiceName == "" {
		opts.ServiceName = parking.DefaultServiceName
	}

	hub := NewHub()
	handler := NewHandler(lot, hub, opts.ServiceName)
	registry := newMetricsRegistry(lot, hub)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metricsHandler(registry))
	r.Get("/ws", handler.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", handler.GetStatus)
		r.Get("/slots/expired", handler.GetExpired)
		r.Get("/vehicles/{plate}", handler.GetVehicle)
		r.Route("/parking", func(r chi.Router) {
			r.Post("/entries", handler.CreateEntry)
			r.Post("/exits", handler.CreateExit)
		})
	})

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		hub:        hub,
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the websocket hub and serves HTTP until Shutdown is called or
// ctx is done. A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	logging.Info(ctx, "starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
