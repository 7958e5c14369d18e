package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/internal/pkg/metrics"
	"github.com/autopeer-io/robopeer/pkg/log"
	"github.com/autopeer-io/robopeer/pkg/options"
)

// ControlService is the part of control.Service served over HTTP.
type ControlService interface {
	Submit(ctx context.Context, req control.Request) (control.Handle, error)
	Cancel(ctx context.Context, id string) error
	Status(id string) (control.Snapshot, error)
	QueueStatus() control.QueueStatus
	Health(ctx context.Context) control.Health
	EmergencyStop(ctx context.Context) (control.Snapshot, error)
	Resume(ctx context.Context) (control.Snapshot, error)
	PruneHistory(olderThan time.Duration) int
}

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

func NewServer(opts *options.HttpOptions, svc ControlService) *Server {
	h := &handler{svc: svc}

	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness Probe, failing while the robot link is down.
	r.HandleFunc("/readyz", h.ready).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/queue", h.queue).Methods(http.MethodGet)
	api.HandleFunc("/commands", h.submit).Methods(http.MethodPost)
	api.HandleFunc("/commands/{id}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/commands/{id}", h.cancel).Methods(http.MethodDelete)
	api.HandleFunc("/emergency-stop", h.emergencyStop).Methods(http.MethodPost)
	api.HandleFunc("/resume", h.resume).Methods(http.MethodPost)
	api.HandleFunc("/history/prune", h.prune).Methods(http.MethodPost)

	return &Server{
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      r,
			ReadTimeout:  opts.Timeout,
			WriteTimeout: opts.Timeout,
		},
		options: opts,
	}
}

// Handler returns the router of the server.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
