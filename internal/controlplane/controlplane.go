// Package controlplane assembles the command service, the robot link and the
// servers around them into one runnable unit.
package controlplane

import (
	"context"

	"github.com/autopeer-io/robopeer/internal/control"
	"github.com/autopeer-io/robopeer/internal/controlplane/server"
	"github.com/autopeer-io/robopeer/pkg/log"
)

type Server struct {
	service       *control.Service
	serverManager *server.Manager
}

// Run blocks until ctx is done or a server fails, then cancels every
// command still queued or executing.
func (s *Server) Run(ctx context.Context) error {
	log.Info("Starting robopeer control plane")

	err := s.serverManager.Start(ctx)
	s.service.Close()

	log.Info("Robopeer control plane stopped")
	return err
}

// Service returns the command control service.
func (s *Server) Service() *control.Service {
	return s.service
}
